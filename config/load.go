package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// Load reads a JSON configuration file on top of the named preset.
// Fields omitted from the file keep the preset's values; slices present in
// the file replace the preset's slices entirely.
func Load(path, preset string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, preset)
}

// Parse decodes JSON configuration bytes on top of the named preset and validates the result
func Parse(data []byte, preset string) (Config, error) {
	cfg, err := Preset(preset)
	if err != nil {
		return Config{}, err
	}

	if err := clearReplacedSlices(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// clearReplacedSlices drops every preset slice the file sets. The decoder
// reuses existing slice elements, so a file bin without "upper" would
// otherwise keep the preset's upper bound.
func clearReplacedSlices(data []byte, cfg *Config) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}

	if hasKey(top, "schedule", "categories") {
		cfg.Schedule.Categories = nil
	}
	if hasKey(top, "response", "intervals") {
		cfg.Response.Intervals = nil
	}
	if hasKey(top, "aggregate", "groups") {
		cfg.Aggregate.Groups = nil
	}
	if hasKey(top, "aggregate", "amplitude_edges") {
		cfg.Aggregate.AmplitudeEdges = nil
	}
	return nil
}

func hasKey(top map[string]json.RawMessage, section, key string) bool {
	raw, ok := top[section]
	if !ok {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, ok = fields[key]
	return ok
}
