// Package recording holds the per-file trace matrix and the channel
// selection applied to raw acquisition tables.
package recording

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrShape marks input whose rows or columns do not fit the expected layout
	ErrShape = errors.New("recording shape error")

	// ErrNoSignalColumns is returned when no column carries the signal prefix
	ErrNoSignalColumns = fmt.Errorf("%w: no signal columns", ErrShape)
)

// Recording is a rectangular matrix of per-cell traces from one input file.
// Rows are cells, columns are timepoints.
type Recording struct {
	Name     string      `json:"name"`
	Channels []string    `json:"channels,omitempty"`
	Traces   [][]float64 `json:"traces"`
}

// New validates that all traces share one length and that channel labels,
// when given, match the trace count
func New(name string, channels []string, traces [][]float64) (*Recording, error) {
	if channels != nil && len(channels) != len(traces) {
		return nil, fmt.Errorf("%w: %d channel labels for %d traces", ErrShape, len(channels), len(traces))
	}

	for i, tr := range traces {
		if len(tr) != len(traces[0]) {
			return nil, fmt.Errorf("%w: trace %d has %d timepoints, trace 0 has %d", ErrShape, i, len(tr), len(traces[0]))
		}
	}

	return &Recording{
		Name:     name,
		Channels: channels,
		Traces:   traces,
	}, nil
}

// Cells returns the number of traces
func (r *Recording) Cells() int {
	return len(r.Traces)
}

// Timepoints returns the number of samples per trace
func (r *Recording) Timepoints() int {
	if len(r.Traces) == 0 {
		return 0
	}
	return len(r.Traces[0])
}

// Derive returns a recording with the same name and channels and new traces
func (r *Recording) Derive(traces [][]float64) (*Recording, error) {
	return New(r.Name, slices.Clone(r.Channels), traces)
}

// Reorder returns a recording whose rows follow order
func (r *Recording) Reorder(order []int) (*Recording, error) {
	if len(order) != len(r.Traces) {
		return nil, fmt.Errorf("%w: order has %d entries for %d traces", ErrShape, len(order), len(r.Traces))
	}

	traces := make([][]float64, len(order))
	var channels []string
	if r.Channels != nil {
		channels = make([]string, len(order))
	}

	for i, idx := range order {
		if idx < 0 || idx >= len(r.Traces) {
			return nil, fmt.Errorf("%w: row index %d out of range", ErrShape, idx)
		}
		traces[i] = r.Traces[idx]
		if channels != nil {
			channels[i] = r.Channels[idx]
		}
	}

	return New(r.Name, channels, traces)
}
