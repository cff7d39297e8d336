package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// QuantileMethod names how the rolling baseline quantile is interpolated
type QuantileMethod string

const (
	// QuantileLinear interpolates between the two closest ranks at q*(n-1)
	QuantileLinear QuantileMethod = "linear"
	// QuantileEmpirical takes the inverse empirical CDF (gonum stat.Empirical)
	QuantileEmpirical QuantileMethod = "empirical"
)

// FloorMode names the level a response window is integrated above
type FloorMode string

const (
	FloorZero        FloorMode = "zero"
	FloorMinPositive FloorMode = "min-positive"
)

// Bin is a half-open selectivity range [Lower, Upper). A nil Upper is unbounded.
type Bin struct {
	Lower float64  `json:"lower"`
	Upper *float64 `json:"upper,omitempty"`
}

// NewBin builds a bin; an infinite upper bound is stored as unbounded
func NewBin(lower, upper float64) Bin {
	if math.IsInf(upper, 1) {
		return Bin{Lower: lower}
	}
	return Bin{Lower: lower, Upper: &upper}
}

// UpperBound returns the upper bound, +Inf when unbounded
func (b Bin) UpperBound() float64 {
	if b.Upper == nil {
		return math.Inf(1)
	}
	return *b.Upper
}

// Contains reports whether lower <= v < upper
func (b Bin) Contains(v float64) bool {
	return b.Lower <= v && v < b.UpperBound()
}

func (b Bin) String() string {
	if b.Upper == nil {
		return fmt.Sprintf("[%g, inf)", b.Lower)
	}
	return fmt.Sprintf("[%g, %g)", b.Lower, *b.Upper)
}

// Category is one stimulus type with its onset timepoints and binning ranges
type Category struct {
	Name   string `json:"name"`
	Onsets []int  `json:"onsets"`
	Bins   []Bin  `json:"bins"`
}

// Schedule is the externally fixed stimulus protocol. Categories keep their
// configured order, which is also the output order of every table.
type Schedule struct {
	Categories  []Category `json:"categories"`
	Numerator   string     `json:"numerator"`
	Denominator string     `json:"denominator"`
}

// Category looks a category up by name
func (s Schedule) Category(name string) (Category, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Names returns category names in configured order
func (s Schedule) Names() []string {
	names := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		names[i] = c.Name
	}
	return names
}

// Interval restricts which onsets are analysed; both ends inclusive
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ChannelConfig controls selection of signal columns from an acquisition table
type ChannelConfig struct {
	SignalPrefix    string  `json:"signal_prefix"`
	DropTrailingAt  int     `json:"drop_trailing_at"`  // drop the last signal column when at least this many exist
	StackOffsetStep float64 `json:"stack_offset_step"` // 0 disables stack-offset removal
}

// BaselineConfig controls the rolling quantile baseline and the normalizer
type BaselineConfig struct {
	Window   int            `json:"window"`
	Quantile float64        `json:"quantile"`
	Method   QuantileMethod `json:"method"`
	Offset   float64        `json:"offset"` // k in (S-B)/(B+k)
}

// DetectionConfig controls stimulus-locked peak discovery
type DetectionConfig struct {
	Count           int `json:"count"`
	MinDistance     int `json:"min_distance"` // 0 estimates the interval from the trace
	StartOffset     int `json:"start_offset"`
	SmoothingWindow int `json:"smoothing_window"`
	MinLag          int `json:"min_lag"` // interval estimation search range
	MaxLag          int `json:"max_lag"`
}

// ResponseConfig controls per-onset window quantification
type ResponseConfig struct {
	StartOffset     int        `json:"start_offset"`
	EndOffset       int        `json:"end_offset"`
	SmoothingWindow int        `json:"smoothing_window"`
	Intervals       []Interval `json:"intervals,omitempty"` // empty means the whole trace
	Floor           FloorMode  `json:"floor"`
}

// Group pools per-file results whose file name contains Match
type Group struct {
	Label string `json:"label"`
	Match string `json:"match"`
}

// AggregateConfig controls batch-level summaries
type AggregateConfig struct {
	AmplitudeEdges []float64 `json:"amplitude_edges"` // finite edges; a final open-ended bin is implied
	Groups         []Group   `json:"groups,omitempty"`
}

// Config is the full set of experiment parameters. It is built once and
// passed by value into each component.
type Config struct {
	Channels  ChannelConfig   `json:"channels"`
	Baseline  BaselineConfig  `json:"baseline"`
	Detection DetectionConfig `json:"detection"`
	Response  ResponseConfig  `json:"response"`
	Schedule  Schedule        `json:"schedule"`
	Aggregate AggregateConfig `json:"aggregate"`
	Workers   int             `json:"workers"` // 0 means one per CPU
}

// DefaultChannelConfig returns the acquisition export convention
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		SignalPrefix:   "y",
		DropTrailingAt: 6,
	}
}

// DefaultBaselineConfig returns W=4500, q=0.10, k=10
func DefaultBaselineConfig() BaselineConfig {
	return BaselineConfig{
		Window:   4500,
		Quantile: 0.10,
		Method:   QuantileLinear,
		Offset:   10,
	}
}

// DefaultDetectionConfig returns the fourteen-stimulus discovery settings
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Count:           14,
		MinDistance:     290,
		StartOffset:     200,
		SmoothingWindow: 15,
		MinLag:          50,
		MaxLag:          1000,
	}
}

// DefaultResponseConfig returns the +5/+75 window with no smoothing
func DefaultResponseConfig() ResponseConfig {
	return ResponseConfig{
		StartOffset:     5,
		EndOffset:       75,
		SmoothingWindow: 1,
		Floor:           FloorZero,
	}
}

// DotsLoomSchedule returns the dots/loom protocol used for tectal recordings
func DotsLoomSchedule() Schedule {
	return Schedule{
		Categories: []Category{
			{
				Name:   "Dots",
				Onsets: []int{235, 836, 1456, 2066, 2679, 3294, 3901},
				Bins:   []Bin{NewBin(0, 0.5), NewBin(0.5, 1)},
			},
			{
				Name:   "Loom",
				Onsets: []int{537, 1150, 1763, 2361, 2967, 3595, 4208},
				Bins:   []Bin{NewBin(1, 2), NewBin(2, 4), NewBin(4, math.Inf(1))},
			},
		},
		Numerator:   "Loom",
		Denominator: "Dots",
	}
}

// DefaultAggregateConfig returns 0.01-wide amplitude bins up to 0.10
func DefaultAggregateConfig() AggregateConfig {
	return AggregateConfig{
		AmplitudeEdges: []float64{0, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07, 0.08, 0.09, 0.10},
		Groups: []Group{
			{Label: "Baseline", Match: "Baseline"},
			{Label: "Norepinephrine", Match: "Norepinephrine"},
		},
	}
}

// Default returns the complete default configuration
func Default() Config {
	return Config{
		Channels:  DefaultChannelConfig(),
		Baseline:  DefaultBaselineConfig(),
		Detection: DefaultDetectionConfig(),
		Response:  DefaultResponseConfig(),
		Schedule:  DotsLoomSchedule(),
		Aggregate: DefaultAggregateConfig(),
	}
}

// Preset returns a named protocol variant
func Preset(name string) (Config, error) {
	cfg := Default()

	switch name {
	case "", "default":
	case "dots-loom":
		cfg.Response.Intervals = []Interval{{Start: 0, End: 2600}}
	case "dots-loom-5ht":
		cfg.Response.Intervals = []Interval{{Start: 0, End: 4500}}
		cfg.Schedule.Categories[0].Onsets = []int{135, 736, 1356, 1966, 2579, 3194, 3801}
		cfg.Schedule.Categories[1].Onsets = []int{437, 1050, 1663, 2261, 2867, 3495, 4108}
	case "astrocyte":
		cfg.Channels.StackOffsetStep = 0.5
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalid, name)
	}

	return cfg, nil
}

// Validate checks every parameter range and the schedule's consistency
func (c Config) Validate() error {
	if c.Channels.SignalPrefix == "" {
		return fmt.Errorf("%w: channels.signal_prefix must not be empty", ErrInvalid)
	}
	if c.Channels.StackOffsetStep < 0 {
		return fmt.Errorf("%w: channels.stack_offset_step must be >= 0", ErrInvalid)
	}

	b := c.Baseline
	if b.Window < 1 {
		return fmt.Errorf("%w: baseline.window must be >= 1, got %d", ErrInvalid, b.Window)
	}
	if b.Quantile < 0 || b.Quantile > 1 {
		return fmt.Errorf("%w: baseline.quantile must be within [0, 1], got %g", ErrInvalid, b.Quantile)
	}
	if b.Method != QuantileLinear && b.Method != QuantileEmpirical {
		return fmt.Errorf("%w: baseline.method %q", ErrInvalid, b.Method)
	}
	if b.Offset <= 0 {
		return fmt.Errorf("%w: baseline.offset must be positive, got %g", ErrInvalid, b.Offset)
	}

	d := c.Detection
	if d.Count < 1 {
		return fmt.Errorf("%w: detection.count must be >= 1", ErrInvalid)
	}
	if d.MinDistance < 0 || d.StartOffset < 0 {
		return fmt.Errorf("%w: detection distances must be >= 0", ErrInvalid)
	}
	if d.SmoothingWindow < 1 {
		return fmt.Errorf("%w: detection.smoothing_window must be >= 1", ErrInvalid)
	}
	if d.MinDistance == 0 && (d.MinLag < 1 || d.MaxLag <= d.MinLag) {
		return fmt.Errorf("%w: interval estimation needs 1 <= min_lag < max_lag", ErrInvalid)
	}

	r := c.Response
	if r.EndOffset < r.StartOffset {
		return fmt.Errorf("%w: response.end_offset %d before start_offset %d", ErrInvalid, r.EndOffset, r.StartOffset)
	}
	if r.SmoothingWindow < 1 {
		return fmt.Errorf("%w: response.smoothing_window must be >= 1", ErrInvalid)
	}
	for _, iv := range r.Intervals {
		if iv.Start < 0 || iv.End < iv.Start {
			return fmt.Errorf("%w: response interval (%d, %d)", ErrInvalid, iv.Start, iv.End)
		}
	}
	if r.Floor != FloorZero && r.Floor != FloorMinPositive {
		return fmt.Errorf("%w: response.floor %q", ErrInvalid, r.Floor)
	}

	if err := c.Schedule.Validate(); err != nil {
		return err
	}

	edges := c.Aggregate.AmplitudeEdges
	if len(edges) < 1 || !slices.IsSorted(edges) {
		return fmt.Errorf("%w: aggregate.amplitude_edges must be non-empty and ascending", ErrInvalid)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalid)
	}

	return nil
}

// Validate checks category names, onset order and bin ranges
func (s Schedule) Validate() error {
	if len(s.Categories) < 2 {
		return fmt.Errorf("%w: schedule needs at least two categories", ErrInvalid)
	}

	seen := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		if c.Name == "" {
			return fmt.Errorf("%w: schedule category without a name", ErrInvalid)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalid, c.Name)
		}
		seen[c.Name] = true

		if !slices.IsSorted(c.Onsets) {
			return fmt.Errorf("%w: onsets of %q must be ascending", ErrInvalid, c.Name)
		}
		for _, bin := range c.Bins {
			if !(bin.Lower < bin.UpperBound()) {
				return fmt.Errorf("%w: bin %s of %q is empty", ErrInvalid, bin, c.Name)
			}
		}
	}

	if !seen[s.Numerator] || !seen[s.Denominator] {
		return fmt.Errorf("%w: numerator %q and denominator %q must name categories", ErrInvalid, s.Numerator, s.Denominator)
	}
	if s.Numerator == s.Denominator {
		return fmt.Errorf("%w: numerator and denominator must differ", ErrInvalid)
	}

	return nil
}
