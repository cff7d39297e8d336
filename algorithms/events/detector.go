// Package events discovers stimulus-locked response peaks in normalized
// traces when stimulus times are not known in advance, and infers the onset
// of each response.
package events

import (
	"github.com/RyanBlaney/tracequant/algorithms/common"
	"github.com/RyanBlaney/tracequant/config"
)

// Result holds the detected peaks and onsets of one trace, aligned by index
type Result struct {
	Peaks        []int `json:"peaks"`
	Onsets       []int `json:"onsets"`
	Interval     int   `json:"interval"`     // minimum spacing used, configured or estimated
	Insufficient bool  `json:"insufficient"` // fewer candidates than requested
}

// Events pairs each peak with its onset
func (r Result) Events() []Event {
	out := make([]Event, len(r.Peaks))
	for i := range r.Peaks {
		out[i] = Event{Peak: r.Peaks[i], Onset: r.Onsets[i]}
	}
	return out
}

// Event is one detected response
type Event struct {
	Peak  int `json:"peak"`
	Onset int `json:"onset"`
}

// Detector finds a fixed number of stimulus-locked peaks per trace
type Detector struct {
	cfg config.DetectionConfig
}

// NewDetector creates a detector from the detection configuration
func NewDetector(cfg config.DetectionConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect smooths the trace, finds peaks at least the stimulus interval apart
// after the start offset, keeps the Count highest in time order, and takes
// each onset as the last local minimum within one interval before the peak.
// A peak with no such minimum is its own onset. Fewer candidates than Count
// yields an empty, Insufficient result.
func (d *Detector) Detect(trace []float64) Result {
	smoothed := common.RollingMean(trace, d.cfg.SmoothingWindow)

	start := d.cfg.StartOffset
	if start >= len(smoothed) {
		return Result{Insufficient: true}
	}
	region := smoothed[start:]

	interval := d.cfg.MinDistance
	if interval == 0 {
		est, ok := EstimateInterval(region, d.cfg.MinLag, d.cfg.MaxLag)
		if !ok {
			return Result{Insufficient: true}
		}
		interval = est
	}

	candidates := FindPeaks(region, interval)
	if len(candidates) < d.cfg.Count {
		return Result{Interval: interval, Insufficient: true}
	}

	peaks := TopPeaks(region, candidates, d.cfg.Count)
	onsets := make([]int, len(peaks))
	for i := range peaks {
		peaks[i] += start
		onsets[i] = Onset(smoothed, peaks[i], interval)
	}

	return Result{
		Peaks:    peaks,
		Onsets:   onsets,
		Interval: interval,
	}
}

// Onset returns the last strict local minimum in the interval samples before
// peak, or peak itself when there is none
func Onset(x []float64, peak, interval int) int {
	if onset, ok := LastLocalMinimum(x, max(0, peak-interval), peak); ok {
		return onset
	}
	return peak
}
