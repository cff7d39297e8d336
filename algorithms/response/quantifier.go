// Package response measures each scheduled stimulus response on a
// normalized trace as the area and peak of a fixed post-onset window.
package response

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/tracequant/algorithms/common"
	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
	"github.com/RyanBlaney/tracequant/config"
)

// ErrIntervalOutOfRange is returned when an analysis interval starts past
// the end of the trace
var ErrIntervalOutOfRange = errors.New("analysis interval out of range")

// Response is the quantified outcome of one onset on one trace
type Response struct {
	Category string  `json:"category"`
	Onset    int     `json:"onset"`
	Window   [2]int  `json:"window"` // inclusive sample range that was integrated
	Area     float64 `json:"area"`
	Peak     float64 `json:"peak"`
}

// TraceResponses holds every surviving response of one trace and the
// per-category means, in schedule order
type TraceResponses struct {
	Summaries []selectivity.Summary `json:"summaries"`
	Responses []Response            `json:"responses"`
}

// Quantifier measures responses in windows relative to scheduled onsets
type Quantifier struct {
	cfg config.ResponseConfig
}

// NewQuantifier creates a quantifier from the response configuration
func NewQuantifier(cfg config.ResponseConfig) *Quantifier {
	return &Quantifier{cfg: cfg}
}

// Quantify measures every onset of every category that falls inside an
// analysis interval. Windows integrating to exactly zero are dropped, and
// zero peaks are left out of the mean peak.
func (q *Quantifier) Quantify(trace []float64, schedule config.Schedule) (*TraceResponses, error) {
	n := len(trace)
	intervals := q.cfg.Intervals
	if len(intervals) == 0 {
		intervals = []config.Interval{{Start: 0, End: n}}
	}
	for _, iv := range intervals {
		if iv.Start < 0 || iv.Start >= n {
			return nil, fmt.Errorf("%w: interval (%d, %d) on trace of %d samples", ErrIntervalOutOfRange, iv.Start, iv.End, n)
		}
	}

	smoothed := common.RollingMean(trace, q.cfg.SmoothingWindow)

	floor := 0.0
	if q.cfg.Floor == config.FloorMinPositive {
		floor = common.MinPositive(smoothed)
	}

	out := &TraceResponses{
		Summaries: make([]selectivity.Summary, 0, len(schedule.Categories)),
	}

	for _, cat := range schedule.Categories {
		var areas, peaks []float64

		for _, iv := range intervals {
			for _, onset := range cat.Onsets {
				if onset < iv.Start || onset > iv.End {
					continue
				}

				r, ok := q.measure(smoothed, onset, iv.End, floor)
				if !ok {
					continue
				}
				r.Category = cat.Name

				out.Responses = append(out.Responses, r)
				areas = append(areas, r.Area)
				if r.Peak != 0 {
					peaks = append(peaks, r.Peak)
				}
			}
		}

		out.Summaries = append(out.Summaries, selectivity.Summary{
			Category:  cat.Name,
			MeanArea:  selectivity.Mean(areas),
			MeanPeak:  selectivity.Mean(peaks),
			Responses: len(areas),
		})
	}

	return out, nil
}

// measure integrates one window and reports false when it is empty or its
// area is exactly zero
func (q *Quantifier) measure(x []float64, onset, intervalEnd int, floor float64) (Response, bool) {
	start := max(onset+q.cfg.StartOffset, 0)
	end := min(onset+q.cfg.EndOffset, intervalEnd, len(x)-1)
	if start > end {
		return Response{}, false
	}

	window := x[start : end+1]
	area := Area(window, floor)
	if area == 0 {
		return Response{}, false
	}

	return Response{
		Onset:  onset,
		Window: [2]int{start, end},
		Area:   area,
		Peak:   common.Max(window),
	}, true
}
