// Package baseline estimates the slowly varying fluorescence floor of a
// trace and normalizes the trace against it.
package baseline

import (
	"github.com/RyanBlaney/tracequant/algorithms/common"
	"github.com/RyanBlaney/tracequant/config"
)

// Estimator computes a centered rolling low-quantile baseline
type Estimator struct {
	window   int
	quantile float64
	method   config.QuantileMethod
}

// NewEstimator creates a baseline estimator from the baseline configuration
func NewEstimator(cfg config.BaselineConfig) *Estimator {
	return &Estimator{
		window:   cfg.Window,
		quantile: cfg.Quantile,
		method:   cfg.Method,
	}
}

// Compute returns the baseline of trace: the full rolling quantile series
// with its left edge pinned to the first fully centered value
func (e *Estimator) Compute(trace []float64) []float64 {
	series := e.Rolling(trace)
	PinLeftEdge(series, e.window)
	return series
}

// Rolling computes the q-quantile of a centered window at every timepoint.
// Windows are clipped at the trace bounds and hold at least one sample.
func (e *Estimator) Rolling(trace []float64) []float64 {
	n := len(trace)
	result := make([]float64, n)
	if n == 0 {
		return result
	}

	window := common.NewSortedWindow(min(e.window, n))
	curStart, curEnd := 0, 0

	for t := range n {
		start, end := common.CenteredBounds(t, n, e.window)

		// Both bounds only move forward, so the window is updated incrementally
		for ; curEnd < end; curEnd++ {
			window.Insert(trace[curEnd])
		}
		for ; curStart < start; curStart++ {
			window.Remove(trace[curStart])
		}

		result[t] = e.quantileOf(window.Sorted())
	}

	return result
}

func (e *Estimator) quantileOf(sorted []float64) float64 {
	if e.method == config.QuantileEmpirical {
		return common.EmpiricalQuantile(sorted, e.quantile)
	}
	return common.LinearQuantile(sorted, e.quantile)
}

// PinLeftEdge overwrites the first window/2 values with the value at index
// window/2, where the first full centered window is available. For series no
// longer than window/2 the last value is used instead.
func PinLeftEdge(series []float64, window int) {
	if len(series) == 0 {
		return
	}

	half := window / 2
	pin := min(half, len(series)-1)
	value := series[pin]

	for i := 0; i < half && i < len(series); i++ {
		series[i] = value
	}
}
