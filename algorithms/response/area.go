package response

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/RyanBlaney/tracequant/algorithms/common"
)

// Area integrates max(v-floor, 0) over unit-spaced samples with Simpson's
// rule, falling back to the trapezoid for two samples. A single sample has
// no extent and integrates to zero.
func Area(window []float64, floor float64) float64 {
	if len(window) < 2 {
		return 0
	}

	f := make([]float64, len(window))
	for i, v := range window {
		f[i] = max(v-floor, 0)
	}

	x := unitSpacing(len(f))
	if len(f) == 2 {
		return integrate.Trapezoidal(x, f)
	}
	return integrate.Simpsons(x, f)
}

// TraceAUC measures whole-trace activity: samples above the trace's lowest
// positive value are shifted down by it, concatenated and integrated with the
// trapezoid rule
func TraceAUC(trace []float64) float64 {
	floor := common.MinPositive(trace)

	above := make([]float64, 0, len(trace))
	for _, v := range trace {
		if d := v - floor; d > 0 {
			above = append(above, d)
		}
	}
	if len(above) < 2 {
		return 0
	}

	return integrate.Trapezoidal(unitSpacing(len(above)), above)
}

func unitSpacing(n int) []float64 {
	x := make([]float64, n)
	floats.Span(x, 0, float64(n-1))
	return x
}
