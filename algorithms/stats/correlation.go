package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
)

// CorrelationMatrix computes Pearson correlations between every pair of
// traces using gonum. Pairs involving a constant trace are NaN, and the
// diagonal is 1 for non-constant traces.
func CorrelationMatrix(traces [][]float64) [][]float64 {
	n := len(traces)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := pearson(traces[i], traces[j])
			m[i][j] = r
			m[j][i] = r
		}
	}
	return m
}

// MeanPairwiseCorrelation averages the upper triangle of the correlation
// matrix, skipping undefined pairs. Fewer than one defined pair is Excluded.
func MeanPairwiseCorrelation(traces [][]float64) selectivity.Metric {
	m := CorrelationMatrix(traces)

	var pairs []float64
	for i := range m {
		for _, r := range m[i][i+1:] {
			if !math.IsNaN(r) {
				pairs = append(pairs, r)
			}
		}
	}
	return selectivity.Mean(pairs)
}

func pearson(a, b []float64) float64 {
	if len(a) < 2 || len(a) != len(b) || constant(a) || constant(b) {
		return math.NaN()
	}
	return stat.Correlation(a, b, nil)
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}
