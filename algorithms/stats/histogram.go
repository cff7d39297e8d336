package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
	"github.com/RyanBlaney/tracequant/config"
)

// BinCount is the number of values that fell into one bin
type BinCount struct {
	Bin   config.Bin `json:"bin"`
	Count int        `json:"count"`
}

// EdgeBins turns ascending finite edges into half-open bins, closing with
// an unbounded bin from the last edge
func EdgeBins(edges []float64) []config.Bin {
	bins := make([]config.Bin, len(edges))
	for i, lo := range edges {
		hi := math.Inf(1)
		if i+1 < len(edges) {
			hi = edges[i+1]
		}
		bins[i] = config.NewBin(lo, hi)
	}
	return bins
}

// Histogram counts metric values into the bins described by edges. Values
// below the first edge and metrics without a value are not counted.
func Histogram(values []selectivity.Metric, edges []float64) []BinCount {
	bins := EdgeBins(edges)
	out := make([]BinCount, len(bins))
	for i, b := range bins {
		out[i].Bin = b
	}
	if len(edges) == 0 {
		return out
	}

	x := make([]float64, 0, len(values))
	for _, m := range values {
		if v, ok := m.Float(); ok && v >= edges[0] {
			x = append(x, v)
		}
	}
	if len(x) == 0 {
		return out
	}
	sort.Float64s(x)

	dividers := make([]float64, len(edges)+1)
	copy(dividers, edges)
	dividers[len(edges)] = math.Inf(1)

	counts := stat.Histogram(nil, dividers, x, nil)
	for i, c := range counts {
		out[i].Count = int(c)
	}
	return out
}
