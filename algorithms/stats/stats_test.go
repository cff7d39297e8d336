package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
	"github.com/RyanBlaney/tracequant/config"
)

func TestMeanPairwiseCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	c := []float64{5, 4, 3, 2, 1}

	m := MeanPairwiseCorrelation([][]float64{a, b, c})
	v, ok := m.Float()
	require.True(t, ok)
	// pairs: (a,b)=1 (a,c)=-1 (b,c)=-1
	assert.InDelta(t, -1.0/3, v, 1e-12)

	m = MeanPairwiseCorrelation([][]float64{a, {7, 7, 7, 7, 7}})
	assert.Equal(t, selectivity.Excluded(), m, "constant trace forms no pair")

	assert.Equal(t, selectivity.Excluded(), MeanPairwiseCorrelation([][]float64{a}))
}

func TestCorrelationMatrix(t *testing.T) {
	m := CorrelationMatrix([][]float64{{1, 2, 3}, {3, 2, 1}, {0, 0, 0}})
	require.Len(t, m, 3)
	assert.InDelta(t, 1, m[0][0], 1e-12)
	assert.InDelta(t, -1, m[0][1], 1e-12)
	assert.Equal(t, m[0][1], m[1][0])
	assert.True(t, math.IsNaN(m[2][0]))
	assert.True(t, math.IsNaN(m[2][2]))
}

func TestHistogram(t *testing.T) {
	edges := []float64{0, 0.01, 0.02}
	values := []selectivity.Metric{
		selectivity.Value(0),
		selectivity.Value(0.005),
		selectivity.Value(0.01), // right-open: lands in [0.01, 0.02)
		selectivity.Value(0.5),
		selectivity.Value(-0.2),
		selectivity.Undefined(),
		selectivity.Excluded(),
	}

	got := Histogram(values, edges)
	require.Len(t, got, 3)
	assert.Equal(t, BinCount{Bin: config.NewBin(0, 0.01), Count: 2}, got[0])
	assert.Equal(t, BinCount{Bin: config.NewBin(0.01, 0.02), Count: 1}, got[1])
	assert.Equal(t, BinCount{Bin: config.NewBin(0.02, math.Inf(1)), Count: 1}, got[2])
	assert.Equal(t, "[0.02, inf)", got[2].Bin.String())

	empty := Histogram(nil, edges)
	for _, bc := range empty {
		assert.Zero(t, bc.Count)
	}
}

func TestRank(t *testing.T) {
	values := []selectivity.Metric{
		selectivity.Value(0.2),
		selectivity.Excluded(),
		selectivity.Value(1.5),
		selectivity.Undefined(),
		selectivity.Value(0.2),
	}
	assert.Equal(t, []int{3, 2, 0, 4, 1}, Rank(values))
	assert.Empty(t, Rank(nil))
}
