package baseline

import (
	"math"
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/tracequant/algorithms/common"
	"github.com/RyanBlaney/tracequant/config"
	"github.com/RyanBlaney/tracequant/recording"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func noisy(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 20*math.Sin(float64(i)/300) + rng.NormFloat64()*5
	}
	return out
}

// bruteRolling sorts every clipped centered window from scratch
func bruteRolling(trace []float64, window int, q float64) []float64 {
	out := make([]float64, len(trace))
	for t := range trace {
		start, end := common.CenteredBounds(t, len(trace), window)
		w := slices.Clone(trace[start:end])
		sort.Float64s(w)
		out[t] = common.LinearQuantile(w, q)
	}
	return out
}

func TestConstantTraceBaselineIsConstant(t *testing.T) {
	est := NewEstimator(config.DefaultBaselineConfig())
	base := est.Compute(constant(6000, 42))

	for i, v := range base {
		require.Equal(t, 42.0, v, "index %d", i)
	}
}

func TestLeftEdgePinnedToHalfWindow(t *testing.T) {
	cfg := config.DefaultBaselineConfig()
	trace := noisy(7000, 1)

	base := NewEstimator(cfg).Compute(trace)
	half := cfg.Window / 2

	for i := 0; i < half; i++ {
		require.Equal(t, base[half], base[i], "index %d", i)
	}
}

func TestRollingMatchesBruteForce(t *testing.T) {
	for _, window := range []int{1, 2, 15, 100, 101} {
		cfg := config.BaselineConfig{Window: window, Quantile: 0.1, Method: config.QuantileLinear, Offset: 10}
		trace := noisy(400, int64(window))

		got := NewEstimator(cfg).Rolling(trace)
		assert.Equal(t, bruteRolling(trace, window, 0.1), got, "window %d", window)
	}
}

func TestRollingPhaseIsNotPinned(t *testing.T) {
	cfg := config.BaselineConfig{Window: 100, Quantile: 0.1, Method: config.QuantileLinear, Offset: 10}
	trace := make([]float64, 300)
	for i := range trace {
		trace[i] = float64(i)
	}

	est := NewEstimator(cfg)
	rolling := est.Rolling(trace)
	pinned := est.Compute(trace)

	assert.NotEqual(t, rolling[0], rolling[50])
	assert.Equal(t, pinned[50], pinned[0])
	assert.Equal(t, rolling[50:], pinned[50:])
}

func TestPinLeftEdgeShortSeries(t *testing.T) {
	series := []float64{1, 2, 3}
	PinLeftEdge(series, 4500)
	assert.Equal(t, []float64{3, 3, 3}, series)

	PinLeftEdge(nil, 10)

	series = []float64{5, 6, 7, 8}
	PinLeftEdge(series, 4)
	assert.Equal(t, []float64{7, 7, 7, 8}, series)
}

func TestEmpiricalMethod(t *testing.T) {
	cfg := config.BaselineConfig{Window: 5, Quantile: 0.5, Method: config.QuantileEmpirical, Offset: 10}
	got := NewEstimator(cfg).Rolling([]float64{5, 1, 4, 2, 3})
	// centered windows: [5 1 4] [5 1 4 2] [5 1 4 2 3] [1 4 2 3] [4 2 3]
	assert.Equal(t, []float64{4, 2, 3, 2, 3}, got)
}

func TestNormalizeExactFormula(t *testing.T) {
	signal := []float64{110, 5, 0, 250.5, -3}
	base := []float64{100, 5, 2.5, 120.25, 7}

	got, err := Normalize(signal, base, 10)
	require.NoError(t, err)

	for i := range signal {
		assert.Equal(t, (signal[i]-base[i])/(base[i]+10), got[i], "index %d", i)
	}
}

func TestNormalizeSanitizesNonFinite(t *testing.T) {
	signal := []float64{5, 5, 0, math.NaN(), math.Inf(1)}
	base := []float64{-10, -10, -10, 1, 1}

	got, err := Normalize(signal, base, 10)
	require.NoError(t, err)
	for i, v := range got {
		assert.True(t, common.IsFinite(v), "index %d", i)
	}
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, got)
}

func TestNormalizeLengthMismatch(t *testing.T) {
	_, err := Normalize([]float64{1, 2}, []float64{1}, 10)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestNormalizeRecordingIsFinite(t *testing.T) {
	traces := [][]float64{noisy(500, 7), constant(500, -10), constant(500, 0)}
	traces[0][17] = math.Inf(1)
	rec, err := recording.New("r.csv", nil, traces)
	require.NoError(t, err)

	cfg := config.DefaultBaselineConfig()
	cfg.Window = 50
	out, err := NewNormalizer(cfg).NormalizeRecording(rec)
	require.NoError(t, err)

	require.Equal(t, 3, out.Cells())
	require.Equal(t, 500, out.Timepoints())
	for r, tr := range out.Traces {
		for i, v := range tr {
			require.True(t, common.IsFinite(v), "row %d index %d", r, i)
		}
	}
	// a trace sitting on its own baseline normalizes to zero
	assert.Equal(t, constant(500, 0), out.Traces[2])
}
