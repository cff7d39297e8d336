package events

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/tracequant/config"
)

// bumps builds a flat trace with Gaussian bumps of the given heights
func bumps(n int, centers []int, heights []float64, sigma float64) []float64 {
	out := make([]float64, n)
	for b, c := range centers {
		for i := range out {
			d := float64(i - c)
			out[i] += heights[b] * math.Exp(-d*d/(2*sigma*sigma))
		}
	}
	return out
}

func detectionConfig(count int) config.DetectionConfig {
	cfg := config.DefaultDetectionConfig()
	cfg.Count = count
	return cfg
}

func TestLocalMaxima(t *testing.T) {
	x := []float64{0, 1, 0, 2, 2, 2, 1, 3, 3, 4, 0, 5}
	// flat top 3..5 reports its midpoint; 7..8 rises again so it is no peak;
	// the last sample is never a peak
	assert.Equal(t, []int{1, 4, 9}, LocalMaxima(x))
	assert.Empty(t, LocalMaxima([]float64{1, 2}))
	assert.Empty(t, LocalMaxima([]float64{1, 1, 1, 1}))
}

func TestSelectByDistancePrefersHigherPeaks(t *testing.T) {
	x := make([]float64, 30)
	x[5], x[8], x[20], x[24] = 1, 3, 2, 2
	peaks := []int{5, 8, 20, 24}

	// 20 and 24 tie; the later one survives
	assert.Equal(t, []int{8, 24}, SelectByDistance(x, peaks, 5))
	assert.Equal(t, peaks, SelectByDistance(x, peaks, 1))
	// a spacing equal to the distance is allowed
	assert.Equal(t, []int{8, 20, 24}, SelectByDistance(x, []int{8, 20, 24}, 4))
}

func TestSelectByDistanceTieKeepsLaterPeak(t *testing.T) {
	x := []float64{0, 4, 0, 4, 0, 4, 0}
	assert.Equal(t, []int{1, 5}, SelectByDistance(x, []int{1, 3, 5}, 3))
	assert.Equal(t, []int{3}, SelectByDistance(x, []int{1, 3}, 3))
}

func TestTopPeaksReturnsTimeOrder(t *testing.T) {
	x := []float64{0, 5, 0, 9, 0, 7, 0, 9, 0}
	assert.Equal(t, []int{3, 5, 7}, TopPeaks(x, []int{1, 3, 5, 7}, 3))
	// ties keep the earlier peak
	assert.Equal(t, []int{3}, TopPeaks(x, []int{1, 3, 5, 7}, 1))
}

func TestOnsetIsLastLocalMinimumBeforePeak(t *testing.T) {
	x := []float64{5, 4, 3, 4, 5, 6, 5, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 7, Onset(x, 13, 10))

	ramp := []float64{0, 1, 2, 3, 4, 5, 6}
	assert.Equal(t, 6, Onset(ramp, 6, 5), "no minimum falls back to the peak")

	// the minima at 2 and 7 lie outside the search window
	assert.Equal(t, 13, Onset(x, 13, 4))
}

func TestDetectGaussianBumps(t *testing.T) {
	centers := []int{400, 700, 1000, 1300, 1600}
	heights := []float64{1.0, 2.0, 1.5, 3.0, 2.5}
	trace := bumps(2000, centers, heights, 10)

	res := NewDetector(detectionConfig(5)).Detect(trace)

	require.False(t, res.Insufficient)
	assert.Equal(t, centers, res.Peaks)
	require.Len(t, res.Onsets, 5)
	assert.Equal(t, 290, res.Interval)
	for i, onset := range res.Onsets {
		assert.LessOrEqual(t, onset, res.Peaks[i])
		assert.GreaterOrEqual(t, onset, res.Peaks[i]-290)
	}
	assert.Len(t, res.Events(), 5)
}

func TestDetectKeepsHighestInTimeOrder(t *testing.T) {
	centers := []int{400, 700, 1000, 1300, 1600, 1900}
	heights := []float64{1.0, 4.0, 0.5, 3.0, 0.7, 2.0}
	trace := bumps(2300, centers, heights, 10)

	res := NewDetector(detectionConfig(3)).Detect(trace)
	assert.Equal(t, []int{700, 1300, 1900}, res.Peaks)
}

func TestDetectIgnoresStartRegion(t *testing.T) {
	trace := bumps(1500, []int{100, 600, 1100}, []float64{9, 1, 1}, 10)

	res := NewDetector(detectionConfig(3)).Detect(trace)
	assert.True(t, res.Insufficient)

	res = NewDetector(detectionConfig(2)).Detect(trace)
	assert.Equal(t, []int{600, 1100}, res.Peaks)
}

func TestDetectInsufficientIsEmpty(t *testing.T) {
	trace := bumps(2500, []int{500, 1100, 1700}, []float64{1, 1, 1}, 10)

	res := NewDetector(detectionConfig(5)).Detect(trace)
	assert.True(t, res.Insufficient)
	assert.Empty(t, res.Peaks)
	assert.Empty(t, res.Onsets)

	res = NewDetector(detectionConfig(1)).Detect(make([]float64, 100))
	assert.True(t, res.Insufficient, "trace shorter than the start offset")
}

func TestEstimateInterval(t *testing.T) {
	var centers []int
	var heights []float64
	for c := 300; c < 4800; c += 290 {
		centers = append(centers, c)
		heights = append(heights, 1)
	}
	trace := bumps(5000, centers, heights, 8)

	lag, ok := EstimateInterval(trace, 50, 1000)
	require.True(t, ok)
	assert.InDelta(t, 290, lag, 1)

	_, ok = EstimateInterval(make([]float64, 500), 50, 400)
	assert.False(t, ok, "flat signal has no period")
}

func TestDetectEstimatesIntervalWhenUnset(t *testing.T) {
	var centers []int
	var heights []float64
	for i := range 14 {
		centers = append(centers, 400+i*290)
		heights = append(heights, 1+0.1*float64(i%3))
	}
	trace := bumps(4600, centers, heights, 8)

	cfg := detectionConfig(14)
	cfg.MinDistance = 0
	res := NewDetector(cfg).Detect(trace)

	require.False(t, res.Insufficient)
	assert.InDelta(t, 290, res.Interval, 1)
	assert.Equal(t, centers, res.Peaks)
}

func TestAutocorrelationZeroLagIsEnergy(t *testing.T) {
	x := []float64{1, -1, 1, -1}
	ac := Autocorrelation(x)
	require.Len(t, ac, 4)
	assert.InDelta(t, 4, ac[0], 1e-9)
	assert.InDelta(t, -3, ac[1], 1e-9)
	assert.InDelta(t, 2, ac[2], 1e-9)
}
