package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions shared by the trace algorithms, using gonum where it fits

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Max returns the largest value, -Inf for an empty slice
func Max(data []float64) float64 {
	if len(data) == 0 {
		return math.Inf(-1)
	}
	return floats.Max(data)
}

// CenteredBounds returns the half-open range [start, end) of a centered
// window of the given size around index i, clipped to [0, n).
// For even sizes the window holds one more sample before i than after it.
func CenteredBounds(i, n, window int) (start, end int) {
	offset := (window - 1) / 2
	end = i + 1 + offset
	start = end - window

	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	return start, end
}

// RollingMean computes a centered moving average. Windows are clipped at the
// signal edges, so every output averages at least one sample.
func RollingMean(data []float64, windowSize int) []float64 {
	result := make([]float64, len(data))
	if windowSize <= 1 {
		copy(result, data)
		return result
	}

	for i := range data {
		start, end := CenteredBounds(i, len(data), windowSize)
		result[i] = floats.Sum(data[start:end]) / float64(end-start)
	}

	return result
}

// LinearQuantile returns the q-quantile of sorted data, interpolating
// linearly between the closest ranks at position q*(n-1)
func LinearQuantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}

	pos := q * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}

	frac := pos - float64(lo)
	if frac == 0 {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// EmpiricalQuantile returns the q-quantile of sorted data from the inverse
// empirical CDF using gonum
func EmpiricalQuantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SanitizeFinite replaces NaN and ±Inf entries with replacement in place
func SanitizeFinite(data []float64, replacement float64) {
	for i, v := range data {
		if !IsFinite(v) {
			data[i] = replacement
		}
	}
}

// MinPositive returns the smallest strictly positive value, or 0 if none
func MinPositive(data []float64) float64 {
	found := false
	low := 0.0
	for _, v := range data {
		if v > 0 && (!found || v < low) {
			low = v
			found = true
		}
	}
	return low
}
