package events

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/tracequant/algorithms/common"
)

// Autocorrelation computes the linear (non-circular) autocorrelation of the
// mean-removed signal for lags 0..len(signal)-1 using mjibson/go-dsp
func Autocorrelation(signal []float64) []float64 {
	n := len(signal)
	if n == 0 {
		return []float64{}
	}

	mean := common.Mean(signal)

	// Zero-pad to at least 2n so the circular correlation does not wrap
	size := 1
	for size < 2*n {
		size <<= 1
	}
	padded := make([]float64, size)
	for i, v := range signal {
		padded[i] = v - mean
	}

	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		spectrum[i] = c * cmplx.Conj(c)
	}
	corr := fft.IFFT(spectrum)

	out := make([]float64, n)
	for i := range out {
		out[i] = real(corr[i])
	}
	return out
}

// EstimateInterval returns the lag of the highest autocorrelation peak in
// [minLag, maxLag], the dominant repetition period of a stimulus train.
// It reports false for flat signals or when no peak lies in range.
func EstimateInterval(signal []float64, minLag, maxLag int) (int, bool) {
	ac := Autocorrelation(signal)
	if len(ac) < 3 || ac[0] <= 0 {
		return 0, false
	}

	lo := max(minLag, 1)
	hi := min(maxLag, len(ac)-2)

	best, bestVal := 0, 0.0
	for lag := lo; lag <= hi; lag++ {
		if ac[lag] > ac[lag-1] && ac[lag] >= ac[lag+1] && (best == 0 || ac[lag] > bestVal) {
			best, bestVal = lag, ac[lag]
		}
	}

	if best == 0 || bestVal <= 0 {
		return 0, false
	}
	return best, true
}
