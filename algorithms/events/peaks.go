package events

import (
	"sort"
)

// LocalMaxima finds samples strictly higher than both neighbours. A flat top
// bordered by lower samples reports its midpoint, rounding down. The first
// and last samples are never maxima.
func LocalMaxima(x []float64) []int {
	var peaks []int
	last := len(x) - 1

	i := 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}

			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}

	return peaks
}

// SelectByDistance thins peaks so that the kept ones are at least distance
// samples apart. Higher peaks are kept first; equal heights favour the
// later peak, as scipy's find_peaks does. The result stays in ascending
// position order.
func SelectByDistance(x []float64, peaks []int, distance int) []int {
	if distance <= 1 || len(peaks) < 2 {
		return peaks
	}

	byHeight := make([]int, len(peaks))
	for i := range byHeight {
		byHeight[i] = i
	}
	sort.Slice(byHeight, func(a, b int) bool {
		ha, hb := x[peaks[byHeight[a]]], x[peaks[byHeight[b]]]
		if ha != hb {
			return ha > hb
		}
		return byHeight[a] > byHeight[b]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}

	for _, j := range byHeight {
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	kept := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			kept = append(kept, p)
		}
	}
	return kept
}

// FindPeaks returns local maxima at least distance samples apart
func FindPeaks(x []float64, distance int) []int {
	return SelectByDistance(x, LocalMaxima(x), distance)
}

// TopPeaks keeps the count highest peaks and returns them in time order.
// Equal heights keep the earlier peak.
func TopPeaks(x []float64, peaks []int, count int) []int {
	if count >= len(peaks) {
		out := make([]int, len(peaks))
		copy(out, peaks)
		return out
	}

	ranked := make([]int, len(peaks))
	copy(ranked, peaks)
	sort.SliceStable(ranked, func(a, b int) bool {
		return x[ranked[a]] > x[ranked[b]]
	})

	top := ranked[:count]
	sort.Ints(top)
	return top
}

// LastLocalMinimum returns the last strict local minimum within
// x[start:end), ignoring the region's own first and last samples
func LastLocalMinimum(x []float64, start, end int) (int, bool) {
	for i := end - 2; i > start; i-- {
		if x[i] < x[i-1] && x[i] < x[i+1] {
			return i, true
		}
	}
	return 0, false
}
