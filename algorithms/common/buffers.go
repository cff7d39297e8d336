package common

import (
	"math"
	"slices"
	"sort"
)

// SortedWindow keeps the samples of a sliding window in ascending order so
// order statistics can be read without re-sorting at every step.
// NaN samples are ignored on both insert and remove.
type SortedWindow struct {
	values []float64
}

// NewSortedWindow creates an empty window with room for capacity samples
func NewSortedWindow(capacity int) *SortedWindow {
	return &SortedWindow{
		values: make([]float64, 0, capacity),
	}
}

// Insert adds a sample at its sorted position
func (sw *SortedWindow) Insert(v float64) {
	if math.IsNaN(v) {
		return
	}
	idx := sort.SearchFloat64s(sw.values, v)
	sw.values = slices.Insert(sw.values, idx, v)
}

// Remove drops one occurrence of v; it reports false if v was not present
func (sw *SortedWindow) Remove(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	idx := sort.SearchFloat64s(sw.values, v)
	if idx >= len(sw.values) || sw.values[idx] != v {
		return false
	}
	sw.values = slices.Delete(sw.values, idx, idx+1)
	return true
}

// Len returns the number of samples currently held
func (sw *SortedWindow) Len() int {
	return len(sw.values)
}

// Sorted returns the held samples in ascending order. The slice is only
// valid until the next Insert or Remove.
func (sw *SortedWindow) Sorted() []float64 {
	return sw.values
}

// Reset empties the window
func (sw *SortedWindow) Reset() {
	sw.values = sw.values[:0]
}
