// Package stats holds population-level summaries over traces and their
// per-trace metrics.
package stats

import (
	"sort"

	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
)

// Rank returns trace indices ordered by metric, largest first. Undefined
// ratios rank above every value and Excluded metrics go last; ties keep
// index order.
func Rank(values []selectivity.Metric) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return ranksBefore(values[order[a]], values[order[b]])
	})
	return order
}

func ranksBefore(a, b selectivity.Metric) bool {
	ra, rb := tier(a), tier(b)
	if ra != rb {
		return ra < rb
	}
	av, _ := a.Float()
	bv, _ := b.Float()
	return av > bv
}

func tier(m selectivity.Metric) int {
	switch m.Kind() {
	case selectivity.KindUndefined:
		return 0
	case selectivity.KindValue:
		return 1
	default:
		return 2
	}
}
