// Package selectivity compares a trace's mean responses between two stimulus
// categories and classifies the resulting index into configured bins.
package selectivity

import (
	"github.com/RyanBlaney/tracequant/config"
)

// Summary is one category's mean response for a single trace
type Summary struct {
	Category  string `json:"category"`
	MeanArea  Metric `json:"mean_area"`
	MeanPeak  Metric `json:"mean_peak"`
	Responses int    `json:"responses"` // surviving (onset, window) pairs
}

// Assignment is the bin a selectivity index fell into
type Assignment struct {
	Category string     `json:"category"` // winning category whose bins were searched
	Bin      config.Bin `json:"bin"`
	OK       bool       `json:"ok"` // false when no bin contains the index
}

// TraceSelectivity holds both indices of one trace with their bins
type TraceSelectivity struct {
	AreaIndex Metric     `json:"area_index"`
	PeakIndex Metric     `json:"peak_index"`
	AreaBin   Assignment `json:"area_bin"`
	PeakBin   Assignment `json:"peak_bin"`
}

// Ratio divides two means. A zero, Undefined or Excluded denominator gives
// Undefined; otherwise a non-value numerator is passed through.
func Ratio(num, den Metric) Metric {
	d, ok := den.Float()
	if !ok || d == 0 {
		return Undefined()
	}
	n, ok := num.Float()
	if !ok {
		return num
	}
	return Value(n / d)
}

// Winner returns aName when a is a value larger than b, or when b has no
// value at all. Ties go to bName.
func Winner(a, b Metric, aName, bName string) string {
	av, ok := a.Float()
	if !ok {
		return bName
	}
	bv, ok := b.Float()
	if !ok || av > bv {
		return aName
	}
	return bName
}

// Assign returns the first bin with lower <= index < upper. Undefined and
// Excluded indices are never binned.
func Assign(index Metric, bins []config.Bin) (config.Bin, bool) {
	v, ok := index.Float()
	if !ok {
		return config.Bin{}, false
	}
	for _, bin := range bins {
		if bin.Contains(v) {
			return bin, true
		}
	}
	return config.Bin{}, false
}

// Evaluate computes the area and peak indices of numerator over denominator
// and bins each under its winning category. A category missing from
// summaries counts as Excluded.
func Evaluate(summaries []Summary, schedule config.Schedule) TraceSelectivity {
	num := find(summaries, schedule.Numerator)
	den := find(summaries, schedule.Denominator)

	out := TraceSelectivity{
		AreaIndex: Ratio(num.MeanArea, den.MeanArea),
		PeakIndex: Ratio(num.MeanPeak, den.MeanPeak),
	}

	out.AreaBin = assignFor(out.AreaIndex,
		Winner(num.MeanArea, den.MeanArea, schedule.Numerator, schedule.Denominator), schedule)
	out.PeakBin = assignFor(out.PeakIndex,
		Winner(num.MeanPeak, den.MeanPeak, schedule.Numerator, schedule.Denominator), schedule)

	return out
}

func assignFor(index Metric, winner string, schedule config.Schedule) Assignment {
	a := Assignment{Category: winner}
	if cat, ok := schedule.Category(winner); ok {
		a.Bin, a.OK = Assign(index, cat.Bins)
	}
	return a
}

func find(summaries []Summary, name string) Summary {
	for _, s := range summaries {
		if s.Category == name {
			return s
		}
	}
	return Summary{Category: name}
}
