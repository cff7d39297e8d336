package pipeline

import (
	"slices"
	"strings"

	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
	"github.com/RyanBlaney/tracequant/algorithms/stats"
	"github.com/RyanBlaney/tracequant/config"
	"github.com/RyanBlaney/tracequant/logging"
)

// BinCountRow is the number of traces of one file in one category's bin
type BinCountRow struct {
	File     string     `json:"file"`
	Category string     `json:"category"`
	Bin      config.Bin `json:"bin"`
	Count    int        `json:"count"`
}

// FileAverages are per-file means of trace metrics that hold a value
type FileAverages struct {
	File      string             `json:"file"`
	PeakIndex selectivity.Metric `json:"peak_index"`
	AreaIndex selectivity.Metric `json:"area_index"`
	MeanPeaks []NamedMetric      `json:"mean_peaks"` // schedule order
}

// NamedMetric pairs a category with a metric
type NamedMetric struct {
	Category string             `json:"category"`
	Value    selectivity.Metric `json:"value"`
}

// AmplitudeRow counts one file's per-trace mean peaks of a category in one
// amplitude bin
type AmplitudeRow struct {
	File     string     `json:"file"`
	Category string     `json:"category"`
	Bin      config.Bin `json:"bin"`
	Count    int        `json:"count"`
}

// GroupPool collects the peak indices of every file matched to a condition
type GroupPool struct {
	Label       string               `json:"label"`
	PeakIndices []selectivity.Metric `json:"peak_indices"`
}

// FileCount is the number of traces in one file
type FileCount struct {
	File  string `json:"file"`
	Cells int    `json:"cells"`
}

// FileCorrelation is the mean pairwise trace correlation of one file
type FileCorrelation struct {
	File string             `json:"file"`
	Mean selectivity.Metric `json:"mean"`
}

// Summary holds every batch-level table
type Summary struct {
	Files        []FileResult      `json:"files"`
	AreaBins     []BinCountRow     `json:"area_bins"`
	PeakBins     []BinCountRow     `json:"peak_bins"`
	Averages     []FileAverages    `json:"averages"`
	Amplitudes   []AmplitudeRow    `json:"amplitudes"`
	Groups       []GroupPool       `json:"groups"`
	CellCounts   []FileCount       `json:"cell_counts"`
	Correlations []FileCorrelation `json:"correlations"`
	FailedFiles  []string          `json:"failed_files,omitempty"`
}

// Aggregator folds per-file results into batch tables. Results may be added
// in any order; Summary always orders files by name and traces by index.
type Aggregator struct {
	schedule config.Schedule
	agg      config.AggregateConfig
	files    map[string]FileResult
	logger   logging.Logger
}

// NewAggregator creates an empty aggregator for one configuration
func NewAggregator(cfg config.Config, logger logging.Logger) *Aggregator {
	return &Aggregator{
		schedule: cfg.Schedule,
		agg:      cfg.Aggregate,
		files:    make(map[string]FileResult),
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component": "aggregator",
		}),
	}
}

// Add records one file's result, replacing an earlier result of the same name
func (a *Aggregator) Add(results ...FileResult) {
	for _, r := range results {
		a.files[r.Name] = r
	}
}

// Summary builds every batch table from the results added so far
func (a *Aggregator) Summary() *Summary {
	names := make([]string, 0, len(a.files))
	for name := range a.files {
		names = append(names, name)
	}
	slices.Sort(names)

	s := &Summary{}
	pools := make([]GroupPool, len(a.agg.Groups))
	for i, g := range a.agg.Groups {
		pools[i].Label = g.Label
	}

	for _, name := range names {
		f := a.files[name]
		if f.Err != nil {
			s.FailedFiles = append(s.FailedFiles, name)
			continue
		}

		s.Files = append(s.Files, f)
		s.AreaBins = append(s.AreaBins, a.binCounts(f, areaBin)...)
		s.PeakBins = append(s.PeakBins, a.binCounts(f, peakBin)...)
		s.Averages = append(s.Averages, a.averages(f))
		s.Amplitudes = append(s.Amplitudes, a.amplitudes(f)...)
		s.CellCounts = append(s.CellCounts, FileCount{File: name, Cells: f.Cells()})
		s.Correlations = append(s.Correlations, FileCorrelation{File: name, Mean: f.Correlation})

		if g := a.groupOf(name); g >= 0 {
			for _, tr := range f.Traces {
				pools[g].PeakIndices = append(pools[g].PeakIndices, tr.Selectivity.PeakIndex)
			}
		}
	}
	s.Groups = pools

	a.logger.Info("Aggregated batch", logging.Fields{
		"files":  len(s.Files),
		"failed": len(s.FailedFiles),
	})
	return s
}

func areaBin(t TraceResult) selectivity.Assignment { return t.Selectivity.AreaBin }
func peakBin(t TraceResult) selectivity.Assignment { return t.Selectivity.PeakBin }

// binCounts emits one row per configured (category, bin), zeros included
func (a *Aggregator) binCounts(f FileResult, pick func(TraceResult) selectivity.Assignment) []BinCountRow {
	var rows []BinCountRow
	for _, cat := range a.schedule.Categories {
		for _, bin := range cat.Bins {
			count := 0
			for _, tr := range f.Traces {
				asg := pick(tr)
				if asg.OK && asg.Category == cat.Name && sameBin(asg.Bin, bin) {
					count++
				}
			}
			rows = append(rows, BinCountRow{File: f.Name, Category: cat.Name, Bin: bin, Count: count})
		}
	}
	return rows
}

func (a *Aggregator) averages(f FileResult) FileAverages {
	var peakIdx, areaIdx []float64
	perCat := make([][]float64, len(a.schedule.Categories))

	for _, tr := range f.Traces {
		if v, ok := tr.Selectivity.PeakIndex.Float(); ok {
			peakIdx = append(peakIdx, v)
		}
		if v, ok := tr.Selectivity.AreaIndex.Float(); ok {
			areaIdx = append(areaIdx, v)
		}
		for c, cat := range a.schedule.Categories {
			if v, ok := summaryOf(tr, cat.Name).MeanPeak.Float(); ok {
				perCat[c] = append(perCat[c], v)
			}
		}
	}

	out := FileAverages{
		File:      f.Name,
		PeakIndex: selectivity.Mean(peakIdx),
		AreaIndex: selectivity.Mean(areaIdx),
		MeanPeaks: make([]NamedMetric, len(a.schedule.Categories)),
	}
	for c, cat := range a.schedule.Categories {
		out.MeanPeaks[c] = NamedMetric{Category: cat.Name, Value: selectivity.Mean(perCat[c])}
	}
	return out
}

func (a *Aggregator) amplitudes(f FileResult) []AmplitudeRow {
	var rows []AmplitudeRow
	for _, cat := range a.schedule.Categories {
		peaks := make([]selectivity.Metric, len(f.Traces))
		for i, tr := range f.Traces {
			peaks[i] = summaryOf(tr, cat.Name).MeanPeak
		}
		for _, bc := range stats.Histogram(peaks, a.agg.AmplitudeEdges) {
			rows = append(rows, AmplitudeRow{File: f.Name, Category: cat.Name, Bin: bc.Bin, Count: bc.Count})
		}
	}
	return rows
}

// groupOf returns the first group whose match string is in the file name
func (a *Aggregator) groupOf(name string) int {
	for i, g := range a.agg.Groups {
		if strings.Contains(name, g.Match) {
			return i
		}
	}
	return -1
}

func summaryOf(tr TraceResult, category string) selectivity.Summary {
	for _, s := range tr.Summaries {
		if s.Category == category {
			return s
		}
	}
	return selectivity.Summary{Category: category}
}

func sameBin(a, b config.Bin) bool {
	return a.Lower == b.Lower && a.UpperBound() == b.UpperBound()
}
