package tableio

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
	"github.com/RyanBlaney/tracequant/pipeline"
	"github.com/RyanBlaney/tracequant/recording"
)

// Writer wraps csv.Writer with one method per result table. Errors are
// sticky and reported by Flush.
type Writer struct {
	csv *csv.Writer
	err error
}

// NewWriter creates a table writer on w
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// Flush writes buffered rows and returns the first error seen
func (w *Writer) Flush() error {
	w.csv.Flush()
	if w.err != nil {
		return w.err
	}
	return w.csv.Error()
}

func (w *Writer) row(cells ...string) {
	if w.err != nil {
		return
	}
	w.err = w.csv.Write(cells)
}

// Matrix writes a headerless matrix, one row per trace
func (w *Writer) Matrix(rec *recording.Recording) {
	for _, tr := range rec.Traces {
		cells := make([]string, len(tr))
		for i, v := range tr {
			cells[i] = formatFloat(v)
		}
		w.row(cells...)
	}
}

// TraceTable writes one row per trace: mean areas, both indices, mean
// peaks, bin labels and whole-trace AUC
func (w *Writer) TraceTable(categories []string, res *pipeline.FileResult) {
	header := []string{"Trace Index"}
	for _, c := range categories {
		header = append(header, "Mean Area "+c)
	}
	header = append(header, "Selectivity Index (Area)", "Selectivity Index (Peak)")
	for _, c := range categories {
		header = append(header, "Mean Peak "+c)
	}
	header = append(header, "Area Bin", "Peak Bin", "AUC")
	w.row(header...)

	for _, tr := range res.Traces {
		cells := []string{strconv.Itoa(tr.Index)}
		for _, c := range categories {
			cells = append(cells, summaryOf(tr, c).MeanArea.String())
		}
		cells = append(cells, tr.Selectivity.AreaIndex.String(), tr.Selectivity.PeakIndex.String())
		for _, c := range categories {
			cells = append(cells, summaryOf(tr, c).MeanPeak.String())
		}
		cells = append(cells,
			assignmentLabel(tr.Selectivity.AreaBin),
			assignmentLabel(tr.Selectivity.PeakBin),
			formatFloat(tr.AUC),
		)
		w.row(cells...)
	}
}

// RawTable writes one row per surviving (trace, category, onset)
func (w *Writer) RawTable(res *pipeline.FileResult) {
	w.row("Trace Index", "Stimulus", "Onset", "Window Start", "Window End", "Area Under Curve", "Peak Value")
	for _, tr := range res.Traces {
		for _, r := range tr.Responses {
			w.row(
				strconv.Itoa(tr.Index),
				r.Category,
				strconv.Itoa(r.Onset),
				strconv.Itoa(r.Window[0]),
				strconv.Itoa(r.Window[1]),
				formatFloat(r.Area),
				formatFloat(r.Peak),
			)
		}
	}
}

// Detections writes peak or onset timepoints, one row per trace. Traces
// with too few peaks get an index and no values.
func (w *Writer) Detections(det *pipeline.Detection, onsets bool) {
	width := 0
	for _, r := range det.Traces {
		width = max(width, len(r.Peaks))
	}

	header := []string{"Trace Index"}
	for i := range width {
		header = append(header, strconv.Itoa(i))
	}
	w.row(header...)

	for i, r := range det.Traces {
		values := r.Peaks
		if onsets {
			values = r.Onsets
		}
		cells := make([]string, width+1)
		cells[0] = strconv.Itoa(i)
		for j, v := range values {
			cells[j+1] = strconv.Itoa(v)
		}
		w.row(cells...)
	}
}

// BinCounts writes one row per (file, category, bin)
func (w *Writer) BinCounts(rows []pipeline.BinCountRow) {
	w.row("File", "Stimulus", "Bin Lower", "Bin Upper", "Count")
	for _, r := range rows {
		w.row(r.File, r.Category, formatFloat(r.Bin.Lower), formatFloat(r.Bin.UpperBound()), strconv.Itoa(r.Count))
	}
}

// Averages writes the per-file means of trace metrics
func (w *Writer) Averages(categories []string, rows []pipeline.FileAverages) {
	header := []string{"File", "Selectivity Index (Peak) Average", "Selectivity Index (Area) Average"}
	for _, c := range categories {
		header = append(header, "Mean Peak "+c+" Average")
	}
	w.row(header...)

	for _, r := range rows {
		cells := []string{r.File, r.PeakIndex.String(), r.AreaIndex.String()}
		for _, c := range categories {
			cells = append(cells, namedValue(r.MeanPeaks, c).String())
		}
		w.row(cells...)
	}
}

// Amplitudes writes the histogram of per-trace mean peaks
func (w *Writer) Amplitudes(rows []pipeline.AmplitudeRow) {
	w.row("File", "Stimulus", "Bin", "Count")
	for _, r := range rows {
		w.row(r.File, r.Category, r.Bin.String(), strconv.Itoa(r.Count))
	}
}

// Groups writes pooled peak indices side by side, one column per group,
// padding shorter columns with empty cells
func (w *Writer) Groups(pools []pipeline.GroupPool) {
	header := make([]string, len(pools))
	depth := 0
	for i, p := range pools {
		header[i] = p.Label + " Selectivity Index (Peak)"
		depth = max(depth, len(p.PeakIndices))
	}
	w.row(header...)

	for j := range depth {
		cells := make([]string, len(pools))
		for i, p := range pools {
			if j < len(p.PeakIndices) {
				cells[i] = p.PeakIndices[j].String()
			}
		}
		w.row(cells...)
	}
}

// CellCounts writes the number of traces per file
func (w *Writer) CellCounts(rows []pipeline.FileCount) {
	w.row("File", "Number of Traces")
	for _, r := range rows {
		w.row(r.File, strconv.Itoa(r.Cells))
	}
}

// Correlations writes the mean pairwise correlation per file
func (w *Writer) Correlations(rows []pipeline.FileCorrelation) {
	w.row("File", "Average Correlation")
	for _, r := range rows {
		w.row(r.File, r.Mean.String())
	}
}

// formatFloat writes the shortest exact form; +Inf is "inf" as in metric cells
func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func assignmentLabel(a selectivity.Assignment) string {
	if !a.OK {
		return ""
	}
	return a.Category + " " + a.Bin.String()
}

func summaryOf(tr pipeline.TraceResult, category string) selectivity.Summary {
	for _, s := range tr.Summaries {
		if s.Category == category {
			return s
		}
	}
	return selectivity.Summary{Category: category}
}

func namedValue(values []pipeline.NamedMetric, category string) selectivity.Metric {
	for _, v := range values {
		if v.Category == category {
			return v.Value
		}
	}
	return selectivity.Excluded()
}
