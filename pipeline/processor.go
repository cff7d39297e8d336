// Package pipeline runs the per-file stages over a batch of recordings and
// folds the results into summary tables.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/tracequant/algorithms/baseline"
	"github.com/RyanBlaney/tracequant/algorithms/events"
	"github.com/RyanBlaney/tracequant/algorithms/response"
	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
	"github.com/RyanBlaney/tracequant/algorithms/stats"
	"github.com/RyanBlaney/tracequant/config"
	"github.com/RyanBlaney/tracequant/logging"
	"github.com/RyanBlaney/tracequant/recording"
)

// TraceResult is everything measured on one normalized trace
type TraceResult struct {
	Index       int                          `json:"index"`
	Summaries   []selectivity.Summary        `json:"summaries"`
	Selectivity selectivity.TraceSelectivity `json:"selectivity"`
	Responses   []response.Response          `json:"responses"`
	AUC         float64                      `json:"auc"`
}

// FileResult holds the quantified traces of one file. Err is set when the
// file could not be processed; the other fields are then empty.
type FileResult struct {
	Name        string             `json:"name"`
	Traces      []TraceResult      `json:"traces"`
	Correlation selectivity.Metric `json:"correlation"`
	Err         error              `json:"-"`
}

// Cells returns the number of traces in the file
func (f *FileResult) Cells() int {
	return len(f.Traces)
}

// RankKey names the trace metric a file's traces are ranked by
type RankKey struct {
	// MeanPeakOf ranks by this category's mean peak; empty ranks by peak index
	MeanPeakOf string
}

// ParseRankKey accepts "peak-index" or "mean-peak:<category>" where the
// category must be part of schedule
func ParseRankKey(s string, schedule config.Schedule) (RankKey, error) {
	if s == "peak-index" {
		return RankKey{}, nil
	}
	if cat, ok := strings.CutPrefix(s, "mean-peak:"); ok {
		if _, found := schedule.Category(cat); !found {
			return RankKey{}, fmt.Errorf("%w: rank key names unknown category %q", config.ErrInvalid, cat)
		}
		return RankKey{MeanPeakOf: cat}, nil
	}
	return RankKey{}, fmt.Errorf("%w: rank key %q (want peak-index or mean-peak:<category>)", config.ErrInvalid, s)
}

func (k RankKey) String() string {
	if k.MeanPeakOf == "" {
		return "peak-index"
	}
	return "mean-peak:" + k.MeanPeakOf
}

func (k RankKey) metric(tr TraceResult) selectivity.Metric {
	if k.MeanPeakOf == "" {
		return tr.Selectivity.PeakIndex
	}
	return summaryOf(tr, k.MeanPeakOf).MeanPeak
}

// RankedBy returns a copy of f with traces ordered by the key's metric,
// largest first, Undefined before values and Excluded last. Trace indices
// keep their original row numbers.
func (f *FileResult) RankedBy(key RankKey) FileResult {
	values := make([]selectivity.Metric, len(f.Traces))
	for i, tr := range f.Traces {
		values[i] = key.metric(tr)
	}

	out := *f
	out.Traces = make([]TraceResult, len(f.Traces))
	for i, j := range stats.Rank(values) {
		out.Traces[i] = f.Traces[j]
	}
	return out
}

// Detection holds the discovered events of every trace in one file
type Detection struct {
	Name   string          `json:"name"`
	Traces []events.Result `json:"traces"`
	Err    error           `json:"-"`
}

// Processor applies the per-file stages with one fixed configuration
type Processor struct {
	cfg        config.Config
	normalizer *baseline.Normalizer
	detector   *events.Detector
	quantifier *response.Quantifier
	logger     logging.Logger
}

// NewProcessor builds the stage components from cfg. A nil logger uses the
// package global.
func NewProcessor(cfg config.Config, logger logging.Logger) *Processor {
	return &Processor{
		cfg:        cfg,
		normalizer: baseline.NewNormalizer(cfg.Baseline),
		detector:   events.NewDetector(cfg.Detection),
		quantifier: response.NewQuantifier(cfg.Response),
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component": "processor",
		}),
	}
}

// Config returns the configuration the processor was built with
func (p *Processor) Config() config.Config {
	return p.cfg
}

// Normalize selects the signal channels of a raw acquisition table and
// normalizes every trace against its rolling baseline
func (p *Processor) Normalize(name string, table recording.Table) (*recording.Recording, error) {
	rec, err := recording.SelectChannels(name, table, p.cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("select channels of %s: %w", name, err)
	}

	if step := p.cfg.Channels.StackOffsetStep; step > 0 {
		rec, err = recording.RemoveStackOffsets(rec, step)
		if err != nil {
			return nil, fmt.Errorf("remove stack offsets of %s: %w", name, err)
		}
	}

	out, err := p.normalizer.NormalizeRecording(rec)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", name, err)
	}

	p.logger.Debug("Normalized recording", logging.Fields{
		"file":       name,
		"cells":      out.Cells(),
		"timepoints": out.Timepoints(),
	})
	return out, nil
}

// Discover runs event detection on every trace of a normalized recording.
// Traces with too few candidates keep an empty result and are logged.
func (p *Processor) Discover(rec *recording.Recording) *Detection {
	det := &Detection{
		Name:   rec.Name,
		Traces: make([]events.Result, rec.Cells()),
	}

	for i, trace := range rec.Traces {
		det.Traces[i] = p.detector.Detect(trace)
		if det.Traces[i].Insufficient {
			p.logger.Warn("Fewer peaks than expected stimuli", logging.Fields{
				"file":     rec.Name,
				"trace":    i,
				"expected": p.cfg.Detection.Count,
			})
		}
	}
	return det
}

// Quantify measures every scheduled response on every trace of a
// normalized recording and evaluates both selectivity indices
func (p *Processor) Quantify(rec *recording.Recording) (*FileResult, error) {
	res := &FileResult{
		Name:   rec.Name,
		Traces: make([]TraceResult, 0, rec.Cells()),
	}

	for i, trace := range rec.Traces {
		tr, err := p.quantifier.Quantify(trace, p.cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("quantify %s trace %d: %w", rec.Name, i, err)
		}

		res.Traces = append(res.Traces, TraceResult{
			Index:       i,
			Summaries:   tr.Summaries,
			Selectivity: selectivity.Evaluate(tr.Summaries, p.cfg.Schedule),
			Responses:   tr.Responses,
			AUC:         response.TraceAUC(trace),
		})
	}

	res.Correlation = stats.MeanPairwiseCorrelation(rec.Traces)

	p.logger.Debug("Quantified recording", logging.Fields{
		"file":  rec.Name,
		"cells": rec.Cells(),
	})
	return res, nil
}
