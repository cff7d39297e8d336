// Command tracequant runs the calcium trace pipeline over a directory of
// CSV recordings.
//
//	tracequant normalize -dir data          raw exports -> <name>_normalized.csv
//	tracequant discover  -dir data          stimulus onset and peak tables
//	tracequant quantify  -dir data          per-file neuronal property tables
//	tracequant summarize -dir data -db r.db batch tables, optionally stored in SQLite
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/RyanBlaney/tracequant/config"
	"github.com/RyanBlaney/tracequant/logging"
	"github.com/RyanBlaney/tracequant/pipeline"
	"github.com/RyanBlaney/tracequant/storage/sqlite"
	"github.com/RyanBlaney/tracequant/tableio"
)

type options struct {
	dir      string
	cfgPath  string
	preset   string
	workers  int
	logLevel string

	// quantify
	sortBy string
	// summarize
	dbPath string
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, e *env) error
}

var commands = []command{
	{"normalize", "normalize raw acquisition exports", runNormalize},
	{"discover", "detect stimulus peaks and onsets in normalized matrices", runDiscover},
	{"quantify", "measure responses and selectivity per normalized matrix", runQuantify},
	{"summarize", "write batch tables across every normalized matrix", runSummarize},
}

// env is what every subcommand works with after flag parsing
type env struct {
	opts   options
	cfg    config.Config
	dir    tableio.Dir
	batch  *pipeline.Batch
	rank   *pipeline.RankKey // nil leaves traces in row order
	logger logging.Logger
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	i := slices.IndexFunc(commands, func(c command) bool { return c.name == args[0] })
	if i < 0 {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		return 2
	}
	cmd := commands[i]

	var opts options
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.StringVar(&opts.dir, "dir", ".", "directory holding the input and output tables")
	fs.StringVar(&opts.cfgPath, "config", "", "JSON configuration file (overlays the preset)")
	fs.StringVar(&opts.preset, "preset", "", "protocol preset: dots-loom, dots-loom-5ht, astrocyte")
	fs.IntVar(&opts.workers, "workers", -1, "files processed concurrently (0 = one per CPU, default from config)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	if cmd.name == "quantify" {
		fs.StringVar(&opts.sortBy, "sort-by", "", "rank trace rows and write a sorted matrix: peak-index or mean-peak:<category>")
	}
	if cmd.name == "summarize" {
		fs.StringVar(&opts.dbPath, "db", "", "SQLite database to store the run in")
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := logging.NewDefaultLogger()
	logger.SetLevel(logging.ParseLevel(opts.logLevel))
	logging.SetGlobalLogger(logger)

	e, err := newEnv(opts, logger)
	if err != nil {
		logger.Error(err, "Invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.run(ctx, e); err != nil {
		logger.Error(err, "Command failed", logging.Fields{"command": cmd.name})
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tracequant <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
}

func newEnv(opts options, logger logging.Logger) (*env, error) {
	var (
		cfg config.Config
		err error
	)
	if opts.cfgPath != "" {
		cfg, err = config.Load(opts.cfgPath, opts.preset)
	} else {
		cfg, err = config.Preset(opts.preset)
	}
	if err != nil {
		return nil, err
	}
	if opts.workers >= 0 {
		cfg.Workers = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var rank *pipeline.RankKey
	if opts.sortBy != "" {
		key, err := pipeline.ParseRankKey(opts.sortBy, cfg.Schedule)
		if err != nil {
			return nil, err
		}
		rank = &key
	}

	dir := tableio.Dir{Root: opts.dir}
	processor := pipeline.NewProcessor(cfg, logger)
	return &env{
		opts:   opts,
		cfg:    cfg,
		dir:    dir,
		batch:  pipeline.NewBatch(processor, dir, logger),
		rank:   rank,
		logger: logger,
	}, nil
}

func runNormalize(ctx context.Context, e *env) error {
	names, err := rawInputs(e.dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		e.logger.Warn("No raw recordings found", logging.Fields{"dir": e.dir.Root})
		return nil
	}

	failed := 0
	for _, n := range e.batch.Normalize(ctx, names) {
		if n.Err != nil {
			failed++
			continue
		}
		out := tableio.Stem(n.Name, "") + tableio.NormalizedSuffix
		if err := e.dir.WriteTable(out, func(w *tableio.Writer) { w.Matrix(n.Recording) }); err != nil {
			failed++
			e.logger.Error(err, "Failed to write normalized matrix", logging.Fields{"file": n.Name})
		}
	}
	return report(e, "Normalized recordings", len(names), failed)
}

func runDiscover(ctx context.Context, e *env) error {
	names, err := e.dir.List(tableio.NormalizedSuffix)
	if err != nil {
		return err
	}

	failed := 0
	for _, det := range e.batch.Discover(ctx, names) {
		if det.Err != nil {
			failed++
			continue
		}
		stem := tableio.Stem(det.Name, tableio.NormalizedSuffix)
		err := errors.Join(
			e.dir.WriteTable(stem+tableio.OnsetsSuffix, func(w *tableio.Writer) { w.Detections(&det, true) }),
			e.dir.WriteTable(stem+tableio.PeaksSuffix, func(w *tableio.Writer) { w.Detections(&det, false) }),
		)
		if err != nil {
			failed++
			e.logger.Error(err, "Failed to write detection tables", logging.Fields{"file": det.Name})
		}
	}
	return report(e, "Detected stimulus events", len(names), failed)
}

func runQuantify(ctx context.Context, e *env) error {
	names, err := e.dir.List(tableio.NormalizedSuffix)
	if err != nil {
		return err
	}

	categories := e.cfg.Schedule.Names()
	failed := 0
	for _, res := range e.batch.Quantify(ctx, names) {
		if res.Err != nil {
			failed++
			continue
		}
		table := res
		if e.rank != nil {
			table = res.RankedBy(*e.rank)
		}

		stem := tableio.Stem(res.Name, tableio.NormalizedSuffix)
		err := errors.Join(
			e.dir.WriteTable(stem+tableio.TraceSuffix, func(w *tableio.Writer) { w.TraceTable(categories, &table) }),
			e.dir.WriteTable(stem+tableio.RawSuffix, func(w *tableio.Writer) { w.RawTable(&res) }),
		)
		if err == nil && e.rank != nil {
			err = writeSorted(e, stem, &table)
		}
		if err != nil {
			failed++
			e.logger.Error(err, "Failed to write property tables", logging.Fields{"file": res.Name})
		}
	}
	return report(e, "Quantified recordings", len(names), failed)
}

func runSummarize(ctx context.Context, e *env) error {
	names, err := e.dir.List(tableio.NormalizedSuffix)
	if err != nil {
		return err
	}

	agg := pipeline.NewAggregator(e.cfg, e.logger)
	agg.Add(e.batch.Quantify(ctx, names)...)
	sum := agg.Summary()

	categories := e.cfg.Schedule.Names()
	err = errors.Join(
		e.dir.WriteTable(tableio.AreaBinCountsFile, func(w *tableio.Writer) { w.BinCounts(sum.AreaBins) }),
		e.dir.WriteTable(tableio.PeakBinCountsFile, func(w *tableio.Writer) { w.BinCounts(sum.PeakBins) }),
		e.dir.WriteTable(tableio.AveragesFile, func(w *tableio.Writer) { w.Averages(categories, sum.Averages) }),
		e.dir.WriteTable(tableio.AmplitudesFile, func(w *tableio.Writer) { w.Amplitudes(sum.Amplitudes) }),
		e.dir.WriteTable(tableio.GroupsFile, func(w *tableio.Writer) { w.Groups(sum.Groups) }),
		e.dir.WriteTable(tableio.CellCountsFile, func(w *tableio.Writer) { w.CellCounts(sum.CellCounts) }),
		e.dir.WriteTable(tableio.CorrelationsFile, func(w *tableio.Writer) { w.Correlations(sum.Correlations) }),
	)
	if err != nil {
		return fmt.Errorf("write batch tables: %w", err)
	}

	if e.opts.dbPath != "" {
		store, err := sqlite.Open(e.opts.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := store.SaveRun(ctx, e.cfg, sum)
		if err != nil {
			return fmt.Errorf("store run: %w", err)
		}
		e.logger.Info("Stored run", logging.Fields{"run_id": runID, "db": e.opts.dbPath})
	}

	return report(e, "Summarized batch", len(names), len(sum.FailedFiles))
}

// writeSorted rewrites the normalized matrix with rows in the ranked order
// of the trace table, for heatmaps
func writeSorted(e *env, stem string, ranked *pipeline.FileResult) error {
	rec, err := e.dir.ReadRecording(ranked.Name)
	if err != nil {
		return err
	}

	order := make([]int, len(ranked.Traces))
	for i, tr := range ranked.Traces {
		order[i] = tr.Index
	}
	sorted, err := rec.Reorder(order)
	if err != nil {
		return fmt.Errorf("sort %s: %w", ranked.Name, err)
	}
	return e.dir.WriteTable(stem+tableio.SortedSuffix, func(w *tableio.Writer) { w.Matrix(sorted) })
}

// rawInputs lists the CSV files in dir that are not outputs of a stage
func rawInputs(dir tableio.Dir) ([]string, error) {
	names, err := dir.List(".csv")
	if err != nil {
		return nil, err
	}

	outputs := []string{
		tableio.NormalizedSuffix, tableio.TraceSuffix, tableio.RawSuffix,
		tableio.OnsetsSuffix, tableio.PeaksSuffix, tableio.SortedSuffix,
	}
	batch := []string{
		tableio.AreaBinCountsFile, tableio.PeakBinCountsFile, tableio.AveragesFile,
		tableio.AmplitudesFile, tableio.GroupsFile, tableio.CellCountsFile, tableio.CorrelationsFile,
	}

	return slices.DeleteFunc(names, func(name string) bool {
		if slices.Contains(batch, name) {
			return true
		}
		return slices.ContainsFunc(outputs, func(s string) bool { return strings.HasSuffix(name, s) })
	}), nil
}

func report(e *env, msg string, total, failed int) error {
	e.logger.Info(msg, logging.Fields{"files": total, "failed": failed})
	if total > 0 && failed == total {
		return fmt.Errorf("all %d files failed", total)
	}
	return nil
}
