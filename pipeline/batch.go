package pipeline

import (
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/tracequant/logging"
	"github.com/RyanBlaney/tracequant/recording"
)

// Source reads the inputs of a batch by name
type Source interface {
	// ReadTable reads a raw acquisition table with a header row
	ReadTable(name string) (recording.Table, error)
	// ReadRecording reads a headerless normalized matrix
	ReadRecording(name string) (*recording.Recording, error)
}

// Normalized is the outcome of normalizing one raw file
type Normalized struct {
	Name      string
	Recording *recording.Recording
	Err       error
}

// Batch processes independent files concurrently. Every result slice comes
// back sorted by file name regardless of completion order.
type Batch struct {
	processor *Processor
	source    Source
	workers   int
	logger    logging.Logger
}

// NewBatch creates a batch runner. Workers comes from the processor's
// configuration; zero means one per CPU.
func NewBatch(processor *Processor, source Source, logger logging.Logger) *Batch {
	workers := processor.Config().Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Batch{
		processor: processor,
		source:    source,
		workers:   workers,
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component": "batch",
		}),
	}
}

// Normalize reads and normalizes each raw table
func (b *Batch) Normalize(ctx context.Context, names []string) []Normalized {
	names = sortedNames(names)
	out := make([]Normalized, len(names))

	b.each(ctx, len(names), func(i int) {
		out[i].Name = names[i]
		table, err := b.source.ReadTable(names[i])
		if err == nil {
			out[i].Recording, err = b.processor.Normalize(names[i], table)
		}
		out[i].Err = b.report(names[i], err)
	}, func(i int, err error) {
		out[i] = Normalized{Name: names[i], Err: err}
	})

	return out
}

// Discover reads each normalized matrix and detects its events
func (b *Batch) Discover(ctx context.Context, names []string) []Detection {
	names = sortedNames(names)
	out := make([]Detection, len(names))

	b.each(ctx, len(names), func(i int) {
		rec, err := b.source.ReadRecording(names[i])
		if err != nil {
			out[i] = Detection{Name: names[i], Err: b.report(names[i], err)}
			return
		}
		out[i] = *b.processor.Discover(rec)
	}, func(i int, err error) {
		out[i] = Detection{Name: names[i], Err: err}
	})

	return out
}

// Quantify reads each normalized matrix and measures its responses
func (b *Batch) Quantify(ctx context.Context, names []string) []FileResult {
	names = sortedNames(names)
	out := make([]FileResult, len(names))

	b.each(ctx, len(names), func(i int) {
		rec, err := b.source.ReadRecording(names[i])
		var res *FileResult
		if err == nil {
			res, err = b.processor.Quantify(rec)
		}
		if err != nil {
			out[i] = FileResult{Name: names[i], Err: b.report(names[i], err)}
			return
		}
		out[i] = *res
	}, func(i int, err error) {
		out[i] = FileResult{Name: names[i], Err: err}
	})

	return out
}

// each runs work for every index with at most b.workers in flight. Indices
// never started because ctx ended are passed to skipped instead.
func (b *Batch) each(ctx context.Context, n int, work func(i int), skipped func(i int, err error)) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			skipped(i, err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				skipped(i, err)
				return nil
			}
			work(i)
			return nil
		})
	}

	// work never fails the group; per-file errors live in the results
	_ = g.Wait()
}

func (b *Batch) report(name string, err error) error {
	if err != nil {
		b.logger.Error(err, "Failed to process file", logging.Fields{"file": name})
	}
	return err
}

func sortedNames(names []string) []string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return sorted
}
