package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/tracequant/algorithms/response"
	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
	"github.com/RyanBlaney/tracequant/config"
	"github.com/RyanBlaney/tracequant/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSummary() *pipeline.Summary {
	return &pipeline.Summary{
		Files: []pipeline.FileResult{{
			Name: "a_normalized.csv",
			Traces: []pipeline.TraceResult{
				{
					Index: 0,
					Selectivity: selectivity.TraceSelectivity{
						AreaIndex: selectivity.Value(0.75),
						PeakIndex: selectivity.Undefined(),
						AreaBin:   selectivity.Assignment{Category: "Dots", Bin: config.NewBin(0.5, 1), OK: true},
						PeakBin:   selectivity.Assignment{Category: "Dots"},
					},
					Responses: []response.Response{
						{Category: "Dots", Onset: 100, Window: [2]int{105, 175}, Area: 2, Peak: 0.5},
						{Category: "Loom", Onset: 200, Window: [2]int{205, 275}, Area: 3, Peak: 0.75},
					},
					AUC: 4.25,
				},
				{
					Index: 1,
					Selectivity: selectivity.TraceSelectivity{
						AreaIndex: selectivity.Excluded(),
						PeakIndex: selectivity.Excluded(),
					},
				},
			},
		}},
		AreaBins: []pipeline.BinCountRow{
			{File: "a_normalized.csv", Category: "Dots", Bin: config.NewBin(0.5, 1), Count: 1},
			{File: "a_normalized.csv", Category: "Loom", Bin: config.NewBin(4, math.Inf(1)), Count: 0},
		},
		PeakBins: []pipeline.BinCountRow{
			{File: "a_normalized.csv", Category: "Dots", Bin: config.NewBin(0.5, 1), Count: 0},
		},
		FailedFiles: []string{"broken_normalized.csv"},
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	cfg := config.Default()
	sum := testSummary()

	runID, err := s.SaveRun(ctx, cfg, sum)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Files)
	assert.Equal(t, 1, run.Failed)
	if diff := cmp.Diff(cfg, run.Config); diff != "" {
		t.Errorf("stored config differs (-want +got):\n%s", diff)
	}

	traces, err := s.TraceIndices(ctx, runID)
	require.NoError(t, err)
	require.Len(t, traces, 2)
	assert.Equal(t, selectivity.Value(0.75), traces[0].AreaIndex)
	assert.Equal(t, selectivity.Undefined(), traces[0].PeakIndex)
	assert.Equal(t, "Dots [0.5, 1)", traces[0].AreaBin)
	assert.Empty(t, traces[0].PeakBin)
	assert.Equal(t, 4.25, traces[0].AUC)
	assert.Equal(t, selectivity.Excluded(), traces[1].AreaIndex)

	area, err := s.BinCounts(ctx, runID, "area")
	require.NoError(t, err)
	if diff := cmp.Diff(sum.AreaBins, area); diff != "" {
		t.Errorf("area bins differ (-want +got):\n%s", diff)
	}

	n, err := s.ResponseCount(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.SaveRun(ctx, config.Default(), testSummary())
	require.NoError(t, err)
	second, err := s.SaveRun(ctx, config.Default(), testSummary())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	ids, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, ids)

	peak, err := s.BinCounts(ctx, second, "peak")
	require.NoError(t, err)
	assert.Len(t, peak, 1)
}

func TestGetMissingRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSaveRunCancelled(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveRun(ctx, config.Default(), testSummary())
	require.Error(t, err)

	ids, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
