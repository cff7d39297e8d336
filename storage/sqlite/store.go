// Package sqlite persists batch results in a single SQLite database so runs
// can be compared and queried after the CSV tables are written.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RyanBlaney/tracequant/algorithms/selectivity"
	"github.com/RyanBlaney/tracequant/config"
	"github.com/RyanBlaney/tracequant/pipeline"
)

//go:embed schema.sql
var schemaSQL string

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
}

// Store wraps the results database
type Store struct {
	db *sql.DB
}

// Run is one stored batch
type Run struct {
	ID        string
	CreatedAt time.Time
	Config    config.Config
	Files     int
	Failed    int
}

// TraceIndex is the stored selectivity of one trace
type TraceIndex struct {
	File      string
	Trace     int
	AreaIndex selectivity.Metric
	PeakIndex selectivity.Metric
	AreaBin   string
	PeakBin   string
	AUC       float64
}

// Open opens or creates the database at path and applies the schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a batch summary under a new run ID in one transaction
func (s *Store) SaveRun(ctx context.Context, cfg config.Config, sum *pipeline.Summary) (string, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	runID := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, config_json, files, failed) VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now().UnixNano(), string(cfgJSON), len(sum.Files), len(sum.FailedFiles),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := insertTraces(ctx, tx, runID, sum.Files); err != nil {
		return "", err
	}
	if err := insertBins(ctx, tx, runID, "area", sum.AreaBins); err != nil {
		return "", err
	}
	if err := insertBins(ctx, tx, runID, "peak", sum.PeakBins); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run %s: %w", runID, err)
	}
	return runID, nil
}

func insertTraces(ctx context.Context, tx *sql.Tx, runID string, files []pipeline.FileResult) error {
	traceStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trace_results (
			run_id, file, trace_index, area_index, area_index_kind,
			peak_index, peak_index_kind, area_bin, peak_bin, auc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trace insert: %w", err)
	}
	defer traceStmt.Close()

	respStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_responses (
			run_id, file, trace_index, category, onset, window_start, window_end, area, peak
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare response insert: %w", err)
	}
	defer respStmt.Close()

	for _, f := range files {
		for _, tr := range f.Traces {
			sel := tr.Selectivity
			_, err := traceStmt.ExecContext(ctx,
				runID, f.Name, tr.Index,
				metricValue(sel.AreaIndex), sel.AreaIndex.Kind().String(),
				metricValue(sel.PeakIndex), sel.PeakIndex.Kind().String(),
				binLabel(sel.AreaBin), binLabel(sel.PeakBin),
				tr.AUC,
			)
			if err != nil {
				return fmt.Errorf("insert trace %s/%d: %w", f.Name, tr.Index, err)
			}

			for _, r := range tr.Responses {
				_, err := respStmt.ExecContext(ctx,
					runID, f.Name, tr.Index, r.Category, r.Onset, r.Window[0], r.Window[1], r.Area, r.Peak,
				)
				if err != nil {
					return fmt.Errorf("insert response %s/%d: %w", f.Name, tr.Index, err)
				}
			}
		}
	}
	return nil
}

func insertBins(ctx context.Context, tx *sql.Tx, runID, measure string, rows []pipeline.BinCountRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bin_counts (run_id, file, measure, position, category, bin_lower, bin_upper, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare %s bin insert: %w", measure, err)
	}
	defer stmt.Close()

	position := make(map[string]int)
	for _, r := range rows {
		pos := position[r.File]
		position[r.File]++

		var upper sql.NullFloat64
		if r.Bin.Upper != nil {
			upper = sql.NullFloat64{Float64: *r.Bin.Upper, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, runID, r.File, measure, pos, r.Category, r.Bin.Lower, upper, r.Count)
		if err != nil {
			return fmt.Errorf("insert %s bin count %s: %w", measure, r.File, err)
		}
	}
	return nil
}

// GetRun loads one run's header
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		created int64
		cfgJSON string
		run     = Run{ID: runID}
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, config_json, files, failed FROM runs WHERE run_id = ?`, runID,
	).Scan(&created, &cfgJSON, &run.Files, &run.Failed)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("decode config of run %s: %w", runID, err)
	}
	run.CreatedAt = time.Unix(0, created)
	return &run, nil
}

// ListRuns returns every run ID, newest first
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TraceIndices returns the stored selectivity of every trace in a run,
// ordered by file then trace
func (s *Store) TraceIndices(ctx context.Context, runID string) ([]TraceIndex, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, trace_index, area_index, area_index_kind, peak_index, peak_index_kind,
		       area_bin, peak_bin, auc
		FROM trace_results
		WHERE run_id = ?
		ORDER BY file, trace_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query traces of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []TraceIndex
	for rows.Next() {
		var (
			ti               TraceIndex
			area, peak       sql.NullFloat64
			areaKind, pkKind string
			areaBin, peakBin sql.NullString
		)
		if err := rows.Scan(&ti.File, &ti.Trace, &area, &areaKind, &peak, &pkKind, &areaBin, &peakBin, &ti.AUC); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		ti.AreaIndex = scanMetric(area, areaKind)
		ti.PeakIndex = scanMetric(peak, pkKind)
		ti.AreaBin = areaBin.String
		ti.PeakBin = peakBin.String
		out = append(out, ti)
	}
	return out, rows.Err()
}

// BinCounts returns the stored bin counts of one measure ("area" or "peak")
// in the order they were saved
func (s *Store) BinCounts(ctx context.Context, runID, measure string) ([]pipeline.BinCountRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, category, bin_lower, bin_upper, count
		FROM bin_counts
		WHERE run_id = ? AND measure = ?
		ORDER BY file, position`, runID, measure)
	if err != nil {
		return nil, fmt.Errorf("query %s bins of run %s: %w", measure, runID, err)
	}
	defer rows.Close()

	var out []pipeline.BinCountRow
	for rows.Next() {
		var (
			r     pipeline.BinCountRow
			lower float64
			upper sql.NullFloat64
		)
		if err := rows.Scan(&r.File, &r.Category, &lower, &upper, &r.Count); err != nil {
			return nil, fmt.Errorf("scan bin count: %w", err)
		}
		hi := math.Inf(1)
		if upper.Valid {
			hi = upper.Float64
		}
		r.Bin = config.NewBin(lower, hi)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResponseCount returns the number of stored raw responses in a run
func (s *Store) ResponseCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_responses WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count responses of run %s: %w", runID, err)
	}
	return n, nil
}

// metricValue stores only finite values; the kind column carries the rest
func metricValue(m selectivity.Metric) sql.NullFloat64 {
	v, ok := m.Float()
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func scanMetric(v sql.NullFloat64, kind string) selectivity.Metric {
	switch kind {
	case selectivity.KindValue.String():
		if v.Valid {
			return selectivity.Value(v.Float64)
		}
	case selectivity.KindUndefined.String():
		return selectivity.Undefined()
	}
	return selectivity.Excluded()
}

func binLabel(a selectivity.Assignment) sql.NullString {
	if !a.OK {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Category + " " + a.Bin.String(), Valid: true}
}
