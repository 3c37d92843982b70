package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/geo-mapper/internal/debug"
	"github.com/geo-mapper/internal/engine"
	"github.com/geo-mapper/internal/match"
)

// Schema creates the audit tables.
const Schema = `
CREATE TABLE IF NOT EXISTS mapping_run (
	run_id        UUID PRIMARY KEY,
	data_path     TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL,
	total_rows    INTEGER NOT NULL,
	strategies    TEXT NOT NULL,
	columns_json  JSONB NOT NULL,
	output_dir    TEXT NOT NULL,
	manual_bound  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS mapping_record (
	run_id        UUID NOT NULL REFERENCES mapping_run(run_id) ON DELETE CASCADE,
	source        TEXT NOT NULL,
	row_index     INTEGER NOT NULL,
	mapped_by     TEXT NOT NULL,
	mapped_value  TEXT NOT NULL,
	mapped_label  TEXT NOT NULL,
	mapped_param  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, source, row_index)
);

CREATE TABLE IF NOT EXISTS mapping_coverage (
	run_id          UUID NOT NULL REFERENCES mapping_run(run_id) ON DELETE CASCADE,
	source          TEXT NOT NULL,
	exported        BOOLEAN NOT NULL DEFAULT FALSE,
	input_rows      INTEGER NOT NULL,
	matched_rows    INTEGER NOT NULL,
	used_ids        INTEGER NOT NULL,
	reference_rows  INTEGER NOT NULL,
	steps_json      JSONB NOT NULL,
	PRIMARY KEY (run_id, source)
);

CREATE INDEX IF NOT EXISTS idx_mapping_run_started ON mapping_run (started_at DESC);
`

// Tracker stores completed mapping runs in postgres.
type Tracker struct {
	db         *sql.DB
	localDebug bool
}

// NewTracker creates a new audit tracker
func NewTracker(db *sql.DB, localDebug bool) *Tracker {
	return &Tracker{db: db, localDebug: localDebug}
}

// EnsureSchema creates the audit tables if they do not exist.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

type recordRow struct {
	Source string
	Row    int
	match.Mapping
}

type coverageRow struct {
	Source   string
	Exported bool
	match.Coverage
	Steps []match.StepStat
}

// recordRows flattens the match records of every dataset in the report.
func recordRows(report *engine.Report) []recordRow {
	var rows []recordRow
	if report.Result == nil {
		return rows
	}
	for _, dr := range report.Result.Datasets {
		for _, index := range dr.Records.Rows() {
			m, _ := dr.Records.Get(index)
			rows = append(rows, recordRow{Source: dr.Dataset.Source, Row: index, Mapping: m})
		}
	}
	return rows
}

func coverageRows(report *engine.Report) []coverageRow {
	var rows []coverageRow
	if report.Result == nil {
		return rows
	}
	exported := make(map[string]bool, len(report.Exported))
	for _, dr := range report.Exported {
		exported[dr.Dataset.Source] = true
	}
	for _, dr := range report.Result.Datasets {
		rows = append(rows, coverageRow{
			Source:   dr.Dataset.Source,
			Exported: exported[dr.Dataset.Source],
			Coverage: dr.Coverage,
			Steps:    dr.Steps,
		})
	}
	return rows
}

// SaveRun stores a run with its records and coverage in one transaction.
func (t *Tracker) SaveRun(ctx context.Context, report *engine.Report) error {
	debug.DebugHeader(t.localDebug)
	defer debug.DebugFooter(t.localDebug)

	columnsJSON, err := json.Marshal(report.Columns)
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}
	var strategies []string
	totalRows := 0
	if report.Result != nil {
		strategies = report.Result.Strategies
		totalRows = report.Result.TotalRows
	}
	strategiesJSON, _ := json.Marshal(strategies)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mapping_run (
			run_id, data_path, started_at, duration_ms, total_rows,
			strategies, columns_json, output_dir, manual_bound
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, report.RunID, report.DataPath, report.StartedAt, report.Duration.Milliseconds(), totalRows,
		string(strategiesJSON), string(columnsJSON), report.OutputDir, report.ManualBound)
	if err != nil {
		return fmt.Errorf("failed to insert mapping run: %w", err)
	}

	records := recordRows(report)
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mapping_record (run_id, source, row_index, mapped_by, mapped_value, mapped_label, mapped_param)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, report.RunID, r.Source, r.Row, r.By, r.Value, r.Label, r.Param); err != nil {
			return fmt.Errorf("failed to insert record for row %d: %w", r.Row, err)
		}
	}
	debug.DebugOutput(t.localDebug, "Inserted %d mapping records", len(records))

	for _, c := range coverageRows(report) {
		stepsJSON, err := json.Marshal(c.Steps)
		if err != nil {
			return fmt.Errorf("failed to encode steps: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mapping_coverage (
				run_id, source, exported, input_rows, matched_rows, used_ids, reference_rows, steps_json
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, report.RunID, c.Source, c.Exported, c.InputRows, c.MatchedRows, c.UsedIDs, c.ReferenceRows, string(stepsJSON))
		if err != nil {
			return fmt.Errorf("failed to insert coverage for %s: %w", c.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	debug.DebugOutput(t.localDebug, "Saved run %s", report.RunID)
	return nil
}

// RunSummary is one stored run.
type RunSummary struct {
	RunID       uuid.UUID     `json:"run_id"`
	DataPath    string        `json:"data_path"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	TotalRows   int           `json:"total_rows"`
	Strategies  []string      `json:"strategies"`
	OutputDir   string        `json:"output_dir"`
	ManualBound int           `json:"manual_bound"`
}

// CoverageEntry is the stored coverage of one dataset in a run.
type CoverageEntry struct {
	Source   string           `json:"source"`
	Exported bool             `json:"exported"`
	Coverage match.Coverage   `json:"coverage"`
	Steps    []match.StepStat `json:"steps"`
}

// RecentRuns lists the latest runs, newest first.
func (t *Tracker) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx, `
		SELECT run_id, data_path, started_at, duration_ms, total_rows, strategies, output_dir, manual_bound
		FROM mapping_run
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var durationMS int64
		var strategies string
		if err := rows.Scan(&run.RunID, &run.DataPath, &run.StartedAt, &durationMS, &run.TotalRows,
			&strategies, &run.OutputDir, &run.ManualBound); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(strategies), &run.Strategies); err != nil {
			debug.DebugOutput(t.localDebug, "Bad strategies for run %s: %v", run.RunID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunCoverage returns the per-dataset coverage of a run.
func (t *Tracker) RunCoverage(ctx context.Context, runID uuid.UUID) ([]CoverageEntry, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT source, exported, input_rows, matched_rows, used_ids, reference_rows, steps_json
		FROM mapping_coverage
		WHERE run_id = $1
		ORDER BY exported DESC, matched_rows DESC, source
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}
	defer rows.Close()

	var entries []CoverageEntry
	for rows.Next() {
		var e CoverageEntry
		var steps string
		if err := rows.Scan(&e.Source, &e.Exported, &e.Coverage.InputRows, &e.Coverage.MatchedRows,
			&e.Coverage.UsedIDs, &e.Coverage.ReferenceRows, &steps); err != nil {
			return nil, fmt.Errorf("failed to scan coverage: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &e.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps of %s: %w", e.Source, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
