//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package runlog persists day runs, task results and warehouse metadata in
// the warehouse database itself.
package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/pkg/version"
)

const dagRunsTable = "starload_dag_runs"

// createTablesSQL creates the run log tables if they don't exist. One row
// per (dag, logical date) holds the latest run of that day.
const createTablesSQL = `
CREATE TABLE IF NOT EXISTS starload_dag_runs (
    dag_id        TEXT NOT NULL,
    logical_date  DATE NOT NULL,
    run_id        UUID NOT NULL,
    state         TEXT NOT NULL,
    stage         TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ,
    error         TEXT,
    PRIMARY KEY (dag_id, logical_date)
);

CREATE TABLE IF NOT EXISTS starload_task_runs (
    run_id        UUID NOT NULL,
    task_id       TEXT NOT NULL,
    logical_date  DATE NOT NULL,
    state         TEXT NOT NULL,
    attempt       INTEGER NOT NULL,
    rows_affected BIGINT NOT NULL DEFAULT 0,
    started_at    TIMESTAMPTZ,
    finished_at   TIMESTAMPTZ,
    error         TEXT,
    PRIMARY KEY (run_id, task_id)
);

CREATE TABLE IF NOT EXISTS starload_metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const dropTablesSQL = `
DROP TABLE IF EXISTS starload_task_runs;
DROP TABLE IF EXISTS starload_dag_runs;
DROP TABLE IF EXISTS starload_metadata;
`

// Ensure creates the run log tables.
func Ensure(ctx context.Context, conn db.DB) error {
	if _, err := conn.Exec(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("failed to create run log tables: %w", err)
	}
	return nil
}

// Drop removes the run log tables.
func Drop(ctx context.Context, conn db.DB) error {
	_, err := conn.Exec(ctx, dropTablesSQL)
	return err
}

// Recorder implements pipeline.Recorder on top of the run log tables.
type Recorder struct {
	conn db.DB
}

// NewRecorder creates a recorder. Ensure must have been called.
func NewRecorder(conn db.DB) *Recorder {
	return &Recorder{conn: conn}
}

// StartDay replaces any previous run of the day with a running one.
func (r *Recorder) StartDay(ctx context.Context, run *pipeline.DayRun) error {
	_, err := r.conn.Exec(ctx, `
        INSERT INTO starload_dag_runs
            (dag_id, logical_date, run_id, state, stage, started_at, finished_at, error)
        VALUES ($1, $2::DATE, $3, $4, $5, $6, NULL, NULL)
        ON CONFLICT (dag_id, logical_date) DO UPDATE
        SET run_id = EXCLUDED.run_id,
            state = EXCLUDED.state,
            stage = EXCLUDED.stage,
            started_at = EXCLUDED.started_at,
            finished_at = NULL,
            error = NULL
    `, run.DagID, run.Day.Start(), run.RunID, string(run.State), string(run.Stage), run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record start of %s: %w", run.Day, err)
	}
	return nil
}

// UpdateDay stores the run's current stage and, once finished, its outcome.
func (r *Recorder) UpdateDay(ctx context.Context, run *pipeline.DayRun) error {
	_, err := r.conn.Exec(ctx, `
        UPDATE starload_dag_runs
        SET state = $4, stage = $5, finished_at = $6, error = $7
        WHERE dag_id = $1 AND logical_date = $2::DATE AND run_id = $3
    `, run.DagID, run.Day.Start(), run.RunID, string(run.State), string(run.Stage),
		nullTime(run.FinishedAt), errText(run.Err))
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", run.Day, err)
	}
	return nil
}

// RecordTask stores one task result of the run.
func (r *Recorder) RecordTask(ctx context.Context, run *pipeline.DayRun, res pipeline.TaskResult) error {
	_, err := r.conn.Exec(ctx, `
        INSERT INTO starload_task_runs
            (run_id, task_id, logical_date, state, attempt, rows_affected,
             started_at, finished_at, error)
        VALUES ($1, $2, $3::DATE, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (run_id, task_id) DO UPDATE
        SET state = EXCLUDED.state,
            attempt = EXCLUDED.attempt,
            rows_affected = EXCLUDED.rows_affected,
            started_at = EXCLUDED.started_at,
            finished_at = EXCLUDED.finished_at,
            error = EXCLUDED.error
    `, run.RunID, res.TaskID, run.Day.Start(), string(res.State), res.Attempts, res.Rows,
		nullTime(res.StartedAt), nullTime(res.FinishedAt), errText(res.Err))
	if err != nil {
		return fmt.Errorf("failed to record task %s: %w", res.TaskID, err)
	}
	return nil
}

// DayRecord is one row of the dag run log.
type DayRecord struct {
	DagID       string
	LogicalDate time.Time
	RunID       uuid.UUID
	State       string
	Stage       string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Error       *string
}

// Day returns the record's logical day.
func (d DayRecord) Day() pipeline.Day {
	return pipeline.NewDay(d.LogicalDate)
}

// Duration returns the run time, or zero while still running.
func (d DayRecord) Duration() time.Duration {
	if d.FinishedAt == nil {
		return 0
	}
	return d.FinishedAt.Sub(d.StartedAt)
}

// TaskRecord is one row of the task run log.
type TaskRecord struct {
	TaskID       string
	State        string
	Attempt      int
	RowsAffected int64
	StartedAt    *time.Time
	FinishedAt   *time.Time
	Error        *string
}

// SucceededDays returns the logical dates whose latest run succeeded, keyed
// by YYYY-MM-DD.
func SucceededDays(ctx context.Context, conn db.DB, dagID string) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `
        SELECT logical_date FROM starload_dag_runs
        WHERE dag_id = $1 AND state = $2
    `, dagID, string(pipeline.RunSuccess))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		done[pipeline.NewDay(d).String()] = true
	}
	return done, rows.Err()
}

// Recent returns the latest day runs of a DAG, newest logical date first.
func Recent(ctx context.Context, conn db.DB, dagID string, limit int) ([]DayRecord, error) {
	rows, err := conn.Query(ctx, `
        SELECT dag_id, logical_date, run_id, state, stage, started_at, finished_at, error
        FROM starload_dag_runs
        WHERE dag_id = $1
        ORDER BY logical_date DESC
        LIMIT $2
    `, dagID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DayRecord
	for rows.Next() {
		var rec DayRecord
		if err := rows.Scan(&rec.DagID, &rec.LogicalDate, &rec.RunID, &rec.State,
			&rec.Stage, &rec.StartedAt, &rec.FinishedAt, &rec.Error); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns the latest run of one logical day. It returns pgx.ErrNoRows
// when the day has never run.
func Get(ctx context.Context, conn db.DB, dagID string, day pipeline.Day) (DayRecord, error) {
	var rec DayRecord
	err := conn.QueryRow(ctx, `
        SELECT dag_id, logical_date, run_id, state, stage, started_at, finished_at, error
        FROM starload_dag_runs
        WHERE dag_id = $1 AND logical_date = $2::DATE
    `, dagID, day.Start()).Scan(&rec.DagID, &rec.LogicalDate, &rec.RunID, &rec.State,
		&rec.Stage, &rec.StartedAt, &rec.FinishedAt, &rec.Error)
	return rec, err
}

// Tasks returns the task results of a run in start order.
func Tasks(ctx context.Context, conn db.DB, runID uuid.UUID) ([]TaskRecord, error) {
	rows, err := conn.Query(ctx, `
        SELECT task_id, state, attempt, rows_affected, started_at, finished_at, error
        FROM starload_task_runs
        WHERE run_id = $1
        ORDER BY started_at NULLS LAST, task_id
    `, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		if err := rows.Scan(&rec.TaskID, &rec.State, &rec.Attempt, &rec.RowsAffected,
			&rec.StartedAt, &rec.FinishedAt, &rec.Error); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveMetadata records which DAG and version initialized the warehouse.
func SaveMetadata(ctx context.Context, conn db.DB, dagID string) error {
	metadata := map[string]string{
		"dag_id":         dagID,
		"version":        version.Short(),
		"initialized_at": time.Now().UTC().Format(time.RFC3339),
	}

	for key, value := range metadata {
		_, err := conn.Exec(ctx, `
            INSERT INTO starload_metadata (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
        `, key, value)
		if err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", key, err)
		}
	}

	logging.Debug().Str("dag_id", dagID).Msg("Saved metadata")
	return nil
}

// GetAllMetadata retrieves all metadata as a map.
func GetAllMetadata(ctx context.Context, conn db.DB) (map[string]string, error) {
	rows, err := conn.Query(ctx, `SELECT key, value FROM starload_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}
	return metadata, rows.Err()
}

// Exists checks if the run log has been created.
func Exists(ctx context.Context, conn db.DB) (bool, error) {
	var exists bool
	err := conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_name = $1
        )
    `, dagRunsTable).Scan(&exists)
	return exists, err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func errText(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
