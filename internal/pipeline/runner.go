//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
)

// RunnerConfig holds configuration for the runner.
type RunnerConfig struct {
	DAG *DAG

	// DB must be safe for concurrent use (a pool) when a layer holds more
	// than one task.
	DB db.DB

	Recorder Recorder // optional
	Observer Observer // optional

	ExecutionTimeout time.Duration // per task attempt
	Retries          int           // automatic retries per task
	RetryDelay       time.Duration
	DependsOnPast    bool // stop a backfill at the first failed day
}

// Runner executes the DAG one logical day at a time.
type Runner struct {
	dag              *DAG
	db               db.DB
	recorder         Recorder
	observer         Observer
	executionTimeout time.Duration
	retries          int
	retryDelay       time.Duration
	dependsOnPast    bool

	// Metrics
	daysSucceeded  atomic.Int64
	daysFailed     atomic.Int64
	tasksSucceeded atomic.Int64
	tasksFailed    atomic.Int64
	taskRetries    atomic.Int64
	rowsAffected   atomic.Int64
	startTime      time.Time
}

// NewRunner creates a new runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.DAG == nil {
		return nil, fmt.Errorf("runner requires a dag")
	}
	if cfg.ExecutionTimeout <= 0 {
		return nil, fmt.Errorf("execution timeout must be positive")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be non-negative")
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Runner{
		dag:              cfg.DAG,
		db:               cfg.DB,
		recorder:         recorder,
		observer:         cfg.Observer,
		executionTimeout: cfg.ExecutionTimeout,
		retries:          cfg.Retries,
		retryDelay:       cfg.RetryDelay,
		dependsOnPast:    cfg.DependsOnPast,
		startTime:        time.Now(),
	}, nil
}

// Backfill runs the given days in order, strictly one at a time. A failed
// day does not stop the backfill unless DependsOnPast is set. The returned
// error is non-nil when any day failed or the context was cancelled.
func (r *Runner) Backfill(ctx context.Context, days []Day) ([]*DayRun, error) {
	logging.Info().
		Str("dag_id", r.dag.ID()).
		Int("days", len(days)).
		Msg("Starting backfill")

	runs := make([]*DayRun, 0, len(days))
	failed := 0
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return runs, fmt.Errorf("backfill stopped before %s: %w", day, err)
		}

		run, err := r.RunDay(ctx, day)
		runs = append(runs, run)
		if err == nil {
			continue
		}
		failed++
		if ctx.Err() != nil {
			return runs, fmt.Errorf("backfill stopped during %s: %w", day, ctx.Err())
		}
		if r.dependsOnPast {
			return runs, fmt.Errorf("backfill halted at %s (depends_on_past): %w", day, err)
		}
	}

	if failed > 0 {
		return runs, fmt.Errorf("%d of %d days failed", failed, len(days))
	}
	return runs, nil
}

// RunDay runs every task for one logical day, layer by layer. The day's
// stage advances after each fully successful layer; when a layer fails the
// remaining tasks are marked upstream_failed and not run.
func (r *Runner) RunDay(ctx context.Context, day Day) (*DayRun, error) {
	run := &DayRun{
		RunID:     uuid.New(),
		DagID:     r.dag.ID(),
		Day:       day,
		State:     RunRunning,
		Stage:     StageUnprocessed,
		StartedAt: time.Now().UTC(),
	}
	log := logging.ForDay(run.DagID, day.String())

	log.Info().Str("run_id", run.RunID.String()).Msg("Day run started")
	if err := r.recorder.StartDay(ctx, run); err != nil {
		log.Warn().Err(err).Msg("Failed to record day start")
	}

	for _, layer := range r.dag.Layers() {
		if run.Err != nil {
			for _, t := range layer {
				r.finishTask(ctx, run, TaskResult{TaskID: t.ID(), State: TaskUpstreamFailed})
			}
			continue
		}

		if err := r.runLayer(ctx, run, layer); err != nil {
			run.Err = err
			continue
		}

		run.Stage = layer[0].Stage()
		if err := r.recorder.UpdateDay(ctx, run); err != nil {
			log.Warn().Err(err).Msg("Failed to record stage")
		}
		log.Debug().Str("stage", string(run.Stage)).Msg("Stage reached")
	}

	run.FinishedAt = time.Now().UTC()
	if run.Err != nil {
		run.State = RunFailed
		r.daysFailed.Add(1)
	} else {
		run.State = RunSuccess
		r.daysSucceeded.Add(1)
	}

	// Record the outcome even if the run was interrupted.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.recorder.UpdateDay(recordCtx, run); err != nil {
		log.Warn().Err(err).Msg("Failed to record day outcome")
	}
	if r.observer != nil {
		r.observer.ObserveDay(day.Start(), string(run.State), run.FinishedAt.Sub(run.StartedAt))
	}

	if run.Err != nil {
		log.Error().
			Err(run.Err).
			Str("stage", string(run.Stage)).
			Dur("duration", run.FinishedAt.Sub(run.StartedAt)).
			Msg("Day run failed")
		return run, fmt.Errorf("day %s failed: %w", day, run.Err)
	}

	log.Info().
		Str("stage", string(run.Stage)).
		Dur("duration", run.FinishedAt.Sub(run.StartedAt)).
		Msg("Day run succeeded")
	return run, nil
}

// runLayer executes the tasks of a layer concurrently. A failing task does
// not cancel its siblings: each is an independent transaction and their
// results stay valid. The first error is returned once all have finished.
func (r *Runner) runLayer(ctx context.Context, run *DayRun, layer []Task) error {
	results := make([]TaskResult, len(layer))

	var g errgroup.Group
	for i, t := range layer {
		g.Go(func() error {
			results[i] = r.runTask(ctx, run.Day, t)
			return results[i].Err
		})
	}
	err := g.Wait()

	for _, res := range results {
		r.finishTask(ctx, run, res)
	}
	return err
}

// runTask executes one task with the per-attempt timeout and retry policy.
func (r *Runner) runTask(ctx context.Context, day Day, t Task) TaskResult {
	res := TaskResult{TaskID: t.ID(), StartedAt: time.Now().UTC()}
	log := logging.ForDay(r.dag.ID(), day.String()).With().Str("task", t.ID()).Logger()

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		log.Debug().Int("attempt", attempt).Msg("Task started")

		attemptCtx, cancel := context.WithTimeout(ctx, r.executionTimeout)
		rows, err := t.Execute(attemptCtx, r.db, day)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()

		if err == nil {
			res.State = TaskSuccess
			res.Rows = rows
			res.FinishedAt = time.Now().UTC()
			log.Info().
				Int64("rows", rows).
				Dur("duration", res.Duration()).
				Msg("Task succeeded")
			return res
		}

		if timedOut {
			err = fmt.Errorf("timed out after %s: %w", r.executionTimeout, err)
		}
		err = fmt.Errorf("task %s: %w", t.ID(), err)

		if attempt > r.retries || ctx.Err() != nil {
			res.State = TaskFailed
			res.Err = err
			res.FinishedAt = time.Now().UTC()
			log.Error().Err(err).Int("attempts", attempt).Msg("Task failed")
			return res
		}

		r.taskRetries.Add(1)
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_delay", r.retryDelay).
			Msg("Task failed, retrying")

		select {
		case <-ctx.Done():
			res.State = TaskFailed
			res.Err = fmt.Errorf("task %s: %w", t.ID(), ctx.Err())
			res.FinishedAt = time.Now().UTC()
			return res
		case <-time.After(r.retryDelay):
		}
	}
}

func (r *Runner) finishTask(ctx context.Context, run *DayRun, res TaskResult) {
	run.Tasks = append(run.Tasks, res)

	switch res.State {
	case TaskSuccess:
		r.tasksSucceeded.Add(1)
		r.rowsAffected.Add(res.Rows)
	case TaskFailed:
		r.tasksFailed.Add(1)
	}

	if r.observer != nil && res.State != TaskUpstreamFailed {
		r.observer.ObserveTask(res.TaskID, string(res.State), res.Duration(), res.Rows)
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.recorder.RecordTask(recordCtx, run, res); err != nil {
		logging.Warn().
			Err(err).
			Str("task", res.TaskID).
			Str("logical_date", run.Day.String()).
			Msg("Failed to record task result")
	}
}

// Stats is a snapshot of the runner's counters.
type Stats struct {
	DaysSucceeded  int64
	DaysFailed     int64
	TasksSucceeded int64
	TasksFailed    int64
	TaskRetries    int64
	RowsAffected   int64
	Elapsed        time.Duration
}

// Stats returns the current counters.
func (r *Runner) Stats() Stats {
	return Stats{
		DaysSucceeded:  r.daysSucceeded.Load(),
		DaysFailed:     r.daysFailed.Load(),
		TasksSucceeded: r.tasksSucceeded.Load(),
		TasksFailed:    r.tasksFailed.Load(),
		TaskRetries:    r.taskRetries.Load(),
		RowsAffected:   r.rowsAffected.Load(),
		Elapsed:        time.Since(r.startTime),
	}
}

// PrintSummary logs a final summary of the invocation.
func (r *Runner) PrintSummary() {
	s := r.Stats()
	logging.Info().
		Str("dag_id", r.dag.ID()).
		Dur("duration", s.Elapsed).
		Int64("days_succeeded", s.DaysSucceeded).
		Int64("days_failed", s.DaysFailed).
		Int64("tasks_succeeded", s.TasksSucceeded).
		Int64("tasks_failed", s.TasksFailed).
		Int64("task_retries", s.TaskRetries).
		Int64("rows_affected", s.RowsAffected).
		Msg("Final summary")
}

type nopRecorder struct{}

func (nopRecorder) StartDay(context.Context, *DayRun) error               { return nil }
func (nopRecorder) UpdateDay(context.Context, *DayRun) error              { return nil }
func (nopRecorder) RecordTask(context.Context, *DayRun, TaskResult) error { return nil }
