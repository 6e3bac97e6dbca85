package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/metrics"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/runlog"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// session is one locked workflow invocation against the warehouse.
type session struct {
	pool      *pgxpool.Pool
	lock      *db.RunLock
	runner    *pipeline.Runner
	collector *metrics.Collector
}

// openSession connects, takes the run lock and prepares the runner.
func openSession(ctx context.Context) (*session, error) {
	w := cfg.Workflow

	dag, err := warehouse.NewDAG(w.DagID)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.Connection, int32(cfg.MaxConns))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	lock, err := db.AcquireRunLock(ctx, pool, w.LockKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	if err := runlog.Ensure(ctx, pool); err != nil {
		lock.Release(ctx)
		pool.Close()
		return nil, err
	}

	collector := metrics.NewCollector(w.DagID)
	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		DAG:              dag,
		DB:               pool,
		Recorder:         runlog.NewRecorder(pool),
		Observer:         collector,
		ExecutionTimeout: w.ExecutionTimeout,
		Retries:          w.Retries,
		RetryDelay:       w.RetryDelay,
		DependsOnPast:    w.DependsOnPast,
	})
	if err != nil {
		lock.Release(ctx)
		pool.Close()
		return nil, err
	}

	logging.Info().
		Str("dag_id", w.DagID).
		Str("dag", dag.String()).
		Dur("execution_timeout", w.ExecutionTimeout).
		Int("retries", w.Retries).
		Msg("Workflow ready")

	return &session{pool: pool, lock: lock, runner: runner, collector: collector}, nil
}

// close prints the summary, pushes metrics and releases the lock.
func (s *session) close() {
	s.runner.PrintSummary()
	s.collector.LogSummary()

	// Cleanup must run even after the invocation context was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if cfg.Metrics.PushgatewayURL != "" {
		if err := s.collector.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logging.Warn().Err(err).Str("url", cfg.Metrics.PushgatewayURL).Msg("Failed to push metrics")
		} else {
			logging.Debug().Str("url", cfg.Metrics.PushgatewayURL).Msg("Metrics pushed")
		}
	}

	s.lock.Release(ctx)
	s.pool.Close()
}

// stopped reports whether err stems from a shutdown signal.
func stopped(ctx context.Context) bool {
	return ctx.Err() != nil
}
