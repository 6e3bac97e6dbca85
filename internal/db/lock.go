//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-starload/internal/logging"
)

// ErrRunActive is returned when another process holds the run lock.
var ErrRunActive = errors.New("another run is active")

// RunLock is a session-level advisory lock held on a dedicated pool
// connection. Session locks are released by the server if the process dies,
// so a crashed run never blocks the next one.
type RunLock struct {
	conn *pgxpool.Conn
	key  int64
}

// AcquireRunLock takes the advisory lock identified by key without waiting.
// It returns ErrRunActive when the lock is held elsewhere.
func AcquireRunLock(ctx context.Context, pool *pgxpool.Pool, key int64) (*RunLock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, fmt.Errorf("%w (advisory lock %d is held)", ErrRunActive, key)
	}

	logging.Debug().Int64("lock_key", key).Msg("Run lock acquired")
	return &RunLock{conn: conn, key: key}, nil
}

// Release unlocks and returns the connection to the pool. It is safe to
// call more than once.
func (l *RunLock) Release(ctx context.Context) {
	if l == nil || l.conn == nil {
		return
	}
	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
		// Unlock failed; destroy the session so the server drops the lock.
		logging.Warn().Err(err).Int64("lock_key", l.key).Msg("Failed to release run lock")
		_ = l.conn.Conn().Close(ctx)
	}
	l.conn.Release()
	l.conn = nil
	logging.Debug().Int64("lock_key", l.key).Msg("Run lock released")
}
