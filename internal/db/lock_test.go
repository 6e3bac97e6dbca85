//go:build integration

package db

import (
	"context"
	"errors"
	"testing"

	"github.com/pgEdge/pgedge-starload/internal/testutil"
)

func TestRunLockIsExclusive(t *testing.T) {
	pool, _ := testutil.NewTestDB(t, "lock")
	ctx := context.Background()

	first, err := AcquireRunLock(ctx, pool, 4242)
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}

	// A second session must not get the same key.
	_, err = AcquireRunLock(ctx, pool, 4242)
	if !errors.Is(err, ErrRunActive) {
		t.Fatalf("Expected ErrRunActive, got: %v", err)
	}

	// Other keys are independent.
	other, err := AcquireRunLock(ctx, pool, 4243)
	if err != nil {
		t.Fatalf("Acquire on another key failed: %v", err)
	}
	other.Release(ctx)

	first.Release(ctx)
	first.Release(ctx)

	again, err := AcquireRunLock(ctx, pool, 4242)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	again.Release(ctx)
}
