//go:build integration

package runlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/testutil"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

func TestRecorderTracksRuns(t *testing.T) {
	pool, _ := testutil.NewTestDB(t, "runlog")
	ctx := context.Background()

	require.NoError(t, Ensure(ctx, pool))
	require.NoError(t, Ensure(ctx, pool), "ensure is idempotent")
	require.NoError(t, warehouse.CreateStagingTable(ctx, pool))

	dag, err := warehouse.NewDAG("ecommerce_test")
	require.NoError(t, err)
	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		DAG:              dag,
		DB:               pool,
		Recorder:         NewRecorder(pool),
		ExecutionTimeout: time.Minute,
	})
	require.NoError(t, err)

	first, err := runner.RunDay(ctx, pipeline.MustParseDay("2019-10-01"))
	require.NoError(t, err)

	records, err := Recent(ctx, pool, "ecommerce_test", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, first.RunID, rec.RunID)
	assert.Equal(t, "success", rec.State)
	assert.Equal(t, "facts-loaded", rec.Stage)
	assert.Equal(t, "2019-10-01", rec.Day().String())
	assert.NotNil(t, rec.FinishedAt)
	assert.Nil(t, rec.Error)

	tasks, err := Tasks(ctx, pool, first.RunID)
	require.NoError(t, err)
	assert.Len(t, tasks, 5)
	for _, task := range tasks {
		assert.Equal(t, "success", task.State, task.TaskID)
		assert.Equal(t, 1, task.Attempt, task.TaskID)
	}

	done, err := SucceededDays(ctx, pool, "ecommerce_test")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"2019-10-01": true}, done)

	// A rerun replaces the day's row with the new run.
	second, err := runner.RunDay(ctx, pipeline.MustParseDay("2019-10-01"))
	require.NoError(t, err)
	records, err = Recent(ctx, pool, "ecommerce_test", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second.RunID, records[0].RunID)

	got, err := Get(ctx, pool, "ecommerce_test", pipeline.MustParseDay("2019-10-01"))
	require.NoError(t, err)
	assert.Equal(t, second.RunID, got.RunID)

	_, err = Get(ctx, pool, "ecommerce_test", pipeline.MustParseDay("2019-10-02"))
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	other, err := SucceededDays(ctx, pool, "another_dag")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecorderStoresFailure(t *testing.T) {
	pool, _ := testutil.NewTestDB(t, "runlog")
	ctx := context.Background()
	require.NoError(t, Ensure(ctx, pool))

	rec := NewRecorder(pool)
	run := &pipeline.DayRun{
		RunID:     uuid.New(),
		DagID:     "d",
		Day:       pipeline.MustParseDay("2019-10-02"),
		State:     pipeline.RunRunning,
		Stage:     pipeline.StageUnprocessed,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, rec.StartDay(ctx, run))

	run.Stage = pipeline.StageSchemaReady
	require.NoError(t, rec.UpdateDay(ctx, run))

	taskErr := errors.New("task load_products: unique violation")
	require.NoError(t, rec.RecordTask(ctx, run, pipeline.TaskResult{
		TaskID:     "load_products",
		State:      pipeline.TaskFailed,
		Attempts:   1,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Err:        taskErr,
	}))
	require.NoError(t, rec.RecordTask(ctx, run, pipeline.TaskResult{
		TaskID: "load_facts",
		State:  pipeline.TaskUpstreamFailed,
	}))

	run.State = pipeline.RunFailed
	run.FinishedAt = time.Now().UTC()
	run.Err = taskErr
	require.NoError(t, rec.UpdateDay(ctx, run))

	records, err := Recent(ctx, pool, "d", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].State)
	assert.Equal(t, "schema-ready", records[0].Stage)
	require.NotNil(t, records[0].Error)
	assert.Contains(t, *records[0].Error, "unique violation")

	tasks, err := Tasks(ctx, pool, run.RunID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "load_products", tasks[0].TaskID)
	assert.Equal(t, "upstream_failed", tasks[1].State)
	assert.Nil(t, tasks[1].StartedAt)

	done, err := SucceededDays(ctx, pool, "d")
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestMetadata(t *testing.T) {
	pool, _ := testutil.NewTestDB(t, "runlog")
	ctx := context.Background()

	exists, err := Exists(ctx, pool)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, Ensure(ctx, pool))
	require.NoError(t, SaveMetadata(ctx, pool, "ecommerce_final_project"))

	exists, err = Exists(ctx, pool)
	require.NoError(t, err)
	assert.True(t, exists)

	md, err := GetAllMetadata(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, "ecommerce_final_project", md["dag_id"])
	assert.NotEmpty(t, md["version"])
	assert.NotEmpty(t, md["initialized_at"])

	require.NoError(t, Drop(ctx, pool))
	exists, err = Exists(ctx, pool)
	require.NoError(t, err)
	assert.False(t, exists)
}
