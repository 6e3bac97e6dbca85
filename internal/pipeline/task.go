package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-starload/internal/db"
)

// Stage is the progress of one logical day through the workflow.
type Stage string

// Stages in the order a successful run reaches them.
const (
	StageUnprocessed      Stage = "unprocessed"
	StageSchemaReady      Stage = "schema-ready"
	StageDimensionsLoaded Stage = "dimensions-loaded"
	StageFactsLoaded      Stage = "facts-loaded"
)

// RunState is the outcome of a day run.
type RunState string

const (
	RunRunning RunState = "running"
	RunSuccess RunState = "success"
	RunFailed  RunState = "failed"
)

// TaskState is the outcome of a task within a day run.
type TaskState string

const (
	TaskSuccess        TaskState = "success"
	TaskFailed         TaskState = "failed"
	TaskUpstreamFailed TaskState = "upstream_failed"
)

// Task is one step of the workflow.
type Task interface {
	// ID returns the task identifier, unique within the DAG.
	ID() string

	// Upstream returns the IDs of the tasks that must succeed first.
	Upstream() []string

	// Stage returns the stage the day reaches once this task and its
	// siblings in the same layer have succeeded.
	Stage() Stage

	// Execute runs the step for the given day and returns the number of
	// rows it inserted, updated or deleted.
	Execute(ctx context.Context, conn db.DB, day Day) (int64, error)
}

// TaskResult records one task execution within a day run.
type TaskResult struct {
	TaskID     string
	State      TaskState
	Attempts   int
	Rows       int64
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Duration returns how long the task ran across all attempts.
func (r TaskResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DayRun is one execution of the DAG for a logical day.
type DayRun struct {
	RunID      uuid.UUID
	DagID      string
	Day        Day
	State      RunState
	Stage      Stage
	StartedAt  time.Time
	FinishedAt time.Time
	Tasks      []TaskResult
	Err        error
}

// Task returns the result for taskID, if the task has finished.
func (r *DayRun) Task(taskID string) (TaskResult, bool) {
	for _, t := range r.Tasks {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return TaskResult{}, false
}

// Recorder persists run progress. Implementations must tolerate being
// called again for the same day with a new run id (reruns).
type Recorder interface {
	StartDay(ctx context.Context, run *DayRun) error
	UpdateDay(ctx context.Context, run *DayRun) error
	RecordTask(ctx context.Context, run *DayRun, result TaskResult) error
}

// Observer receives task and day outcomes for metrics.
type Observer interface {
	ObserveTask(taskID, state string, d time.Duration, rows int64)
	ObserveDay(day time.Time, state string, d time.Duration)
}
