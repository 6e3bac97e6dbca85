//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"context"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
)

// Task identifiers.
const (
	TaskInitSchema   = "init_schema"
	TaskLoadUsers    = "load_users"
	TaskLoadProducts = "load_products"
	TaskLoadDates    = "load_dates"
	TaskLoadFacts    = "load_facts"
)

// step adapts a warehouse function to pipeline.Task.
type step struct {
	id          string
	description string
	upstream    []string
	stage       pipeline.Stage
	run         func(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error)
}

func (s *step) ID() string            { return s.id }
func (s *step) Upstream() []string    { return s.upstream }
func (s *step) Stage() pipeline.Stage { return s.stage }
func (s *step) Description() string   { return s.description }

func (s *step) Execute(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error) {
	return s.run(ctx, conn, day)
}

var dimensionTasks = []string{TaskLoadUsers, TaskLoadProducts, TaskLoadDates}

// Tasks returns the workflow steps:
// init_schema >> [load_users, load_products, load_dates] >> load_facts.
func Tasks() []pipeline.Task {
	return []pipeline.Task{
		&step{
			id:          TaskInitSchema,
			description: "Create warehouse tables and the fact date index",
			stage:       pipeline.StageSchemaReady,
			run: func(ctx context.Context, conn db.DB, _ pipeline.Day) (int64, error) {
				return 0, CreateSchema(ctx, conn)
			},
		},
		&step{
			id:          TaskLoadUsers,
			description: "Append users seen during the day",
			upstream:    []string{TaskInitSchema},
			stage:       pipeline.StageDimensionsLoaded,
			run:         LoadUsers,
		},
		&step{
			id:          TaskLoadProducts,
			description: "Upsert products with their latest category and brand",
			upstream:    []string{TaskInitSchema},
			stage:       pipeline.StageDimensionsLoaded,
			run:         LoadProducts,
		},
		&step{
			id:          TaskLoadDates,
			description: "Add the calendar row for the day",
			upstream:    []string{TaskInitSchema},
			stage:       pipeline.StageDimensionsLoaded,
			run:         LoadDates,
		},
		&step{
			id:          TaskLoadFacts,
			description: "Replace the day's fact partition",
			upstream:    dimensionTasks,
			stage:       pipeline.StageFactsLoaded,
			run: func(ctx context.Context, conn db.DB, day pipeline.Day) (int64, error) {
				res, err := LoadFacts(ctx, conn, day)
				return res.Deleted + res.Inserted, err
			},
		},
	}
}

// NewDAG builds the workflow DAG under the given id.
func NewDAG(dagID string) (*pipeline.DAG, error) {
	return pipeline.NewDAG(dagID, Tasks()...)
}

// Describe returns the human-readable description of a task, if known.
func Describe(t pipeline.Task) string {
	if d, ok := t.(interface{ Description() string }); ok {
		return d.Description()
	}
	return ""
}
