package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/runlog"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

var initDropExisting bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the warehouse schema",
	Long: `Create the star schema tables and the fact date index, plus the run
log tables. Existing tables are left untouched unless --drop-existing is
given, in which case the warehouse and its run history are dropped first.
The raw staging table is never dropped.

Example:
  pgedge-starload init --connection "postgres://..."`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initDropExisting, "drop-existing", false,
		"drop existing warehouse tables and run history before initialization")
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	// One connection is pinned by the run lock.
	pool, err := db.Connect(ctx, cfg.Connection, int32(max(cfg.MaxConns, 2)))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Dropping under a running backfill would fail its fact loads.
	lock, err := db.AcquireRunLock(ctx, pool, cfg.Workflow.LockKey)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	if initDropExisting {
		logging.Warn().Msg("Dropping existing warehouse schema and run history")
		if err := warehouse.DropSchema(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
		if err := runlog.Drop(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop run log: %w", err)
		}
	}

	logging.Info().Msg("Creating schema")
	if err := warehouse.CreateSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := runlog.Ensure(ctx, pool); err != nil {
		return err
	}
	if err := runlog.SaveMetadata(ctx, pool, cfg.Workflow.DagID); err != nil {
		return err
	}

	logging.Info().
		Str("dag_id", cfg.Workflow.DagID).
		Msg("Schema initialized")
	return nil
}
