package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/runlog"
)

var (
	runsLimit int
	runsDate  string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent day runs from the run log",
	Long: `Show the latest run of each logical day, newest first. With --date,
show the task results of that day's latest run instead.

Example:
  pgedge-starload runs --limit 10
  pgedge-starload runs --date 2019-10-01`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20,
		"maximum number of days to show")
	runsCmd.Flags().StringVar(&runsDate, "date", "",
		"show task results for this logical date (YYYY-MM-DD)")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if runsLimit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}

	// Read-only lookups use a single connection, not a pool.
	ctx := context.Background()
	conn, err := db.ConnectSingle(ctx, cfg.Connection, "runs")
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	exists, err := runlog.Exists(ctx, conn)
	if err != nil {
		return err
	}
	if !exists {
		cmd.Println("No runs recorded; run 'pgedge-starload init' or 'backfill' first.")
		return nil
	}

	dagID := cfg.Workflow.DagID
	md, err := runlog.GetAllMetadata(ctx, conn)
	if err != nil {
		return err
	}
	if initDag := md["dag_id"]; initDag != "" && initDag != dagID {
		logging.Warn().
			Str("initialized_for", initDag).
			Str("dag_id", dagID).
			Msg("Warehouse was initialized for a different dag_id")
	}

	if runsDate != "" {
		day, err := pipeline.ParseDay(runsDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		rec, err := runlog.Get(ctx, conn, dagID, day)
		if errors.Is(err, pgx.ErrNoRows) {
			cmd.Printf("No run recorded for %s\n", day)
			return nil
		}
		if err != nil {
			return err
		}
		tasks, err := runlog.Tasks(ctx, conn, rec.RunID)
		if err != nil {
			return err
		}
		renderRuns(cmd.OutOrStdout(), []runlog.DayRecord{rec})
		cmd.Println()
		renderTaskRuns(cmd.OutOrStdout(), tasks)
		return nil
	}

	records, err := runlog.Recent(ctx, conn, dagID, runsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Printf("No runs recorded for %s\n", dagID)
		return nil
	}
	renderRuns(cmd.OutOrStdout(), records)
	return nil
}
