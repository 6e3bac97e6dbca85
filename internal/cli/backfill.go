//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/config"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/runlog"
)

var (
	backfillStart string
	backfillEnd   string
	backfillRerun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run every scheduled day that has not succeeded yet",
	Long: `Run the workflow for each logical day due by the schedule, oldest
first and one day at a time. A day is due once it has fully elapsed (UTC).
With catchup enabled every day from start_date is scheduled, otherwise only
the latest one. Days whose last run succeeded are skipped unless --rerun
is given.

Example:
  pgedge-starload backfill --start 2019-10-01 --end 2019-10-31
  pgedge-starload backfill --rerun`,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillStart, "start", "",
		"first logical date (default: workflow.start_date)")
	backfillCmd.Flags().StringVar(&backfillEnd, "end", "",
		"last logical date, inclusive (default: workflow.end_date or yesterday)")
	backfillCmd.Flags().BoolVar(&backfillRerun, "rerun", false,
		"also rerun days that already succeeded")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if backfillStart != "" {
		cfg.Workflow.StartDate = backfillStart
	}
	if backfillEnd != "" {
		cfg.Workflow.EndDate = backfillEnd
	}
	if err := cfg.ValidateWorkflow(); err != nil {
		return err
	}

	schedule, err := scheduleFromConfig(cfg.Workflow)
	if err != nil {
		return err
	}
	days := schedule.Days(time.Now())
	if len(days) == 0 {
		logging.Info().Msg("No logical days are due")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if !backfillRerun {
		done, err := runlog.SucceededDays(ctx, s.pool, cfg.Workflow.DagID)
		if err != nil {
			return fmt.Errorf("failed to read run log: %w", err)
		}
		days = pendingDays(days, done)
		if len(days) == 0 {
			logging.Info().Msg("Every scheduled day has already succeeded")
			return nil
		}
	}

	logging.Info().
		Str("first", days[0].String()).
		Str("last", days[len(days)-1].String()).
		Int("days", len(days)).
		Bool("rerun", backfillRerun).
		Msg("Backfill planned")

	if _, err := s.runner.Backfill(ctx, days); err != nil {
		if stopped(ctx) {
			logging.Info().Msg("Backfill stopped")
		}
		return err
	}
	return nil
}

// scheduleFromConfig builds the schedule from validated workflow settings.
func scheduleFromConfig(w config.WorkflowConfig) (pipeline.Schedule, error) {
	start, err := pipeline.ParseDay(w.StartDate)
	if err != nil {
		return pipeline.Schedule{}, err
	}
	s := pipeline.Schedule{Start: start, Catchup: w.Catchup}
	if w.EndDate != "" {
		if s.End, err = pipeline.ParseDay(w.EndDate); err != nil {
			return pipeline.Schedule{}, err
		}
	}
	return s, nil
}

// pendingDays drops the days recorded as succeeded, keeping order.
func pendingDays(days []pipeline.Day, succeeded map[string]bool) []pipeline.Day {
	pending := make([]pipeline.Day, 0, len(days))
	for _, d := range days {
		if !succeeded[d.String()] {
			pending = append(pending, d)
		}
	}
	return pending
}
