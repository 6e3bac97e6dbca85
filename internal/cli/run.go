package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
)

var runDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workflow for one logical day",
	Long: `Run every task of the workflow for a single logical day, whether or
not it ran before. The day's fact partition is replaced, so rerunning a
day after a failure or a raw data correction is safe.

Example:
  pgedge-starload run --date 2019-10-01`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "",
		"logical date to process (YYYY-MM-DD)")
	_ = runCmd.MarkFlagRequired("date")
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateWorkflow(); err != nil {
		return err
	}
	day, err := pipeline.ParseDay(runDate)
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if _, err := s.runner.RunDay(ctx, day); err != nil {
		if stopped(ctx) {
			logging.Info().Str("logical_date", day.String()).Msg("Run stopped")
			return fmt.Errorf("run of %s stopped: %w", day, ctx.Err())
		}
		return err
	}
	return nil
}
