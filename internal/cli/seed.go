package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/datagen"
	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

var (
	seedStart        string
	seedDays         int
	seedEventsPerDay int
	seedUsers        int
	seedProducts     int
	seedProfile      string
	seedRandomSeed   uint64
	seedBatchSize    int
	seedDropExisting bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the raw staging table with synthetic clickstream",
	Long: `Create raw_ecommerce_events if needed and fill it with synthetic
events for a range of days. Existing raw rows of those days are replaced;
with --drop-existing the whole staging table is recreated first.
Output is reproducible for a given --seed.

Example:
  pgedge-starload seed --start 2019-10-01 --days 7 --events-per-day 50000
  pgedge-starload seed --profile store-global --seed 42`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedStart, "start", "",
		"first day to generate (YYYY-MM-DD)")
	seedCmd.Flags().IntVar(&seedDays, "days", 0,
		"number of consecutive days")
	seedCmd.Flags().IntVar(&seedEventsPerDay, "events-per-day", 0,
		"raw events per day")
	seedCmd.Flags().IntVar(&seedUsers, "users", 0,
		"number of distinct user ids")
	seedCmd.Flags().IntVar(&seedProducts, "products", 0,
		"number of distinct product ids")
	seedCmd.Flags().StringVar(&seedProfile, "profile", "",
		"traffic profile: store-regional, store-global, flat")
	seedCmd.Flags().Uint64Var(&seedRandomSeed, "seed", 0,
		"random seed for reproducible output (0 = random)")
	seedCmd.Flags().IntVar(&seedBatchSize, "batch-size", 0,
		"rows per COPY batch")
	seedCmd.Flags().BoolVar(&seedDropExisting, "drop-existing", false,
		"drop and recreate the raw staging table before generating")
}

func runSeed(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	s := &cfg.Seed
	if seedStart != "" {
		s.StartDate = seedStart
	}
	if seedDays > 0 {
		s.Days = seedDays
	}
	if seedEventsPerDay > 0 {
		s.EventsPerDay = seedEventsPerDay
	}
	if seedUsers > 0 {
		s.Users = seedUsers
	}
	if seedProducts > 0 {
		s.Products = seedProducts
	}
	if seedProfile != "" {
		s.Profile = seedProfile
	}
	if seedRandomSeed > 0 {
		s.RandomSeed = seedRandomSeed
	}
	if seedBatchSize > 0 {
		s.BatchSize = seedBatchSize
	}

	if err := cfg.ValidateSeed(); err != nil {
		return err
	}
	profile, err := datagen.GetProfile(s.Profile)
	if err != nil {
		return err
	}
	start, err := pipeline.ParseDay(s.StartDate)
	if err != nil {
		return err
	}

	gen, err := datagen.NewGenerator(datagen.Options{
		EventsPerDay: s.EventsPerDay,
		Users:        s.Users,
		Products:     s.Products,
		Profile:      profile,
		Seed:         s.RandomSeed,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Connection, int32(cfg.MaxConns))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if seedDropExisting {
		logging.Info().Str("table", warehouse.TableRawEvents).Msg("Dropping existing staging table")
		if err := warehouse.DropStagingTable(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop %s: %w", warehouse.TableRawEvents, err)
		}
	}
	if err := warehouse.CreateStagingTable(ctx, pool); err != nil {
		return fmt.Errorf("failed to create %s: %w", warehouse.TableRawEvents, err)
	}

	days := pipeline.Range(start, start.AddDays(s.Days-1))
	total := int64(len(days)) * int64(s.EventsPerDay)

	logging.Info().
		Str("start", start.String()).
		Int("days", len(days)).
		Int64("rows", total).
		Str("profile", profile.Name()).
		Uint64("seed", gen.Seed()).
		Msg("Generating raw events")

	progress := datagen.NewProgressReporter(warehouse.TableRawEvents, total, max(total/10, 1))
	for _, day := range days {
		if ctx.Err() != nil {
			return fmt.Errorf("seeding stopped before %s: %w", day, ctx.Err())
		}
		if _, err := gen.Load(ctx, pool, day, s.BatchSize, progress); err != nil {
			return err
		}
		logging.Debug().Str("logical_date", day.String()).Msg("Day seeded")
	}
	progress.Done()

	// Refresh planner statistics for the range scans of the loaders.
	if _, err := pool.Exec(context.WithoutCancel(ctx), "ANALYZE "+warehouse.TableRawEvents); err != nil {
		logging.Warn().Err(err).Msg("Failed to analyze raw table")
	}
	return nil
}
