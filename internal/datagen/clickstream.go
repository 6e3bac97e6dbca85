//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pgEdge/pgedge-starload/internal/db"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/pipeline"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

// Event types and their relative frequencies.
var (
	eventTypes   = []string{"view", "cart", "remove_from_cart", "purchase"}
	eventWeights = []int{80, 12, 4, 4}
)

// categoryCodes are dotted category paths in the style of the source feed.
var categoryCodes = []string{
	"electronics.smartphone",
	"electronics.audio.headphone",
	"electronics.video.tv",
	"electronics.clocks",
	"computers.notebook",
	"computers.desktop",
	"computers.peripherals.mouse",
	"appliances.kitchen.refrigerators",
	"appliances.kitchen.washer",
	"appliances.environment.vacuum",
	"apparel.shoes",
	"apparel.shoes.keds",
	"furniture.living_room.sofa",
	"furniture.bedroom.bed",
	"construction.tools.drill",
	"auto.accessories.player",
	"kids.toys",
	"sport.bicycle",
	"accessories.bag",
	"country_yard.cultivator",
}

const (
	nullCategoryProbability  = 0.10
	nullBrandProbability     = 0.15
	productSwitchProbability = 0.4
	maxBurst                 = 8
)

// Options configures a Generator.
type Options struct {
	EventsPerDay int
	Users        int
	Products     int
	Profile      Profile

	// Seed makes the output reproducible. Zero picks a random seed.
	Seed uint64
}

type product struct {
	id       int32
	category *string
	brand    *string
	price    *float64
}

// Generator produces synthetic raw events for a logical day. The catalog is
// fixed at construction, so a product keeps its category, brand and price
// across days.
type Generator struct {
	opts    Options
	catalog []product
}

// NewGenerator builds the product catalog.
func NewGenerator(opts Options) (*Generator, error) {
	if opts.EventsPerDay < 1 || opts.Users < 1 || opts.Products < 1 {
		return nil, fmt.Errorf("events per day, users and products must be positive")
	}
	if opts.Users > math.MaxInt32 || opts.Products > math.MaxInt32 {
		return nil, fmt.Errorf("users and products must fit in int32")
	}
	if opts.Profile == nil {
		opts.Profile = flat{}
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	f := NewFakerWithSeed(opts.Seed)
	catalog := make([]product, opts.Products)
	for i := range catalog {
		price := f.Price(1, 2000)
		catalog[i] = product{
			id:       int32(i + 1),
			category: f.Nullable(Choose(f, categoryCodes), nullCategoryProbability),
			brand:    f.Nullable(Truncate(f.Brand(), 255), nullBrandProbability),
			price:    &price,
		}
	}

	return &Generator{opts: opts, catalog: catalog}, nil
}

// Seed returns the effective random seed.
func (g *Generator) Seed() uint64 {
	return g.opts.Seed
}

// Day returns the events of one day ordered by event time. The same
// generator always returns the same events for a given day.
func (g *Generator) Day(day pipeline.Day) []warehouse.RawEvent {
	f := NewFakerWithSeed(g.opts.Seed ^ uint64(day.Start().Unix()))

	hours := make([]int, 24)
	for h := range hours {
		hours[h] = h
	}
	weights := HourlyWeights(g.opts.Profile, day.Start())

	n := g.opts.EventsPerDay
	events := make([]warehouse.RawEvent, 0, n)
	for len(events) < n {
		hour := ChooseWeighted(f, hours, weights)
		ts := day.Start().Add(time.Duration(hour)*time.Hour +
			time.Duration(f.Int(0, 3599))*time.Second)

		user := int32(f.Int(1, g.opts.Users))
		session := f.UUID()
		p := Choose(f, g.catalog)

		burst := f.Int(1, maxBurst)
		for i := 0; i < burst && len(events) < n; i++ {
			if i > 0 {
				ts = ts.Add(time.Duration(f.Int(5, 180)) * time.Second)
				if f.Chance(productSwitchProbability) {
					p = Choose(f, g.catalog)
				}
			}
			if !day.Contains(ts) {
				break
			}
			events = append(events, newEvent(ts, ChooseWeighted(f, eventTypes, eventWeights), p, user, session))
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventTime.Before(events[j].EventTime)
	})
	return events
}

func newEvent(ts time.Time, eventType string, p product, user int32, session string) warehouse.RawEvent {
	productID := p.id
	return warehouse.RawEvent{
		EventTime:    ts,
		EventType:    eventType,
		ProductID:    &productID,
		CategoryCode: p.category,
		Brand:        p.brand,
		Price:        p.price,
		UserID:       &user,
		UserSession:  &session,
	}
}

// Load replaces the raw rows of a day with freshly generated ones in a
// single transaction, copying batchSize rows at a time.
func (g *Generator) Load(ctx context.Context, conn db.DB, day pipeline.Day, batchSize int, progress *ProgressReporter) (int64, error) {
	events := g.Day(day)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin seeding %s: %w", day, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	deleted, err := warehouse.DeleteRawDay(ctx, tx, day)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logging.Debug().
			Str("logical_date", day.String()).
			Int64("rows", deleted).
			Msg("Replaced existing raw rows")
	}

	var copied int64
	for start := 0; start < len(events); start += batchSize {
		end := min(start+batchSize, len(events))
		n, err := warehouse.CopyRawEvents(ctx, tx, events[start:end])
		if err != nil {
			return copied, fmt.Errorf("failed to seed %s: %w", day, err)
		}
		copied += n
		if progress != nil {
			progress.Update(n)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit seed of %s: %w", day, err)
	}
	return copied, nil
}
