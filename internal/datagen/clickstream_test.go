package datagen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-starload/internal/pipeline"
)

func newTestGenerator(t *testing.T, events int) *Generator {
	t.Helper()
	g, err := NewGenerator(Options{
		EventsPerDay: events,
		Users:        200,
		Products:     100,
		Profile:      storeRegional{},
		Seed:         42,
	})
	require.NoError(t, err)
	return g
}

func TestGeneratorDay(t *testing.T) {
	g := newTestGenerator(t, 2000)
	day := pipeline.MustParseDay("2019-10-01")

	events := g.Day(day)
	require.Len(t, events, 2000)

	for i, e := range events {
		require.True(t, day.Contains(e.EventTime), "event %d at %s outside the day", i, e.EventTime)
		if i > 0 {
			require.False(t, e.EventTime.Before(events[i-1].EventTime), "events are ordered by time")
		}
		require.NotNil(t, e.UserID)
		assert.True(t, *e.UserID >= 1 && *e.UserID <= 200)
		require.NotNil(t, e.ProductID)
		assert.True(t, *e.ProductID >= 1 && *e.ProductID <= 100)
		assert.Contains(t, eventTypes, e.EventType)
		require.NotNil(t, e.UserSession)
		assert.Len(t, *e.UserSession, 36)
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	day := pipeline.MustParseDay("2019-10-02")

	a := newTestGenerator(t, 500).Day(day)
	b := newTestGenerator(t, 500).Day(day)
	assert.Equal(t, a, b)

	// Generating other days first does not change a day's output.
	g := newTestGenerator(t, 500)
	g.Day(pipeline.MustParseDay("2019-10-01"))
	assert.Equal(t, a, g.Day(day))

	assert.NotEqual(t, a, g.Day(pipeline.MustParseDay("2019-10-03")))
}

func TestGeneratorProductAttributesAreStable(t *testing.T) {
	g := newTestGenerator(t, 3000)

	type attrs struct {
		category, brand string
		price           float64
	}
	seen := make(map[int32]attrs)
	for _, day := range pipeline.Range(pipeline.MustParseDay("2019-10-01"), pipeline.MustParseDay("2019-10-03")) {
		for _, e := range g.Day(day) {
			var a attrs
			if e.CategoryCode != nil {
				a.category = *e.CategoryCode
			}
			if e.Brand != nil {
				a.brand = *e.Brand
			}
			require.NotNil(t, e.Price)
			a.price = *e.Price

			if prev, ok := seen[*e.ProductID]; ok {
				require.Equal(t, prev, a, "product %d changed attributes", *e.ProductID)
			}
			seen[*e.ProductID] = a
		}
	}
}

func TestGeneratorEventMix(t *testing.T) {
	g := newTestGenerator(t, 10000)
	events := g.Day(pipeline.MustParseDay("2019-10-05"))

	counts := make(map[string]int)
	for _, e := range events {
		counts[e.EventType]++
	}
	assert.Greater(t, counts["view"], counts["cart"])
	assert.Greater(t, counts["cart"], counts["purchase"])
	assert.InDelta(t, 0.80, float64(counts["view"])/float64(len(events)), 0.03)
}

func TestGeneratorNullAttributes(t *testing.T) {
	g, err := NewGenerator(Options{EventsPerDay: 1, Users: 1, Products: 5000, Seed: 7})
	require.NoError(t, err)

	var nullCategory, nullBrand int
	for _, p := range g.catalog {
		if p.category == nil {
			nullCategory++
		}
		if p.brand == nil {
			nullBrand++
		}
	}
	assert.InDelta(t, 0.10, float64(nullCategory)/5000, 0.03)
	assert.InDelta(t, 0.15, float64(nullBrand)/5000, 0.03)
}

func TestGeneratorFollowsProfile(t *testing.T) {
	g := newTestGenerator(t, 20000)
	events := g.Day(pipeline.MustParseDay("2019-10-01"))

	byHour := make([]int, 24)
	for _, e := range events {
		byHour[e.EventTime.Hour()]++
	}
	// Evening peak against the overnight trough.
	assert.Greater(t, byHour[20], 3*byHour[3])
}

func TestNewGeneratorValidation(t *testing.T) {
	_, err := NewGenerator(Options{EventsPerDay: 0, Users: 1, Products: 1})
	assert.Error(t, err)

	_, err = NewGenerator(Options{EventsPerDay: 1, Users: math.MaxInt32 + 1, Products: 1})
	assert.Error(t, err, "user ids would wrap")

	g, err := NewGenerator(Options{EventsPerDay: 1, Users: 1, Products: 1})
	require.NoError(t, err)
	assert.NotZero(t, g.Seed(), "a random seed is picked")
}
