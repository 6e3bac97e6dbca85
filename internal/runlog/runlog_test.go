package runlog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-starload/internal/pipeline"
)

func TestNullTime(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))

	now := time.Date(2019, 10, 1, 3, 0, 0, 0, time.UTC)
	got := nullTime(now)
	require.NotNil(t, got)
	assert.True(t, got.Equal(now))
}

func TestErrText(t *testing.T) {
	assert.Nil(t, errText(nil))

	got := errText(errors.New("task load_facts: timed out"))
	require.NotNil(t, got)
	assert.Equal(t, "task load_facts: timed out", *got)
}

func TestDayRecordDuration(t *testing.T) {
	start := time.Date(2019, 10, 2, 0, 5, 0, 0, time.UTC)
	rec := DayRecord{
		LogicalDate: time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC),
		StartedAt:   start,
	}
	assert.Zero(t, rec.Duration(), "running")

	end := start.Add(90 * time.Second)
	rec.FinishedAt = &end
	assert.Equal(t, 90*time.Second, rec.Duration())
	assert.Equal(t, pipeline.MustParseDay("2019-10-01"), rec.Day())
}
