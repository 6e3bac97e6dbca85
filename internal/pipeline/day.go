//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline sequences the daily ELT tasks: a fixed DAG of steps run
// for one logical day at a time, with per-task timeouts, retries and a
// persisted run log.
package pipeline

import (
	"fmt"
	"time"
)

// DayLayout is the layout of a logical date (YYYY-MM-DD).
const DayLayout = "2006-01-02"

// Day is a logical date: the partition a run processes. It covers the
// half-open interval [Start, End) of naive timestamps.
type Day struct {
	t time.Time
}

// NewDay returns the logical day containing t, taking t's wall clock date.
func NewDay(t time.Time) Day {
	y, m, d := t.Date()
	return Day{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid logical date %q: %w", s, err)
	}
	return Day{t: t}, nil
}

// MustParseDay is ParseDay for constants and tests.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the date as YYYY-MM-DD.
func (d Day) String() string {
	return d.t.Format(DayLayout)
}

// Start is midnight UTC of the day. pgx encodes it into TIMESTAMP and DATE
// parameters by wall clock, so it matches naive event times directly.
func (d Day) Start() time.Time {
	return d.t
}

// End is the exclusive upper bound: midnight of the next day.
func (d Day) End() time.Time {
	return d.t.AddDate(0, 0, 1)
}

// Next returns the following day.
func (d Day) Next() Day {
	return Day{t: d.End()}
}

// Prev returns the preceding day.
func (d Day) Prev() Day {
	return Day{t: d.t.AddDate(0, 0, -1)}
}

// AddDays returns the day n days after d; n may be negative.
func (d Day) AddDays(n int) Day {
	return Day{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is earlier than o.
func (d Day) Before(o Day) bool {
	return d.t.Before(o.t)
}

// After reports whether d is later than o.
func (d Day) After(o Day) bool {
	return d.t.After(o.t)
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d.t.IsZero()
}

// Contains reports whether the naive timestamp t falls inside the day.
func (d Day) Contains(t time.Time) bool {
	naive := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(),
		t.Second(), t.Nanosecond(), time.UTC)
	return !naive.Before(d.Start()) && naive.Before(d.End())
}

// IsWeekend reports whether the day is a Saturday or Sunday.
func (d Day) IsWeekend() bool {
	wd := d.t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
