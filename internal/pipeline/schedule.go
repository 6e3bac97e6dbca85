package pipeline

import (
	"time"
)

// Schedule describes the daily cadence of the workflow.
type Schedule struct {
	// Start is the first logical day.
	Start Day

	// End is the last logical day, inclusive. The zero Day means the last
	// completed day relative to the clock passed to Days.
	End Day

	// Catchup schedules every day from Start. Without it only the latest
	// day is scheduled.
	Catchup bool
}

// Days returns the logical days due at now, oldest first. A day is due
// once it has fully elapsed, so today is never scheduled implicitly.
func (s Schedule) Days(now time.Time) []Day {
	end := s.End
	lastComplete := NewDay(now.UTC()).Prev()
	if end.IsZero() || end.After(lastComplete) {
		end = lastComplete
	}
	if end.Before(s.Start) {
		return nil
	}

	if !s.Catchup {
		return []Day{end}
	}

	var days []Day
	for d := s.Start; !d.After(end); d = d.Next() {
		days = append(days, d)
	}
	return days
}

// Range returns every day from start to end inclusive, ignoring the clock.
// It backs explicit backfills of historical windows.
func Range(start, end Day) []Day {
	var days []Day
	for d := start; !d.After(end); d = d.Next() {
		days = append(days, d)
	}
	return days
}
