package pipeline

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	tests := []struct {
		input     string
		want      string
		wantError bool
	}{
		{"2019-10-01", "2019-10-01", false},
		{"2020-02-29", "2020-02-29", false},
		{"2019-02-29", "", true},
		{"2019/10/01", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDay(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("Expected error for %q, got %s", tt.input, d)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if d.String() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, d)
			}
		})
	}
}

func TestDayBounds(t *testing.T) {
	d := MustParseDay("2019-10-31")

	if got := d.Start(); !got.Equal(time.Date(2019, 10, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected start: %s", got)
	}
	if got := d.End(); !got.Equal(time.Date(2019, 11, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected end: %s", got)
	}
	if d.Next().String() != "2019-11-01" {
		t.Errorf("Unexpected next: %s", d.Next())
	}
	if d.Prev().String() != "2019-10-30" {
		t.Errorf("Unexpected prev: %s", d.Prev())
	}
}

func TestDayContainsIsHalfOpen(t *testing.T) {
	d := MustParseDay("2019-10-01")

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"midnight start", time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC), true},
		{"last microsecond", time.Date(2019, 10, 1, 23, 59, 59, 999999000, time.UTC), true},
		{"next midnight", time.Date(2019, 10, 2, 0, 0, 0, 0, time.UTC), false},
		{"previous day", time.Date(2019, 9, 30, 23, 59, 59, 0, time.UTC), false},
		// Wall clock is what counts, whatever the location.
		{"wall clock in other zone", time.Date(2019, 10, 1, 23, 0, 0, 0, time.FixedZone("X", -5*3600)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Contains(tt.ts); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestDayIsWeekend(t *testing.T) {
	tests := []struct {
		day  string
		want bool
	}{
		{"2019-10-04", false}, // Friday
		{"2019-10-05", true},  // Saturday
		{"2019-10-06", true},  // Sunday
		{"2019-10-07", false}, // Monday
	}

	for _, tt := range tests {
		if got := MustParseDay(tt.day).IsWeekend(); got != tt.want {
			t.Errorf("IsWeekend(%s) = %v, want %v", tt.day, got, tt.want)
		}
	}
}

func TestNewDayUsesWallClock(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	d := NewDay(time.Date(2019, 10, 2, 1, 0, 0, 0, loc))
	if d.String() != "2019-10-02" {
		t.Errorf("Expected 2019-10-02, got %s", d)
	}
}

func TestDayAddDays(t *testing.T) {
	d := MustParseDay("2019-10-30")

	if got := d.AddDays(3).String(); got != "2019-11-02" {
		t.Errorf("AddDays(3) = %s, want 2019-11-02", got)
	}
	if got := d.AddDays(-30).String(); got != "2019-09-30" {
		t.Errorf("AddDays(-30) = %s, want 2019-09-30", got)
	}
	if d.AddDays(0) != d {
		t.Error("AddDays(0) should return the same day")
	}
}
