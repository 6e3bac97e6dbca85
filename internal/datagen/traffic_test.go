package datagen

import (
	"testing"
	"time"
)

func TestGetProfile(t *testing.T) {
	for _, name := range ProfileNames() {
		p, err := GetProfile(name)
		if err != nil {
			t.Fatalf("GetProfile(%q): %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("profile %q reports name %q", name, p.Name())
		}
		if p.Description() == "" {
			t.Errorf("profile %q has no description", name)
		}
	}

	if _, err := GetProfile("office"); err == nil {
		t.Error("Expected error for unknown profile")
	}
}

func TestProfileNamesSorted(t *testing.T) {
	got := ProfileNames()
	want := []string{"flat", "store-global", "store-regional"}
	if len(got) != len(want) {
		t.Fatalf("ProfileNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ProfileNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStoreRegionalActivity(t *testing.T) {
	p := storeRegional{}
	day := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		hour int
		want float64
	}{
		{3, 0.15},
		{9, 0.40},
		{14, 0.60},
		{20, 1.0},
		{23, 0.70},
	}
	for _, tt := range tests {
		got := p.Activity(day.Add(time.Duration(tt.hour) * time.Hour))
		if got != tt.want {
			t.Errorf("Activity at %02d:00 = %.2f, want %.2f", tt.hour, got, tt.want)
		}
	}
}

func TestStoreGlobalNeverBelowFloor(t *testing.T) {
	p := storeGlobal{}
	day := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 24; h++ {
		got := p.Activity(day.Add(time.Duration(h) * time.Hour))
		if got < 0.40 || got > 1.0 {
			t.Errorf("Activity at %02d:00 = %.2f, want within [0.40, 1.0]", h, got)
		}
	}
}

func TestEveningPeak(t *testing.T) {
	tests := []struct {
		name             string
		hour, start, end int
		want             float64
	}{
		{"inside", 18, 16, 21, 1.0},
		{"hour before", 15, 16, 21, 0.6},
		{"two hours before", 14, 16, 21, 0.3},
		{"end hour", 21, 16, 21, 0.6},
		{"after end", 22, 16, 21, 0.3},
		{"far away", 3, 16, 21, 0.0},
		{"wraps midnight", 1, 22, 3, 1.0},
		{"wrap ramp up", 21, 22, 3, 0.6},
		{"wrap ramp down", 4, 22, 3, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eveningPeak(tt.hour, tt.start, tt.end); got != tt.want {
				t.Errorf("eveningPeak(%d, %d, %d) = %.1f, want %.1f",
					tt.hour, tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestHourlyWeights(t *testing.T) {
	day := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)

	w := HourlyWeights(flat{}, day)
	if len(w) != 24 {
		t.Fatalf("Expected 24 weights, got %d", len(w))
	}
	for h, v := range w {
		if v != 1000 {
			t.Errorf("flat weight at %d = %d, want 1000", h, v)
		}
	}

	w = HourlyWeights(storeRegional{}, day)
	if w[20] <= w[3] {
		t.Errorf("regional evening weight %d should exceed night weight %d", w[20], w[3])
	}
}
