package datagen

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Profile shapes intraday traffic. Activity returns a relative level
// (0.0 to 1.0+) for the hour starting at t; only ratios between hours of
// the same day matter.
type Profile interface {
	Name() string
	Description() string
	Activity(t time.Time) float64
}

var profiles = map[string]func() Profile{
	"store-regional": func() Profile { return storeRegional{} },
	"store-global":   func() Profile { return storeGlobal{} },
	"flat":           func() Profile { return flat{} },
}

// GetProfile returns the named traffic profile.
func GetProfile(name string) (Profile, error) {
	constructor, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s (available: %v)", name, ProfileNames())
	}
	return constructor(), nil
}

// ProfileNames returns the registered profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HourlyWeights returns the 24 integer weights of a day for ChooseWeighted.
func HourlyWeights(p Profile, dayStart time.Time) []int {
	weights := make([]int, 24)
	for h := range weights {
		level := p.Activity(dayStart.Add(time.Duration(h) * time.Hour))
		weights[h] = max(int(math.Round(level*1000)), 1)
	}
	return weights
}

// storeRegional is a regional online store with an evening peak.
// Night 15%, morning 40%, afternoon 60%, evening 100%, late 70%.
type storeRegional struct{}

func (storeRegional) Name() string        { return "store-regional" }
func (storeRegional) Description() string { return "Online store, regional (evening peak)" }

func (storeRegional) Activity(t time.Time) float64 {
	switch hour := t.Hour(); {
	case hour < 6:
		return 0.15
	case hour < 12:
		return 0.40
	case hour < 17:
		return 0.60
	case hour < 22:
		return 1.0
	default:
		return 0.70
	}
}

// storeGlobal is a 24/7 store whose traffic follows the evening peaks of
// the Americas, Europe and Asia, never dropping below 40%.
type storeGlobal struct{}

func (storeGlobal) Name() string        { return "store-global" }
func (storeGlobal) Description() string { return "Online store, global (24/7 multi-region)" }

func (storeGlobal) Activity(t time.Time) float64 {
	hour := t.UTC().Hour()
	combined := math.Max(eveningPeak(hour, 22, 3),
		math.Max(eveningPeak(hour, 16, 21), eveningPeak(hour, 8, 13)))
	return 0.40 + 0.60*combined
}

// eveningPeak returns 1 inside [start, end), ramping down over the two
// hours on either side. Windows may wrap midnight.
func eveningPeak(hour, start, end int) float64 {
	inside := hour >= start && hour < end
	if start > end {
		inside = hour >= start || hour < end
	}
	if inside {
		return 1.0
	}
	switch hour {
	case (start + 23) % 24, end % 24:
		return 0.6
	case (start + 22) % 24, (end + 1) % 24:
		return 0.3
	}
	return 0.0
}

// flat spreads traffic evenly.
type flat struct{}

func (flat) Name() string               { return "flat" }
func (flat) Description() string        { return "Uniform traffic around the clock" }
func (flat) Activity(time.Time) float64 { return 1.0 }
