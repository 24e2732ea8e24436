package daemon

import (
	"testing"
	"time"

	"github.com/abraxasd/abraxas/store"
	"github.com/abraxasd/abraxas/weather"
)

func TestComputeSolarTempNoonClear(t *testing.T) {
	// 2024-06-21 noon local, Chicago, clear skies: full day temperature.
	loc := store.Location{Lat: 41.88, Lon: -87.63, Valid: true}
	now := time.Date(2024, 6, 21, 12, 0, 0, 0, time.FixedZone("CDT", -5*3600))
	got := computeSolarTemp(now, loc, weather.Data{CloudCover: 10})
	if got != 6500 {
		t.Errorf("computeSolarTemp = %d, want 6500", got)
	}
}

func TestComputeSolarTempPolarFallsBackToNight(t *testing.T) {
	loc := store.Location{Lat: 89, Lon: 0, Valid: true}
	now := time.Date(2024, 12, 21, 12, 0, 0, 0, time.UTC)
	got := computeSolarTemp(now, loc, weather.Data{})
	if got != 2900 {
		t.Errorf("computeSolarTemp in polar night = %d, want 2900", got)
	}
}

func TestComputeManualTemp(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	m := Manual{StartTemp: 6500, TargetTemp: 2900, StartTime: start, DurationMinutes: 0}
	if got := computeManualTemp(m, start); got != 2900 {
		t.Errorf("duration=0 should be instant: got %d, want 2900", got)
	}

	m.DurationMinutes = 30
	if got := computeManualTemp(m, start); got != 6500 {
		t.Errorf("at t=start, want start_temp 6500, got %d", got)
	}
	if got := computeManualTemp(m, start.Add(30*time.Minute)); got != 2900 {
		t.Errorf("at t=start+duration, want target_temp 2900, got %d", got)
	}
	mid := computeManualTemp(m, start.Add(15*time.Minute))
	if mid != 4700 {
		t.Errorf("at midpoint, want 4700, got %d", mid)
	}
}

func TestApplyFillInOnlyFillsZero(t *testing.T) {
	s := &State{Paths: store.Paths{OverrideFile: "/nonexistent/override.json"}}

	ovr := store.Override{StartTemp: 0}
	got := s.applyFillIn(ovr, 5000)
	if got.StartTemp != 5000 {
		t.Errorf("StartTemp = %d, want 5000 (backfilled)", got.StartTemp)
	}

	ovr = store.Override{StartTemp: 4200}
	got = s.applyFillIn(ovr, 5000)
	if got.StartTemp != 4200 {
		t.Errorf("StartTemp = %d, want 4200 (left alone)", got.StartTemp)
	}
}
