// Package daemon is the long-running event loop: it owns the gamma
// dispatcher, the async weather fetcher, and the manual-override state
// machine, waking on a single kernel wait per iteration and applying a
// computed Kelvin temperature whenever it changes.
package daemon

import (
	"time"

	"github.com/abraxasd/abraxas/store"
	"github.com/abraxasd/abraxas/weather"
)

// Manual holds everything needed to reproduce a user-initiated transition
// across restarts: the override file's fields plus the daemon's own
// bookkeeping (issuedAt lets the loop tell "the file changed" from "the
// file still says the same thing").
type Manual struct {
	Active          bool
	StartTemp       int
	TargetTemp      int
	StartTime       time.Time
	DurationMinutes int
	IssuedAt        time.Time
	ResumeTime      time.Time
}

// State is everything the loop carries between iterations: the last-loaded
// location and weather, the currently-applied temperature, and the manual
// override block. It is not safe for concurrent use -- the loop is the only
// goroutine that touches it.
type State struct {
	Paths store.Paths

	Location store.Location
	Weather  weather.Data

	LastTemp      int
	LastTempValid bool

	Manual Manual
}

// applyFillIn backfills ovr.StartTemp the first time it observes a zero
// value (override.json's "start_temp not yet known" sentinel), persisting
// the computed value so a daemon restart recovers the same number instead
// of re-deriving it from a different instant.
func (s *State) applyFillIn(ovr store.Override, computed int) store.Override {
	if ovr.StartTemp != 0 {
		return ovr
	}
	ovr.StartTemp = computed
	if err := store.SaveOverride(s.Paths.OverrideFile, ovr); err != nil {
		return ovr
	}
	return ovr
}

// solarTemperature is the temperature the sigmoid engine would pick right
// now, ignoring manual mode entirely -- used both as the steady-state
// auto temperature and as the manual-mode start_temp fallback.
func (s *State) solarTemperature(now time.Time) int {
	return computeSolarTemp(now, s.Location, s.Weather)
}
