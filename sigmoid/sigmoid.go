// Package sigmoid implements the deterministic dawn/dusk transition curve,
// the manual-override blend, and auto-resume scheduling. All functions here
// are pure arithmetic over time.Time and int/float64 — no I/O.
package sigmoid

import (
	"math"
	"time"

	"github.com/abraxasd/abraxas/solar"
)

// Default tuning constants. DuskDuration and Steepness each have two values
// across the reference sources (120 vs 180 minutes, 6.0 vs 8.0); this
// implementation picks the original values and keeps them as single
// constants, per spec.
const (
	TempDayClear = 6500
	TempDayDark  = 4500
	TempNight    = 2900

	CloudThreshold = 75 // percent cloud cover at/above which dark-day temps apply

	DawnDurationMinutes = 90
	DuskDurationMinutes = 120

	Steepness = 6.0

	TempMin = 1000
	TempMax = 25000
)

// sigmoidBase is the standard logistic function s(x, k) = 1 / (1 + e^-kx).
func sigmoidBase(x, k float64) float64 {
	return 1 / (1 + math.Exp(-k*x))
}

// Normalized maps x in [-1, 1] through the logistic function and rescales
// so that Normalized(-1, k) == 0 and Normalized(1, k) == 1 exactly,
// regardless of k, eliminating the endpoint drift a raw sigmoid has.
func Normalized(x, k float64) float64 {
	lo := sigmoidBase(-1, k)
	hi := sigmoidBase(1, k)
	return (sigmoidBase(x, k) - lo) / (hi - lo)
}

// ClampTemp clamps a Kelvin temperature to [TempMin, TempMax].
func ClampTemp(k int) int {
	if k < TempMin {
		return TempMin
	}
	if k > TempMax {
		return TempMax
	}
	return k
}

// SolarTemp computes the target color temperature given how many minutes
// have elapsed since sunrise and remain until sunset, and whether cached
// cloud cover puts the day in "dark day" mode.
//
// Outside the dawn/dusk transition windows the result is exactly day or
// night; within a window it's a sigmoid-interpolated blend, with dawn and
// dusk treated identically except for the sign/axis of x.
func SolarTemp(minutesSinceSunrise, minutesUntilSunset float64, darkMode bool) int {
	day := TempDayClear
	if darkMode {
		day = TempDayDark
	}
	night := TempNight

	dawnHalf := DawnDurationMinutes / 2.0
	duskHalf := DuskDurationMinutes / 2.0

	switch {
	case absf(minutesSinceSunrise) < dawnHalf:
		x := minutesSinceSunrise / dawnHalf
		return ClampTemp(int(float64(night) + float64(day-night)*Normalized(x, Steepness)))
	case absf(minutesUntilSunset) < duskHalf:
		x := minutesUntilSunset / duskHalf
		return ClampTemp(int(float64(night) + float64(day-night)*Normalized(x, Steepness)))
	case minutesSinceSunrise >= dawnHalf && minutesUntilSunset >= duskHalf:
		return ClampTemp(day)
	default:
		return ClampTemp(night)
	}
}

// ManualTemp computes the temperature during a user-initiated manual
// transition. If durationMinutes <= 0 the target is applied instantly.
func ManualTemp(startTemp, targetTemp int, startTime, now time.Time, durationMinutes int) int {
	if durationMinutes <= 0 {
		return ClampTemp(targetTemp)
	}
	elapsedMin := now.Sub(startTime).Minutes()
	if elapsedMin >= float64(durationMinutes) {
		return ClampTemp(targetTemp)
	}
	x := 2*elapsedMin/float64(durationMinutes) - 1
	return ClampTemp(int(float64(startTemp) + float64(targetTemp-startTemp)*Normalized(x, Steepness)))
}

// NextTransitionResume computes the next instant a manual override should
// automatically resume solar control: 15 minutes before the next dawn or
// dusk transition window start, whichever comes first and is strictly in
// the future. In polar-invalid regions it falls back to now+24h.
func NextTransitionResume(now time.Time, lat, lon float64) time.Time {
	const lead = 15 * time.Minute

	todayTimes := solar.SunriseSunset(now, lat, lon)
	if !todayTimes.Valid {
		return now.Add(24 * time.Hour)
	}

	dawnHalf := time.Duration(DawnDurationMinutes/2) * time.Minute
	duskHalf := time.Duration(DuskDurationMinutes/2) * time.Minute

	todayDawnStart := todayTimes.Sunrise.Add(-dawnHalf).Add(-lead)
	todayDuskStart := todayTimes.Sunset.Add(-duskHalf).Add(-lead)

	candidates := []time.Time{todayDawnStart, todayDuskStart}

	tomorrow := now.AddDate(0, 0, 1)
	tomorrowTimes := solar.SunriseSunset(tomorrow, lat, lon)
	if tomorrowTimes.Valid {
		candidates = append(candidates, tomorrowTimes.Sunrise.Add(-dawnHalf).Add(-lead))
	}

	var best time.Time
	for _, c := range candidates {
		if c.After(now) && (best.IsZero() || c.Before(best)) {
			best = c
		}
	}
	if best.IsZero() {
		return now.Add(24 * time.Hour)
	}
	return best
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
