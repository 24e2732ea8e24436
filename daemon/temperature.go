package daemon

import (
	"time"

	"github.com/abraxasd/abraxas/sigmoid"
	"github.com/abraxasd/abraxas/solar"
	"github.com/abraxasd/abraxas/store"
	"github.com/abraxasd/abraxas/weather"
)

// computeSolarTemp is solar_temperature from the reference daemon loop:
// sunrise/sunset for the day, minutes relative to each, and cached cloud
// cover feeding the dark-day threshold. An invalid (polar) sunrise/sunset
// falls back to night.
func computeSolarTemp(now time.Time, loc store.Location, w weather.Data) int {
	times := solar.SunriseSunset(now, loc.Lat, loc.Lon)
	if !times.Valid {
		return sigmoid.TempNight
	}

	minutesSinceSunrise := now.Sub(times.Sunrise).Minutes()
	minutesUntilSunset := times.Sunset.Sub(now).Minutes()

	darkMode := w.CloudCover >= sigmoid.CloudThreshold
	return sigmoid.SolarTemp(minutesSinceSunrise, minutesUntilSunset, darkMode)
}

// computeManualTemp is the manual-mode counterpart, delegating the actual
// curve to sigmoid.ManualTemp once duration and elapsed time are known.
func computeManualTemp(m Manual, now time.Time) int {
	return sigmoid.ManualTemp(m.StartTemp, m.TargetTemp, m.StartTime, now, m.DurationMinutes)
}
