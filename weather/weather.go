// Package weather fetches cloud-cover data from the NOAA api.weather.gov
// forecast API by exec'ing curl(1), matching the daemon's own Non-goal of
// never linking an HTTP/TLS library: an external process is spawned and its
// stdout is read, exactly the way i3status-custom/xrandr.go and
// i3status-custom/ddc.go shell out to xrandr and pkexec rather than using a
// Go library for those side effects.
package weather

import (
	"strings"
	"time"
)

// Data is the result of one fetch cycle, successful or not.
type Data struct {
	CloudCover  int // percent, 0-100
	Forecast    string
	Temperature float64
	IsDay       bool
	FetchedAt   time.Time
	HasError    bool
}

// StaleAfter is the refresh cycle: how long cached weather data remains
// usable before the daemon starts a new fetch.
const StaleAfter = 15 * time.Minute

// Stale reports whether d is older than StaleAfter as of now, or was never
// fetched successfully: a failed fetch must be retried on the next tick
// rather than waiting out the full refresh window.
func (d Data) Stale(now time.Time) bool {
	return now.Sub(d.FetchedAt) > StaleAfter || d.HasError
}

// errorResult is what a failed fetch or a non-US build returns: cloud cover
// of 0 so the caller falls back to uncorrected solar temperature, but
// HasError set so the daemon can log once rather than treating it as a
// confirmed clear sky.
func errorResult(now time.Time) Data {
	return Data{
		Forecast:  "Unknown",
		IsDay:     true,
		FetchedAt: now,
		HasError:  true,
	}
}

// cloudCoverFromForecast maps a NOAA shortForecast string to an
// approximate cloud-cover percentage using an ordered keyword search, since
// the hourly forecast endpoint carries a textual summary rather than a
// numeric sky-cover field. Order matters: "mostly cloudy" is checked before
// "cloudy" and "mostly sunny"/"mostly clear" before "sunny"/"clear", while
// "partly" comes after "cloudy", so "Partly Cloudy" maps to 90 and only
// forecasts such as "Partly Sunny" reach 50.
func cloudCoverFromForecast(forecast string) int {
	lower := strings.ToLower(forecast)
	contains := strings.Contains
	containsAny := func(s string, subs ...string) bool {
		for _, sub := range subs {
			if contains(s, sub) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny(lower, "rain", "storm", "snow", "drizzle", "showers"):
		return 95
	case contains(lower, "overcast"):
		return 90
	case contains(lower, "mostly cloudy"):
		return 75
	case contains(lower, "cloudy"):
		return 90
	case contains(lower, "partly"):
		return 50
	case containsAny(lower, "mostly sunny", "mostly clear"):
		return 25
	case containsAny(lower, "sunny", "clear"):
		return 10
	default:
		return 0
	}
}
