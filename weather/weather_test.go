package weather

import (
	"testing"
	"time"
)

func TestCloudCoverFromForecast(t *testing.T) {
	cases := []struct {
		forecast string
		want     int
	}{
		{"Sunny", 10},
		{"Mostly Sunny", 25},
		{"Partly Cloudy", 50},
		{"Mostly Cloudy", 75},
		{"Cloudy", 90},
		{"Overcast", 90},
		{"Chance Rain Showers", 95},
		{"Thunderstorms Likely", 95},
		{"", 0},
	}
	for _, c := range cases {
		if got := cloudCoverFromForecast(c.forecast); got != c.want {
			t.Errorf("cloudCoverFromForecast(%q) = %v, want %v", c.forecast, got, c.want)
		}
	}
}

func TestDataStale(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := Data{FetchedAt: now.Add(-5 * time.Minute)}
	if fresh.Stale(now) {
		t.Error("5 minutes old should not be stale")
	}
	old := Data{FetchedAt: now.Add(-20 * time.Minute)}
	if !old.Stale(now) {
		t.Error("20 minutes old should be stale")
	}
	freshButErrored := Data{FetchedAt: now.Add(-5 * time.Minute), HasError: true}
	if !freshButErrored.Stale(now) {
		t.Error("a fresh but errored fetch should still be stale, so it gets retried")
	}
}

func TestErrorResultMarksError(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	d := errorResult(now)
	if !d.HasError {
		t.Error("expected HasError to be true")
	}
	if d.CloudCover != 0 {
		t.Errorf("expected zero cloud cover on error, got %v", d.CloudCover)
	}
}
