package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abraxasd/abraxas/weather"
)

func TestLocationRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")

	if err := SaveLocation(path, 41.881832, -87.623177); err != nil {
		t.Fatalf("SaveLocation: %v", err)
	}
	loc := LoadLocation(path)
	if !loc.Valid {
		t.Fatal("expected valid location after round trip")
	}
	if diff := loc.Lat - 41.881832; diff > 1e-5 || diff < -1e-5 {
		t.Errorf("lat = %v, want ~41.881832", loc.Lat)
	}
	if diff := loc.Lon - (-87.623177); diff > 1e-5 || diff < -1e-5 {
		t.Errorf("lon = %v, want ~-87.623177", loc.Lon)
	}
}

func TestLocationMissingFile(t *testing.T) {
	loc := LoadLocation(filepath.Join(t.TempDir(), "nope.ini"))
	if loc.Valid {
		t.Error("expected invalid location for missing file")
	}
}

func TestLocationIgnoresOtherSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	content := "[other]\nlatitude = 1.0\nlongitude = 2.0\n[location]\nlatitude = 3.5\nlongitude = 4.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	loc := LoadLocation(path)
	if !loc.Valid || loc.Lat != 3.5 || loc.Lon != 4.5 {
		t.Errorf("loc = %+v, want lat=3.5 lon=4.5", loc)
	}
}

func TestOverrideRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.json")

	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ovr := Override{Active: true, TargetTemp: 3200, DurationMinutes: 30, IssuedAt: issued, StartTemp: 6500}
	if err := SaveOverride(path, ovr); err != nil {
		t.Fatalf("SaveOverride: %v", err)
	}

	got := LoadOverride(path)
	if got.Active != ovr.Active || got.TargetTemp != ovr.TargetTemp ||
		got.DurationMinutes != ovr.DurationMinutes || got.StartTemp != ovr.StartTemp {
		t.Errorf("got %+v, want %+v", got, ovr)
	}
	if got.IssuedAt.Unix() != issued.Unix() {
		t.Errorf("issued at = %v, want %v", got.IssuedAt, issued)
	}
}

func TestOverrideMissingFileNotActive(t *testing.T) {
	ovr := LoadOverride(filepath.Join(t.TempDir(), "nope.json"))
	if ovr.Active {
		t.Error("expected inactive override for missing file")
	}
}

func TestOverrideOversizedFileRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.json")
	big := make([]byte, maxOverrideFileSize+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatal(err)
	}
	ovr := LoadOverride(path)
	if ovr.Active {
		t.Error("expected inactive override for oversized file")
	}
}

func TestClearOverrideIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.json")
	if err := ClearOverride(path); err != nil {
		t.Errorf("clearing a nonexistent override should not error: %v", err)
	}
	if err := SaveOverride(path, Override{Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := ClearOverride(path); err != nil {
		t.Errorf("ClearOverride: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected override file to be removed")
	}
}

func TestWeatherCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weather_cache.json")

	d := weather.Data{
		CloudCover:  60,
		Forecast:    "Partly Cloudy",
		Temperature: 72.5,
		IsDay:       true,
		FetchedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := SaveWeatherCache(path, d); err != nil {
		t.Fatalf("SaveWeatherCache: %v", err)
	}

	got := LoadWeatherCache(path)
	if got.HasError {
		t.Fatal("expected no error on successful cache round trip")
	}
	if got.CloudCover != d.CloudCover || got.Forecast != d.Forecast || got.IsDay != d.IsDay {
		t.Errorf("got %+v, want %+v", got, d)
	}
}

func TestWeatherCacheErrorForm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weather_cache.json")

	d := weather.Data{HasError: true, FetchedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	if err := SaveWeatherCache(path, d); err != nil {
		t.Fatalf("SaveWeatherCache: %v", err)
	}
	got := LoadWeatherCache(path)
	if !got.HasError {
		t.Error("expected HasError after round-tripping an error result")
	}
}

func TestWeatherCacheMissingFileIsError(t *testing.T) {
	got := LoadWeatherCache(filepath.Join(t.TempDir(), "nope.json"))
	if !got.HasError {
		t.Error("expected HasError for missing cache file")
	}
}

func TestPIDFileLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.pid")

	if DaemonAlive(path) {
		t.Error("expected not alive before pid file exists")
	}
	if err := WritePIDFile(path); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	if !DaemonAlive(path) {
		t.Error("expected alive for our own pid")
	}
	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("RemovePIDFile: %v", err)
	}
	if DaemonAlive(path) {
		t.Error("expected not alive after pid file removed")
	}
}
