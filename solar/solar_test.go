package solar

import (
	"math"
	"testing"
	"time"
)

func TestElevationRange(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	lats := []float64{-80, -45, 0, 23.5, 45, 66, 89}
	lons := []float64{-170, -50, 0, 50, 170}
	for _, lat := range lats {
		for _, lon := range lons {
			for day := 0; day < 365; day += 23 {
				when := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, day)
				for hour := 0; hour < 24; hour += 3 {
					when = time.Date(when.Year(), when.Month(), when.Day(), hour, 0, 0, 0, loc)
					p := Elevation(when, lat, lon)
					if p.ElevationDegrees < -90 || p.ElevationDegrees > 90 {
						t.Fatalf("elevation out of range at lat=%v lon=%v when=%v: %v", lat, lon, when, p.ElevationDegrees)
					}
				}
			}
		}
	}
}

func TestSunriseSunsetValidNonPolar(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	lats := []float64{-66, -45, -23.5, 0, 23.5, 45, 66}
	for _, lat := range lats {
		for day := 0; day < 365; day++ {
			when := time.Date(2024, 1, 1, 12, 0, 0, 0, loc).AddDate(0, 0, day)
			st := SunriseSunset(when, lat, -94.5)
			if !st.Valid {
				t.Fatalf("expected valid sunrise/sunset at lat=%v day=%v", lat, day)
			}
		}
	}
}

func TestNoonMidLatitudeClearSky(t *testing.T) {
	// Chicago, 2024-06-21 noon local.
	loc := time.FixedZone("CDT", -5*3600)
	when := time.Date(2024, 6, 21, 12, 0, 0, 0, loc)
	p := Elevation(when, 41.88, -87.63)
	if math.Abs(p.ElevationDegrees-72) > 2 {
		t.Fatalf("expected elevation near 72 degrees, got %v", p.ElevationDegrees)
	}
}

func TestElevationAtSunriseNearHorizon(t *testing.T) {
	loc := time.FixedZone("CDT", -5*3600)
	when := time.Date(2024, 6, 21, 12, 0, 0, 0, loc)
	st := SunriseSunset(when, 41.88, -87.63)
	if !st.Valid {
		t.Fatal("expected valid sunrise/sunset")
	}
	p := Elevation(st.Sunrise, 41.88, -87.63)
	if math.Abs(p.ElevationDegrees-(-zenithTwilight+90)) > 1.5 {
		t.Fatalf("expected elevation near -0.833 at computed sunrise, got %v", p.ElevationDegrees)
	}
}
