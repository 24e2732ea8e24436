package sigmoid

import (
	"math"
	"testing"
	"time"
)

func TestNormalizedEndpoints(t *testing.T) {
	for _, k := range []float64{0.5, 1, 2, 6, 8, 20} {
		if got := Normalized(-1, k); math.Abs(got) > 1e-12 {
			t.Errorf("k=%v: Normalized(-1) = %v, want 0", k, got)
		}
		if got := Normalized(1, k); math.Abs(got-1) > 1e-12 {
			t.Errorf("k=%v: Normalized(1) = %v, want 1", k, got)
		}
	}
}

func TestSolarTempAtSunriseMidpoint(t *testing.T) {
	for _, dark := range []bool{false, true} {
		got := SolarTemp(0, 999, dark)
		want := (TempNight + TempDayClear) / 2
		if dark {
			want = (TempNight + TempDayDark) / 2
		}
		if math.Abs(float64(got-want)) > 1 {
			t.Errorf("dark=%v: SolarTemp at sunrise = %v, want ~%v", dark, got, want)
		}
	}
}

func TestSolarTempAtDuskMidpoint(t *testing.T) {
	got := SolarTemp(999, 0, false)
	want := (TempNight + TempDayClear) / 2
	if math.Abs(float64(got-want)) > 1 {
		t.Errorf("SolarTemp at dusk = %v, want ~%v", got, want)
	}
}

func TestSolarTempWindowBoundaries(t *testing.T) {
	dawnHalf := DawnDurationMinutes / 2.0
	if got := SolarTemp(dawnHalf, 999, false); got != TempDayClear {
		t.Errorf("just outside dawn window (+): got %v, want %v", got, TempDayClear)
	}
	if got := SolarTemp(-dawnHalf, 999, false); got != TempNight {
		t.Errorf("just outside dawn window (-): got %v, want %v", got, TempNight)
	}
	duskHalf := DuskDurationMinutes / 2.0
	if got := SolarTemp(999, duskHalf, false); got != TempDayClear {
		t.Errorf("just outside dusk window (+): got %v, want %v", got, TempDayClear)
	}
	if got := SolarTemp(999, -duskHalf, false); got != TempNight {
		t.Errorf("just outside dusk window (-): got %v, want %v", got, TempNight)
	}
}

func TestDuskOvercastScenario(t *testing.T) {
	// 30 minutes before sunset, overcast, dusk_half = 60.
	got := SolarTemp(999, 30, true)
	if math.Abs(float64(got-4425)) > 5 {
		t.Errorf("overcast dusk temp = %v, want ~4425", got)
	}
}

func TestManualTempEndpoints(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := ManualTemp(6500, 2900, start, start, 0); got != 2900 {
		t.Errorf("instant manual temp = %v, want 2900", got)
	}
	if got := ManualTemp(6500, 2900, start, start, 30); got != 6500 {
		t.Errorf("manual temp at t=0 = %v, want start temp 6500", got)
	}
	if got := ManualTemp(6500, 2900, start, start.Add(30*time.Minute), 30); got != 2900 {
		t.Errorf("manual temp at t=duration = %v, want target 2900", got)
	}
}

func TestManualTempPartial(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	got := ManualTemp(6500, 2900, start, start.Add(15*time.Minute), 30)
	want := (6500 + 2900) / 2
	if math.Abs(float64(got-want)) > 1 {
		t.Errorf("manual temp at half duration = %v, want ~%v", got, want)
	}
}

func TestManualTempMonotone(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var prev = math.MinInt
	for m := 0; m <= 30; m++ {
		got := ManualTemp(2900, 6500, start, start.Add(time.Duration(m)*time.Minute), 30)
		if got < prev {
			t.Fatalf("manual temp not monotone at minute %v: %v < %v", m, got, prev)
		}
		prev = got
	}
}

func TestNextTransitionResumeAlwaysFuture(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	resume := NextTransitionResume(now, 41.88, -87.63)
	if !resume.After(now) {
		t.Fatalf("resume time %v is not after now %v", resume, now)
	}
}
