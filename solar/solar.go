// Package solar computes sun position and sunrise/sunset times from the
// NOAA solar geometry equations (Julian day -> Julian century -> geometric
// mean longitude/anomaly -> equation of center -> apparent longitude ->
// declination -> equation of time -> hour angle).
//
// It is pure arithmetic: no file or network I/O, so it has no dependency on
// anything else in this module.
package solar

import (
	"math"
	"time"
)

// Position is the sun's position in the sky at a specific instant.
type Position struct {
	ElevationDegrees float64
}

// Times is a calendar day's sunrise and sunset. Valid is false when the
// location is polar for that day (the hour-angle equation has no solution).
type Times struct {
	Sunrise time.Time
	Sunset  time.Time
	Valid   bool
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// julianDay returns the Julian day number for a local calendar date plus a
// fractional hour (h + m/60 + s/3600).
func julianDay(year, month, day int, hourFrac float64) float64 {
	if month <= 2 {
		year--
		month += 12
	}
	a := year / 100
	b := 2 - a + a/4
	jd := math.Floor(365.25*float64(year+4716)) +
		math.Floor(30.6001*float64(month+1)) +
		float64(day) + float64(b) - 1524.5
	return jd + hourFrac/24
}

// solarParams are the NOAA intermediate values shared by Elevation and
// SunriseSunset, factored out to avoid duplicating the closed-form series.
type solarParams struct {
	l0         float64 // geometric mean longitude (deg)
	m          float64 // geometric mean anomaly (deg)
	e          float64 // eccentricity of Earth's orbit
	declDeg    float64 // solar declination (deg)
	eqTimeMin  float64 // equation of time (minutes)
	obliqCorr  float64 // corrected obliquity (deg)
}

func computeSolarParams(jc float64) solarParams {
	var sp solarParams

	sp.l0 = math.Mod(280.46646+jc*(36000.76983+0.0003032*jc), 360)
	if sp.l0 < 0 {
		sp.l0 += 360
	}

	sp.m = 357.52911 + jc*(35999.05029-0.0001537*jc)
	mRad := deg2rad(sp.m)

	sp.e = 0.016708634 - jc*(0.000042037+0.0000001267*jc)

	c := math.Sin(mRad)*(1.914602-jc*(0.004817+0.000014*jc)) +
		math.Sin(2*mRad)*(0.019993-0.000101*jc) +
		math.Sin(3*mRad)*0.000289

	sunLon := sp.l0 + c
	omega := 125.04 - 1934.136*jc
	sunApparentLon := sunLon - 0.00569 - 0.00478*math.Sin(deg2rad(omega))

	obliqMean := 23 + (26+(21.448-jc*(46.815+jc*(0.00059-jc*0.001813)))/60)/60
	sp.obliqCorr = obliqMean + 0.00256*math.Cos(deg2rad(omega))
	obliqCorrRad := deg2rad(sp.obliqCorr)

	sp.declDeg = rad2deg(math.Asin(math.Sin(obliqCorrRad) * math.Sin(deg2rad(sunApparentLon))))

	varY := math.Tan(obliqCorrRad / 2)
	varY *= varY
	sp.eqTimeMin = 4 * rad2deg(
		varY*math.Sin(2*deg2rad(sp.l0))-
			2*sp.e*math.Sin(mRad)+
			4*sp.e*varY*math.Sin(mRad)*math.Cos(2*deg2rad(sp.l0))-
			0.5*varY*varY*math.Sin(4*deg2rad(sp.l0))-
			1.25*sp.e*sp.e*math.Sin(2*mRad))

	return sp
}

// Elevation returns the sun's elevation in degrees above the horizon at the
// given instant and location, using the instant's civil time in the
// process's local time zone (time.Local) and that zone's UTC offset as the
// basis for the hour-angle computation.
func Elevation(when time.Time, lat, lon float64) Position {
	when = when.Local()
	y, mo, d := when.Date()
	hourFrac := float64(when.Hour()) + float64(when.Minute())/60 + (float64(when.Second())+float64(when.Nanosecond())/1e9)/3600

	jd := julianDay(y, int(mo), d, hourFrac)
	jc := (jd - 2451545) / 36525
	sp := computeSolarParams(jc)

	_, tzOffsetSec := when.Zone()
	tzOffsetHours := float64(tzOffsetSec) / 3600

	timeOffset := sp.eqTimeMin + 4*lon - 60*tzOffsetHours
	tst := float64(when.Hour())*60 + float64(when.Minute()) + float64(when.Second())/60 + timeOffset

	hourAngle := tst/4 - 180
	if hourAngle < -180 {
		hourAngle += 360
	} else if hourAngle > 180 {
		hourAngle -= 360
	}

	latRad := deg2rad(lat)
	declRad := deg2rad(sp.declDeg)
	haRad := deg2rad(hourAngle)

	cosZenith := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(haRad)
	cosZenith = math.Max(-1, math.Min(1, cosZenith))

	zenith := rad2deg(math.Acos(cosZenith))
	return Position{ElevationDegrees: 90 - zenith}
}

// zenithTwilight is the standard sunrise/sunset zenith angle (atmospheric
// refraction plus the sun's apparent radius).
const zenithTwilight = 90.833

// SunriseSunset returns the sunrise and sunset instants for the calendar day
// (in the process's local time zone, time.Local) containing when. Valid is false for polar days,
// where the hour-angle equation has no real solution.
func SunriseSunset(when time.Time, lat, lon float64) Times {
	when = when.Local()
	y, mo, d := when.Date()

	jd := julianDay(y, int(mo), d, 12)
	jc := (jd - 2451545) / 36525
	sp := computeSolarParams(jc)

	latRad := deg2rad(lat)
	declRad := deg2rad(sp.declDeg)

	cosHA := math.Cos(deg2rad(zenithTwilight))/(math.Cos(latRad)*math.Cos(declRad)) -
		math.Tan(latRad)*math.Tan(declRad)

	if cosHA < -1 || cosHA > 1 {
		return Times{Valid: false}
	}

	ha := rad2deg(math.Acos(cosHA))

	_, tzOffsetSec := when.Zone()
	tzOffsetHours := float64(tzOffsetSec) / 3600

	sunriseMin := 720 - 4*(lon+ha) - sp.eqTimeMin + tzOffsetHours*60
	sunsetMin := 720 - 4*(lon-ha) - sp.eqTimeMin + tzOffsetHours*60

	midnight := time.Date(y, mo, d, 0, 0, 0, 0, when.Location())

	return Times{
		Sunrise: midnight.Add(time.Duration(sunriseMin * float64(time.Minute))),
		Sunset:  midnight.Add(time.Duration(sunsetMin * float64(time.Minute))),
		Valid:   true,
	}
}
