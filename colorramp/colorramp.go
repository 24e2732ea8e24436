// Package colorramp turns a color temperature in Kelvin into the per-channel
// gamma ramps a display backend programs into hardware. The mapping from
// Kelvin to an RGB multiplier uses the same blackbody-radiator table shape
// redshift-family daemons embed; the ramp construction mirrors
// redshift/manager.go's generic GammaRamp helper, always deriving the white
// point from an explicit Kelvin temperature rather than taking an arbitrary
// white point.
package colorramp

import "math"

// Multiplier is a per-channel scalar in [0, 1], 1 being neutral (no tint).
type Multiplier struct {
	R, G, B float64
}

// clampUnit clamps v to [0, 1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FromTemperature approximates the Planckian-locus RGB multiplier for a
// color temperature given in Kelvin, using the piecewise polynomial fit
// common to display color-temperature daemons (valid over roughly
// 1000K-40000K, which comfortably covers this daemon's [1000, 25000] range).
func FromTemperature(kelvin int) Multiplier {
	t := float64(kelvin) / 100

	var r, g, b float64

	switch {
	case t <= 66:
		r = 1
	default:
		r = 1.292936186062745 * math.Pow(t-60, -0.1332047592)
		r = clampUnit(r)
	}

	switch {
	case t <= 66:
		g = 0.39008157876901960784*math.Log(t) - 0.63184144378862745098
	default:
		g = 1.12989086089529411765 * math.Pow(t-60, -0.0755148492)
	}
	g = clampUnit(g)

	switch {
	case t >= 66:
		b = 1
	case t <= 19:
		b = 0
	default:
		b = 0.54320678911019607843*math.Log(t-10) - 1.19625408914
		b = clampUnit(b)
	}

	return Multiplier{R: r, G: g, B: b}
}

// Ramp fills three gamma ramps of length size with the blackbody multiplier
// for kelvin scaled by brightness (in [0, 1]). Entries are clamped to
// [0, 65535]; for size > 1 entry 0 of each channel is 0 and entry size-1 is
// at most 65535 (a single-entry channel holds the scaled maximum). The
// three slices must be pre-allocated and do not alias each other.
func Ramp(kelvin int, brightness float64, r, g, b []uint16) {
	mult := FromTemperature(kelvin)
	fill(r, mult.R*brightness)
	fill(g, mult.G*brightness)
	fill(b, mult.B*brightness)
}

func fill(channel []uint16, scale float64) {
	n := len(channel)
	if n == 0 {
		return
	}
	if n == 1 {
		channel[0] = toU16(65535 * scale)
		return
	}
	for i := range channel {
		v := float64(i) / float64(n-1) * 65535 * scale
		channel[i] = toU16(v)
	}
}

func toU16(v float64) uint16 {
	if v <= 0 {
		return 0
	}
	v = math.Round(v)
	if v >= 65535 {
		return 65535
	}
	return uint16(v)
}
