package colorramp

import "testing"

func TestRampInvariants(t *testing.T) {
	temps := []int{1000, 1500, 2900, 4500, 6500, 9000, 15000, 25000}
	brightnesses := []float64{0, 0.25, 0.5, 1}
	sizes := []int{256, 1024}

	for _, temp := range temps {
		for _, br := range brightnesses {
			for _, n := range sizes {
				r := make([]uint16, n)
				g := make([]uint16, n)
				b := make([]uint16, n)
				Ramp(temp, br, r, g, b)

				if len(r) != len(g) || len(g) != len(b) {
					t.Fatalf("ramp length mismatch")
				}
				if r[0] != 0 || g[0] != 0 || b[0] != 0 {
					t.Errorf("temp=%v br=%v: index 0 not zero: %v %v %v", temp, br, r[0], g[0], b[0])
				}
				if r[n-1] > 65535 || g[n-1] > 65535 || b[n-1] > 65535 {
					t.Errorf("temp=%v br=%v: last index exceeds 65535", temp, br)
				}
				for i := range r {
					if r[i] > 65535 || g[i] > 65535 || b[i] > 65535 {
						t.Fatalf("out of range at %d", i)
					}
				}
			}
		}
	}
}

func TestRampChannelsDoNotAlias(t *testing.T) {
	r := make([]uint16, 256)
	g := make([]uint16, 256)
	b := make([]uint16, 256)
	Ramp(2900, 1, r, g, b)
	r[10] = 12345
	if g[10] == 12345 || b[10] == 12345 {
		t.Fatal("channels alias")
	}
}

func TestFromTemperatureWarmIsReddish(t *testing.T) {
	m := FromTemperature(2900)
	if m.R < m.B {
		t.Errorf("expected warm temperature to favor red over blue: %+v", m)
	}
}

func TestFromTemperatureNeutralDaylight(t *testing.T) {
	m := FromTemperature(6500)
	if m.R < 0.9 || m.B < 0.9 {
		t.Errorf("expected near-neutral white point at 6500K: %+v", m)
	}
}
