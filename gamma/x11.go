package gamma

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/abraxasd/abraxas/colorramp"
)

type x11CRTC struct {
	crtc      randr.Crtc
	gammaSize uint16
	savedR    []uint16
	savedG    []uint16
	savedB    []uint16
}

// x11Backend drives gamma ramps over RandR, grounded on redshift/x11.go's
// connection setup and SetX11 helper, generalized here to enumerate and
// restore every CRTC individually instead of broadcasting one white point.
type x11Backend struct {
	conn *xgb.Conn
	root xproto.Window
	crtc []x11CRTC
}

// OpenX11 connects to the X server named by display (empty string for the
// default from $DISPLAY), initializes RandR, and saves the current gamma
// ramp of every CRTC with a usable gamma table.
func OpenX11(display string) (Backend, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("x11: randr init: %w", err)
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root

	resources, err := randr.GetScreenResourcesCurrent(conn, root).Reply()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("x11: get screen resources: %w", err)
	}
	if len(resources.Crtcs) == 0 {
		conn.Close()
		return nil, ErrNoCRTC
	}

	b := &x11Backend{conn: conn, root: root}
	for _, crtc := range resources.Crtcs {
		size, err := randr.GetCrtcGammaSize(conn, crtc).Reply()
		if err != nil || size.Size <= 1 {
			b.crtc = append(b.crtc, x11CRTC{crtc: crtc})
			continue
		}
		gamma, err := randr.GetCrtcGamma(conn, crtc).Reply()
		if err != nil {
			b.crtc = append(b.crtc, x11CRTC{crtc: crtc})
			continue
		}
		b.crtc = append(b.crtc, x11CRTC{
			crtc:      crtc,
			gammaSize: size.Size,
			savedR:    gamma.Red,
			savedG:    gamma.Green,
			savedB:    gamma.Blue,
		})
	}

	anyUsable := false
	for _, c := range b.crtc {
		if c.gammaSize > 1 {
			anyUsable = true
			break
		}
	}
	if !anyUsable {
		conn.Close()
		return nil, ErrNoCRTC
	}

	return b, nil
}

func (b *x11Backend) Name() string   { return "x11" }
func (b *x11Backend) CRTCCount() int { return len(b.crtc) }

func (b *x11Backend) GammaSize(i int) int {
	if i < 0 || i >= len(b.crtc) {
		return 0
	}
	return int(b.crtc[i].gammaSize)
}

func (b *x11Backend) SetTemperatureCRTC(i, kelvin int, brightness float64) error {
	if i < 0 || i >= len(b.crtc) {
		return ErrNoCRTC
	}
	c := b.crtc[i]
	if c.gammaSize <= 1 {
		return ErrNoCRTC
	}
	r := make([]uint16, c.gammaSize)
	g := make([]uint16, c.gammaSize)
	bl := make([]uint16, c.gammaSize)
	colorramp.Ramp(kelvin, brightness, r, g, bl)
	if err := randr.SetCrtcGammaChecked(b.conn, c.crtc, c.gammaSize, r, g, bl).Check(); err != nil {
		return fmt.Errorf("x11: set crtc gamma: %w", err)
	}
	return nil
}

func (b *x11Backend) SetTemperature(kelvin int, brightness float64) error {
	var lastErr error
	success := 0
	for i, c := range b.crtc {
		if c.gammaSize <= 1 {
			continue
		}
		if err := b.SetTemperatureCRTC(i, kelvin, brightness); err != nil {
			lastErr = err
			continue
		}
		success++
	}
	if success == 0 {
		if lastErr == nil {
			lastErr = ErrNoCRTC
		}
		return lastErr
	}
	return nil
}

func (b *x11Backend) Restore() error {
	for _, c := range b.crtc {
		if c.gammaSize <= 1 || c.savedR == nil {
			continue
		}
		_ = randr.SetCrtcGammaChecked(b.conn, c.crtc, c.gammaSize, c.savedR, c.savedG, c.savedB).Check()
	}
	return nil
}

func (b *x11Backend) Close() error {
	_ = b.Restore()
	b.conn.Close()
	return nil
}
