package gamma

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/abraxasd/abraxas/colorramp"
)

const (
	mutterDBusName  = "org.gnome.Mutter.DisplayConfig"
	mutterDBusPath  = "/org/gnome/Mutter/DisplayConfig"
	mutterDBusIface = "org.gnome.Mutter.DisplayConfig"

	// Mutter doesn't expose a gamma ramp size over DBus; every CRTC uses a
	// fixed 256-entry ramp, matching gamma_gnome.c's GNOME_GAMMA_SIZE.
	gnomeGammaSize = 256
)

// gnomeBackend drives gamma ramps over the session bus via Mutter's
// org.gnome.Mutter.DisplayConfig interface, grounded on
// original_source's gamma_gnome.c sd-bus implementation and adapted to
// godbus/dbus/v5, the session-bus library the rest of this codebase already
// depends on for desktop integration.
type gnomeBackend struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	serial uint32
	crtcs  []uint32
}

// OpenGNOME connects to the user's session bus and calls GetResources to
// enumerate CRTC ids and the current config serial.
func OpenGNOME() (Backend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	obj := conn.Object(mutterDBusName, dbus.ObjectPath(mutterDBusPath))

	// GetResources returns (serial, crtcs, outputs, modes, maxWidth,
	// maxHeight); we only need the serial and each CRTC's id, the first
	// field of each CRTC struct, so the nested structs are decoded generically.
	var serial uint32
	var crtcs [][]interface{}
	var outputs [][]interface{}
	var modes [][]interface{}
	var maxWidth, maxHeight int32
	err = obj.Call(mutterDBusIface+".GetResources", 0).Store(&serial, &crtcs, &outputs, &modes, &maxWidth, &maxHeight)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: GetResources: %v", ErrGNOMEBus, err)
	}
	if len(crtcs) == 0 {
		conn.Close()
		return nil, ErrNoCRTC
	}

	ids := make([]uint32, 0, len(crtcs))
	for _, crtc := range crtcs {
		if len(crtc) == 0 {
			continue
		}
		id, ok := crtc[0].(uint32)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		conn.Close()
		return nil, ErrNoCRTC
	}

	return &gnomeBackend{conn: conn, obj: obj, serial: serial, crtcs: ids}, nil
}

func (b *gnomeBackend) Name() string      { return "gnome" }
func (b *gnomeBackend) CRTCCount() int    { return len(b.crtcs) }
func (b *gnomeBackend) GammaSize(i int) int {
	if i < 0 || i >= len(b.crtcs) {
		return 0
	}
	return gnomeGammaSize
}

func (b *gnomeBackend) setCrtcGamma(crtcID uint32, r, g, bl []uint16) error {
	call := b.obj.Call(mutterDBusIface+".SetCrtcGamma", 0, b.serial, crtcID, r, g, bl)
	if call.Err != nil {
		return fmt.Errorf("%w: SetCrtcGamma: %v", ErrGNOMEBus, call.Err)
	}
	return nil
}

func (b *gnomeBackend) SetTemperatureCRTC(i, kelvin int, brightness float64) error {
	if i < 0 || i >= len(b.crtcs) {
		return ErrNoCRTC
	}
	r := make([]uint16, gnomeGammaSize)
	g := make([]uint16, gnomeGammaSize)
	bl := make([]uint16, gnomeGammaSize)
	colorramp.Ramp(kelvin, brightness, r, g, bl)
	return b.setCrtcGamma(b.crtcs[i], r, g, bl)
}

func (b *gnomeBackend) SetTemperature(kelvin int, brightness float64) error {
	var lastErr error
	success := 0
	for i := range b.crtcs {
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

// Restore writes a linear (identity) gamma ramp to every CRTC. Mutter
// doesn't expose a way to read back the ramp that was in effect before we
// connected, so a linear ramp is the best available approximation,
// matching meridian_gnome_restore.
func (b *gnomeBackend) Restore() error {
	r := make([]uint16, gnomeGammaSize)
	g := make([]uint16, gnomeGammaSize)
	bl := make([]uint16, gnomeGammaSize)
	for i := range r {
		v := uint16(float64(i) / float64(gnomeGammaSize-1) * 65535)
		r[i], g[i], bl[i] = v, v, v
	}
	var lastErr error
	for _, id := range b.crtcs {
		if err := b.setCrtcGamma(id, r, g, bl); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (b *gnomeBackend) Close() error {
	_ = b.Restore()
	return b.conn.Close()
}
