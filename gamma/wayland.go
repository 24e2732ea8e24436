//go:build unix

package gamma

import (
	"fmt"
	"unsafe"

	"codeberg.org/tesselslate/wl"
	"golang.org/x/sys/unix"

	"github.com/abraxasd/abraxas/colorramp"
	"github.com/abraxasd/abraxas/wayland/zwlr"
)

// waylandBackend drives gamma ramps through the wlr-gamma-control-unstable-v1
// protocol, grounded on redshift/wayland.go's registry-driven output tracking
// and shared-memory ramp buffer, generalized here to hold the full 16-bit
// ramp for each output instead of a single white-point multiplier, so that
// SetTemperatureCRTC can target one output independently of the rest.
//
// Every method runs on whichever single goroutine owns the daemon's event
// loop (or a one-shot CLI command's only goroutine); nothing here touches
// conn from a second goroutine, so no lock guards outputs/manager/registry.
type waylandBackend struct {
	conn     *wlrConn
	registry wl.Registry
	manager  *zwlr.GammaControlManagerV1
	outputs  []*wlrOutput

	// pendingOutputs holds outputs seen before the gamma control manager
	// global, in case the compositor advertises them out of order; each is
	// bound as soon as manager becomes known.
	pendingOutputs []pendingOutput
}

type pendingOutput struct {
	name    uint32
	version uint32
}

type wlrOutput struct {
	output  wl.Output
	control *zwlr.GammaControlV1
	name    uint32

	size int
	ramp *wlrRampBuffer
}

// OpenWayland connects to the compositor named by display (empty string for
// $WAYLAND_DISPLAY) and binds wlr-gamma-control-unstable-v1. It performs two
// synchronous roundtrips: the first binds every global the compositor
// advertises up front, the second delivers each output's gamma_size (or
// failed) event, so GammaSize and SetTemperature work once this returns.
func OpenWayland(display string) (Backend, error) {
	conn, err := dialWlrConn(display)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	b := &waylandBackend{conn: conn}

	err = conn.registry(wl.RegistryListener{
		Global:       b.registryGlobal,
		GlobalRemove: b.registryGlobalRemove,
	})
	if err != nil {
		conn.close()
		return nil, fmt.Errorf("wayland: registry: %w", err)
	}

	if err := conn.roundtrip(); err != nil {
		conn.close()
		return nil, fmt.Errorf("wayland: initial roundtrip: %w", err)
	}

	if b.manager == nil {
		conn.close()
		return nil, ErrProtocolUnsupported
	}

	if err := conn.roundtrip(); err != nil {
		conn.close()
		return nil, fmt.Errorf("wayland: gamma size roundtrip: %w", err)
	}

	return b, nil
}

// FD and Pump satisfy EventSource: once opened, hotplug and gamma-control
// failures only ever arrive while the daemon's epoll loop has this fd
// marked readable.
func (b *waylandBackend) FD() int     { return b.conn.fd() }
func (b *waylandBackend) Pump() error { return b.conn.pump() }

func (b *waylandBackend) registryGlobal(data any, self wl.Registry, name uint32, iface string, version uint32) error {
	b.registry = self
	switch iface {
	case zwlr.GammaControlManagerV1Interface.Name:
		mgr := zwlr.GammaControlManagerV1(self.Bind(name, &zwlr.GammaControlManagerV1Interface, version))
		b.manager = &mgr
		pending := b.pendingOutputs
		b.pendingOutputs = nil
		for _, p := range pending {
			b.bindOutput(p.name, p.version)
		}

	case wl.OutputInterface.Name:
		if b.manager != nil {
			b.bindOutput(name, version)
		} else {
			b.pendingOutputs = append(b.pendingOutputs, pendingOutput{name: name, version: version})
		}
	}
	return nil
}

func (b *waylandBackend) bindOutput(name, version uint32) {
	out := wl.Output(b.registry.Bind(name, &wl.OutputInterface, version))
	control := b.manager.GetGammaControl(out)
	wo := &wlrOutput{output: out, name: name, control: &control}
	wo.control.SetListener(zwlr.GammaControlV1Listener{
		GammaSize: wo.onGammaSize,
		Failed:    wo.onFailed,
	}, nil)
	b.outputs = append(b.outputs, wo)
}

func (b *waylandBackend) registryGlobalRemove(data any, self wl.Registry, name uint32) error {
	for i, wo := range b.outputs {
		if wo.name == name {
			if wo.control != nil {
				wo.control.Destroy()
			}
			b.outputs = append(b.outputs[:i], b.outputs[i+1:]...)
			break
		}
	}
	return nil
}

func (wo *wlrOutput) onGammaSize(data any, self zwlr.GammaControlV1, size uint32) error {
	if size == 0 {
		wo.ramp = nil
		return nil
	}
	ramp, err := newWlrRampBuffer(int(size))
	if err != nil {
		return fmt.Errorf("wayland: allocate ramp buffer: %w", err)
	}
	wo.size = int(size)
	wo.ramp = ramp
	return nil
}

func (wo *wlrOutput) onFailed(data any, self zwlr.GammaControlV1) error {
	if wo.control != nil {
		wo.control.Destroy()
		wo.control = nil
	}
	return nil
}

func (b *waylandBackend) Name() string { return "wayland" }

func (b *waylandBackend) CRTCCount() int { return len(b.outputs) }

func (b *waylandBackend) GammaSize(i int) int {
	if i < 0 || i >= len(b.outputs) {
		return 0
	}
	return b.outputs[i].size
}

func (b *waylandBackend) SetTemperatureCRTC(i, kelvin int, brightness float64) error {
	if i < 0 || i >= len(b.outputs) {
		return ErrNoCRTC
	}
	wo := b.outputs[i]
	if wo.control == nil || wo.ramp == nil {
		return ErrNoCRTC
	}
	if err := wo.ramp.send(*wo.control, kelvin, brightness); err != nil {
		return err
	}
	return b.conn.flush()
}

func (b *waylandBackend) SetTemperature(kelvin int, brightness float64) error {
	success := 0
	var lastErr error
	for i := range b.outputs {
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

// Restore destroys every output's gamma-control object and immediately
// re-acquires a fresh one: the protocol defines destroying the object as
// restoring the compositor's default ramp, so a destroy/re-bind cycle is
// how this backend restores without giving up the ability to set gamma
// again afterward (unlike Close, which destroys and does not re-acquire).
func (b *waylandBackend) Restore() error {
	if b.manager == nil {
		return nil
	}
	for _, wo := range b.outputs {
		if wo.control != nil {
			wo.control.Destroy()
		}
		control := b.manager.GetGammaControl(wo.output)
		wo.control = &control
		wo.control.SetListener(zwlr.GammaControlV1Listener{
			GammaSize: wo.onGammaSize,
			Failed:    wo.onFailed,
		}, nil)
	}
	return b.conn.flush()
}

// Close destroys every remaining gamma-control object (restoring each
// output's default ramp per the protocol) and disconnects.
func (b *waylandBackend) Close() error {
	for _, wo := range b.outputs {
		if wo.control != nil {
			wo.control.Destroy()
			wo.control = nil
		}
	}
	_ = b.conn.flush()
	b.conn.close()
	return nil
}

// wlrRampBuffer remembers one output's gamma table size; the memfd that
// actually carries ramp data to the compositor is allocated fresh on every
// send, since the protocol is satisfied only by an immutable, fully sealed
// buffer and a sealed fd can never be rewritten for the next update.
type wlrRampBuffer struct {
	size int
}

func newWlrRampBuffer(size int) (*wlrRampBuffer, error) {
	if size < 1 {
		return nil, fmt.Errorf("wayland: invalid gamma size %d", size)
	}
	return &wlrRampBuffer{size: size}, nil
}

// send fills a newly allocated ramp buffer for kelvin/brightness, seals it
// against shrink/grow/write, hands it to control, and closes the local fd:
// the compositor already holds its own reference once SetGamma's message is
// queued, so this side doesn't need to keep the descriptor open afterward.
func (r *wlrRampBuffer) send(control zwlr.GammaControlV1, kelvin int, brightness float64) error {
	fd, err := sealedGammaRampFD(r.size, kelvin, brightness)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	control.SetGamma(fd) // async failure surfaces via GammaControlV1Listener.Failed
	return nil
}

// sealedGammaRampFD builds the three contiguous uint16 channel arrays the
// wlr-gamma-control protocol requires into an anonymous memfd, then applies
// F_SEAL_SHRINK|F_SEAL_GROW|F_SEAL_WRITE so the compositor can mmap it
// read-only with no risk of the buffer changing size or contents underneath
// it. All writes must land before sealing: a sealed fd rejects further
// writes outright.
func sealedGammaRampFD(size int, kelvin int, brightness float64) (int, error) {
	fd, err := unix.MemfdCreate("abraxas-gamma-ramp", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return -1, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)*3*2); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("ftruncate gamma ramp: %w", err)
	}

	red := make([]uint16, size)
	green := make([]uint16, size)
	blue := make([]uint16, size)
	colorramp.Ramp(kelvin, brightness, red, green, blue)
	if _, err := unix.Pwritev(fd, [][]byte{
		unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(red))), size*2),
		unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(green))), size*2),
		unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(blue))), size*2),
	}, 0); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("write gamma ramp: %w", err)
	}

	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_GROW|unix.F_SEAL_WRITE); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("seal gamma ramp: %w", err)
	}

	return fd, nil
}
