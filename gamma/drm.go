package gamma

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/abraxasd/abraxas/colorramp"
)

// DRM ioctl request codes, built the same way linux/drm.h's DRM_IOWR macro
// does: ioctl type 'd', the mode-getresources/getcrtc/getgamma/setgamma
// command numbers, and the size of the struct being transferred.
const (
	drmIoctlBase = 'd'

	drmCmdModeGetResources = 0xA0
	drmCmdModeGetCRTC      = 0xA1
	drmCmdModeGetGamma     = 0xA4
	drmCmdModeSetGamma     = 0xA5
)

// drmModeCardRes mirrors struct drm_mode_card_res from linux/drm_mode.h.
type drmModeCardRes struct {
	FbIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFBs       uint32
	CountCrtcs     uint32
	CountConns     uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

// drmModeCrtc mirrors struct drm_mode_crtc, including the trailing
// drm_mode_modeinfo we never need but must still account for in the size.
type drmModeCrtc struct {
	SetConnsPtr  uint64
	CountConns   uint32
	CrtcID       uint32
	FbID         uint32
	X            uint32
	Y            uint32
	GammaSize    uint32
	ModeValid    uint32
	Mode         [68]byte
}

// drmModeCrtcLut mirrors struct drm_mode_crtc_lut, used by both
// MODE_GETGAMMA and MODE_SETGAMMA.
type drmModeCrtcLut struct {
	CrtcID    uint32
	GammaSize uint32
	Red       uint64
	Green     uint64
	Blue      uint64
}

// The kernel ABI fixes these struct sizes exactly; a mismatch means our
// field layout has drifted from the kernel's, and every ioctl below would
// silently corrupt memory or fail. This is the closest Go equivalent of the
// reference implementation's static_assert(sizeof(...) == N, ...).
func init() {
	assertSize("drm_mode_card_res", unsafe.Sizeof(drmModeCardRes{}), 64)
	assertSize("drm_mode_crtc", unsafe.Sizeof(drmModeCrtc{}), 104)
	assertSize("drm_mode_crtc_lut", unsafe.Sizeof(drmModeCrtcLut{}), 32)
}

func assertSize(name string, got uintptr, want uintptr) {
	if got != want {
		panic(fmt.Sprintf("gamma: %s size mismatch with kernel ABI: got %d want %d", name, got, want))
	}
}

func drmIoctl(fd int, cmd uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), cmd, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func iowr(nr uintptr, size uintptr) uintptr {
	// Matches linux/ioctl.h's _IOWR(type, nr, size): both the read and
	// write direction bits are set, since the kernel mode ioctls are
	// handshake-shaped (caller fills some fields, kernel fills the rest).
	const (
		iocNRBits   = 8
		iocTypeBits = 8
		iocSizeBits = 14
		iocDirBits  = 2

		iocNRShift   = 0
		iocTypeShift = iocNRShift + iocNRBits
		iocSizeShift = iocTypeShift + iocTypeBits
		iocDirShift  = iocSizeShift + iocSizeBits

		iocRead  = 2
		iocWrite = 1
	)
	dir := uintptr(iocRead | iocWrite)
	return (dir << iocDirShift) | (uintptr(drmIoctlBase) << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

type drmCRTC struct {
	id        uint32
	gammaSize uint32
	savedR    []uint16
	savedG    []uint16
	savedB    []uint16
}

// drmBackend drives gamma ramps via raw DRM mode ioctls against
// /dev/dri/card{N}, with no libdrm dependency, matching
// original_source/c23/libmeridian/src/gamma_drm.c.
type drmBackend struct {
	fd    int
	crtcs []drmCRTC
}

// OpenDRM opens /dev/dri/card{cardNum}, enumerates its CRTCs, and saves each
// usable one's current gamma ramp.
func OpenDRM(cardNum int) (Backend, error) {
	path := fmt.Sprintf("/dev/dri/card%d", cardNum)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		if err == unix.EACCES {
			return nil, ErrPermission
		}
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	b := &drmBackend{fd: fd}

	var res drmModeCardRes
	if err := drmIoctl(fd, iowr(drmCmdModeGetResources, unsafe.Sizeof(res)), unsafe.Pointer(&res)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("drm: get resources: %w", err)
	}
	if res.CountCrtcs == 0 {
		unix.Close(fd)
		return nil, ErrNoCRTC
	}

	crtcIDs := make([]uint32, res.CountCrtcs)
	res.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcIDs[0])))
	// The kernel copies out every array whose count is nonzero, so only the
	// CRTC array (the one pointer filled in) keeps its count.
	res.CountFBs, res.CountConns, res.CountEncoders = 0, 0, 0
	if err := drmIoctl(fd, iowr(drmCmdModeGetResources, unsafe.Sizeof(res)), unsafe.Pointer(&res)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("drm: get resources (crtc ids): %w", err)
	}

	b.crtcs = make([]drmCRTC, len(crtcIDs))
	for i, id := range crtcIDs {
		c := &b.crtcs[i]
		c.id = id

		var info drmModeCrtc
		info.CrtcID = id
		if err := drmIoctl(fd, iowr(drmCmdModeGetCRTC, unsafe.Sizeof(info)), unsafe.Pointer(&info)); err != nil {
			continue
		}
		if info.GammaSize <= 1 {
			continue
		}
		c.gammaSize = info.GammaSize

		c.savedR = make([]uint16, c.gammaSize)
		c.savedG = make([]uint16, c.gammaSize)
		c.savedB = make([]uint16, c.gammaSize)

		lut := drmModeCrtcLut{
			CrtcID:    id,
			GammaSize: c.gammaSize,
			Red:       uint64(uintptr(unsafe.Pointer(&c.savedR[0]))),
			Green:     uint64(uintptr(unsafe.Pointer(&c.savedG[0]))),
			Blue:      uint64(uintptr(unsafe.Pointer(&c.savedB[0]))),
		}
		if err := drmIoctl(fd, iowr(drmCmdModeGetGamma, unsafe.Sizeof(lut)), unsafe.Pointer(&lut)); err != nil {
			c.gammaSize = 0
			c.savedR, c.savedG, c.savedB = nil, nil, nil
		}
	}

	anyUsable := false
	for _, c := range b.crtcs {
		if c.gammaSize > 1 {
			anyUsable = true
			break
		}
	}
	if !anyUsable {
		unix.Close(fd)
		return nil, ErrNoCRTC
	}

	return b, nil
}

func (b *drmBackend) Name() string      { return "drm" }
func (b *drmBackend) CRTCCount() int    { return len(b.crtcs) }
func (b *drmBackend) GammaSize(i int) int {
	if i < 0 || i >= len(b.crtcs) {
		return 0
	}
	return int(b.crtcs[i].gammaSize)
}

func (b *drmBackend) SetTemperatureCRTC(i, kelvin int, brightness float64) error {
	if i < 0 || i >= len(b.crtcs) {
		return ErrNoCRTC
	}
	c := &b.crtcs[i]
	if c.gammaSize <= 1 {
		return ErrNoCRTC
	}

	r := make([]uint16, c.gammaSize)
	g := make([]uint16, c.gammaSize)
	bl := make([]uint16, c.gammaSize)
	colorramp.Ramp(kelvin, brightness, r, g, bl)

	lut := drmModeCrtcLut{
		CrtcID:    c.id,
		GammaSize: c.gammaSize,
		Red:       uint64(uintptr(unsafe.Pointer(&r[0]))),
		Green:     uint64(uintptr(unsafe.Pointer(&g[0]))),
		Blue:      uint64(uintptr(unsafe.Pointer(&bl[0]))),
	}
	if err := drmIoctl(b.fd, iowr(drmCmdModeSetGamma, unsafe.Sizeof(lut)), unsafe.Pointer(&lut)); err != nil {
		return fmt.Errorf("drm: set gamma crtc %d: %w", c.id, err)
	}
	return nil
}

func (b *drmBackend) SetTemperature(kelvin int, brightness float64) error {
	var lastErr error
	success := 0
	for i, c := range b.crtcs {
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

func (b *drmBackend) Restore() error {
	for _, c := range b.crtcs {
		if c.gammaSize <= 1 || c.savedR == nil {
			continue
		}
		lut := drmModeCrtcLut{
			CrtcID:    c.id,
			GammaSize: c.gammaSize,
			Red:       uint64(uintptr(unsafe.Pointer(&c.savedR[0]))),
			Green:     uint64(uintptr(unsafe.Pointer(&c.savedG[0]))),
			Blue:      uint64(uintptr(unsafe.Pointer(&c.savedB[0]))),
		}
		_ = drmIoctl(b.fd, iowr(drmCmdModeSetGamma, unsafe.Sizeof(lut)), unsafe.Pointer(&lut))
	}
	return nil
}

func (b *drmBackend) Close() error {
	_ = b.Restore()
	return unix.Close(b.fd)
}
