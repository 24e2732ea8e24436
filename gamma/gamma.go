// Package gamma is the multi-backend gamma-ramp control abstraction: four
// sibling implementations (DRM, X11/RandR, wlr-gamma-control, GNOME/Mutter)
// behind one small contract, plus Open, which probes them in a fixed order
// and returns whichever first succeeds.
//
// The four backends are siblings that each own their own state; they share
// no base type, only the Backend interface below, matching how
// redshift/x11.go and redshift/wayland.go each own their state independently
// under the same redshift.Manager interface.
package gamma

import "errors"

// Errors returned by the backend Open functions and surfaced to the daemon's
// startup retry loop and the CLI's one-line diagnostics.
var (
	ErrPermission          = errors.New("gamma: permission denied (user not in video group)")
	ErrOpenFailed          = errors.New("gamma: failed to open display/device")
	ErrNoCRTC              = errors.New("gamma: no usable CRTC available")
	ErrProtocolUnsupported = errors.New("gamma: compositor does not support wlr-gamma-control")
	ErrGNOMEBus            = errors.New("gamma: org.gnome.Mutter.DisplayConfig call failed")
	ErrNoBackend           = errors.New("gamma: no backend available")
)

// Backend is the small operation set every gamma-ramp implementation
// exposes. All four concrete backends (DRM, X11, Wayland, GNOME) implement
// it, and Open returns whichever one it selects.
type Backend interface {
	// Name is the short user-visible identifier: "drm", "x11", "wayland", or
	// "gnome".
	Name() string

	// CRTCCount returns the number of CRTCs this backend knows about,
	// including ones with GammaSize() == 0 (unusable, silently skipped).
	CRTCCount() int

	// GammaSize returns CRTC i's ramp length, or 0 if unusable.
	GammaSize(i int) int

	// SetTemperature applies kelvin/brightness to every usable CRTC,
	// succeeding if at least one CRTC was written.
	SetTemperature(kelvin int, brightness float64) error

	// SetTemperatureCRTC applies kelvin/brightness to a single CRTC.
	SetTemperatureCRTC(i, kelvin int, brightness float64) error

	// Restore writes back the gamma ramp that was in effect before Init.
	Restore() error

	// Close restores (if not already restored) and releases all resources.
	Close() error
}

// EventSource is implemented by backends that need their own file
// descriptor pumped by the daemon's event loop instead of behaving purely
// synchronously: the wlr-gamma-control backend watches its compositor
// connection for output hotplug and gamma-control failures this way. DRM,
// X11, and GNOME issue one blocking call per operation and never
// implement it, so daemon/loop.go only registers FD() when a backend
// satisfies this interface.
type EventSource interface {
	// FD returns the socket to register with epoll, valid for the
	// backend's lifetime.
	FD() int

	// Pump processes whatever is already queued on FD. Call only after
	// epoll reports it readable.
	Pump() error
}
