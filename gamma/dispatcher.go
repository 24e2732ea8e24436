package gamma

import "os"

// Open probes backends in a fixed order and returns whichever first opens
// successfully: wlr-gamma-control, then GNOME's Mutter DBus interface (both
// only attempted when $WAYLAND_DISPLAY is set), then DRM (rejecting cardNum
// if it has no usable CRTC), then X11. Every step falls through to the
// next on failure; there is no early exit once a display-server variable is
// set, since a compositor can expose $WAYLAND_DISPLAY yet support neither
// compositor-native protocol.
func Open(cardNum int) (Backend, error) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if b, err := OpenWayland(""); err == nil {
			return b, nil
		}
		if b, err := OpenGNOME(); err == nil {
			return b, nil
		}
	}

	if b, err := OpenDRM(cardNum); err == nil {
		return b, nil
	}

	if b, err := OpenX11(""); err == nil {
		return b, nil
	}

	return nil, ErrNoBackend
}
