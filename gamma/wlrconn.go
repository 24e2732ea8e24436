//go:build unix

package gamma

import "codeberg.org/tesselslate/wl"

// wlrConn wraps a wl.Display with no dispatch thread of its own: every
// call into the library happens on whichever goroutine calls in, the same
// goroutine that's either running the daemon's single epoll loop or a
// one-shot CLI command. Startup uses roundtrip, a blocking
// wl_display_roundtrip-style call, matching the two synchronous roundtrips
// the ground-truth gamma_wl.c/wayland.rs backends use to initialize;
// everything after that is driven by pump, called only once epoll reports
// the display's fd readable, so Dispatch never blocks unexpectedly.
type wlrConn struct {
	display *wl.Display
	err     error
}

func dialWlrConn(name string) (*wlrConn, error) {
	display, err := wl.NewDisplay(name)
	if err != nil {
		return nil, err
	}
	return &wlrConn{display: display}, nil
}

func (c *wlrConn) registry(cb wl.RegistryListener) error {
	reg := c.display.GetRegistry()
	reg.SetListener(cb, nil)
	return c.display.Flush()
}

// fd returns the display's underlying socket for epoll registration.
func (c *wlrConn) fd() int { return c.display.Fd() }

// pump dispatches whatever is already queued on fd(). The caller must only
// invoke this after epoll reports the fd readable, so Dispatch returns
// promptly instead of blocking on a read that has nothing to satisfy it.
func (c *wlrConn) pump() error {
	if c.err != nil {
		return c.err
	}
	if err := c.display.Dispatch(); err != nil {
		c.err = err
		return err
	}
	return nil
}

// roundtrip blocks until every event queued as of this call has been
// dispatched. Used only at connection setup, before anything is watching
// fd() on an event loop.
func (c *wlrConn) roundtrip() error {
	if c.err != nil {
		return c.err
	}
	done := false
	cb := c.display.Sync()
	cb.SetListener(wl.CallbackListener{
		Done: func(data any, self wl.Callback, callbackData uint32) error {
			done = true
			return nil
		},
	}, nil)
	if err := c.display.Flush(); err != nil {
		c.err = err
		return err
	}
	for !done {
		if err := c.display.Dispatch(); err != nil {
			c.err = err
			return err
		}
	}
	return nil
}

// flush sends any messages queued by object method calls since the last
// flush, without waiting for a response.
func (c *wlrConn) flush() error {
	if c.err != nil {
		return c.err
	}
	if err := c.display.Flush(); err != nil {
		c.err = err
		return err
	}
	return nil
}

func (c *wlrConn) close() {
	c.display.Close()
}
