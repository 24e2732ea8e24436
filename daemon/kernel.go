package daemon

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// blockTerminationSignals blocks SIGTERM/SIGINT at the process level and
// returns a signalfd that becomes readable once one arrives, so the event
// loop observes shutdown the same way it observes any other fd. Blocking
// must happen before anything that could fail during startup, so a kill -15
// during gamma-backend retry is never lost.
//
// sigsetAdd below sets the bit for signal n directly in Sigset_t's 16-word
// bitmap (kernel sigset_t is 1024 bits on linux/amd64) rather than going
// through a portable sigaddset wrapper, the same way drm.go talks to the
// kernel's ioctl ABI directly instead of through a cgo binding.
func blockTerminationSignals() (int, error) {
	var set unix.Sigset_t
	sigsetAdd(&set, unix.SIGTERM)
	sigsetAdd(&set, unix.SIGINT)

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return -1, fmt.Errorf("daemon: block signals: %w", err)
	}
	fd, err := unix.Signalfd(-1, &set, unix.SFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("daemon: signalfd: %w", err)
	}
	return fd, nil
}

func sigsetAdd(set *unix.Sigset_t, sig int) {
	set.Val[(sig-1)/64] |= 1 << uint((sig-1)%64)
}

// drainSignalfd reads and discards one signalfd_siginfo record so the fd
// doesn't immediately refire; the loop only cares that a blocked signal
// arrived, not which one.
func drainSignalfd(fd int) {
	var buf [128]byte // sizeof(struct signalfd_siginfo)
	unix.Read(fd, buf[:])
}

// watchConfigDir opens an inotify instance watching dir for IN_CLOSE_WRITE
// only -- not IN_MODIFY -- so a reader never observes a partial write from
// the CLI rewriting override.json or config.ini.
func watchConfigDir(dir string) (int, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("daemon: inotify_init1: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, dir, unix.IN_CLOSE_WRITE); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("daemon: inotify_add_watch: %w", err)
	}
	return fd, nil
}

// inotifyNames parses a raw inotify read buffer into the bare filenames it
// names, skipping the directory-level events (Len == 0) inotify also
// reports for the watch itself.
func inotifyNames(buf []byte) []string {
	const headerSize = 16 // wd(4) + mask(4) + cookie(4) + len(4)
	var names []string
	for off := 0; off+headerSize <= len(buf); {
		nameLen := binary.LittleEndian.Uint32(buf[off+12 : off+16])
		if nameLen > 0 {
			start := off + headerSize
			end := start + int(nameLen)
			if end > len(buf) {
				break
			}
			raw := buf[start:end]
			n := 0
			for n < len(raw) && raw[n] != 0 {
				n++
			}
			names = append(names, string(raw[:n]))
		}
		off += headerSize + int(nameLen)
	}
	return names
}

// createTimer creates a monotonic timerfd that fires every period starting
// after period, matching TEMP_UPDATE_SEC's repeating tick.
func createTimer(periodSec int64) (int, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("daemon: timerfd_create: %w", err)
	}
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(periodSec * 1e9),
		Value:    unix.NsecToTimespec(periodSec * 1e9),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("daemon: timerfd_settime: %w", err)
	}
	return fd, nil
}

// drainTimer reads and discards the 8-byte expiration counter timerfd
// writes on every fire.
func drainTimer(fd int) {
	var buf [8]byte
	unix.Read(fd, buf[:])
}

// pollSignalReady does a zero-timeout check of fd, used between gamma
// backend retries so a SIGTERM received during the up-to-30s retry window
// aborts startup immediately instead of waiting out the retry budget.
func pollSignalReady(fd int) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	return err == nil && n > 0 && fds[0].Revents&unix.POLLIN != 0
}
