package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// WritePIDFile writes the current process's PID as decimal text.
func WritePIDFile(path string) error {
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("store: write pid file: %w", err)
	}
	return nil
}

// RemovePIDFile removes the PID file on clean shutdown; a missing file is
// not an error.
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove pid file: %w", err)
	}
	return nil
}

// DaemonAlive reads the PID file and checks liveness with kill(pid, 0): no
// signal is delivered, but ESRCH distinguishes "no such process" from
// "process exists but isn't ours to signal". A missing file or unparsable
// content reports not alive. The PID file is advisory only; there is no
// locking.
func DaemonAlive(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	err = unix.Kill(pid, 0)
	return err != unix.ESRCH
}
