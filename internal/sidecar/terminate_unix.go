//go:build unix

package sidecar

import (
	"errors"

	"golang.org/x/sys/unix"
)

// platformTerminator signals POSIX processes directly.
type platformTerminator struct{}

// RequestTermination sends SIGTERM.
func (platformTerminator) RequestTermination(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

// Alive probes the PID with signal 0. EPERM means the process exists but
// belongs to someone else.
func (platformTerminator) Alive(pid int) (bool, error) {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		return true, nil
	default:
		return false, err
	}
}

// ForceTerminate is a no-op; the handle's SIGKILL covers POSIX.
func (platformTerminator) ForceTerminate(int) error {
	return nil
}
