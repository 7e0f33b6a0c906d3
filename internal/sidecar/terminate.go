package sidecar

import "strconv"

// Terminator performs the platform-specific half of the shutdown sequence.
// The poll-then-escalate logic lives in the Supervisor and is shared by
// every platform.
type Terminator interface {
	// RequestTermination asks the process to exit cooperatively.
	RequestTermination(pid int) error

	// Alive reports whether a process with the given PID still exists.
	Alive(pid int) (bool, error)

	// ForceTerminate kills the process by PID, in addition to the kill
	// issued against the owned handle. It may be a no-op.
	ForceTerminate(pid int) error
}

// DefaultTerminator returns the terminator for the running platform.
func DefaultTerminator() Terminator {
	return platformTerminator{}
}

// taskkillArgs builds the taskkill arguments for pid. Without force,
// taskkill posts WM_CLOSE; with force it kills the whole process tree.
func taskkillArgs(pid int, force bool) []string {
	if force {
		return []string{"/F", "/T", "/PID", strconv.Itoa(pid)}
	}
	return []string{"/PID", strconv.Itoa(pid)}
}
