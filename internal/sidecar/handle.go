package sidecar

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the state of a sidecar process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process exited on its own.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Handle owns a spawned sidecar process.
//
// A Handle is created by Supervisor.Spawn and released exactly once, either
// by the supervisor's shutdown sequence or by Close. Releasing a handle that
// is still running kills the process, so no exit path leaves it orphaned.
type Handle struct {
	// ID is the unique identifier for this launch of the sidecar.
	ID string

	// Started is the time the process was started.
	Started time.Time

	cmd *exec.Cmd

	// done is closed once the process has been reaped.
	done chan struct{}

	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error

	killOnce sync.Once
	killErr  error
	killed   atomic.Bool

	// relays are flushed after the process is reaped.
	relays []*lineRelay
}

func newHandle(id string, cmd *exec.Cmd) *Handle {
	h := &Handle{
		ID:   id,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	h.state.Store(int32(StateCreated))
	h.exitCode.Store(-1)
	return h
}

// State returns the current process state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// PID returns the process ID and whether one is known.
func (h *Handle) PID() (int, bool) {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return 0, false
	}
	return h.cmd.Process.Pid, true
}

// Done returns a channel that is closed when the process has exited and
// been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, or -1 if the process has not exited or was
// terminated by a signal.
func (h *Handle) ExitCode() int {
	return int(h.exitCode.Load())
}

// ExitError returns the error reported by Wait, if any.
func (h *Handle) ExitError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.exitErr
}

// Killed reports whether Kill has been issued against this handle.
func (h *Handle) Killed() bool {
	return h.killed.Load()
}

// Kill unconditionally kills the process. The OS kill path runs at most
// once per handle; later calls return the first result.
func (h *Handle) Kill() error {
	h.killOnce.Do(func() {
		h.killed.Store(true)
		if h.cmd == nil || h.cmd.Process == nil {
			h.killErr = ErrProcessNotStarted
			return
		}
		if h.Exited() {
			return
		}
		err := h.cmd.Process.Kill()
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
		}
		h.killErr = err
	})
	return h.killErr
}

// Close releases the handle. A process that is still running is killed.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	if h.State() != StateRunning || h.Exited() {
		return nil
	}
	return h.Kill()
}

// Runtime returns how long the process has been running.
func (h *Handle) Runtime() time.Duration {
	if h.Started.IsZero() {
		return 0
	}
	return time.Since(h.Started)
}

// start starts the process and the reaper goroutine.
func (h *Handle) start() error {
	if err := h.cmd.Start(); err != nil {
		return err
	}
	h.Started = time.Now()
	h.state.Store(int32(StateRunning))

	go h.wait()
	return nil
}

// wait reaps the process, so a PID liveness probe stops seeing it once it
// has exited.
func (h *Handle) wait() {
	err := h.cmd.Wait()

	for _, r := range h.relays {
		r.Flush()
	}

	h.mu.Lock()
	h.exitErr = err
	h.mu.Unlock()

	exitCode := 0
	state := StateExited
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				state = StateKilled
			}
		}
	}

	h.exitCode.Store(int32(exitCode))
	h.state.Store(int32(state))
	close(h.done)
}
