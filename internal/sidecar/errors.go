package sidecar

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the sidecar package.
var (
	// ErrAlreadySpawned is returned when a live sidecar already exists.
	ErrAlreadySpawned = errors.New("sidecar already spawned")

	// ErrShuttingDown is returned when Spawn is called after shutdown began.
	ErrShuttingDown = errors.New("sidecar supervisor is shutting down")

	// ErrNoCommand is returned when the supervisor has no executable configured.
	ErrNoCommand = errors.New("sidecar command is required")

	// ErrProcessNotStarted is returned when an operation requires a started process.
	ErrProcessNotStarted = errors.New("process not started")
)

// NegotiationError reports that no usable port could be bound.
type NegotiationError struct {
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("failed to bind to ephemeral port: %v", e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// SpawnError reports that the sidecar executable could not be launched.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn sidecar %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ReadinessTimeoutError reports that the sidecar never accepted a connection.
type ReadinessTimeoutError struct {
	Addr    string
	Timeout time.Duration
	Err     error // context error when the wait was cut short
}

func (e *ReadinessTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("server did not become reachable at %s: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("server did not become reachable at %s within %s", e.Addr, e.Timeout)
}

func (e *ReadinessTimeoutError) Unwrap() error {
	return e.Err
}
