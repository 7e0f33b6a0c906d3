package app

import (
	"errors"
	"fmt"
)

// DialogTitle is the title of every startup failure dialog.
const DialogTitle = "Liteskill - Startup Error"

// Application errors.
var (
	// ErrStartupCancelled indicates startup was interrupted by the caller's
	// context, usually an OS signal.
	ErrStartupCancelled = errors.New("startup cancelled")

	// ErrAlreadyRunning indicates Run was called more than once.
	ErrAlreadyRunning = errors.New("application already running")
)

// Stage identifies the startup step that failed.
type Stage int

const (
	// StageNegotiate is port selection.
	StageNegotiate Stage = iota
	// StageSpawn is launching the sidecar.
	StageSpawn
	// StageReady is waiting for the sidecar to accept connections.
	StageReady
	// StageWindow is creating the main window.
	StageWindow
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageNegotiate:
		return "negotiate"
	case StageSpawn:
		return "spawn"
	case StageReady:
		return "ready"
	case StageWindow:
		return "window"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// headline is the first line of the dialog for the stage.
func (s Stage) headline() string {
	switch s {
	case StageNegotiate:
		return "Failed to find a free port:"
	case StageSpawn:
		return "Failed to start the application server:"
	case StageReady:
		return "The application server did not start in time:"
	case StageWindow:
		return "Failed to create the application window:"
	default:
		return "Startup failed:"
	}
}

// StartupError is a fatal failure before the window is running.
type StartupError struct {
	Stage Stage
	Err   error
}

func (e *StartupError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Description returns the text shown in the failure dialog.
func (e *StartupError) Description() string {
	return fmt.Sprintf("%s\n\n%v\n\nThe application will now exit.", e.Stage.headline(), e.Err)
}

// WindowError wraps a failure reported by the window host.
type WindowError struct {
	Label string
	Err   error
}

func (e *WindowError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("window %q: %v", e.Label, e.Err)
}

func (e *WindowError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
