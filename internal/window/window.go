// Package window provides the launcher's main window and error dialogs.
//
// A Host shows one window pointed at the local server and delivers the
// menu, close and exit events the lifecycle coordinator reacts to. Two
// hosts are available: Terminal renders the window with tcell and Browser
// hands the URL to the system browser.
package window

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// MainLabel is the label of the launcher's only window.
const MainLabel = "main"

// Spec describes a window to create.
type Spec struct {
	Label     string
	Title     string
	URL       string
	Width     int
	Height    int
	Resizable bool

	// OnNavigation is consulted before the window navigates. Returning false
	// cancels the navigation.
	OnNavigation func(url string) bool
}

// Host owns the application event loop.
type Host interface {
	// CreateWindow creates the window described by spec.
	CreateWindow(spec Spec) error

	// OnMenuEvent registers the handler for menu item activation.
	OnMenuEvent(fn func(id string))

	// OnCloseRequested registers the handler for a window close request.
	OnCloseRequested(fn func())

	// OnExitRequested registers the handler called when the event loop is
	// about to end, whatever the reason.
	OnExitRequested(fn func())

	// Run blocks in the event loop until Exit is called or ctx is done.
	Run(ctx context.Context) error

	// Exit asks the event loop to end with the given code.
	Exit(code int)
}

// Dialog shows modal messages.
type Dialog interface {
	// ShowError displays an error and returns once it has been dismissed.
	ShowError(title, description string)
}

// WriterDialog writes dialogs to an io.Writer. It is used when no
// interactive surface is available.
type WriterDialog struct {
	W io.Writer
}

// ShowError writes the title and description.
func (d WriterDialog) ShowError(title, description string) {
	_, _ = fmt.Fprintf(d.W, "%s\n\n%s\n", title, description)
}

// Errors returned by hosts.
var (
	ErrNoWindow     = errors.New("no window created")
	ErrWindowExists = errors.New("window already created")
	ErrInvalidURL   = errors.New("invalid window URL")
)

// handlers holds the registered event handlers shared by both hosts.
type handlers struct {
	menu  func(id string)
	close func()
	exit  func()
}
