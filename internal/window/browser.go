package window

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"
)

// Browser is a Host that shows the window in the system browser. It has
// no menu or close events; the loop ends on Exit or context cancellation.
type Browser struct {
	mu       sync.Mutex
	opener   Opener
	logger   *zap.Logger
	spec     *Spec
	handlers handlers

	quit     chan struct{}
	quitOnce sync.Once
	exitCode int
}

// NewBrowser creates a browser host.
func NewBrowser(opener Opener, logger *zap.Logger) *Browser {
	if opener == nil {
		opener = SystemOpener{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{
		opener: opener,
		logger: logger,
		quit:   make(chan struct{}),
	}
}

// CreateWindow opens spec.URL in the system browser.
func (b *Browser) CreateWindow(spec Spec) error {
	if _, err := url.ParseRequestURI(spec.URL); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, spec.URL)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.spec != nil {
		return ErrWindowExists
	}
	if err := b.opener.Open(spec.URL); err != nil {
		return fmt.Errorf("opening %s: %w", spec.URL, err)
	}
	s := spec
	b.spec = &s
	b.logger.Info("opened window in system browser", zap.String("url", spec.URL), zap.String("title", spec.Title))
	return nil
}

// OnMenuEvent registers the menu handler. The browser host has no menu.
func (b *Browser) OnMenuEvent(fn func(id string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers.menu = fn
}

// OnCloseRequested registers the close handler. The browser host never
// delivers close requests.
func (b *Browser) OnCloseRequested(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers.close = fn
}

// OnExitRequested registers the exit handler.
func (b *Browser) OnExitRequested(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers.exit = fn
}

// Run blocks until Exit is called or ctx is done, then runs the exit handler.
func (b *Browser) Run(ctx context.Context) error {
	b.mu.Lock()
	created := b.spec != nil
	b.mu.Unlock()
	if !created {
		return ErrNoWindow
	}

	select {
	case <-ctx.Done():
	case <-b.quit:
	}

	b.mu.Lock()
	onExit := b.handlers.exit
	b.mu.Unlock()
	if onExit != nil {
		onExit()
	}
	b.Exit(0)
	return nil
}

// Exit ends the event loop. Only the first code is kept.
func (b *Browser) Exit(code int) {
	b.quitOnce.Do(func() {
		b.mu.Lock()
		b.exitCode = code
		b.mu.Unlock()
		close(b.quit)
	})
}

// ExitCode returns the code passed to Exit.
func (b *Browser) ExitCode() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exitCode
}
