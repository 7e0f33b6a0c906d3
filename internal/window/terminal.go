package window

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

// QuitMenuID is the menu item id delivered when the user quits.
const QuitMenuID = "quit"

// Terminal is a Host that renders the window in the terminal with tcell.
//
// Keys: q or Ctrl+Q activates the quit menu item, Esc or Ctrl+C requests
// the window to close, b opens the current page in the system browser.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	inited bool

	opener Opener
	logger *zap.Logger

	spec     *Spec
	current  string
	status   string
	handlers handlers

	running bool
	modal   *modal

	quit     chan struct{}
	quitOnce sync.Once
	exitCode int
}

// modal is an error dialog shown over the window.
type modal struct {
	title       string
	description string
	dismissed   chan struct{}
}

// TerminalOption configures a Terminal host.
type TerminalOption func(*Terminal)

// WithOpener sets the opener used for external URLs.
func WithOpener(o Opener) TerminalOption {
	return func(t *Terminal) {
		if o != nil {
			t.opener = o
		}
	}
}

// WithLogger sets the host logger.
func WithLogger(l *zap.Logger) TerminalOption {
	return func(t *Terminal) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTerminal creates a terminal host on the process terminal.
func NewTerminal(opts ...TerminalOption) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewTerminalWithScreen(screen, opts...), nil
}

// NewTerminalWithScreen creates a terminal host on the given screen.
func NewTerminalWithScreen(screen tcell.Screen, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		screen: screen,
		opener: SystemOpener{},
		logger: zap.NewNop(),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateWindow initializes the screen and draws the window.
func (t *Terminal) CreateWindow(spec Spec) error {
	if _, err := url.ParseRequestURI(spec.URL); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, spec.URL)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.spec != nil {
		return ErrWindowExists
	}
	if err := t.initLocked(); err != nil {
		return err
	}

	s := spec
	t.spec = &s
	t.current = spec.URL
	t.status = "connected"
	t.drawLocked()
	return nil
}

// OnMenuEvent registers the menu handler.
func (t *Terminal) OnMenuEvent(fn func(id string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers.menu = fn
}

// OnCloseRequested registers the close handler.
func (t *Terminal) OnCloseRequested(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers.close = fn
}

// OnExitRequested registers the exit handler.
func (t *Terminal) OnExitRequested(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers.exit = fn
}

// Exit ends the event loop. Only the first code is kept.
func (t *Terminal) Exit(code int) {
	t.quitOnce.Do(func() {
		t.mu.Lock()
		t.exitCode = code
		t.mu.Unlock()
		close(t.quit)
	})
}

// ExitCode returns the code passed to Exit.
func (t *Terminal) ExitCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode
}

// CurrentURL returns the page the window shows.
func (t *Terminal) CurrentURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Navigate moves the window to target if the navigation callback allows it.
// It reports whether the window navigated.
func (t *Terminal) Navigate(target string) bool {
	t.mu.Lock()
	if t.spec == nil {
		t.mu.Unlock()
		return false
	}
	filter := t.spec.OnNavigation
	t.mu.Unlock()

	if filter != nil && !filter(target) {
		t.setStatus("opened externally: " + target)
		return false
	}

	t.mu.Lock()
	t.current = target
	t.status = "connected"
	t.drawLocked()
	t.mu.Unlock()
	return true
}

// Run processes terminal events until Exit is called or ctx is done. The
// exit handler runs before Run returns, and the screen is restored.
func (t *Terminal) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.spec == nil {
		t.mu.Unlock()
		return ErrNoWindow
	}
	t.running = true
	t.mu.Unlock()

	events := make(chan tcell.Event)
	go t.pollEvents(events)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-t.quit:
			break loop
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			t.handleEvent(ev)
		}
	}

	t.mu.Lock()
	t.running = false
	onExit := t.handlers.exit
	t.mu.Unlock()

	if onExit != nil {
		onExit()
	}
	t.Exit(0)
	t.fini()
	return nil
}

// ShowError shows a modal error and waits for any key. It can be used
// before a window exists and while the event loop runs.
func (t *Terminal) ShowError(title, description string) {
	t.mu.Lock()
	if err := t.initLocked(); err != nil {
		t.mu.Unlock()
		t.logger.Error("cannot show error dialog", zap.Error(err))
		WriterDialog{W: os.Stderr}.ShowError(title, description)
		return
	}
	m := &modal{title: title, description: description, dismissed: make(chan struct{})}
	t.modal = m
	running := t.running
	t.drawLocked()
	t.mu.Unlock()

	if running {
		select {
		case <-m.dismissed:
		case <-t.quit:
		}
		return
	}

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev.(type) {
		case *tcell.EventKey:
			t.dismissModal()
			if t.spec == nil {
				t.fini()
			}
			return
		case *tcell.EventResize:
			t.mu.Lock()
			t.screen.Sync()
			t.drawLocked()
			t.mu.Unlock()
		}
	}
}

func (t *Terminal) pollEvents(out chan<- tcell.Event) {
	defer close(out)
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case out <- ev:
		case <-t.quit:
			return
		}
	}
}

func (t *Terminal) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.mu.Lock()
		t.screen.Sync()
		t.drawLocked()
		t.mu.Unlock()

	case *tcell.EventKey:
		if t.dismissModal() {
			return
		}
		t.handleKey(ev)
	}
}

func (t *Terminal) handleKey(ev *tcell.EventKey) {
	t.mu.Lock()
	h := t.handlers
	t.mu.Unlock()

	switch {
	case ev.Key() == tcell.KeyCtrlQ, ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
		if h.menu == nil {
			t.Exit(0)
			return
		}
		h.menu(QuitMenuID)

	case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC:
		if h.close != nil {
			h.close()
		}
		t.Exit(0)

	case ev.Key() == tcell.KeyRune && ev.Rune() == 'b':
		target := t.CurrentURL()
		if err := t.opener.Open(target); err != nil {
			t.logger.Warn("failed to open URL in system browser", zap.String("url", target), zap.Error(err))
			t.setStatus("could not open browser: " + err.Error())
			return
		}
		t.setStatus("opened in system browser")
	}
}

// dismissModal closes the current modal and reports whether one was shown.
func (t *Terminal) dismissModal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.modal == nil {
		return false
	}
	close(t.modal.dismissed)
	t.modal = nil
	if t.spec != nil {
		t.drawLocked()
	}
	return true
}

func (t *Terminal) setStatus(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	t.drawLocked()
}

func (t *Terminal) initLocked() error {
	if t.inited {
		return nil
	}
	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.SetStyle(tcell.StyleDefault)
	t.screen.HideCursor()
	t.inited = true
	return nil
}

func (t *Terminal) fini() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inited {
		return
	}
	t.screen.Fini()
	t.inited = false
}

var (
	titleStyle  = tcell.StyleDefault.Reverse(true).Bold(true)
	labelStyle  = tcell.StyleDefault.Bold(true)
	helpStyle   = tcell.StyleDefault.Dim(true)
	errorStyle  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	dialogStyle = tcell.StyleDefault.Reverse(true)
)

func (t *Terminal) drawLocked() {
	if !t.inited {
		return
	}
	t.screen.Clear()
	width, height := t.screen.Size()

	if t.spec != nil {
		t.fillRow(0, width, titleStyle)
		t.drawText(1, 0, width-1, titleStyle, t.spec.Title)
		t.drawText(1, 2, width-1, labelStyle, "URL:    ")
		t.drawText(9, 2, width-1, tcell.StyleDefault, t.current)
		t.drawText(1, 3, width-1, labelStyle, "Status: ")
		t.drawText(9, 3, width-1, tcell.StyleDefault, t.status)
		t.drawText(1, 4, width-1, labelStyle, "Window: ")
		t.drawText(9, 4, width-1, tcell.StyleDefault, windowSize(t.spec))
		t.drawText(1, height-1, width-1, helpStyle, "q quit   b open in browser   esc close")
	}

	if t.modal != nil {
		t.drawModal(width, height)
	}
	t.screen.Show()
}

func (t *Terminal) drawModal(width, height int) {
	top := height/2 - 3
	if top < 0 {
		top = 0
	}
	for y := top; y < top+6 && y < height; y++ {
		t.fillRow(y, width, dialogStyle)
	}
	t.drawText(2, top+1, width-2, errorStyle.Reverse(true), t.modal.title)
	lines := splitLines(t.modal.description)
	for i, line := range lines {
		if i >= 3 {
			break
		}
		t.drawText(2, top+2+i, width-2, dialogStyle, line)
	}
	t.drawText(2, top+5, width-2, dialogStyle, "press any key")
}

func (t *Terminal) fillRow(y, width int, style tcell.Style) {
	for x := 0; x < width; x++ {
		t.screen.SetContent(x, y, ' ', nil, style)
	}
}

func (t *Terminal) drawText(x, y, maxX int, style tcell.Style, s string) {
	for _, r := range s {
		if x >= maxX {
			return
		}
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func windowSize(s *Spec) string {
	size := fmt.Sprintf("%dx%d", s.Width, s.Height)
	if s.Resizable {
		size += " resizable"
	}
	return size
}

func splitLines(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '\n' })
}
