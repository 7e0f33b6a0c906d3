// Package app coordinates the launcher lifecycle: choose a port, start the
// sidecar, wait until it serves, open the window, and make sure the sidecar
// is shut down on every exit path.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/liteskill/liteskill-desktop/internal/config"
	"github.com/liteskill/liteskill-desktop/internal/sidecar"
	"github.com/liteskill/liteskill-desktop/internal/window"
)

// State is the lifecycle phase of the Application.
type State int32

const (
	// StateIdle is the state before Run.
	StateIdle State = iota
	// StateNegotiating is choosing the sidecar port.
	StateNegotiating
	// StateSpawning is launching the sidecar.
	StateSpawning
	// StateAwaitingReady is waiting for the server to accept connections.
	StateAwaitingReady
	// StateRunning is the window event loop.
	StateRunning
	// StateShuttingDown is terminating the sidecar.
	StateShuttingDown
	// StateTerminated is the final state.
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateSpawning:
		return "spawning"
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PortNegotiator picks the sidecar port.
type PortNegotiator interface {
	ChoosePort() (int, error)
}

// Supervisor owns the sidecar process.
type Supervisor interface {
	Spawn(port int) (*sidecar.Handle, error)
	Shutdown()
	ShutdownDone() <-chan struct{}
	GracefulTimeout() time.Duration
}

// ReadinessProber waits for a port to accept connections.
type ReadinessProber interface {
	WaitUntilReady(ctx context.Context, port int) sidecar.Readiness
}

// shutdownGrace is added to the supervisor's graceful timeout when waiting
// for an in-flight shutdown to finish.
const shutdownGrace = 2 * time.Second

// Application is the lifecycle coordinator.
type Application struct {
	cfg *config.Config

	host       window.Host
	dialog     window.Dialog
	opener     window.Opener
	negotiator PortNegotiator
	supervisor Supervisor
	prober     ReadinessProber

	logger  *zap.Logger
	metrics *Metrics

	state      atomic.Int32
	stateMu    sync.Mutex
	stateSince time.Time

	running atomic.Bool
	port    atomic.Int32

	// handlers tracks shutdowns started from window events.
	handlers sync.WaitGroup
}

// Option configures an Application.
type Option func(*Application)

// WithHost sets the window host.
func WithHost(h window.Host) Option {
	return func(a *Application) { a.host = h }
}

// WithDialog sets the dialog used for startup failures.
func WithDialog(d window.Dialog) Option {
	return func(a *Application) { a.dialog = d }
}

// WithOpener sets the opener for URLs that leave the local server.
func WithOpener(o window.Opener) Option {
	return func(a *Application) { a.opener = o }
}

// WithNegotiator replaces the port negotiator.
func WithNegotiator(n PortNegotiator) Option {
	return func(a *Application) { a.negotiator = n }
}

// WithSupervisor replaces the sidecar supervisor.
func WithSupervisor(s Supervisor) Option {
	return func(a *Application) { a.supervisor = s }
}

// WithProber replaces the readiness prober.
func WithProber(p ReadinessProber) Option {
	return func(a *Application) { a.prober = p }
}

// WithLogger sets the application logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Application) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Application. Collaborators not supplied through options
// are built from cfg.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{
		cfg:        cfg,
		logger:     zap.NewNop(),
		metrics:    NewMetrics(),
		stateSince: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.opener == nil {
		a.opener = window.SystemOpener{}
	}
	if a.dialog == nil {
		a.dialog = window.WriterDialog{W: os.Stderr}
	}
	if a.host == nil {
		a.host = window.NewBrowser(a.opener, a.logger.With(zap.String("component", "window")))
	}

	if cfg.Dev.Enabled {
		if a.prober == nil {
			a.prober = &sidecar.Prober{
				Host:     sidecar.DefaultReadyHost,
				Timeout:  cfg.Dev.ReadyTimeout.Std(),
				Interval: cfg.Sidecar.ReadyPoll.Std(),
			}
		}
		return a, nil
	}

	if a.prober == nil {
		a.prober = &sidecar.Prober{
			Host:     sidecar.DefaultReadyHost,
			Timeout:  cfg.Sidecar.ReadyTimeout.Std(),
			Interval: cfg.Sidecar.ReadyPoll.Std(),
		}
	}
	if a.negotiator == nil {
		a.negotiator = sidecar.NewNegotiator(
			sidecar.WithPreferredPorts(cfg.Sidecar.PreferredPorts),
			sidecar.WithNegotiatorLogger(a.logger.With(zap.String("component", "ports"))),
		)
	}
	if a.supervisor == nil {
		command, err := cfg.SidecarCommand()
		if err != nil {
			return nil, err
		}
		a.supervisor = sidecar.NewSupervisor(command, cfg.Sidecar.Args,
			sidecar.WithLogger(a.logger.With(zap.String("component", "sidecar"))),
			sidecar.WithEnv(cfg.Sidecar.Env...),
			sidecar.WithDir(cfg.Sidecar.Dir),
			sidecar.WithGracefulTimeout(cfg.Sidecar.GracefulTimeout.Std()),
			sidecar.WithPollInterval(cfg.Sidecar.ShutdownPoll.Std()),
		)
	}
	return a, nil
}

// State returns the current lifecycle state.
func (a *Application) State() State {
	return State(a.state.Load())
}

// Port returns the port the window points at, or 0 before it is known.
func (a *Application) Port() int {
	return int(a.port.Load())
}

// Metrics returns the lifecycle metrics.
func (a *Application) Metrics() *Metrics {
	return a.metrics
}

// setState moves to next and records the time spent in the previous state.
// States only move forward.
func (a *Application) setState(next State) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	prev := State(a.state.Load())
	if next <= prev {
		return
	}
	now := time.Now()
	if prev != StateIdle {
		a.metrics.RecordPhase(prev, now.Sub(a.stateSince))
	}
	a.stateSince = now
	a.state.Store(int32(next))
	a.logger.Debug("lifecycle state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
}
