package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liteskill/liteskill-desktop/internal/sidecar"
	"github.com/liteskill/liteskill-desktop/internal/window"
)

// Window titles.
const (
	TitleProduction = "Liteskill"
	TitleDev        = "Liteskill (dev)"
)

// Run executes the lifecycle and returns the process exit status: 0 after a
// normal exit, 1 after a startup failure.
func (a *Application) Run(ctx context.Context) int {
	if !a.running.CompareAndSwap(false, true) {
		a.logger.Error("run called twice", zap.Error(ErrAlreadyRunning))
		return 1
	}
	if a.cfg.Dev.Enabled {
		return a.runDev(ctx)
	}
	return a.runProduction(ctx)
}

func (a *Application) runProduction(ctx context.Context) int {
	a.setState(StateNegotiating)
	port, err := a.negotiator.ChoosePort()
	if err != nil {
		return a.fail(&StartupError{Stage: StageNegotiate, Err: err})
	}
	a.port.Store(int32(port))
	a.logger.Info("selected sidecar port", zap.Int("port", port))

	a.setState(StateSpawning)
	h, err := a.supervisor.Spawn(port)
	if err != nil {
		return a.fail(&StartupError{Stage: StageSpawn, Err: err})
	}
	// Backstop: a handle still running when Run returns is killed here.
	defer func() {
		if err := h.Close(); err != nil {
			a.logger.Warn("failed to release sidecar handle", zap.Error(err))
		}
	}()

	a.setState(StateAwaitingReady)
	a.logger.Info("waiting for server to start", zap.Int("port", port))
	res := a.prober.WaitUntilReady(ctx, port)
	if !res.Ready {
		if res.Err != nil {
			return a.cancelled(res.Err)
		}
		return a.fail(&StartupError{
			Stage: StageReady,
			Err:   &sidecar.ReadinessTimeoutError{Addr: res.Addr, Timeout: res.Elapsed.Round(time.Second)},
		})
	}
	a.logger.Info("server is ready", zap.Duration("elapsed", res.Elapsed))

	if err := a.openWindow(TitleProduction, port); err != nil {
		return a.fail(&StartupError{Stage: StageWindow, Err: err})
	}
	a.setState(StateRunning)

	// Menu and close events arrive on the host's event loop, which must
	// keep drawing while the sidecar terminates.
	a.host.OnMenuEvent(func(id string) {
		if !strings.Contains(id, window.QuitMenuID) {
			return
		}
		a.shutdownAsync(TriggerMenu, func() { a.host.Exit(0) })
	})
	a.host.OnCloseRequested(func() { a.shutdownAsync(TriggerClose, nil) })
	a.host.OnExitRequested(func() { a.shutdown(TriggerExit) })

	if err := a.host.Run(ctx); err != nil {
		a.logger.Error("window event loop failed", zap.Error(err))
	}

	a.shutdown(TriggerLoopEnd)
	a.awaitShutdown()
	a.handlers.Wait()
	a.finish()
	return 0
}

func (a *Application) runDev(ctx context.Context) int {
	port := a.cfg.Dev.Port
	a.port.Store(int32(port))
	a.logger.Info("dev mode: connecting to existing server", zap.Int("port", port))

	a.setState(StateAwaitingReady)
	res := a.prober.WaitUntilReady(ctx, port)
	switch {
	case res.Ready:
		a.logger.Info("dev server is ready", zap.Duration("elapsed", res.Elapsed))
	case res.Err != nil:
		a.logger.Warn("startup cancelled", zap.Error(res.Err))
		a.finish()
		return 1
	default:
		a.logger.Warn("dev server is not reachable yet, opening window anyway",
			zap.String("addr", res.Addr), zap.Duration("waited", res.Elapsed))
	}

	if err := a.openWindow(TitleDev, port); err != nil {
		serr := &StartupError{Stage: StageWindow, Err: err}
		a.logger.Error("startup failed", zap.Error(serr))
		a.dialog.ShowError(DialogTitle, serr.Description())
		a.finish()
		return 1
	}
	a.setState(StateRunning)

	a.host.OnMenuEvent(func(id string) {
		if strings.Contains(id, window.QuitMenuID) {
			a.host.Exit(0)
		}
	})

	if err := a.host.Run(ctx); err != nil {
		a.logger.Error("window event loop failed", zap.Error(err))
	}
	a.finish()
	return 0
}

func (a *Application) openWindow(title string, port int) error {
	logger := a.logger.With(zap.String("component", "navigation"))
	spec := window.Spec{
		Label:        window.MainLabel,
		Title:        title,
		URL:          fmt.Sprintf("http://localhost:%d", port),
		Width:        a.cfg.Window.Width,
		Height:       a.cfg.Window.Height,
		Resizable:    a.cfg.Window.Resizable,
		OnNavigation: window.NavigationFilter(a.opener, logger),
	}
	if err := a.host.CreateWindow(spec); err != nil {
		return &WindowError{Label: spec.Label, Err: err}
	}
	a.logger.Info("window created", zap.String("url", spec.URL), zap.String("title", title))
	return nil
}

// shutdown stops the sidecar. Every trigger is counted; the supervisor
// performs the sequence only once.
func (a *Application) shutdown(trigger Trigger) {
	a.metrics.RecordTrigger(trigger)
	a.setState(StateShuttingDown)
	a.logger.Debug("shutdown requested", zap.String("trigger", string(trigger)))
	a.supervisor.Shutdown()
}

// shutdownAsync runs shutdown on its own goroutine and then calls after,
// if set.
func (a *Application) shutdownAsync(trigger Trigger, after func()) {
	a.handlers.Add(1)
	go func() {
		defer a.handlers.Done()
		a.shutdown(trigger)
		if after != nil {
			after()
		}
	}()
}

// awaitShutdown waits for a shutdown started by another trigger to finish,
// so the process never exits with the sidecar mid-termination.
func (a *Application) awaitShutdown() {
	limit := a.supervisor.GracefulTimeout() + shutdownGrace
	select {
	case <-a.supervisor.ShutdownDone():
	case <-time.After(limit):
		a.logger.Warn("sidecar shutdown still in progress", zap.Duration("waited", limit))
	}
}

// fail shuts the sidecar down, reports err and returns the failure status.
func (a *Application) fail(err *StartupError) int {
	a.logger.Error("startup failed", zap.Stringer("stage", err.Stage), zap.Error(err.Err))
	a.shutdown(TriggerFailure)
	a.awaitShutdown()
	a.dialog.ShowError(DialogTitle, err.Description())
	a.finish()
	return 1
}

// cancelled handles an interrupted startup. No dialog is shown since the
// user asked to stop.
func (a *Application) cancelled(cause error) int {
	a.logger.Warn("startup cancelled", zap.Error(fmt.Errorf("%w: %w", ErrStartupCancelled, cause)))
	a.shutdown(TriggerFailure)
	a.awaitShutdown()
	a.finish()
	return 1
}

func (a *Application) finish() {
	a.setState(StateTerminated)
	a.logger.Info("liteskill desktop stopped", a.metrics.Snapshot().Fields()...)
}
