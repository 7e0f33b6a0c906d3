//go:build unix

package sidecar

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// countingTerminator wraps the platform terminator and counts calls.
type countingTerminator struct {
	Terminator
	requests atomic.Int32
	forces   atomic.Int32
}

func (c *countingTerminator) RequestTermination(pid int) error {
	c.requests.Add(1)
	return c.Terminator.RequestTermination(pid)
}

func (c *countingTerminator) ForceTerminate(pid int) error {
	c.forces.Add(1)
	return c.Terminator.ForceTerminate(pid)
}

func newHelperSupervisor(t *testing.T, mode string, opts ...SupervisorOption) (*Supervisor, *observer.ObservedLogs, *countingTerminator) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	term := &countingTerminator{Terminator: DefaultTerminator()}
	base := []SupervisorOption{
		WithLogger(zap.New(core)),
		WithEnv(helperEnv + "=" + mode),
		WithTerminator(term),
		WithPollInterval(20 * time.Millisecond),
	}
	s := NewSupervisor(os.Args[0], nil, append(base, opts...)...)
	t.Cleanup(s.Shutdown)
	return s, logs, term
}

// waitForLog polls the observed logs for a message containing substr.
func waitForLog(t *testing.T, logs *observer.ObservedLogs, substr string) observer.LoggedEntry {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range logs.All() {
			if strings.Contains(e.Message, substr) {
				return e
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("log message %q never appeared", substr)
	return observer.LoggedEntry{}
}

func waitDone(t *testing.T, h *Handle, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(timeout):
		t.Fatalf("process did not exit within %v", timeout)
	}
}

func TestSupervisor_SpawnRelaysOutputAndBecomesReady(t *testing.T) {
	s, logs, term := newHelperSupervisor(t, "listen")
	port := freePort(t)

	h, err := s.Spawn(port)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if h.ID == "" {
		t.Error("expected non-empty handle ID")
	}
	if pid, ok := h.PID(); !ok || pid <= 0 {
		t.Errorf("expected PID, got %d (%v)", pid, ok)
	}
	if h.State() != StateRunning {
		t.Errorf("State() = %v, want running", h.State())
	}

	res := WaitUntilReady(context.Background(), "127.0.0.1", port, 10*time.Second, 20*time.Millisecond)
	if !res.Ready {
		t.Fatalf("sidecar never became ready: %+v", res)
	}

	info := waitForLog(t, logs, "listening on")
	if info.Level != zapcore.InfoLevel {
		t.Errorf("stdout line logged at %v, want info", info.Level)
	}
	warn := waitForLog(t, logs, "warming up")
	if warn.Level != zapcore.WarnLevel {
		t.Errorf("stderr line logged at %v, want warn", warn.Level)
	}

	s.Shutdown()
	waitDone(t, h, 2*time.Second)

	stats := s.Stats()
	if stats.TerminationRequests != 1 {
		t.Errorf("TerminationRequests = %d, want 1", stats.TerminationRequests)
	}
	if stats.ForcedKills != 0 || h.Killed() {
		t.Errorf("graceful exit should not force kill (ForcedKills=%d)", stats.ForcedKills)
	}
	if term.forces.Load() != 0 {
		t.Errorf("ForceTerminate called %d times", term.forces.Load())
	}
	if h.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", h.ExitCode())
	}
	waitForLog(t, logs, "terminating")
}

func TestSupervisor_ShutdownForcesKillWhenTermIgnored(t *testing.T) {
	s, logs, term := newHelperSupervisor(t, "ignore-term", WithGracefulTimeout(300*time.Millisecond))

	h, err := s.Spawn(freePort(t))
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	waitForLog(t, logs, "ignoring")

	start := time.Now()
	s.Shutdown()
	took := time.Since(start)

	if took < 300*time.Millisecond {
		t.Errorf("Shutdown returned after %v, before the graceful timeout", took)
	}
	if took > 2*time.Second {
		t.Errorf("Shutdown took %v, expected to return right after the kill", took)
	}

	stats := s.Stats()
	if stats.ForcedKills != 1 {
		t.Errorf("ForcedKills = %d, want 1", stats.ForcedKills)
	}
	if stats.GracefulExits != 0 {
		t.Errorf("GracefulExits = %d, want 0", stats.GracefulExits)
	}
	if term.requests.Load() != 1 {
		t.Errorf("RequestTermination called %d times, want 1", term.requests.Load())
	}
	if !h.Killed() {
		t.Error("expected handle to be killed")
	}

	waitDone(t, h, 2*time.Second)
	if h.State() != StateKilled {
		t.Errorf("State() = %v, want killed", h.State())
	}
}

func TestSupervisor_ShutdownConcurrentCallsActOnce(t *testing.T) {
	s, logs, term := newHelperSupervisor(t, "sleep")

	h, err := s.Spawn(freePort(t))
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	waitForLog(t, logs, "sleeping")

	const callers = 16
	var wg sync.WaitGroup
	var nonEmpty atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Shutdown()
			if s.Handle() != nil {
				nonEmpty.Add(1)
			}
		}()
	}
	wg.Wait()

	if nonEmpty.Load() != 0 {
		t.Errorf("%d callers observed a handle after Shutdown returned", nonEmpty.Load())
	}
	if term.requests.Load() != 1 {
		t.Errorf("RequestTermination called %d times, want 1", term.requests.Load())
	}
	stats := s.Stats()
	if stats.ForcedKills+stats.GracefulExits != 1 {
		t.Errorf("shutdown sequence ran %d times, want 1", stats.ForcedKills+stats.GracefulExits)
	}

	select {
	case <-s.ShutdownDone():
	case <-time.After(time.Second):
		t.Fatal("ShutdownDone not closed")
	}
	waitDone(t, h, 2*time.Second)
}

func TestSupervisor_ShutdownWithoutSpawnIsNoop(t *testing.T) {
	s, _, term := newHelperSupervisor(t, "sleep")

	s.Shutdown()
	s.Shutdown()

	if !s.IsShuttingDown() {
		t.Error("expected IsShuttingDown() after Shutdown")
	}
	if term.requests.Load() != 0 {
		t.Errorf("RequestTermination called %d times, want 0", term.requests.Load())
	}
	select {
	case <-s.ShutdownDone():
	default:
		t.Error("ShutdownDone not closed after no-op shutdown")
	}
}

func TestSupervisor_SpawnAfterShutdown(t *testing.T) {
	s, _, _ := newHelperSupervisor(t, "sleep")
	s.Shutdown()

	_, err := s.Spawn(freePort(t))
	if !errors.Is(err, ErrShuttingDown) {
		t.Errorf("expected ErrShuttingDown, got %v", err)
	}
}

func TestSupervisor_SpawnTwiceRejected(t *testing.T) {
	s, _, _ := newHelperSupervisor(t, "sleep")

	if _, err := s.Spawn(freePort(t)); err != nil {
		t.Fatalf("first Spawn failed: %v", err)
	}
	_, err := s.Spawn(freePort(t))
	if !errors.Is(err, ErrAlreadySpawned) {
		t.Errorf("expected ErrAlreadySpawned, got %v", err)
	}
	if got := s.Stats().Spawns; got != 1 {
		t.Errorf("Spawns = %d, want 1", got)
	}
}

func TestSupervisor_SpawnMissingExecutable(t *testing.T) {
	s := NewSupervisor("/nonexistent/liteskill-sidecar", nil)
	defer s.Shutdown()

	_, err := s.Spawn(4000)
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if s.Handle() != nil {
		t.Error("failed spawn must not store a handle")
	}
}

func TestSupervisor_SpawnWithoutCommand(t *testing.T) {
	s := NewSupervisor("", nil)
	_, err := s.Spawn(4000)
	if !errors.Is(err, ErrNoCommand) {
		t.Errorf("expected ErrNoCommand, got %v", err)
	}
}

func TestSupervisor_ProcessExitedBeforeShutdown(t *testing.T) {
	s, logs, _ := newHelperSupervisor(t, "echo")

	h, err := s.Spawn(freePort(t))
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	waitDone(t, h, 5*time.Second)

	waitForLog(t, logs, "hello")
	waitForLog(t, logs, "oops")
	waitForLog(t, logs, "partial")

	s.Shutdown()
	if s.Stats().ForcedKills != 0 {
		t.Error("exited process must not be force-killed")
	}
	if h.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", h.ExitCode())
	}
}

func TestHandle_CloseKillsProcess(t *testing.T) {
	s, logs, _ := newHelperSupervisor(t, "ignore-term")

	var h *Handle
	var pid int
	func() {
		var err error
		h, err = s.Spawn(freePort(t))
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		defer h.Close()
		pid, _ = h.PID()
		waitForLog(t, logs, "ignoring")
	}()

	waitDone(t, h, 2*time.Second)
	alive, err := DefaultTerminator().Alive(pid)
	if err != nil {
		t.Fatalf("Alive failed: %v", err)
	}
	if alive {
		t.Errorf("process %d still alive after its handle was released", pid)
	}
	if !h.Killed() {
		t.Error("expected Close to kill the process")
	}

	// A second release does not reach the OS again.
	if err := h.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestTerminator_AliveForUnknownPID(t *testing.T) {
	alive, err := DefaultTerminator().Alive(999999999)
	if err != nil {
		t.Fatalf("Alive failed: %v", err)
	}
	if alive {
		t.Error("expected nonexistent PID to be reported dead")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateRunning, "running"},
		{StateExited, "exited"},
		{StateKilled, "killed"},
		{State(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
