//go:build unix

package app

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/liteskill/liteskill-desktop/internal/config"
	"github.com/liteskill/liteskill-desktop/internal/sidecar"
	"github.com/liteskill/liteskill-desktop/internal/window"
)

// recordingSupervisor keeps the handle of a real supervisor's spawn. With
// skipShutdown set, Shutdown does nothing and reports itself finished, so
// only the handle's release can stop the process.
type recordingSupervisor struct {
	*sidecar.Supervisor
	skipShutdown bool

	mu     sync.Mutex
	handle *sidecar.Handle
}

func (s *recordingSupervisor) Spawn(port int) (*sidecar.Handle, error) {
	h, err := s.Supervisor.Spawn(port)
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
	return h, err
}

func (s *recordingSupervisor) Shutdown() {
	if !s.skipShutdown {
		s.Supervisor.Shutdown()
	}
}

func (s *recordingSupervisor) ShutdownDone() <-chan struct{} {
	if s.skipShutdown {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.Supervisor.ShutdownDone()
}

func (s *recordingSupervisor) spawned() *sidecar.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func runRealSidecar(t *testing.T, mode string, skipShutdown bool) *recordingSupervisor {
	t.Helper()
	cfg := config.Default()
	cfg.Sidecar.PreferredPorts = []int{freeTCPPort(t)}
	cfg.Sidecar.ReadyTimeout = config.Duration(10 * time.Second)
	cfg.Sidecar.ReadyPoll = config.Duration(20 * time.Millisecond)

	core, _ := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	sup := &recordingSupervisor{
		skipShutdown: skipShutdown,
		Supervisor: sidecar.NewSupervisor(os.Args[0], nil,
			sidecar.WithLogger(logger),
			sidecar.WithEnv(sidecarHelperEnv+"="+mode),
			sidecar.WithGracefulTimeout(2*time.Second),
			sidecar.WithPollInterval(20*time.Millisecond),
		),
	}
	t.Cleanup(sup.Supervisor.Shutdown)

	host := newFakeHost()
	host.onRun = func(h *fakeHost) { h.menu("quit") }
	a, err := New(cfg,
		WithSupervisor(sup),
		WithHost(host),
		WithDialog(&recordingDialog{}),
		WithOpener(window.OpenerFunc(func(string) error { return nil })),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if code := runWithTimeout(t, a, context.Background()); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}
	return sup
}

func assertStopped(t *testing.T, h *sidecar.Handle) {
	t.Helper()
	if h == nil {
		t.Fatal("no sidecar was spawned")
	}
	pid, ok := h.PID()
	if !ok {
		t.Fatal("sidecar has no PID")
	}
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("sidecar %d still running after Run returned", pid)
	}
	alive, err := sidecar.DefaultTerminator().Alive(pid)
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if alive {
		t.Errorf("sidecar %d still alive after Run returned", pid)
	}
}

func TestApplication_RealSidecarStoppedOnQuit(t *testing.T) {
	sup := runRealSidecar(t, "listen", false)

	assertStopped(t, sup.spawned())
	if sup.Stats().ForcedKills != 0 {
		t.Errorf("ForcedKills = %d, want 0", sup.Stats().ForcedKills)
	}
}

func TestApplication_ReleasedHandleKillsSidecar(t *testing.T) {
	sup := runRealSidecar(t, "ignore-term", true)

	h := sup.spawned()
	assertStopped(t, h)
	if !h.Killed() {
		t.Error("expected the released handle to kill the sidecar")
	}
}
