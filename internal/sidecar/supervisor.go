package sidecar

import (
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Environment variables passed to the sidecar.
const (
	EnvDesktop = "LITESKILL_DESKTOP"
	EnvPort    = "PORT"
)

// Shutdown defaults.
const (
	DefaultGracefulTimeout = 3 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond

	// outputWaitDelay bounds how long Wait keeps copying output after the
	// sidecar exits, in case a grandchild still holds its pipes.
	outputWaitDelay = 2 * time.Second
)

// Stats counts the OS-level actions the supervisor has taken.
type Stats struct {
	Spawns              int64
	TerminationRequests int64
	ForcedKills         int64
	GracefulExits       int64
}

// Supervisor owns the single sidecar process of this launcher.
//
// Shutdown runs at most once per Supervisor no matter how many trigger paths
// call it. The handle slot and the shutdown flag are guarded by one mutex so
// every caller returns with the slot empty.
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	mu     sync.Mutex
	handle *Handle

	// shuttingDown is set under mu; readers may load it without the lock.
	shuttingDown atomic.Bool
	shutdownDone chan struct{}

	command string
	args    []string
	env     []string
	dir     string

	gracefulTimeout time.Duration
	pollInterval    time.Duration
	terminator      Terminator
	logger          *zap.Logger

	spawns        atomic.Int64
	termRequests  atomic.Int64
	forcedKills   atomic.Int64
	gracefulExits atomic.Int64
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithLogger sets the logger that receives lifecycle messages and the
// sidecar's relayed output.
func WithLogger(l *zap.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEnv adds KEY=VALUE entries to the sidecar environment.
func WithEnv(env ...string) SupervisorOption {
	return func(s *Supervisor) {
		s.env = append(s.env, env...)
	}
}

// WithDir sets the sidecar working directory.
func WithDir(dir string) SupervisorOption {
	return func(s *Supervisor) {
		s.dir = dir
	}
}

// WithGracefulTimeout sets how long shutdown waits after the termination
// request before force-killing.
func WithGracefulTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.gracefulTimeout = d
		}
	}
}

// WithPollInterval sets the liveness polling interval used during shutdown.
func WithPollInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithTerminator replaces the platform terminator.
func WithTerminator(t Terminator) SupervisorOption {
	return func(s *Supervisor) {
		if t != nil {
			s.terminator = t
		}
	}
}

// NewSupervisor creates a supervisor for the given sidecar executable.
func NewSupervisor(command string, args []string, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		command:         command,
		args:            append([]string(nil), args...),
		shutdownDone:    make(chan struct{}),
		gracefulTimeout: DefaultGracefulTimeout,
		pollInterval:    DefaultPollInterval,
		terminator:      DefaultTerminator(),
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GracefulTimeout returns the configured graceful shutdown timeout.
func (s *Supervisor) GracefulTimeout() time.Duration {
	return s.gracefulTimeout
}

// Spawn starts the sidecar on the given port and returns without waiting
// for it to become ready. Its stdout is logged at info level and its stderr
// at warn level until the streams close.
func (s *Supervisor) Spawn(port int) (*Handle, error) {
	if s.command == "" {
		return nil, &SpawnError{Err: ErrNoCommand}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}
	if s.handle != nil && !s.handle.Exited() {
		return nil, ErrAlreadySpawned
	}

	cmd := exec.Command(s.command, s.args...)
	cmd.Dir = s.dir
	cmd.Env = append(os.Environ(), s.env...)
	cmd.Env = append(cmd.Env, EnvDesktop+"=true", EnvPort+"="+strconv.Itoa(port))
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = outputWaitDelay

	h := newHandle(uuid.NewString(), cmd)
	log := s.logger.With(zap.String("sidecar", h.ID))

	stdout := newLineRelay(func(line string) { log.Info(line) })
	stderr := newLineRelay(func(line string) { log.Warn(line) })
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	h.relays = []*lineRelay{stdout, stderr}

	if err := h.start(); err != nil {
		return nil, &SpawnError{Command: s.command, Err: err}
	}

	s.handle = h
	s.spawns.Add(1)

	pid, _ := h.PID()
	log.Info("sidecar process started", zap.Int("pid", pid), zap.Int("port", port))
	return h, nil
}

// Handle returns the live handle, or nil once shutdown has taken it.
func (s *Supervisor) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// IsShuttingDown reports whether shutdown has been initiated.
func (s *Supervisor) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// ShutdownDone returns a channel that is closed when the shutdown sequence
// has finished.
func (s *Supervisor) ShutdownDone() <-chan struct{} {
	return s.shutdownDone
}

// Stats returns a snapshot of the supervisor's counters.
func (s *Supervisor) Stats() Stats {
	return Stats{
		Spawns:              s.spawns.Load(),
		TerminationRequests: s.termRequests.Load(),
		ForcedKills:         s.forcedKills.Load(),
		GracefulExits:       s.gracefulExits.Load(),
	}
}

// Shutdown terminates the sidecar: a cooperative termination request, a
// bounded wait, then a forced kill if it is still alive.
//
// Only the first call does any work; concurrent and later calls return
// immediately. OS errors are logged and never returned.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.shuttingDown.Load() {
		s.mu.Unlock()
		return
	}
	s.shuttingDown.Store(true)
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	defer close(s.shutdownDone)

	if h == nil {
		return
	}
	log := s.logger.With(zap.String("sidecar", h.ID))

	if pid, ok := h.PID(); ok {
		log.Info("attempting graceful shutdown of sidecar", zap.Int("pid", pid))
		s.termRequests.Add(1)
		if err := s.terminator.RequestTermination(pid); err != nil {
			log.Warn("termination request failed", zap.Int("pid", pid), zap.Error(err))
		}

		if s.waitForExit(h, pid, log) {
			s.gracefulExits.Add(1)
			log.Info("sidecar shut down gracefully", zap.Duration("runtime", h.Runtime()))
			return
		}
		log.Warn("graceful shutdown timeout, forcing kill", zap.Duration("timeout", s.gracefulTimeout))

		s.forcedKills.Add(1)
		if err := h.Kill(); err != nil {
			log.Warn("force kill failed", zap.Error(err))
		}
		if err := s.terminator.ForceTerminate(pid); err != nil {
			log.Warn("force terminate by pid failed", zap.Int("pid", pid), zap.Error(err))
		}
		return
	}

	log.Info("force-killing sidecar")
	s.forcedKills.Add(1)
	if err := h.Kill(); err != nil {
		log.Warn("force kill failed", zap.Error(err))
	}
}

// waitForExit polls until the process is gone or the graceful timeout
// elapses. It reports whether the process exited.
func (s *Supervisor) waitForExit(h *Handle, pid int, log *zap.Logger) bool {
	deadline := time.NewTimer(s.gracefulTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.Done():
			return true
		case <-deadline.C:
			return h.Exited()
		case <-ticker.C:
			if h.Exited() {
				return true
			}
			alive, err := s.terminator.Alive(pid)
			if err != nil {
				log.Debug("liveness probe failed", zap.Int("pid", pid), zap.Error(err))
				continue
			}
			if !alive {
				return true
			}
		}
	}
}
