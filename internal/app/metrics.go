package app

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Trigger identifies what asked for the sidecar to be shut down.
type Trigger string

// Shutdown triggers.
const (
	TriggerMenu    Trigger = "menu"
	TriggerClose   Trigger = "close"
	TriggerExit    Trigger = "exit"
	TriggerFailure Trigger = "failure"
	TriggerLoopEnd Trigger = "loop-end"
)

// Metrics tracks how long each lifecycle phase took and how often each
// shutdown trigger fired.
type Metrics struct {
	mu        sync.Mutex
	phases    map[State]time.Duration
	triggers  map[Trigger]int
	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		phases:    make(map[State]time.Duration),
		triggers:  make(map[Trigger]int),
		startTime: time.Now(),
	}
}

// RecordPhase adds d to the time spent in state.
func (m *Metrics) RecordPhase(state State, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases[state] += d
}

// RecordTrigger counts one shutdown trigger.
func (m *Metrics) RecordTrigger(t Trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[t]++
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Phases   map[State]time.Duration
	Triggers map[Trigger]int
	Uptime   time.Duration
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSnapshot{
		Phases:   make(map[State]time.Duration, len(m.phases)),
		Triggers: make(map[Trigger]int, len(m.triggers)),
		Uptime:   time.Since(m.startTime),
	}
	for k, v := range m.phases {
		s.Phases[k] = v
	}
	for k, v := range m.triggers {
		s.Triggers[k] = v
	}
	return s
}

// Fields returns the snapshot as log fields.
func (s MetricsSnapshot) Fields() []zap.Field {
	fields := []zap.Field{zap.Duration("uptime", s.Uptime)}
	for _, st := range []State{StateNegotiating, StateSpawning, StateAwaitingReady, StateRunning, StateShuttingDown} {
		if d, ok := s.Phases[st]; ok {
			fields = append(fields, zap.Duration("phase."+st.String(), d))
		}
	}
	for t, n := range s.Triggers {
		fields = append(fields, zap.Int("trigger."+string(t), n))
	}
	return fields
}
