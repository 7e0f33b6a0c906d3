package sidecar

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Readiness defaults.
const (
	DefaultReadyTimeout = 120 * time.Second
	DefaultReadyPoll    = 200 * time.Millisecond
	DefaultReadyHost    = "localhost"

	// maxDialTimeout caps a single connection attempt.
	maxDialTimeout = time.Second
)

// Readiness is the terminal outcome of a readiness probe.
// Ready reports Ready(Elapsed); otherwise the probe timed out after Elapsed.
type Readiness struct {
	Ready   bool
	Elapsed time.Duration
	Addr    string

	// Err is the context error when the wait was cancelled by the caller.
	Err error
}

// TimedOut reports whether the probe used up its bound without a
// connection. A cancelled wait is not a timeout.
func (r Readiness) TimedOut() bool {
	return !r.Ready && r.Err == nil
}

// Prober polls a loopback port until it accepts TCP connections.
// It only observes; it never signals or stops the sidecar.
type Prober struct {
	Host     string
	Timeout  time.Duration
	Interval time.Duration

	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewProber returns a prober with the default host, timeout and interval.
func NewProber() *Prober {
	return &Prober{
		Host:     DefaultReadyHost,
		Timeout:  DefaultReadyTimeout,
		Interval: DefaultReadyPoll,
	}
}

// WaitUntilReady blocks until the port accepts a connection, the timeout
// elapses, or ctx is cancelled.
func (p *Prober) WaitUntilReady(ctx context.Context, port int) Readiness {
	host := p.Host
	if host == "" {
		host = DefaultReadyHost
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultReadyPoll
	}
	dial := p.dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	start := time.Now()
	for {
		remaining := timeout - time.Since(start)
		attempt := min(maxDialTimeout, max(remaining, interval))
		dctx, cancel := context.WithTimeout(ctx, attempt)
		conn, err := dial(dctx, "tcp", addr)
		cancel()
		if err == nil {
			_ = conn.Close()
			return Readiness{Ready: true, Elapsed: time.Since(start), Addr: addr}
		}

		elapsed := time.Since(start)
		if elapsed >= timeout {
			return Readiness{Elapsed: elapsed, Addr: addr}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Readiness{Elapsed: time.Since(start), Addr: addr, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// WaitUntilReady probes host:port with the given bounds using a fresh Prober.
func WaitUntilReady(ctx context.Context, host string, port int, timeout, interval time.Duration) Readiness {
	p := &Prober{Host: host, Timeout: timeout, Interval: interval}
	return p.WaitUntilReady(ctx, port)
}
