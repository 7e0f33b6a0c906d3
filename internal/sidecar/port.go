package sidecar

import (
	"net"
	"strconv"

	"go.uber.org/zap"
)

// DefaultPreferredPorts are tried in order before falling back to an
// ephemeral port. A stable port keeps OAuth callback URLs consistent across
// launches, which providers that register apps by origin depend on.
var DefaultPreferredPorts = []int{4000, 3000, 5173}

// loopbackHost is the interface the negotiator probes.
const loopbackHost = "127.0.0.1"

// Negotiator picks the TCP port the sidecar will listen on.
//
// The chosen port is released before the sidecar binds it, so another
// process can in principle take it in between. The window is tiny and the
// risk is accepted.
type Negotiator struct {
	preferred []int
	host      string
	listen    func(network, address string) (net.Listener, error)
	logger    *zap.Logger
}

// NegotiatorOption configures a Negotiator.
type NegotiatorOption func(*Negotiator)

// WithPreferredPorts replaces the ordered list of preferred ports.
func WithPreferredPorts(ports []int) NegotiatorOption {
	return func(n *Negotiator) {
		n.preferred = append([]int(nil), ports...)
	}
}

// WithNegotiatorLogger sets the logger used for port probing messages.
func WithNegotiatorLogger(l *zap.Logger) NegotiatorOption {
	return func(n *Negotiator) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNegotiator creates a port negotiator.
func NewNegotiator(opts ...NegotiatorOption) *Negotiator {
	n := &Negotiator{
		preferred: append([]int(nil), DefaultPreferredPorts...),
		host:      loopbackHost,
		listen:    net.Listen,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Preferred returns a copy of the preferred port list.
func (n *Negotiator) Preferred() []int {
	return append([]int(nil), n.preferred...)
}

// ChoosePort returns the first free preferred port, or an OS-assigned
// ephemeral port when every preferred port is busy.
func (n *Negotiator) ChoosePort() (int, error) {
	for _, port := range n.preferred {
		if port <= 0 || port > 65535 {
			continue
		}
		ln, err := n.listen("tcp", net.JoinHostPort(n.host, strconv.Itoa(port)))
		if err == nil {
			_ = ln.Close()
			return port, nil
		}
		n.logger.Debug("port in use, trying next", zap.Int("port", port), zap.Error(err))
	}

	n.logger.Info("all preferred ports in use, finding an ephemeral port")
	ln, err := n.listen("tcp", net.JoinHostPort(n.host, "0"))
	if err != nil {
		return 0, &NegotiationError{Err: err}
	}
	defer ln.Close()

	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok || addr.Port == 0 {
		return 0, &NegotiationError{Err: &net.AddrError{Err: "no port assigned", Addr: ln.Addr().String()}}
	}
	return addr.Port, nil
}
