// Package resolver resolves the hardware address of the peer before
// any datagram is addressed to it.
package resolver

import (
	"github.com/golang/glog"

	"github.com/robotalks/relaynode/pkg/tick"
	"github.com/robotalks/relaynode/pkg/transport"
)

// State of the resolution.
type State int

// States
const (
	// AwaitingSendCapability waits for the transport to accept a request.
	AwaitingSendCapability State = iota
	// WaitingForResolution waits for the reply or the retry timeout.
	WaitingForResolution
	// Resolved means the peer hardware address is known.
	Resolved
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case AwaitingSendCapability:
		return "awaiting-send-capability"
	case WaitingForResolution:
		return "waiting-for-resolution"
	case Resolved:
		return "resolved"
	}
	return "unknown"
}

// DefaultRetryTimeout is the seconds to wait for a reply before
// requesting again.
const DefaultRetryTimeout uint8 = 2

// Step reports what one Poll did.
type Step struct {
	From      State
	To        State
	Requested bool
}

// Changed indicates a state transition happened.
func (s Step) Changed() bool {
	return s.From != s.To
}

// TimedOut indicates the retry timeout transition.
func (s Step) TimedOut() bool {
	return s.From == WaitingForResolution && s.To == AwaitingSendCapability
}

// Resolver is the resolution state machine. It is polled once per
// loop iteration and retries forever until the peer answers.
type Resolver struct {
	Transport transport.Resolver
	Clock     tick.Source
	Peer      *transport.Endpoint
	// RetryTimeout in seconds, measured on the 8-bit seconds counter.
	RetryTimeout uint8

	state    State
	sentAt   uint8
	attempts int
}

// New creates a Resolver for the peer.
func New(tr transport.Resolver, clock tick.Source, peer *transport.Endpoint) *Resolver {
	return &Resolver{
		Transport:    tr,
		Clock:        clock,
		Peer:         peer,
		RetryTimeout: DefaultRetryTimeout,
	}
}

// State returns current state.
func (r *Resolver) State() State {
	return r.state
}

// Attempts returns the number of requests issued.
func (r *Resolver) Attempts() int {
	return r.attempts
}

// Poll advances the state machine by at most one transition.
func (r *Resolver) Poll() (step Step) {
	step.From = r.state
	switch r.state {
	case AwaitingSendCapability:
		if r.Transport.IsResolveReady() {
			r.sentAt = tick.NowSeconds8(r.Clock)
			r.Transport.Resolve(r.Peer.IP)
			r.attempts++
			step.Requested = true
			r.state = WaitingForResolution
			glog.V(2).Infof("resolving %s, attempt %d", r.Peer.IP, r.attempts)
		}
	case WaitingForResolution:
		if mac, ok := r.Transport.IsResolved(r.Peer.IP); ok {
			r.Peer.MAC = mac
			r.state = Resolved
			glog.Infof("peer %s resolved to %s after %d attempts", r.Peer.IP, mac, r.attempts)
		} else if tick.ElapsedSeconds8(r.Clock, r.sentAt) >= r.timeout() {
			r.state = AwaitingSendCapability
			glog.V(2).Infof("resolving %s timed out", r.Peer.IP)
		}
	case Resolved:
	}
	step.To = r.state
	return
}

func (r *Resolver) timeout() uint8 {
	if r.RetryTimeout == 0 {
		return DefaultRetryTimeout
	}
	return r.RetryTimeout
}
