package status

import (
	"github.com/golang/glog"

	"github.com/robotalks/relaynode/pkg/board"
	"github.com/robotalks/relaynode/pkg/tick"
	"github.com/robotalks/relaynode/pkg/transport"
)

// DefaultInterval is the seconds between two periodic sends.
const DefaultInterval uint16 = 1

// Result reports what one Service call did.
type Result struct {
	// Due means a send was triggered, by time or by change.
	Due bool
	// Sent means the datagram was flushed.
	Sent bool
	// Err is the flush error, the datagram is lost.
	Err error
}

// Skipped means a send was due but the buffer was not ready.
func (r Result) Skipped() bool {
	return r.Due && !r.Sent && r.Err == nil
}

// Transmitter sends the status datagram periodically and on change.
// Delivery is best effort: when the transport is not ready the send
// is skipped and re-evaluated on the next call.
type Transmitter struct {
	Transport transport.Sender
	Socket    transport.Socket
	Clock     tick.Source
	// Indicator is toggled on every successful send, optional.
	Indicator board.Toggler
	// Interval in seconds between periodic sends.
	Interval uint16

	lastSentAt uint16
	last       Payload
	sent       int
	failures   int
}

// NewTransmitter creates a Transmitter on an opened socket.
func NewTransmitter(tr transport.Sender, s transport.Socket, clock tick.Source) *Transmitter {
	return &Transmitter{
		Transport: tr,
		Socket:    s,
		Clock:     clock,
		Interval:  DefaultInterval,
	}
}

// Sent returns the number of datagrams sent.
func (t *Transmitter) Sent() int {
	return t.sent
}

// Failures returns the flush failures since the last successful send.
func (t *Transmitter) Failures() int {
	return t.failures
}

// LastSent returns the payload of the last successful send.
func (t *Transmitter) LastSent() Payload {
	return t.last
}

// Service sends p if the interval elapsed or p differs from the last
// sent payload, and the transport has a buffer ready.
func (t *Transmitter) Service(p Payload) (r Result) {
	interval := t.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	r.Due = t.Clock.ElapsedSeconds(t.lastSentAt) >= interval || p != t.last
	if !r.Due || !t.Transport.IsSendReady(t.Socket) {
		return
	}
	for _, b := range p.Bytes() {
		t.Transport.Put(t.Socket, b)
	}
	if r.Err = t.Transport.Flush(t.Socket); r.Err != nil {
		// retried every call, only the first of a run is a warning
		if t.failures++; t.failures == 1 {
			glog.Warningf("send status error: %v", r.Err)
		} else {
			glog.V(2).Infof("send status error (%d in a row): %v", t.failures, r.Err)
		}
		return
	}
	if t.failures > 0 {
		glog.Infof("status sent after %d failures", t.failures)
		t.failures = 0
	}
	r.Sent = true
	t.lastSentAt = t.Clock.NowSeconds()
	t.last = p
	t.sent++
	if t.Indicator != nil {
		t.Indicator.Toggle()
	}
	glog.V(2).Infof("status sent: %s", p)
	return
}
