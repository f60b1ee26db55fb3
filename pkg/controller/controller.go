// Package controller owns the state of a relay node and runs one
// iteration of its main loop per Tick.
package controller

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/relaynode/pkg/board"
	fx "github.com/robotalks/relaynode/pkg/framework"
	"github.com/robotalks/relaynode/pkg/l1"
	"github.com/robotalks/relaynode/pkg/l1/comm"
	"github.com/robotalks/relaynode/pkg/l1/msgs"
	"github.com/robotalks/relaynode/pkg/relay"
	"github.com/robotalks/relaynode/pkg/resolver"
	"github.com/robotalks/relaynode/pkg/selector"
	"github.com/robotalks/relaynode/pkg/status"
	"github.com/robotalks/relaynode/pkg/tick"
	"github.com/robotalks/relaynode/pkg/transport"
)

// DefaultEventQueueSize is the number of status events buffered for
// the registry.
const DefaultEventQueueSize = 8

// Options tunes a Controller.
type Options struct {
	// Peer is the initial peer endpoint, MAC is ignored.
	Peer transport.Endpoint
	// RetryTimeout is the seconds to wait for resolution, 0 for default.
	RetryTimeout uint8
	// SendInterval is the seconds between periodic sends, 0 for default.
	SendInterval uint16
	// Blink enables the heartbeat on the status indicator.
	Blink bool
	// Candidates overrides the selector candidates.
	Candidates []selector.Candidate
}

// Snapshot is the observable state of a Controller.
type Snapshot struct {
	State    byte
	Inputs   byte
	RawPort  byte
	Resolver resolver.State
	Peer     transport.Endpoint
	Linked   bool
	Sent     int
	Levels   relay.Levels
}

// NodeStatus converts the snapshot to its wire form.
func (s Snapshot) NodeStatus() *msgs.NodeStatus {
	st := &msgs.NodeStatus{
		State:    uint32(s.State),
		Inputs:   uint32(s.Inputs),
		RawPort:  uint32(s.RawPort),
		Resolver: s.Resolver.String(),
		Peer:     s.Peer.IP.String(),
		Linked:   s.Linked,
		Sent:     uint64(s.Sent),
		Lines:    make([]bool, len(s.Levels)),
	}
	if s.Resolver == resolver.Resolved {
		st.Peer += " " + s.Peer.MAC.String()
	}
	copy(st.Lines, s.Levels[:])
	return st
}

// differs ignores the send counter so periodic sends raise no event.
func (s Snapshot) differs(o Snapshot) bool {
	return s.State != o.State || s.Inputs != o.Inputs || s.RawPort != o.RawPort ||
		s.Resolver != o.Resolver || s.Linked != o.Linked
}

// Controller runs the relay node: inputs to relays, peer resolution,
// status datagrams and the transport pump. All state is owned by
// the single goroutine calling Tick.
type Controller struct {
	Board       board.Board
	Transport   transport.Service
	Clock       tick.Source
	Selector    *selector.Selector
	Driver      *relay.Driver
	Resolver    *resolver.Resolver
	Transmitter *status.Transmitter
	Indicator   *board.Indicator
	Blinker     *Blinker
	// Registrar publishes status events, optional.
	Registrar l1.Registrar
	// Ticker drives Clock when the controller runs in a Loop, optional.
	Ticker *tick.Ticker

	peer    transport.Endpoint
	socket  transport.Socket
	raw     byte
	last    Snapshot
	started bool
	events  chan *msgs.StatusEvent
	adders  []fx.LoopAdder
	closers []func() error
}

// New creates a Controller and opens the datagram socket. A failed
// open is not fatal: inputs and relays keep working and nothing is
// sent.
func New(b board.Board, tr transport.Service, clock tick.Source, opts Options) (*Controller, error) {
	sel := selector.Default()
	if opts.Candidates != nil {
		var err error
		if sel, err = selector.New(opts.Candidates...); err != nil {
			return nil, err
		}
	}
	c := &Controller{
		Board:     b,
		Transport: tr,
		Clock:     clock,
		Selector:  sel,
		Driver:    relay.NewDriver(b),
		Indicator: board.NewIndicator(b.Line(board.StatusLED)),
		peer:      opts.Peer,
		events:    make(chan *msgs.StatusEvent, DefaultEventQueueSize),
	}
	c.peer.MAC = transport.HardwareAddr{}
	c.socket = tr.Open(c.peer.LocalPort, &c.peer, c.peer.RemotePort)
	if c.socket.IsValid() {
		glog.Infof("socket opened to %s", &c.peer)
	} else {
		glog.Warningf("open socket to %s failed, status will not be sent", &c.peer)
	}
	c.Resolver = resolver.New(tr, clock, &c.peer)
	if opts.RetryTimeout != 0 {
		c.Resolver.RetryTimeout = opts.RetryTimeout
	}
	c.Transmitter = status.NewTransmitter(tr, c.socket, clock)
	c.Transmitter.Indicator = c.Indicator
	if opts.SendInterval != 0 {
		c.Transmitter.Interval = opts.SendInterval
	}
	if opts.Blink {
		c.Blinker = NewBlinker(clock, c.Indicator)
	}
	return c, nil
}

// Socket returns the datagram socket, InvalidSocket if open failed.
func (c *Controller) Socket() transport.Socket {
	return c.socket
}

// Tick runs one iteration: sample inputs and drive relays, advance
// resolution, send status once resolved, then pump the transport.
func (c *Controller) Tick() (a Actions) {
	c.raw = c.Board.ReadPort()
	bits := selector.Normalize(c.raw)
	state := c.Selector.Select(bits)
	a |= InputsSampled
	c.Driver.Drive(state)
	a |= OutputsDriven

	if c.Blinker != nil && c.Blinker.Service() {
		a |= Blinked
	}

	// Sending starts the iteration after resolution completes.
	step := c.Resolver.Poll()
	if step.Requested {
		a |= ResolveRequested
	}
	if step.TimedOut() {
		a |= ResolveTimedOut
		glog.V(1).Infof("resolving %s timed out, retry", c.peer.IP)
	}
	if step.Changed() && step.To == resolver.Resolved {
		a |= PeerResolved
	}
	if step.From == resolver.Resolved {
		r := c.Transmitter.Service(status.Payload{State: state, Inputs: bits})
		switch {
		case r.Sent:
			a |= DatagramSent
		case r.Err != nil:
			a |= SendFailed
		case r.Skipped():
			a |= SendSkipped
		}
	}

	c.Transport.Pump()
	a |= Pumped
	if glog.V(4) {
		glog.Infof("tick: %s", a)
	}
	return
}

// Status returns the current snapshot.
func (c *Controller) Status() Snapshot {
	return Snapshot{
		State:    c.Selector.State(),
		Inputs:   c.Selector.Bits(),
		RawPort:  c.raw,
		Resolver: c.Resolver.State(),
		Peer:     c.peer,
		Linked:   c.socket.IsValid(),
		Sent:     c.Transmitter.Sent(),
		Levels:   c.Driver.Last(),
	}
}

// Control implements Controller.
func (c *Controller) Control(cc fx.ControlContext) error {
	c.Tick()
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		switch cmdMsg.Command.Msg().(type) {
		case *msgs.StatusQuery:
			mctx.MessageTaken()
			if err := cmdMsg.Command.Done(&msgs.Status{Status: c.Status().NodeStatus()}); err != nil {
				glog.Warningf("reply status error: %v", err)
			}
		}
	}))
	return nil
}

// publishChange queues a StatusEvent when the snapshot changed.
func (c *Controller) publishChange(fx.ControlContext) error {
	snapshot := c.Status()
	if c.started && !snapshot.differs(c.last) {
		return nil
	}
	c.started, c.last = true, snapshot
	if c.Registrar == nil {
		return nil
	}
	select {
	case c.events <- &msgs.StatusEvent{Status: snapshot.NodeStatus()}:
	default:
		glog.V(2).Info("event queue full, status event dropped")
	}
	return nil
}

// publishEvents sends queued events so the loop never waits on the
// registry.
func (c *Controller) publishEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			if err := c.Registrar.SendEvent(ctx, ev); err != nil {
				glog.Warningf("send status event error: %v", err)
			}
		}
	}
}

// AddToLoop implements LoopAdder.
func (c *Controller) AddToLoop(l *fx.Loop) {
	if c.Ticker != nil {
		l.AddRunnable(c.Ticker)
	}
	l.AddController(fx.PrLvControl, c)
	if c.Registrar != nil {
		l.AddController(fx.PrLvPostProc, fx.ControlFunc(c.publishChange))
		l.AddRunnable(fx.NamedRun("status-events", fx.RunFunc(c.publishEvents)))
		if adder, ok := c.Registrar.(fx.LoopAdder); ok {
			l.Add(adder)
		}
		l.Add(&comm.UnsupportedCommands{})
	}
	l.Add(c.adders...)
}

// With adds components to the loop together with the controller.
func (c *Controller) With(adders ...fx.LoopAdder) *Controller {
	c.adders = append(c.adders, adders...)
	return c
}

// OnClose registers a cleanup for Close.
func (c *Controller) OnClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close closes the socket, the board and registered resources.
func (c *Controller) Close() error {
	var errs fx.AggregatedError
	if c.socket.IsValid() {
		errs.Add(c.Transport.Close(c.socket))
		c.socket = transport.InvalidSocket
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs.Add(c.closers[i]())
	}
	errs.Add(c.Board.Close())
	return errs.Aggregate()
}
