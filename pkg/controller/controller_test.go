package controller

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/relaynode/pkg/board"
	"github.com/robotalks/relaynode/pkg/board/sim"
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
	"github.com/robotalks/relaynode/pkg/transport/mem"
)

var (
	nodeIP  = transport.IPAddr{10, 0, 0, 2}
	nodeMAC = transport.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	peerIP  = transport.IPAddr{10, 0, 0, 1}
	peerMAC = transport.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
)

type controllerTestEnv struct {
	t        *testing.T
	clock    *tick.Counter
	board    *sim.Board
	network  *mem.Network
	node     *mem.Host
	peer     *mem.Host
	ctl      *Controller
	received []status.Payload
	ticks    int
}

func newControllerTestEnv(t *testing.T, peer transport.IPAddr, opts Options) *controllerTestEnv {
	env := &controllerTestEnv{
		t:       t,
		clock:   tick.NewCounter(tick.DefaultTicksPerSecond),
		board:   sim.New(sim.IdlePort),
		network: mem.NewNetwork(),
	}
	env.node = env.network.Attach(nodeIP, nodeMAC)
	env.peer = env.network.Attach(peerIP, peerMAC)
	env.peer.Handler = transport.HandleDatagramFunc(func(d transport.Datagram) {
		p, err := status.Parse(d.Data)
		require.NoError(t, err)
		env.received = append(env.received, p)
	})
	peerSide := transport.Endpoint{IP: nodeIP}
	require.True(t, env.peer.Open(54124, &peerSide, 54123).IsValid())

	opts.Peer = transport.Endpoint{IP: peer, LocalPort: 54123, RemotePort: 54124}
	ctl, err := New(env.board, env.node, env.clock, opts)
	require.NoError(t, err)
	env.ctl = ctl
	return env
}

func (e *controllerTestEnv) step() Actions {
	e.clock.Update()
	e.ticks++
	a := e.ctl.Tick()
	e.peer.Pump()
	return a
}

// run steps until an action is taken, returns the number of steps.
func (e *controllerTestEnv) run(until Actions, max int) int {
	for n := 1; n <= max; n++ {
		if e.step().Has(until) {
			return n
		}
	}
	e.t.Fatalf("%s not taken in %d steps", until, max)
	return 0
}

func (e *controllerTestEnv) runFor(steps int) (all Actions) {
	for i := 0; i < steps; i++ {
		all |= e.step()
	}
	return
}

func TestTickResolvesAndSends(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	env.board.SetPort(0x00)

	a := env.step()
	require.True(t, a.Has(InputsSampled|OutputsDriven|ResolveRequested|Pumped))
	require.Equal(t, resolver.WaitingForResolution, env.ctl.Status().Resolver)

	env.run(PeerResolved, 5)
	snapshot := env.ctl.Status()
	require.Equal(t, resolver.Resolved, snapshot.Resolver)
	require.Equal(t, peerMAC, snapshot.Peer.MAC)

	// The first datagram goes out in the next iteration.
	a = env.step()
	require.True(t, a.Has(DatagramSent))
	require.Equal(t, []status.Payload{{State: selector.Bit2, Inputs: 0x15}}, env.received)
	require.True(t, env.board.Level(board.StatusLED))
	require.Equal(t, 1, env.ctl.Status().Sent)
}

func TestBroadcastPeer(t *testing.T) {
	env := newControllerTestEnv(t, transport.BroadcastIP, Options{})
	require.True(t, env.step().Has(ResolveRequested))
	require.True(t, env.step().Has(PeerResolved))
	require.Equal(t, transport.BroadcastHardwareAddr, env.ctl.Status().Peer.MAC)
	require.Equal(t, 0, env.node.ResolveRequests())

	env.run(DatagramSent, tick.DefaultTicksPerSecond)
	require.Equal(t, []status.Payload{{}}, env.received)
}

func TestResolveRetriesForever(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	env.peer.SetSilent(true)
	var requested []int
	for i := 0; i < 10*tick.DefaultTicksPerSecond; i++ {
		a := env.step()
		require.False(t, a.Has(PeerResolved))
		require.False(t, a.Has(DatagramSent))
		if a.Has(ResolveRequested) {
			requested = append(requested, env.ticks)
		}
	}
	require.Len(t, requested, 5)
	for n := 1; n < len(requested); n++ {
		require.True(t, requested[n]-requested[n-1] >= 2*tick.DefaultTicksPerSecond)
	}
	require.Equal(t, 5, env.node.ResolveRequests())

	env.peer.SetSilent(false)
	env.run(PeerResolved, 3*tick.DefaultTicksPerSecond)
}

func TestCadence(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	env.board.SetPort(0xfe)
	env.run(DatagramSent, 10)
	env.received = nil
	env.runFor(5 * tick.DefaultTicksPerSecond)
	require.Len(t, env.received, 5)
	for _, p := range env.received {
		require.Equal(t, status.Payload{State: selector.Bit0, Inputs: selector.Bit0}, p)
	}
}

func TestEdgeTrigger(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	env.run(PeerResolved, 5)
	env.clock.Advance(tick.DefaultTicksPerSecond - 20 - int(env.clock.NowShort()))
	env.run(DatagramSent, 30)
	env.received = nil

	env.runFor(10)
	require.Empty(t, env.received)
	env.board.SetPort(0xef)
	require.True(t, env.step().Has(DatagramSent))
	require.Equal(t, []status.Payload{{State: selector.Bit4, Inputs: selector.Bit4}}, env.received)

	// The baseline restarts from the change.
	env.runFor(tick.DefaultTicksPerSecond / 2)
	require.Len(t, env.received, 1)
}

func TestSendSkipped(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	env.run(PeerResolved, 5)
	env.node.SetSendReady(false)
	env.board.SetPort(0x00)
	a := env.step()
	require.True(t, a.Has(SendSkipped))
	require.False(t, a.Has(DatagramSent))
	env.node.SetSendReady(true)
	require.True(t, env.step().Has(DatagramSent))
}

func TestSocketOpenFailure(t *testing.T) {
	clock := tick.NewCounter(0)
	b := sim.New(0x00)
	network := mem.NewNetwork()
	host := network.Attach(nodeIP, nodeMAC)
	other := transport.Endpoint{IP: peerIP}
	require.True(t, host.Open(54123, &other, 1).IsValid())

	ctl, err := New(b, host, clock, Options{Peer: transport.Endpoint{IP: transport.BroadcastIP, LocalPort: 54123, RemotePort: 54124}})
	require.NoError(t, err)
	require.False(t, ctl.Socket().IsValid())
	var all Actions
	for i := 0; i < 5; i++ {
		clock.Update()
		all |= ctl.Tick()
	}
	require.True(t, all.Has(OutputsDriven|PeerResolved|SendSkipped))
	require.False(t, all.Has(DatagramSent))
	require.True(t, b.Level(board.Relay2))
	require.False(t, ctl.Status().Linked)
	require.NoError(t, ctl.Close())
}

func TestRelaysFollowInputs(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	testCases := []struct {
		port  byte
		state byte
		on    []board.LineID
	}{
		{0xff, 0, nil},
		{0x00, selector.Bit2, []board.LineID{board.Relay2, board.AuxE}},
		{0x04, selector.Bit0, []board.LineID{board.Relay1, board.AuxF}},
		{0x00, selector.Bit0, []board.LineID{board.Relay1, board.AuxF}},
		{0xfe, selector.Bit0, []board.LineID{board.Relay1, board.AuxF}},
		{0xef, selector.Bit4, []board.LineID{board.Relay3}},
		{0xff, 0, nil},
	}
	for _, tc := range testCases {
		env.board.SetPort(tc.port)
		env.step()
		snapshot := env.ctl.Status()
		require.Equal(t, tc.state, snapshot.State, "port=0x%02x", tc.port)
		require.Equal(t, tc.port, snapshot.RawPort)
		require.Equal(t, tc.on, snapshot.Levels.On())
		levels := relay.Levels(env.board.Levels())
		levels[board.StatusLED] = false
		require.Equal(t, tc.on, levels.On())
	}
}

func TestBlinker(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{Blink: true})
	env.peer.SetSilent(true)
	var blinks int
	for i := 0; i < 3*tick.DefaultTicksPerSecond; i++ {
		if env.step().Has(Blinked) {
			blinks++
		}
	}
	require.Equal(t, 3, blinks)
	require.True(t, env.board.Level(board.StatusLED))
}

func TestCustomCandidates(t *testing.T) {
	_, err := New(sim.New(sim.IdlePort), mem.NewNetwork().Attach(nodeIP, nodeMAC), tick.NewCounter(0),
		Options{Candidates: []selector.Candidate{{Mask: 0x03}}})
	require.Error(t, err)
}

type fakeCommand struct {
	msg   fx.Message
	reply fx.Message
}

func (c *fakeCommand) Msg() fx.Message { return c.msg }

func (c *fakeCommand) Done(msg fx.Message) error {
	c.reply = msg
	return nil
}

type fakeRegistrar struct{}

func (r *fakeRegistrar) SendEvent(context.Context, fx.Message) error { return nil }

func TestControlStatusQuery(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	env.board.SetPort(0x00)
	loop := fx.NewLoop().Add(env.ctl)
	query := &fakeCommand{msg: &msgs.StatusQuery{}}
	loop.PostMessage(&l1.CommandMsg{Command: query})
	loop.Step(context.Background())

	require.IsType(t, &msgs.Status{}, query.reply)
	st := query.reply.(*msgs.Status).Status
	require.Equal(t, uint32(selector.Bit2), st.State)
	require.Equal(t, uint32(0x15), st.Inputs)
	require.Equal(t, resolver.WaitingForResolution.String(), st.Resolver)
	require.True(t, st.Linked)
	require.Len(t, st.Lines, int(board.NumLines))
	require.True(t, st.Lines[board.Relay2])
}

func TestStatusEvents(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	env.ctl.Registrar = &fakeRegistrar{}
	loop := fx.NewLoop().Add(env.ctl)
	ctx := context.Background()

	loop.Step(ctx)
	require.Len(t, env.ctl.events, 1)
	<-env.ctl.events

	unknown := &fakeCommand{msg: &msgs.CommandOK{}}
	loop.PostMessage(&l1.CommandMsg{Command: unknown})
	loop.Step(ctx)
	require.IsType(t, &msgs.CommandErr{}, unknown.reply)

	// Resolver moved to resolved in the steps above or below.
	for i := 0; i < 5; i++ {
		env.peer.Pump()
		loop.Step(ctx)
	}
	drained := 0
	for len(env.ctl.events) > 0 {
		ev := <-env.ctl.events
		require.NotNil(t, ev.Status)
		drained++
	}
	require.True(t, drained >= 1)

	// No input change, no event.
	loop.Step(ctx)
	require.Len(t, env.ctl.events, 0)
	env.board.SetPort(0xfe)
	loop.Step(ctx)
	require.Len(t, env.ctl.events, 1)
	ev := <-env.ctl.events
	require.Equal(t, uint32(selector.Bit0), ev.Status.State)
}

func TestActionsString(t *testing.T) {
	require.Equal(t, "none", Actions(0).String())
	require.Equal(t, "inputs-sampled|datagram-sent", (InputsSampled | DatagramSent).String())
	require.True(t, (Pumped | SendFailed).Has(Pumped))
	require.False(t, Pumped.Has(Pumped|SendFailed))
}

// stalledLink accepts inbound packets but every write blocks until
// release is closed, like a broker connection that stopped acking.
type stalledLink struct {
	in      chan []byte
	writing chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStalledLink() *stalledLink {
	return &stalledLink{
		in:      make(chan []byte, 1),
		writing: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (l *stalledLink) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-l.in:
		return pkt, nil
	case <-l.release:
		return nil, io.EOF
	}
}

func (l *stalledLink) WritePacket([]byte) error {
	l.once.Do(func() { close(l.writing) })
	<-l.release
	return io.ErrClosedPipe
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStalledRegistryKeepsRelaysRunning(t *testing.T) {
	env := newControllerTestEnv(t, peerIP, Options{})
	link := newStalledLink()
	reg := &comm.Registrar{}
	reg.Init(link)
	env.ctl.Registrar = reg

	loop := fx.NewLoop()
	loop.Interval = time.Millisecond
	loop.Add(env.ctl)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	defer func() {
		cancel()
		close(link.release)
		<-done
	}()

	env.board.SetPort(0xfe)
	waitUntil(t, "relay1 on", func() bool { return env.board.Level(board.Relay1) })

	typed, err := comm.CommandTyped(&msgs.StatusQuery{}, 1)
	require.NoError(t, err)
	pkt, err := typed.Encode()
	require.NoError(t, err)
	link.in <- pkt
	<-link.writing

	env.board.SetPort(0xff)
	waitUntil(t, "relay1 off", func() bool { return !env.board.Level(board.Relay1) })
	env.board.SetPort(0xef)
	waitUntil(t, "relay3 on", func() bool { return env.board.Level(board.Relay3) })
}
