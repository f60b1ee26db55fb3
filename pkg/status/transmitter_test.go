package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/relaynode/pkg/board"
	"github.com/robotalks/relaynode/pkg/tick"
	"github.com/robotalks/relaynode/pkg/transport"
)

type fakeSender struct {
	notReady bool
	flushErr error
	buf      []byte
	sent     [][]byte
}

func (s *fakeSender) IsSendReady(transport.Socket) bool {
	return !s.notReady
}

func (s *fakeSender) Put(_ transport.Socket, b byte) {
	s.buf = append(s.buf, b)
}

func (s *fakeSender) Flush(transport.Socket) error {
	data := s.buf
	s.buf = nil
	if s.flushErr != nil {
		return s.flushErr
	}
	s.sent = append(s.sent, data)
	return nil
}

type transmitterTestEnv struct {
	clock  *tick.Counter
	sender *fakeSender
	led    bool
	tx     *Transmitter
}

func newTransmitterTestEnv() *transmitterTestEnv {
	env := &transmitterTestEnv{
		clock:  tick.NewCounter(10),
		sender: &fakeSender{},
	}
	env.tx = NewTransmitter(env.sender, 3, env.clock)
	env.tx.Indicator = board.NewIndicator(board.LineFunc(func(on bool) { env.led = on }))
	return env
}

func TestTransmitterEdgeTrigger(t *testing.T) {
	env := newTransmitterTestEnv()
	p := Payload{State: 0x04, Inputs: 0x15}
	r := env.tx.Service(p)
	require.True(t, r.Due)
	require.True(t, r.Sent)
	require.NoError(t, r.Err)
	require.Equal(t, [][]byte{p.Bytes()}, env.sender.sent)
	require.Equal(t, p, env.tx.LastSent())
	require.True(t, env.led)

	env.clock.Advance(3)
	r = env.tx.Service(p)
	require.False(t, r.Due)
	require.Equal(t, 1, env.tx.Sent())

	q := Payload{State: 0x01, Inputs: 0x01}
	r = env.tx.Service(q)
	require.True(t, r.Sent)
	require.False(t, env.led)
	require.Equal(t, 2, env.tx.Sent())
}

func TestTransmitterCadence(t *testing.T) {
	env := newTransmitterTestEnv()
	p := Payload{}
	// Zero payload at second zero matches the initial baseline.
	require.False(t, env.tx.Service(p).Due)
	for i := 0; i < 50; i++ {
		env.clock.Update()
		env.tx.Service(p)
	}
	require.Equal(t, 5, env.tx.Sent())
}

func TestTransmitterChangeResetsBaseline(t *testing.T) {
	env := newTransmitterTestEnv()
	env.clock.AdvanceSeconds(1)
	env.clock.Advance(5)
	p := Payload{State: 0x10, Inputs: 0x10}
	require.True(t, env.tx.Service(p).Sent)

	// Within the same second, no periodic send.
	env.clock.Advance(4)
	require.False(t, env.tx.Service(p).Due)
	env.clock.Update()
	require.True(t, env.tx.Service(p).Sent)
	require.Equal(t, 2, env.tx.Sent())
}

func TestTransmitterNotReady(t *testing.T) {
	env := newTransmitterTestEnv()
	env.sender.notReady = true
	p := Payload{State: 0x01, Inputs: 0x01}
	r := env.tx.Service(p)
	require.True(t, r.Skipped())
	require.Empty(t, env.sender.sent)
	require.False(t, env.led)

	env.sender.notReady = false
	r = env.tx.Service(p)
	require.True(t, r.Sent)
	require.False(t, r.Skipped())
}

func TestTransmitterFlushError(t *testing.T) {
	env := newTransmitterTestEnv()
	errSend := errors.New("send")
	env.sender.flushErr = errSend
	p := Payload{State: 0x04, Inputs: 0x04}
	r := env.tx.Service(p)
	require.True(t, r.Due)
	require.False(t, r.Sent)
	require.Equal(t, errSend, r.Err)
	require.False(t, r.Skipped())
	require.Equal(t, 0, env.tx.Sent())
	require.Equal(t, Payload{}, env.tx.LastSent())
	require.Equal(t, 1, env.tx.Failures())

	// retried on every call while the baseline stays put
	for i := 0; i < 5; i++ {
		require.Equal(t, errSend, env.tx.Service(p).Err)
	}
	require.Equal(t, 6, env.tx.Failures())

	env.sender.flushErr = nil
	require.True(t, env.tx.Service(p).Sent)
	require.Equal(t, 0, env.tx.Failures())
}

func TestTransmitterWithoutIndicator(t *testing.T) {
	sender := &fakeSender{}
	tx := NewTransmitter(sender, 1, tick.NewCounter(0))
	tx.Interval = 0
	require.True(t, tx.Service(Payload{State: 1}).Sent)
}
