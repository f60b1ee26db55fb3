package mqtt

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/robotalks/relaynode/pkg/l1"
)

// Topic names under TYPE/ID/.
const (
	MetaTopic = "meta"
	CmdTopic  = "cmd"
	MsgTopic  = "msg"
)

// DefaultWriteTimeout bounds a publish waiting on the broker.
const DefaultWriteTimeout = 5 * time.Second

// ErrWriteTimeout indicates the broker did not acknowledge a publish in time.
var ErrWriteTimeout = errors.New("publish timeout")

// ReadWriter carries packets over a pair of topics. Payloads arriving
// on SubTopic are read as packets, written packets go to PubTopic.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string
	// WriteTimeout bounds WritePacket, DefaultWriteTimeout if 0.
	WriteTimeout time.Duration

	packetCh chan []byte
	doneCh   chan struct{}
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, 1),
		doneCh:   make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForConnector reads replies and events from TYPE/ID/msg and writes
// commands to TYPE/ID/cmd.
func (p *ReadWriter) ForConnector(ref l1.NodeRef) *ReadWriter {
	prefix := ref.Name() + "/"
	return p.WithTopics(prefix+MsgTopic, prefix+CmdTopic)
}

// ForNode is the reverse of ForConnector.
func (p *ReadWriter) ForNode(ref l1.NodeRef) *ReadWriter {
	prefix := ref.Name() + "/"
	return p.WithTopics(prefix+CmdTopic, prefix+MsgTopic)
}

// ReadPacket implements PacketReader. It returns io.EOF once Run exits.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.doneCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter, it waits for the publish up to
// WriteTimeout.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	timeout := p.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	token := p.Queue.Pub(p.PubTopic, pkt)
	if !token.WaitTimeout(timeout) {
		return ErrWriteTimeout
	}
	return token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.SubTopic, Handler(p.handleMsg))
	defer sub.Close()
	defer close(p.doneCh)
	<-ctx.Done()
	return ctx.Err()
}

// handleMsg runs on the paho callback goroutine. Packets arriving after
// Run exits are dropped.
func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.doneCh:
	}
}
