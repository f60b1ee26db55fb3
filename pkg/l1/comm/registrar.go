package comm

import (
	"context"
	"errors"
	"reflect"

	"github.com/golang/glog"

	fx "github.com/robotalks/relaynode/pkg/framework"
	"github.com/robotalks/relaynode/pkg/l1"
	"github.com/robotalks/relaynode/pkg/l1/msgs"
)

// DefaultReplyQueueSize is the number of command replies buffered
// between the loop and the reply sender.
const DefaultReplyQueueSize = 8

// ErrReplyQueueFull indicates a reply is dropped as the link is stalled.
var ErrReplyQueueFull = errors.New("reply queue full")

// Registrar is the node side of a Pipe. Commands arriving on the pipe
// are posted to the running loop as l1.CommandMsg, events are posted
// as they are. Replies are written by a separate runnable, so Done
// never waits on the link.
type Registrar struct {
	pipe    Pipe
	replies chan *msgs.Typed
}

// Init binds the Registrar to a packet link.
func (r *Registrar) Init(rw PacketReadWriter) {
	r.pipe.ReadWriter = rw
	r.pipe.Handler = msgs.HandleTypedMsgFunc(r.post)
	r.replies = make(chan *msgs.Typed, DefaultReplyQueueSize)
}

func (r *Registrar) post(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	ctl := fx.LoopCtlFrom(ctx)
	if ctl == nil {
		glog.Warningf("no loop to receive message %x", typed.TypeId)
		return nil
	}
	if typed.IsEvent() {
		ctl.PostMessage(msg)
	} else {
		ctl.PostMessage(&l1.CommandMsg{Command: &command{seq: typed.Sequence, msg: msg, reg: r}})
	}
	// commands are answered in the next iteration rather than the next interval
	ctl.TriggerNext()
	return nil
}

// queueReply validates the reply and hands it to sendReplies.
func (r *Registrar) queueReply(reply fx.Message, seq uint32) error {
	typed, err := CommandTyped(reply, seq)
	if err != nil {
		return err
	}
	select {
	case r.replies <- typed:
		return nil
	default:
		return ErrReplyQueueFull
	}
}

func (r *Registrar) sendReplies(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case typed := <-r.replies:
			if err := r.pipe.SendTyped(typed); err != nil {
				glog.Warningf("send reply %x error: %v", typed.TypeId, err)
			}
		}
	}
}

// SendEvent implements l1.Registrar.
func (r *Registrar) SendEvent(_ context.Context, msg fx.Message) error {
	return r.pipe.SendEventMsg(msg)
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.pipe)
	loop.AddRunnable(fx.NamedRun("replies", fx.RunFunc(r.sendReplies)))
}

// command replies through the Registrar it came from with the same
// sequence.
type command struct {
	seq uint32
	msg fx.Message
	reg *Registrar
}

func (c *command) Msg() fx.Message { return c.msg }

func (c *command) Done(reply fx.Message) error {
	return c.reg.queueReply(reply, c.seq)
}

// RegistrarMux fans events out to every registry the node joined.
type RegistrarMux struct {
	Registrars []l1.Registrar
}

// Add appends registrars.
func (r *RegistrarMux) Add(regs ...l1.Registrar) {
	r.Registrars = append(r.Registrars, regs...)
}

// SendEvent implements l1.Registrar. All registrars are tried even if
// some fail.
func (r *RegistrarMux) SendEvent(ctx context.Context, msg fx.Message) error {
	var errs fx.AggregatedError
	for _, reg := range r.Registrars {
		errs.Add(reg.SendEvent(ctx, msg))
	}
	return errs.Aggregate()
}

// AddToLoop adds the registrars which integrate with the loop.
func (r *RegistrarMux) AddToLoop(l *fx.Loop) {
	for _, reg := range r.Registrars {
		if adder, ok := reg.(fx.LoopAdder); ok {
			l.Add(adder)
		}
	}
}

// UnsupportedCommands runs last and answers every command no controller
// has taken with CommandErr.
type UnsupportedCommands struct {
}

// Control implements Controller.
func (c *UnsupportedCommands) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		mctx.MessageTaken()
		glog.V(2).Infof("unsupported command %s", reflect.Indirect(reflect.ValueOf(cmdMsg.Command.Msg())).Type().Name())
		errs.Add(cmdMsg.Command.Done(msgs.NewCommandErr(msgs.ErrUnsupportedCommand)))
	}))
	return errs.Aggregate()
}

// AddToLoop implements LoopAdder.
func (c *UnsupportedCommands) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvIdle, c)
}
