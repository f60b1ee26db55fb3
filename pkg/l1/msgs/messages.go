package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/relaynode/pkg/framework"
)

// TypeID Groups
const (
	GroupCommand uint32 = 0x00000000
	GroupRelay   uint32 = 0x00030000
	GroupCustom  uint32 = 0x7f000000 // base group id for custom messages.
)

// TypeIDs
const (
	CommandOKTypeID   uint32 = GroupCommand | TypeIDMaskReply | 0x0000
	CommandErrTypeID  uint32 = GroupCommand | TypeIDMaskReply | 0x0001
	StatusQueryTypeID uint32 = GroupRelay | 0x0000
	StatusTypeID      uint32 = StatusQueryTypeID | TypeIDMaskReply
	StatusEventTypeID uint32 = TypeIDKindEvent | GroupRelay | 0x0001
)

func init() {
	RegisterMessage(
		(*CommandOK)(nil),
		(*CommandErr)(nil),
		(*StatusQuery)(nil),
		(*Status)(nil),
		(*StatusEvent)(nil),
	)
}

// CommandOK is the generic reply indicating success for commands.
type CommandOK struct {
}

// NewCommandOK creates a CommandOK.
func NewCommandOK() *CommandOK {
	return &CommandOK{}
}

// NewMessage implements Message.
func (m *CommandOK) NewMessage() fx.Message { return &CommandOK{} }

// TypeID implements SerializableMessage.
func (m *CommandOK) TypeID() uint32 { return CommandOKTypeID }

// Serializable implements SerializableMessage.
func (m *CommandOK) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *CommandOK) ProtoMessage() {}

// Reset implements proto.Message.
func (m *CommandOK) Reset() { *m = CommandOK{} }

// String implements proto.Message.
func (m *CommandOK) String() string { return proto.CompactTextString(m) }

// CommandErr is the generic message representing command error.
type CommandErr struct {
	Message string `protobuf:"bytes,1,opt,name=message,proto3" json:"message,omitempty"`
}

// NewCommandErr creates a CommandErr from an error.
func NewCommandErr(err error) *CommandErr {
	return &CommandErr{Message: err.Error()}
}

// NewMessage implements Message.
func (m *CommandErr) NewMessage() fx.Message { return &CommandErr{} }

// TypeID implements SerializableMessage.
func (m *CommandErr) TypeID() uint32 { return CommandErrTypeID }

// Serializable implements SerializableMessage.
func (m *CommandErr) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *CommandErr) ProtoMessage() {}

// Reset implements proto.Message.
func (m *CommandErr) Reset() { *m = CommandErr{} }

// String implements proto.Message.
func (m *CommandErr) String() string { return proto.CompactTextString(m) }

// Error implements error.
func (m *CommandErr) Error() string { return m.Message }

// StatusQuery queries the node status.
type StatusQuery struct {
}

// NewMessage implements Message.
func (m *StatusQuery) NewMessage() fx.Message { return &StatusQuery{} }

// TypeID implements SerializableMessage.
func (m *StatusQuery) TypeID() uint32 { return StatusQueryTypeID }

// Serializable implements SerializableMessage.
func (m *StatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusQuery) Reset() { *m = StatusQuery{} }

// String implements proto.Message.
func (m *StatusQuery) String() string { return proto.CompactTextString(m) }

// NodeStatus is the snapshot of a relay node.
type NodeStatus struct {
	State    uint32 `protobuf:"varint,1,opt,name=state,proto3" json:"state"`
	Inputs   uint32 `protobuf:"varint,2,opt,name=inputs,proto3" json:"inputs"`
	RawPort  uint32 `protobuf:"varint,3,opt,name=raw_port,json=rawPort,proto3" json:"raw_port"`
	Resolver string `protobuf:"bytes,4,opt,name=resolver,proto3" json:"resolver,omitempty"`
	Peer     string `protobuf:"bytes,5,opt,name=peer,proto3" json:"peer,omitempty"`
	Linked   bool   `protobuf:"varint,6,opt,name=linked,proto3" json:"linked"`
	Sent     uint64 `protobuf:"varint,7,opt,name=sent,proto3" json:"sent"`
	Lines    []bool `protobuf:"varint,8,rep,packed,name=lines,proto3" json:"lines,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *NodeStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *NodeStatus) Reset() { *m = NodeStatus{} }

// String implements proto.Message.
func (m *NodeStatus) String() string { return proto.CompactTextString(m) }

// Status is the response for StatusQuery.
type Status struct {
	Status *NodeStatus `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
}

// NewMessage implements Message.
func (m *Status) NewMessage() fx.Message { return &Status{} }

// TypeID implements SerializableMessage.
func (m *Status) TypeID() uint32 { return StatusTypeID }

// Serializable implements SerializableMessage.
func (m *Status) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// StatusEvent is published when the node status changes.
type StatusEvent struct {
	Status *NodeStatus `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
}

// NewMessage implements Message.
func (m *StatusEvent) NewMessage() fx.Message { return &StatusEvent{} }

// TypeID implements SerializableMessage.
func (m *StatusEvent) TypeID() uint32 { return StatusEventTypeID }

// Serializable implements SerializableMessage.
func (m *StatusEvent) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusEvent) Reset() { *m = StatusEvent{} }

// String implements proto.Message.
func (m *StatusEvent) String() string { return proto.CompactTextString(m) }
