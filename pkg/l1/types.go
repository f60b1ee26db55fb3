// Package l1 defines the node registry: a relay node registers itself
// and serves commands, tools discover and connect to nodes.
package l1

import (
	"context"

	fx "github.com/robotalks/relaynode/pkg/framework"
)

// Registrar registers a node to a registry. It integrates with the
// loop so commands arrive as messages.
type Registrar interface {
	// SendEvent publishes an event from the node.
	SendEvent(context.Context, fx.Message) error
}

// Command represents a received command to be processed.
type Command interface {
	Msg() fx.Message
	Done(fx.Message) error
}

// CommandMsg wraps a Command as a Message.
type CommandMsg struct {
	Command Command
}

// NewMessage implements Message.
func (m *CommandMsg) NewMessage() fx.Message { return &CommandMsg{} }

// NodeRef is a reference to a node.
type NodeRef struct {
	// Type is the node type.
	Type string `json:"type"`
	// ID is unique ID of the device.
	ID string `json:"id"`
}

// Name retrieves the name from ref.
func (r NodeRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid indicates NodeRef is valid.
func (r NodeRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// NodeMeta provides metadata of a node.
type NodeMeta struct {
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// NodeInfo provides information of a node.
type NodeInfo struct {
	Ref  NodeRef  `json:"ref"`
	Meta NodeMeta `json:"meta"`
}

// Connector is used by tools to connect to a node.
type Connector interface {
	// Discover enumerates registered nodes.
	Discover(context.Context) ([]NodeInfo, error)
	// Connect connects to the specified node.
	Connect(context.Context, NodeRef) (NodeConn, error)
}

// NodeConn is the connection to a node.
type NodeConn interface {
	// DoCommand executes a command.
	DoCommand(fx.Message) CommandFuture
}

// Result represents result of a command.
type Result struct {
	Msg fx.Message
	Err error
}

// CommandFuture is the future of sent command.
type CommandFuture interface {
	ResultChan() <-chan Result
}
