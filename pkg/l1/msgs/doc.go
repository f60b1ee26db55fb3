// Package msgs provides the L1 protocol and all message schemas.
//
// Messages travel in a Typed envelope whose TypeId tells the kind
// (command or event), the group and whether it is a reply.
package msgs
