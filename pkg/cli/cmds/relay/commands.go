// Package relay provides shell commands for relay nodes.
package relay

import (
	"bytes"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/relaynode/pkg/board"
	"github.com/robotalks/relaynode/pkg/cli/sh"
	"github.com/robotalks/relaynode/pkg/l1/msgs"
)

// FormatStatus formats NodeStatus for display.
func FormatStatus(st *msgs.NodeStatus) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "state=0x%02x inputs=0x%02x raw=0x%02x\n", st.State, st.Inputs, st.RawPort)
	fmt.Fprintf(&w, "resolver=%s peer=%s linked=%v sent=%d\n", st.Resolver, st.Peer, st.Linked, st.Sent)
	for n, on := range st.Lines {
		level := "off"
		if on {
			level = "on"
		}
		fmt.Fprintf(&w, "  %-10s %s\n", board.LineID(n).String(), level)
	}
	return w.String()
}

var (
	// StatusCmd exposes StatusQuery command.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "query node state, inputs, resolver and relay lines",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			if s.OutputJSON {
				sh.DoCommand(c, &msgs.StatusQuery{})
				return
			}
			reply, err := s.Exec(&msgs.StatusQuery{}, sh.CommandTimeout)
			if err != nil {
				c.Err(err)
				return
			}
			st, ok := reply.(*msgs.Status)
			if !ok || st.Status == nil {
				sh.PrintReply(c, reply)
				return
			}
			c.Print(FormatStatus(st.Status))
		}),
	}
)

func init() {
	sh.AddCmds(&StatusCmd)
}
