package controller

import "strings"

// Actions records what one Tick did.
type Actions uint16

// Actions taken by Tick
const (
	InputsSampled Actions = 1 << iota
	OutputsDriven
	Blinked
	ResolveRequested
	ResolveTimedOut
	PeerResolved
	DatagramSent
	SendSkipped
	SendFailed
	Pumped
)

var actionNames = []string{
	"inputs-sampled",
	"outputs-driven",
	"blinked",
	"resolve-requested",
	"resolve-timed-out",
	"peer-resolved",
	"datagram-sent",
	"send-skipped",
	"send-failed",
	"pumped",
}

// Has indicates all actions in m are taken.
func (a Actions) Has(m Actions) bool {
	return a&m == m
}

// String implements fmt.Stringer.
func (a Actions) String() string {
	var names []string
	for n, name := range actionNames {
		if a&(1<<uint(n)) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
