// Package relay maps the exclusive state to output line levels.
package relay

import (
	"github.com/golang/glog"

	"github.com/robotalks/relaynode/pkg/board"
	"github.com/robotalks/relaynode/pkg/selector"
)

// Levels is the level of every output line driven by a state.
type Levels [board.NumLines]bool

// On returns the lines set in l.
func (l Levels) On() (ids []board.LineID) {
	for id, on := range l {
		if on {
			ids = append(ids, board.LineID(id))
		}
	}
	return
}

// Driven lists the lines a Driver writes. StatusLED is not driven.
var Driven = []board.LineID{
	board.Relay1, board.Relay2, board.Relay3,
	board.AuxD, board.AuxE, board.AuxF,
}

// Table maps states to levels. State 0 and unknown states are all off.
type Table map[byte]Levels

// DefaultTable maps each candidate to one relay and its auxiliary line.
var DefaultTable = Table{
	selector.Bit0: levelsOf(board.Relay1, board.AuxF),
	selector.Bit2: levelsOf(board.Relay2, board.AuxE),
	selector.Bit4: levelsOf(board.Relay3),
}

func levelsOf(ids ...board.LineID) (l Levels) {
	for _, id := range ids {
		l[id] = true
	}
	return
}

// Levels returns the levels for the state, false if the state is not
// in the table.
func (t Table) Levels(state byte) (Levels, bool) {
	if state == 0 {
		return Levels{}, true
	}
	l, ok := t[state]
	return l, ok
}

// Driver writes levels to a board.
type Driver struct {
	Board board.Board
	Table Table

	driven bool
	last   Levels
}

// NewDriver creates a Driver with DefaultTable.
func NewDriver(b board.Board) *Driver {
	return &Driver{Board: b, Table: DefaultTable}
}

// Drive writes all driven lines for the state. Unknown states turn
// everything off.
func (d *Driver) Drive(state byte) Levels {
	table := d.Table
	if table == nil {
		table = DefaultTable
	}
	l, ok := table.Levels(state)
	if !ok {
		glog.Warningf("unknown state 0x%02x, outputs off", state)
	}
	for _, id := range Driven {
		d.Board.Line(id).Set(l[id])
	}
	if !d.driven || l != d.last {
		glog.V(1).Infof("state 0x%02x: on %v", state, l.On())
	}
	d.driven, d.last = true, l
	return l
}

// Last returns the levels of the last Drive.
func (d *Driver) Last() Levels {
	return d.last
}
