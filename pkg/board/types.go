// Package board defines the digital I/O of the controller board.
package board

import (
	"fmt"
	"io"
)

// LineID identifies an output line.
type LineID int

// Output lines
const (
	Relay1 LineID = iota
	Relay2
	Relay3
	// AuxD, AuxE and AuxF are the auxiliary outputs following the relays.
	AuxD
	AuxE
	AuxF
	// StatusLED is the status indicator.
	StatusLED

	NumLines
)

var lineNames = [NumLines]string{
	"relay1", "relay2", "relay3", "aux-d", "aux-e", "aux-f", "status-led",
}

// String implements fmt.Stringer.
func (id LineID) String() string {
	if id >= 0 && id < NumLines {
		return lineNames[id]
	}
	return fmt.Sprintf("line%d", int(id))
}

// ParseLineID parses the name of a line.
func ParseLineID(name string) (LineID, error) {
	for n, lineName := range lineNames {
		if lineName == name {
			return LineID(n), nil
		}
	}
	return -1, fmt.Errorf("unknown line %q", name)
}

// Port is a readable 8-bit input port.
type Port interface {
	ReadPort() byte
}

// Line is a writable digital output.
type Line interface {
	Set(on bool)
}

// LineFunc is the func form of Line.
type LineFunc func(bool)

// Set implements Line.
func (f LineFunc) Set(on bool) {
	f(on)
}

// Toggler inverts an output.
type Toggler interface {
	Toggle()
}

// Board provides the input port and output lines.
type Board interface {
	Port
	io.Closer
	// Line returns the output line, never nil.
	Line(id LineID) Line
}

// Indicator remembers the level of a line so several users can toggle it.
type Indicator struct {
	Line Line
	on   bool
}

// NewIndicator creates an Indicator, initially off.
func NewIndicator(line Line) *Indicator {
	ind := &Indicator{Line: line}
	line.Set(false)
	return ind
}

// Toggle implements Toggler.
func (i *Indicator) Toggle() {
	i.on = !i.on
	i.Line.Set(i.on)
}

// On returns the current level.
func (i *Indicator) On() bool {
	return i.on
}

// NopLine discards writes.
var NopLine Line = LineFunc(func(bool) {})
