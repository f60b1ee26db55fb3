// Package rpio drives the node on Raspberry Pi GPIO.
package rpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/robotalks/relaynode/pkg/board"
)

// Unused marks a bit or line without a pin.
const Unused = -1

// PinMap assigns BCM pin numbers to input bits and output lines.
type PinMap struct {
	// Inputs maps each bit of the input port to a pin.
	Inputs [8]int `yaml:"inputs"`
	// Lines maps each output line to a pin.
	Lines [board.NumLines]int `yaml:"lines"`
	// PullUp enables pull-up on input pins.
	PullUp bool `yaml:"pull-up"`
}

// DefaultPinMap wires the three active-low inputs on bits 0, 2 and 4.
func DefaultPinMap() PinMap {
	return PinMap{
		Inputs: [8]int{17, Unused, 27, Unused, 22, Unused, Unused, Unused},
		Lines: [board.NumLines]int{
			board.Relay1:    5,
			board.Relay2:    6,
			board.Relay3:    13,
			board.AuxD:      19,
			board.AuxE:      26,
			board.AuxF:      21,
			board.StatusLED: 20,
		},
		PullUp: true,
	}
}

// Validate checks pins are unique.
func (m PinMap) Validate() error {
	used := make(map[int]string)
	check := func(pin int, name string) error {
		if pin == Unused {
			return nil
		}
		if pin < 0 || pin > 53 {
			return fmt.Errorf("%s: invalid pin %d", name, pin)
		}
		if other, ok := used[pin]; ok {
			return fmt.Errorf("%s: pin %d already used by %s", name, pin, other)
		}
		used[pin] = name
		return nil
	}
	for bit, pin := range m.Inputs {
		if err := check(pin, fmt.Sprintf("input%d", bit)); err != nil {
			return err
		}
	}
	for id, pin := range m.Lines {
		if err := check(pin, board.LineID(id).String()); err != nil {
			return err
		}
	}
	return nil
}

// Board is a board.Board on GPIO memory.
type Board struct {
	pins PinMap
	lock sync.Mutex
}

// Open maps GPIO memory and configures pins.
func Open(pins PinMap) (*Board, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	for _, p := range pins.Inputs {
		if p == Unused {
			continue
		}
		pin := rpio.Pin(p)
		pin.Input()
		if pins.PullUp {
			pin.PullUp()
		}
	}
	for _, p := range pins.Lines {
		if p == Unused {
			continue
		}
		pin := rpio.Pin(p)
		pin.Output()
		pin.Low()
	}
	return &Board{pins: pins}, nil
}

// ReadPort implements board.Port. Bits without a pin read high,
// which is the released level of an active-low input.
func (b *Board) ReadPort() byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	var v byte
	for bit, p := range b.pins.Inputs {
		if p == Unused || rpio.Pin(p).Read() == rpio.High {
			v |= 1 << uint(bit)
		}
	}
	return v
}

// Line implements board.Board.
func (b *Board) Line(id board.LineID) board.Line {
	if id < 0 || id >= board.NumLines || b.pins.Lines[id] == Unused {
		return board.NopLine
	}
	pin := rpio.Pin(b.pins.Lines[id])
	return board.LineFunc(func(on bool) {
		b.lock.Lock()
		defer b.lock.Unlock()
		if on {
			pin.High()
		} else {
			pin.Low()
		}
	})
}

// Close releases all outputs and unmaps GPIO memory.
func (b *Board) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, p := range b.pins.Lines {
		if p != Unused {
			rpio.Pin(p).Low()
		}
	}
	return rpio.Close()
}
