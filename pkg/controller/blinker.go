package controller

import (
	"github.com/robotalks/relaynode/pkg/board"
	"github.com/robotalks/relaynode/pkg/tick"
)

// DefaultBlinkInterval is the seconds between heartbeat toggles.
const DefaultBlinkInterval uint16 = 1

// Blinker toggles an indicator periodically as a heartbeat.
type Blinker struct {
	Clock     tick.Source
	Indicator board.Toggler
	Interval  uint16

	lastAt uint16
}

// NewBlinker creates a Blinker with DefaultBlinkInterval.
func NewBlinker(clock tick.Source, ind board.Toggler) *Blinker {
	return &Blinker{Clock: clock, Indicator: ind, Interval: DefaultBlinkInterval, lastAt: clock.NowSeconds()}
}

// Service toggles the indicator when the interval elapsed.
func (b *Blinker) Service() bool {
	interval := b.Interval
	if interval == 0 {
		interval = DefaultBlinkInterval
	}
	if b.Clock.ElapsedSeconds(b.lastAt) < interval {
		return false
	}
	b.lastAt = b.Clock.NowSeconds()
	b.Indicator.Toggle()
	return true
}
