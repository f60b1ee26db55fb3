package tick

import "sync/atomic"

// DefaultTicksPerSecond matches a 10ms timer interrupt.
const DefaultTicksPerSecond = 100

// Counter is a Source advanced by explicit Update calls, the way a
// timer overflow interrupt advances the counters on a board. Update
// may be called from another goroutine than the readers.
//
// Both counters are derived from one 64-bit tick count, so the seconds
// counter wraps cleanly at 65536 and never jumps back.
type Counter struct {
	// ticks is first for 64-bit alignment of atomics on 32-bit ARM.
	ticks          uint64
	ticksPerSecond uint64
}

// NewCounter creates a Counter. ticksPerSecond <= 0 selects DefaultTicksPerSecond.
func NewCounter(ticksPerSecond int) *Counter {
	if ticksPerSecond <= 0 {
		ticksPerSecond = DefaultTicksPerSecond
	}
	return &Counter{ticksPerSecond: uint64(ticksPerSecond)}
}

// TicksPerSecond returns the short ticks in one second.
func (c *Counter) TicksPerSecond() int {
	return int(c.ticksPerSecond)
}

// Update advances the counter by one short tick.
func (c *Counter) Update() {
	atomic.AddUint64(&c.ticks, 1)
}

// Advance advances the counter by n short ticks.
func (c *Counter) Advance(n int) {
	atomic.AddUint64(&c.ticks, uint64(n))
}

// AdvanceSeconds advances the counter by n whole seconds.
func (c *Counter) AdvanceSeconds(n int) {
	atomic.AddUint64(&c.ticks, uint64(n)*c.ticksPerSecond)
}

// Ticks returns the full-width tick count.
func (c *Counter) Ticks() uint64 {
	return atomic.LoadUint64(&c.ticks)
}

// NowShort implements Source.
func (c *Counter) NowShort() uint8 {
	return uint8(c.Ticks())
}

// ElapsedShort implements Source.
func (c *Counter) ElapsedShort(since uint8) uint8 {
	return c.NowShort() - since
}

// NowSeconds implements Source.
func (c *Counter) NowSeconds() uint16 {
	return uint16(c.Ticks() / c.ticksPerSecond)
}

// ElapsedSeconds implements Source.
func (c *Counter) ElapsedSeconds(since uint16) uint16 {
	return c.NowSeconds() - since
}
