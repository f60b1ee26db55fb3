package tick

import (
	"context"
	"time"
)

// Ticker drives a Counter from wall-clock time.
type Ticker struct {
	Counter *Counter
}

// NewTicker creates a Ticker with a new Counter.
func NewTicker(ticksPerSecond int) *Ticker {
	return &Ticker{Counter: NewCounter(ticksPerSecond)}
}

// Interval is the wall-clock duration of one short tick, at least 1ns.
func (t *Ticker) Interval() time.Duration {
	if d := time.Second / time.Duration(t.Counter.TicksPerSecond()); d > 0 {
		return d
	}
	return time.Nanosecond
}

// Name implements Named.
func (t *Ticker) Name() string {
	return "tick"
}

// Run implements Runnable.
func (t *Ticker) Run(ctx context.Context) error {
	tk := time.NewTicker(t.Interval())
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
			t.Counter.Update()
		}
	}
}
