// Package sim provides a simulated board whose input port is driven
// by a script.
package sim

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/relaynode/pkg/board"
)

// IdlePort is the raw port value with all active-low inputs released.
const IdlePort byte = 0xff

// Board is an in-memory board.Board.
type Board struct {
	lock   sync.RWMutex
	port   byte
	levels [board.NumLines]bool
	writes int
	closed bool
}

// New creates a Board with the initial raw port value.
func New(port byte) *Board {
	return &Board{port: port}
}

// SetPort changes the raw input port value.
func (b *Board) SetPort(v byte) {
	b.lock.Lock()
	b.port = v
	b.lock.Unlock()
}

// ReadPort implements board.Port.
func (b *Board) ReadPort() byte {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.port
}

// Line implements board.Board.
func (b *Board) Line(id board.LineID) board.Line {
	if id < 0 || id >= board.NumLines {
		return board.NopLine
	}
	return board.LineFunc(func(on bool) {
		b.lock.Lock()
		changed := b.levels[id] != on
		b.levels[id] = on
		b.writes++
		b.lock.Unlock()
		if changed {
			glog.V(4).Infof("%s -> %v", id, on)
		}
	})
}

// Level returns the level last written to the line.
func (b *Board) Level(id board.LineID) bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.levels[id]
}

// Levels returns the levels of all lines.
func (b *Board) Levels() [board.NumLines]bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.levels
}

// Writes returns the number of line writes.
func (b *Board) Writes() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.writes
}

// Closed indicates Close was called.
func (b *Board) Closed() bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.closed
}

// Close implements io.Closer.
func (b *Board) Close() error {
	b.lock.Lock()
	b.closed = true
	b.lock.Unlock()
	return nil
}
