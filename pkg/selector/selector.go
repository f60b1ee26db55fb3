// Package selector reduces the input port to one exclusive state.
package selector

import (
	"errors"
	"fmt"
	"sort"
)

// ActiveLowMask selects the input bits which are active-low.
const ActiveLowMask byte = 0x15

// Candidate states
const (
	Bit0 byte = 0x01
	Bit2 byte = 0x04
	Bit4 byte = 0x10
)

// ErrBadCandidate indicates an invalid candidate list.
var ErrBadCandidate = errors.New("invalid candidate")

// Candidate is an input bit eligible to become the exclusive state.
// Lower Priority wins.
type Candidate struct {
	Mask     byte
	Priority int
}

// DefaultCandidates are scanned as bit 2, bit 0, then bit 4.
var DefaultCandidates = []Candidate{
	{Mask: Bit2, Priority: 1},
	{Mask: Bit0, Priority: 2},
	{Mask: Bit4, Priority: 3},
}

// Normalize inverts the active-low bits of the raw port so 1 is active.
// Other bits are dropped.
func Normalize(raw byte) byte {
	return (raw & ActiveLowMask) ^ ActiveLowMask
}

// Selector keeps the exclusive state across samples.
// The zero value is not usable, use New or Default.
type Selector struct {
	candidates []Candidate
	all        byte

	state byte
	bits  byte
}

// New creates a Selector scanning the candidates in priority order.
// Every mask must be a single distinct bit.
func New(candidates ...Candidate) (*Selector, error) {
	s := &Selector{candidates: make([]Candidate, len(candidates))}
	copy(s.candidates, candidates)
	for _, c := range s.candidates {
		if c.Mask == 0 || c.Mask&(c.Mask-1) != 0 {
			return nil, fmt.Errorf("%w: mask 0x%02x is not a single bit", ErrBadCandidate, c.Mask)
		}
		if s.all&c.Mask != 0 {
			return nil, fmt.Errorf("%w: duplicated mask 0x%02x", ErrBadCandidate, c.Mask)
		}
		s.all |= c.Mask
	}
	sort.SliceStable(s.candidates, func(i, j int) bool {
		return s.candidates[i].Priority < s.candidates[j].Priority
	})
	return s, nil
}

// Default creates a Selector with DefaultCandidates.
func Default() *Selector {
	s, err := New(DefaultCandidates...)
	if err != nil {
		panic(err)
	}
	return s
}

// Decide returns the highest priority candidate set in bits, or 0.
func (s *Selector) Decide(bits byte) byte {
	for _, c := range s.candidates {
		if bits&c.Mask != 0 {
			return c.Mask
		}
	}
	return 0
}

// Select updates the state from normalized input bits and returns it.
// An active state is kept as long as its own bit stays asserted.
func (s *Selector) Select(bits byte) byte {
	next := s.state
	switch {
	case s.state == 0 && s.bits == 0 && bits != 0:
		next = s.Decide(bits)
	case s.state&bits == 0:
		next = s.Decide(bits)
	}
	s.state, s.bits = next, bits
	return next
}

// State returns the current exclusive state.
func (s *Selector) State() byte {
	return s.state
}

// Bits returns the input bits of the last Select.
func (s *Selector) Bits() byte {
	return s.bits
}

// Candidates returns the candidates in priority order.
func (s *Selector) Candidates() []Candidate {
	return append([]Candidate(nil), s.candidates...)
}

// Reset returns to idle.
func (s *Selector) Reset() {
	s.state, s.bits = 0, 0
}
