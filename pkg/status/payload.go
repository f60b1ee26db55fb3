// Package status implements the status datagram sent to the peer.
package status

import (
	"bytes"
	"errors"
	"fmt"
)

// PayloadSize is the encoded size of Payload.
const PayloadSize = len(Tag) + 2

// Tag is the literal prefix of every status datagram.
var Tag = [5]byte{'H', 'E', 'L', 'L', 'O'}

var (
	// ErrShortPayload indicates the datagram is smaller than PayloadSize.
	ErrShortPayload = errors.New("status payload too short")
	// ErrBadTag indicates the datagram does not start with Tag.
	ErrBadTag = errors.New("status payload tag mismatch")
)

// Payload is the content of a status datagram.
type Payload struct {
	// State is the exclusive state selected from inputs.
	State byte
	// Inputs is the normalized input bits, 1 is active.
	Inputs byte
}

// Bytes encodes the payload.
func (p Payload) Bytes() []byte {
	b := make([]byte, 0, PayloadSize)
	b = append(b, Tag[:]...)
	return append(b, p.State, p.Inputs)
}

// String implements fmt.Stringer.
func (p Payload) String() string {
	return fmt.Sprintf("state=0x%02x inputs=0x%02x", p.State, p.Inputs)
}

// Parse decodes a status datagram. Trailing bytes are ignored.
func Parse(data []byte) (p Payload, err error) {
	if len(data) < PayloadSize {
		return p, ErrShortPayload
	}
	if !bytes.Equal(data[:len(Tag)], Tag[:]) {
		return p, ErrBadTag
	}
	p.State, p.Inputs = data[len(Tag)], data[len(Tag)+1]
	return p, nil
}
