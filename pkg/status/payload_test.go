package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadBytes(t *testing.T) {
	p := Payload{State: 0x04, Inputs: 0x15}
	require.Equal(t, []byte{'H', 'E', 'L', 'L', 'O', 0x04, 0x15}, p.Bytes())
	require.Len(t, p.Bytes(), PayloadSize)
	require.Equal(t, "state=0x04 inputs=0x15", p.String())
}

func TestParse(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		expect Payload
		err    error
	}{
		{"ok", []byte("HELLO\x10\x11"), Payload{State: 0x10, Inputs: 0x11}, nil},
		{"trailing", []byte("HELLO\x01\x01xyz"), Payload{State: 0x01, Inputs: 0x01}, nil},
		{"short", []byte("HELLO\x01"), Payload{}, ErrShortPayload},
		{"empty", nil, Payload{}, ErrShortPayload},
		{"tag", []byte("HELLX\x01\x01"), Payload{}, ErrBadTag},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(tc.data)
			require.Equal(t, tc.err, err)
			require.Equal(t, tc.expect, p)
		})
	}
}
