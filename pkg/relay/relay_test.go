package relay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/relaynode/pkg/board"
	"github.com/robotalks/relaynode/pkg/board/sim"
)

func TestTableLevels(t *testing.T) {
	testCases := []struct {
		name  string
		state byte
		on    []board.LineID
		ok    bool
	}{
		{"idle", 0x00, nil, true},
		{"bit0", 0x01, []board.LineID{board.Relay1, board.AuxF}, true},
		{"bit2", 0x04, []board.LineID{board.Relay2, board.AuxE}, true},
		{"bit4", 0x10, []board.LineID{board.Relay3}, true},
		{"combined", 0x05, nil, false},
		{"unknown", 0x02, nil, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, ok := DefaultTable.Levels(tc.state)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.on, l.On())
			require.False(t, l[board.AuxD])
		})
	}
}

func TestDriver(t *testing.T) {
	b := sim.New(sim.IdlePort)
	d := NewDriver(b)

	d.Drive(0x04)
	levels := b.Levels()
	require.True(t, levels[board.Relay2])
	require.True(t, levels[board.AuxE])
	require.False(t, levels[board.Relay1])
	require.False(t, levels[board.AuxF])

	d.Drive(0x01)
	require.Equal(t, []board.LineID{board.Relay1, board.AuxF}, Levels(b.Levels()).On())

	d.Drive(0x77)
	require.Empty(t, Levels(b.Levels()).On())
	require.Equal(t, Levels{}, d.Last())
	require.Equal(t, 3*len(Driven), b.Writes())
}

func TestDriverLeavesStatusLED(t *testing.T) {
	b := sim.New(sim.IdlePort)
	b.Line(board.StatusLED).Set(true)
	d := &Driver{Board: b}
	d.Drive(0x10)
	require.True(t, b.Level(board.StatusLED))
	require.True(t, b.Level(board.Relay3))
}
