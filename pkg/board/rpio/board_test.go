package rpio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/relaynode/pkg/board"
)

func TestPinMapValidate(t *testing.T) {
	require.NoError(t, DefaultPinMap().Validate())

	dup := DefaultPinMap()
	dup.Lines[board.AuxD] = dup.Inputs[0]
	require.Error(t, dup.Validate())

	bad := DefaultPinMap()
	bad.Inputs[1] = 99
	require.Error(t, bad.Validate())

	sparse := DefaultPinMap()
	for i := range sparse.Lines {
		sparse.Lines[i] = Unused
	}
	require.NoError(t, sparse.Validate())
}
