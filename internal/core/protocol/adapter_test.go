package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/cellsync/internal/core/models"
)

func encode(t *testing.T, msg Message) []byte {
	t.Helper()
	raw, err := MsgpackCodec{}.Encode(msg)
	require.NoError(t, err)
	return raw
}

func TestAdapterDecodesValidCommand(t *testing.T) {
	a := NewAdapter(nil, 0)
	cmd, err := a.Decode(0xbeef, encode(t, &EnterInteriorCellRequest{CellID: 12}))
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionID(0xbeef), cmd.Connection)
	assert.Equal(t, &EnterInteriorCellRequest{CellID: 12}, cmd.Message)
}

func TestAdapterRejectsInvalidRequests(t *testing.T) {
	a := NewAdapter(MsgpackCodec{}, 0)
	cases := map[string]Message{
		"shift without cell":       &ShiftGridCellRequest{WorldSpaceID: 1, Cells: []models.CellID{1}},
		"shift without worldspace": &ShiftGridCellRequest{PlayerCell: 1, Cells: []models.CellID{1}},
		"shift empty":              &ShiftGridCellRequest{PlayerCell: 1, WorldSpaceID: 1},
		"shift missing own cell":   &ShiftGridCellRequest{PlayerCell: 1, WorldSpaceID: 1, Cells: []models.CellID{2, 3}},
		"exterior without ws":      &EnterExteriorCellRequest{CellID: 5},
		"interior without cell":    &EnterInteriorCellRequest{},
		"name too long":            &AssignCharacterRequest{Name: strings.Repeat("n", MaxNameLength+1)},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Decode(1, encode(t, msg))
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}
}

func neighborhood(n int) []models.CellID {
	cells := make([]models.CellID, n)
	for i := range cells {
		cells[i] = models.CellID(i + 1)
	}
	return cells
}

func TestAdapterNeighborhoodLimit(t *testing.T) {
	// 9x9 load grid
	grid := encode(t, &ShiftGridCellRequest{PlayerCell: 1, WorldSpaceID: 1, Cells: neighborhood(81)})

	_, err := NewAdapter(nil, 0).WithNeighborhoodLimit(DefaultMaxNeighborhoodCells).Decode(1, grid)
	assert.NoError(t, err)

	_, err = NewAdapter(nil, 0).Decode(1, grid)
	assert.NoError(t, err, "no limit unless configured")

	_, err = NewAdapter(nil, 0).WithNeighborhoodLimit(80).Decode(1, grid)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestAdapterRejectsServerMessages(t *testing.T) {
	_, err := NewAdapter(nil, 0).Decode(1, encode(t, &SpawnCharacter{}))
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestAdapterEnforcesMaxSize(t *testing.T) {
	raw := encode(t, &AssignCharacterRequest{Name: "Lydia"})
	_, err := NewAdapter(nil, len(raw)-1).Decode(1, raw)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	_, err = NewAdapter(nil, len(raw)).Decode(1, raw)
	assert.NoError(t, err)
}
