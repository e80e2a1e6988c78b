package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/cellsync/internal/core/models"
)

func TestDispatcherRoutesByType(t *testing.T) {
	d := NewDispatcher()
	var got *EnterInteriorCellRequest
	var from models.ConnectionID
	require.NoError(t, Handle(d, func(conn models.ConnectionID, msg *EnterInteriorCellRequest) {
		from, got = conn, msg
	}))

	req := &EnterInteriorCellRequest{CellID: 3}
	require.NoError(t, d.Dispatch(Command{Connection: 9, Message: req}))
	assert.Same(t, req, got)
	assert.Equal(t, models.ConnectionID(9), from)
}

func TestDispatcherErrors(t *testing.T) {
	d := NewDispatcher()
	noop := func(models.ConnectionID, *EnterInteriorCellRequest) {}
	require.NoError(t, Handle(d, noop))
	assert.ErrorIs(t, Handle(d, noop), ErrAlreadyRegistered)

	err := d.Dispatch(Command{Connection: 1, Message: &EnterExteriorCellRequest{}})
	assert.ErrorIs(t, err, ErrNoHandler)
}
