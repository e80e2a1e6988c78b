// Package character owns the character entity: its wire representation and
// the assignment of a character to a connected player.
package character

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zeusync/cellsync/internal/core/components"
	"github.com/zeusync/cellsync/internal/core/ecs"
	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/internal/core/protocol"
)

// Serializer captures the present state of a character entity for remote
// clients. It only reads the registry.
type Serializer struct{}

func NewSerializer() Serializer { return Serializer{} }

// Serialize reads e's Character, Owner and CellID components. Owner and
// CellID are optional; Character is not.
func (Serializer) Serialize(r *ecs.Registry, e models.EntityID) (protocol.CharacterState, error) {
	ch, ok := ecs.Get[components.Character](r, e)
	if !ok {
		return protocol.CharacterState{}, fmt.Errorf("serialize %s: %w", e, ErrNotACharacter)
	}

	state := protocol.CharacterState{
		ServerID: e,
		BaseID:   ch.BaseID,
		Name:     ch.Name,
		Position: ch.Position,
		Rotation: ch.Rotation,
	}
	if owner, ok := ecs.Get[components.Owner](r, e); ok {
		state.OwnerID = owner.Owner
	}
	if cell, ok := ecs.Get[components.CellID](r, e); ok {
		state.CellID = cell.Cell
		state.WorldSpaceID = cell.WorldSpace
		state.Coordinates = cell.Coordinates
	}

	digest, err := Digest(state)
	if err != nil {
		return protocol.CharacterState{}, fmt.Errorf("serialize %s: %w", e, err)
	}
	state.Digest = digest
	return state, nil
}

// Digest hashes the msgpack body of state with its Digest field cleared.
func Digest(state protocol.CharacterState) (uint64, error) {
	state.Digest = 0
	body, err := msgpack.Marshal(&state)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(body), nil
}
