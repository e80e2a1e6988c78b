// Package components declares the component records the interest protocol
// reads and writes.
package components

import "github.com/zeusync/cellsync/internal/core/models"

// Player marks an entity as the avatar of a live connection. ConnectionID is
// unique across all Player components.
type Player struct {
	ConnectionID models.ConnectionID
	Username     string
	// Character is the player's own character entity, NilEntity until one
	// has been assigned.
	Character models.EntityID
}

func (p Player) HasCharacter() bool { return !p.Character.IsNil() }

// Character marks an entity as a simulated actor that can be spawned for
// remote clients.
type Character struct {
	BaseID   uint32
	Name     string
	Position models.Vector3
	Rotation models.Vector3
}

// CellID is the entity's current spatial location.
type CellID struct {
	Cell        models.CellID
	WorldSpace  models.WorldSpaceID
	Coordinates models.GridCoords
}

// IsExterior reports whether the cell belongs to a worldspace grid.
func (c CellID) IsExterior() bool { return c.WorldSpace != models.NoWorldSpace }

// Exterior builds the location of an exterior grid cell.
func Exterior(cell models.CellID, worldSpace models.WorldSpaceID, coords models.GridCoords) CellID {
	return CellID{Cell: cell, WorldSpace: worldSpace, Coordinates: coords}
}

// Interior builds the location of a self-contained interior cell.
func Interior(cell models.CellID) CellID {
	return CellID{Cell: cell}
}

// Owner names the player entity that controls a character. NilEntity means
// the character is server owned.
type Owner struct {
	Owner models.EntityID
}

func (o Owner) IsOwnedBy(player models.EntityID) bool {
	return !o.Owner.IsNil() && o.Owner == player
}
