package models

import "fmt"

// EntityID identifies an entity in the component registry. An entity has no
// fields of its own; it exists while at least one component references it.
type EntityID uint64

// NilEntity is never allocated. It stands for "no entity" in component
// fields such as Owner or Player.Character.
const NilEntity EntityID = 0

func (e EntityID) IsNil() bool { return e == NilEntity }

func (e EntityID) String() string { return fmt.Sprintf("entity(%d)", uint64(e)) }

// ConnectionID is the opaque transport session identifier.
type ConnectionID uint64

func (c ConnectionID) String() string { return fmt.Sprintf("%#x", uint64(c)) }

// CellID identifies either an interior cell or one square of an exterior grid.
type CellID uint32

// WorldSpaceID scopes exterior cells. Interior cells carry NoWorldSpace.
type WorldSpaceID uint32

const NoWorldSpace WorldSpaceID = 0

// GridCoords are exterior grid coordinates used for adjacency.
type GridCoords struct {
	X int32 `json:"x" msgpack:"x"`
	Y int32 `json:"y" msgpack:"y"`
}

func (g GridCoords) String() string { return fmt.Sprintf("(%d,%d)", g.X, g.Y) }

// Vector3 is a position or rotation in world units.
type Vector3 struct {
	X float32 `json:"x" msgpack:"x"`
	Y float32 `json:"y" msgpack:"y"`
	Z float32 `json:"z" msgpack:"z"`
}
