// Package events defines the cell-membership lifecycle events published on
// the bus. Subscribers (despawn broadcasting, auditing) live outside the
// cell transition logic.
package events

import (
	"time"

	"github.com/zeusync/cellsync/internal/core/events/bus"
	"github.com/zeusync/cellsync/internal/core/models"
)

const (
	TypePlayerLeaveCell             = "player.leave_cell"
	TypeCharacterExteriorCellChange = "character.exterior_cell_change"
	TypeCharacterInteriorCellChange = "character.interior_cell_change"
	TypePlayerJoined                = "player.joined"
	TypePlayerLeft                  = "player.left"
	TypeCharacterAssigned           = "character.assigned"
)

// Source tags events emitted by the server core.
const Source = "cellsync"

// header carries the fields shared by every lifecycle event.
type header struct {
	At time.Time `json:"at"`
}

func (h header) Source() string       { return Source }
func (h header) Timestamp() time.Time { return h.At }

func stamp() header { return header{At: time.Now()} }

// PlayerLeaveCell is published with the player's previous cell before it is
// overwritten.
type PlayerLeaveCell struct {
	header
	Player models.EntityID `json:"player"`
	Cell   models.CellID   `json:"cell"`
}

func NewPlayerLeaveCell(player models.EntityID, cell models.CellID) PlayerLeaveCell {
	return PlayerLeaveCell{header: stamp(), Player: player, Cell: cell}
}

func (PlayerLeaveCell) Type() string { return TypePlayerLeaveCell }

// CharacterExteriorCellChange signals that an already placed player moved its
// character into an exterior cell.
type CharacterExteriorCellChange struct {
	header
	Player      models.EntityID     `json:"player"`
	Character   models.EntityID     `json:"character"`
	WorldSpace  models.WorldSpaceID `json:"world_space"`
	Coordinates models.GridCoords   `json:"coordinates"`
}

func NewCharacterExteriorCellChange(player, character models.EntityID, ws models.WorldSpaceID, coords models.GridCoords) CharacterExteriorCellChange {
	return CharacterExteriorCellChange{header: stamp(), Player: player, Character: character, WorldSpace: ws, Coordinates: coords}
}

func (CharacterExteriorCellChange) Type() string { return TypeCharacterExteriorCellChange }

// CharacterInteriorCellChange signals that a placed character entered an
// interior cell.
type CharacterInteriorCellChange struct {
	header
	Player    models.EntityID `json:"player"`
	Character models.EntityID `json:"character"`
	Cell      models.CellID   `json:"cell"`
}

func NewCharacterInteriorCellChange(player, character models.EntityID, cell models.CellID) CharacterInteriorCellChange {
	return CharacterInteriorCellChange{header: stamp(), Player: player, Character: character, Cell: cell}
}

func (CharacterInteriorCellChange) Type() string { return TypeCharacterInteriorCellChange }

type PlayerJoined struct {
	header
	Player     models.EntityID     `json:"player"`
	Connection models.ConnectionID `json:"connection"`
}

func NewPlayerJoined(player models.EntityID, conn models.ConnectionID) PlayerJoined {
	return PlayerJoined{header: stamp(), Player: player, Connection: conn}
}

func (PlayerJoined) Type() string { return TypePlayerJoined }

// PlayerLeft is published after the player's entity and owned characters
// have been destroyed.
type PlayerLeft struct {
	header
	Player     models.EntityID     `json:"player"`
	Connection models.ConnectionID `json:"connection"`
	Despawned  []models.EntityID   `json:"despawned,omitempty"`
}

func NewPlayerLeft(player models.EntityID, conn models.ConnectionID, despawned []models.EntityID) PlayerLeft {
	return PlayerLeft{header: stamp(), Player: player, Connection: conn, Despawned: despawned}
}

func (PlayerLeft) Type() string { return TypePlayerLeft }

type CharacterAssigned struct {
	header
	Player    models.EntityID `json:"player"`
	Character models.EntityID `json:"character"`
	Replaced  models.EntityID `json:"replaced,omitempty"`
}

func NewCharacterAssigned(player, character, replaced models.EntityID) CharacterAssigned {
	return CharacterAssigned{header: stamp(), Player: player, Character: character, Replaced: replaced}
}

func (CharacterAssigned) Type() string { return TypeCharacterAssigned }

var (
	_ bus.Event = PlayerLeaveCell{}
	_ bus.Event = CharacterExteriorCellChange{}
	_ bus.Event = CharacterInteriorCellChange{}
	_ bus.Event = PlayerJoined{}
	_ bus.Event = PlayerLeft{}
	_ bus.Event = CharacterAssigned{}
)

// All lists every lifecycle event type, for subscribers that want the full
// stream.
func All() []string {
	return []string{
		TypePlayerLeaveCell,
		TypeCharacterExteriorCellChange,
		TypeCharacterInteriorCellChange,
		TypePlayerJoined,
		TypePlayerLeft,
		TypeCharacterAssigned,
	}
}
