package protocol

import (
	"fmt"
	"slices"

	"github.com/zeusync/cellsync/internal/core/models"
)

// Message type tags carried in the envelope.
const (
	TypeShiftGridCell      = "shift_grid_cell"
	TypeEnterExteriorCell  = "enter_exterior_cell"
	TypeEnterInteriorCell  = "enter_interior_cell"
	TypeAssignCharacter    = "assign_character"
	TypeSpawnCharacter     = "spawn_character"
	TypeAssignCharacterAck = "assign_character_response"
	TypeError              = "error"
)

// DefaultMaxNeighborhoodCells is the neighborhood limit servers start with.
// It leaves room for load grids well beyond 9x9.
const DefaultMaxNeighborhoodCells = 1024

// MaxNameLength bounds character names.
const MaxNameLength = 64

// Message is anything that travels inside an Envelope.
type Message interface {
	Type() string
}

// Validator is implemented by inbound messages.
type Validator interface {
	Validate() error
}

// ShiftGridCellRequest re-centers an exterior player. Cells is the full
// neighborhood and must contain PlayerCell.
type ShiftGridCellRequest struct {
	PlayerCell   models.CellID       `json:"player_cell" msgpack:"player_cell"`
	WorldSpaceID models.WorldSpaceID `json:"world_space_id" msgpack:"world_space_id"`
	CenterCoords models.GridCoords   `json:"center_coords" msgpack:"center_coords"`
	Cells        []models.CellID     `json:"cells" msgpack:"cells"`
}

func (*ShiftGridCellRequest) Type() string { return TypeShiftGridCell }

func (m *ShiftGridCellRequest) Validate() error {
	if m.PlayerCell == 0 {
		return fmt.Errorf("%w: player_cell is required", ErrInvalidMessage)
	}
	if m.WorldSpaceID == models.NoWorldSpace {
		return fmt.Errorf("%w: world_space_id is required for exterior cells", ErrInvalidMessage)
	}
	if len(m.Cells) == 0 {
		return fmt.Errorf("%w: cells must not be empty", ErrInvalidMessage)
	}
	if !slices.Contains(m.Cells, m.PlayerCell) {
		return fmt.Errorf("%w: cells must contain player_cell", ErrInvalidMessage)
	}
	return nil
}

// EnterExteriorCellRequest is a discrete entry into a worldspace.
type EnterExteriorCellRequest struct {
	CellID        models.CellID       `json:"cell_id" msgpack:"cell_id"`
	WorldSpaceID  models.WorldSpaceID `json:"world_space_id" msgpack:"world_space_id"`
	CurrentCoords models.GridCoords   `json:"current_coords" msgpack:"current_coords"`
}

func (*EnterExteriorCellRequest) Type() string { return TypeEnterExteriorCell }

func (m *EnterExteriorCellRequest) Validate() error {
	if m.CellID == 0 {
		return fmt.Errorf("%w: cell_id is required", ErrInvalidMessage)
	}
	if m.WorldSpaceID == models.NoWorldSpace {
		return fmt.Errorf("%w: world_space_id is required for exterior cells", ErrInvalidMessage)
	}
	return nil
}

// EnterInteriorCellRequest is a discrete entry into a bounded interior.
type EnterInteriorCellRequest struct {
	CellID models.CellID `json:"cell_id" msgpack:"cell_id"`
}

func (*EnterInteriorCellRequest) Type() string { return TypeEnterInteriorCell }

func (m *EnterInteriorCellRequest) Validate() error {
	if m.CellID == 0 {
		return fmt.Errorf("%w: cell_id is required", ErrInvalidMessage)
	}
	return nil
}

// AssignCharacterRequest announces the character a client controls.
type AssignCharacterRequest struct {
	BaseID   uint32         `json:"base_id" msgpack:"base_id"`
	Name     string         `json:"name" msgpack:"name"`
	Position models.Vector3 `json:"position" msgpack:"position"`
	Rotation models.Vector3 `json:"rotation" msgpack:"rotation"`
}

func (*AssignCharacterRequest) Type() string { return TypeAssignCharacter }

func (m *AssignCharacterRequest) Validate() error {
	if len(m.Name) > MaxNameLength {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidMessage, MaxNameLength)
	}
	return nil
}

// CharacterState is the serialized present state of a character as sent to
// remote clients.
type CharacterState struct {
	ServerID     models.EntityID     `json:"server_id" msgpack:"server_id"`
	OwnerID      models.EntityID     `json:"owner_id" msgpack:"owner_id"`
	CellID       models.CellID       `json:"cell_id" msgpack:"cell_id"`
	WorldSpaceID models.WorldSpaceID `json:"world_space_id" msgpack:"world_space_id"`
	Coordinates  models.GridCoords   `json:"coordinates" msgpack:"coordinates"`
	BaseID       uint32              `json:"base_id" msgpack:"base_id"`
	Name         string              `json:"name" msgpack:"name"`
	Position     models.Vector3      `json:"position" msgpack:"position"`
	Rotation     models.Vector3      `json:"rotation" msgpack:"rotation"`
	// Digest hashes every other field. Clients use it to drop re-sends of an
	// unchanged character.
	Digest uint64 `json:"digest" msgpack:"digest"`
}

// SpawnCharacter tells one client to materialize a remote character.
type SpawnCharacter struct {
	State CharacterState `json:"state" msgpack:"state"`
}

func (*SpawnCharacter) Type() string { return TypeSpawnCharacter }

type AssignCharacterResponse struct {
	ServerID models.EntityID `json:"server_id" msgpack:"server_id"`
}

func (*AssignCharacterResponse) Type() string { return TypeAssignCharacterAck }

// ErrorNotice reports a rejected request back to its sender.
type ErrorNotice struct {
	RequestType string `json:"request_type,omitempty" msgpack:"request_type,omitempty"`
	Reason      string `json:"reason" msgpack:"reason"`
}

func (*ErrorNotice) Type() string { return TypeError }

// newMessage returns a zero value for a registered type tag.
func newMessage(typ string) (Message, bool) {
	switch typ {
	case TypeShiftGridCell:
		return &ShiftGridCellRequest{}, true
	case TypeEnterExteriorCell:
		return &EnterExteriorCellRequest{}, true
	case TypeEnterInteriorCell:
		return &EnterInteriorCellRequest{}, true
	case TypeAssignCharacter:
		return &AssignCharacterRequest{}, true
	case TypeSpawnCharacter:
		return &SpawnCharacter{}, true
	case TypeAssignCharacterAck:
		return &AssignCharacterResponse{}, true
	case TypeError:
		return &ErrorNotice{}, true
	default:
		return nil, false
	}
}
