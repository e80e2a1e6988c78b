package protocol

import (
	"fmt"

	"github.com/zeusync/cellsync/internal/core/models"
)

// Command is a decoded, validated inbound request paired with the
// connection it arrived on.
type Command struct {
	Connection models.ConnectionID
	Message    Message
}

// Adapter is the boundary between raw transport frames and typed commands.
type Adapter struct {
	codec    Codec
	maxSize  int
	maxCells int
}

// NewAdapter builds an adapter. maxSize <= 0 disables the size check.
func NewAdapter(codec Codec, maxSize int) *Adapter {
	if codec == nil {
		codec = MsgpackCodec{}
	}
	return &Adapter{codec: codec, maxSize: maxSize}
}

// WithNeighborhoodLimit caps the cell list of a grid shift. n <= 0 removes
// the cap.
func (a *Adapter) WithNeighborhoodLimit(n int) *Adapter {
	a.maxCells = n
	return a
}

func (a *Adapter) Codec() Codec { return a.codec }

// Decode turns one frame from conn into a command. Only client-to-server
// message types are accepted.
func (a *Adapter) Decode(conn models.ConnectionID, raw []byte) (Command, error) {
	if a.maxSize > 0 && len(raw) > a.maxSize {
		return Command{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrMessageTooLarge, len(raw), a.maxSize)
	}
	msg, err := a.codec.Decode(raw)
	if err != nil {
		return Command{}, err
	}
	if !isInbound(msg.Type()) {
		return Command{}, fmt.Errorf("%w: %q is not a client request", ErrUnknownMessageType, msg.Type())
	}
	if v, ok := msg.(Validator); ok {
		if err = v.Validate(); err != nil {
			return Command{}, err
		}
	}
	if shift, ok := msg.(*ShiftGridCellRequest); ok && a.maxCells > 0 && len(shift.Cells) > a.maxCells {
		return Command{}, fmt.Errorf("%w: %d cells exceeds limit %d", ErrInvalidMessage, len(shift.Cells), a.maxCells)
	}
	return Command{Connection: conn, Message: msg}, nil
}

// Encode frames an outbound message.
func (a *Adapter) Encode(msg Message) ([]byte, error) {
	return a.codec.Encode(msg)
}

func isInbound(typ string) bool {
	switch typ {
	case TypeShiftGridCell, TypeEnterExteriorCell, TypeEnterInteriorCell, TypeAssignCharacter:
		return true
	default:
		return false
	}
}
