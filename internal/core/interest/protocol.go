package interest

import (
	"github.com/zeusync/cellsync/internal/core/components"
	"github.com/zeusync/cellsync/internal/core/ecs"
	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
)

// Sender delivers one message to one connection. Implementations enqueue and
// return; delivery is not confirmed.
type Sender interface {
	Send(conn models.ConnectionID, msg protocol.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(conn models.ConnectionID, msg protocol.Message) error

func (f SenderFunc) Send(conn models.ConnectionID, msg protocol.Message) error { return f(conn, msg) }

// CharacterSerializer captures a character for the wire.
type CharacterSerializer interface {
	Serialize(r *ecs.Registry, e models.EntityID) (protocol.CharacterState, error)
}

// Protocol is the ownership-sync step run after a player's cell changes.
type Protocol struct {
	registry   *ecs.Registry
	stores     components.Stores
	serializer CharacterSerializer
	sender     Sender
	logger     log.Log
}

func NewProtocol(registry *ecs.Registry, serializer CharacterSerializer, sender Sender, logger log.Log) *Protocol {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Protocol{
		registry:   registry,
		stores:     components.Bind(registry),
		serializer: serializer,
		sender:     sender,
		logger:     logger.With(log.String("component", "interest")),
	}
}

// Sync sends conn a SpawnCharacter for every owned character located in set,
// except the player's own. It returns the number of directives sent.
func (p *Protocol) Sync(player models.EntityID, conn models.ConnectionID, set Set) int {
	if set.Len() == 0 {
		return 0
	}

	sent := 0
	query := p.registry.Query(p.stores.Cells, p.stores.Characters, p.stores.Owners)
	for e := range query.Iter().Seq() {
		owner, ok := p.stores.Owners.Get(e)
		if !ok || owner.Owner == player {
			continue
		}
		cell, ok := p.stores.Cells.Get(e)
		if !ok || !set.Contains(cell.Cell) {
			continue
		}

		state, err := p.serializer.Serialize(p.registry, e)
		if err != nil {
			p.logger.Warn("Failed to serialize character",
				log.Uint64("character", uint64(e)), log.Error(err))
			continue
		}
		if err = p.sender.Send(conn, &protocol.SpawnCharacter{State: state}); err != nil {
			p.logger.Warn("Failed to send spawn directive",
				log.Hex("connection_id", uint64(conn)),
				log.Uint64("character", uint64(e)),
				log.Error(err))
			continue
		}
		sent++
	}

	if sent > 0 {
		p.logger.Debug("Spawned characters",
			log.Uint64("player", uint64(player)),
			log.Int("count", sent))
	}
	return sent
}
