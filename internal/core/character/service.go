package character

import (
	"github.com/zeusync/cellsync/internal/core/components"
	"github.com/zeusync/cellsync/internal/core/ecs"
	"github.com/zeusync/cellsync/internal/core/events"
	"github.com/zeusync/cellsync/internal/core/events/bus"
	"github.com/zeusync/cellsync/internal/core/interest"
	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
	"github.com/zeusync/cellsync/internal/core/session"
)

type Deps struct {
	Registry *ecs.Registry
	Bus      bus.EventBus
	Sessions *session.Registry
	Sender   interest.Sender
	Logger   log.Log
}

// Service binds characters to players. Like the cell handlers it must only
// run on the world goroutine.
type Service struct {
	registry *ecs.Registry
	stores   components.Stores
	bus      bus.EventBus
	sessions *session.Registry
	sender   interest.Sender
	logger   log.Log
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		registry: deps.Registry,
		stores:   components.Bind(deps.Registry),
		bus:      deps.Bus,
		sessions: deps.Sessions,
		sender:   deps.Sender,
		logger:   logger.With(log.String("component", "character")),
	}
}

// HandleAssignCharacter creates the character the client controls and links
// it to the player. A previous character of the same player is destroyed.
// The new character inherits the player's cell so other players' interest
// queries find it immediately.
func (s *Service) HandleAssignCharacter(conn models.ConnectionID, req *protocol.AssignCharacterRequest) {
	player, ok := s.sessions.Resolve(conn)
	if !ok {
		s.logger.Error("Assign character from unknown connection",
			log.Hex("connection_id", uint64(conn)),
			log.Error(session.ErrUnknownConnection))
		return
	}
	p, ok := s.stores.Players.Get(player)
	if !ok {
		return
	}

	replaced := p.Character
	if !replaced.IsNil() {
		s.registry.DestroyEntity(replaced)
	}

	e := s.registry.CreateEntity()
	s.stores.Characters.Set(e, components.Character{
		BaseID:   req.BaseID,
		Name:     req.Name,
		Position: req.Position,
		Rotation: req.Rotation,
	})
	s.stores.Owners.Set(e, components.Owner{Owner: player})
	if cell, ok := s.stores.Cells.Get(player); ok {
		s.stores.Cells.Set(e, cell)
	}

	p.Character = e
	s.stores.Players.Set(player, p)

	s.logger.Debug("Character assigned",
		log.Uint64("player", uint64(player)),
		log.Uint64("character", uint64(e)),
		log.Uint64("replaced", uint64(replaced)))

	if err := s.sender.Send(conn, &protocol.AssignCharacterResponse{ServerID: e}); err != nil {
		s.logger.Warn("Failed to acknowledge character assignment",
			log.Hex("connection_id", uint64(conn)), log.Error(err))
	}
	if err := s.bus.Publish(events.NewCharacterAssigned(player, e, replaced)); err != nil {
		s.logger.Warn("Character assigned subscribers failed", log.Error(err))
	}
}
