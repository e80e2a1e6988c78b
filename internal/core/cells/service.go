// Package cells implements the per-player cell transition state machine:
// Unplaced, Exterior(cell, worldspace) and Interior(cell). Each inbound
// command kind drives one transition.
package cells

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

// Deps are the collaborators of a Service.
type Deps struct {
	Registry *ecs.Registry
	Bus      bus.EventBus
	Sessions *session.Registry
	Sync     *interest.Protocol
	Logger   log.Log
}

// Service runs cell transitions. Handlers are total: they never panic on
// bad input and report failures only through the logger. They must be
// called from a single goroutine.
type Service struct {
	stores   components.Stores
	bus      bus.EventBus
	sessions *session.Registry
	sync     *interest.Protocol
	logger   log.Log
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		stores:   components.Bind(deps.Registry),
		bus:      deps.Bus,
		sessions: deps.Sessions,
		sync:     deps.Sync,
		logger:   logger.With(log.String("component", "cells")),
	}
}

// HandleGridCellShift re-centers an exterior player and announces every
// foreign character in its new neighborhood.
func (s *Service) HandleGridCellShift(conn models.ConnectionID, req *protocol.ShiftGridCellRequest) {
	player, ok := s.resolve(conn, protocol.TypeShiftGridCell)
	if !ok {
		return
	}

	if old, had := s.stores.Cells.Get(player); had {
		s.publish(events.NewPlayerLeaveCell(player, old.Cell))
	}
	s.setCell(player, components.Exterior(req.PlayerCell, req.WorldSpaceID, req.CenterCoords))

	s.sync.Sync(player, conn, interest.Neighborhood(req.Cells))
}

// HandleEnterExteriorCell places a player into a worldspace. Spawns are
// left to the grid shift that follows.
func (s *Service) HandleEnterExteriorCell(conn models.ConnectionID, req *protocol.EnterExteriorCellRequest) {
	player, ok := s.resolve(conn, protocol.TypeEnterExteriorCell)
	if !ok {
		return
	}

	if character, has := s.characterOf(player); has && s.stores.Cells.Has(player) {
		s.publish(events.NewCharacterExteriorCellChange(player, character, req.WorldSpaceID, req.CurrentCoords))
	}
	s.setCell(player, components.Exterior(req.CellID, req.WorldSpaceID, req.CurrentCoords))
}

// HandleEnterInteriorCell moves a player into a bounded interior and
// announces the characters in that exact cell.
func (s *Service) HandleEnterInteriorCell(conn models.ConnectionID, req *protocol.EnterInteriorCellRequest) {
	player, ok := s.resolve(conn, protocol.TypeEnterInteriorCell)
	if !ok {
		return
	}

	if old, had := s.stores.Cells.Get(player); had {
		s.publish(events.NewPlayerLeaveCell(player, old.Cell))
	}
	if character, has := s.characterOf(player); has && s.stores.Cells.Has(character) {
		s.publish(events.NewCharacterInteriorCellChange(player, character, req.CellID))
	}
	s.setCell(player, components.Interior(req.CellID))

	s.sync.Sync(player, conn, interest.Single(req.CellID))
}

func (s *Service) resolve(conn models.ConnectionID, request string) (models.EntityID, bool) {
	player, ok := s.sessions.Resolve(conn)
	if !ok {
		s.logger.Error("Cannot resolve player for connection",
			log.Hex("connection_id", uint64(conn)),
			log.String("request", request),
			log.Error(session.ErrUnknownConnection))
	}
	return player, ok
}

// characterOf returns the player's character if it still exists.
func (s *Service) characterOf(player models.EntityID) (models.EntityID, bool) {
	p, ok := s.stores.Players.Get(player)
	if !ok || !p.HasCharacter() {
		return models.NilEntity, false
	}
	if !s.stores.Characters.Has(p.Character) {
		s.logger.Warn("Player references a missing character",
			log.Uint64("player", uint64(player)),
			log.Uint64("character", uint64(p.Character)))
		return models.NilEntity, false
	}
	return p.Character, true
}

// setCell overwrites the player's location and mirrors it onto the
// player's character.
func (s *Service) setCell(player models.EntityID, cell components.CellID) {
	s.stores.Cells.Set(player, cell)
	if character, ok := s.characterOf(player); ok {
		s.stores.Cells.Set(character, cell)
	}
}

func (s *Service) publish(event bus.Event) {
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("Event subscribers failed",
			log.String("event", event.Type()),
			log.Error(err))
	}
}
