// Package world owns the simulation state and is its single writer. All
// commands, joins and leaves are funneled through channels into Run.
package world

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/zeusync/cellsync/internal/core/cells"
	"github.com/zeusync/cellsync/internal/core/character"
	"github.com/zeusync/cellsync/internal/core/components"
	"github.com/zeusync/cellsync/internal/core/ecs"
	"github.com/zeusync/cellsync/internal/core/events"
	"github.com/zeusync/cellsync/internal/core/events/bus"
	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
	"github.com/zeusync/cellsync/internal/core/session"
)

type Config struct {
	InboxSize int
}

// JoinRequest asks the world to create a player for a new connection.
type JoinRequest struct {
	Connection models.ConnectionID
	Username   string
	Resp       chan JoinResponse
	// Done, when closed before the world gets to the request, makes the
	// world skip it.
	Done <-chan struct{}
}

type JoinResponse struct {
	Player models.EntityID
	Err    error
}

type Deps struct {
	Registry   *ecs.Registry
	Bus        bus.EventBus
	Sessions   *session.Registry
	Cells      *cells.Service
	Characters *character.Service
	Logger     log.Log
}

type World struct {
	registry   *ecs.Registry
	stores     components.Stores
	bus        bus.EventBus
	sessions   *session.Registry
	dispatcher *protocol.Dispatcher
	logger     log.Log

	inbox chan protocol.Command
	join  chan JoinRequest
	leave chan models.ConnectionID

	running   atomic.Bool
	processed atomic.Uint64
	rejected  atomic.Uint64
	panics    atomic.Uint64
}

func New(cfg Config, deps Deps) (*World, error) {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	w := &World{
		registry:   deps.Registry,
		stores:     components.Bind(deps.Registry),
		bus:        deps.Bus,
		sessions:   deps.Sessions,
		dispatcher: protocol.NewDispatcher(),
		logger:     logger.With(log.String("component", "world")),
		inbox:      make(chan protocol.Command, cfg.InboxSize),
		join:       make(chan JoinRequest, 64),
		leave:      make(chan models.ConnectionID, 64),
	}

	if err := w.registerHandlers(deps.Cells, deps.Characters); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *World) registerHandlers(c *cells.Service, ch *character.Service) error {
	if err := protocol.Handle(w.dispatcher, c.HandleGridCellShift); err != nil {
		return err
	}
	if err := protocol.Handle(w.dispatcher, c.HandleEnterExteriorCell); err != nil {
		return err
	}
	if err := protocol.Handle(w.dispatcher, c.HandleEnterInteriorCell); err != nil {
		return err
	}
	return protocol.Handle(w.dispatcher, ch.HandleAssignCharacter)
}

func (w *World) Inbox() chan<- protocol.Command    { return w.inbox }
func (w *World) Join() chan<- JoinRequest          { return w.join }
func (w *World) Leave() chan<- models.ConnectionID { return w.leave }

// Submit enqueues a command without blocking.
func (w *World) Submit(cmd protocol.Command) error {
	if cmd.Message == nil {
		w.rejected.Add(1)
		return fmt.Errorf("%w: command without message", protocol.ErrInvalidMessage)
	}
	select {
	case w.inbox <- cmd:
		return nil
	default:
		w.rejected.Add(1)
		return ErrInboxFull
	}
}

// Connect creates the player for conn and waits for the world to confirm.
// If ctx ends after the request was queued, the world either skips it or
// removes the player it created, so a failed Connect never leaves one
// behind.
func (w *World) Connect(ctx context.Context, conn models.ConnectionID, username string) (models.EntityID, error) {
	req := JoinRequest{Connection: conn, Username: username, Resp: make(chan JoinResponse, 1), Done: ctx.Done()}
	select {
	case w.join <- req:
	case <-ctx.Done():
		return models.NilEntity, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.Player, resp.Err
	case <-ctx.Done():
		go w.reap(req)
		return models.NilEntity, ctx.Err()
	}
}

// reap waits for the answer to an abandoned join and schedules a leave when
// the world created the player after all. The leave is queued only after
// the join was handled, so it cannot overtake it.
func (w *World) reap(req JoinRequest) {
	resp := <-req.Resp
	if resp.Err != nil {
		return
	}
	w.logger.Debug("Removing player of abandoned join",
		log.Hex("connection_id", uint64(req.Connection)),
		log.Uint64("player", uint64(resp.Player)))
	w.leave <- req.Connection
}

// Disconnect schedules removal of conn's player.
func (w *World) Disconnect(ctx context.Context, conn models.ConnectionID) error {
	select {
	case w.leave <- conn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes joins, leaves and commands one at a time until ctx is done.
func (w *World) Run(ctx context.Context) error {
	w.running.Store(true)
	defer w.running.Store(false)

	w.logger.Info("World loop started")
	defer w.logger.Info("World loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-w.join:
			var resp JoinResponse
			if err := w.safely("join", func() { resp = w.handleJoin(req) }); err != nil {
				w.rollbackJoin(req.Connection)
				resp = JoinResponse{Err: err}
			}
			if req.Resp != nil {
				req.Resp <- resp
			}
		case conn := <-w.leave:
			_ = w.safely("leave", func() { w.handleLeave(conn) })
		case cmd := <-w.inbox:
			_ = w.safely("command", func() { w.handleCommand(cmd) })
		}
	}
}

// safely runs one unit of work and turns a panic into a logged error so one
// bad command cannot stop the loop.
func (w *World) safely(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			w.logger.Error("Recovered panic in world loop",
				log.String("op", op),
				log.Any("panic", r),
				log.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: panic: %v", op, r)
		}
	}()
	fn()
	return nil
}

func (w *World) handleJoin(req JoinRequest) JoinResponse {
	select {
	case <-req.Done:
		w.logger.Debug("Skipping abandoned join", log.Hex("connection_id", uint64(req.Connection)))
		return JoinResponse{Err: ErrJoinAbandoned}
	default:
	}
	if existing, ok := w.sessions.Resolve(req.Connection); ok {
		return JoinResponse{Player: existing, Err: fmt.Errorf("%w: %s", ErrDuplicateConnection, req.Connection)}
	}

	player := w.registry.CreateEntity()
	w.stores.Players.Set(player, components.Player{ConnectionID: req.Connection, Username: req.Username})

	w.logger.Info("Player joined",
		log.Hex("connection_id", uint64(req.Connection)),
		log.Uint64("player", uint64(player)),
		log.String("username", req.Username))
	w.publish(events.NewPlayerJoined(player, req.Connection))
	return JoinResponse{Player: player}
}

// rollbackJoin removes the player a panicking join left half created.
// Duplicate joins return before creating anything, so a player bound to
// conn here belongs to the failed join.
func (w *World) rollbackJoin(conn models.ConnectionID) {
	_ = w.safely("join rollback", func() {
		if player, ok := w.sessions.Resolve(conn); ok {
			w.registry.DestroyEntity(player)
		}
	})
}

func (w *World) handleLeave(conn models.ConnectionID) {
	player, ok := w.sessions.Resolve(conn)
	if !ok {
		w.logger.Debug("Leave for unknown connection", log.Hex("connection_id", uint64(conn)))
		return
	}

	var despawned []models.EntityID
	owned := w.registry.Query(w.stores.Owners).Iter().Filter(func(e models.EntityID) bool {
		o, ok := w.stores.Owners.Get(e)
		return ok && o.IsOwnedBy(player)
	})
	for e := range owned.Seq() {
		w.registry.DestroyEntity(e)
		despawned = append(despawned, e)
	}
	if p, ok := w.stores.Players.Get(player); ok && p.HasCharacter() && w.registry.Exists(p.Character) {
		w.registry.DestroyEntity(p.Character)
		despawned = append(despawned, p.Character)
	}
	w.registry.DestroyEntity(player)

	w.logger.Info("Player left",
		log.Hex("connection_id", uint64(conn)),
		log.Uint64("player", uint64(player)),
		log.Int("despawned", len(despawned)))
	w.publish(events.NewPlayerLeft(player, conn, despawned))
}

func (w *World) handleCommand(cmd protocol.Command) {
	if cmd.Message == nil {
		w.rejected.Add(1)
		w.logger.Warn("Dropped command without message", log.Hex("connection_id", uint64(cmd.Connection)))
		return
	}
	if err := w.dispatcher.Dispatch(cmd); err != nil {
		w.rejected.Add(1)
		w.logger.Warn("Dropped command",
			log.Hex("connection_id", uint64(cmd.Connection)),
			log.Error(err))
		return
	}
	w.processed.Add(1)
}

func (w *World) publish(event bus.Event) {
	if err := w.bus.Publish(event); err != nil {
		w.logger.Warn("Event subscribers failed", log.String("event", event.Type()), log.Error(err))
	}
}

// Stats is a point-in-time view for the status endpoint. Counts are read
// through the stores' locks and may be mid-update.
type Stats struct {
	Running    bool   `json:"running"`
	Players    int    `json:"players"`
	Characters int    `json:"characters"`
	Entities   int    `json:"entities"`
	Processed  uint64 `json:"processed"`
	Rejected   uint64 `json:"rejected"`
	Panics     uint64 `json:"panics"`
}

func (w *World) Stats() Stats {
	return Stats{
		Running:    w.running.Load(),
		Players:    w.stores.Players.Count(),
		Characters: w.stores.Characters.Count(),
		Entities:   w.registry.EntityCount(),
		Processed:  w.processed.Load(),
		Rejected:   w.rejected.Load(),
		Panics:     w.panics.Load(),
	}
}

func (w *World) Bus() bus.EventBus { return w.bus }
