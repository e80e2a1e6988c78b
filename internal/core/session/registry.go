// Package session resolves transport connections to player entities.
package session

import (
	"sync"

	"github.com/zeusync/cellsync/internal/core/components"
	"github.com/zeusync/cellsync/internal/core/ecs"
	"github.com/zeusync/cellsync/internal/core/models"
)

// Registry is the bijective ConnectionID <-> player EntityID map. It is kept
// current from the Player store's hooks, so every Set or Remove of a Player
// component (including DestroyEntity) updates it without a scan.
type Registry struct {
	mu       sync.RWMutex
	byConn   map[models.ConnectionID]models.EntityID
	byEntity map[models.EntityID]models.ConnectionID
}

// NewRegistry attaches a Registry to the Player store of reg. Players that
// already exist are indexed immediately.
func NewRegistry(reg *ecs.Registry) *Registry {
	r := &Registry{
		byConn:   make(map[models.ConnectionID]models.EntityID),
		byEntity: make(map[models.EntityID]models.ConnectionID),
	}

	players := ecs.Register[components.Player](reg)
	for _, e := range players.Entities() {
		if p, ok := players.Get(e); ok {
			r.bind(e, p.ConnectionID)
		}
	}
	players.OnSet(func(e models.EntityID, p components.Player) { r.bind(e, p.ConnectionID) })
	players.OnRemove(func(e models.EntityID, p components.Player) { r.unbind(e, p.ConnectionID) })
	return r
}

// Resolve returns the player entity owning conn.
func (r *Registry) Resolve(conn models.ConnectionID) (models.EntityID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[conn]
	return e, ok
}

// ConnectionOf is the inverse of Resolve.
func (r *Registry) ConnectionOf(player models.EntityID) (models.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byEntity[player]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// Connections returns every bound connection id.
func (r *Registry) Connections() []models.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ConnectionID, 0, len(r.byConn))
	for c := range r.byConn {
		out = append(out, c)
	}
	return out
}

func (r *Registry) bind(e models.EntityID, conn models.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byEntity[e]; ok && prev != conn {
		delete(r.byConn, prev)
	}
	if owner, ok := r.byConn[conn]; ok && owner != e {
		assertUniqueConnection(conn, owner, e)
		delete(r.byEntity, owner)
	}
	r.byConn[conn] = e
	r.byEntity[e] = conn
}

func (r *Registry) unbind(e models.EntityID, conn models.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byConn[conn]; ok && owner == e {
		delete(r.byConn, conn)
	}
	if c, ok := r.byEntity[e]; ok && c == conn {
		delete(r.byEntity, e)
	}
}
