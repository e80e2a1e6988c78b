package ecs

import (
	"reflect"
	"sync"

	"github.com/zeusync/cellsync/internal/core/models"
)

// Registry allocates entity ids and owns one Store per component type.
// Entities have no storage of their own: an entity exists while any store
// holds a component for it.
type Registry struct {
	mu     sync.RWMutex
	nextID models.EntityID
	stores map[reflect.Type]AnyStore
	order  []AnyStore
}

func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		stores: make(map[reflect.Type]AnyStore),
	}
}

// CreateEntity reserves a new entity id without attaching anything.
func (r *Registry) CreateEntity() models.EntityID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id
}

// DestroyEntity detaches every component of e. Remove hooks fire per store
// in registration order.
func (r *Registry) DestroyEntity(e models.EntityID) {
	for _, store := range r.allStores() {
		store.Remove(e)
	}
}

// Exists reports whether any store holds a component for e.
func (r *Registry) Exists(e models.EntityID) bool {
	for _, store := range r.allStores() {
		if store.Has(e) {
			return true
		}
	}
	return false
}

// EntityCount returns the number of distinct entities carrying at least one
// component.
func (r *Registry) EntityCount() int {
	seen := make(map[models.EntityID]struct{})
	for _, store := range r.allStores() {
		for _, e := range store.Entities() {
			seen[e] = struct{}{}
		}
	}
	return len(seen)
}

// Clear removes every component through Remove, so hooks fire for each
// one, and resets id allocation.
func (r *Registry) Clear() {
	for _, store := range r.allStores() {
		for _, e := range store.Entities() {
			store.Remove(e)
		}
	}
	r.mu.Lock()
	r.nextID = 1
	r.mu.Unlock()
}

func (r *Registry) allStores() []AnyStore {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AnyStore, len(r.order))
	copy(out, r.order)
	return out
}

// Register returns the store for T, creating it on first use.
func Register[T any](r *Registry) *Store[T] {
	key := reflect.TypeFor[T]()

	r.mu.RLock()
	existing, ok := r.stores[key]
	r.mu.RUnlock()
	if ok {
		return existing.(*Store[T])
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok = r.stores[key]; ok {
		return existing.(*Store[T])
	}
	store := NewStore[T]()
	r.stores[key] = store
	r.order = append(r.order, store)
	return store
}

// GetStore is an alias of Register kept for call sites that only read.
func GetStore[T any](r *Registry) *Store[T] {
	return Register[T](r)
}

func Set[T any](r *Registry, e models.EntityID, val T) {
	Register[T](r).Set(e, val)
}

func Get[T any](r *Registry, e models.EntityID) (T, bool) {
	return Register[T](r).Get(e)
}

func Has[T any](r *Registry, e models.EntityID) bool {
	return Register[T](r).Has(e)
}

func Remove[T any](r *Registry, e models.EntityID) bool {
	return Register[T](r).Remove(e)
}
