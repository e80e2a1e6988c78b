package ecs

import (
	"sync"

	"github.com/zeusync/cellsync/internal/core/models"
)

// AnyStore provides type-erased operations so the Registry and queries can
// treat every component store uniformly.
type AnyStore interface {
	Remove(e models.EntityID) bool
	Has(e models.EntityID) bool
	Count() int
	Entities() []models.EntityID
	Clear()
}

// Hook observes a store mutation. Hooks run synchronously on the mutating
// goroutine after the store lock has been released, so they may read or
// write the store again.
type Hook[T any] func(e models.EntityID, value T)

var _ AnyStore = (*Store[struct{}])(nil)

// Store holds every component of type T. It is a sparse set: a map for
// lookups plus a dense entity slice for iteration, with swap-remove.
type Store[T any] struct {
	mu         sync.RWMutex
	components map[models.EntityID]T
	entities   []models.EntityID
	index      map[models.EntityID]int

	hooksMu  sync.RWMutex
	onSet    []Hook[T]
	onRemove []Hook[T]
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		components: make(map[models.EntityID]T),
		entities:   make([]models.EntityID, 0, 64),
		index:      make(map[models.EntityID]int),
	}
}

// Set attaches val to e, replacing any previous component of this type.
func (s *Store[T]) Set(e models.EntityID, val T) {
	s.mu.Lock()
	if _, exists := s.components[e]; !exists {
		s.index[e] = len(s.entities)
		s.entities = append(s.entities, e)
	}
	s.components[e] = val
	s.mu.Unlock()

	for _, h := range s.hooks(false) {
		h(e, val)
	}
}

// Get returns the component for e. The boolean is false when e has none.
func (s *Store[T]) Get(e models.EntityID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.components[e]
	return val, ok
}

// Remove detaches the component from e and reports whether one was present.
func (s *Store[T]) Remove(e models.EntityID) bool {
	s.mu.Lock()
	val, exists := s.components[e]
	if !exists {
		s.mu.Unlock()
		return false
	}
	delete(s.components, e)
	idx := s.index[e]
	last := len(s.entities) - 1
	if idx != last {
		moved := s.entities[last]
		s.entities[idx] = moved
		s.index[moved] = idx
	}
	s.entities = s.entities[:last]
	delete(s.index, e)
	s.mu.Unlock()

	for _, h := range s.hooks(true) {
		h(e, val)
	}
	return true
}

func (s *Store[T]) Has(e models.EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.components[e]
	return ok
}

// Entities returns a copy of the entity list, safe to hold across mutations.
func (s *Store[T]) Entities() []models.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EntityID, len(s.entities))
	copy(out, s.entities)
	return out
}

func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Clear drops every component without firing remove hooks.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = make(map[models.EntityID]T)
	s.entities = make([]models.EntityID, 0, 64)
	s.index = make(map[models.EntityID]int)
}

// OnSet registers h to run after every Set, inserts and overwrites alike.
func (s *Store[T]) OnSet(h Hook[T]) {
	s.hooksMu.Lock()
	s.onSet = append(s.onSet, h)
	s.hooksMu.Unlock()
}

// OnRemove registers h to run after a component is detached. It receives
// the removed value.
func (s *Store[T]) OnRemove(h Hook[T]) {
	s.hooksMu.Lock()
	s.onRemove = append(s.onRemove, h)
	s.hooksMu.Unlock()
}

func (s *Store[T]) hooks(remove bool) []Hook[T] {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()
	if remove {
		return s.onRemove
	}
	return s.onSet
}
