package ecs

import (
	"sort"

	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/pkg/sequence"
)

// Query selects the entities present in every listed store.
//
// Iteration is snapshot based: when a sequence returned by Iter starts, the
// smallest store's entity list is copied, and each candidate is checked
// against all stores again just before it is yielded. Components may be set
// or removed (including by event handlers called from the loop body) without
// corrupting the walk. Entities added after the walk started are not
// visited, entities that stopped matching are skipped.
type Query struct {
	stores []AnyStore
}

// Query starts a query over the given stores.
//
// Example:
//
//	for e := range reg.Query(cells, characters, owners).Iter().Seq() {
//	    ...
//	}
func (r *Registry) Query(stores ...AnyStore) *Query {
	q := &Query{stores: make([]AnyStore, 0, len(stores))}
	q.stores = append(q.stores, stores...)
	return q
}

// With adds another store to the conjunction.
func (q *Query) With(store AnyStore) *Query {
	q.stores = append(q.stores, store)
	return q
}

// Iter returns a lazy sequence of matching entities.
func (q *Query) Iter() *sequence.Iterator[models.EntityID] {
	return sequence.New(func(yield func(models.EntityID) bool) {
		if len(q.stores) == 0 {
			return
		}

		ordered := make([]AnyStore, len(q.stores))
		copy(ordered, q.stores)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Count() < ordered[j].Count()
		})

		for _, e := range ordered[0].Entities() {
			if !matchesAll(e, ordered) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	})
}

// Execute materializes the query.
func (q *Query) Execute() []models.EntityID {
	return q.Iter().Collect()
}

// Count returns the number of matching entities right now.
func (q *Query) Count() int {
	return q.Iter().Count()
}

func matchesAll(e models.EntityID, stores []AnyStore) bool {
	for _, s := range stores {
		if !s.Has(e) {
			return false
		}
	}
	return true
}
