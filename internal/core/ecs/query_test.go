package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zeusync/cellsync/internal/core/models"
)

type velocity struct{ DX int }

func TestQuery_Intersection(t *testing.T) {
	r := NewRegistry()
	positions := Register[position](r)
	velocities := Register[velocity](r)
	tags := Register[tag](r)

	for e := models.EntityID(1); e <= 6; e++ {
		positions.Set(e, position{X: int(e)})
		if e%2 == 0 {
			velocities.Set(e, velocity{})
		}
		if e%3 == 0 {
			tags.Set(e, tag{})
		}
	}

	assert.ElementsMatch(t, []models.EntityID{2, 4, 6}, r.Query(positions, velocities).Execute())
	assert.ElementsMatch(t, []models.EntityID{6}, r.Query(positions).With(velocities).With(tags).Execute())
	assert.Equal(t, 6, r.Query(positions).Count())
	assert.Empty(t, r.Query().Execute())
}

func TestQuery_IsLazy(t *testing.T) {
	r := NewRegistry()
	positions := Register[position](r)
	it := r.Query(positions).Iter()

	positions.Set(1, position{})
	assert.Equal(t, []models.EntityID{1}, it.Collect(), "snapshot is taken when iteration starts")
}

func TestQuery_MutationDuringIteration(t *testing.T) {
	r := NewRegistry()
	positions := Register[position](r)
	velocities := Register[velocity](r)
	for e := models.EntityID(1); e <= 4; e++ {
		positions.Set(e, position{X: int(e)})
		velocities.Set(e, velocity{})
	}

	var visited []models.EntityID
	for e := range r.Query(positions, velocities).Iter().Seq() {
		visited = append(visited, e)
		// Overwrite the component being iterated, add a new matching
		// entity and destroy another one.
		positions.Set(e, position{X: -1})
		if e == 1 || e == 2 {
			positions.Set(100, position{})
			velocities.Set(100, velocity{})
			r.DestroyEntity(4)
		}
	}

	assert.Len(t, visited, 3)
	assert.NotContains(t, visited, models.EntityID(4), "destroyed entity is skipped")
	assert.NotContains(t, visited, models.EntityID(100), "entities added mid-walk are not visited")
	for _, e := range visited {
		p, _ := positions.Get(e)
		assert.Equal(t, -1, p.X)
	}
}

func TestQuery_EarlyBreak(t *testing.T) {
	r := NewRegistry()
	positions := Register[position](r)
	for e := models.EntityID(1); e <= 10; e++ {
		positions.Set(e, position{})
	}
	first, ok := r.Query(positions).Iter().First()
	assert.True(t, ok)
	assert.False(t, first.IsNil())
}
