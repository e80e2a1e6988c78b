package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterator_FilterIsLazy(t *testing.T) {
	calls := 0
	it := From([]int{1, 2, 3, 4, 5, 6}).Filter(func(v int) bool {
		calls++
		return v%2 == 0
	})
	assert.Equal(t, 0, calls, "filter must not run before consumption")

	first, ok := it.First()
	assert.True(t, ok)
	assert.Equal(t, 2, first)
	assert.Equal(t, 2, calls, "consumption stops at the first match")
}

func TestIterator_CollectAndCount(t *testing.T) {
	it := From([]string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, it.Collect())
	assert.Equal(t, 3, it.Count())
}

func TestIterator_Pull(t *testing.T) {
	next, stop := From([]int{7, 8}).Pull()
	defer stop()

	v, ok := next()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	v, ok = next()
	assert.True(t, ok)
	assert.Equal(t, 8, v)
	_, ok = next()
	assert.False(t, ok)
}

func TestToSet(t *testing.T) {
	set := ToSet(From([]int{1, 1, 2}))
	assert.Len(t, set, 2)
	_, ok := set[2]
	assert.True(t, ok)
}

func TestFind_Missing(t *testing.T) {
	_, ok := From([]int{1, 3}).Find(func(v int) bool { return v > 10 })
	assert.False(t, ok)
}
