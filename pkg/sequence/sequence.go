// Package sequence provides a small lazy iterator over iter.Seq.
package sequence

import "iter"

// Iterator is a lazy, chainable view over a sequence of T. Nothing is
// evaluated until the iterator is consumed.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// New wraps an existing sequence.
func New[T any](seq iter.Seq[T]) *Iterator[T] {
	return &Iterator[T]{seq: seq}
}

// From iterates a slice. The slice is not copied.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// Seq exposes the underlying sequence for range-over-func loops.
func (i *Iterator[T]) Seq() iter.Seq[T] {
	return i.seq
}

// Pull converts the iterator into a next/stop pair.
func (i *Iterator[T]) Pull() (next func() (T, bool), stop func()) {
	return iter.Pull(i.seq)
}

// Collect exhausts the iterator into a slice.
func (i *Iterator[T]) Collect() []T {
	var out []T
	for v := range i.seq {
		out = append(out, v)
	}
	return out
}

// Each calls action for every element.
func (i *Iterator[T]) Each(action func(T)) {
	for v := range i.seq {
		action(v)
	}
}

// Filter keeps elements for which pred returns true.
func (i *Iterator[T]) Filter(pred func(T) bool) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for v := range i.seq {
				if pred(v) && !yield(v) {
					return
				}
			}
		},
	}
}

// Find returns the first element matching pred.
func (i *Iterator[T]) Find(pred func(T) bool) (T, bool) {
	for v := range i.seq {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// First returns the first element, if any.
func (i *Iterator[T]) First() (T, bool) {
	return i.Find(func(T) bool { return true })
}

// Count consumes the iterator and returns its length.
func (i *Iterator[T]) Count() int {
	n := 0
	for range i.seq {
		n++
	}
	return n
}

// ToSet collects the elements into a set.
func ToSet[T comparable](it *Iterator[T]) map[T]struct{} {
	out := make(map[T]struct{})
	for v := range it.seq {
		out[v] = struct{}{}
	}
	return out
}
