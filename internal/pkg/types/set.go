// Package types holds small generic containers and encodings shared across packages.
package types

import (
	"iter"
	"maps"
	"slices"
)

// Set is a generic hash set backed by map[T]struct{}. Add modifies the set in place; a
// Set is not safe for concurrent mutation.
type Set[T comparable] map[T]struct{}

// NewSet creates a new Set holding the provided elements.
func NewSet[T comparable](data ...T) Set[T] {
	set := make(Set[T], len(data))
	for _, d := range data {
		set[d] = struct{}{}
	}
	return set
}

// Add inserts one or more elements into the set.
func (s Set[T]) Add(values ...T) {
	for _, val := range values {
		s[val] = struct{}{}
	}
}

// Contains reports whether value is a member of the set.
func (s Set[T]) Contains(value T) bool {
	_, ok := s[value]
	return ok
}

// ToIter returns an iterator over all elements in the set, in no particular order.
func (s Set[T]) ToIter() iter.Seq[T] {
	return maps.Keys(s)
}

// ToSlice returns a slice containing all elements in the set, in no particular order.
func (s Set[T]) ToSlice() []T {
	return slices.Collect(s.ToIter())
}
