// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

// Set is an unordered collection of unique values.
type Set[T comparable] map[T]struct{}

// NewSet returns a Set containing items.
func NewSet[T comparable](items ...T) Set[T] {
	set := make(Set[T], len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// Add inserts item in the set.
func (s Set[T]) Add(item T) {
	s[item] = struct{}{}
}

// Has reports whether item is in the set.
func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

// Members returns the set items in no particular order.
func (s Set[T]) Members() []any {
	members := make([]any, 0, len(s))
	for item := range s {
		members = append(members, item)
	}
	return members
}
