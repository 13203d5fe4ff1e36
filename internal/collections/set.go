// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2023 HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package collections

import (
	"fmt"
	"strings"

	"slices"
)

// Set is a container that can hold each item only once and has a fast
// lookup time. The scheduler uses it for one thing in particular: a
// vertex's locus tag is a |-separated list of loci it may run on, parsed
// into a Set[string] and tested for intersection against a host's
// configured loci (graph.Vertex.Locus, graph.Vertex.IsLocal).
//
// You can define a new set like this:
//
//	var validLoci = collections.Set[string]{
//	    "data":            {},
//	    "cluster-manager": {},
//	}
//
// You can also use the constructor to create a new set
//
//	var validLoci = collections.NewSet[string]("data", "cluster-manager")
type Set[T comparable] map[T]struct{}

// NewSet constructs a new set given the members of type T.
func NewSet[T comparable](members ...T) Set[T] {
	set := Set[T]{}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return set
}

// Has returns true if the item exists in the Set.
func (s Set[T]) Has(value T) bool {
	_, ok := s[value]
	return ok
}

// Intersects reports whether s and other share at least one member. A
// vertex is local to a host exactly when its locus set intersects the
// host's configured loci.
func (s Set[T]) Intersects(other Set[T]) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for member := range small {
		if large.Has(member) {
			return true
		}
	}
	return false
}

// String creates a comma-separated list of all values in the set, sorted
// for deterministic log output (a locus set's iteration order is otherwise
// unspecified).
func (s Set[T]) String() string {
	parts := make([]string, len(s))
	i := 0
	for v := range s {
		parts[i] = fmt.Sprintf("%v", v)
		i++
	}

	slices.SortStableFunc(parts, func(a, b string) int {
		if a < b {
			return -1
		} else if b > a {
			return 1
		} else {
			return 0
		}
	})
	return strings.Join(parts, ", ")
}
