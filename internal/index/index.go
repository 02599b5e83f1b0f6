// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package index defines the shared contract implemented by every index
// variant in this module: the sharded hash index, the lock-free skip
// list, and the concurrent B+ tree. Each variant maps a single key to a
// set of values rather than a single value, and exposes a subset of
// Insert, Search, RangeSearch, Remove, and RemoveValue depending on
// what the underlying structure can support efficiently.
package index

import "cmp"

// Index is the operation set every variant implements: insertion and
// point lookup.
type Index[K cmp.Ordered, V comparable] interface {
	// Insert adds value under key, returning true if the index grew —
	// either a new key was created or value was new under an existing
	// key.
	Insert(key K, value V) bool

	// Search returns the set of values stored under key, or an empty
	// (non-nil) map if key is absent. The returned map is a snapshot;
	// mutating it does not affect the index.
	Search(key K) map[V]struct{}
}

// RangeIndex is implemented by variants that maintain keys in sorted
// order and can answer an ordered range scan.
type RangeIndex[K cmp.Ordered, V comparable] interface {
	Index[K, V]

	// RangeSearch returns every key in [lo, hi) together with its value
	// set, as a map from key to value set; the map carries no key order.
	// If lo >= hi the result is empty.
	RangeSearch(lo, hi K) map[K]map[V]struct{}
}

// RemovableIndex is implemented by variants that support deletion.
type RemovableIndex[K cmp.Ordered, V comparable] interface {
	Index[K, V]

	// Remove deletes key and every value under it, returning true if
	// key was present.
	Remove(key K) bool

	// RemoveValue deletes a single value under key, returning true if
	// it was present. If it was the last value under key, key itself is
	// removed.
	RemoveValue(key K, value V) bool
}
