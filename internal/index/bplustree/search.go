// Licensed under the MIT License. See LICENSE file in the project root for details.

package bplustree

import (
	"cmp"

	"github.com/kianostad/kindex/internal/metrics"
)

// Search returns the set of values stored under key, or an empty map
// if key is absent. It lock-couples with shared locks root-to-leaf and
// retries if the root is replaced by a concurrent split while the
// initial lock is being acquired.
func (idx *Index[K, V]) Search(key K) map[V]struct{} {
	defer idx.metrics.RecordOp(metrics.OpSearch)

	for {
		initialRoot := idx.root.Load()
		current := initialRoot
		current.mu.RLock()

		if idx.root.Load() != initialRoot {
			current.mu.RUnlock()
			continue
		}

		for !current.isLeaf {
			pos := upperBound(current.keys, key)
			child := current.children[pos]
			child.mu.RLock()
			current.mu.RUnlock()
			current = child
		}

		pos := lowerBound(current.keys, key)
		if pos >= len(current.keys) || current.keys[pos] != key {
			current.mu.RUnlock()
			return map[V]struct{}{}
		}
		result := current.values[pos].Snapshot()
		current.mu.RUnlock()
		return result
	}
}

// RangeSearch returns every key in [lo, hi) together with its value
// set, as a map from key to value set. The leaves are scanned in
// ascending key order, but the returned map carries no key order. If
// lo >= hi the result is empty. It
// descends with upperBound(lo) so that a key equal to a separator
// descends into the right subtree, then scans the leaf chain with
// lock coupling.
func (idx *Index[K, V]) RangeSearch(lo, hi K) map[K]map[V]struct{} {
	defer idx.metrics.RecordOp(metrics.OpRangeSearch)

	result := make(map[K]map[V]struct{})
	if !cmp.Less(lo, hi) {
		return result
	}

	for {
		initialRoot := idx.root.Load()
		current := initialRoot
		current.mu.RLock()

		if idx.root.Load() != initialRoot {
			current.mu.RUnlock()
			continue
		}

		for !current.isLeaf {
			pos := upperBound(current.keys, lo)
			child := current.children[pos]
			child.mu.RLock()
			current.mu.RUnlock()
			current = child
		}

		for {
			start := lowerBound(current.keys, lo)
			done := false
			for i := start; i < len(current.keys); i++ {
				if !cmp.Less(current.keys[i], hi) {
					done = true
					break
				}
				result[current.keys[i]] = current.values[i].Snapshot()
			}
			if done {
				current.mu.RUnlock()
				return result
			}

			next := current.next
			if next == nil {
				current.mu.RUnlock()
				return result
			}
			next.mu.RLock()
			current.mu.RUnlock()
			current = next
		}
	}
}
