// Licensed under the MIT License. See LICENSE file in the project root for details.

package bplustree

import (
	"cmp"

	"github.com/kianostad/kindex/internal/metrics"
	"github.com/kianostad/kindex/internal/valueset"
)

// Insert adds value under key, returning true if value was new under
// that key. It tries the optimistic path first and falls back to the
// pessimistic path only if the target leaf would overflow.
func (idx *Index[K, V]) Insert(key K, value V) bool {
	defer idx.metrics.RecordOp(metrics.OpInsert)

	if grew, ok := idx.optimisticInsert(key, value); ok {
		return grew
	}
	return idx.pessimisticInsert(key, value)
}

// optimisticInsert lock-couples down to the leaf with shared locks on
// internal nodes, taking an exclusive lock only on the leaf itself,
// acquired while the leaf's parent is still read-locked, so the leaf is
// never touched under a mere read lock. If the leaf is safe to insert
// into, it mutates in place and returns (grew, true). If not, it backs
// out without mutating and returns (_, false) so the caller retries
// pessimistically.
func (idx *Index[K, V]) optimisticInsert(key K, value V) (grew bool, ok bool) {
	for {
		initialRoot := idx.root.Load()
		current := initialRoot

		if current.isLeaf {
			current.mu.Lock()
			if idx.root.Load() != initialRoot {
				current.mu.Unlock()
				continue
			}
			if !idx.isSafeForInsert(current) {
				current.mu.Unlock()
				return false, false
			}
			grew = insertIntoLeafInPlace(current, key, value)
			current.mu.Unlock()
			return grew, true
		}

		current.mu.RLock()
		if idx.root.Load() != initialRoot {
			current.mu.RUnlock()
			continue
		}

		var exclusive *node[K, V]
		for exclusive == nil {
			pos := upperBound(current.keys, key)
			child := current.children[pos]

			if child.isLeaf {
				child.mu.Lock()
				current.mu.RUnlock()
				exclusive = child
				break
			}

			child.mu.RLock()
			current.mu.RUnlock()
			current = child
		}

		if !idx.isSafeForInsert(exclusive) {
			exclusive.mu.Unlock()
			return false, false
		}
		grew = insertIntoLeafInPlace(exclusive, key, value)
		exclusive.mu.Unlock()
		return grew, true
	}
}

// insertIntoLeafInPlace performs the actual key/value insertion on an
// already-locked leaf, without regard to overflow. The caller is
// responsible for having already checked isSafeForInsert.
func insertIntoLeafInPlace[K cmp.Ordered, V comparable](leaf *node[K, V], key K, value V) bool {
	pos := lowerBound(leaf.keys, key)
	if pos < len(leaf.keys) && leaf.keys[pos] == key {
		return leaf.values[pos].Add(value)
	}
	leaf.keys = insertAt(leaf.keys, pos, key)
	set := valueset.New[V]()
	set.Add(value)
	leaf.values = insertAt(leaf.values, pos, set)
	return true
}

func insertAt[T any](s []T, pos int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

// pessimisticInsert takes the tree-wide latch and descends with
// exclusive locks, releasing ancestors as soon as a safe-for-insert
// node is reached. It always succeeds.
func (idx *Index[K, V]) pessimisticInsert(key K, value V) bool {
	idx.treeMu.Lock()
	latchHeld := true

	held := make([]*node[K, V], 0, 8)
	current := idx.root.Load()
	current.mu.Lock()
	held = append(held, current)

	var head *node[K, V]
	if idx.isSafeForInsert(current) {
		head = current
	}
	if head != nil {
		idx.treeMu.Unlock()
		latchHeld = false
	}

	for !current.isLeaf {
		pos := upperBound(current.keys, key)
		child := current.children[pos]
		child.mu.Lock()

		if idx.isSafeForInsert(child) {
			unlockAll(held)
			held = held[:0]
			head = child
			if latchHeld {
				idx.treeMu.Unlock()
				latchHeld = false
			}
		}
		held = append(held, child)
		current = child
	}

	startNode := head
	if startNode == nil {
		startNode = idx.root.Load()
	}

	sibling, promotedKey, grew := idx.insertRecursive(startNode, key, value)

	if sibling != nil {
		currentRoot := idx.root.Load()
		if startNode == currentRoot {
			newRoot := newInternal[K, V]()
			newRoot.keys = append(newRoot.keys, promotedKey)
			newRoot.children = append(newRoot.children, currentRoot, sibling)
			idx.root.Store(newRoot)
		} else {
			pos := upperBound(startNode.keys, key)
			startNode.keys = insertAt(startNode.keys, pos, promotedKey)
			startNode.children = insertAt(startNode.children, pos+1, sibling)
		}
	}

	unlockAll(held)
	if latchHeld {
		idx.treeMu.Unlock()
	}
	return grew
}

// insertRecursive inserts (key, value) into the subtree rooted at n,
// splitting and returning (sibling, promotedKey) if n overflows as a
// result. grew reports whether the insertion grew the index (new key
// or new value under an existing key); it is computed once at the leaf
// and passed back up unchanged.
func (idx *Index[K, V]) insertRecursive(n *node[K, V], key K, value V) (sibling *node[K, V], promotedKey K, grew bool) {
	if n.isLeaf {
		grew = insertIntoLeafInPlace(n, key, value)
		if len(n.keys) > idx.maxLeaf {
			sibling, promotedKey = idx.splitLeaf(n)
		}
		return sibling, promotedKey, grew
	}

	pos := upperBound(n.keys, key)
	childSibling, childPromoted, childGrew := idx.insertRecursive(n.children[pos], key, value)
	grew = childGrew

	if childSibling != nil {
		n.keys = insertAt(n.keys, pos, childPromoted)
		n.children = insertAt(n.children, pos+1, childSibling)
	}

	if len(n.keys) > idx.maxIntn {
		sibling, promotedKey = idx.splitInternal(n)
	}
	return sibling, promotedKey, grew
}

// splitLeaf moves the upper half of leaf's entries into a new right
// sibling (right-biased: the original keeps the lower half), links the
// sibling into the leaf chain, and returns it along with its first key
// as the promoted separator (copy-up, not move-up, as is standard for
// B+ tree leaf splits).
func (idx *Index[K, V]) splitLeaf(leaf *node[K, V]) (*node[K, V], K) {
	defer idx.metrics.RecordSplit()

	total := len(leaf.keys)
	mid := total / 2

	sibling := newLeaf[K, V]()
	sibling.keys = append(sibling.keys, leaf.keys[mid:]...)
	sibling.values = append(sibling.values, leaf.values[mid:]...)

	sibling.next = leaf.next
	leaf.next = sibling

	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]

	return sibling, sibling.keys[0]
}

// splitInternal moves the upper half of internal's keys and children
// (after the promoted median) into a new right sibling (move-up: the
// median key itself is promoted and does not survive in either half),
// and returns the sibling and the promoted key.
func (idx *Index[K, V]) splitInternal(internal *node[K, V]) (*node[K, V], K) {
	defer idx.metrics.RecordSplit()

	total := len(internal.keys)
	mid := total / 2
	promoted := internal.keys[mid]

	sibling := newInternal[K, V]()
	sibling.keys = append(sibling.keys, internal.keys[mid+1:]...)
	sibling.children = append(sibling.children, internal.children[mid+1:]...)

	internal.keys = internal.keys[:mid]
	internal.children = internal.children[:mid+1]

	return sibling, promoted
}
