// Licensed under the MIT License. See LICENSE file in the project root for details.

package bplustree

import "github.com/kianostad/kindex/internal/metrics"

// Remove deletes key and every value under it, returning true if key
// was present.
func (idx *Index[K, V]) Remove(key K) bool {
	defer idx.metrics.RecordOp(metrics.OpRemove)

	var zero V
	return idx.pessimisticRemove(key, zero, true)
}

// RemoveValue deletes a single value under key, returning true if it
// was present. If it was the last value under key, key itself is
// removed, triggering the same underflow handling as Remove.
func (idx *Index[K, V]) RemoveValue(key K, value V) bool {
	defer idx.metrics.RecordOp(metrics.OpRemoveValue)

	return idx.pessimisticRemove(key, value, false)
}

// pessimisticRemove takes the tree-wide latch and descends with
// exclusive locks, releasing ancestors as soon as a safe-for-delete
// node is reached, exactly mirroring pessimisticInsert's crabbing
// except substituting isSafeForDelete for the safety predicate. There
// is no optimistic fast path for deletion: borrowing and merging can
// be required at any level, so every call takes this route directly.
func (idx *Index[K, V]) pessimisticRemove(key K, value V, wholeKey bool) bool {
	idx.treeMu.Lock()
	latchHeld := true

	held := make([]*node[K, V], 0, 8)
	current := idx.root.Load()
	current.mu.Lock()
	held = append(held, current)

	var head *node[K, V]
	if idx.rootSafeFromCollapse(current) {
		head = current
	}
	if head != nil {
		idx.treeMu.Unlock()
		latchHeld = false
	}

	var parentOfHead *node[K, V]
	indexInParent := 0

	for !current.isLeaf {
		pos := upperBound(current.keys, key)
		child := current.children[pos]
		child.mu.Lock()

		if idx.isSafeForDelete(child) {
			unlockAll(held)
			held = held[:0]
			head = child
			parentOfHead = current
			indexInParent = pos
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

	removed, _ := idx.removeRec(parentOfHead, startNode, indexInParent, key, value, wholeKey, &held)

	// The root can only be left with a single child when the latch was
	// never released, and only then is the root still locked here.
	if latchHeld {
		root := idx.root.Load()
		if !root.isLeaf && len(root.keys) == 0 && len(root.children) == 1 {
			idx.root.Store(root.children[0])
		}
	}

	unlockAll(held)
	if latchHeld {
		idx.treeMu.Unlock()
	}
	return removed
}

// removeRec deletes key (or just value, if !wholeKey) from the subtree
// rooted at node, which sits at position idxInParent under parent (nil
// for the root). It returns whether anything was removed and whether
// the caller's node may now need rebalancing as a result.
func (idx *Index[K, V]) removeRec(parent, n *node[K, V], idxInParent int, key K, value V, wholeKey bool, held *[]*node[K, V]) (removed, rebalance bool) {
	if n.isLeaf {
		return idx.removeFromLeaf(parent, n, idxInParent, key, value, wholeKey, held)
	}
	return idx.removeFromInternal(parent, n, idxInParent, key, value, wholeKey, held)
}

func (idx *Index[K, V]) removeFromLeaf(parent, leaf *node[K, V], pos int, key K, value V, wholeKey bool, held *[]*node[K, V]) (removed, rebalance bool) {
	i := lowerBound(leaf.keys, key)
	if i >= len(leaf.keys) || leaf.keys[i] != key {
		return false, false
	}

	if !wholeKey {
		if !leaf.values[i].Remove(value) {
			return false, false
		}
		if !leaf.values[i].IsEmpty() {
			return true, false
		}
	}

	leaf.keys = append(leaf.keys[:i], leaf.keys[i+1:]...)
	leaf.values = append(leaf.values[:i], leaf.values[i+1:]...)

	if parent != nil && len(leaf.keys) < idx.minLeaf {
		idx.handleLeafUnderflow(parent, pos, held)
		return true, true
	}
	return true, false
}

func (idx *Index[K, V]) removeFromInternal(parent, inode *node[K, V], pos int, key K, value V, wholeKey bool, held *[]*node[K, V]) (removed, rebalance bool) {
	ci := upperBound(inode.keys, key)
	removed, childRebalance := idx.removeRec(inode, inode.children[ci], ci, key, value, wholeKey, held)
	if !removed || !childRebalance {
		return removed, false
	}

	if parent != nil && len(inode.keys) < idx.minIntn {
		idx.handleInternalUnderflow(parent, pos, held)
		return true, true
	}
	return true, false
}

func (idx *Index[K, V]) handleLeafUnderflow(parent *node[K, V], i int, held *[]*node[K, V]) {
	if idx.borrowLeafFromLeft(parent, i) {
		return
	}
	if idx.borrowLeafFromRight(parent, i) {
		return
	}
	if i > 0 {
		idx.mergeLeafWithLeft(parent, i, held)
	} else if i+1 < len(parent.children) {
		idx.mergeLeafWithRight(parent, i)
	}
}

func (idx *Index[K, V]) borrowLeafFromLeft(p *node[K, V], i int) bool {
	if i == 0 {
		return false
	}
	left, child := p.children[i-1], p.children[i]
	if len(left.keys) <= idx.minLeaf {
		return false
	}

	lastIdx := len(left.keys) - 1
	child.keys = insertAt(child.keys, 0, left.keys[lastIdx])
	child.values = insertAt(child.values, 0, left.values[lastIdx])
	left.keys = left.keys[:lastIdx]
	left.values = left.values[:lastIdx]

	p.keys[i-1] = child.keys[0]
	idx.metrics.RecordBorrow()
	return true
}

func (idx *Index[K, V]) borrowLeafFromRight(p *node[K, V], i int) bool {
	if i+1 >= len(p.children) {
		return false
	}
	child, right := p.children[i], p.children[i+1]
	if len(right.keys) <= idx.minLeaf {
		return false
	}

	child.keys = append(child.keys, right.keys[0])
	child.values = append(child.values, right.values[0])
	right.keys = right.keys[1:]
	right.values = right.values[1:]

	p.keys[i] = right.keys[0]
	idx.metrics.RecordBorrow()
	return true
}

func (idx *Index[K, V]) mergeLeafWithLeft(p *node[K, V], i int, held *[]*node[K, V]) {
	left, child := p.children[i-1], p.children[i]

	left.keys = append(left.keys, child.keys...)
	left.values = append(left.values, child.values...)
	left.next = child.next

	child.mu.Unlock()
	removeFromHeld(held, child)

	p.keys = append(p.keys[:i-1], p.keys[i:]...)
	p.children = append(p.children[:i], p.children[i+1:]...)
	idx.metrics.RecordMerge()
}

func (idx *Index[K, V]) mergeLeafWithRight(p *node[K, V], i int) {
	child, right := p.children[i], p.children[i+1]

	child.keys = append(child.keys, right.keys...)
	child.values = append(child.values, right.values...)
	child.next = right.next

	p.keys = append(p.keys[:i], p.keys[i+1:]...)
	p.children = append(p.children[:i+1], p.children[i+2:]...)
	idx.metrics.RecordMerge()
}

func (idx *Index[K, V]) handleInternalUnderflow(parent *node[K, V], i int, held *[]*node[K, V]) {
	if idx.borrowInternalFromLeft(parent, i) {
		return
	}
	if idx.borrowInternalFromRight(parent, i) {
		return
	}
	if i > 0 {
		idx.mergeInternalWithLeft(parent, i, held)
	} else if i+1 < len(parent.children) {
		idx.mergeInternalWithRight(parent, i)
	}
}

func (idx *Index[K, V]) borrowInternalFromLeft(p *node[K, V], i int) bool {
	if i == 0 {
		return false
	}
	left, child := p.children[i-1], p.children[i]
	if len(left.keys) <= idx.minIntn {
		return false
	}

	child.keys = insertAt(child.keys, 0, p.keys[i-1])
	p.keys[i-1] = left.keys[len(left.keys)-1]
	left.keys = left.keys[:len(left.keys)-1]

	lastChild := left.children[len(left.children)-1]
	child.children = insertAt(child.children, 0, lastChild)
	left.children = left.children[:len(left.children)-1]
	idx.metrics.RecordBorrow()
	return true
}

func (idx *Index[K, V]) borrowInternalFromRight(p *node[K, V], i int) bool {
	if i+1 >= len(p.children) {
		return false
	}
	child, right := p.children[i], p.children[i+1]
	if len(right.keys) <= idx.minIntn {
		return false
	}

	child.keys = append(child.keys, p.keys[i])
	p.keys[i] = right.keys[0]
	right.keys = right.keys[1:]

	child.children = append(child.children, right.children[0])
	right.children = right.children[1:]
	idx.metrics.RecordBorrow()
	return true
}

func (idx *Index[K, V]) mergeInternalWithLeft(p *node[K, V], i int, held *[]*node[K, V]) {
	left, child := p.children[i-1], p.children[i]

	left.keys = append(left.keys, p.keys[i-1])
	left.keys = append(left.keys, child.keys...)
	left.children = append(left.children, child.children...)

	child.mu.Unlock()
	removeFromHeld(held, child)

	p.keys = append(p.keys[:i-1], p.keys[i:]...)
	p.children = append(p.children[:i], p.children[i+1:]...)
	idx.metrics.RecordMerge()
}

func (idx *Index[K, V]) mergeInternalWithRight(p *node[K, V], i int) {
	child, right := p.children[i], p.children[i+1]

	child.keys = append(child.keys, p.keys[i])
	child.keys = append(child.keys, right.keys...)
	child.children = append(child.children, right.children...)

	p.keys = append(p.keys[:i], p.keys[i+1:]...)
	p.children = append(p.children[:i+1], p.children[i+2:]...)
	idx.metrics.RecordMerge()
}
