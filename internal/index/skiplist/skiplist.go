// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package skiplist implements a lock-free skip list index: structural
// updates (insert, logical deletion, physical unlinking) proceed via
// atomic compare-and-swap on per-level forward pointers, with no
// structural lock ever held. Only the per-node value set is
// mutex-protected, and only for the duration of a single set mutation.
//
// Physical unlinking of a logically deleted node is deferred: Remove
// marks the node, and whichever traversal next passes through it
// finishes the unlink at each level. Once a node is unlinked at level
// 0, it is handed to an epoch reclaimer (see the reclaim package) so
// that a concurrent reader already holding a pointer into the node is
// never left with a use-after-free.
//
// # Thread Safety
//
// Index is safe for concurrent use by any number of goroutines.
package skiplist

import (
	"cmp"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/kianostad/kindex/internal/metrics"
	"github.com/kianostad/kindex/internal/reclaim"
	"github.com/kianostad/kindex/internal/valueset"
)

const defaultMaxLevel = 16

// Option configures an Index at construction time.
type Option func(*config)

type config struct {
	maxLevel int
}

// WithMaxLevel sets the ceiling on node height. Must be positive;
// panics otherwise when applied via New.
func WithMaxLevel(n int) Option {
	return func(c *config) { c.maxLevel = n }
}

// node is one skip list entry. next holds `level` forward pointers, one
// per level the node spans (the head and tail sentinels span maxLevel).
// marked records logical deletion: once true, the node is treated
// as absent by every reader regardless of whether it has been
// physically unlinked yet.
type node[K cmp.Ordered, V comparable] struct {
	key    K
	values *valueset.Set[V]
	level  int
	next   []atomic.Pointer[node[K, V]]
	marked atomic.Bool
}

func newNode[K cmp.Ordered, V comparable](key K, level int) *node[K, V] {
	return &node[K, V]{
		key:    key,
		values: valueset.New[V](),
		level:  level,
		next:   make([]atomic.Pointer[node[K, V]], level),
	}
}

// Index is a lock-free skip list index. The zero value is not usable;
// construct with New.
type Index[K cmp.Ordered, V comparable] struct {
	head     *node[K, V]
	tail     *node[K, V]
	maxLevel int
	reclaim  *reclaim.Reclaimer
	metrics  *metrics.Metrics
}

// New creates an Index with the given options applied. Panics if the
// resolved max level is not positive.
func New[K cmp.Ordered, V comparable](opts ...Option) *Index[K, V] {
	c := config{maxLevel: defaultMaxLevel}
	for _, opt := range opts {
		opt(&c)
	}
	if c.maxLevel <= 0 {
		panic("skiplist: MaxLevel must be positive")
	}

	var zero K
	head := newNode[K, V](zero, c.maxLevel)
	tail := newNode[K, V](zero, c.maxLevel)
	for i := 0; i < c.maxLevel; i++ {
		head.next[i].Store(tail)
	}

	return &Index[K, V]{
		head:     head,
		tail:     tail,
		maxLevel: c.maxLevel,
		reclaim:  reclaim.NewReclaimer(),
		metrics:  metrics.New(),
	}
}

// Metrics returns a point-in-time snapshot of this index's operation
// and CAS-retry counters.
func (idx *Index[K, V]) Metrics() metrics.Stats {
	return idx.metrics.Snapshot()
}

// Close stops the background metrics aggregation goroutine. It does
// not affect reclamation; call StopReclamation separately if it was
// started.
func (idx *Index[K, V]) Close() {
	idx.metrics.Close()
}

// StartReclamation begins a background goroutine that periodically
// frees nodes retired by Remove once no reader could still observe
// them, in the teacher's mvcc.GC idiom. It is optional: without it,
// retired nodes stay pending until StopReclamation, which runs one
// final reclamation pass; nothing else frees them.
func (idx *Index[K, V]) StartReclamation(interval time.Duration) {
	idx.reclaim.Start(interval)
}

// StopReclamation halts the background reclamation loop started by
// StartReclamation.
func (idx *Index[K, V]) StopReclamation() {
	idx.reclaim.Stop()
}

func randomLevel(maxLevel int) int {
	level := 1
	for rand.IntN(2) == 1 && level < maxLevel {
		level++
	}
	return level
}

// find descends from head to level 0, returning for every level the
// last node with key strictly less than target (preds) and the first
// node with key greater than or equal to target (succs). Along the
// way it physically unlinks any marked node it encounters, retiring
// each one with the epoch reclaimer the instant its level-0 unlink
// succeeds.
//
// find itself does not register a reader epoch: it only walks
// pointers and atomic fields, never dereferencing a node's value set.
// Every caller that goes on to read the value set of a node find
// returns (Search, Insert's existing-key path, RemoveValue) must
// already hold its own guard from idx.reclaim.Enter, open for at
// least as long as that read, or a concurrent reclamation pass can
// free the set out from under it.
func (idx *Index[K, V]) find(target K) (preds, succs []*node[K, V]) {
	preds = make([]*node[K, V], idx.maxLevel)
	succs = make([]*node[K, V], idx.maxLevel)

retry:
	pred := idx.head
	for level := idx.maxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for {
			if curr == idx.tail {
				break
			}
			if !curr.marked.Load() {
				if cmp.Less(curr.key, target) {
					pred = curr
					curr = pred.next[level].Load()
					continue
				}
				break
			}

			// curr is marked: help unlink it at this level before
			// deciding whether to keep descending through it.
			succ := curr.next[level].Load()
			if !pred.next[level].CompareAndSwap(curr, succ) {
				idx.metrics.RecordCASRetry()
				goto retry
			}
			if level == 0 {
				idx.retireNode(curr)
			}
			curr = succ
		}
		preds[level] = pred
		succs[level] = curr
	}

	return preds, succs
}

func (idx *Index[K, V]) foundNode(target K) *node[K, V] {
	_, succs := idx.find(target)
	if succs[0] != idx.tail && succs[0].key == target {
		return succs[0]
	}
	return nil
}

func (idx *Index[K, V]) retireNode(n *node[K, V]) {
	epoch, guard := idx.reclaim.Enter()
	defer guard.Exit()
	idx.reclaim.Retire(epoch, func() { n.values = nil })
}

// Insert adds value under key, returning true if value was new under
// that key. It registers its own reader epoch for the duration of the
// call, since the existing-key path reads a found node's value set and
// must not race a concurrent reclamation pass freeing it.
func (idx *Index[K, V]) Insert(key K, value V) bool {
	_, guard := idx.reclaim.Enter()
	defer guard.Exit()

	defer idx.metrics.RecordOp(metrics.OpInsert)

	for {
		preds, succs := idx.find(key)

		if succs[0] != idx.tail && succs[0].key == key {
			target := succs[0]
			if target.marked.Load() {
				continue
			}
			return target.values.Add(value)
		}

		level := randomLevel(idx.maxLevel)
		n := newNode[K, V](key, level)
		n.values.Add(value)
		for i := 0; i < level; i++ {
			n.next[i].Store(succs[i])
		}

		if !preds[0].next[0].CompareAndSwap(succs[0], n) {
			idx.metrics.RecordCASRetry()
			continue
		}
		for i := 1; i < level; i++ {
			if !preds[i].next[i].CompareAndSwap(succs[i], n) {
				// Higher-level links are best-effort: the node stays
				// linked only at the levels below this one, since find
				// never adds links.
				break
			}
		}
		return true
	}
}

// Search returns the set of values stored under key, or an empty map
// if key is absent or has been logically deleted. The whole traversal
// and the value-set read at the end of it happen under a single reader
// epoch, so a node found mid-traversal cannot be reclaimed out from
// under the Snapshot call below it.
func (idx *Index[K, V]) Search(key K) map[V]struct{} {
	_, guard := idx.reclaim.Enter()
	defer guard.Exit()
	defer idx.metrics.RecordOp(metrics.OpSearch)

	n := idx.foundNode(key)
	if n == nil || n.marked.Load() {
		return map[V]struct{}{}
	}
	return n.values.Snapshot()
}

// Remove logically deletes key, returning true if it was present. The
// node is marked immediately via a single idempotent store; physical
// unlinking and reclamation happen lazily, driven by the next find
// that passes through it.
func (idx *Index[K, V]) Remove(key K) bool {
	_, guard := idx.reclaim.Enter()
	defer guard.Exit()
	defer idx.metrics.RecordOp(metrics.OpRemove)

	n := idx.foundNode(key)
	if n == nil {
		return false
	}
	wasMarked := n.marked.Swap(true)
	if !wasMarked {
		// Proactively kick off unlinking rather than waiting for some
		// unrelated future traversal to stumble onto this node.
		idx.find(key)
	}
	return true
}

// RemoveValue deletes a single value under key, returning true if it
// was present. If it was the last value under key, the key is
// logically removed from the index entirely.
func (idx *Index[K, V]) RemoveValue(key K, value V) bool {
	_, guard := idx.reclaim.Enter()
	defer guard.Exit()
	defer idx.metrics.RecordOp(metrics.OpRemoveValue)

	n := idx.foundNode(key)
	if n == nil || n.marked.Load() {
		return false
	}
	removed := n.values.Remove(value)
	if removed && n.values.IsEmpty() {
		idx.Remove(key)
	}
	return removed
}
