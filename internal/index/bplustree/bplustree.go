// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bplustree implements a concurrent B+ tree index using lock
// coupling (crabbing): readers and writers descend root-to-leaf,
// acquiring a child's lock before releasing its parent's, so no
// operation ever holds more than two node locks at once except during
// the pessimistic path, which additionally holds a tree-wide latch
// while a chain of ancestors remains unsafe from a split or merge.
//
// Insertion is two-phase. An optimistic pass lock-couples with shared
// reads down to an exclusively locked leaf and succeeds inline unless
// that leaf would overflow, in which case it aborts without mutating
// anything and a pessimistic pass takes the tree latch and re-descends
// with exclusive locks, splitting and propagating as needed. Deletion
// has no optimistic fast path — every Remove and RemoveValue call
// takes the pessimistic route directly, since a delete can require
// borrowing from or merging with a sibling at any level on the path.
//
// # Thread Safety
//
// Index is safe for concurrent use by any number of goroutines.
// Search and RangeSearch never block a concurrent Insert/Remove for
// longer than it takes to cross a single node boundary.
package bplustree

import (
	"cmp"
	"sync"
	"sync/atomic"

	"github.com/kianostad/kindex/internal/metrics"
	"github.com/kianostad/kindex/internal/valueset"
)

const defaultOrder = 64

// Option configures an Index at construction time.
type Option func(*config)

type config struct {
	order int
}

// WithOrder sets the tree's branching factor. Must be at least 3;
// panics otherwise when applied via New.
func WithOrder(order int) Option {
	return func(c *config) { c.order = order }
}

// node is either a leaf or an internal node. Leaves store keys
// parallel to value sets and chain to their right sibling; internal
// nodes store keys parallel to children, with one more child than key
// (children[i] holds keys in [keys[i-1], keys[i])).
type node[K cmp.Ordered, V comparable] struct {
	mu       sync.RWMutex
	isLeaf   bool
	keys     []K
	values   []*valueset.Set[V] // leaf only, parallel to keys
	children []*node[K, V]      // internal only, len(children) == len(keys)+1
	next     *node[K, V]        // leaf only
}

func newLeaf[K cmp.Ordered, V comparable]() *node[K, V] {
	return &node[K, V]{isLeaf: true}
}

func newInternal[K cmp.Ordered, V comparable]() *node[K, V] {
	return &node[K, V]{isLeaf: false}
}

// Index is a concurrent B+ tree index. The zero value is not usable;
// construct with New.
type Index[K cmp.Ordered, V comparable] struct {
	root    atomic.Pointer[node[K, V]]
	treeMu  sync.Mutex
	minLeaf int
	maxLeaf int
	minIntn int
	maxIntn int
	metrics *metrics.Metrics
}

// New creates an Index with the given options applied. Panics if the
// resolved order is smaller than 3 (the smallest branching factor for
// which the min/max fill invariants are satisfiable).
func New[K cmp.Ordered, V comparable](opts ...Option) *Index[K, V] {
	c := config{order: defaultOrder}
	for _, opt := range opts {
		opt(&c)
	}
	if c.order < 3 {
		panic("bplustree: Order must be at least 3")
	}

	idx := &Index[K, V]{
		maxLeaf: c.order,
		minLeaf: (c.order + 1) / 2,
		maxIntn: c.order - 1,
		minIntn: (c.order+1)/2 - 1,
		metrics: metrics.New(),
	}
	idx.root.Store(newLeaf[K, V]())
	return idx
}

// Metrics returns a point-in-time snapshot of this index's operation,
// split, merge, and borrow counters.
func (idx *Index[K, V]) Metrics() metrics.Stats {
	return idx.metrics.Snapshot()
}

// Close stops the background metrics aggregation goroutine.
func (idx *Index[K, V]) Close() {
	idx.metrics.Close()
}

func (idx *Index[K, V]) isSafeForInsert(n *node[K, V]) bool {
	if n.isLeaf {
		return len(n.keys) < idx.maxLeaf
	}
	return len(n.keys) < idx.maxIntn
}

func (idx *Index[K, V]) isSafeForDelete(n *node[K, V]) bool {
	if n.isLeaf {
		return len(n.keys) > idx.minLeaf
	}
	return len(n.keys) > idx.minIntn
}

// rootSafeFromCollapse reports whether the root can lose one child (to
// a merge two levels down propagating up to it) without itself needing
// to collapse. A leaf root never collapses; an internal root is safe
// as long as it has more than two children, since a merge at most
// removes one.
func (idx *Index[K, V]) rootSafeFromCollapse(root *node[K, V]) bool {
	if root.isLeaf {
		return true
	}
	return len(root.children) > 2
}

// lowerBound returns the index of the first element of keys that is
// not less than key (the position key would be inserted at to keep
// keys sorted, keeping equal keys before it).
func lowerBound[K cmp.Ordered](keys []K, key K) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp.Less(keys[mid], key) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the index of the first element of keys that is
// strictly greater than key.
func upperBound[K cmp.Ordered](keys []K, key K) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp.Less(key, keys[mid]) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func removeFromHeld[K cmp.Ordered, V comparable](held *[]*node[K, V], target *node[K, V]) {
	h := *held
	for i, n := range h {
		if n == target {
			*held = append(h[:i], h[i+1:]...)
			return
		}
	}
}

func unlockAll[K cmp.Ordered, V comparable](held []*node[K, V]) {
	for _, n := range held {
		n.mu.Unlock()
	}
}
