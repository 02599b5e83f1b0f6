// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package hash implements a sharded, reader/writer-locked inverted
// index: a fixed number of shards, each a map from key to a bucket of
// values, with fine-grained locking at both the shard and bucket level
// to keep contention local to the keys actually being touched.
//
// # Key Features
//
//   - Constant-time shard selection via hash(key) % numShards
//   - Double-checked locking on bucket creation so the common read path
//     only ever takes a shard read lock
//   - Per-bucket value sets so concurrent inserts under different keys
//     never contend on the same lock
//
// # Thread Safety
//
// Index is safe for concurrent use by any number of goroutines.
package hash

import (
	"hash/maphash"
	"sync"

	"github.com/kianostad/kindex/internal/metrics"
	"github.com/kianostad/kindex/internal/valueset"
)

const defaultNumShards = 256

// Option configures an Index at construction time.
type Option func(*config)

type config struct {
	numShards       int
	expectedEntries int
}

// WithNumShards sets the number of shards the key space is partitioned
// across. Must be a positive integer; panics otherwise when applied via
// New. n need not be a power of two: a shard is selected with a
// modulo, not a bitmask.
func WithNumShards(n int) Option {
	return func(c *config) { c.numShards = n }
}

// WithExpectedEntries hints at the total number of keys the index will
// eventually hold, used to pre-size each shard's map and reduce rehash
// churn, carrying forward the reference implementation's
// index.reserve(10_000_000 / NUM_SHARDS) sizing call as a tunable
// rather than a hard-coded constant.
func WithExpectedEntries(n int) Option {
	return func(c *config) { c.expectedEntries = n }
}

// bucket holds the value set stored under a single key, plus the lock
// that protects mutation of that set. Buckets are shared by pointer:
// a reader that looked one up under a shard read lock may keep using
// it after releasing that lock, relying on Go's garbage collector to
// keep it alive in place of the reference implementation's
// shared_ptr<Bucket>.
type bucket[V comparable] struct {
	values *valueset.Set[V]
}

func newBucket[V comparable]() *bucket[V] {
	return &bucket[V]{values: valueset.New[V]()}
}

// shard is one partition of the key space: its own map and its own
// reader/writer lock, so that operations on keys in different shards
// never block one another.
type shard[K comparable, V comparable] struct {
	mu    sync.RWMutex
	index map[K]*bucket[V]
}

// Index is a sharded inverted index mapping keys to sets of values.
// The zero value is not usable; construct with New.
type Index[K comparable, V comparable] struct {
	shards  []shard[K, V]
	seed    maphash.Seed
	metrics *metrics.Metrics
}

// New creates an Index with the given options applied. Panics if the
// resolved shard count is not positive.
func New[K comparable, V comparable](opts ...Option) *Index[K, V] {
	c := config{numShards: defaultNumShards}
	for _, opt := range opts {
		opt(&c)
	}
	if c.numShards <= 0 {
		panic("hash: NumShards must be positive")
	}

	perShardHint := 0
	if c.expectedEntries > 0 {
		perShardHint = c.expectedEntries / c.numShards
	}

	idx := &Index[K, V]{
		shards:  make([]shard[K, V], c.numShards),
		seed:    maphash.MakeSeed(),
		metrics: metrics.New(),
	}
	for i := range idx.shards {
		idx.shards[i].index = make(map[K]*bucket[V], perShardHint)
	}
	return idx
}

// Metrics returns a point-in-time snapshot of this index's operation
// counters.
func (idx *Index[K, V]) Metrics() metrics.Stats {
	return idx.metrics.Snapshot()
}

// Close stops the background metrics aggregation goroutine.
func (idx *Index[K, V]) Close() {
	idx.metrics.Close()
}

func (idx *Index[K, V]) shardFor(key K) *shard[K, V] {
	h := maphash.Comparable(idx.seed, key)
	return &idx.shards[h%uint64(len(idx.shards))]
}

// getOrCreateBucket returns the bucket for key, creating it (and the
// shard entry) if absent. The hot path only takes a shard read lock;
// creation falls back to a write lock with a double check, matching
// the reference getOrCreateBucket.
func (idx *Index[K, V]) getOrCreateBucket(key K) *bucket[V] {
	sh := idx.shardFor(key)

	sh.mu.RLock()
	if b, ok := sh.index[key]; ok {
		sh.mu.RUnlock()
		return b
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if b, ok := sh.index[key]; ok {
		return b
	}
	b := newBucket[V]()
	sh.index[key] = b
	return b
}

// Insert adds value under key, returning true if value was new under
// that key.
func (idx *Index[K, V]) Insert(key K, value V) bool {
	defer idx.metrics.RecordOp(metrics.OpInsert)
	b := idx.getOrCreateBucket(key)
	return b.values.Add(value)
}

// Search returns the set of values stored under key, or an empty map
// if key is absent.
func (idx *Index[K, V]) Search(key K) map[V]struct{} {
	defer idx.metrics.RecordOp(metrics.OpSearch)

	sh := idx.shardFor(key)

	sh.mu.RLock()
	b, ok := sh.index[key]
	sh.mu.RUnlock()
	if !ok {
		return map[V]struct{}{}
	}
	return b.values.Snapshot()
}

// Remove deletes key and every value under it, returning true if key
// was present.
func (idx *Index[K, V]) Remove(key K) bool {
	defer idx.metrics.RecordOp(metrics.OpRemove)

	sh := idx.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.index[key]; !ok {
		return false
	}
	delete(sh.index, key)
	return true
}

// RemoveValue deletes a single value under key, returning true if it
// was present. If removing it empties the bucket, the shard entry is
// erased too; a concurrent Search that already holds the bucket
// pointer still observes the correct (empty) result since it reads the
// bucket's own lock-protected set rather than the shard map.
func (idx *Index[K, V]) RemoveValue(key K, value V) bool {
	defer idx.metrics.RecordOp(metrics.OpRemoveValue)

	sh := idx.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.index[key]
	if !ok {
		return false
	}

	removed := b.values.Remove(value)
	if removed && b.values.IsEmpty() {
		delete(sh.index, key)
	}
	return removed
}
