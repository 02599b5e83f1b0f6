// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package kindex provides a concurrent, in-memory, multi-valued
// key-index library: three interchangeable index structures behind a
// common Insert/Search contract, each trading off differently between
// read contention, write contention, ordered iteration, and memory
// locality.
//
// # Quick Start
//
//	import "github.com/kianostad/kindex"
//
//	// Sharded reader/writer-locked hash index: best all-round throughput
//	// under mixed read/write load across many distinct keys.
//	h := kindex.NewHashIndex[string, string]()
//	h.Insert("key", "value")
//	values := h.Search("key")
//
//	// Lock-free skip list: best when writes must never block readers.
//	s := kindex.NewSkipListIndex[int, string]()
//	s.Insert(42, "value")
//
//	// Concurrent B+ tree: the only variant with ordered range scans.
//	b := kindex.NewBPlusTreeIndex[int, string]()
//	b.Insert(42, "value")
//	results := b.RangeSearch(0, 100)
//
// # Key Features
//
//   - Multi-valued keys: every key maps to a set of values
//   - Fine-grained sharded locking for the hash index
//   - Lock-free structural updates with epoch-reclaimed logical
//     deletion for the skip list
//   - Optimistic-then-pessimistic lock coupling for the B+ tree,
//     including full concurrent delete with borrow/merge rebalancing
//   - Ordered range scans, available only on the B+ tree
//   - Per-instance operation counters via Metrics, reported
//     asynchronously over a channel so recording one never blocks the
//     calling goroutine
//
// # Capability Matrix
//
//	Variant      Insert  Search  RangeSearch  Remove  RemoveValue
//	Hash             ✓       ✓            -       ✓            ✓
//	Skip list        ✓       ✓            -       ✓            ✓
//	B+ tree          ✓       ✓            ✓       ✓            ✓
//
// Every variant's Metrics method returns a snapshot of its operation
// counters (and, for the skip list, CAS-retry counts; for the B+ tree,
// split/merge/borrow counts). Close stops the background metrics
// goroutine once an index is no longer needed.
//
// # See Also
//
// For per-variant construction options, see the hash, skiplist, and
// bplustree packages under internal/index.
package kindex

import (
	"cmp"

	"github.com/kianostad/kindex/internal/index/bplustree"
	"github.com/kianostad/kindex/internal/index/hash"
	"github.com/kianostad/kindex/internal/index/skiplist"
)

type (
	// HashIndex is a sharded, reader/writer-locked inverted index.
	HashIndex[K comparable, V comparable] = hash.Index[K, V]

	// SkipListIndex is a lock-free skip list index with epoch-based
	// memory reclamation.
	SkipListIndex[K cmp.Ordered, V comparable] = skiplist.Index[K, V]

	// BPlusTreeIndex is a concurrent B+ tree index supporting ordered
	// range scans and full concurrent delete.
	BPlusTreeIndex[K cmp.Ordered, V comparable] = bplustree.Index[K, V]
)

// HashOption configures a HashIndex at construction time.
type HashOption = hash.Option

// SkipListOption configures a SkipListIndex at construction time.
type SkipListOption = skiplist.Option

// BPlusTreeOption configures a BPlusTreeIndex at construction time.
type BPlusTreeOption = bplustree.Option

// WithNumShards sets the hash index's shard count (default 256).
func WithNumShards(n int) HashOption { return hash.WithNumShards(n) }

// WithExpectedEntries hints at the hash index's eventual key count, to
// pre-size each shard's map.
func WithExpectedEntries(n int) HashOption { return hash.WithExpectedEntries(n) }

// WithMaxLevel sets the skip list's node height ceiling (default 16).
func WithMaxLevel(n int) SkipListOption { return skiplist.WithMaxLevel(n) }

// WithOrder sets the B+ tree's branching factor (default 64).
func WithOrder(n int) BPlusTreeOption { return bplustree.WithOrder(n) }

// NewHashIndex creates a sharded, reader/writer-locked inverted index.
func NewHashIndex[K comparable, V comparable](opts ...HashOption) *HashIndex[K, V] {
	return hash.New[K, V](opts...)
}

// NewSkipListIndex creates a lock-free skip list index.
func NewSkipListIndex[K cmp.Ordered, V comparable](opts ...SkipListOption) *SkipListIndex[K, V] {
	return skiplist.New[K, V](opts...)
}

// NewBPlusTreeIndex creates a concurrent B+ tree index.
func NewBPlusTreeIndex[K cmp.Ordered, V comparable](opts ...BPlusTreeOption) *BPlusTreeIndex[K, V] {
	return bplustree.New[K, V](opts...)
}
