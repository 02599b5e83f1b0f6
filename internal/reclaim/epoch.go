// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package reclaim provides epoch-based safe memory reclamation for
// lock-free data structures.
//
// This package implements an epoch manager that tracks active reader
// epochs and provides the minimum active epoch for safe reclamation. It
// enables a lock-free structure (the skip list index, in this module)
// to physically free nodes that have already been logically deleted and
// unlinked, without risking use-after-free by a reader that is still
// mid-traversal through the node.
//
// # Key Features
//
//   - Tracks active reader epochs for safe memory reclamation
//   - Provides the minimum active epoch for a reclaimer to compare against
//   - Thread-safe registration and unregistration of epochs
//   - A Reclaimer on top of Manager that batches retired nodes and frees
//     the ones that are provably unreachable by any active reader
//
// # Usage Examples
//
// Creating and using an epoch manager directly:
//
//	manager := reclaim.NewManager()
//	manager.Register(100)
//	minActive := manager.MinActive() // Returns 100
//	manager.Unregister(100)
//	count := manager.ActiveCount() // Returns 0
//
// Using the higher-level Reclaimer, which a lock-free structure calls
// into at the two points that matter — entering a read, and retiring a
// node it has just unlinked:
//
//	r := reclaim.NewReclaimer()
//	epoch, guard := r.Enter()
//	defer guard.Exit()
//	// ... traverse nodes, safe for the lifetime of guard ...
//
//	r.Retire(epoch, func() { /* drop the node's last reference */ })
//
// # Dangers and Warnings
//
//   - **Registration Order**: Each Register() call must have a corresponding Unregister() call.
//   - **Epoch Validity**: Only valid, monotonically increasing epochs should be registered.
//   - **Memory Leaks**: Failing to unregister a reader epoch will prevent reclamation.
//   - **Concurrent Access**: While the manager is thread-safe, improper usage can lead to memory leaks.
//
// # Performance Considerations
//
//   - Registration and unregistration are O(1) operations
//   - MinActive() is O(n) where n is the number of active epochs
//   - ActiveCount() is O(1) operation
//
// # Thread Safety
//
// The epoch manager and reclaimer are fully thread-safe and support
// concurrent registration, retirement, and reclamation from multiple
// goroutines.
//
// # See Also
//
// For the lock-free structure that drives this package, see the
// skiplist index package.
package reclaim

import (
	"sync"
	"sync/atomic"
	"time"
)

// Manager tracks active snapshots and provides the minimum active timestamp
// for garbage collection purposes.
type Manager struct {
	activeTS map[uint64]int // timestamp -> count of active snapshots
	mu       sync.RWMutex
}

// NewManager creates a new epoch manager.
func NewManager() *Manager {
	return &Manager{
		activeTS: make(map[uint64]int),
	}
}

// Register adds a timestamp to the active set.
func (m *Manager) Register(ts uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeTS[ts]++
}

// Unregister removes a timestamp from the active set.
func (m *Manager) Unregister(ts uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count, exists := m.activeTS[ts]; exists {
		if count <= 1 {
			delete(m.activeTS, ts)
		} else {
			m.activeTS[ts] = count - 1
		}
	}
}

// MinActive returns the minimum active timestamp.
// If no snapshots are active, returns 0.
func (m *Manager) MinActive() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.activeTS) == 0 {
		return 0
	}

	min := ^uint64(0)
	for ts := range m.activeTS {
		if ts < min {
			min = ts
		}
	}
	return min
}

// ActiveCount returns the number of active snapshots.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeTS)
}

// Guard represents one registered reader epoch. Exit must be called
// exactly once to unregister it, typically via defer immediately after
// Enter.
type Guard struct {
	r      *Reclaimer
	epoch  uint64
	closed bool
}

// Exit unregisters the epoch this guard holds. Calling Exit more than
// once is a no-op.
func (g *Guard) Exit() {
	if g.closed {
		return
	}
	g.closed = true
	g.r.epochs.Unregister(g.epoch)
}

// retired is a node handed to the reclaimer for deferred freeing,
// tagged with the epoch active at the moment it was unlinked.
type retired struct {
	epoch uint64
	free  func()
}

// Reclaimer batches retired (logically deleted, physically unlinked)
// nodes and frees them once no reader epoch could still observe them.
// It generalizes the teacher's mvcc.GC loop — a ticker-driven
// background goroutine guarded by an atomic stop flag — to an
// index-agnostic retirement queue keyed by the epoch.Manager below
// rather than by MVCC version visibility.
type Reclaimer struct {
	epochs  *Manager
	clock   atomic.Uint64
	mu      sync.Mutex
	pending []retired
	stop    atomic.Bool
	wg      sync.WaitGroup
}

// NewReclaimer creates a Reclaimer with its own epoch manager.
func NewReclaimer() *Reclaimer {
	return &Reclaimer{epochs: NewManager()}
}

// Enter registers a new reader epoch and returns it along with a Guard
// that must be closed (via Exit) when the read is done.
func (r *Reclaimer) Enter() (uint64, *Guard) {
	epoch := r.clock.Add(1)
	r.epochs.Register(epoch)
	return epoch, &Guard{r: r, epoch: epoch}
}

// Retire schedules free to run once no reader epoch at or before epoch
// remains active. free must drop the structure's last reference to the
// retired node so the Go garbage collector can reclaim it; this package
// never reclaims memory itself, it only decides when it is safe to let
// go of the reference.
func (r *Reclaimer) Retire(epoch uint64, free func()) {
	r.mu.Lock()
	r.pending = append(r.pending, retired{epoch: epoch, free: free})
	r.mu.Unlock()
}

// Reclaim runs one collection pass: any retired node whose epoch is
// strictly before the current minimum active epoch (or for which there
// is no active reader at all) is freed and dropped from the pending
// list. It is safe to call concurrently with Enter/Retire and with
// itself.
func (r *Reclaimer) Reclaim() {
	minActive := r.epochs.MinActive()

	r.mu.Lock()
	kept := r.pending[:0]
	var toFree []func()
	for _, item := range r.pending {
		if minActive == 0 || item.epoch < minActive {
			toFree = append(toFree, item.free)
		} else {
			kept = append(kept, item)
		}
	}
	r.pending = kept
	r.mu.Unlock()

	for _, free := range toFree {
		free()
	}
}

// Start begins a background reclamation loop that calls Reclaim on the
// given interval, in the style of the teacher's mvcc.GC.run.
func (r *Reclaimer) Start(interval time.Duration) {
	if r.stop.Load() {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for !r.stop.Load() {
			<-ticker.C
			r.Reclaim()
		}
	}()
}

// Stop halts the background reclamation loop started by Start and waits
// for it to exit. A final Reclaim is run synchronously so a caller that
// stops the reclaimer immediately before discarding the index still
// frees anything that became safe in the interim.
func (r *Reclaimer) Stop() {
	r.stop.Store(true)
	r.wg.Wait()
	r.Reclaim()
}

// PendingCount reports how many retired nodes are still awaiting
// reclamation. Intended for tests and metrics, not the hot path.
func (r *Reclaimer) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
