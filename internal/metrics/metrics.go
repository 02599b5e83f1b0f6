// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics provides lightweight, channel-driven async counters
// for an index instance.
//
// This is a small generalization of the teacher's
// internal/monitoring/metrics package: events are sent over a buffered
// channel and tallied by a single background goroutine, so recording a
// metric from a hot path never blocks on a lock. It is scoped to what
// the three index variants in this module can actually report —
// operation counts, CAS-retry counts for the skip list, and
// split/merge/borrow counts for the B+ tree — and drops the teacher's
// latency ring buffers and database-specific counters (snapshot count,
// version chain length), which have no equivalent here.
//
// # Usage Examples
//
//	m := metrics.New()
//	defer m.Close()
//
//	m.RecordOp(metrics.OpInsert)
//	m.RecordCASRetry()
//	m.RecordSplit()
//
//	stats := m.Snapshot()
//	fmt.Printf("inserts: %d, CAS retries: %d\n", stats.Inserts, stats.CASRetries)
//
// # Thread Safety
//
// Every exported method is safe to call concurrently from any number
// of goroutines.
package metrics

// Op identifies which index operation an event records.
type Op int

const (
	OpInsert Op = iota
	OpSearch
	OpRangeSearch
	OpRemove
	OpRemoveValue
)

type eventKind int

const (
	eventOp eventKind = iota
	eventCASRetry
	eventSplit
	eventMerge
	eventBorrow
)

type event struct {
	kind eventKind
	op   Op
}

// Stats is a point-in-time snapshot of the counters tallied so far.
type Stats struct {
	Inserts      uint64
	Searches     uint64
	RangeSearches uint64
	Removes      uint64
	RemoveValues uint64
	CASRetries   uint64
	Splits       uint64
	Merges       uint64
	Borrows      uint64
}

const defaultBufferSize = 4096

// Metrics tallies operation and structural-maintenance counters for
// one index instance via a buffered channel and a single background
// goroutine, in the teacher's async-event idiom.
type Metrics struct {
	events chan event
	query  chan chan Stats
	done   chan struct{}
}

// New creates a Metrics and starts its background aggregation
// goroutine. Close must be called to stop it.
func New() *Metrics {
	m := &Metrics{
		events: make(chan event, defaultBufferSize),
		query:  make(chan chan Stats),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Metrics) run() {
	var stats Stats
	for {
		select {
		case e, ok := <-m.events:
			if !ok {
				return
			}
			applyEvent(&stats, e)
		case reply := <-m.query:
			// Apply every event already in the buffer before answering,
			// so a Snapshot reflects all events enqueued before it.
			for drained := false; !drained; {
				select {
				case e := <-m.events:
					applyEvent(&stats, e)
				default:
					drained = true
				}
			}
			reply <- stats
		case <-m.done:
			return
		}
	}
}

func applyEvent(stats *Stats, e event) {
	switch e.kind {
	case eventOp:
		switch e.op {
		case OpInsert:
			stats.Inserts++
		case OpSearch:
			stats.Searches++
		case OpRangeSearch:
			stats.RangeSearches++
		case OpRemove:
			stats.Removes++
		case OpRemoveValue:
			stats.RemoveValues++
		}
	case eventCASRetry:
		stats.CASRetries++
	case eventSplit:
		stats.Splits++
	case eventMerge:
		stats.Merges++
	case eventBorrow:
		stats.Borrows++
	}
}

// send is a non-blocking best-effort enqueue: if the event buffer is
// momentarily full, the event is dropped rather than stalling the
// caller's hot path, matching the teacher's RecordGet/RecordPut
// behavior.
func (m *Metrics) send(e event) {
	select {
	case m.events <- e:
	default:
	}
}

// RecordOp records one occurrence of the given operation.
func (m *Metrics) RecordOp(op Op) { m.send(event{kind: eventOp, op: op}) }

// RecordCASRetry records one lock-free CAS loss requiring a retry.
func (m *Metrics) RecordCASRetry() { m.send(event{kind: eventCASRetry}) }

// RecordSplit records one node split (leaf or internal).
func (m *Metrics) RecordSplit() { m.send(event{kind: eventSplit}) }

// RecordMerge records one node merge (leaf or internal).
func (m *Metrics) RecordMerge() { m.send(event{kind: eventMerge}) }

// RecordBorrow records one successful borrow-from-sibling rebalance.
func (m *Metrics) RecordBorrow() { m.send(event{kind: eventBorrow}) }

// Snapshot returns the current counter values. It blocks briefly on
// the background goroutine to get a consistent read.
func (m *Metrics) Snapshot() Stats {
	reply := make(chan Stats, 1)
	select {
	case m.query <- reply:
		return <-reply
	case <-m.done:
		return Stats{}
	}
}

// Close stops the background aggregation goroutine. The event channel
// stays open, so further Record* calls never block: their events fill
// the buffer and, once it is full, send drops them.
func (m *Metrics) Close() {
	close(m.done)
}
