package sampler

import (
	"sync"

	"github.com/Iron-Ham/proctree/internal/snapshot"
)

// Exchange is a single-slot mailbox that hands the latest snapshot from the
// sampler to the consumer. Publish overwrites an unconsumed snapshot; the
// consumer side never blocks and treats a contended lock as an empty slot.
type Exchange struct {
	mu   sync.Mutex
	slot *snapshot.Snapshot
}

// NewExchange returns an empty exchange.
func NewExchange() *Exchange {
	return &Exchange{}
}

// Publish stores s, replacing any snapshot that was not taken yet. It
// reports whether such a snapshot was dropped.
func (e *Exchange) Publish(s *snapshot.Snapshot) (dropped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dropped = e.slot != nil
	e.slot = s
	return dropped
}

// TryTake returns and clears the pending snapshot. It returns nil when the
// slot is empty or the lock is held by a concurrent Publish.
func (e *Exchange) TryTake() *snapshot.Snapshot {
	if !e.mu.TryLock() {
		return nil
	}
	defer e.mu.Unlock()
	s := e.slot
	e.slot = nil
	return s
}

// Pending reports whether a snapshot is waiting, with the same contention
// rule as TryTake.
func (e *Exchange) Pending() bool {
	if !e.mu.TryLock() {
		return false
	}
	defer e.mu.Unlock()
	return e.slot != nil
}
