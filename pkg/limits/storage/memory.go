package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend implements Backend using a bounded in-memory ring.
// When full, the oldest event is overwritten. All data is lost when the
// process exits.
type MemoryBackend struct {
	events []*Event
	next   int // Index of the slot to overwrite once the ring is full
	max    int
	mu     sync.RWMutex
}

// DefaultMaxEvents is the ring size used when none is configured.
const DefaultMaxEvents = 10000

// NewMemoryBackend creates a ring holding up to maxEvents events.
func NewMemoryBackend(maxEvents int) *MemoryBackend {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &MemoryBackend{
		events: make([]*Event, 0, min(maxEvents, 1024)),
		max:    maxEvents,
	}
}

// Record stores an event, evicting the oldest when full.
func (m *MemoryBackend) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Limiter == "" {
		return fmt.Errorf("limiter cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) < m.max {
		m.events = append(m.events, event)
		return nil
	}
	m.events[m.next] = event
	m.next = (m.next + 1) % m.max
	return nil
}

// Query returns matching events, newest first.
func (m *MemoryBackend) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.limit()
	var out []*Event
	m.eachNewestLocked(func(e *Event) bool {
		if filter.matches(e) {
			out = append(out, e)
		}
		return len(out) < limit
	})
	return out, nil
}

// Counts aggregates the events currently held for limiter.
func (m *MemoryBackend) Counts(ctx context.Context, limiter string) (*Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := &Counts{Limiter: limiter}
	for _, e := range m.events {
		if e.Limiter == limiter {
			counts.add(e)
		}
	}
	return counts, nil
}

// Cleanup removes events recorded before olderThan.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]*Event, 0, len(m.events))
	m.eachOldestLocked(func(e *Event) {
		if !e.At.Before(olderThan) {
			kept = append(kept, e)
		}
	})

	deleted := len(m.events) - len(kept)
	m.events = kept
	m.next = 0
	return deleted, nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}

// Size returns the number of stored events.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// eachOldestLocked visits events in insertion order.
// Caller must hold a lock.
func (m *MemoryBackend) eachOldestLocked(fn func(*Event)) {
	n := len(m.events)
	for i := 0; i < n; i++ {
		fn(m.events[(m.next+i)%n])
	}
}

// eachNewestLocked visits events newest first until fn returns false.
// Caller must hold a lock.
func (m *MemoryBackend) eachNewestLocked(fn func(*Event) bool) {
	n := len(m.events)
	for i := 1; i <= n; i++ {
		if !fn(m.events[(m.next-i+n)%n]) {
			return
		}
	}
}
