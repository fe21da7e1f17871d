package ratelimit

import (
	"sync"
	"time"
)

// Clock is a monotonic time source.
//
// Now returns nanoseconds since an arbitrary fixed epoch and must never
// decrease; wall-clock adjustments must not leak into it.
type Clock interface {
	Now() int64
}

// MonotonicClock reads Go's monotonic clock relative to its creation time.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a clock whose epoch is the moment of the call.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Now returns nanoseconds elapsed since the clock was created.
func (c *MonotonicClock) Now() int64 {
	return int64(time.Since(c.start))
}

// ManualClock is a Clock that only moves when told to. It is safe for
// concurrent use and intended for deterministic tests.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock returns a clock reading start.
func NewManualClock(start int64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current reading.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now += int64(d)
	c.mu.Unlock()
}

// Set moves the clock to ns. Earlier readings are ignored so the clock
// never runs backward.
func (c *ManualClock) Set(ns int64) {
	c.mu.Lock()
	if ns > c.now {
		c.now = ns
	}
	c.mu.Unlock()
}
