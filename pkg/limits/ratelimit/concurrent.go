package ratelimit

import "sync/atomic"

// InFlight caps the number of operations running at once. Unlike a
// Limiter it does not refill over time: a slot frees only on Release.
//
// A zero or negative cap admits everything.
type InFlight struct {
	max     int64
	current atomic.Int64
}

// NewInFlight returns a cap of max concurrent operations.
func NewInFlight(max int) *InFlight {
	return &InFlight{max: int64(max)}
}

// Acquire takes a slot. The caller must Release it iff Acquire returned true.
func (f *InFlight) Acquire() bool {
	n := f.current.Add(1)
	if f.max > 0 && n > f.max {
		f.current.Add(-1)
		return false
	}
	return true
}

// Release frees a slot taken by Acquire.
func (f *InFlight) Release() {
	f.current.Add(-1)
}

// Current is the number of slots held.
func (f *InFlight) Current() int64 {
	return f.current.Load()
}

// Max is the configured cap.
func (f *InFlight) Max() int64 {
	return f.max
}
