package ratelimit

import "time"

// Limit is a single token bucket rule together with its live token count.
//
// Limits are plain values; construct them with FromRate or one of the
// PerSecond/PerMinute/PerHour helpers so that IsValid holds. A Limiter owns
// private copies of the limits it is started with.
type Limit struct {
	refill      int64 // Nanoseconds required to earn one token
	tokens      int64 // Current available tokens
	burst       int64 // Maximum tokens in the bucket
	description string
}

// Tokens returns the number of tokens currently held by the limit.
func (l Limit) Tokens() int64 { return l.tokens }

// Burst returns the bucket capacity.
func (l Limit) Burst() int64 { return l.burst }

// RefillInterval returns the time needed to earn a single token.
func (l Limit) RefillInterval() time.Duration { return time.Duration(l.refill) }

// Description returns the human-readable form of the rule,
// e.g. "100 requests per hour".
func (l Limit) Description() string { return l.description }

func (l Limit) String() string { return l.description }

// Op identifies the limiter operation that produced a Decision.
type Op string

const (
	// OpHit is an admission test that consumes tokens on success.
	OpHit Op = "hit"

	// OpAsk is a read-only wait projection.
	OpAsk Op = "ask"

	// OpStatus reads settled bucket levels. It is not observed.
	OpStatus Op = "status"
)

// Decision describes the outcome of a single processed request.
// It is delivered to the limiter's Observer after the caller is answered.
type Decision struct {
	// Limiter is the name the limiter was started with.
	Limiter string

	// Op is the processed operation.
	Op Op

	// Allowed is true for admitted hits and for asks that need no wait.
	Allowed bool

	// Limit is the description of the first exhausted limit (rejected hits only).
	Limit string

	// N is the request count projected by an ask.
	N int64

	// Wait is the projected wait (asks only).
	Wait time.Duration

	// At is the wall-clock time the request was processed.
	At time.Time
}

// Observer receives a Decision for every processed request.
//
// Observe runs on the limiter goroutine and must not block; slow consumers
// should hand the decision off to their own goroutine.
type Observer interface {
	Observe(d Decision)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(d Decision)

// Observe calls f(d).
func (f ObserverFunc) Observe(d Decision) { f(d) }

// Status is a point-in-time copy of one limit's settled bucket.
type Status struct {
	Description    string        `json:"description"`
	Tokens         int64         `json:"tokens"`
	Burst          int64         `json:"burst"`
	RefillInterval time.Duration `json:"refill_interval_ns"`
}
