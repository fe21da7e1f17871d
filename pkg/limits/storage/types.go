package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// Backend defines the interface for decision event persistence.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Record persists a single event.
	Record(ctx context.Context, event *Event) error

	// Query returns events matching filter, newest first.
	Query(ctx context.Context, filter Filter) ([]*Event, error)

	// Counts returns aggregate outcomes for a limiter.
	// An unknown limiter yields zero counts, not an error.
	Counts(ctx context.Context, limiter string) (*Counts, error)

	// Cleanup removes events recorded before olderThan.
	// Returns the number of events deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Pinger is implemented by backends with a remote or on-disk store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks b's store if it implements Pinger.
func Ping(ctx context.Context, b Backend) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Event is a single recorded limiter decision.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Limiter is the name of the limiter that made the decision.
	Limiter string `json:"limiter"`

	// Op is "hit" or "ask".
	Op string `json:"op"`

	// Allowed is true for admitted hits and for asks needing no wait.
	Allowed bool `json:"allowed"`

	// Limit names the exhausted limit for rejected hits.
	Limit string `json:"limit,omitempty"`

	// N is the request count of an ask.
	N int64 `json:"n,omitempty"`

	// Wait is the projected wait of an ask.
	Wait time.Duration `json:"wait_ns,omitempty"`

	// At is when the decision was made.
	At time.Time `json:"at"`
}

// NewEvent converts a limiter decision into an event with a fresh ID.
func NewEvent(d ratelimit.Decision) *Event {
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	return &Event{
		ID:      uuid.New().String(),
		Limiter: d.Limiter,
		Op:      string(d.Op),
		Allowed: d.Allowed,
		Limit:   d.Limit,
		N:       d.N,
		Wait:    d.Wait,
		At:      at,
	}
}

// Filter selects events for Query. Zero fields match everything.
type Filter struct {
	// Limiter restricts results to one limiter.
	Limiter string

	// Since and Until bound the event time (inclusive, exclusive).
	Since time.Time
	Until time.Time

	// RejectedOnly keeps only rejected hits.
	RejectedOnly bool

	// Limit caps the number of results. Zero means DefaultQueryLimit.
	Limit int
}

// DefaultQueryLimit is the result cap applied when Filter.Limit is zero.
const DefaultQueryLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	return f.Limit
}

func (f Filter) matches(e *Event) bool {
	if f.Limiter != "" && e.Limiter != f.Limiter {
		return false
	}
	if !f.Since.IsZero() && e.At.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.At.Before(f.Until) {
		return false
	}
	if f.RejectedOnly && (e.Op != string(ratelimit.OpHit) || e.Allowed) {
		return false
	}
	return true
}

// Counts aggregates the outcomes recorded for one limiter.
type Counts struct {
	Limiter  string `json:"limiter"`
	Allowed  int64  `json:"allowed"`
	Rejected int64  `json:"rejected"`
	Asks     int64  `json:"asks"`
}

func (c *Counts) add(e *Event) {
	switch {
	case e.Op == string(ratelimit.OpAsk):
		c.Asks++
	case e.Allowed:
		c.Allowed++
	default:
		c.Rejected++
	}
}
