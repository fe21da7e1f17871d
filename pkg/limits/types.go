package limits

import (
	"errors"
	"log/slog"
	"time"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

var (
	// ErrUnknownLimiter is returned for a name with no running limiter.
	ErrUnknownLimiter = errors.New("unknown limiter")

	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("limits manager closed")
)

// ManagerConfig contains configuration for the limits manager.
type ManagerConfig struct {
	// Specs describe the limiters to start, in listing order.
	Specs []ratelimit.ChildSpec

	// Metrics receives every decision. Optional.
	Metrics *Metrics

	// Recorder receives every decision, typically a *storage.Recorder.
	// It must not block. Optional.
	Recorder ratelimit.Observer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock is shared by every limiter. Defaults to a monotonic clock per
	// limiter.
	Clock ratelimit.Clock

	// CallTimeout bounds each Hit, Ask, and Status call when the caller's
	// context has no earlier deadline. Zero means no extra bound.
	CallTimeout time.Duration
}

// LimiterInfo describes one running limiter.
type LimiterInfo struct {
	Name   string             `json:"name"`
	Limits []ratelimit.Status `json:"limits"`
}
