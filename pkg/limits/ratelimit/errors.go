package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLimit is matched by the StartError returned when any
	// configured limit fails IsValid.
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrLimited is matched by the LimitedError returned for a rejected hit.
	ErrLimited = errors.New("rate limited")

	// ErrTimeout is matched when a caller gives up before the limiter replies.
	ErrTimeout = errors.New("rate limiter call timed out")

	// ErrStopped is returned for calls made after Stop.
	ErrStopped = errors.New("rate limiter stopped")
)

// StartError reports a limiter that refused to start.
type StartError struct {
	// Reason is the failure class, "invalid limit".
	Reason string

	// Index is the position of the offending limit.
	Index int

	// Limit is the offending limit's description (may be empty).
	Limit string
}

func (e *StartError) Error() string {
	return fmt.Sprintf("%s: limits[%d] %q", e.Reason, e.Index, e.Limit)
}

// Is reports whether target is ErrInvalidLimit.
func (e *StartError) Is(target error) bool {
	return target == ErrInvalidLimit && e.Reason == ErrInvalidLimit.Error()
}

// LimitedError reports a rejected hit. Description names the first
// exhausted limit in configured order.
type LimitedError struct {
	Description string
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Description)
}

// Is reports whether target is ErrLimited.
func (e *LimitedError) Is(target error) bool {
	return target == ErrLimited
}

// TimeoutError reports a call abandoned by its caller. The request may
// still be processed by the limiter.
type TimeoutError struct {
	Op  Op
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rate limiter %s timed out: %v", e.Op, e.Err)
}

// Unwrap returns the context error that ended the call.
func (e *TimeoutError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
