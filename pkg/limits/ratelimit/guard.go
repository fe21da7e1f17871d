package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Hitter is anything that can admit or reject a single request.
// *Limiter implements it.
type Hitter interface {
	Hit(ctx context.Context) error
}

// LazyGuard issues exactly one hit and branches on the outcome.
//
// When the hit is rejected, onLimited receives the violated limit's
// description and its result is returned; onAllowed is never called. When
// admitted, onAllowed's result is returned. Any other failure (timeout,
// stopped limiter) is returned as an error without calling either function.
func LazyGuard[R any](ctx context.Context, h Hitter, onLimited func(limit string) R, onAllowed func() R) (R, error) {
	err := h.Hit(ctx)
	if err == nil {
		return onAllowed(), nil
	}

	var limited *LimitedError
	if errors.As(err, &limited) {
		return onLimited(limited.Description), nil
	}

	var zero R
	return zero, err
}

// GuardTimeout is LazyGuard bounded by timeout.
func GuardTimeout[R any](h Hitter, timeout time.Duration, onLimited func(limit string) R, onAllowed func() R) (R, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return LazyGuard(ctx, h, onLimited, onAllowed)
}

// HitTimeout is Hit bounded by timeout.
func HitTimeout(l *Limiter, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Hit(ctx)
}

// AskTimeout is Ask bounded by timeout.
func AskTimeout(l *Limiter, timeout time.Duration, n int64) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Ask(ctx, n)
}
