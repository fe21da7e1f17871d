// Package ratelimit provides a serialized, multi-limit token bucket rate limiter.
//
// # Overview
//
// A Limiter enforces an ordered set of Limit rules at once. Every request
// must find a token in every configured bucket; if any bucket is empty the
// request is rejected and no bucket is charged.
//
//	limiter, err := ratelimit.New([]ratelimit.Limit{
//	    ratelimit.PerSecond(10),
//	    ratelimit.PerMinute(15),
//	})
//	if err != nil {
//	    // errors.Is(err, ratelimit.ErrInvalidLimit)
//	}
//	defer limiter.Stop()
//
//	if err := limiter.Hit(ctx); err != nil {
//	    var limited *ratelimit.LimitedError
//	    if errors.As(err, &limited) {
//	        // Rejected by limited.Description, e.g. "15 requests per minute"
//	    }
//	}
//
// # Token Bucket Arithmetic
//
// Each Limit earns one token every RefillInterval, computed from the
// configured rate by rounding up so a bucket never grants more throughput
// than configured. Tokens are stored as of the last successful hit; every
// message settles all buckets against the same elapsed time before it is
// evaluated, and the settled counts are committed only when a hit succeeds.
//
// # Wait Projection
//
// Ask reports how long a caller should wait before n more requests could be
// admitted, assuming no other traffic. It never changes limiter state.
//
//	wait, err := limiter.Ask(ctx, 5)
//
// # Guards
//
// LazyGuard issues a single hit and branches on the outcome:
//
//	resp, err := ratelimit.LazyGuard(ctx, limiter,
//	    func(limit string) *Response { return tooManyRequests(limit) },
//	    func() *Response { return handle(req) },
//	)
//
// # Thread Safety
//
// All mutable state is owned by one goroutine per Limiter. Callers from any
// goroutine send requests through a mailbox and are answered in FIFO order,
// so no locks guard the token counts.
package ratelimit
