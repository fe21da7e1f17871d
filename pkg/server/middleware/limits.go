package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// LimitHeader names the exhausted limit on a 429 response.
const LimitHeader = "X-RateLimit-Limit"

// Limit admits a request only if h accepts one hit. Rejected requests get
// 429 with the exhausted limit in X-RateLimit-Limit; limiter timeouts and
// shutdowns get 503.
//
// Example:
//
//	handler = middleware.Limit(manager.Hitter("api"))(handler)
func Limit(h ratelimit.Hitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serve, err := ratelimit.LazyGuard(r.Context(), h,
				func(limit string) http.HandlerFunc {
					return func(w http.ResponseWriter, r *http.Request) {
						w.Header().Set(LimitHeader, limit)
						WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
							"rate limit exceeded: "+limit)
					}
				},
				func() http.HandlerFunc { return next.ServeHTTP },
			)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable",
					"error", err,
					"request_id", GetRequestID(r),
					"timeout", errors.Is(err, ratelimit.ErrTimeout),
				)
				WriteError(w, http.StatusServiceUnavailable, "limiter_unavailable", err.Error())
				return
			}
			serve(w, r)
		})
	}
}

// MaxInFlight rejects requests with 503 while f has no free slot.
func MaxInFlight(f *ratelimit.InFlight) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if f == nil || f.Max() <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !f.Acquire() {
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusServiceUnavailable, "overloaded",
					"too many requests in flight")
				return
			}
			defer f.Release()
			next.ServeHTTP(w, r)
		})
	}
}
