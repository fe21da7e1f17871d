package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/security/auth"
	"mercator-hq/throttle/pkg/server/middleware"
	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/telemetry/tracing"
)

// HitResponse is the body of a hit request.
type HitResponse struct {
	Limiter string `json:"limiter"`
	Allowed bool   `json:"allowed"`
	Limit   string `json:"limit,omitempty"`
}

// AskResponse is the body of an ask request.
type AskResponse struct {
	Limiter string `json:"limiter"`
	N       int64  `json:"n"`
	WaitNs  int64  `json:"wait_ns"`
	Wait    string `json:"wait"`
}

// ListResponse is the body of the limiter listing.
type ListResponse struct {
	Limiters []limits.LimiterInfo `json:"limiters"`
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/limiters/{name}/hit", s.protect(s.handleHit))
	mux.Handle("GET /v1/limiters/{name}/ask", s.protect(s.handleAsk))
	mux.Handle("GET /v1/limiters/{name}", s.protect(s.handleStatus))
	mux.Handle("GET /v1/limiters", s.protect(s.handleList))
	mux.HandleFunc("GET /health", s.health.LivenessHandler())
	mux.HandleFunc("GET /ready", s.health.ReadinessHandler())

	if s.metrics.Enabled {
		mux.Handle("GET "+s.metrics.Path, s.collector.Handler())
	}
	return mux
}

// protect applies API key auth when configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.auth == nil {
		return h
	}
	return auth.Middleware(s.auth, auth.DefaultSources, s.logger)(h)
}

func (s *Server) handleHit(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := logging.WithLimiter(r.Context(), name)
	tracing.SetLimiter(ctx, name)

	err := s.limiters.Hit(ctx, name)
	tracing.SetHitResult(ctx, err)
	if err == nil {
		writeJSON(w, http.StatusOK, HitResponse{Limiter: name, Allowed: true})
		return
	}

	var limited *ratelimit.LimitedError
	if !errors.As(err, &limited) {
		s.writeLimiterError(w, r, err)
		return
	}

	if retry := s.retryAfter(r, name, limited.Description); retry > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
	}
	w.Header().Set(middleware.LimitHeader, limited.Description)
	writeJSON(w, http.StatusTooManyRequests, HitResponse{
		Limiter: name,
		Allowed: false,
		Limit:   limited.Description,
	})
}

// retryAfter returns the whole seconds until the exhausted limit earns a
// token, at least 1, or 0 when the limiter can no longer be read.
func (s *Server) retryAfter(r *http.Request, name, desc string) int64 {
	info, err := s.limiters.Status(r.Context(), name)
	if err != nil {
		return 0
	}
	for _, st := range info.Limits {
		if st.Description == desc {
			secs := int64(math.Ceil(st.RefillInterval.Seconds()))
			return max(secs, 1)
		}
	}
	return 1
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := logging.WithLimiter(r.Context(), name)
	tracing.SetLimiter(ctx, name)

	n := int64(1)
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "invalid_request",
				"n must be a positive integer")
			return
		}
		n = parsed
	}

	wait, err := s.limiters.Ask(ctx, name, n)
	tracing.SetAskResult(ctx, n, wait.Nanoseconds(), err)
	if err != nil {
		s.writeLimiterError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Limiter: name,
		N:       n,
		WaitNs:  wait.Nanoseconds(),
		Wait:    wait.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	tracing.SetLimiter(r.Context(), name)
	info, err := s.limiters.Status(logging.WithLimiter(r.Context(), name), name)
	if err != nil {
		s.writeLimiterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	resp := ListResponse{Limiters: []limits.LimiterInfo{}}
	for _, name := range s.limiters.Names() {
		info, err := s.limiters.Status(r.Context(), name)
		if errors.Is(err, limits.ErrUnknownLimiter) {
			// Removed by a concurrent reload.
			continue
		}
		if err != nil {
			s.writeLimiterError(w, r, err)
			return
		}
		resp.Limiters = append(resp.Limiters, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeLimiterError maps manager errors onto HTTP statuses.
func (s *Server) writeLimiterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, limits.ErrUnknownLimiter):
		middleware.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ratelimit.ErrTimeout):
		middleware.WriteError(w, http.StatusServiceUnavailable, "timeout", err.Error())
	case errors.Is(err, limits.ErrClosed), errors.Is(err, ratelimit.ErrStopped):
		middleware.WriteError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "limiter call failed",
			"error", err,
			"path", r.URL.Path,
			"client", logging.GetClient(r.Context()),
			"request_id", middleware.GetRequestID(r),
		)
		middleware.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
