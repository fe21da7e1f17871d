package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/security/auth"
	"mercator-hq/throttle/pkg/telemetry/metrics"
	"mercator-hq/throttle/pkg/telemetry/tracing"
)

func newTestServer(t *testing.T, specs ...ratelimit.ChildSpec) (*Server, *limits.Manager) {
	t.Helper()

	metricsCfg := config.MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "throttle"}
	collector := metrics.NewCollector(metricsCfg)
	manager, err := limits.NewManager(limits.ManagerConfig{
		Specs:       specs,
		Metrics:     limits.NewMetrics(collector.Registry(), "throttle"),
		Clock:       ratelimit.NewManualClock(0),
		CallTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	srv, err := NewServer(Options{
		Server:    config.ServerConfig{ListenAddress: "127.0.0.1:0", ShutdownTimeout: time.Second},
		Metrics:   metricsCfg,
		Limiters:  manager,
		Collector: collector,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv, manager
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

// fakeLimiters returns err from every call.
type fakeLimiters struct {
	err error
}

func (f fakeLimiters) Hit(context.Context, string) error { return f.err }
func (f fakeLimiters) Ask(context.Context, string, int64) (time.Duration, error) {
	return 0, f.err
}
func (f fakeLimiters) Status(_ context.Context, name string) (limits.LimiterInfo, error) {
	return limits.LimiterInfo{Name: name}, f.err
}
func (f fakeLimiters) Names() []string { return []string{"api"} }

// ============================================================================
// Hit Tests
// ============================================================================

func TestHit_AllowedThenLimited(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(2)}))
	h := srv.Handler()

	for i := 0; i < 2; i++ {
		w := do(t, h, http.MethodPost, "/v1/limiters/api/hit")
		if w.Code != http.StatusOK {
			t.Fatalf("Hit %d: expected 200, got %d", i, w.Code)
		}
		resp := decode[HitResponse](t, w)
		if !resp.Allowed || resp.Limiter != "api" {
			t.Errorf("Hit %d: unexpected body %+v", i, resp)
		}
	}

	w := do(t, h, http.MethodPost, "/v1/limiters/api/hit")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	resp := decode[HitResponse](t, w)
	if resp.Allowed || resp.Limit != "2 requests per second" {
		t.Errorf("Unexpected rejection body %+v", resp)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Expected Retry-After 1, got %q", got)
	}
}

func TestHit_RetryAfterRoundsUp(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerMinute(1)}))
	h := srv.Handler()

	do(t, h, http.MethodPost, "/v1/limiters/api/hit")
	w := do(t, h, http.MethodPost, "/v1/limiters/api/hit")
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Expected Retry-After 60, got %q", got)
	}
}

func TestHit_ReportsFirstExhaustedLimit(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{
		ratelimit.PerSecond(10),
		ratelimit.PerMinute(3),
	}))
	h := srv.Handler()

	for i := 0; i < 3; i++ {
		do(t, h, http.MethodPost, "/v1/limiters/api/hit")
	}
	w := do(t, h, http.MethodPost, "/v1/limiters/api/hit")
	resp := decode[HitResponse](t, w)
	if resp.Limit != "3 requests per minute" {
		t.Errorf("Expected minute limit, got %q", resp.Limit)
	}
}

func TestHit_UnknownLimiter(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/v1/limiters/missing/hit")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestHit_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(1)}))
	w := do(t, srv.Handler(), http.MethodGet, "/v1/limiters/api/hit")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

// ============================================================================
// Ask Tests
// ============================================================================

func TestAsk(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(5)}))
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/v1/limiters/api/ask?n=3")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[AskResponse](t, w)
	if resp.N != 3 || resp.WaitNs != 0 || resp.Wait != "0s" {
		t.Errorf("Expected zero wait for available tokens, got %+v", resp)
	}

	w = do(t, h, http.MethodGet, "/v1/limiters/api/ask")
	if resp := decode[AskResponse](t, w); resp.N != 1 {
		t.Errorf("Expected default n=1, got %d", resp.N)
	}
}

func TestAsk_InvalidN(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(5)}))
	h := srv.Handler()

	for _, q := range []string{"n=0", "n=-2", "n=abc"} {
		w := do(t, h, http.MethodGet, "/v1/limiters/api/ask?"+q)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

// ============================================================================
// Listing and Status Tests
// ============================================================================

func TestListAndStatus(t *testing.T) {
	srv, _ := newTestServer(t,
		ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(5)}),
		ratelimit.NewChildSpec("batch", []ratelimit.Limit{ratelimit.PerHour(100)}),
	)
	h := srv.Handler()

	do(t, h, http.MethodPost, "/v1/limiters/api/hit")

	list := decode[ListResponse](t, do(t, h, http.MethodGet, "/v1/limiters"))
	if len(list.Limiters) != 2 || list.Limiters[0].Name != "api" || list.Limiters[1].Name != "batch" {
		t.Fatalf("Unexpected listing %+v", list)
	}

	info := decode[limits.LimiterInfo](t, do(t, h, http.MethodGet, "/v1/limiters/api"))
	if len(info.Limits) != 1 {
		t.Fatalf("Expected one limit, got %+v", info)
	}
	if got := info.Limits[0]; got.Tokens != 4 || got.Burst != 5 {
		t.Errorf("Expected 4/5 tokens after one hit, got %+v", got)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(5)}))
	w := do(t, srv.Handler(), http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "ok" {
		t.Errorf("Unexpected health body %+v", body)
	}
}

func TestReady(t *testing.T) {
	srv, manager := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(5)}))
	h := srv.Handler()

	if w := do(t, h, http.MethodGet, "/ready"); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 while limiters answer, got %d: %s", w.Code, w.Body.String())
	}

	manager.Close()
	// A closed manager has no names, so readiness still passes; the
	// per-limiter routes report the shutdown instead.
	if w := do(t, h, http.MethodPost, "/v1/limiters/api/hit"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 after close, got %d", w.Code)
	}
}

func TestReady_FailingLimiter(t *testing.T) {
	srv, err := NewServer(Options{Limiters: fakeLimiters{err: ratelimit.ErrStopped}})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	w := do(t, srv.Handler(), http.MethodGet, "/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(1)}))
	h := srv.Handler()

	do(t, h, http.MethodPost, "/v1/limiters/api/hit")
	do(t, h, http.MethodPost, "/v1/limiters/api/hit")
	// Decisions are observed after the reply; a status read orders them.
	do(t, h, http.MethodGet, "/v1/limiters/api")

	w := do(t, h, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`throttle_hits_total{limiter="api",result="allowed"} 1`,
		`throttle_hits_total{limiter="api",result="rejected"} 1`,
		`throttle_http_requests_total{code="429",route="POST /v1/limiters/{name}/hit"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}

// ============================================================================
// Error Mapping Tests
// ============================================================================

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown", limits.ErrUnknownLimiter, http.StatusNotFound},
		{"timeout", &ratelimit.TimeoutError{Op: ratelimit.OpHit, Err: context.DeadlineExceeded}, http.StatusServiceUnavailable},
		{"closed", limits.ErrClosed, http.StatusServiceUnavailable},
		{"stopped", ratelimit.ErrStopped, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(Options{Limiters: fakeLimiters{err: tt.err}})
			if err != nil {
				t.Fatalf("NewServer failed: %v", err)
			}
			h := srv.Handler()

			for _, target := range []string{"/v1/limiters/api/ask", "/v1/limiters/api"} {
				if w := do(t, h, http.MethodGet, target); w.Code != tt.want {
					t.Errorf("%s: expected %d, got %d", target, tt.want, w.Code)
				}
			}
			if w := do(t, h, http.MethodPost, "/v1/limiters/api/hit"); w.Code != tt.want {
				t.Errorf("hit: expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestNewServer_Validation(t *testing.T) {
	if _, err := NewServer(Options{}); err == nil {
		t.Error("Expected error without limiters")
	}
	if _, err := NewServer(Options{
		Limiters: fakeLimiters{},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}); err == nil {
		t.Error("Expected error for metrics without collector")
	}
}

func TestMetricsDisabled(t *testing.T) {
	srv, err := NewServer(Options{Limiters: fakeLimiters{}})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if w := do(t, srv.Handler(), http.MethodGet, "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with metrics disabled, got %d", w.Code)
	}
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestServer_StartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(5)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("Server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post("http://"+srv.Addr()+"/v1/limiters/api/hit", "application/json", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID on response")
	}

	if err := srv.Start(ctx); err == nil {
		t.Error("Expected error starting a running server")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Server did not shut down")
	}
	if srv.IsRunning() {
		t.Error("Expected server stopped")
	}
}

func TestServer_Stop(t *testing.T) {
	srv, _ := newTestServer(t)

	done := make(chan error, 1)
	go func() { done <- srv.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("Server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	srv.Stop()
	srv.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Server did not stop")
	}
}

func TestAuth_ProtectsLimiterRoutes(t *testing.T) {
	srv, err := NewServer(Options{
		Server:   config.ServerConfig{ListenAddress: "127.0.0.1:0"},
		Limiters: fakeLimiters{},
		Auth:     auth.NewValidator([]auth.Key{{Name: "ci", Secret: "s3cret", Enabled: true}}),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/v1/limiters/api/hit")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/limiters/api/hit", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with key, got %d: %s", w.Code, w.Body.String())
	}

	for _, path := range []string{"/health", "/ready"} {
		if w := do(t, h, http.MethodGet, path); w.Code != http.StatusOK {
			t.Errorf("Expected %s open without key, got %d", path, w.Code)
		}
	}
}

func TestTracing_SpanPerRequest(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tracer, err := tracing.New(config.TracingConfig{Enabled: true, Sampler: tracing.SamplerAlways}, "test", tracing.WithSpanProcessor(sr))
	if err != nil {
		t.Fatalf("tracing.New failed: %v", err)
	}
	defer tracer.Shutdown(context.Background())

	srv, err := NewServer(Options{Limiters: fakeLimiters{}, Tracer: tracer})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	do(t, srv.Handler(), http.MethodPost, "/v1/limiters/api/hit")

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "POST /v1/limiters/{name}/hit" {
		t.Errorf("Unexpected span name %q", spans[0].Name())
	}
	found := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == tracing.AttrLimiter && kv.Value.AsString() == "api" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected limiter attribute, got %v", spans[0].Attributes())
	}
}
