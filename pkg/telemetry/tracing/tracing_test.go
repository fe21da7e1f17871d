package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/telemetry/logging"
)

func newRecordingTracer(t *testing.T, sampler string) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tr, err := New(config.TracingConfig{Enabled: true, Sampler: sampler, SampleRatio: 1}, "test", WithSpanProcessor(sr))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { tr.Shutdown(context.Background()) })
	return tr, sr
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

// ============================================================================
// Tracer
// ============================================================================

func TestNew_Disabled(t *testing.T) {
	tr, err := New(config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if tr.Enabled() {
		t.Error("expected disabled tracer")
	}

	ctx, span := tr.Start(context.Background(), "noop")
	span.End()
	if TraceID(ctx) != "" {
		t.Errorf("expected no trace ID from no-op tracer, got %q", TraceID(ctx))
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNew_InvalidSampler(t *testing.T) {
	if _, err := New(config.TracingConfig{Enabled: true, Sampler: "sometimes"}, "test", WithSpanProcessor(tracetest.NewSpanRecorder())); err == nil {
		t.Error("expected error for unknown sampler")
	}
	if _, err := New(config.TracingConfig{Enabled: true, Sampler: SamplerRatio, SampleRatio: 2}, "test", WithSpanProcessor(tracetest.NewSpanRecorder())); err == nil {
		t.Error("expected error for ratio above 1")
	}
}

func TestSamplers(t *testing.T) {
	tests := []struct {
		sampler string
		want    int
	}{
		{SamplerAlways, 1},
		{SamplerNever, 0},
		{SamplerRatio, 1}, // ratio 1
	}
	for _, tt := range tests {
		t.Run(tt.sampler, func(t *testing.T) {
			tr, sr := newRecordingTracer(t, tt.sampler)
			_, span := tr.Start(context.Background(), "op")
			span.End()
			if got := len(sr.Ended()); got != tt.want {
				t.Errorf("recorded %d spans, want %d", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Middleware
// ============================================================================

func TestMiddleware_NamesSpanByRoute(t *testing.T) {
	tr, sr := newRecordingTracer(t, SamplerAlways)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/limiters/{name}/hit", func(w http.ResponseWriter, r *http.Request) {
		SetLimiter(r.Context(), r.PathValue("name"))
		SetHitResult(r.Context(), &ratelimit.LimitedError{Description: "2 requests per second"})
		w.WriteHeader(http.StatusTooManyRequests)
	})
	handler := Middleware(tr)(mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/limiters/api/hit", nil)
	req = req.WithContext(logging.WithRequestID(req.Context(), "req-1"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "POST /v1/limiters/{name}/hit" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v", span.SpanKind())
	}

	a := attrs(span)
	if a[AttrLimiter].AsString() != "api" {
		t.Errorf("limiter attr = %v", a[AttrLimiter])
	}
	if v, ok := a[AttrAllowed]; !ok || v.AsBool() {
		t.Errorf("allowed attr = %v, %v", v, ok)
	}
	if a[AttrLimit].AsString() != "2 requests per second" {
		t.Errorf("limit attr = %v", a[AttrLimit])
	}
	if a[AttrRequestID].AsString() != "req-1" {
		t.Errorf("request id attr = %v", a[AttrRequestID])
	}
	if a["http.response.status_code"].AsInt64() != http.StatusTooManyRequests {
		t.Errorf("status attr = %v", a["http.response.status_code"])
	}
	if span.Status().Code == codes.Error {
		t.Error("a rejection should not mark the span failed")
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	tr, sr := newRecordingTracer(t, SamplerNever)

	handler := Middleware(tr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/v1/limiters", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// The sampled parent overrides the "never" root sampler.
	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != traceID {
		t.Errorf("trace ID = %s, want %s", got, traceID)
	}
	if spans[0].Parent().SpanID().String() != "00f067aa0ba902b7" {
		t.Errorf("parent span = %s", spans[0].Parent().SpanID())
	}
	if spans[0].Status().Code != codes.Error {
		t.Error("expected 500 to mark the span failed")
	}
}

func TestMiddleware_NilTracer(t *testing.T) {
	called := false
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("expected pass-through")
	}
}

func TestSetAskResultAndError(t *testing.T) {
	tr, sr := newRecordingTracer(t, SamplerAlways)

	ctx, span := tr.Start(context.Background(), "ask")
	SetAskResult(ctx, 3, 1500, nil)
	span.End()

	ctx, span = tr.Start(context.Background(), "ask-failed")
	SetAskResult(ctx, 1, 0, errors.New("limiter stopped"))
	span.End()

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if a := attrs(spans[0]); a[AttrAskN].AsInt64() != 3 || a[AttrWaitNs].AsInt64() != 1500 {
		t.Errorf("ask attrs = %v", a)
	}
	if spans[1].Status().Code != codes.Error || len(spans[1].Events()) == 0 {
		t.Errorf("expected failed span with error event, got %+v", spans[1].Status())
	}
}
