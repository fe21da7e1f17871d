// Package tracing exports OpenTelemetry spans for the throttle HTTP API.
//
// Each request gets a server span named after its route pattern
// ("POST /v1/limiters/{name}/hit"), continued from an incoming W3C
// traceparent header when one is present. Handlers add the limiter name
// and the decision to the active span with the Set* helpers.
//
// Spans are exported over OTLP/gRPC. When tracing is disabled, New
// returns a tracer backed by the no-op provider, so callers never need to
// check.
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
//	handler = tracing.Middleware(tracer)(handler)
//
// # Sampling
//
// "always", "never", and "ratio" pick which new traces are recorded.
// All three are wrapped in a parent-based sampler, so a sampled caller's
// trace is always continued.
package tracing
