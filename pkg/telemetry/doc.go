// Package telemetry groups the observability packages used by the throttle
// server.
//
// # Components
//
//   - logging: slog setup with request, limiter, and client context fields
//   - metrics: Prometheus registry and HTTP request instrumentation
//   - tracing: OpenTelemetry spans exported over OTLP
//   - health: liveness and readiness checks
//
// Each component is configured from config.TelemetryConfig and can be used
// on its own.
package telemetry
