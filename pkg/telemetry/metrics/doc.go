// Package metrics owns the Prometheus registry for the throttle server.
//
// # Overview
//
// NewCollector creates a registry preloaded with Go runtime and process
// collectors plus HTTP request metrics. Other packages register their own
// collectors on Registry(); limits.NewMetrics is the main one.
//
// # HTTP Metrics
//
//   - <namespace>_http_requests_total{route,code}
//   - <namespace>_http_request_duration_seconds{route}
//
// The route label is the ServeMux pattern that matched, so its cardinality
// is bounded by the number of registered routes.
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics)
//	limiterMetrics := limits.NewMetrics(collector.Registry(), cfg.Telemetry.Metrics.Namespace)
//	mux.Handle("GET /metrics", collector.Handler())
//	handler := collector.Instrument(mux)
package metrics
