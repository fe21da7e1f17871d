// Package server exposes named rate limiters over HTTP.
//
// # Endpoints
//
//	POST /v1/limiters/{name}/hit   200 {"allowed":true} or 429 with Retry-After
//	GET  /v1/limiters/{name}/ask   ?n=3, projected wait for n more hits
//	GET  /v1/limiters/{name}       settled bucket levels
//	GET  /v1/limiters              all limiters
//	GET  /health                   liveness
//	GET  /ready                    readiness, every limiter answers a status read
//	GET  /metrics                  when telemetry.metrics.enabled
//
// Unknown limiters answer 404. A limiter that does not reply within the
// request timeout answers 503, as does a manager that is shutting down.
//
// # Usage
//
//	srv, err := server.NewServer(server.Options{
//	    Server:    cfg.Server,
//	    Metrics:   cfg.Telemetry.Metrics,
//	    Limiters:  manager,
//	    Collector: collector,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled, SIGINT or SIGTERM is received, or
// Stop is called, then drains in-flight requests for up to
// server.shutdown_timeout.
package server
