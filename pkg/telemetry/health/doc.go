// Package health provides liveness and readiness probes.
//
// # Endpoints
//
//   - /health: liveness, 200 while the process is serving
//   - /ready: readiness, runs every registered check and answers 503 when
//     any of them fails
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("storage", func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	})
//	mux.HandleFunc("GET /health", checker.LivenessHandler())
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
//
// Checks run concurrently, each bounded by the checker's timeout.
package health
