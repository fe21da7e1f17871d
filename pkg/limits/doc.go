// Package limits supervises a set of named rate limiters.
//
// # Overview
//
// Each limiter enforces an ordered list of token-bucket limits on its own
// goroutine (see package ratelimit). The Manager starts limiters from
// ChildSpecs, routes hits and asks to them by name, and fans every decision
// out to Prometheus metrics and an optional event recorder.
//
// # Architecture
//
// The package is organized into sub-packages:
//
//   - ratelimit: limit arithmetic, the serialized limiter, and guards
//   - storage: decision event log (memory, SQLite, Redis) with retention
//
// # Usage
//
//	specs, err := limits.SpecsFromConfig(cfg.Limiters)
//	manager, err := limits.NewManager(limits.ManagerConfig{
//	    Specs:       specs,
//	    Metrics:     limits.NewMetrics(registry, "throttle"),
//	    CallTimeout: time.Second,
//	})
//	defer manager.Close()
//
//	if err := manager.Hit(ctx, "api"); errors.Is(err, ratelimit.ErrLimited) {
//	    // reject
//	}
//
// # Reloading
//
// Reload starts a complete replacement set before swapping it in. If any
// spec fails to start, the running set is left untouched. Calls that race
// with a reload and reach a stopped limiter are retried once against the
// new set.
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use.
package limits
