// Throttle serves named token-bucket rate limiters over HTTP.
//
// Each limiter enforces an ordered list of limits such as "10/s" and
// "15/m" on its own goroutine. Decisions are exported as Prometheus metrics
// and optionally recorded to memory, SQLite, or Redis.
//
// Usage:
//
//	# Start the server
//	throttle serve --config throttle.yaml
//
//	# Check a configuration file
//	throttle validate --config throttle.yaml
//
//	# Offer 200 req/s against a 50/s limit for ten seconds
//	throttle bench --limit 50/s --rps 200 --duration 10s
//
//	# Show recent rejections from the event log
//	throttle events --limiter api --rejected
package main

func main() {
	Execute()
}
