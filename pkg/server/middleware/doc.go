// Package middleware provides HTTP middleware for the throttle server.
//
// The server chains them as:
//
//	handler = RequestID(Recovery(Logging(mux)))
//
// RequestID runs first so both Recovery and Logging see the request ID.
//
//   - RequestID: propagate X-Request-ID or generate a UUID, and store it in
//     the request context for logging
//   - Logging: log method, path, status, and latency with log/slog
//   - Recovery: turn handler panics into a JSON 500 response
//
// Limit is not part of the default chain. It guards an arbitrary handler
// with a rate limiter and answers 429 when the limiter rejects the request.
package middleware
