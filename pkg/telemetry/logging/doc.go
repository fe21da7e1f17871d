// Package logging provides structured logging on top of log/slog.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Context-aware logging with request IDs and limiter names
//   - Configurable log levels (debug, info, warn, error)
//
// Packages that only need to emit logs accept a *slog.Logger; Logger.Slog
// hands one over, and SetDefault installs it as slog.Default.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	logger.SetDefault()
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "hit admitted", "limiter", "api")
package logging
