// Package storage records rate limiter decisions.
//
// # Overview
//
// Every hit and ask processed by a limiter can be captured as an Event and
// written to a Backend for auditing and reporting:
//
//   - Memory: bounded in-process ring (default, no persistence)
//   - SQLite: file-based event log using modernc.org/sqlite or mattn/go-sqlite3
//   - Redis: per-limiter counters and a capped list of recent events
//
// Events are history only. Limiter token state is never read back from
// storage; a restarted limiter always starts with full buckets.
//
// # Usage
//
//	backend := storage.NewMemoryBackend(10000)
//	recorder := storage.NewRecorder(backend, storage.RecorderConfig{})
//	defer recorder.Close()
//
//	limiter, _ := ratelimit.New(limits, ratelimit.WithObserver(recorder))
//
//	counts, _ := backend.Counts(ctx, "api")
//
// # Thread Safety
//
// All backends are safe for concurrent use. The Recorder never blocks the
// limiter goroutine: when its buffer is full, events are dropped and
// counted.
package storage
