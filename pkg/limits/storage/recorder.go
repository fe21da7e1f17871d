package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// Recorder writes limiter decisions to a Backend asynchronously.
//
// Recorder implements ratelimit.Observer. Observe never blocks: when the
// buffer is full the decision is dropped and counted.
type Recorder struct {
	backend Backend
	config  RecorderConfig
	logger  *slog.Logger

	events  chan *Event
	dropped atomic.Uint64
	failed  atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// BufferSize is the number of decisions queued before dropping.
	// Default: 1000
	BufferSize int

	// WriteTimeout bounds each backend write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewRecorder starts a recorder writing to backend.
func NewRecorder(backend Backend, cfg RecorderConfig) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		backend: backend,
		config:  cfg,
		logger:  logger.With("component", "storage.recorder"),
		events:  make(chan *Event, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Observe queues d for recording.
func (r *Recorder) Observe(d ratelimit.Decision) {
	select {
	case <-r.done:
		r.dropped.Add(1)
		return
	default:
	}

	select {
	case r.events <- NewEvent(d):
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("recorder buffer full, dropping decisions",
				"buffer_size", r.config.BufferSize,
			)
		}
	}
}

// Dropped returns the number of decisions discarded because the buffer was
// full or the recorder was closed.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Failed returns the number of backend writes that returned an error.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

// Close stops accepting decisions, drains the queue, and waits for the
// worker to finish. It does not close the backend.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case e := <-r.events:
			r.write(e)
		case <-r.done:
			for {
				select {
				case e := <-r.events:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.backend.Record(ctx, e); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to record decision",
			"limiter", e.Limiter,
			"event_id", e.ID,
			"error", err,
		)
	}
}
