package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// blockingBackend holds every Record until release is closed.
type blockingBackend struct {
	*MemoryBackend
	release chan struct{}
}

func (b *blockingBackend) Record(ctx context.Context, e *Event) error {
	<-b.release
	return b.MemoryBackend.Record(ctx, e)
}

type failingBackend struct {
	*MemoryBackend
	mu    sync.Mutex
	calls int
}

func (b *failingBackend) Record(context.Context, *Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return errors.New("disk full")
}

func TestRecorder_WritesDecisions(t *testing.T) {
	backend := NewMemoryBackend(100)
	recorder := NewRecorder(backend, RecorderConfig{})

	for i := 0; i < 10; i++ {
		recorder.Observe(ratelimit.Decision{Limiter: "api", Op: ratelimit.OpHit, Allowed: i < 7, At: baseTime})
	}
	recorder.Close()

	counts, _ := backend.Counts(context.Background(), "api")
	if counts.Allowed != 7 || counts.Rejected != 3 {
		t.Errorf("Expected 7 allowed and 3 rejected, got %+v", counts)
	}
	if recorder.Dropped() != 0 {
		t.Errorf("Expected no drops, got %d", recorder.Dropped())
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	backend := &blockingBackend{MemoryBackend: NewMemoryBackend(100), release: make(chan struct{})}
	recorder := NewRecorder(backend, RecorderConfig{BufferSize: 2})

	// The worker takes at most one event off the queue before blocking,
	// so at most 3 of these can be accepted.
	finished := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			recorder.Observe(ratelimit.Decision{Limiter: "api", Op: ratelimit.OpHit, Allowed: true})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Observe blocked on a full buffer")
	}

	if recorder.Dropped() < 7 {
		t.Errorf("Expected at least 7 drops, got %d", recorder.Dropped())
	}

	close(backend.release)
	recorder.Close()

	if got := uint64(backend.Size()) + recorder.Dropped(); got != 10 {
		t.Errorf("Expected stored+dropped == 10, got %d", got)
	}
}

func TestRecorder_CountsFailures(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend(10)}
	recorder := NewRecorder(backend, RecorderConfig{})

	recorder.Observe(ratelimit.Decision{Limiter: "api", Op: ratelimit.OpAsk, N: 1})
	recorder.Close()

	if recorder.Failed() != 1 {
		t.Errorf("Expected 1 failed write, got %d", recorder.Failed())
	}
}

func TestRecorder_ObserveAfterClose(t *testing.T) {
	recorder := NewRecorder(NewMemoryBackend(10), RecorderConfig{})
	recorder.Close()
	recorder.Close()

	recorder.Observe(ratelimit.Decision{Limiter: "api", Op: ratelimit.OpHit})
	if recorder.Dropped() != 1 {
		t.Errorf("Expected decision after close to be dropped, got %d", recorder.Dropped())
	}
}

func TestRecorder_WithLimiter(t *testing.T) {
	backend := NewMemoryBackend(100)
	recorder := NewRecorder(backend, RecorderConfig{})

	limiter, err := ratelimit.New([]ratelimit.Limit{ratelimit.PerMinute(2)},
		ratelimit.WithName("api"),
		ratelimit.WithObserver(recorder),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = limiter.Hit(ctx)
	}
	if _, err := limiter.Ask(ctx, 1); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	limiter.Stop()
	recorder.Close()

	counts, _ := backend.Counts(ctx, "api")
	if counts.Allowed != 2 || counts.Rejected != 1 || counts.Asks != 1 {
		t.Errorf("Expected 2/1/1, got %+v", counts)
	}

	rejected, _ := backend.Query(ctx, Filter{RejectedOnly: true})
	if len(rejected) != 1 || rejected[0].Limit != "2 requests per minute" {
		t.Errorf("Expected rejection naming the limit, got %+v", rejected)
	}
}
