package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubHitter struct {
	err   error
	calls int
}

func (s *stubHitter) Hit(context.Context) error {
	s.calls++
	return s.err
}

func TestLazyGuard_Allowed(t *testing.T) {
	limiter, _ := newTestLimiter(t, PerSecond(1))

	got, err := LazyGuard(context.Background(), limiter,
		func(limit string) string { return "limited: " + limit },
		func() string { return "allowed" },
	)
	if err != nil {
		t.Fatalf("LazyGuard failed: %v", err)
	}
	if got != "allowed" {
		t.Errorf("Expected allowed, got %q", got)
	}
}

func TestLazyGuard_LimitedSkipsAllowed(t *testing.T) {
	limiter, _ := newTestLimiter(t, PerSecond(1))
	countHits(t, limiter, 1)

	allowedCalls := 0
	got, err := LazyGuard(context.Background(), limiter,
		func(limit string) string { return "limited: " + limit },
		func() string {
			allowedCalls++
			return "allowed"
		},
	)
	if err != nil {
		t.Fatalf("LazyGuard failed: %v", err)
	}
	if got != "limited: 1 requests per second" {
		t.Errorf("Expected limited branch, got %q", got)
	}
	if allowedCalls != 0 {
		t.Errorf("Expected onAllowed never called, got %d calls", allowedCalls)
	}
}

func TestLazyGuard_SingleHit(t *testing.T) {
	stub := &stubHitter{err: &LimitedError{Description: "5 requests per minute"}}

	_, _ = LazyGuard(context.Background(), stub,
		func(string) int { return 0 },
		func() int { return 1 },
	)
	if stub.calls != 1 {
		t.Errorf("Expected exactly 1 hit, got %d", stub.calls)
	}
}

func TestLazyGuard_TimeoutIsNotADenial(t *testing.T) {
	stub := &stubHitter{err: &TimeoutError{Op: OpHit, Err: context.DeadlineExceeded}}

	called := false
	got, err := LazyGuard(context.Background(), stub,
		func(string) int { called = true; return -1 },
		func() int { called = true; return 1 },
	)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
	if called {
		t.Error("Expected neither branch to run on timeout")
	}
	if got != 0 {
		t.Errorf("Expected zero value, got %d", got)
	}
}

func TestGuardTimeout(t *testing.T) {
	limiter, _ := newTestLimiter(t, PerMinute(2))

	results := make([]bool, 0, 3)
	for i := 0; i < 3; i++ {
		ok, err := GuardTimeout(limiter, time.Second,
			func(string) bool { return false },
			func() bool { return true },
		)
		if err != nil {
			t.Fatalf("GuardTimeout failed: %v", err)
		}
		results = append(results, ok)
	}

	if !results[0] || !results[1] || results[2] {
		t.Errorf("Expected [true true false], got %v", results)
	}
}
