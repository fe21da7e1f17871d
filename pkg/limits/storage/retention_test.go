package storage

import (
	"context"
	"testing"
	"time"
)

func TestRetentionScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		maxAge      time.Duration
		wantRunning bool
		wantError   bool
	}{
		{"valid daily schedule", "0 3 * * *", 24 * time.Hour, true, false},
		{"every 15 minutes", "*/15 * * * *", time.Hour, true, false},
		{"empty schedule", "", time.Hour, false, false},
		{"no max age", "0 3 * * *", 0, false, false},
		{"invalid schedule", "invalid cron", time.Hour, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := NewRetentionScheduler(NewMemoryBackend(10), tt.maxAge, tt.schedule, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := scheduler.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", scheduler.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning {
				if next := scheduler.NextRun(); next == nil || !next.After(time.Now()) {
					t.Errorf("Expected a future NextRun, got %v", next)
				}
			}

			scheduler.Stop()
			if scheduler.IsRunning() {
				t.Error("Expected scheduler stopped")
			}
		})
	}
}

func TestRetentionScheduler_Prune(t *testing.T) {
	backend := NewMemoryBackend(10)
	ctx := context.Background()

	for _, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		if err := backend.Record(ctx, hitEvent("api", true, baseTime.Add(-age))); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	scheduler := NewRetentionScheduler(backend, 24*time.Hour, "0 3 * * *", nil)
	deleted, err := scheduler.Prune(ctx, baseTime)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}
	if backend.Size() != 1 {
		t.Errorf("Expected 1 remaining, got %d", backend.Size())
	}
}

func TestRetentionScheduler_StopsOnContextCancel(t *testing.T) {
	scheduler := NewRetentionScheduler(NewMemoryBackend(10), time.Hour, "0 3 * * *", nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for scheduler.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if scheduler.IsRunning() {
		t.Error("Expected scheduler to stop after context cancel")
	}
}
