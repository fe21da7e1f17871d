package storage

import (
	"context"
	"path/filepath"
	"testing"

	"mercator-hq/throttle/pkg/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		backend, err := Open(ctx, config.StorageConfig{Backend: "none"})
		if err != nil || backend != nil {
			t.Errorf("Expected nil backend, got %v, %v", backend, err)
		}
	})

	t.Run("memory", func(t *testing.T) {
		backend, err := Open(ctx, config.StorageConfig{
			Backend: "memory",
			Memory:  config.MemoryStorageConfig{MaxEvents: 7},
		})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		mem, ok := backend.(*MemoryBackend)
		if !ok || mem.max != 7 {
			t.Errorf("Expected 7-event memory backend, got %#v", backend)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		backend, err := Open(ctx, config.StorageConfig{
			Backend: "sqlite",
			SQLite:  config.SQLiteStorageConfig{Path: filepath.Join(t.TempDir(), "events.db")},
		})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer backend.Close()
		if _, ok := backend.(*SQLiteBackend); !ok {
			t.Errorf("Expected SQLite backend, got %T", backend)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := Open(ctx, config.StorageConfig{Backend: "postgres"}); err == nil {
			t.Error("Expected error for unknown backend")
		}
	})
}
