package storage

import (
	"context"
	"fmt"

	"mercator-hq/throttle/pkg/config"
)

// Open builds the backend selected by cfg.Backend. It returns a nil Backend
// for "none".
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "", "memory":
		return NewMemoryBackend(cfg.Memory.MaxEvents), nil
	case "sqlite":
		return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
			DBPath:      cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	case "redis":
		return DialRedisBackend(ctx, RedisBackendConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
