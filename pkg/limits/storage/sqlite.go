package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteBackend implements Backend using SQLite for persistence.
//
// The database runs in WAL mode with a single open connection, and the WAL
// is checkpointed periodically in the background.
type SQLiteBackend struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once

	insertStmt  *sql.Stmt
	countsStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// Driver selects the database/sql driver: "sqlite" (modernc.org/sqlite)
	// or "sqlite3" (mattn/go-sqlite3, requires cgo).
	// Default: "sqlite"
	Driver string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer, and per-connection pragmas
	// below must apply to every query.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	backend := &SQLiteBackend{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decision_events (
		id TEXT PRIMARY KEY,
		limiter TEXT NOT NULL,
		op TEXT NOT NULL,
		allowed INTEGER NOT NULL,
		limit_desc TEXT NOT NULL DEFAULT '',
		n INTEGER NOT NULL DEFAULT 0,
		wait_ns INTEGER NOT NULL DEFAULT 0,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_limiter_at ON decision_events(limiter, at);
	CREATE INDEX IF NOT EXISTS idx_events_at ON decision_events(at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO decision_events (id, limiter, op, allowed, limit_desc, n, wait_ns, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.countsStmt, err = s.db.Prepare(`
		SELECT
			COALESCE(SUM(CASE WHEN op = 'hit' AND allowed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN op = 'hit' AND allowed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN op = 'ask' THEN 1 ELSE 0 END), 0)
		FROM decision_events
		WHERE limiter = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare counts statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`DELETE FROM decision_events WHERE at < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// Record inserts an event.
func (s *SQLiteBackend) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Limiter == "" {
		return fmt.Errorf("limiter cannot be empty")
	}

	_, err := s.insertStmt.ExecContext(ctx,
		event.ID,
		event.Limiter,
		event.Op,
		event.Allowed,
		event.Limit,
		event.N,
		int64(event.Wait),
		event.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *SQLiteBackend) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.Limiter != "" {
		where = append(where, "limiter = ?")
		args = append(args, filter.Limiter)
	}
	if !filter.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		where = append(where, "at < ?")
		args = append(args, filter.Until.UnixNano())
	}
	if filter.RejectedOnly {
		where = append(where, "op = 'hit' AND allowed = 0")
	}

	query := "SELECT id, limiter, op, allowed, limit_desc, n, wait_ns, at FROM decision_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, rowid DESC LIMIT ?"
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e      Event
			waitNs int64
			atNs   int64
		)
		if err := rows.Scan(&e.ID, &e.Limiter, &e.Op, &e.Allowed, &e.Limit, &e.N, &waitNs, &atNs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Wait = time.Duration(waitNs)
		e.At = time.Unix(0, atNs)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

// Counts aggregates all stored events for limiter.
func (s *SQLiteBackend) Counts(ctx context.Context, limiter string) (*Counts, error) {
	counts := &Counts{Limiter: limiter}
	err := s.countsStmt.QueryRowContext(ctx, limiter).Scan(&counts.Allowed, &counts.Rejected, &counts.Asks)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	return counts, nil
}

// Cleanup removes events recorded before olderThan.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Ping verifies the database connection.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{s.insertStmt, s.countsStmt, s.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
