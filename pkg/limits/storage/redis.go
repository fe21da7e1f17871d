package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend on Redis.
//
// Keys, all under the configured prefix:
//
//	<prefix>:limiters                   set of limiter names
//	<prefix>:counts:<limiter>           hash of cumulative allowed/rejected/asks
//	<prefix>:minute:<limiter>:<minute>  hash of per-minute outcomes, expires after TTL
//	<prefix>:events:<limiter>           list of recent events as JSON, newest first
//
// Counts are cumulative and unaffected by Cleanup, which trims only the
// event lists.
type RedisBackend struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	maxEvents int64
	ownClient bool
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithRedisPrefix sets the key prefix. Default: "throttle".
func WithRedisPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) { b.prefix = strings.Trim(prefix, ":") }
}

// WithRedisTTL sets the expiry of per-minute buckets. Zero disables expiry.
func WithRedisTTL(d time.Duration) RedisOption {
	return func(b *RedisBackend) { b.ttl = d }
}

// WithRedisMaxEvents caps each limiter's event list.
func WithRedisMaxEvents(n int) RedisOption {
	return func(b *RedisBackend) {
		if n > 0 {
			b.maxEvents = int64(n)
		}
	}
}

// NewRedisBackend wraps an existing client. The caller keeps ownership of rdb.
func NewRedisBackend(rdb *redis.Client, opts ...RedisOption) *RedisBackend {
	b := &RedisBackend{
		rdb:       rdb,
		prefix:    "throttle",
		ttl:       24 * time.Hour,
		maxEvents: DefaultMaxEvents,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RedisBackendConfig configures a RedisBackend that owns its client.
type RedisBackendConfig struct {
	Address   string
	Password  string
	DB        int
	Prefix    string
	TTL       time.Duration
	MaxEvents int
}

// DialRedisBackend connects to Redis and verifies the connection with PING.
// Close on the returned backend also closes the client.
func DialRedisBackend(ctx context.Context, cfg RedisBackendConfig) (*RedisBackend, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	opts := []RedisOption{WithRedisTTL(cfg.TTL), WithRedisMaxEvents(cfg.MaxEvents)}
	if cfg.Prefix != "" {
		opts = append(opts, WithRedisPrefix(cfg.Prefix))
	}
	b := NewRedisBackend(rdb, opts...)
	b.ownClient = true
	return b, nil
}

func (b *RedisBackend) key(parts ...string) string {
	return b.prefix + ":" + strings.Join(parts, ":")
}

func outcomeField(e *Event) string {
	switch {
	case e.Op == "ask":
		return "asks"
	case e.Allowed:
		return "allowed"
	default:
		return "rejected"
	}
}

// Record updates the counters and pushes the event onto its limiter's list
// in a single pipeline.
func (b *RedisBackend) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Limiter == "" {
		return fmt.Errorf("limiter cannot be empty")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	field := outcomeField(event)
	bucketKey := b.key("minute", event.Limiter, event.At.UTC().Format("200601021504"))
	eventsKey := b.key("events", event.Limiter)

	pipe := b.rdb.Pipeline()
	pipe.SAdd(ctx, b.key("limiters"), event.Limiter)
	pipe.HIncrBy(ctx, b.key("counts", event.Limiter), field, 1)
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if b.ttl > 0 {
		pipe.Expire(ctx, bucketKey, b.ttl)
	}
	pipe.LPush(ctx, eventsKey, payload)
	pipe.LTrim(ctx, eventsKey, 0, b.maxEvents-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func (b *RedisBackend) limiters(ctx context.Context, only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}
	names, err := b.rdb.SMembers(ctx, b.key("limiters")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list limiters: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *RedisBackend) events(ctx context.Context, limiter string) ([]*Event, error) {
	raw, err := b.rdb.LRange(ctx, b.key("events", limiter), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events for %s: %w", limiter, err)
	}

	events := make([]*Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, &e)
	}
	return events, nil
}

// Query returns matching events, newest first.
func (b *RedisBackend) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	names, err := b.limiters(ctx, filter.Limiter)
	if err != nil {
		return nil, err
	}

	var out []*Event
	for _, name := range names {
		events, err := b.events(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if filter.matches(e) {
				out = append(out, e)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if limit := filter.limit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Counts returns the cumulative counters for limiter.
func (b *RedisBackend) Counts(ctx context.Context, limiter string) (*Counts, error) {
	counts := &Counts{Limiter: limiter}

	vals, err := b.rdb.HGetAll(ctx, b.key("counts", limiter)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read counts: %w", err)
	}

	for field, dst := range map[string]*int64{
		"allowed":  &counts.Allowed,
		"rejected": &counts.Rejected,
		"asks":     &counts.Asks,
	} {
		if v, ok := vals[field]; ok {
			if _, err := fmt.Sscan(v, dst); err != nil {
				return nil, fmt.Errorf("invalid %s counter %q: %w", field, v, err)
			}
		}
	}
	return counts, nil
}

// Cleanup trims events recorded before olderThan from every list.
func (b *RedisBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	names, err := b.limiters(ctx, "")
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, name := range names {
		events, err := b.events(ctx, name)
		if err != nil {
			return deleted, err
		}

		// Lists are newest first, so everything from the first old event on
		// is expired.
		keep := len(events)
		for i, e := range events {
			if e.At.Before(olderThan) {
				keep = i
				break
			}
		}
		if keep == len(events) {
			continue
		}

		eventsKey := b.key("events", name)
		if keep == 0 {
			err = b.rdb.Del(ctx, eventsKey).Err()
		} else {
			err = b.rdb.LTrim(ctx, eventsKey, 0, int64(keep-1)).Err()
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to trim events for %s: %w", name, err)
		}
		deleted += len(events) - keep
	}
	return deleted, nil
}

// Ping checks the Redis connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close closes the client if the backend created it.
func (b *RedisBackend) Close() error {
	if b.ownClient {
		return b.rdb.Close()
	}
	return nil
}
