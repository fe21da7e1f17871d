package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// Manager starts and supervises named limiters.
//
// The Manager is the primary interface for callers that know limiters by
// name. It also implements ratelimit.Observer: every limiter it starts
// reports decisions back to it, and it forwards them to metrics and the
// recorder.
type Manager struct {
	limiters map[string]*ratelimit.Limiter
	order    []string
	closed   bool
	mu       sync.RWMutex

	metrics     *Metrics
	recorder    ratelimit.Observer
	clock       ratelimit.Clock
	callTimeout time.Duration
	base        *slog.Logger
	logger      *slog.Logger
}

// NewManager starts every limiter in cfg.Specs.
// If any spec fails to start, the ones already started are stopped and the
// error is returned.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		metrics:     cfg.Metrics,
		recorder:    cfg.Recorder,
		clock:       cfg.Clock,
		callTimeout: cfg.CallTimeout,
		base:        logger,
		logger:      logger.With("component", "limits.manager"),
	}

	limiters, order, err := m.startAll(cfg.Specs)
	if err != nil {
		return nil, err
	}
	m.limiters = limiters
	m.order = order
	m.metrics.SetLimiters(len(order))

	m.logger.Info("limits manager started", "limiters", len(order))
	return m, nil
}

// startAll starts one limiter per spec. On failure nothing is left running.
func (m *Manager) startAll(specs []ratelimit.ChildSpec) (map[string]*ratelimit.Limiter, []string, error) {
	limiters := make(map[string]*ratelimit.Limiter, len(specs))
	order := make([]string, 0, len(specs))

	stopAll := func() {
		for _, l := range limiters {
			l.Stop()
		}
	}

	for _, spec := range specs {
		if spec.ID == "" {
			stopAll()
			return nil, nil, fmt.Errorf("limiter name cannot be empty")
		}
		if _, dup := limiters[spec.ID]; dup {
			stopAll()
			return nil, nil, fmt.Errorf("duplicate limiter %q", spec.ID)
		}

		spec.Options = append(m.childOptions(), spec.Options...)
		l, err := spec.Start()
		if err != nil {
			stopAll()
			return nil, nil, fmt.Errorf("failed to start limiter %q: %w", spec.ID, err)
		}
		limiters[spec.ID] = l
		order = append(order, spec.ID)
	}

	return limiters, order, nil
}

func (m *Manager) childOptions() []ratelimit.Option {
	opts := []ratelimit.Option{
		ratelimit.WithObserver(m),
		ratelimit.WithLogger(m.base),
	}
	if m.clock != nil {
		opts = append(opts, ratelimit.WithClock(m.clock))
	}
	return opts
}

// Observe forwards a decision to metrics and the recorder.
func (m *Manager) Observe(d ratelimit.Decision) {
	m.metrics.RecordDecision(d)
	if m.recorder != nil {
		m.recorder.Observe(d)
	}
}

// Limiter returns the running limiter for name.
func (m *Manager) Limiter(name string) (*ratelimit.Limiter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	l, ok := m.limiters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLimiter, name)
	}
	return l, nil
}

// Names returns the running limiter names in configured order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.callTimeout)
}

// do runs fn against the named limiter, retrying once when the limiter was
// stopped by a concurrent Reload.
func (m *Manager) do(ctx context.Context, name string, op ratelimit.Op, fn func(context.Context, *ratelimit.Limiter) error) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var l *ratelimit.Limiter
		l, err = m.Limiter(name)
		if err != nil {
			return err
		}

		err = fn(ctx, l)
		if !errors.Is(err, ratelimit.ErrStopped) {
			break
		}
	}

	if errors.Is(err, ratelimit.ErrTimeout) {
		m.metrics.RecordTimeout(name, op)
		m.logger.Warn("limiter call timed out", "limiter", name, "op", op)
	}
	return err
}

// Hit tries to admit one request against the named limiter.
// See ratelimit.Limiter.Hit for the error contract.
func (m *Manager) Hit(ctx context.Context, name string) error {
	return m.do(ctx, name, ratelimit.OpHit, func(ctx context.Context, l *ratelimit.Limiter) error {
		return l.Hit(ctx)
	})
}

// Ask projects the wait before n requests fit in the named limiter.
func (m *Manager) Ask(ctx context.Context, name string, n int64) (time.Duration, error) {
	var wait time.Duration
	err := m.do(ctx, name, ratelimit.OpAsk, func(ctx context.Context, l *ratelimit.Limiter) error {
		var err error
		wait, err = l.Ask(ctx, n)
		return err
	})
	return wait, err
}

// Status returns the settled limits of the named limiter.
func (m *Manager) Status(ctx context.Context, name string) (LimiterInfo, error) {
	info := LimiterInfo{Name: name}
	err := m.do(ctx, name, ratelimit.OpStatus, func(ctx context.Context, l *ratelimit.Limiter) error {
		var err error
		info.Limits, err = l.Status(ctx)
		return err
	})
	return info, err
}

// Hitter returns a ratelimit.Hitter bound to name, resolved on every hit.
func (m *Manager) Hitter(name string) ratelimit.Hitter {
	return namedHitter{m: m, name: name}
}

type namedHitter struct {
	m    *Manager
	name string
}

func (h namedHitter) Hit(ctx context.Context) error {
	return h.m.Hit(ctx, h.name)
}

// Guard runs onAllowed if the named limiter admits one hit, otherwise
// onLimited with the exhausted limit's description.
func Guard[R any](ctx context.Context, m *Manager, name string, onLimited func(limit string) R, onAllowed func() R) (R, error) {
	return ratelimit.LazyGuard(ctx, m.Hitter(name), onLimited, onAllowed)
}

// Reload replaces the running limiters with ones started from specs.
//
// The new set is started first; on error the current set keeps running and
// the error is returned. Replaced limiters start with full buckets.
func (m *Manager) Reload(specs []ratelimit.ChildSpec) error {
	limiters, order, err := m.startAll(specs)
	if err != nil {
		m.logger.Error("reload rejected, keeping current limiters", "error", err)
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		for _, l := range limiters {
			l.Stop()
		}
		return ErrClosed
	}
	old := m.limiters
	m.limiters = limiters
	m.order = order
	m.mu.Unlock()

	for _, l := range old {
		l.Stop()
	}
	m.metrics.SetLimiters(len(order))

	m.logger.Info("limiters reloaded", "limiters", len(order))
	return nil
}

// Close stops every limiter. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	old := m.limiters
	m.limiters = nil
	m.order = nil
	m.mu.Unlock()

	for _, l := range old {
		l.Stop()
	}
	m.metrics.SetLimiters(0)

	m.logger.Info("limits manager closed")
	return nil
}
