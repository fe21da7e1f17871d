package limits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits/ratelimit"
)

func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *ratelimit.ManualClock) {
	t.Helper()

	clock := ratelimit.NewManualClock(0)
	if cfg.Clock == nil {
		cfg.Clock = clock
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, clock
}

func hits(t *testing.T, m *Manager, name string, n int) int {
	t.Helper()

	admitted := 0
	for i := 0; i < n; i++ {
		err := m.Hit(context.Background(), name)
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, ratelimit.ErrLimited):
		default:
			t.Fatalf("Unexpected hit error: %v", err)
		}
	}
	return admitted
}

// drain waits until every decision already made by name has been observed.
// The limiter handles one message at a time, so a Status reply means the
// previous decision's observers have returned.
func drain(t *testing.T, m *Manager, name string) {
	t.Helper()
	if _, err := m.Status(context.Background(), name); err != nil {
		t.Fatalf("Status failed: %v", err)
	}
}

// ============================================================================
// Routing Tests
// ============================================================================

func TestManager_RoutesByName(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerMinute(3)}),
			ratelimit.NewChildSpec("batch", []ratelimit.Limit{ratelimit.PerMinute(1)}),
		},
	})

	if got := hits(t, m, "api", 5); got != 3 {
		t.Errorf("Expected api to admit 3, got %d", got)
	}
	if got := hits(t, m, "batch", 5); got != 1 {
		t.Errorf("Expected batch to admit 1, got %d", got)
	}

	names := m.Names()
	if len(names) != 2 || names[0] != "api" || names[1] != "batch" {
		t.Errorf("Expected [api batch], got %v", names)
	}
}

func TestManager_UnknownLimiter(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})

	if err := m.Hit(context.Background(), "missing"); !errors.Is(err, ErrUnknownLimiter) {
		t.Errorf("Expected ErrUnknownLimiter from Hit, got %v", err)
	}
	if _, err := m.Ask(context.Background(), "missing", 1); !errors.Is(err, ErrUnknownLimiter) {
		t.Errorf("Expected ErrUnknownLimiter from Ask, got %v", err)
	}
}

func TestManager_Ask(t *testing.T) {
	m, clock := newTestManager(t, ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(10)}),
		},
	})

	hits(t, m, "api", 10)
	clock.Advance(50 * time.Millisecond)

	wait, err := m.Ask(context.Background(), "api", 3)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	// One missing token costs the elapsed time, each further one a refill.
	if want := 50*time.Millisecond + 2*100*time.Millisecond; wait != want {
		t.Errorf("Expected wait %v, got %v", want, wait)
	}
}

func TestManager_StartFailureStopsStarted(t *testing.T) {
	_, err := NewManager(ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(1)}),
			ratelimit.NewChildSpec("bad", []ratelimit.Limit{ratelimit.PerSecond(0)}),
		},
	})
	if !errors.Is(err, ratelimit.ErrInvalidLimit) {
		t.Errorf("Expected ErrInvalidLimit, got %v", err)
	}

	_, err = NewManager(ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", nil),
			ratelimit.NewChildSpec("api", nil),
		},
	})
	if err == nil {
		t.Error("Expected error for duplicate names")
	}
}

func TestGuard(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerHour(1)}),
		},
	})

	handle := func() (int, error) {
		return Guard(context.Background(), m, "api",
			func(limit string) int { return 429 },
			func() int { return 200 },
		)
	}

	if code, err := handle(); err != nil || code != 200 {
		t.Errorf("Expected 200, got %d (%v)", code, err)
	}
	if code, err := handle(); err != nil || code != 429 {
		t.Errorf("Expected 429, got %d (%v)", code, err)
	}

	_, err := Guard(context.Background(), m, "missing",
		func(string) int { return 429 },
		func() int { return 200 },
	)
	if !errors.Is(err, ErrUnknownLimiter) {
		t.Errorf("Expected ErrUnknownLimiter, got %v", err)
	}
}

// ============================================================================
// Reload Tests
// ============================================================================

func TestManager_Reload(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerHour(2)}),
		},
	})

	hits(t, m, "api", 2)
	old, _ := m.Limiter("api")

	err := m.Reload([]ratelimit.ChildSpec{
		ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerHour(5)}),
		ratelimit.NewChildSpec("new", nil),
	})
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	select {
	case <-old.Done():
	case <-time.After(time.Second):
		t.Error("Expected replaced limiter to be stopped")
	}

	if got := hits(t, m, "api", 10); got != 5 {
		t.Errorf("Expected fresh bucket of 5 after reload, got %d", got)
	}
	if got := hits(t, m, "new", 10); got != 10 {
		t.Errorf("Expected limiter without limits to admit all, got %d", got)
	}
}

func TestManager_ReloadFailureKeepsCurrentSet(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerHour(2)}),
		},
	})
	hits(t, m, "api", 2)

	err := m.Reload([]ratelimit.ChildSpec{
		ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerHour(100)}),
		ratelimit.NewChildSpec("bad", []ratelimit.Limit{ratelimit.PerMinutes(1, 0)}),
	})
	if !errors.Is(err, ratelimit.ErrInvalidLimit) {
		t.Fatalf("Expected ErrInvalidLimit, got %v", err)
	}

	if names := m.Names(); len(names) != 1 || names[0] != "api" {
		t.Errorf("Expected original names kept, got %v", names)
	}
	if got := hits(t, m, "api", 1); got != 0 {
		t.Errorf("Expected original exhausted state kept, got %d admitted", got)
	}
}

func TestManager_Close(t *testing.T) {
	m, err := NewManager(ManagerConfig{
		Specs: []ratelimit.ChildSpec{ratelimit.NewChildSpec("api", nil)},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	l, _ := m.Limiter("api")
	m.Close()
	m.Close()

	select {
	case <-l.Done():
	default:
		t.Error("Expected limiter stopped after Close")
	}
	if err := m.Hit(context.Background(), "api"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := m.Reload(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Reload, got %v", err)
	}
}

// ============================================================================
// Observer Fan-out Tests
// ============================================================================

func TestManager_Metrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry(), "throttle")
	m, _ := newTestManager(t, ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(10), ratelimit.PerMinute(2)}),
		},
		Metrics: metrics,
	})

	hits(t, m, "api", 5)
	if _, err := m.Ask(context.Background(), "api", 1); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	drain(t, m, "api")

	if got := testutil.ToFloat64(metrics.hits.WithLabelValues("api", "allowed")); got != 2 {
		t.Errorf("Expected 2 allowed, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.hits.WithLabelValues("api", "rejected")); got != 3 {
		t.Errorf("Expected 3 rejected, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.rejections.WithLabelValues("api", "2 requests per minute")); got != 3 {
		t.Errorf("Expected 3 rejections on the minute limit, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.asks.WithLabelValues("api")); got != 1 {
		t.Errorf("Expected 1 ask, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.limiters); got != 1 {
		t.Errorf("Expected limiters gauge 1, got %v", got)
	}
}

func TestManager_RecorderAndTimeout(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var decisions []ratelimit.Decision

	recorder := ratelimit.ObserverFunc(func(d ratelimit.Decision) {
		decisions = append(decisions, d)
		if len(decisions) == 1 {
			entered <- struct{}{}
			<-release
		}
	})

	metrics := NewMetrics(nil, "throttle")
	m, _ := newTestManager(t, ManagerConfig{
		Specs: []ratelimit.ChildSpec{
			ratelimit.NewChildSpec("api", []ratelimit.Limit{ratelimit.PerSecond(10)}),
		},
		Metrics:     metrics,
		Recorder:    recorder,
		CallTimeout: 50 * time.Millisecond,
	})

	// The first hit is answered, then its observer stalls the limiter.
	if err := m.Hit(context.Background(), "api"); err != nil {
		t.Fatalf("First hit failed: %v", err)
	}
	<-entered

	err := m.Hit(context.Background(), "api")
	if !errors.Is(err, ratelimit.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.timeouts.WithLabelValues("api", "hit")); got != 1 {
		t.Errorf("Expected 1 timeout recorded, got %v", got)
	}

	close(release)
	drain(t, m, "api")

	if len(decisions) != 1 || decisions[0].Limiter != "api" || !decisions[0].Allowed {
		t.Errorf("Expected the admitted hit recorded, got %+v", decisions)
	}
}

// ============================================================================
// Config Conversion Tests
// ============================================================================

func TestSpecsFromConfig(t *testing.T) {
	specs, err := SpecsFromConfig([]config.LimiterConfig{
		{
			Name:           "api",
			Limits:         []string{"10/s", "15/m"},
			BurstOverrides: map[string]int64{"10/s": 20},
		},
		{Name: "open"},
	})
	if err != nil {
		t.Fatalf("SpecsFromConfig failed: %v", err)
	}

	if len(specs) != 2 || specs[0].ID != "api" || specs[1].ID != "open" {
		t.Fatalf("Expected specs [api open], got %+v", specs)
	}
	api := specs[0].Limits
	if len(api) != 2 || api[0].Description() != "10 requests per second" {
		t.Errorf("Expected configured order kept, got %v", api)
	}
	if api[0].Burst() != 20 || api[1].Burst() != 15 {
		t.Errorf("Expected burst override on first limit only, got %d and %d", api[0].Burst(), api[1].Burst())
	}

	if _, err := SpecsFromConfig([]config.LimiterConfig{{Name: "x", Limits: []string{"nope"}}}); err == nil {
		t.Error("Expected error for unparsable limit")
	}
}
