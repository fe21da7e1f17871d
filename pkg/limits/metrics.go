package limits

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// Metrics contains Prometheus metrics for limiter decisions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	hits       *prometheus.CounterVec
	rejections *prometheus.CounterVec
	asks       *prometheus.CounterVec
	askWait    *prometheus.HistogramVec
	timeouts   *prometheus.CounterVec
	limiters   prometheus.Gauge
}

// NewMetrics registers the limiter collectors on reg under namespace.
// A nil reg uses a private registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		hits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hits_total",
				Help:      "Total number of hits by outcome",
			},
			[]string{"limiter", "result"},
		),

		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Total number of rejected hits by exhausted limit",
			},
			[]string{"limiter", "limit"},
		),

		asks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asks_total",
				Help:      "Total number of wait projections",
			},
			[]string{"limiter"},
		),

		askWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ask_wait_seconds",
				Help:      "Projected wait returned by asks in seconds",
				Buckets:   []float64{0, 0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 3600},
			},
			[]string{"limiter"},
		),

		timeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "call_timeouts_total",
				Help:      "Total number of calls abandoned before the limiter replied",
			},
			[]string{"limiter", "op"},
		),

		limiters: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "limiters",
				Help:      "Number of running limiters",
			},
		),
	}
}

// RecordDecision records a hit or ask outcome.
func (m *Metrics) RecordDecision(d ratelimit.Decision) {
	if m == nil {
		return
	}

	switch d.Op {
	case ratelimit.OpHit:
		result := "allowed"
		if !d.Allowed {
			result = "rejected"
			m.rejections.WithLabelValues(d.Limiter, d.Limit).Inc()
		}
		m.hits.WithLabelValues(d.Limiter, result).Inc()
	case ratelimit.OpAsk:
		m.asks.WithLabelValues(d.Limiter).Inc()
		m.askWait.WithLabelValues(d.Limiter).Observe(d.Wait.Seconds())
	}
}

// RecordTimeout records a call the caller gave up on.
func (m *Metrics) RecordTimeout(limiter string, op ratelimit.Op) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(limiter, string(op)).Inc()
}

// SetLimiters sets the running limiter count.
func (m *Metrics) SetLimiters(n int) {
	if m == nil {
		return
	}
	m.limiters.Set(float64(n))
}
