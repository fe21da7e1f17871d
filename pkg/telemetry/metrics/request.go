package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks HTTP requests served by the throttle API.
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with registry.
func NewRequestMetrics(namespace string, registry prometheus.Registerer) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				// Limiter round trips are sub-millisecond unless the mailbox backs up.
				Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25, 1},
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration)
	return rm
}

// RecordRequest records one completed request.
func (rm *RequestMetrics) RecordRequest(route string, code int, duration time.Duration) {
	if rm == nil {
		return
	}
	rm.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	rm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
