package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/throttle/pkg/config"
)

// DefaultNamespace is used when the config leaves Namespace empty.
const DefaultNamespace = "throttle"

// Collector holds the process-wide registry and HTTP request metrics.
type Collector struct {
	namespace string
	registry  *prometheus.Registry
	requests  *RequestMetrics
}

// NewCollector creates a registry with runtime, process, and HTTP request
// collectors registered.
func NewCollector(cfg config.MetricsConfig) *Collector {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	return &Collector{
		namespace: namespace,
		registry:  registry,
		requests:  NewRequestMetrics(namespace, registry),
	}
}

// Registry returns the registry for additional collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Namespace returns the metric name prefix.
func (c *Collector) Namespace() string {
	return c.namespace
}

// Requests returns the HTTP request metrics.
func (c *Collector) Requests() *RequestMetrics {
	return c.requests
}
