package config

import (
	"os"
	"time"
)

// Config is the root configuration structure for the throttle service.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Limiters lists the named limiters to run.
	Limiters []LimiterConfig `yaml:"limiters"`

	// Storage configures where limiter decisions are recorded.
	Storage StorageConfig `yaml:"storage"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on a
	// keep-alive connection.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds each hit or ask call to a limiter.
	// Default: 1s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxInFlight caps concurrent requests; excess requests get 503.
	// Default: 0 (unlimited)
	MaxInFlight int `yaml:"max_in_flight"`

	// TLS serves HTTPS instead of plain HTTP.
	TLS TLSConfig `yaml:"tls"`

	// Auth requires an API key on the /v1 limiter routes.
	Auth AuthConfig `yaml:"auth"`
}

// TLSConfig configures HTTPS.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM files. They are re-read when either
	// changes on disk.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ClientCAFile enables client certificate verification against the
	// PEM CA bundle it names.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuth applies when ClientCAFile is set.
	// Options: "require", "request", "verify_if_given"
	// Default: "require"
	ClientAuth string `yaml:"client_auth"`
}

// AuthConfig configures API key authentication.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// Keys lists the accepted keys. Clients send one as
	// "Authorization: Bearer <key>" or in the X-API-Key header.
	Keys []APIKeyConfig `yaml:"keys"`
}

// APIKeyConfig is one accepted API key.
type APIKeyConfig struct {
	// Name identifies the client in logs.
	Name string `yaml:"name"`

	// Key is the secret. KeyEnv names an environment variable to read it
	// from instead.
	Key    string `yaml:"key"`
	KeyEnv string `yaml:"key_env"`

	// Disabled keys are rejected.
	Disabled bool `yaml:"disabled"`
}

// Secret returns the key, resolving KeyEnv when Key is empty.
func (k APIKeyConfig) Secret() string {
	if k.Key == "" && k.KeyEnv != "" {
		return os.Getenv(k.KeyEnv)
	}
	return k.Key
}

// LimiterConfig describes one named limiter.
type LimiterConfig struct {
	// Name identifies the limiter in the API, logs, and metrics.
	Name string `yaml:"name"`

	// Limits are enforced in order; the first exhausted one is reported.
	// Each entry is "<hits>/<period>", e.g. "10/s", "15/5m", "100/hour".
	Limits []string `yaml:"limits"`

	// BurstOverrides maps a limit entry, exactly as written in Limits, to
	// a bucket capacity other than its hit count.
	BurstOverrides map[string]int64 `yaml:"burst_overrides"`
}

// StorageConfig configures the decision event log.
type StorageConfig struct {
	// Backend selects the event store.
	// Options: "memory", "sqlite", "redis", "none"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Memory configures the in-process ring.
	Memory MemoryStorageConfig `yaml:"memory"`

	// SQLite configures the SQLite event log.
	SQLite SQLiteStorageConfig `yaml:"sqlite"`

	// Redis configures the Redis event log.
	Redis RedisStorageConfig `yaml:"redis"`

	// Recorder configures the async writer between limiters and the backend.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention configures periodic pruning of old events.
	Retention RetentionConfig `yaml:"retention"`
}

// MemoryStorageConfig configures the memory backend.
type MemoryStorageConfig struct {
	// MaxEvents is the ring size.
	// Default: 10000
	MaxEvents int `yaml:"max_events"`
}

// SQLiteStorageConfig configures the SQLite backend.
type SQLiteStorageConfig struct {
	// Path is the database file.
	// Default: "data/throttle.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver name.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisStorageConfig configures the Redis backend.
type RedisStorageConfig struct {
	// Address is "host:port".
	// Default: "127.0.0.1:6379"
	Address string `yaml:"address"`

	// Password for AUTH. Empty disables AUTH.
	Password string `yaml:"password"`

	// DB is the logical database number.
	DB int `yaml:"db"`

	// Prefix namespaces every key.
	// Default: "throttle"
	Prefix string `yaml:"prefix"`

	// TTL expires per-minute counters.
	// Default: 24h
	TTL time.Duration `yaml:"ttl"`
}

// RecorderConfig configures the async decision recorder.
type RecorderConfig struct {
	// BufferSize is the number of queued decisions before dropping.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds each backend write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig configures event pruning.
type RetentionConfig struct {
	// MaxAge is how long events are kept. Zero keeps everything.
	// Default: 168h (7 days)
	MaxAge time.Duration `yaml:"max_age"`

	// Schedule is a standard cron expression for pruning runs.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled exposes metrics on the HTTP server.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "throttle"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled exports a span per HTTP request.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler picks which new traces are recorded. Incoming sampled
	// parents are always honored.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction sampled by the "ratio" sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as service.name.
	// Default: "throttle"
	ServiceName string `yaml:"service_name"`
}
