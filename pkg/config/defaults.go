package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = time.Second
	DefaultTLSMinVersion   = "1.3"
	DefaultTLSClientAuth   = "require"

	// Storage defaults
	DefaultStorageBackend       = "memory"
	DefaultMemoryMaxEvents      = 10000
	DefaultSQLitePath           = "data/throttle.db"
	DefaultSQLiteDriver         = "sqlite"
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultRedisAddress         = "127.0.0.1:6379"
	DefaultRedisPrefix          = "throttle"
	DefaultRedisTTL             = 24 * time.Hour
	DefaultRecorderBufferSize   = 1000
	DefaultRecorderWriteTimeout = 5 * time.Second
	DefaultRetentionMaxAge      = 7 * 24 * time.Hour
	DefaultRetentionSchedule    = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultPrometheusPath   = "/metrics"
	DefaultMetricsNamespace = "throttle"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 0.1
	DefaultServiceName      = "throttle"
)

// ApplyDefaults fills every unset field with its default value.
// Limiters have no defaults.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ClientAuth == "" {
		cfg.Server.TLS.ClientAuth = DefaultTLSClientAuth
	}

	// Storage defaults
	st := &cfg.Storage
	if st.Backend == "" {
		st.Backend = DefaultStorageBackend
	}
	if st.Memory.MaxEvents == 0 {
		st.Memory.MaxEvents = DefaultMemoryMaxEvents
	}
	if st.SQLite.Path == "" {
		st.SQLite.Path = DefaultSQLitePath
	}
	if st.SQLite.Driver == "" {
		st.SQLite.Driver = DefaultSQLiteDriver
	}
	if st.SQLite.BusyTimeout == 0 {
		st.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if st.Redis.Address == "" {
		st.Redis.Address = DefaultRedisAddress
	}
	if st.Redis.Prefix == "" {
		st.Redis.Prefix = DefaultRedisPrefix
	}
	if st.Redis.TTL == 0 {
		st.Redis.TTL = DefaultRedisTTL
	}
	if st.Recorder.BufferSize == 0 {
		st.Recorder.BufferSize = DefaultRecorderBufferSize
	}
	if st.Recorder.WriteTimeout == 0 {
		st.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if st.Retention.MaxAge == 0 {
		st.Retention.MaxAge = DefaultRetentionMaxAge
	}
	if st.Retention.Schedule == "" {
		st.Retention.Schedule = DefaultRetentionSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}

	tr := &cfg.Telemetry.Tracing
	if tr.Endpoint == "" {
		tr.Endpoint = DefaultTracingEndpoint
	}
	if tr.Timeout == 0 {
		tr.Timeout = DefaultTracingTimeout
	}
	if tr.Sampler == "" {
		tr.Sampler = DefaultTracingSampler
		if tr.SampleRatio == 0 {
			tr.SampleRatio = DefaultTracingRatio
		}
	}
	if tr.ServiceName == "" {
		tr.ServiceName = DefaultServiceName
	}
}
