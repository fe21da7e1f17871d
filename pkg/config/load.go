package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention THROTTLE_SECTION_FIELD (e.g., THROTTLE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Unparsable values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("THROTTLE_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("THROTTLE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("THROTTLE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("THROTTLE_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("THROTTLE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envDuration("THROTTLE_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	envInt("THROTTLE_SERVER_MAX_IN_FLIGHT", &cfg.Server.MaxInFlight)
	envBool("THROTTLE_SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	envString("THROTTLE_SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	envString("THROTTLE_SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	envBool("THROTTLE_SERVER_AUTH_ENABLED", &cfg.Server.Auth.Enabled)

	// Storage overrides
	envString("THROTTLE_STORAGE_BACKEND", &cfg.Storage.Backend)
	envInt("THROTTLE_STORAGE_MEMORY_MAX_EVENTS", &cfg.Storage.Memory.MaxEvents)
	envString("THROTTLE_STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("THROTTLE_STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	envDuration("THROTTLE_STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)
	envString("THROTTLE_STORAGE_REDIS_ADDRESS", &cfg.Storage.Redis.Address)
	envString("THROTTLE_STORAGE_REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	envInt("THROTTLE_STORAGE_REDIS_DB", &cfg.Storage.Redis.DB)
	envString("THROTTLE_STORAGE_REDIS_PREFIX", &cfg.Storage.Redis.Prefix)
	envDuration("THROTTLE_STORAGE_REDIS_TTL", &cfg.Storage.Redis.TTL)
	envInt("THROTTLE_STORAGE_RECORDER_BUFFER_SIZE", &cfg.Storage.Recorder.BufferSize)
	envDuration("THROTTLE_STORAGE_RETENTION_MAX_AGE", &cfg.Storage.Retention.MaxAge)
	envString("THROTTLE_STORAGE_RETENTION_SCHEDULE", &cfg.Storage.Retention.Schedule)

	// Telemetry overrides
	envString("THROTTLE_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("THROTTLE_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("THROTTLE_TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("THROTTLE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("THROTTLE_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envString("THROTTLE_TELEMETRY_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)
	envBool("THROTTLE_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("THROTTLE_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("THROTTLE_TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
}
