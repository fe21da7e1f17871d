package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLimiters(cfg.Limiters)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}

	timeouts := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.value < 0 {
			errs = append(errs, FieldError{Field: t.field, Message: "timeout must not be negative"})
		}
	}

	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.request_timeout",
			Message: "request timeout must be positive",
		})
	}

	if cfg.MaxInFlight < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_in_flight",
			Message: "must not be negative",
		})
	}

	errs = append(errs, validateTLS(&cfg.TLS)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)

	return errs
}

func validateTLS(cfg *TLSConfig) []FieldError {
	var errs []FieldError

	switch cfg.MinVersion {
	case "1.2", "1.3":
	default:
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("invalid version %q (must be 1.2 or 1.3)", cfg.MinVersion),
		})
	}
	switch cfg.ClientAuth {
	case "require", "request", "verify_if_given":
	default:
		errs = append(errs, FieldError{
			Field:   "server.tls.client_auth",
			Message: fmt.Sprintf("invalid client auth %q (must be require, request, or verify_if_given)", cfg.ClientAuth),
		})
	}

	if !cfg.Enabled {
		return errs
	}
	if cfg.CertFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "cert file is required when TLS is enabled"})
	}
	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
	}
	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.Keys) == 0 {
		return []FieldError{{Field: "server.auth.keys", Message: "at least one key is required when auth is enabled"}}
	}

	var errs []FieldError
	names := make(map[string]bool, len(cfg.Keys))
	for i, k := range cfg.Keys {
		prefix := fmt.Sprintf("server.auth.keys[%d]", i)
		if k.Name == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "name is required"})
		} else if names[k.Name] {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate key name %q", k.Name)})
		}
		names[k.Name] = true

		if k.Secret() == "" {
			msg := "key is required"
			if k.KeyEnv != "" {
				msg = fmt.Sprintf("environment variable %s is empty", k.KeyEnv)
			}
			errs = append(errs, FieldError{Field: prefix + ".key", Message: msg})
		}
	}
	return errs
}

// validateLimiters checks names and parses every limit so that a config
// that validates can always be started.
func validateLimiters(limiters []LimiterConfig) []FieldError {
	var errs []FieldError
	seen := make(map[string]int, len(limiters))

	for i, l := range limiters {
		prefix := fmt.Sprintf("limiters[%d]", i)

		switch {
		case strings.TrimSpace(l.Name) == "":
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "name is required"})
		case strings.ContainsAny(l.Name, "/ \t"):
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("name %q must not contain slashes or whitespace", l.Name),
			})
		default:
			if first, dup := seen[l.Name]; dup {
				errs = append(errs, FieldError{
					Field:   prefix + ".name",
					Message: fmt.Sprintf("duplicate limiter %q (first defined at limiters[%d])", l.Name, first),
				})
			} else {
				seen[l.Name] = i
			}
		}

		declared := make(map[string]bool, len(l.Limits))
		for j, s := range l.Limits {
			declared[s] = true
			if _, err := ratelimit.ParseLimit(s); err != nil {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.limits[%d]", prefix, j),
					Message: err.Error(),
				})
			}
		}

		for s, burst := range l.BurstOverrides {
			field := fmt.Sprintf("%s.burst_overrides[%q]", prefix, s)
			if !declared[s] {
				errs = append(errs, FieldError{Field: field, Message: "does not match any entry in limits"})
			}
			if burst <= 0 {
				errs = append(errs, FieldError{Field: field, Message: "burst must be positive"})
			}
		}
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none":
	case "memory":
		if cfg.Memory.MaxEvents <= 0 {
			errs = append(errs, FieldError{
				Field:   "storage.memory.max_events",
				Message: "max events must be positive",
			})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "path is required"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be sqlite or sqlite3)", cfg.SQLite.Driver),
			})
		}
	case "redis":
		if cfg.Redis.Address == "" {
			errs = append(errs, FieldError{Field: "storage.redis.address", Message: "address is required"})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "storage.redis.db", Message: "db must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory, sqlite, redis, or none)", cfg.Backend),
		})
	}

	if cfg.Recorder.BufferSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "storage.recorder.buffer_size",
			Message: "buffer size must be positive",
		})
	}

	if cfg.Retention.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.retention.max_age",
			Message: "max age must not be negative",
		})
	}
	if cfg.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "storage.retention.schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Retention.Schedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "path must start with /",
		})
	}

	tr := &cfg.Tracing
	switch tr.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", tr.Sampler),
		})
	}
	if tr.SampleRatio < 0 || tr.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: fmt.Sprintf("sample ratio must be between 0 and 1, got %g", tr.SampleRatio),
		})
	}
	if tr.Enabled && tr.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}
	if tr.Timeout < 0 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.timeout", Message: "timeout must not be negative"})
	}

	return errs
}
