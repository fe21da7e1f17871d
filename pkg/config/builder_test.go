package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a ConfigBuilder holding a valid configuration with
// one limiter named "api".
func NewTestConfig() *ConfigBuilder {
	cfg := Config{
		Limiters: []LimiterConfig{
			{Name: "api", Limits: []string{"10/s", "15/m"}},
		},
	}
	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithRequestTimeout sets the per-call limiter timeout.
func (b *ConfigBuilder) WithRequestTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Server.RequestTimeout = d
	return b
}

// WithLimiter appends a limiter.
func (b *ConfigBuilder) WithLimiter(name string, limits ...string) *ConfigBuilder {
	b.cfg.Limiters = append(b.cfg.Limiters, LimiterConfig{Name: name, Limits: limits})
	return b
}

// WithStorageBackend sets the storage backend.
func (b *ConfigBuilder) WithStorageBackend(backend string) *ConfigBuilder {
	b.cfg.Storage.Backend = backend
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
