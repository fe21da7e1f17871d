// Package config provides configuration management for the throttle service.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("throttle.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("throttle.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention THROTTLE_SECTION_FIELD.
// For example:
//
//   - THROTTLE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - THROTTLE_STORAGE_BACKEND overrides storage.backend
//   - THROTTLE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Limiters cannot be overridden from the environment.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Limiters
//
// Each limiter lists its limits in enforcement order using the compact
// "<hits>/<period>" form understood by ratelimit.ParseLimit:
//
//	limiters:
//	  - name: api
//	    limits: ["10/s", "15/m"]
//	    burst_overrides:
//	      "10/s": 20
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and delivers each
// successfully reloaded Config to a callback after a debounce interval.
// Invalid edits are logged and skipped.
package config
