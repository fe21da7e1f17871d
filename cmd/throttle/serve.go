package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/limits/storage"
	"mercator-hq/throttle/pkg/security/auth"
	tlsutil "mercator-hq/throttle/pkg/security/tls"
	"mercator-hq/throttle/pkg/server"
	"mercator-hq/throttle/pkg/telemetry/health"
	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/telemetry/metrics"
	"mercator-hq/throttle/pkg/telemetry/tracing"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the throttle server",
	Long: `Start the HTTP server with the limiters named in the configuration file.

The configuration file is watched; when it changes, the limiter set is
replaced as a whole. An invalid new file leaves the running limiters
untouched.

Examples:
  # Start with default config
  throttle serve

  # Start with custom config
  throttle serve --config /etc/throttle/throttle.yaml

  # Override listen address
  throttle serve --listen 0.0.0.0:9090

  # Validate config without starting server
  throttle serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
	serveCmd.Flags().BoolVar(&serveFlags.noWatch, "no-watch", false, "do not reload limiters when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	logger.SetDefault()
	log := logger.Slog()

	specs, err := limits.SpecsFromConfig(cfg.Limiters)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	if serveFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (%d limiters)\n", len(specs))
		return nil
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	collector := metrics.NewCollector(cfg.Telemetry.Metrics)
	checker := health.New(cfg.Server.RequestTimeout)

	recorder, closeStorage, err := openStorage(ctx, cfg.Storage, checker, log)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer closeStorage()

	manager, err := limits.NewManager(limits.ManagerConfig{
		Specs:       specs,
		Metrics:     limits.NewMetrics(collector.Registry(), collector.Namespace()),
		Recorder:    recorder,
		Logger:      log,
		CallTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	defer manager.Close()

	tlsConfig, err := openTLS(ctx, cfg.Server.TLS, log)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			log.Error("failed to flush traces", "error", err)
		}
	}()

	var validator *auth.Validator
	if cfg.Server.Auth.Enabled {
		validator = auth.NewValidator(auth.KeysFromConfig(cfg.Server.Auth.Keys))
	}

	if !serveFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, config.DefaultDebounceInterval, log)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer watcher.Stop()

		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) error {
				if serveFlags.logLevel == "" {
					if err := logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
						log.Warn("ignoring log level change", "error", err)
					}
				}
				specs, err := limits.SpecsFromConfig(next.Limiters)
				if err != nil {
					return err
				}
				if err := manager.Reload(specs); err != nil {
					return err
				}
				reloadAuth(validator, next.Server.Auth, log)
				return nil
			})
			if err != nil {
				log.Error("config watcher exited", "error", err)
			}
		}()
	}

	srv, err := server.NewServer(server.Options{
		Server:    cfg.Server,
		Metrics:   cfg.Telemetry.Metrics,
		Limiters:  manager,
		Collector: collector,
		Health:    checker,
		TLS:       tlsConfig,
		Auth:      validator,
		Tracer:    tracer,
		Logger:    log,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	log.Info("throttle starting",
		"version", Version,
		"config", cfgFile,
		"limiters", len(specs),
		"storage", cfg.Storage.Backend,
		"tracing", tracer.Enabled(),
	)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

// openStorage opens the configured event log and starts its recorder and
// retention scheduler. The returned Observer is nil when storage is "none".
// The close function stops everything in reverse order.
func openStorage(ctx context.Context, cfg config.StorageConfig, checker *health.Checker, log *slog.Logger) (ratelimit.Observer, func(), error) {
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.Backend, err)
	}
	if backend == nil {
		log.Info("decision recording disabled")
		return nil, func() {}, nil
	}

	checker.RegisterCheck("storage", func(ctx context.Context) error {
		return storage.Ping(ctx, backend)
	})

	recorder := storage.NewRecorder(backend, storage.RecorderConfig{
		BufferSize:   cfg.Recorder.BufferSize,
		WriteTimeout: cfg.Recorder.WriteTimeout,
		Logger:       log,
	})

	retention := storage.NewRetentionScheduler(backend, cfg.Retention.MaxAge, cfg.Retention.Schedule, log)
	if err := retention.Start(ctx); err != nil {
		recorder.Close()
		backend.Close()
		return nil, nil, err
	}

	closeFn := func() {
		retention.Stop()
		recorder.Close()
		if err := backend.Close(); err != nil {
			log.Error("failed to close storage", "error", err)
		}
		if n := recorder.Dropped(); n > 0 {
			log.Warn("decisions dropped by recorder", "dropped", n)
		}
	}
	return recorder, closeFn, nil
}

// openTLS loads the server certificate and watches it for renewal. It
// returns nil when TLS is disabled.
func openTLS(ctx context.Context, cfg config.TLSConfig, log *slog.Logger) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	certs, err := tlsutil.NewCertReloader(cfg.CertFile, cfg.KeyFile, log)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := certs.Watch(ctx); err != nil {
			log.Error("certificate watcher exited", "error", err)
		}
	}()
	return tlsutil.ServerConfig(cfg, certs)
}

// reloadAuth rotates API keys in place. Turning auth on or off needs a
// restart.
func reloadAuth(v *auth.Validator, cfg config.AuthConfig, log *slog.Logger) {
	switch {
	case v == nil && cfg.Enabled, v != nil && !cfg.Enabled:
		log.Warn("auth enabled setting changed; restart to apply")
	case v != nil:
		v.Replace(auth.KeysFromConfig(cfg.Keys))
		log.Info("API keys reloaded", "keys", len(cfg.Keys))
	}
}
