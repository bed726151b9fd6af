package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/rotor/pkg/cli"
	"mercator-hq/rotor/pkg/config"
	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/proxy"
	"mercator-hq/rotor/pkg/security/auth"
	"mercator-hq/rotor/pkg/server"
	"mercator-hq/rotor/pkg/telemetry/health"
	"mercator-hq/rotor/pkg/telemetry/logging"
	"mercator-hq/rotor/pkg/telemetry/metrics"
	"mercator-hq/rotor/pkg/telemetry/tracing"
	"mercator-hq/rotor/pkg/upstream"
)

// telemetryFlushTimeout bounds the final span export on exit.
const telemetryFlushTimeout = 5 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the specified configuration.

On startup the credential pool is seeded from bootstrap.keys, GOOGLE_KEYS and
the keys file, then keys listed for removal are marked removed. The server
runs until SIGINT or SIGTERM and then drains in-flight requests.

Examples:
  # Start with default config
  rotor run

  # Start with custom config
  rotor run --config /etc/rotor/rotor.yaml

  # Override listen address
  rotor run --listen 0.0.0.0:8080

  # Validate config without starting server
  rotor run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

func newLogger(cfg *config.LoggingConfig) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		RedactPII: cfg.RedactPII,
		File: logging.FileConfig{
			Path:       cfg.File.Path,
			MaxSizeMB:  cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAgeDays: cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		},
	})
}

// serve wires every component and blocks until ctx is cancelled or the
// server fails.
func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting rotor",
		"version", Version,
		"config", cfgFile,
		"storage_backend", cfg.Storage.Backend,
	)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushTimeout)
		defer cancel()
		if err := tracer.Shutdown(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(&cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := bootstrapKeys(&cfg.Bootstrap)
	if err != nil {
		return err
	}
	if _, err := credentials.Bootstrap(ctx, store, keys); err != nil {
		return fmt.Errorf("failed to bootstrap credentials: %w", err)
	}

	if cfg.Bootstrap.Watch {
		watcher, err := credentials.NewKeysFileWatcher(cfg.Bootstrap.KeysFile, store, cfg.Bootstrap.Debounce)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("keys file watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// Nil interfaces rather than typed nils when metrics are off.
	var (
		collector    *metrics.Collector
		observer     proxy.Observer
		poolObserver credentials.SnapshotObserver
	)
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		observer = collector
		poolObserver = collector
	}

	if cfg.Telemetry.PoolReport.Enabled {
		reporter := credentials.NewReporter(store, poolObserver, cfg.Telemetry.PoolReport.Schedule)
		if err := reporter.Start(ctx); err != nil {
			return err
		}
		defer reporter.Stop()
	}

	client, err := upstream.NewClient(upstream.Config{
		BaseURL:             cfg.Upstream.BaseURL,
		AttemptTimeout:      cfg.Upstream.AttemptTimeout,
		MaxIdleConns:        cfg.Upstream.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Upstream.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Upstream.IdleConnTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}
	defer client.CloseIdleConnections()

	userKeys := auth.NewUserKeyValidator(cfg.Auth.UserKeys)
	if userKeys.Len() == 0 {
		slog.Warn("no user keys configured, every request is passed through with its own key")
	}

	checker := health.New(0)
	checker.RegisterCheck("store", health.StoreCheck(store))
	checker.RegisterCheck("pool", health.PoolCheck(store))

	srv := server.New(cfg, server.Deps{
		Store:    store,
		Executor: proxy.NewExecutor(store, client, userKeys, observer),
		UserKeys: userKeys,
		Health:   checker,
		Metrics:  collector,
		Version:  versionInfo(),
	})

	return srv.Start(ctx)
}
