package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"lbfeed/internal/config"
	"lbfeed/internal/daemon"
	"lbfeed/internal/listenbrainz"
	"lbfeed/internal/logging"
	"lbfeed/internal/musicbrainz"
	"lbfeed/internal/preflight"
	"lbfeed/internal/releasestore"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
	// Ready, when set, receives the API address once the daemon is serving.
	Ready func(addr string)
}

// Run starts the lbfeed daemon and blocks until SIGINT, SIGTERM, or ctx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "lbfeed.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := Build(signalCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon setup failed", "daemon_setup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store settings and service urls"),
		)
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other lbfeed process or free the bind address"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d.Addr())
	}

	<-signalCtx.Done()
	logger.Info("lbfeed daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// Build opens the configured store and clients and assembles a daemon. The
// caller owns the returned daemon and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := releasestore.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fetcher, err := musicbrainz.NewFromConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("musicbrainz client: %w", err)
	}
	source, err := listenbrainz.NewFromConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listenbrainz client: %w", err)
	}
	d, err := daemon.New(cfg, daemon.Dependencies{Store: store, Fetcher: fetcher, Source: source}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("store_backend", cfg.Store.Backend),
		logging.Int("memo_size", cfg.Store.MemoSize),
		logging.String("musicbrainz_url", cfg.MusicBrainz.BaseURL),
		logging.Duration("min_interval", cfg.MinInterval()),
		logging.String("listenbrainz_url", cfg.ListenBrainz.BaseURL),
		logging.Int("queue_capacity", cfg.Resolver.QueueCapacity),
		logging.Duration("batch_timeout", cfg.BatchTimeout()),
		logging.String("bind", cfg.Server.Bind),
	)
}

// logPreflight reports failed readiness checks. Failures are warnings only;
// upstream outages are expected to clear while the daemon keeps serving.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run lbfeed status for details"),
		)
	}
}
