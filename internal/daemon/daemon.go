package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"lbfeed/internal/config"
	"lbfeed/internal/feed"
	"lbfeed/internal/logging"
	"lbfeed/internal/musicbrainz"
	"lbfeed/internal/releasestore"
	"lbfeed/internal/resolver"
)

// Dependencies are the external collaborators a Daemon is built from.
type Dependencies struct {
	Store   releasestore.Backend
	Fetcher musicbrainz.Fetcher
	Source  feed.ReleaseSource
	// Interval replaces the configured call spacing when positive.
	Interval time.Duration
}

// Daemon owns the resolver worker and the API server, and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    releasestore.Backend
	resolver *resolver.Resolver
	builder  *feed.Builder
	registry *prometheus.Registry
	api      *apiServer

	mu           sync.Mutex
	lock         *flock.Flock
	cancel       context.CancelFunc
	resolverDone chan struct{}
	started      atomic.Bool
	running      atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	QueueDepth   int    `json:"queue_depth"`
	StoreBackend string `json:"store_backend"`
	Records      int    `json:"records"`
	StoreError   string `json:"store_error,omitempty"`
	LockFilePath string `json:"lock_file"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Fetcher == nil || deps.Source == nil {
		return nil, errors.New("daemon requires config, store, metadata fetcher, and release source")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	interval := cfg.MinInterval()
	if deps.Interval > 0 {
		interval = deps.Interval
	}
	res, err := resolver.New(deps.Store, deps.Fetcher, resolver.Options{
		Interval:      interval,
		QueueCapacity: cfg.Resolver.QueueCapacity,
		BatchTimeout:  cfg.BatchTimeout(),
		Logger:        logger,
		Metrics:       resolver.NewMetrics(registry),
	})
	if err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}
	builder, err := feed.NewBuilderFromConfig(cfg, deps.Source, res.Handle(), logger)
	if err != nil {
		return nil, fmt.Errorf("create feed builder: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    deps.Store,
		resolver: res,
		builder:  builder,
		registry: registry,
	}
	d.api = newAPIServer(cfg, d, logging.NewComponentLogger(logger, "api"))
	return d, nil
}

// Start acquires the daemon lock, launches the resolver, and begins serving
// the API. A daemon can be started once.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.started.Load() {
		return errors.New("daemon cannot be restarted; create a new one")
	}

	lock, err := AcquireLock(d.cfg)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.resolver.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "resolver exited", "resolver_failed", logging.Error(err))
		}
	}()

	if err := d.api.start(runCtx); err != nil {
		cancel()
		<-done
		_ = lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	d.lock = lock
	d.cancel = cancel
	d.resolverDone = done
	d.started.Store(true)
	d.running.Store(true)
	d.logger.Info("lbfeed daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.cfg.LockPath()),
		logging.String("store_backend", d.store.Name()),
		logging.String("address", d.api.address()),
	)
	return nil
}

// Stop shuts down the API, answers any queued batches, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.resolverDone != nil {
		<-d.resolverDone
	}
	if d.lock != nil {
		if err := d.lock.Unlock(); err != nil {
			logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next start may report the store as locked"),
			)
		}
		d.lock = nil
	}
	d.running.Store(false)
	d.logger.Info("lbfeed daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load() && d.resolver.Running(),
		QueueDepth:   d.resolver.QueueDepth(),
		StoreBackend: d.store.Name(),
		LockFilePath: d.cfg.LockPath(),
	}
	count, err := d.store.Count(ctx)
	if err != nil {
		status.StoreError = err.Error()
	} else {
		status.Records = count
	}
	return status
}

// Handler exposes the API routes, mainly for tests.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Addr returns the address the API listens on once started.
func (d *Daemon) Addr() string {
	return d.api.address()
}
