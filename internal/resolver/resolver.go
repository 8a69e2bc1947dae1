package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lbfeed/internal/logging"
	"lbfeed/internal/musicbrainz"
	"lbfeed/internal/releasestore"
	"lbfeed/internal/services"
)

const (
	component            = "resolver"
	DefaultQueueCapacity = 100
)

// ErrStopped is returned to producers once the resolver has shut down.
var ErrStopped = fmt.Errorf("%w: resolver stopped", services.ErrCanceled)

// Options tunes a Resolver. Zero values select the defaults.
type Options struct {
	// Interval is the minimum spacing between external call starts.
	Interval time.Duration
	// QueueCapacity bounds the number of batches waiting for the worker.
	QueueCapacity int
	// BatchTimeout is applied by Submit when the caller's context has no
	// deadline. Zero leaves batches unbounded.
	BatchTimeout time.Duration
	Logger       *slog.Logger
	Metrics      *Metrics
}

type request struct {
	ctx   context.Context
	ids   []string
	reply chan reply
}

type reply struct {
	records []releasestore.Record
	err     error
}

// Resolver is the single consumer that owns the store and the fetcher.
type Resolver struct {
	store   releasestore.Store
	fetcher musicbrainz.Fetcher

	queue        chan request
	done         chan struct{}
	interval     time.Duration
	batchTimeout time.Duration
	logger       *slog.Logger
	metrics      *Metrics

	started atomic.Bool
	// nextAllowed is the earliest start of the next external call, in unix
	// nanoseconds. Only the worker writes it.
	nextAllowed atomic.Int64
}

// New constructs a resolver. Run must be called for submitted batches to make
// progress.
func New(store releasestore.Store, fetcher musicbrainz.Fetcher, opts Options) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("resolver: release store is required")
	}
	if fetcher == nil {
		return nil, errors.New("resolver: metadata fetcher is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = musicbrainz.MinInterval
	}
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Resolver{
		store:        store,
		fetcher:      fetcher,
		queue:        make(chan request, capacity),
		done:         make(chan struct{}),
		interval:     interval,
		batchTimeout: opts.BatchTimeout,
		logger:       logging.NewComponentLogger(opts.Logger, component),
		metrics:      opts.Metrics,
	}, nil
}

// Handle returns the producer-side API. Handles are safe for concurrent use
// and may be copied.
func (r *Resolver) Handle() *Handle {
	return &Handle{
		queue:        r.queue,
		done:         r.done,
		batchTimeout: r.batchTimeout,
		metrics:      r.metrics,
	}
}

// QueueDepth reports the number of batches waiting for the worker.
func (r *Resolver) QueueDepth() int {
	return len(r.queue)
}

// NextCallAllowed reports the earliest instant the next external call may
// start. It is the zero time before the first call.
func (r *Resolver) NextCallAllowed() time.Time {
	ns := r.nextAllowed.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Running reports whether Run is active.
func (r *Resolver) Running() bool {
	if !r.started.Load() {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Run serves batches until ctx is cancelled. Every batch accepted into the
// queue receives exactly one reply, including those still queued at shutdown.
func (r *Resolver) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("resolver: already running")
	}
	defer close(r.done)

	r.logger.Info("resolver started",
		logging.String(logging.FieldEventType, "resolver_started"),
		logging.Duration("interval", r.interval),
		logging.Int("queue_capacity", cap(r.queue)),
	)

	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.logger.Info("resolver stopped", logging.String(logging.FieldEventType, "resolver_stopped"))
			return nil
		case req := <-r.queue:
			r.metrics.setQueueDepth(len(r.queue))
			if ctx.Err() != nil {
				req.reply <- reply{err: ErrStopped}
				r.metrics.batchDone(services.Kind(ErrStopped), 0)
				continue
			}
			r.serve(ctx, req)
		}
	}
}

func (r *Resolver) drain() {
	for {
		select {
		case req := <-r.queue:
			req.reply <- reply{err: ErrStopped}
			r.metrics.batchDone(services.Kind(ErrStopped), 0)
		default:
			r.metrics.setQueueDepth(0)
			return
		}
	}
}

// serve resolves one batch, replies, and then holds the rate window when the
// outcome asks for it.
func (r *Resolver) serve(runCtx context.Context, req request) {
	start := time.Now()
	batchCtx, cancel := context.WithCancel(req.ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	logger := logging.WithContext(batchCtx, r.logger)

	var (
		records []releasestore.Record
		hold    time.Time
		err     error
	)
	if ctxErr := batchCtx.Err(); ctxErr != nil {
		err = services.Wrap(services.ErrCanceled, component, "batch", "caller gave up before the batch started", ctxErr)
	} else {
		records, hold, err = r.resolveBatch(batchCtx, logger, req.ids)
	}

	req.reply <- reply{records: records, err: err}
	elapsed := time.Since(start)
	r.metrics.batchDone(services.Kind(err), elapsed)

	if err != nil {
		logging.WarnWithContext(logger, "batch abandoned", "batch_failed",
			logging.Int("ids", len(req.ids)),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "feed request fails; the next request retries"),
			logging.String(logging.FieldErrorHint, errorHint(err)),
		)
	} else {
		logger.Debug("batch resolved",
			logging.String(logging.FieldEventType, "batch_resolved"),
			logging.Int("ids", len(req.ids)),
			logging.Duration("elapsed", elapsed),
		)
	}

	// The caller already has its reply; the window still has to close before
	// the next batch.
	_ = musicbrainz.SleepUntil(runCtx, hold)
}

// resolveBatch walks ids in order. On error it returns the instant the worker
// must wait for before serving anything else, or the zero time when no wait
// is due.
func (r *Resolver) resolveBatch(ctx context.Context, logger *slog.Logger, ids []string) ([]releasestore.Record, time.Time, error) {
	records := make([]releasestore.Record, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, time.Time{}, services.Wrap(services.ErrCanceled, component, "batch", id, err)
		}

		record, found, err := r.TryCache(ctx, id)
		if err != nil {
			return nil, time.Time{}, err
		}
		if found {
			logger.Debug("release served from store", logging.String(logging.FieldReleaseID, id))
			records = append(records, record)
			continue
		}

		record, next, err := r.FetchAndStore(ctx, id)
		if err != nil {
			return nil, next, err
		}
		logger.Debug("release fetched and stored",
			logging.String(logging.FieldReleaseID, id),
			logging.Bool("has_front", record.HasFrontCoverArt),
			logging.Int("links", len(record.ExternalLinks)),
		)
		records = append(records, record)

		if err := musicbrainz.SleepUntil(ctx, next); err != nil {
			return nil, next, services.Wrap(services.ErrCanceled, component, "rate limit", id, err)
		}
	}
	return records, time.Time{}, nil
}

// TryCache looks id up in the store. Storage failures carry ErrStoreIO, or
// ErrCanceled when ctx has already ended.
func (r *Resolver) TryCache(ctx context.Context, id string) (releasestore.Record, bool, error) {
	record, found, err := r.store.Lookup(ctx, id)
	if err != nil {
		return releasestore.Record{}, false, storeFailure(ctx, "lookup", id, err)
	}
	r.metrics.cacheResult(found)
	return record, found, nil
}

// FetchAndStore performs one external call for id and persists the result.
//
// It first waits until the previous call's window has closed, then opens a
// new window at call start. The returned instant is the end of that window
// when the caller should wait for it, and zero when the call failed before a
// response arrived.
func (r *Resolver) FetchAndStore(ctx context.Context, id string) (releasestore.Record, time.Time, error) {
	if err := musicbrainz.SleepUntil(ctx, r.NextCallAllowed()); err != nil {
		return releasestore.Record{}, time.Time{}, services.Wrap(services.ErrCanceled, component, "rate limit", id, err)
	}

	callStart := time.Now()
	next := callStart.Add(r.interval)
	r.nextAllowed.Store(next.UnixNano())

	hasFront, links, err := r.fetcher.FetchOne(ctx, id)
	r.metrics.externalCall(services.Kind(err), time.Since(callStart))
	if err != nil {
		if errors.Is(err, services.ErrTransport) || errors.Is(err, services.ErrCanceled) {
			return releasestore.Record{}, time.Time{}, err
		}
		if !errors.Is(err, services.ErrDecode) && !errors.Is(err, services.ErrValidation) {
			err = services.Wrap(services.ErrDecode, component, "fetch", id, err)
		}
		return releasestore.Record{}, next, err
	}

	record := releasestore.Record{ID: id, HasFrontCoverArt: hasFront, ExternalLinks: links}.Clone()
	if err := r.store.Insert(ctx, record); err != nil {
		return releasestore.Record{}, next, storeFailure(ctx, "insert", id, err)
	}
	return record, next, nil
}

// storeFailure tags a store error. A failure seen after ctx ended is reported
// as a cancellation rather than an I/O fault.
func storeFailure(ctx context.Context, op, id string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return services.Wrap(services.ErrCanceled, component, op, id, err)
	}
	if errors.Is(err, services.ErrStoreIO) {
		return err
	}
	return services.Wrap(services.ErrStoreIO, component, op, id, err)
}

func errorHint(err error) string {
	switch services.Kind(err) {
	case "store_io":
		return "check the release store is reachable and writable"
	case "transport":
		return "check network access to the metadata service"
	case "decode":
		return "the metadata service returned an unusable response; retry later"
	case "canceled":
		return "the caller timed out or the service is shutting down"
	default:
		return "check logs for details"
	}
}

// newBatchID returns a fresh identifier for log correlation.
func newBatchID() string {
	return uuid.NewString()
}
