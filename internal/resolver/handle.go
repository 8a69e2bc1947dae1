package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lbfeed/internal/releasestore"
	"lbfeed/internal/services"
)

// Handle is the producer side of the resolver queue.
type Handle struct {
	queue        chan<- request
	done         <-chan struct{}
	batchTimeout time.Duration
	metrics      *Metrics
}

// Submit enqueues ids as one batch and waits for the outcome: either one
// record per id in the same order, or a single error. Submission blocks while
// the queue is full. Cancelling ctx abandons the wait; the worker skips the
// batch if it has not started it yet.
func (h *Handle) Submit(ctx context.Context, ids []string) ([]releasestore.Record, error) {
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, services.Wrap(services.ErrValidation, component, "submit",
				fmt.Sprintf("release id at position %d is empty", i), nil)
		}
	}
	if len(ids) == 0 {
		return []releasestore.Record{}, nil
	}

	if _, ok := ctx.Deadline(); !ok && h.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.batchTimeout)
		defer cancel()
	}

	batchID := newBatchID()
	req := request{
		ctx:   services.WithBatchID(ctx, batchID),
		ids:   append([]string(nil), ids...),
		reply: make(chan reply, 1),
	}

	select {
	case <-h.done:
		return nil, ErrStopped
	default:
	}

	select {
	case h.queue <- req:
		h.metrics.setQueueDepth(len(h.queue))
	case <-ctx.Done():
		return nil, services.Wrap(services.ErrCanceled, component, "submit", "waiting for queue space", ctx.Err())
	case <-h.done:
		return nil, ErrStopped
	}

	select {
	case out := <-req.reply:
		return out.records, out.err
	case <-ctx.Done():
		return nil, services.Wrap(services.ErrCanceled, component, "submit", "waiting for batch "+batchID, ctx.Err())
	case <-h.done:
		select {
		case out := <-req.reply:
			return out.records, out.err
		default:
			return nil, ErrStopped
		}
	}
}
