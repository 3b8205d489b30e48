// Package dispatch fans a single stream of notification ids out to a fixed
// set of worker queues in round-robin order.
package dispatch

import (
	"context"

	"github.com/thesheepcat/k-transaction-processor/internal/klog"
)

var logger = klog.Named("dispatch")

// Queue holds one send endpoint per worker and a cursor that advances
// after every dispatch, mod the worker count.
type Queue struct {
	workers []chan<- string
	cursor  int
}

// New wraps the given worker send-channels for round-robin dispatch. The
// caller owns channel lifetime (creation and closing).
func New(workers []chan<- string) *Queue {
	return &Queue{workers: workers}
}

// Dispatch sends id to the current cursor's worker and advances the
// cursor. A full worker channel blocks here, which is this pipeline's
// backpressure mechanism: a slow worker pool slows the listener's own
// receive loop rather than growing memory unboundedly.
func (q *Queue) Dispatch(ctx context.Context, id string) error {
	target := q.workers[q.cursor]
	select {
	case target <- id:
	case <-ctx.Done():
		return ctx.Err()
	}
	q.cursor = (q.cursor + 1) % len(q.workers)
	return nil
}

// Run drains in and dispatches every id until in is closed or ctx is done.
func (q *Queue) Run(ctx context.Context, in <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-in:
			if !ok {
				return
			}
			if err := q.Dispatch(ctx, id); err != nil {
				logger.Warnw("dispatch interrupted", "err", err)
				return
			}
		}
	}
}
