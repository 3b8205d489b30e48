// Package worker drains a dispatch queue and runs each transaction id
// through fetch, parse, verify, and materialize, re-running the whole chain
// only when a step fails with a store-transient error.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thesheepcat/k-transaction-processor/internal/klog"
	"github.com/thesheepcat/k-transaction-processor/internal/kprotocol"
	"github.com/thesheepcat/k-transaction-processor/internal/metrics"
	"github.com/thesheepcat/k-transaction-processor/internal/perrors"
	"github.com/thesheepcat/k-transaction-processor/internal/store"
)

var logger = klog.Named("worker")

// Materializer is the subset of *store.Store a worker needs, so tests can
// substitute a fake without wiring a real connection pool.
type Materializer interface {
	FetchTransaction(ctx context.Context, idHex string) (*store.Transaction, error)
	Materialize(ctx context.Context, action kprotocol.Action, txIDHex string, blockTime int64) error
}

// Worker owns one receive end of the dispatch queue's fan-out and a handle
// to the shared store. Workers never share state with each other; the
// store's connection pool provides its own concurrency control.
type Worker struct {
	ID            int
	queue         <-chan string
	store         Materializer
	retryAttempts int
	retryDelay    time.Duration

	// verify is kprotocol.Verify by default; tests in this package swap it
	// for a stub so retry/drop behavior can be exercised without real
	// Schnorr keys.
	verify func(message, signatureHex, pubkeyHex string) bool
}

func New(id int, queue <-chan string, st Materializer, retryAttempts int, retryDelay time.Duration) *Worker {
	return &Worker{
		ID:            id,
		queue:         queue,
		store:         st,
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
		verify:        kprotocol.Verify,
	}
}

// Run drains the queue until it is closed or ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case idHex, ok := <-w.queue:
			if !ok {
				return
			}
			w.handle(ctx, idHex)
		}
	}
}

// handle implements §4.6 step 6: a transient materialization failure is
// retried up to retryAttempts times, sleeping retryDelay between each,
// re-running the whole fetch→parse→verify→materialize chain every time
// rather than resuming from the failed step — the original transaction
// may have been deleted, re-signed, or already materialized by the time a
// retry runs.
func (w *Worker) handle(ctx context.Context, idHex string) {
	jobID := uuid.NewString()
	err := w.attempt(ctx, idHex)
	for attempt := 0; err != nil && perrors.IsRetryable(err) && attempt < w.retryAttempts; attempt++ {
		metrics.RetryCount.Inc(1)
		logger.Warnw("transient error processing transaction, retrying",
			"worker", w.ID, "job_id", jobID, "transaction_id", idHex, "attempt", attempt+1, "err", err)
		if !sleepOrDone(ctx, w.retryDelay) {
			return
		}
		err = w.attempt(ctx, idHex)
	}
	if err != nil {
		metrics.DroppedCount.Inc(1)
		logger.Errorw("dropping transaction after exhausting retries",
			"worker", w.ID, "job_id", jobID, "transaction_id", idHex, "err", err)
	}
}

// attempt runs one full pass of fetch, prefix check, parse, verify, and
// materialize. A non-nil return is always a retryable (ClassTransient)
// error; every other failure mode is logged here and absorbed as nil,
// per §4.6's "on X, log and continue" semantics for every non-transient
// outcome.
func (w *Worker) attempt(ctx context.Context, idHex string) error {
	tx, err := w.store.FetchTransaction(ctx, idHex)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warnw("transaction not found", "worker", w.ID, "transaction_id", idHex)
			return nil
		}
		if perrors.IsRetryable(err) {
			return err
		}
		logger.Warnw("failed to fetch transaction", "worker", w.ID, "transaction_id", idHex, "err", err)
		return nil
	}

	if tx.Payload == nil {
		logger.Infow("transaction has no payload", "worker", w.ID, "transaction_id", idHex)
		return nil
	}
	payload := string(tx.Payload)
	if !strings.HasPrefix(payload, kprotocol.Prefix) {
		logger.Infow("transaction is not a k-protocol payload", "worker", w.ID, "transaction_id", idHex)
		return nil
	}

	action, err := kprotocol.Parse(payload)
	if err != nil {
		logger.Warnw("failed to parse k-protocol payload", "worker", w.ID, "transaction_id", idHex, "err", err)
		metrics.DroppedCount.Inc(1)
		return nil
	}
	if unknown, ok := action.(*kprotocol.Unknown); ok {
		logger.Warnw("unknown k-protocol action", "worker", w.ID, "transaction_id", idHex, "action", unknown.Name)
		return nil
	}

	if !w.verify(action.SignedMessage(), action.SenderSignatureHex(), action.SenderPubkeyHex()) {
		logger.Errorw("invalid signature, dropping transaction", "worker", w.ID, "transaction_id", idHex)
		metrics.DroppedCount.Inc(1)
		return nil
	}

	start := time.Now()
	err = w.store.Materialize(ctx, action, idHex, tx.BlockTimeOrZero())
	if err != nil {
		if perrors.IsRetryable(err) {
			return err
		}
		logger.Warnw("materialization failed", "worker", w.ID, "transaction_id", idHex, "err", err)
		return nil
	}
	metrics.MaterializeDurationMs.Update(time.Since(start).Milliseconds())

	return nil
}

// sleepOrDone waits for d or ctx cancellation, whichever comes first, and
// reports whether the sleep completed normally.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
