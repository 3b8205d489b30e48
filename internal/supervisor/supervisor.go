// Package supervisor wires the notification listener, dispatch queue, and
// worker pool together and waits for a shutdown signal or a fatal component
// exit, the way main.rs's tokio::select! over the three spawned task
// handles plus ctrl_c does.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/thesheepcat/k-transaction-processor/internal/config"
	"github.com/thesheepcat/k-transaction-processor/internal/dispatch"
	"github.com/thesheepcat/k-transaction-processor/internal/health"
	"github.com/thesheepcat/k-transaction-processor/internal/klog"
	"github.com/thesheepcat/k-transaction-processor/internal/listener"
	"github.com/thesheepcat/k-transaction-processor/internal/store"
	"github.com/thesheepcat/k-transaction-processor/internal/worker"
)

var logger = klog.Named("supervisor")

// Supervisor owns the listener, dispatch queue, worker pool, and the
// channels connecting them.
type Supervisor struct {
	cfg      config.AppConfig
	store    *store.Store
	health   *health.Tracker
	listener *listener.Listener

	notifications chan string
	dispatchIn    chan string
	workerQueues  []chan string
	dispatchQueue *dispatch.Queue
	workers       []*worker.Worker
}

// New wires every component but starts nothing; call Run to start.
func New(cfg config.AppConfig, dsn string, st *store.Store) *Supervisor {
	notifications := make(chan string, cfg.Workers.Count)

	workerChans := make([]chan string, cfg.Workers.Count)
	sendEnds := make([]chan<- string, cfg.Workers.Count)
	workers := make([]*worker.Worker, cfg.Workers.Count)
	for i := 0; i < cfg.Workers.Count; i++ {
		ch := make(chan string, 1)
		workerChans[i] = ch
		sendEnds[i] = ch
		workers[i] = worker.New(i, ch, st, cfg.Processing.RetryAttempts,
			time.Duration(cfg.Processing.RetryDelayMs)*time.Millisecond)
	}

	l := listener.New(dsn, cfg.Processing.ChannelName,
		time.Duration(cfg.Processing.RetryDelayMs)*time.Millisecond, notifications)

	return &Supervisor{
		cfg:           cfg,
		store:         st,
		health:        health.New(cfg.Workers.Count),
		listener:      l,
		notifications: notifications,
		dispatchIn:    make(chan string, cfg.Workers.Count),
		workerQueues:  workerChans,
		dispatchQueue: dispatch.New(sendEnds),
		workers:       workers,
	}
}

// Health returns the tracker that Run updates; safe to read concurrently
// with Run. Forwarded notifications and worker exits are recorded as they
// happen, but the listener's state is recorded only once the listener's Run
// has returned, so while the listener is running the snapshot's
// ListenerState is StateDisconnected and Healthy reports false.
func (s *Supervisor) Health() *health.Tracker {
	return s.health
}

// Run starts the listener, dispatch queue, and worker pool, and blocks
// until ctx is cancelled (a clean shutdown) or any component exits on its
// own (a fatal condition, per spec.md's supervisor contract: abnormal exit
// of the listener, queue, or worker pool is fatal).
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errc := make(chan error, 2+len(s.workers))

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := s.listener.Run(runCtx)
		s.health.ReportListenerState(s.listener.State())
		if runCtx.Err() == nil {
			logger.Errorw("notification listener stopped unexpectedly", "err", err)
			errc <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.relayNotifications(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatchQueue.Run(runCtx, s.dispatchIn)
		if runCtx.Err() == nil {
			logger.Errorw("dispatch queue stopped unexpectedly")
			errc <- context.Canceled
		}
	}()

	for i, w := range s.workers {
		wg.Add(1)
		go func(id int, w *worker.Worker) {
			defer wg.Done()
			w.Run(runCtx)
			s.health.ReportWorkerExited(id)
			if runCtx.Err() == nil {
				logger.Errorw("worker stopped unexpectedly", "worker", id)
				errc <- context.Canceled
			}
		}(i, w)
	}

	logger.Infow("transaction processor started",
		"workers", s.cfg.Workers.Count, "channel", s.cfg.Processing.ChannelName)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Infow("shutdown signal received")
	case runErr = <-errc:
	}

	cancel()
	wg.Wait()
	logger.Infow("transaction processor shut down")
	return runErr
}

// relayNotifications forwards every id the listener emits to the dispatch
// queue's input, stamping the health tracker on the way through so
// Health().Snapshot().LastNotificationAt reflects real traffic without the
// listener or dispatch queue needing to know the health tracker exists.
func (s *Supervisor) relayNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.notifications:
			if !ok {
				return
			}
			s.health.ReportNotification(time.Now())
			select {
			case s.dispatchIn <- id:
			case <-ctx.Done():
				return
			}
		}
	}
}
