// Package listener maintains a durable LISTEN subscription to the store's
// change-notification channel and forwards every payload it receives.
package listener

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/thesheepcat/k-transaction-processor/internal/klog"
	"github.com/thesheepcat/k-transaction-processor/internal/metrics"
)

var logger = klog.Named("listener")

// State is the listener's connection state machine, per §4.8: initial
// state is Disconnected; a successful subscribe moves it to Listening; any
// receive error or connection drop moves it back to Disconnected, and a
// shutdown signal moves it to Shutdown from any state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateListening
	StateShutdown
)

const pingInterval = 90 * time.Second

// Listener owns a dedicated lib/pq connection (outside any pool) subscribed
// to one channel, and forwards every notification payload to out.
type Listener struct {
	dsn        string
	channel    string
	retryDelay time.Duration
	out        chan<- string

	state State
}

func New(dsn, channel string, retryDelay time.Duration, out chan<- string) *Listener {
	return &Listener{
		dsn:        dsn,
		channel:    channel,
		retryDelay: retryDelay,
		out:        out,
		state:      StateDisconnected,
	}
}

// State reports the listener's current connection state, for health
// reporting (see internal/health).
func (l *Listener) State() State {
	return l.state
}

// Run subscribes and forwards notifications until ctx is done. On any
// connection error it waits retryDelay and reconnects; the loop is
// infinite until shutdown is signaled, per §4.8.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			l.state = StateShutdown
			return nil
		}

		l.state = StateConnecting
		pqListener := pq.NewListener(l.dsn, 10*time.Second, time.Minute, l.eventCallback)
		if err := pqListener.Listen(l.channel); err != nil {
			logger.Errorw("failed to subscribe to notification channel", "channel", l.channel, "err", err)
			pqListener.Close()
			if !l.waitOrDone(ctx) {
				l.state = StateShutdown
				return nil
			}
			continue
		}

		l.state = StateListening
		logger.Infow("subscribed to notification channel", "channel", l.channel)
		if done := l.drain(ctx, pqListener.Notify, pqListener.Ping); done {
			pqListener.Close()
			l.state = StateShutdown
			return nil
		}
		pqListener.Close()
		l.state = StateDisconnected
		if !l.waitOrDone(ctx) {
			l.state = StateShutdown
			return nil
		}
	}
}

// drain forwards notifications until the connection drops (returns false,
// meaning "reconnect") or ctx is cancelled (returns true, meaning "stop").
// It depends only on the notify channel and a ping function rather than
// the concrete *pq.Listener, so it can be exercised with a fake channel.
func (l *Listener) drain(ctx context.Context, notifyCh <-chan *pq.Notification, ping func() error) bool {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case notification, ok := <-notifyCh:
			if !ok || notification == nil {
				logger.Warnw("notification connection dropped, reconnecting")
				return false
			}
			select {
			case l.out <- notification.Extra:
				metrics.NotificationCount.Inc(1)
			case <-ctx.Done():
				return true
			}
		case <-ticker.C:
			go func() {
				if err := ping(); err != nil {
					logger.Warnw("notification connection ping failed", "err", err)
				}
			}()
		}
	}
}

func (l *Listener) waitOrDone(ctx context.Context) bool {
	timer := time.NewTimer(l.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Listener) eventCallback(ev pq.ListenerEventType, err error) {
	if err != nil {
		logger.Warnw("listener event error", "event", listenerEventName(ev), "err", err)
	}
}

func listenerEventName(ev pq.ListenerEventType) string {
	switch ev {
	case pq.ListenerEventConnected:
		return "connected"
	case pq.ListenerEventDisconnected:
		return "disconnected"
	case pq.ListenerEventReconnected:
		return "reconnected"
	case pq.ListenerEventConnectionAttemptFailed:
		return "connection_attempt_failed"
	default:
		return "unknown"
	}
}
