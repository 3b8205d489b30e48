package listener

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestNew_InitialStateIsDisconnected(t *testing.T) {
	l := New("postgres://invalid", "transaction_channel", time.Millisecond, make(chan string, 1))
	assert.Equal(t, StateDisconnected, l.State())
}

func TestWaitOrDone_CompletesNormally(t *testing.T) {
	l := New("postgres://invalid", "transaction_channel", 5*time.Millisecond, nil)
	ok := l.waitOrDone(context.Background())
	assert.True(t, ok)
}

func TestWaitOrDone_CancelledEarly(t *testing.T) {
	l := New("postgres://invalid", "transaction_channel", time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := l.waitOrDone(ctx)
	assert.False(t, ok)
}

func TestListenerEventName(t *testing.T) {
	assert.Equal(t, "connected", listenerEventName(pq.ListenerEventConnected))
	assert.Equal(t, "disconnected", listenerEventName(pq.ListenerEventDisconnected))
	assert.Equal(t, "reconnected", listenerEventName(pq.ListenerEventReconnected))
	assert.Equal(t, "connection_attempt_failed", listenerEventName(pq.ListenerEventConnectionAttemptFailed))
}

func TestDrain_ForwardsNotificationExtra(t *testing.T) {
	out := make(chan string, 1)
	l := New("postgres://invalid", "transaction_channel", time.Millisecond, out)

	notifyCh := make(chan *pq.Notification, 1)
	notifyCh <- &pq.Notification{Channel: "transaction_channel", Extra: "aabbcc"}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	forwarded := make(chan string, 1)
	go func() {
		forwarded <- <-out
		cancel()
	}()

	stopped := l.drain(ctx, notifyCh, func() error { return nil })
	assert.True(t, stopped)
	select {
	case got := <-forwarded:
		assert.Equal(t, "aabbcc", got)
	default:
		t.Fatal("drain returned without forwarding the notification")
	}
}

func TestDrain_ReconnectsWhenChannelClosed(t *testing.T) {
	l := New("postgres://invalid", "transaction_channel", time.Millisecond, make(chan string, 1))

	notifyCh := make(chan *pq.Notification)
	close(notifyCh)

	stopped := l.drain(context.Background(), notifyCh, func() error { return nil })
	assert.False(t, stopped)
}
