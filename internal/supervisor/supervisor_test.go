package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesheepcat/k-transaction-processor/internal/config"
	"github.com/thesheepcat/k-transaction-processor/internal/store"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		Workers: config.WorkerConfig{Count: 2},
		Processing: config.ProcessingConfig{
			ChannelName:   "transaction_channel",
			RetryAttempts: 1,
			RetryDelayMs:  1,
		},
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(testConfig(), "postgres://u:p@127.0.0.1:1/db?sslmode=disable", store.New(db))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	// let the components spin up and attempt (and fail) a connection
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestHealth_ReflectsWorkerCount(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(testConfig(), "postgres://invalid/db", store.New(db))
	snap := s.Health().Snapshot()
	assert.Equal(t, 2, snap.WorkersTotal)
	assert.Equal(t, 2, snap.WorkersAlive)
}
