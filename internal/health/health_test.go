package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thesheepcat/k-transaction-processor/internal/listener"
)

func TestNew_AllWorkersAliveInitially(t *testing.T) {
	tr := New(3)
	snap := tr.Snapshot()
	assert.Equal(t, 3, snap.WorkersTotal)
	assert.Equal(t, 3, snap.WorkersAlive)
	assert.False(t, snap.Healthy()) // listener state is still the zero value (Disconnected)
}

func TestHealthy_RequiresListeningAndAllWorkers(t *testing.T) {
	tr := New(2)
	tr.ReportListenerState(listener.StateListening)
	assert.True(t, tr.Snapshot().Healthy())

	tr.ReportWorkerExited(0)
	assert.False(t, tr.Snapshot().Healthy())
}

func TestReportNotification_UpdatesCountAndTimestamp(t *testing.T) {
	tr := New(1)
	now := time.Unix(1700000000, 0)
	tr.ReportNotification(now)
	tr.ReportNotification(now.Add(time.Second))

	snap := tr.Snapshot()
	assert.Equal(t, uint64(2), snap.NotificationCount)
	assert.Equal(t, now.Add(time.Second), snap.LastNotificationAt)
}

func TestReportWorkerExited_Idempotent(t *testing.T) {
	tr := New(2)
	tr.ReportWorkerExited(0)
	tr.ReportWorkerExited(0)
	assert.Equal(t, 1, tr.Snapshot().WorkersAlive)
}
