// Package health tracks a minimal in-process readiness snapshot, which the
// supervisor exposes through Supervisor.Health; nothing in this module logs
// it. It has no HTTP surface of its own; that belongs to the read API, which
// is out of scope for this pipeline.
package health

import (
	"sync"
	"time"

	"github.com/thesheepcat/k-transaction-processor/internal/listener"
)

// Snapshot is a point-in-time readiness report.
type Snapshot struct {
	ListenerState      listener.State
	LastNotificationAt time.Time
	NotificationCount  uint64
	WorkersAlive       int
	WorkersTotal       int
}

// Healthy reports whether the pipeline looks ready to make progress: the
// listener is subscribed and every spawned worker is still running.
func (s Snapshot) Healthy() bool {
	return s.ListenerState == listener.StateListening && s.WorkersAlive == s.WorkersTotal
}

// Tracker accumulates the fields of Snapshot as components report in. It is
// safe for concurrent use: the supervisor reports the listener's state and
// each worker's exit from the goroutines that run them, stamps notifications
// from its relay goroutine, and any caller may read a consistent snapshot
// at the same time.
type Tracker struct {
	mu sync.Mutex

	listenerState      listener.State
	lastNotificationAt time.Time
	notificationCount  uint64
	workersTotal       int
	workersAlive       map[int]bool
}

// New creates a Tracker for a pool of workersTotal workers, all initially
// presumed alive (they're about to be started by the supervisor).
func New(workersTotal int) *Tracker {
	alive := make(map[int]bool, workersTotal)
	for i := 0; i < workersTotal; i++ {
		alive[i] = true
	}
	return &Tracker{workersTotal: workersTotal, workersAlive: alive}
}

// ReportListenerState records the listener's current connection state.
func (t *Tracker) ReportListenerState(state listener.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listenerState = state
}

// ReportNotification records that a notification payload was forwarded to
// the dispatch queue, stamping the current time as supplied by the caller
// so the tracker itself never calls a wall-clock function.
func (t *Tracker) ReportNotification(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastNotificationAt = at
	t.notificationCount++
}

// ReportWorkerExited marks worker id as no longer running.
func (t *Tracker) ReportWorkerExited(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.workersAlive, id)
}

// Snapshot returns a consistent copy of the tracked state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ListenerState:      t.listenerState,
		LastNotificationAt: t.lastNotificationAt,
		NotificationCount:  t.notificationCount,
		WorkersAlive:       len(t.workersAlive),
		WorkersTotal:       t.workersTotal,
	}
}
