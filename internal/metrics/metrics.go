// Package metrics exposes the process-wide gauges and counters the
// pipeline updates as it runs, mirroring the teacher's
// datasync/chaindatafetcher gauge set (txsInsertionTimeGauge,
// txsInsertionRetryGauge, handledBlockNumberGauge) built on the same
// rcrowley/go-metrics registry, generalized from "chain event insertion"
// to "K action materialization".
package metrics

import "github.com/rcrowley/go-metrics"

var (
	// MaterializeDurationMs tracks the latency of the most recent
	// successful materialization statement, in milliseconds.
	MaterializeDurationMs = metrics.NewRegisteredGauge("k/materialize/duration_ms", metrics.DefaultRegistry)

	// RetryCount counts every transient-error retry attempted by a worker,
	// across the whole process lifetime.
	RetryCount = metrics.NewRegisteredCounter("k/worker/retry_count", metrics.DefaultRegistry)

	// DroppedCount counts every transaction a worker drops after parsing,
	// verification, or retry exhaustion — i.e. it never produced rows.
	DroppedCount = metrics.NewRegisteredCounter("k/worker/dropped_count", metrics.DefaultRegistry)

	// NotificationCount counts every payload the listener forwarded to the
	// dispatch queue.
	NotificationCount = metrics.NewRegisteredCounter("k/listener/notification_count", metrics.DefaultRegistry)
)
