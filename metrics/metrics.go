package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync-run metrics. The fill-data endpoint answers before the scraper
// finishes, so these counters and the server log are the only places a
// failed run shows up.
var (
	SyncRunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msesync_sync_runs_started_total",
		Help: "Sync runs admitted by the runner.",
	})
	SyncRunsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msesync_sync_runs_succeeded_total",
		Help: "Sync runs whose trigger reported success.",
	})
	SyncRunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msesync_sync_runs_failed_total",
		Help: "Sync runs whose trigger reported failure or timed out.",
	})
	SyncRunsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msesync_sync_runs_rejected_total",
		Help: "Sync requests rejected because a run was already in flight.",
	})
	SyncRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "msesync_sync_run_duration_seconds",
		Help:    "Wall-clock duration of sync runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
