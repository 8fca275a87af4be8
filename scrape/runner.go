package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/msedata/msesync/metrics"
)

// Runner executes sync triggers asynchronously. At most one run is in
// flight at a time; callers observe completion by polling the watermarks,
// there is no callback. Trigger failures are logged and counted, never
// returned to the HTTP caller.
type Runner struct {
	trigger Trigger
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

func NewRunner(trigger Trigger, timeout time.Duration) *Runner {
	return &Runner{trigger: trigger, timeout: timeout}
}

// Start admits a sync run and returns immediately. The return value says
// whether the run was admitted; false means one is already in flight.
func (r *Runner) Start() bool {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		metrics.SyncRunsRejected.Inc()
		return false
	}
	r.running = true
	r.mu.Unlock()

	metrics.SyncRunsStarted.Inc()
	go r.run()
	return true
}

// Running reports whether a sync run is currently in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) run() {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	err := r.trigger.Run(ctx)
	elapsed := time.Since(start)
	metrics.SyncRunDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.SyncRunsFailed.Inc()
		logrus.WithError(err).WithField("elapsed", elapsed).Error("Sync run failed")
		return
	}
	metrics.SyncRunsSucceeded.Inc()
	logrus.WithField("elapsed", elapsed).Info("Sync run completed")
}
