// Package scheduler drives time-based workflow triggering. A ticker polls
// the enabled schedules and starts a session for every workflow whose cron
// expression matches the current minute.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/schedule"
	"github.com/xqin1/pipeflow/internal/service"
)

// Runner polls workflow schedules on a fixed interval. Fires at most once
// per workflow per due minute; minutes that pass while the process is down
// are not replayed.
type Runner struct {
	service  *service.Service
	interval time.Duration

	mu        sync.Mutex
	lastFired map[string]time.Time // workflow id -> minute last fired

	running atomic.Bool
}

// NewRunner creates a Runner. The interval should divide a minute so no
// due minute falls between ticks.
func NewRunner(svc *service.Service, interval time.Duration) *Runner {
	return &Runner{
		service:   svc,
		interval:  interval,
		lastFired: make(map[string]time.Time),
	}
}

// Start runs the tick loop until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.running.Store(true)
	defer r.running.Store(false)

	log.Printf("INFO: scheduler started (interval=%s)", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("INFO: scheduler stopped")
			return
		case now := <-ticker.C:
			if err := r.Tick(ctx, now); err != nil {
				log.Printf("ERROR: scheduler tick failed: %v", err)
			}
		}
	}
}

// Tick evaluates every enabled schedule against the minute containing now
// and triggers the due ones.
func (r *Runner) Tick(ctx context.Context, now time.Time) error {
	minute := now.Truncate(time.Minute)

	workflows, err := r.service.ListScheduledWorkflows(ctx)
	if err != nil {
		return err
	}

	for _, wf := range workflows {
		if !r.shouldFire(wf.WorkflowID, wf.Schedule, minute) {
			continue
		}
		session, err := r.service.StartSession(ctx, wf.WorkflowID, domain.TriggerScheduled, "")
		if err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				// The previous run is still going; this minute's firing is
				// skipped, not deferred.
				log.Printf("INFO: workflow %s due but session %s still in flight, skipping", wf.WorkflowID, conflict.SessionID)
				continue
			}
			log.Printf("ERROR: failed to trigger workflow %s: %v", wf.WorkflowID, err)
			continue
		}
		if session == nil {
			// Deleted between listing and triggering.
			continue
		}
		log.Printf("INFO: triggered workflow %s -> session %s", wf.WorkflowID, session.SessionID)
	}
	return nil
}

// shouldFire reports whether the workflow is due this minute and has not
// already fired for it, recording the minute when it is.
func (r *Runner) shouldFire(workflowID, cronExpr string, minute time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastFired[workflowID]; ok && last.Equal(minute) {
		return false
	}
	due, err := schedule.Due(cronExpr, minute)
	if err != nil {
		log.Printf("WARN: workflow %s has unparseable schedule %q: %v", workflowID, cronExpr, err)
		return false
	}
	if !due {
		return false
	}
	r.lastFired[workflowID] = minute
	return true
}

// Running reports whether the tick loop is active.
func (r *Runner) Running() bool { return r.running.Load() }

// Interval returns the polling interval.
func (r *Runner) Interval() time.Duration { return r.interval }
