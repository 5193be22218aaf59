// Package scheduler owns the background cadence of the job system: the
// periodic drain that keeps the queue moving without any HTTP traffic,
// and the reconciliation sweep that reclaims jobs orphaned in running by
// a dead worker.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/databases"
	"github.com/parleyhq/debate-api/debate"
)

// StaleRunningThreshold is how long a job may sit in running before the
// sweep assumes its worker died. Generation calls are capped well below
// this by their own timeout.
const StaleRunningThreshold = 10 * time.Minute

// Scheduler handles the periodic background jobs for the debate engine
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *debate.Dispatcher
	queue      *debate.Queue
	jobDB      databases.JobDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(dispatcher *debate.Dispatcher, queue *debate.Queue, jobDB databases.JobDatabase) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		dispatcher: dispatcher,
		queue:      queue,
		jobDB:      jobDB,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	_, err := s.cron.AddFunc("@every 1m", s.drainJobs)
	if err != nil {
		zap.S().Errorw("failed to register drain job", "error", err)
	}

	_, err = s.cron.AddFunc("@every 5m", s.reconcileStaleJobs)
	if err != nil {
		zap.S().Errorw("failed to register reconcile job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("job scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("job scheduler stopped")
}

// drainJobs runs one drain cycle. Concurrent drains from other instances
// or the HTTP endpoint are safe; claims are compare-and-swaps.
func (s *Scheduler) drainJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	processed, err := s.dispatcher.Drain(ctx)
	if err != nil {
		zap.S().Errorw("scheduled drain cycle failed", "error", err)
		return
	}
	if processed > 0 {
		zap.S().Infow("scheduled drain cycle finished", "processed", processed)
	}
}

// reconcileStaleJobs fails jobs stuck in running past the threshold.
// Routing them through the normal failure path gives them their
// remaining retries; handlers are idempotent, so whatever the dead
// worker already persisted is reused on the re-run.
func (s *Scheduler) reconcileStaleJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-StaleRunningThreshold)
	stale, err := s.jobDB.FindStaleRunning(ctx, cutoff)
	if err != nil {
		zap.S().Errorw("failed to find stale running jobs", "error", err)
		return
	}
	for i := range stale {
		job := &stale[i]
		zap.S().Warnw("reclaiming stale running job",
			"jobId", job.ID.Hex(),
			"type", job.Type,
			"startedAt", job.StartedAt,
		)
		if err := s.queue.Fail(ctx, job, fmt.Errorf("reclaimed after %v in running state", StaleRunningThreshold)); err != nil {
			zap.S().Errorw("failed to reclaim stale job", "jobId", job.ID.Hex(), "error", err)
		}
	}
}
