package debate

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/models"
)

// Queue retry policy.
const (
	DefaultMaxRetries = 3
	backoffBase       = 60 * time.Second
)

// Queue is a durable job queue over the jobs collection. It may be
// drained from any number of workers concurrently: every status change
// is a compare-and-swap keyed on the expected prior status, so overlap
// never double-runs or resurrects a job.
type Queue struct {
	jobs JobStore
	now  func() time.Time
}

// NewQueue returns a queue over the given job store.
func NewQueue(jobs JobStore) *Queue {
	return &Queue{jobs: jobs, now: time.Now}
}

// Enqueue validates the payload and inserts a queued job due immediately.
// Malformed payloads are rejected before any row is created.
func (q *Queue) Enqueue(ctx context.Context, jobType models.JobType, roomID primitive.ObjectID, payload models.JobPayload, maxRetries int) (*models.Job, error) {
	if err := payload.Validate(jobType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	now := primitive.NewDateTimeFromTime(q.now())
	job := &models.Job{
		Type:        jobType,
		Status:      models.JobStatusQueued,
		RoomID:      roomID,
		Payload:     payload,
		RetryCount:  0,
		MaxRetries:  maxRetries,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := q.jobs.Insert(ctx, job)
	if err != nil {
		return nil, err
	}
	job.ID = id
	zap.S().Infow("job enqueued",
		"jobId", id.Hex(),
		"type", jobType,
		"roomId", roomID.Hex(),
	)
	return job, nil
}

// ClaimNext claims up to limit due jobs. Candidates another worker claims
// first are silently skipped; only jobs this caller moved to running are
// returned.
func (q *Queue) ClaimNext(ctx context.Context, limit int) ([]models.Job, error) {
	now := q.now()
	candidates, err := q.jobs.FindDue(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	var claimed []models.Job
	for _, job := range candidates {
		ok, err := q.jobs.Claim(ctx, job.ID, now)
		if err != nil {
			return claimed, err
		}
		if !ok {
			// Already claimed elsewhere.
			continue
		}
		job.Status = models.JobStatusRunning
		started := primitive.NewDateTimeFromTime(now)
		job.StartedAt = &started
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// Complete records a successful result. If a cancellation raced the
// completion, the conditional update misses and the result is discarded,
// never retried.
func (q *Queue) Complete(ctx context.Context, job *models.Job, result bson.M) error {
	ok, err := q.jobs.Complete(ctx, job.ID, result, q.now())
	if err != nil {
		return err
	}
	if !ok {
		zap.S().Debugw("job completion discarded, job no longer running",
			"jobId", job.ID.Hex(),
		)
	}
	return nil
}

// Fail applies the retry policy: with retries remaining the job goes back
// to queued with exponential backoff, otherwise it fails terminally.
func (q *Queue) Fail(ctx context.Context, job *models.Job, jobErr error) error {
	if job.RetryCount+1 < job.MaxRetries {
		delay := backoffBase * time.Duration(1<<uint(job.RetryCount))
		ok, err := q.jobs.Requeue(ctx, job.ID, job.RetryCount+1, q.now().Add(delay), jobErr.Error())
		if err != nil {
			return err
		}
		if ok {
			zap.S().Warnw("job requeued for retry",
				"jobId", job.ID.Hex(),
				"type", job.Type,
				"retryCount", job.RetryCount+1,
				"delay", delay,
				"error", jobErr,
			)
		}
		return nil
	}
	return q.FailPermanent(ctx, job, jobErr)
}

// FailPermanent fails the job terminally regardless of retries remaining.
func (q *Queue) FailPermanent(ctx context.Context, job *models.Job, jobErr error) error {
	ok, err := q.jobs.FailTerminal(ctx, job.ID, jobErr.Error(), q.now())
	if err != nil {
		return err
	}
	if ok {
		zap.S().Errorw("job failed terminally",
			"jobId", job.ID.Hex(),
			"type", job.Type,
			"roomId", job.RoomID.Hex(),
			"error", jobErr,
		)
	}
	return nil
}

// Cancel moves a queued or running job to cancelled. An in-flight
// generation call is not aborted; the CAS just guarantees its result can
// no longer be persisted and follow-on jobs are not enqueued.
func (q *Queue) Cancel(ctx context.Context, job *models.Job) (bool, error) {
	ok, err := q.jobs.Cancel(ctx, job.ID, q.now())
	if err != nil {
		return false, err
	}
	if ok {
		zap.S().Infow("job cancelled",
			"jobId", job.ID.Hex(),
			"type", job.Type,
		)
	}
	return ok, nil
}

// StillRunning re-reads the job row and reports whether it is still
// running. The pipeline checks this before enqueuing follow-on work so a
// cancellation that raced the handler stops the chain.
func (q *Queue) StillRunning(ctx context.Context, id primitive.ObjectID) (bool, error) {
	job, err := q.jobs.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return job != nil && job.Status == models.JobStatusRunning, nil
}

// HasJob reports whether a job of the given type (and round, for
// AI_DEBATE) was ever enqueued for the room. Used to keep chain
// enqueues idempotent across handler re-runs.
func (q *Queue) HasJob(ctx context.Context, roomID primitive.ObjectID, jobType models.JobType, roundNumber int) (bool, error) {
	return q.jobs.Exists(ctx, roomID, jobType, roundNumber)
}
