package debate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/models"
)

// DefaultDrainBatch caps how many jobs one drain cycle claims.
const DefaultDrainBatch = 10

// HandlerFunc processes one claimed job. A nil error completes the job
// with the returned result; a Terminal-marked error fails it immediately;
// any other error goes through the retry policy.
type HandlerFunc func(ctx context.Context, job *models.Job) (bson.M, error)

// Dispatcher drains the job queue: it claims due jobs, re-validates their
// payloads, routes them to the typed handlers, and owns the
// success/retry/terminal bookkeeping. One job's failure, panic included,
// never takes down the cycle.
type Dispatcher struct {
	queue    *Queue
	handlers map[models.JobType]HandlerFunc
	batch    int
}

// NewDispatcher wires the pipeline's handlers under their job types.
func NewDispatcher(queue *Queue, pipeline *Pipeline) *Dispatcher {
	return &Dispatcher{
		queue: queue,
		handlers: map[models.JobType]HandlerFunc{
			models.JobTypeDebate: pipeline.HandleDebate,
			models.JobTypeJury:   pipeline.HandleJury,
			models.JobTypeJudge:  pipeline.HandleJudge,
		},
		batch: DefaultDrainBatch,
	}
}

// Drain runs one cycle: claim up to the batch size, process each claimed
// job in turn, and report how many were processed. It is safe to call
// from multiple workers at once; the claim CAS keeps them from stepping
// on each other.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	claimed, err := d.queue.ClaimNext(ctx, d.batch)
	if err != nil {
		return 0, err
	}
	for i := range claimed {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		d.process(ctx, &claimed[i])
	}
	return len(claimed), nil
}

func (d *Dispatcher) process(ctx context.Context, job *models.Job) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("job handler panicked",
				"jobId", job.ID.Hex(),
				"type", job.Type,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			d.fail(ctx, job, Terminal("handler panic: %v", r))
		}
	}()

	// The payload was validated at enqueue time; re-validating here keeps
	// a row corrupted out of band from reaching a handler.
	if err := job.Payload.Validate(job.Type); err != nil {
		d.fail(ctx, job, Terminal("payload validation: %v", err))
		return
	}
	handler, ok := d.handlers[job.Type]
	if !ok {
		d.fail(ctx, job, Terminal("no handler for job type %q", job.Type))
		return
	}

	zap.S().Infow("processing job",
		"jobId", job.ID.Hex(),
		"type", job.Type,
		"roomId", job.RoomID.Hex(),
		"retryCount", job.RetryCount,
	)
	result, err := handler(ctx, job)
	if err != nil {
		d.fail(ctx, job, err)
		return
	}
	if err := d.queue.Complete(ctx, job, result); err != nil {
		zap.S().Errorw("failed to record job completion",
			"jobId", job.ID.Hex(),
			"error", err,
		)
	}
}

// fail routes a handler error: Terminal-marked errors (and validation
// errors, which no retry can fix) fail the job permanently, everything
// else is treated as transient.
func (d *Dispatcher) fail(ctx context.Context, job *models.Job, jobErr error) {
	var err error
	if IsTerminal(jobErr) || errors.Is(jobErr, ErrValidation) {
		err = d.queue.FailPermanent(ctx, job, jobErr)
	} else {
		err = d.queue.Fail(ctx, job, jobErr)
	}
	if err != nil {
		zap.S().Errorw("failed to record job failure",
			"jobId", job.ID.Hex(),
			"error", fmt.Sprintf("%v (original: %v)", err, jobErr),
		)
	}
}
