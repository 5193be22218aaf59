package databases

// go generate: mockery --name JobDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parleyhq/debate-api/models"
)

const jobName = "jobs"

// JobDatabase contains the methods to use with the job database. Every
// status mutation is a compare-and-swap on the expected prior status so
// that concurrent drain cycles cannot double-claim or resurrect a job;
// a false return means the swap lost the race.
type JobDatabase interface {
	Insert(ctx context.Context, job *models.Job) (primitive.ObjectID, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Job, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.Job, error)
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Job, error)
	FindStaleRunning(ctx context.Context, olderThan time.Time) ([]models.Job, error)
	Exists(ctx context.Context, roomID primitive.ObjectID, jobType models.JobType, roundNumber int) (bool, error)
	Claim(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	Complete(ctx context.Context, id primitive.ObjectID, result bson.M, now time.Time) (bool, error)
	Requeue(ctx context.Context, id primitive.ObjectID, retryCount int, scheduledAt time.Time, errMsg string) (bool, error)
	FailTerminal(ctx context.Context, id primitive.ObjectID, errMsg string, now time.Time) (bool, error)
	Cancel(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	ResetForRetry(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
}

type jobDatabase struct {
	db DatabaseHelper
}

// NewJobDatabase initializes a new instance of job database with the provided db connection
func NewJobDatabase(db DatabaseHelper) JobDatabase {
	return &jobDatabase{
		db: db,
	}
}

func (j *jobDatabase) Insert(ctx context.Context, job *models.Job) (primitive.ObjectID, error) {
	res, err := j.db.Collection(jobName).InsertOne(ctx, job)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		return id, nil
	}
	return primitive.NilObjectID, nil
}

func (j *jobDatabase) Get(ctx context.Context, id primitive.ObjectID) (*models.Job, error) {
	job := &models.Job{}
	err := j.db.Collection(jobName).FindOne(ctx, bson.M{"_id": id}).Decode(job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// FindDue returns queued jobs whose scheduledAt has passed, oldest first.
func (j *jobDatabase) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	limit64 := int64(limit)
	cr, err := j.db.Collection(jobName).Find(ctx,
		bson.M{
			"status":      models.JobStatusQueued,
			"scheduledAt": bson.M{"$lte": primitive.NewDateTimeFromTime(now)},
		},
		&options.FindOptions{
			Sort:  bson.D{{Key: "scheduledAt", Value: 1}},
			Limit: &limit64,
		},
	)
	if err != nil {
		return nil, err
	}
	var jobs []models.Job
	if err := cr.Decode(&jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (j *jobDatabase) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Job, error) {
	cr, err := j.db.Collection(jobName).Find(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return nil, err
	}
	var jobs []models.Job
	if err := cr.Decode(&jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindStaleRunning returns running jobs whose startedAt is older than the
// given cutoff. Used by the reconciliation sweep to recover jobs whose
// worker died between persisting results and completing the job row.
func (j *jobDatabase) FindStaleRunning(ctx context.Context, olderThan time.Time) ([]models.Job, error) {
	cr, err := j.db.Collection(jobName).Find(ctx, bson.M{
		"status":    models.JobStatusRunning,
		"startedAt": bson.M{"$lt": primitive.NewDateTimeFromTime(olderThan)},
	})
	if err != nil {
		return nil, err
	}
	var jobs []models.Job
	if err := cr.Decode(&jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Exists reports whether any job of the given type already exists for the
// room (any status; jobs are never deleted). For AI_DEBATE, roundNumber
// narrows the check to one round; pass 0 for the other types.
func (j *jobDatabase) Exists(ctx context.Context, roomID primitive.ObjectID, jobType models.JobType, roundNumber int) (bool, error) {
	filter := bson.M{"roomId": roomID, "type": jobType}
	if roundNumber > 0 {
		filter["payload.debate.roundNumber"] = roundNumber
	}
	count, err := j.db.Collection(jobName).CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (j *jobDatabase) Claim(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	ts := primitive.NewDateTimeFromTime(now)
	res, err := j.db.Collection(jobName).UpdateOne(ctx,
		bson.M{"_id": id, "status": models.JobStatusQueued},
		bson.M{"$set": bson.M{
			"status":    models.JobStatusRunning,
			"startedAt": ts,
			"updatedAt": ts,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (j *jobDatabase) Complete(ctx context.Context, id primitive.ObjectID, result bson.M, now time.Time) (bool, error) {
	ts := primitive.NewDateTimeFromTime(now)
	res, err := j.db.Collection(jobName).UpdateOne(ctx,
		bson.M{"_id": id, "status": models.JobStatusRunning},
		bson.M{"$set": bson.M{
			"status":      models.JobStatusSucceeded,
			"result":      result,
			"completedAt": ts,
			"updatedAt":   ts,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (j *jobDatabase) Requeue(ctx context.Context, id primitive.ObjectID, retryCount int, scheduledAt time.Time, errMsg string) (bool, error) {
	res, err := j.db.Collection(jobName).UpdateOne(ctx,
		bson.M{"_id": id, "status": models.JobStatusRunning},
		bson.M{"$set": bson.M{
			"status":      models.JobStatusQueued,
			"retryCount":  retryCount,
			"scheduledAt": primitive.NewDateTimeFromTime(scheduledAt),
			"error":       errMsg,
			"updatedAt":   primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (j *jobDatabase) FailTerminal(ctx context.Context, id primitive.ObjectID, errMsg string, now time.Time) (bool, error) {
	ts := primitive.NewDateTimeFromTime(now)
	res, err := j.db.Collection(jobName).UpdateOne(ctx,
		bson.M{"_id": id, "status": models.JobStatusRunning},
		bson.M{"$set": bson.M{
			"status":      models.JobStatusFailed,
			"error":       errMsg,
			"completedAt": ts,
			"updatedAt":   ts,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (j *jobDatabase) Cancel(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	ts := primitive.NewDateTimeFromTime(now)
	res, err := j.db.Collection(jobName).UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []models.JobStatus{models.JobStatusQueued, models.JobStatusRunning}}},
		bson.M{"$set": bson.M{
			"status":      models.JobStatusCancelled,
			"completedAt": ts,
			"updatedAt":   ts,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ResetForRetry re-queues a terminally failed job after a human asked for
// a manual retry. Only failed jobs qualify.
func (j *jobDatabase) ResetForRetry(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	ts := primitive.NewDateTimeFromTime(now)
	res, err := j.db.Collection(jobName).UpdateOne(ctx,
		bson.M{"_id": id, "status": models.JobStatusFailed},
		bson.M{"$set": bson.M{
			"status":      models.JobStatusQueued,
			"retryCount":  0,
			"error":       "",
			"scheduledAt": ts,
			"completedAt": nil,
			"updatedAt":   ts,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
