package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/api"
	"github.com/parleyhq/debate-api/config"
	"github.com/parleyhq/debate-api/databases"
	"github.com/parleyhq/debate-api/debate"
	"github.com/parleyhq/debate-api/models"
)

// Job exported for testing purposes
type Job struct {
	DB         databases.JobDatabase
	RoomDB     databases.RoomDatabase
	Queue      *debate.Queue
	Dispatcher *debate.Dispatcher
}

// JobDrainHandler runs one drain cycle. The scheduler hits this every
// minute; calling it by hand just drains sooner.
func (j Job) JobDrainHandler(w http.ResponseWriter, r *http.Request) {
	processed, err := j.Dispatcher.Drain(r.Context())
	if err != nil {
		config.ErrorStatus("drain cycle failed", http.StatusInternalServerError, w, err)
		return
	}
	b, err := json.Marshal(map[string]int{"processed": processed})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// JobHandler returns a job by ID
func (j Job) JobHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := j.fetchJob(w, r)
	if !ok {
		return
	}
	b, err := json.Marshal(job)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// JobsByRoomHandler returns every job ever enqueued for a room
func (j Job) JobsByRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	rID, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	jobs, err := j.DB.FindByRoom(context.Background(), rID)
	if err != nil {
		config.ErrorStatus("failed to get jobs by room", http.StatusInternalServerError, w, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	b, err := json.Marshal(jobs)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// JobCancelHandler cancels a queued or running job. Only a member of the
// job's room may cancel it.
func (j Job) JobCancelHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := j.fetchJob(w, r)
	if !ok {
		return
	}
	userID, err := api.AuthUserID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve authenticated user", http.StatusUnauthorized, w, err)
		return
	}
	room, err := j.RoomDB.Get(context.Background(), job.RoomID)
	if err != nil {
		config.ErrorStatus("failed to get room by ID", http.StatusInternalServerError, w, err)
		return
	}
	if room == nil {
		config.ErrorStatus("room not found", http.StatusNotFound, w, fmt.Errorf("no room %s", job.RoomID.Hex()))
		return
	}
	if !room.HasMember(userID) {
		config.ErrorStatus("user is not a member of this room", http.StatusForbidden, w,
			fmt.Errorf("user %s not in room %s", userID.Hex(), room.ID.Hex()))
		return
	}
	cancelled, err := j.Queue.Cancel(context.Background(), job)
	if err != nil {
		config.ErrorStatus("failed to cancel job", http.StatusInternalServerError, w, err)
		return
	}
	if !cancelled {
		config.ErrorStatus("job is already terminal", http.StatusConflict, w,
			fmt.Errorf("job %s is in status %s", job.ID.Hex(), job.Status))
		return
	}
	job.Status = models.JobStatusCancelled
	b, err := json.Marshal(job)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// JobRetryHandler re-queues a terminally failed job with a fresh retry
// budget
func (j Job) JobRetryHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := j.fetchJob(w, r)
	if !ok {
		return
	}
	reset, err := j.DB.ResetForRetry(context.Background(), job.ID, time.Now())
	if err != nil {
		config.ErrorStatus("failed to retry job", http.StatusInternalServerError, w, err)
		return
	}
	if !reset {
		config.ErrorStatus("only failed jobs can be retried", http.StatusConflict, w,
			fmt.Errorf("job %s is in status %s", job.ID.Hex(), job.Status))
		return
	}
	zap.S().Infow("job manually re-queued", "jobId", job.ID.Hex(), "type", job.Type)

	job.Status = models.JobStatusQueued
	job.RetryCount = 0
	b, err := json.Marshal(job)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (j Job) fetchJob(w http.ResponseWriter, r *http.Request) (*models.Job, bool) {
	jobID := mux.Vars(r)["job_id"]
	jID, err := primitive.ObjectIDFromHex(jobID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return nil, false
	}
	job, err := j.DB.Get(context.Background(), jID)
	if err != nil {
		config.ErrorStatus("failed to get job by ID", http.StatusInternalServerError, w, err)
		return nil, false
	}
	if job == nil {
		config.ErrorStatus("job not found", http.StatusNotFound, w, fmt.Errorf("no job %s", jobID))
		return nil, false
	}
	return job, true
}
