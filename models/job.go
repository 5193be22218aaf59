package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobType identifies the kind of asynchronous work a job carries.
type JobType string

// Job types.
const (
	JobTypeDebate JobType = "AI_DEBATE"
	JobTypeJury   JobType = "AI_JURY"
	JobTypeJudge  JobType = "AI_JUDGE"
)

// JobStatus is a node in the job lifecycle. Jobs are never deleted;
// terminal rows stay behind as an audit trail.
type JobStatus string

// Job statuses.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// DebatePayload parameterizes an AI_DEBATE job.
type DebatePayload struct {
	RoomID      primitive.ObjectID `json:"roomId" bson:"roomId"`
	RoundNumber int                `json:"roundNumber" bson:"roundNumber"`
}

// JuryPayload parameterizes an AI_JURY job.
type JuryPayload struct {
	RoomID primitive.ObjectID `json:"roomId" bson:"roomId"`
}

// JudgePayload parameterizes an AI_JUDGE job.
type JudgePayload struct {
	RoomID primitive.ObjectID `json:"roomId" bson:"roomId"`
}

// JobPayload is a tagged union: exactly one variant is set, and it must
// match the job's type. Validate enforces both before a row is written
// and again before a handler runs.
type JobPayload struct {
	Debate *DebatePayload `json:"debate,omitempty" bson:"debate,omitempty"`
	Jury   *JuryPayload   `json:"jury,omitempty" bson:"jury,omitempty"`
	Judge  *JudgePayload  `json:"judge,omitempty" bson:"judge,omitempty"`
}

// Validate checks that exactly one variant is populated, that it matches
// the declared job type, and that its fields are in range.
func (p JobPayload) Validate(t JobType) error {
	set := 0
	if p.Debate != nil {
		set++
	}
	if p.Jury != nil {
		set++
	}
	if p.Judge != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("payload must carry exactly one variant, has %d", set)
	}
	switch t {
	case JobTypeDebate:
		if p.Debate == nil {
			return fmt.Errorf("payload variant does not match job type %s", t)
		}
		if p.Debate.RoomID.IsZero() {
			return fmt.Errorf("debate payload missing roomId")
		}
		if p.Debate.RoundNumber < 1 || p.Debate.RoundNumber > 3 {
			return fmt.Errorf("debate payload round %d out of range", p.Debate.RoundNumber)
		}
	case JobTypeJury:
		if p.Jury == nil {
			return fmt.Errorf("payload variant does not match job type %s", t)
		}
		if p.Jury.RoomID.IsZero() {
			return fmt.Errorf("jury payload missing roomId")
		}
	case JobTypeJudge:
		if p.Judge == nil {
			return fmt.Errorf("payload variant does not match job type %s", t)
		}
		if p.Judge.RoomID.IsZero() {
			return fmt.Errorf("judge payload missing roomId")
		}
	default:
		return fmt.Errorf("unknown job type %q", t)
	}
	return nil
}

// Job holds the structure for the jobs collection in mongo. ScheduledAt
// is when the job becomes due; retries push it into the future.
type Job struct {
	ID          primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Type        JobType             `json:"type" bson:"type"`
	Status      JobStatus           `json:"status" bson:"status"`
	RoomID      primitive.ObjectID  `json:"roomId" bson:"roomId"`
	Payload     JobPayload          `json:"payload" bson:"payload"`
	Result      bson.M              `json:"result,omitempty" bson:"result,omitempty"`
	Error       string              `json:"error,omitempty" bson:"error,omitempty"`
	RetryCount  int                 `json:"retryCount" bson:"retryCount"`
	MaxRetries  int                 `json:"maxRetries" bson:"maxRetries"`
	ScheduledAt primitive.DateTime  `json:"scheduledAt" bson:"scheduledAt"`
	StartedAt   *primitive.DateTime `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt *primitive.DateTime `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CreatedAt   primitive.DateTime  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   primitive.DateTime  `json:"updatedAt" bson:"updatedAt"`
}
