package debate

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/parleyhq/debate-api/models"
)

// The engine depends on narrow store interfaces rather than a process-wide
// database handle; the mongo repositories in the databases package satisfy
// them, and tests substitute in-memory fakes with the same CAS semantics.

// RoomStore is the slice of room persistence the engine needs.
type RoomStore interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Room, error)
	Join(ctx context.Context, id, participantID primitive.ObjectID) (bool, error)
	Transition(ctx context.Context, id primitive.ObjectID, expected, next models.RoomStatus, set bson.M) (bool, error)
}

// JobStore is the slice of job persistence the queue needs. All the
// boolean returns are compare-and-swap outcomes: false means another
// worker already acted and the caller must treat the call as a no-op.
type JobStore interface {
	Insert(ctx context.Context, job *models.Job) (primitive.ObjectID, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Job, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.Job, error)
	Exists(ctx context.Context, roomID primitive.ObjectID, jobType models.JobType, roundNumber int) (bool, error)
	Claim(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	Complete(ctx context.Context, id primitive.ObjectID, result bson.M, now time.Time) (bool, error)
	Requeue(ctx context.Context, id primitive.ObjectID, retryCount int, scheduledAt time.Time, errMsg string) (bool, error)
	FailTerminal(ctx context.Context, id primitive.ObjectID, errMsg string, now time.Time) (bool, error)
	Cancel(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
}

// ArgumentStore exposes the submitted opening arguments.
type ArgumentStore interface {
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Argument, error)
}

// RebuttalStore exposes the human rebuttals gating round advancement.
type RebuttalStore interface {
	FindByRoomAndRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) ([]models.Rebuttal, error)
	CountByRoomAndRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (int64, error)
}

// RoundStore persists debate rounds.
type RoundStore interface {
	FindByRoomAndNumber(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (*models.Round, error)
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Round, error)
	Insert(ctx context.Context, round *models.Round) (primitive.ObjectID, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.RoundStatus) error
}

// TurnStore persists generated statements, upserting on (roundId, turnNumber).
type TurnStore interface {
	Upsert(ctx context.Context, turn *models.DebateTurn) error
	FindByRound(ctx context.Context, roundID primitive.ObjectID) ([]models.DebateTurn, error)
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.DebateTurn, error)
}

// JuryVoteStore persists juror votes, upserting on (roomId, jurorNumber).
type JuryVoteStore interface {
	Upsert(ctx context.Context, vote *models.JuryVote) error
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.JuryVote, error)
	CountByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error)
}

// DecisionStore persists the final verdict, at most one per room.
type DecisionStore interface {
	Upsert(ctx context.Context, decision *models.JudgeDecision) error
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) (*models.JudgeDecision, error)
}
