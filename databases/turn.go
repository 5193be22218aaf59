package databases

// go generate: mockery --name TurnDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parleyhq/debate-api/models"
)

const turnName = "turns"

// TurnDatabase contains the methods to use with the turn database
type TurnDatabase interface {
	Upsert(ctx context.Context, turn *models.DebateTurn) error
	FindByRound(ctx context.Context, roundID primitive.ObjectID) ([]models.DebateTurn, error)
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.DebateTurn, error)
}

type turnDatabase struct {
	db DatabaseHelper
}

// NewTurnDatabase initializes a new instance of turn database with the provided db connection
func NewTurnDatabase(db DatabaseHelper) TurnDatabase {
	return &turnDatabase{
		db: db,
	}
}

// Upsert writes the turn keyed on (roundId, turnNumber). Re-running a
// partially failed round overwrites the same row instead of duplicating.
func (t *turnDatabase) Upsert(ctx context.Context, turn *models.DebateTurn) error {
	now := primitive.NewDateTimeFromTime(time.Now())
	upsert := true
	_, err := t.db.Collection(turnName).UpdateOne(ctx,
		bson.M{"roundId": turn.RoundID, "turnNumber": turn.TurnNumber},
		bson.M{
			"$set": bson.M{
				"roomId":    turn.RoomID,
				"side":      turn.Side,
				"content":   turn.Content,
				"fallback":  turn.Fallback,
				"status":    turn.Status,
				"updatedAt": now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		&options.UpdateOptions{Upsert: &upsert},
	)
	return err
}

func (t *turnDatabase) FindByRound(ctx context.Context, roundID primitive.ObjectID) ([]models.DebateTurn, error) {
	cr, err := t.db.Collection(turnName).Find(ctx, bson.M{"roundId": roundID},
		&options.FindOptions{Sort: bson.D{{Key: "turnNumber", Value: 1}}})
	if err != nil {
		return nil, err
	}
	var turns []models.DebateTurn
	if err := cr.Decode(&turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func (t *turnDatabase) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.DebateTurn, error) {
	cr, err := t.db.Collection(turnName).Find(ctx, bson.M{"roomId": roomID},
		&options.FindOptions{Sort: bson.D{{Key: "turnNumber", Value: 1}}})
	if err != nil {
		return nil, err
	}
	var turns []models.DebateTurn
	if err := cr.Decode(&turns); err != nil {
		return nil, err
	}
	return turns, nil
}
