package databases

// go generate: mockery --name JudgeDecisionDatabase

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

const judgeDecisionName = "judgeDecisions"

// JudgeDecisionDatabase contains the methods to use with the judge decision database
type JudgeDecisionDatabase interface {
	Upsert(ctx context.Context, decision *models.JudgeDecision) error
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) (*models.JudgeDecision, error)
}

type judgeDecisionDatabase struct {
	db DatabaseHelper
}

// NewJudgeDecisionDatabase initializes a new instance of judge decision database with the provided db connection
func NewJudgeDecisionDatabase(db DatabaseHelper) JudgeDecisionDatabase {
	return &judgeDecisionDatabase{
		db: db,
	}
}

// Upsert writes the decision keyed on roomId; there is at most one final
// verdict per room.
func (d *judgeDecisionDatabase) Upsert(ctx context.Context, decision *models.JudgeDecision) error {
	now := primitive.NewDateTimeFromTime(time.Now())
	upsert := true
	_, err := d.db.Collection(judgeDecisionName).UpdateOne(ctx,
		bson.M{"roomId": decision.RoomID},
		bson.M{
			"$set": bson.M{
				"winner":    decision.Winner,
				"reasoning": decision.Reasoning,
				"scoreA":    decision.ScoreA,
				"scoreB":    decision.ScoreB,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		&options.UpdateOptions{Upsert: &upsert},
	)
	return err
}

func (d *judgeDecisionDatabase) FindByRoom(ctx context.Context, roomID primitive.ObjectID) (*models.JudgeDecision, error) {
	decision := &models.JudgeDecision{}
	err := d.db.Collection(judgeDecisionName).FindOne(ctx, bson.M{"roomId": roomID}).Decode(decision)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decision, nil
}
