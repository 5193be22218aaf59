package databases

// go generate: mockery --name JuryVoteDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parleyhq/debate-api/models"
)

const juryVoteName = "juryVotes"

// JuryVoteDatabase contains the methods to use with the jury vote database
type JuryVoteDatabase interface {
	Upsert(ctx context.Context, vote *models.JuryVote) error
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.JuryVote, error)
	CountByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error)
}

type juryVoteDatabase struct {
	db DatabaseHelper
}

// NewJuryVoteDatabase initializes a new instance of jury vote database with the provided db connection
func NewJuryVoteDatabase(db DatabaseHelper) JuryVoteDatabase {
	return &juryVoteDatabase{
		db: db,
	}
}

// Upsert writes the vote keyed on (roomId, jurorNumber) so a resumed jury
// batch never double-counts a juror.
func (j *juryVoteDatabase) Upsert(ctx context.Context, vote *models.JuryVote) error {
	now := primitive.NewDateTimeFromTime(time.Now())
	upsert := true
	_, err := j.db.Collection(juryVoteName).UpdateOne(ctx,
		bson.M{"roomId": vote.RoomID, "jurorNumber": vote.JurorNumber},
		bson.M{
			"$set": bson.M{
				"vote":       vote.Vote,
				"confidence": vote.Confidence,
				"reasoning":  vote.Reasoning,
				"persona":    vote.Persona,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		&options.UpdateOptions{Upsert: &upsert},
	)
	return err
}

func (j *juryVoteDatabase) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.JuryVote, error) {
	cr, err := j.db.Collection(juryVoteName).Find(ctx, bson.M{"roomId": roomID},
		&options.FindOptions{Sort: bson.D{{Key: "jurorNumber", Value: 1}}})
	if err != nil {
		return nil, err
	}
	var votes []models.JuryVote
	if err := cr.Decode(&votes); err != nil {
		return nil, err
	}
	return votes, nil
}

func (j *juryVoteDatabase) CountByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	return j.db.Collection(juryVoteName).CountDocuments(ctx, bson.M{"roomId": roomID})
}
