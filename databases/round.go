package databases

// go generate: mockery --name RoundDatabase

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

const roundName = "rounds"

// RoundDatabase contains the methods to use with the round database
type RoundDatabase interface {
	FindByRoomAndNumber(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (*models.Round, error)
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Round, error)
	Insert(ctx context.Context, round *models.Round) (primitive.ObjectID, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.RoundStatus) error
}

type roundDatabase struct {
	db DatabaseHelper
}

// NewRoundDatabase initializes a new instance of round database with the provided db connection
func NewRoundDatabase(db DatabaseHelper) RoundDatabase {
	return &roundDatabase{
		db: db,
	}
}

func (r *roundDatabase) FindByRoomAndNumber(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (*models.Round, error) {
	round := &models.Round{}
	err := r.db.Collection(roundName).FindOne(ctx, bson.M{"roomId": roomID, "roundNumber": roundNumber}).Decode(round)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return round, nil
}

func (r *roundDatabase) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Round, error) {
	cr, err := r.db.Collection(roundName).Find(ctx, bson.M{"roomId": roomID},
		&options.FindOptions{Sort: bson.D{{Key: "roundNumber", Value: 1}}})
	if err != nil {
		return nil, err
	}
	var rounds []models.Round
	if err := cr.Decode(&rounds); err != nil {
		return nil, err
	}
	return rounds, nil
}

func (r *roundDatabase) Insert(ctx context.Context, round *models.Round) (primitive.ObjectID, error) {
	res, err := r.db.Collection(roundName).InsertOne(ctx, round)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		return id, nil
	}
	return primitive.NilObjectID, nil
}

func (r *roundDatabase) SetStatus(ctx context.Context, id primitive.ObjectID, status models.RoundStatus) error {
	_, err := r.db.Collection(roundName).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":    status,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	return err
}
