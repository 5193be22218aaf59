package databases

// go generate: mockery --name RebuttalDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/parleyhq/debate-api/models"
)

const rebuttalName = "rebuttals"

// RebuttalDatabase contains the methods to use with the rebuttal database
type RebuttalDatabase interface {
	Insert(ctx context.Context, rebuttal *models.Rebuttal) (primitive.ObjectID, error)
	FindByRoomAndRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) ([]models.Rebuttal, error)
	CountByRoomAndRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (int64, error)
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Rebuttal, error)
}

type rebuttalDatabase struct {
	db DatabaseHelper
}

// NewRebuttalDatabase initializes a new instance of rebuttal database with the provided db connection
func NewRebuttalDatabase(db DatabaseHelper) RebuttalDatabase {
	return &rebuttalDatabase{
		db: db,
	}
}

// Insert relies on the (roomId, userId, roundNumber) unique index: a
// second rebuttal from the same user for the same round surfaces as a
// duplicate-key error.
func (r *rebuttalDatabase) Insert(ctx context.Context, rebuttal *models.Rebuttal) (primitive.ObjectID, error) {
	res, err := r.db.Collection(rebuttalName).InsertOne(ctx, rebuttal)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		return id, nil
	}
	return primitive.NilObjectID, nil
}

func (r *rebuttalDatabase) FindByRoomAndRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) ([]models.Rebuttal, error) {
	cr, err := r.db.Collection(rebuttalName).Find(ctx, bson.M{"roomId": roomID, "roundNumber": roundNumber})
	if err != nil {
		return nil, err
	}
	var rebuttals []models.Rebuttal
	if err := cr.Decode(&rebuttals); err != nil {
		return nil, err
	}
	return rebuttals, nil
}

func (r *rebuttalDatabase) CountByRoomAndRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (int64, error) {
	return r.db.Collection(rebuttalName).CountDocuments(ctx, bson.M{"roomId": roomID, "roundNumber": roundNumber})
}

func (r *rebuttalDatabase) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Rebuttal, error) {
	cr, err := r.db.Collection(rebuttalName).Find(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return nil, err
	}
	var rebuttals []models.Rebuttal
	if err := cr.Decode(&rebuttals); err != nil {
		return nil, err
	}
	return rebuttals, nil
}
