package databases

// go generate: mockery --name ArgumentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/parleyhq/debate-api/models"
)

const argumentName = "arguments"

// ArgumentDatabase contains the methods to use with the argument database
type ArgumentDatabase interface {
	Insert(ctx context.Context, argument *models.Argument) (primitive.ObjectID, error)
	FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Argument, error)
}

type argumentDatabase struct {
	db DatabaseHelper
}

// NewArgumentDatabase initializes a new instance of argument database with the provided db connection
func NewArgumentDatabase(db DatabaseHelper) ArgumentDatabase {
	return &argumentDatabase{
		db: db,
	}
}

// Insert relies on the (roomId, side) unique index: a second argument for
// the same side surfaces as a duplicate-key error.
func (a *argumentDatabase) Insert(ctx context.Context, argument *models.Argument) (primitive.ObjectID, error) {
	res, err := a.db.Collection(argumentName).InsertOne(ctx, argument)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		return id, nil
	}
	return primitive.NilObjectID, nil
}

func (a *argumentDatabase) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Argument, error) {
	cr, err := a.db.Collection(argumentName).Find(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return nil, err
	}
	var arguments []models.Argument
	if err := cr.Decode(&arguments); err != nil {
		return nil, err
	}
	return arguments, nil
}
