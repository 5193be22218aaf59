package databases

// go generate: mockery --name UserDatabase

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parleyhq/debate-api/models"
)

const userName = "users"

// UserDatabase contains the methods to use with the user database
type UserDatabase interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error)
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{
		db: db,
	}
}

func (u *userDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userName).FindOne(ctx, bson.M{"_id": id}).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userName).FindOne(ctx, bson.M{"email": email}).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	res, err := u.db.Collection(userName).InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		return id, nil
	}
	return primitive.NilObjectID, nil
}
