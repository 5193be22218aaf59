package databases

// go generate: mockery --name RoomDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parleyhq/debate-api/models"
)

const roomName = "rooms"

// RoomDatabase contains the methods to use with the room database. Status
// mutations go through conditional updates keyed on the expected prior
// status; a false return means a concurrent transition already happened.
type RoomDatabase interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Room, error)
	GetByCode(ctx context.Context, code string) (*models.Room, error)
	Insert(ctx context.Context, room *models.Room) (primitive.ObjectID, error)
	Join(ctx context.Context, id, participantID primitive.ObjectID) (bool, error)
	SetMotion(ctx context.Context, id primitive.ObjectID, motion *models.Motion) (bool, error)
	Transition(ctx context.Context, id primitive.ObjectID, expected, next models.RoomStatus, set bson.M) (bool, error)
}

type roomDatabase struct {
	db DatabaseHelper
}

// NewRoomDatabase initializes a new instance of room database with the provided db connection
func NewRoomDatabase(db DatabaseHelper) RoomDatabase {
	return &roomDatabase{
		db: db,
	}
}

func (r *roomDatabase) Get(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	room := &models.Room{}
	err := r.db.Collection(roomName).FindOne(ctx, bson.M{"_id": id}).Decode(room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *roomDatabase) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	room := &models.Room{}
	err := r.db.Collection(roomName).FindOne(ctx, bson.M{"code": code}).Decode(room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *roomDatabase) Insert(ctx context.Context, room *models.Room) (primitive.ObjectID, error) {
	res, err := r.db.Collection(roomName).InsertOne(ctx, room)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		return id, nil
	}
	return primitive.NilObjectID, nil
}

// Join sets the participant exactly once: the filter requires the room to
// still be waiting and to have no participant.
func (r *roomDatabase) Join(ctx context.Context, id, participantID primitive.ObjectID) (bool, error) {
	now := primitive.NewDateTimeFromTime(time.Now())
	res, err := r.db.Collection(roomName).UpdateOne(ctx,
		bson.M{
			"_id":           id,
			"status":        models.RoomStatusWaitingParticipant,
			"participantId": nil,
		},
		bson.M{"$set": bson.M{
			"participantId": participantID,
			"status":        models.RoomStatusAgendaNegotiation,
			"updatedAt":     now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// SetMotion replaces the proposed motion. The filter pins the room to
// agenda_negotiation so a late proposal cannot rewrite an agreed motion.
func (r *roomDatabase) SetMotion(ctx context.Context, id primitive.ObjectID, motion *models.Motion) (bool, error) {
	res, err := r.db.Collection(roomName).UpdateOne(ctx,
		bson.M{"_id": id, "status": models.RoomStatusAgendaNegotiation},
		bson.M{"$set": bson.M{
			"motion":    motion,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// Transition applies a single conditional status update. Zero rows
// affected means another caller transitioned first; that is reported as
// (false, nil), not an error.
func (r *roomDatabase) Transition(ctx context.Context, id primitive.ObjectID, expected, next models.RoomStatus, set bson.M) (bool, error) {
	update := bson.M{
		"status":    next,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}
	for k, v := range set {
		update[k] = v
	}
	res, err := r.db.Collection(roomName).UpdateOne(ctx,
		bson.M{"_id": id, "status": expected},
		bson.M{"$set": update},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
