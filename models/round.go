package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// RoundStatus tracks whether both turns of a round have been persisted.
type RoundStatus string

// Round statuses.
const (
	RoundStatusPending   RoundStatus = "pending"
	RoundStatusCompleted RoundStatus = "completed"
)

// Round holds the structure for the rounds collection in mongo. The
// (roomId, roundNumber) pair is unique.
type Round struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	RoomID      primitive.ObjectID `json:"roomId" bson:"roomId"`
	RoundNumber int                `json:"roundNumber" bson:"roundNumber"`
	Status      RoundStatus        `json:"status" bson:"status"`
	CreatedAt   primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt   primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// TurnStatus tracks a single generated statement.
type TurnStatus string

// Turn statuses.
const (
	TurnStatusPending   TurnStatus = "pending"
	TurnStatusCompleted TurnStatus = "completed"
)

// DebateTurn holds the structure for the turns collection in mongo. One
// statement per side per round, keyed uniquely on (roundId, turnNumber):
// turn 1 is side A, turn 2 is side B. Fallback marks content recovered
// from an unparseable model response.
type DebateTurn struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	RoundID    primitive.ObjectID `json:"roundId" bson:"roundId"`
	RoomID     primitive.ObjectID `json:"roomId" bson:"roomId"`
	TurnNumber int                `json:"turnNumber" bson:"turnNumber"`
	Side       Side               `json:"side" bson:"side"`
	Content    string             `json:"content" bson:"content"`
	Fallback   bool               `json:"fallback" bson:"fallback"`
	Status     TurnStatus         `json:"status" bson:"status"`
	CreatedAt  primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt  primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
