package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Evidence is a supporting source attached to an opening argument.
type Evidence struct {
	Title string `json:"title" bson:"title"`
	URL   string `json:"url" bson:"url"`
	Note  string `json:"note,omitempty" bson:"note,omitempty"`
}

// Argument holds the structure for the arguments collection in mongo.
// One opening argument per side per room, enforced by the unique
// (roomId, side) index.
type Argument struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	RoomID    primitive.ObjectID `json:"roomId" bson:"roomId"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Side      Side               `json:"side" bson:"side"`
	Content   string             `json:"content" bson:"content"`
	Evidence  []Evidence         `json:"evidence,omitempty" bson:"evidence,omitempty"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// Rebuttal holds the structure for the rebuttals collection in mongo.
// One per user per round, enforced by the unique (roomId, userId,
// roundNumber) index.
type Rebuttal struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	RoomID      primitive.ObjectID `json:"roomId" bson:"roomId"`
	UserID      primitive.ObjectID `json:"userId" bson:"userId"`
	Side        Side               `json:"side" bson:"side"`
	RoundNumber int                `json:"roundNumber" bson:"roundNumber"`
	Content     string             `json:"content" bson:"content"`
	CreatedAt   primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
