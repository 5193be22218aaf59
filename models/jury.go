package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// JuryVote holds the structure for the juryVotes collection in mongo.
// One vote per juror per room, enforced by the unique (roomId,
// jurorNumber) index; a resumed jury batch upserts over the same keys.
type JuryVote struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	RoomID      primitive.ObjectID `json:"roomId" bson:"roomId"`
	JurorNumber int                `json:"jurorNumber" bson:"jurorNumber"`
	Vote        Side               `json:"vote" bson:"vote"`
	Confidence  int                `json:"confidence" bson:"confidence"`
	Reasoning   string             `json:"reasoning" bson:"reasoning"`
	Persona     string             `json:"persona" bson:"persona"`
	CreatedAt   primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
