package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// JudgeDecision holds the structure for the judgeDecisions collection in
// mongo. At most one per room, enforced by the unique roomId index.
type JudgeDecision struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	RoomID    primitive.ObjectID `json:"roomId" bson:"roomId"`
	Winner    Side               `json:"winner" bson:"winner"`
	Reasoning string             `json:"reasoning" bson:"reasoning"`
	ScoreA    int                `json:"scoreA" bson:"scoreA"`
	ScoreB    int                `json:"scoreB" bson:"scoreB"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
