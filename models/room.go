package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// RoomStatus is a node in the fixed room lifecycle graph.
type RoomStatus string

// Room lifecycle statuses.
const (
	RoomStatusWaitingParticipant  RoomStatus = "waiting_participant"
	RoomStatusAgendaNegotiation   RoomStatus = "agenda_negotiation"
	RoomStatusArgumentsSubmission RoomStatus = "arguments_submission"
	RoomStatusDebateRound1        RoomStatus = "debate_round_1"
	RoomStatusWaitingRebuttal1    RoomStatus = "waiting_rebuttal_1"
	RoomStatusDebateRound2        RoomStatus = "debate_round_2"
	RoomStatusWaitingRebuttal2    RoomStatus = "waiting_rebuttal_2"
	RoomStatusDebateRound3        RoomStatus = "debate_round_3"
	RoomStatusAIProcessing        RoomStatus = "ai_processing"
	RoomStatusCompleted           RoomStatus = "completed"
	RoomStatusCancelled           RoomStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RoomStatus) Terminal() bool {
	return s == RoomStatusCompleted || s == RoomStatusCancelled
}

// Side identifies a debate position. The creator argues side A, the
// participant side B.
type Side string

// Debate sides.
const (
	SideA Side = "A"
	SideB Side = "B"
)

// Motion is the agreed debate topic.
type Motion struct {
	Title       string              `json:"title" bson:"title"`
	Description string              `json:"description" bson:"description"`
	AgreedAt    *primitive.DateTime `json:"agreedAt,omitempty" bson:"agreedAt,omitempty"`
}

// Room holds the structure for the rooms collection in mongo. Status is
// only ever mutated through conditional updates keyed on the expected
// prior status.
type Room struct {
	ID            primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Code          string              `json:"code" bson:"code"`
	CreatorID     primitive.ObjectID  `json:"creatorId" bson:"creatorId"`
	ParticipantID *primitive.ObjectID `json:"participantId" bson:"participantId"`
	Status        RoomStatus          `json:"status" bson:"status"`
	Motion        *Motion             `json:"motion,omitempty" bson:"motion,omitempty"`
	CreatedAt     primitive.DateTime  `json:"createdAt" bson:"createdAt"`
	UpdatedAt     primitive.DateTime  `json:"updatedAt" bson:"updatedAt"`
	CompletedAt   *primitive.DateTime `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CancelledAt   *primitive.DateTime `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
}

// SideOf maps a member to their debate side. The second return is false
// for users who are not in the room.
func (r *Room) SideOf(userID primitive.ObjectID) (Side, bool) {
	if r.CreatorID == userID {
		return SideA, true
	}
	if r.ParticipantID != nil && *r.ParticipantID == userID {
		return SideB, true
	}
	return "", false
}

// HasMember reports whether the user is the creator or the participant.
func (r *Room) HasMember(userID primitive.ObjectID) bool {
	_, ok := r.SideOf(userID)
	return ok
}

// ActiveRebuttalRound returns the round number the room is collecting
// rebuttals for, or 0 when it is not in a rebuttal gate.
func (r *Room) ActiveRebuttalRound() int {
	switch r.Status {
	case RoomStatusWaitingRebuttal1:
		return 1
	case RoomStatusWaitingRebuttal2:
		return 2
	}
	return 0
}
