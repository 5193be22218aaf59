package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRoomSideOf(t *testing.T) {
	creator := primitive.NewObjectID()
	participant := primitive.NewObjectID()
	room := Room{CreatorID: creator, ParticipantID: &participant}

	side, ok := room.SideOf(creator)
	assert.True(t, ok)
	assert.Equal(t, SideA, side)

	side, ok = room.SideOf(participant)
	assert.True(t, ok)
	assert.Equal(t, SideB, side)

	_, ok = room.SideOf(primitive.NewObjectID())
	assert.False(t, ok)

	// No participant yet.
	solo := Room{CreatorID: creator}
	_, ok = solo.SideOf(participant)
	assert.False(t, ok)
}

func TestRoomActiveRebuttalRound(t *testing.T) {
	assert.Equal(t, 1, (&Room{Status: RoomStatusWaitingRebuttal1}).ActiveRebuttalRound())
	assert.Equal(t, 2, (&Room{Status: RoomStatusWaitingRebuttal2}).ActiveRebuttalRound())
	assert.Zero(t, (&Room{Status: RoomStatusDebateRound2}).ActiveRebuttalRound())
	assert.Zero(t, (&Room{Status: RoomStatusCompleted}).ActiveRebuttalRound())
}

func TestRoomStatusTerminal(t *testing.T) {
	assert.True(t, RoomStatusCompleted.Terminal())
	assert.True(t, RoomStatusCancelled.Terminal())
	assert.False(t, RoomStatusAIProcessing.Terminal())
	assert.False(t, RoomStatusWaitingParticipant.Terminal())
}
