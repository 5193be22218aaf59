package debate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/parleyhq/debate-api/debate"
	"github.com/parleyhq/debate-api/models"
)

func TestNextWalksTheLifecycle(t *testing.T) {
	steps := []struct {
		from  models.RoomStatus
		event debate.Event
		to    models.RoomStatus
	}{
		{models.RoomStatusWaitingParticipant, debate.EventParticipantJoined, models.RoomStatusAgendaNegotiation},
		{models.RoomStatusAgendaNegotiation, debate.EventMotionAgreed, models.RoomStatusArgumentsSubmission},
		{models.RoomStatusArgumentsSubmission, debate.EventBothArgumentsSubmitted, models.RoomStatusDebateRound1},
		{models.RoomStatusDebateRound1, debate.EventRound1Complete, models.RoomStatusWaitingRebuttal1},
		{models.RoomStatusWaitingRebuttal1, debate.EventBothRebuttalsSubmitted, models.RoomStatusDebateRound2},
		{models.RoomStatusDebateRound2, debate.EventRound2Complete, models.RoomStatusWaitingRebuttal2},
		{models.RoomStatusWaitingRebuttal2, debate.EventBothRebuttalsSubmitted, models.RoomStatusDebateRound3},
		{models.RoomStatusDebateRound3, debate.EventRound3Complete, models.RoomStatusAIProcessing},
		{models.RoomStatusAIProcessing, debate.EventJuryComplete, models.RoomStatusAIProcessing},
		{models.RoomStatusAIProcessing, debate.EventJudgeComplete, models.RoomStatusCompleted},
	}
	for _, step := range steps {
		next, err := debate.Next(step.from, step.event)
		require.NoError(t, err, "%s on %s", step.event, step.from)
		assert.Equal(t, step.to, next)
	}
}

func TestNextRejectsOffGraphPairs(t *testing.T) {
	cases := []struct {
		from  models.RoomStatus
		event debate.Event
	}{
		{models.RoomStatusWaitingParticipant, debate.EventMotionAgreed},
		{models.RoomStatusDebateRound1, debate.EventRound2Complete},
		{models.RoomStatusCompleted, debate.EventCancelled},
		{models.RoomStatusCancelled, debate.EventJudgeComplete},
	}
	for _, c := range cases {
		_, err := debate.Next(c.from, c.event)
		assert.ErrorIs(t, err, debate.ErrInvalidTransition, "%s on %s", c.event, c.from)
	}
}

func TestNextAllowsCancelFromEveryNonTerminalState(t *testing.T) {
	nonTerminal := []models.RoomStatus{
		models.RoomStatusWaitingParticipant,
		models.RoomStatusAgendaNegotiation,
		models.RoomStatusArgumentsSubmission,
		models.RoomStatusDebateRound1,
		models.RoomStatusWaitingRebuttal1,
		models.RoomStatusDebateRound2,
		models.RoomStatusWaitingRebuttal2,
		models.RoomStatusDebateRound3,
		models.RoomStatusAIProcessing,
	}
	for _, status := range nonTerminal {
		next, err := debate.Next(status, debate.EventCancelled)
		require.NoError(t, err, "cancel from %s", status)
		assert.Equal(t, models.RoomStatusCancelled, next)
	}
}

func TestJoinAdmitsParticipantOnce(t *testing.T) {
	e := newEnv(7)
	creator := primitive.NewObjectID()
	room := &models.Room{Code: "JOINROOM", CreatorID: creator, Status: models.RoomStatusWaitingParticipant}
	e.rooms.add(room)

	participant := primitive.NewObjectID()
	applied, err := e.machine.Join(context.Background(), room, participant)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.RoomStatusAgendaNegotiation, room.Status)
	require.NotNil(t, room.ParticipantID)
	assert.Equal(t, participant, *room.ParticipantID)

	_, err = e.machine.Join(context.Background(), room, primitive.NewObjectID())
	assert.ErrorIs(t, err, debate.ErrInvalidTransition)
}

func TestTransitionArgumentGuard(t *testing.T) {
	e := newEnv(7)
	creator := primitive.NewObjectID()
	participant := primitive.NewObjectID()
	room := &models.Room{
		Code:          "ARGROOM",
		CreatorID:     creator,
		ParticipantID: &participant,
		Status:        models.RoomStatusArgumentsSubmission,
	}
	e.rooms.add(room)

	// Only side A has argued.
	e.arguments.add(models.Argument{RoomID: room.ID, UserID: creator, Side: models.SideA, Content: "opening A"})
	_, err := e.machine.Transition(context.Background(), room, debate.EventBothArgumentsSubmitted)
	assert.ErrorIs(t, err, debate.ErrGuardNotSatisfied)
	assert.Equal(t, models.RoomStatusArgumentsSubmission, e.roomStatus(room.ID))

	e.arguments.add(models.Argument{RoomID: room.ID, UserID: participant, Side: models.SideB, Content: "opening B"})
	applied, err := e.machine.Transition(context.Background(), room, debate.EventBothArgumentsSubmitted)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.RoomStatusDebateRound1, e.roomStatus(room.ID))
}

func TestTransitionRebuttalGuard(t *testing.T) {
	e := newEnv(7)
	room := e.seedRoom(models.RoomStatusWaitingRebuttal1)

	_, err := e.machine.Transition(context.Background(), room, debate.EventBothRebuttalsSubmitted)
	assert.ErrorIs(t, err, debate.ErrGuardNotSatisfied)

	e.addRebuttals(room, 1)
	applied, err := e.machine.Transition(context.Background(), room, debate.EventBothRebuttalsSubmitted)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.RoomStatusDebateRound2, e.roomStatus(room.ID))
}

func TestTransitionRoundCompleteGuard(t *testing.T) {
	e := newEnv(7)
	room := e.seedRoom(models.RoomStatusDebateRound1)
	ctx := context.Background()

	// No round persisted yet.
	_, err := e.machine.Transition(ctx, room, debate.EventRound1Complete)
	assert.ErrorIs(t, err, debate.ErrGuardNotSatisfied)

	roundID, err := e.rounds.Insert(ctx, &models.Round{RoomID: room.ID, RoundNumber: 1, Status: models.RoundStatusPending})
	require.NoError(t, err)

	// One turn of two.
	require.NoError(t, e.turns.Upsert(ctx, &models.DebateTurn{
		RoundID: roundID, RoomID: room.ID, TurnNumber: 1, Side: models.SideA,
		Content: "statement A", Status: models.TurnStatusCompleted,
	}))
	_, err = e.machine.Transition(ctx, room, debate.EventRound1Complete)
	assert.ErrorIs(t, err, debate.ErrGuardNotSatisfied)

	require.NoError(t, e.turns.Upsert(ctx, &models.DebateTurn{
		RoundID: roundID, RoomID: room.ID, TurnNumber: 2, Side: models.SideB,
		Content: "statement B", Status: models.TurnStatusCompleted,
	}))
	applied, err := e.machine.Transition(ctx, room, debate.EventRound1Complete)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.RoomStatusWaitingRebuttal1, e.roomStatus(room.ID))
}

func TestTransitionJuryCompleteSelfLoop(t *testing.T) {
	e := newEnv(3)
	room := e.seedRoom(models.RoomStatusAIProcessing)
	ctx := context.Background()

	// Two of three votes.
	for juror := 1; juror <= 2; juror++ {
		require.NoError(t, e.votes.Upsert(ctx, &models.JuryVote{
			RoomID: room.ID, JurorNumber: juror, Vote: models.SideA, Confidence: 7,
		}))
	}
	_, err := e.machine.Transition(ctx, room, debate.EventJuryComplete)
	assert.ErrorIs(t, err, debate.ErrGuardNotSatisfied)

	require.NoError(t, e.votes.Upsert(ctx, &models.JuryVote{
		RoomID: room.ID, JurorNumber: 3, Vote: models.SideB, Confidence: 6,
	}))
	applied, err := e.machine.Transition(ctx, room, debate.EventJuryComplete)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.RoomStatusAIProcessing, e.roomStatus(room.ID), "JURY_COMPLETE keeps the room in ai_processing")
}

func TestTransitionJudgeCompleteRequiresDecision(t *testing.T) {
	e := newEnv(7)
	room := e.seedRoom(models.RoomStatusAIProcessing)
	ctx := context.Background()

	_, err := e.machine.Transition(ctx, room, debate.EventJudgeComplete)
	assert.ErrorIs(t, err, debate.ErrGuardNotSatisfied)

	require.NoError(t, e.decisions.Upsert(ctx, &models.JudgeDecision{
		RoomID: room.ID, Winner: models.SideA, Reasoning: "side A held up", ScoreA: 80, ScoreB: 70,
	}))
	applied, err := e.machine.Transition(ctx, room, debate.EventJudgeComplete)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.RoomStatusCompleted, e.roomStatus(room.ID))
}

func TestTransitionLostRaceIsBenign(t *testing.T) {
	e := newEnv(7)
	room := e.seedRoom(models.RoomStatusWaitingRebuttal1)
	e.addRebuttals(room, 1)
	ctx := context.Background()

	// A concurrent actor moves the room before our CAS lands.
	stale := *room
	applied, err := e.machine.Transition(ctx, room, debate.EventBothRebuttalsSubmitted)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = e.machine.Transition(ctx, &stale, debate.EventBothRebuttalsSubmitted)
	require.NoError(t, err, "losing the CAS is not an error")
	assert.False(t, applied)
	assert.Equal(t, models.RoomStatusDebateRound2, e.roomStatus(room.ID))
}

func TestTransitionRejectsParticipantJoinedEvent(t *testing.T) {
	e := newEnv(7)
	room := e.seedRoom(models.RoomStatusWaitingParticipant)

	_, err := e.machine.Transition(context.Background(), room, debate.EventParticipantJoined)
	assert.ErrorIs(t, err, debate.ErrInvalidTransition)
}

func TestRoundCompleteEvent(t *testing.T) {
	assert.Equal(t, debate.EventRound1Complete, debate.RoundCompleteEvent(1))
	assert.Equal(t, debate.EventRound2Complete, debate.RoundCompleteEvent(2))
	assert.Equal(t, debate.EventRound3Complete, debate.RoundCompleteEvent(3))
}
