package debate

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/models"
)

// Event drives a room lifecycle transition.
type Event string

// Room lifecycle events.
const (
	EventParticipantJoined      Event = "PARTICIPANT_JOINED"
	EventMotionAgreed           Event = "MOTION_AGREED"
	EventBothArgumentsSubmitted Event = "BOTH_ARGUMENTS_SUBMITTED"
	EventRound1Complete         Event = "ROUND_1_COMPLETE"
	EventRound2Complete         Event = "ROUND_2_COMPLETE"
	EventRound3Complete         Event = "ROUND_3_COMPLETE"
	EventBothRebuttalsSubmitted Event = "BOTH_REBUTTALS_SUBMITTED"
	EventJuryComplete           Event = "JURY_COMPLETE"
	EventJudgeComplete          Event = "JUDGE_COMPLETE"
	EventCancelled              Event = "CANCELLED"
)

// RoundCompleteEvent returns the completion event for round n (1..3).
func RoundCompleteEvent(n int) Event {
	switch n {
	case 1:
		return EventRound1Complete
	case 2:
		return EventRound2Complete
	case 3:
		return EventRound3Complete
	}
	return Event(fmt.Sprintf("ROUND_%d_COMPLETE", n))
}

// transitions is the fixed directed lifecycle graph. JURY_COMPLETE is a
// self-loop: the room stays in ai_processing while the judge runs, but
// the jury gate still has to be validated before AI_JUDGE is enqueued.
var transitions = map[models.RoomStatus]map[Event]models.RoomStatus{
	models.RoomStatusWaitingParticipant: {
		EventParticipantJoined: models.RoomStatusAgendaNegotiation,
	},
	models.RoomStatusAgendaNegotiation: {
		EventMotionAgreed: models.RoomStatusArgumentsSubmission,
	},
	models.RoomStatusArgumentsSubmission: {
		EventBothArgumentsSubmitted: models.RoomStatusDebateRound1,
	},
	models.RoomStatusDebateRound1: {
		EventRound1Complete: models.RoomStatusWaitingRebuttal1,
	},
	models.RoomStatusWaitingRebuttal1: {
		EventBothRebuttalsSubmitted: models.RoomStatusDebateRound2,
	},
	models.RoomStatusDebateRound2: {
		EventRound2Complete: models.RoomStatusWaitingRebuttal2,
	},
	models.RoomStatusWaitingRebuttal2: {
		EventBothRebuttalsSubmitted: models.RoomStatusDebateRound3,
	},
	models.RoomStatusDebateRound3: {
		EventRound3Complete: models.RoomStatusAIProcessing,
	},
	models.RoomStatusAIProcessing: {
		EventJuryComplete:  models.RoomStatusAIProcessing,
		EventJudgeComplete: models.RoomStatusCompleted,
	},
}

func init() {
	// Cancellation is reachable from every non-terminal state.
	for status, events := range transitions {
		if !status.Terminal() {
			events[EventCancelled] = models.RoomStatusCancelled
		}
	}
}

// StateMachine enforces the room lifecycle graph and its submission
// gates. Guards are checked against persisted state, never trusted from
// caller input, and the status swap itself is one conditional update.
type StateMachine struct {
	rooms     RoomStore
	arguments ArgumentStore
	rebuttals RebuttalStore
	rounds    RoundStore
	turns     TurnStore
	votes     JuryVoteStore
	decisions DecisionStore
	jurySize  int
}

// NewStateMachine wires the guard stores into a state machine.
func NewStateMachine(
	rooms RoomStore,
	arguments ArgumentStore,
	rebuttals RebuttalStore,
	rounds RoundStore,
	turns TurnStore,
	votes JuryVoteStore,
	decisions DecisionStore,
	jurySize int,
) *StateMachine {
	return &StateMachine{
		rooms:     rooms,
		arguments: arguments,
		rebuttals: rebuttals,
		rounds:    rounds,
		turns:     turns,
		votes:     votes,
		decisions: decisions,
		jurySize:  jurySize,
	}
}

// Next returns the target status for (status, event), or
// ErrInvalidTransition when the pair is outside the lifecycle graph.
func Next(status models.RoomStatus, event Event) (models.RoomStatus, error) {
	next, ok := transitions[status][event]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, status)
	}
	return next, nil
}

// Transition validates the event against the lifecycle graph and its
// guard, then applies it as a single conditional update. The boolean is
// false when a concurrent transition won the CAS; callers treat that as
// a benign no-op, not an error. PARTICIPANT_JOINED carries data and goes
// through Join instead.
func (m *StateMachine) Transition(ctx context.Context, room *models.Room, event Event) (bool, error) {
	if event == EventParticipantJoined {
		return false, fmt.Errorf("%w: %s requires Join", ErrInvalidTransition, event)
	}
	next, err := Next(room.Status, event)
	if err != nil {
		return false, err
	}
	if err := m.guard(ctx, room, event); err != nil {
		return false, err
	}

	applied, err := m.rooms.Transition(ctx, room.ID, room.Status, next, extraFields(event))
	if err != nil {
		return false, err
	}
	if !applied {
		zap.S().Debugw("room transition lost the race",
			"roomId", room.ID.Hex(),
			"event", event,
			"expected", room.Status,
		)
		return false, nil
	}
	prior := room.Status
	room.Status = next
	zap.S().Infow("room transitioned",
		"roomId", room.ID.Hex(),
		"event", event,
		"from", prior,
		"to", next,
	)
	return true, nil
}

// Join admits the participant: it is the PARTICIPANT_JOINED transition
// with the participant identity folded into the same conditional update
// so the participant is set exactly once.
func (m *StateMachine) Join(ctx context.Context, room *models.Room, participantID primitive.ObjectID) (bool, error) {
	if _, err := Next(room.Status, EventParticipantJoined); err != nil {
		return false, err
	}
	if room.ParticipantID != nil {
		return false, fmt.Errorf("%w: room already has a participant", ErrGuardNotSatisfied)
	}
	applied, err := m.rooms.Join(ctx, room.ID, participantID)
	if err != nil {
		return false, err
	}
	if applied {
		room.Status = models.RoomStatusAgendaNegotiation
		room.ParticipantID = &participantID
	}
	return applied, nil
}

func (m *StateMachine) guard(ctx context.Context, room *models.Room, event Event) error {
	switch event {
	case EventBothArgumentsSubmitted:
		arguments, err := m.arguments.FindByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		var a, b int
		for _, arg := range arguments {
			switch arg.Side {
			case models.SideA:
				a++
			case models.SideB:
				b++
			}
		}
		if a != 1 || b != 1 {
			return fmt.Errorf("%w: need exactly one argument per side, have A=%d B=%d", ErrGuardNotSatisfied, a, b)
		}

	case EventRound1Complete, EventRound2Complete, EventRound3Complete:
		n := roundNumberOf(event)
		round, err := m.rounds.FindByRoomAndNumber(ctx, room.ID, n)
		if err != nil {
			return err
		}
		if round == nil {
			return fmt.Errorf("%w: round %d does not exist", ErrGuardNotSatisfied, n)
		}
		turns, err := m.turns.FindByRound(ctx, round.ID)
		if err != nil {
			return err
		}
		if len(turns) < 2 {
			return fmt.Errorf("%w: round %d has %d of 2 turns", ErrGuardNotSatisfied, n, len(turns))
		}
		for _, turn := range turns {
			if turn.Status != models.TurnStatusCompleted {
				return fmt.Errorf("%w: round %d turn %d not completed", ErrGuardNotSatisfied, n, turn.TurnNumber)
			}
		}

	case EventBothRebuttalsSubmitted:
		n := room.ActiveRebuttalRound()
		if n == 0 {
			return fmt.Errorf("%w: room is not waiting on rebuttals", ErrGuardNotSatisfied)
		}
		count, err := m.rebuttals.CountByRoomAndRound(ctx, room.ID, n)
		if err != nil {
			return err
		}
		if count < 2 {
			return fmt.Errorf("%w: round %d has %d of 2 rebuttals", ErrGuardNotSatisfied, n, count)
		}

	case EventJuryComplete:
		count, err := m.votes.CountByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		if count < int64(m.jurySize) {
			return fmt.Errorf("%w: %d of %d jury votes recorded", ErrGuardNotSatisfied, count, m.jurySize)
		}

	case EventJudgeComplete:
		decision, err := m.decisions.FindByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		if decision == nil {
			return fmt.Errorf("%w: no judge decision recorded", ErrGuardNotSatisfied)
		}
	}
	return nil
}

func roundNumberOf(event Event) int {
	switch event {
	case EventRound1Complete:
		return 1
	case EventRound2Complete:
		return 2
	case EventRound3Complete:
		return 3
	}
	return 0
}

func extraFields(event Event) bson.M {
	now := primitive.NewDateTimeFromTime(time.Now())
	switch event {
	case EventMotionAgreed:
		return bson.M{"motion.agreedAt": now}
	case EventJudgeComplete:
		return bson.M{"completedAt": now}
	case EventCancelled:
		return bson.M{"cancelledAt": now}
	}
	return nil
}
