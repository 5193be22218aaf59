package debate

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/generative"
	"github.com/parleyhq/debate-api/models"
)

// HandleDebate runs one AI debate round: side A's statement, then side
// B's with A's statement in view, both upserted on (roundId, turnNumber).
// A re-run after a partial failure regenerates only the missing turn.
// After round 3 it chains the AI_JURY job.
func (p *Pipeline) HandleDebate(ctx context.Context, job *models.Job) (bson.M, error) {
	payload := job.Payload.Debate
	room, err := p.loadRoom(ctx, job)
	if err != nil {
		return nil, err
	}

	round, err := p.findOrCreateRound(ctx, room.ID, payload.RoundNumber)
	if err != nil {
		return nil, err
	}

	dc, err := p.loadContext(ctx, room)
	if err != nil {
		return nil, err
	}
	if dc.ArgumentA == nil || dc.ArgumentB == nil {
		return nil, Terminal("room %s is missing an opening argument", room.ID.Hex())
	}

	existing, err := p.turns.FindByRound(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int]models.DebateTurn, len(existing))
	for _, turn := range existing {
		byNumber[turn.TurnNumber] = turn
	}

	turnA, err := p.ensureTurn(ctx, room, round, byNumber, 1, models.SideA, dc, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.ensureTurn(ctx, room, round, byNumber, 2, models.SideB, dc, turnA.Content); err != nil {
		return nil, err
	}

	if round.Status != models.RoundStatusCompleted {
		if err := p.rounds.SetStatus(ctx, round.ID, models.RoundStatusCompleted); err != nil {
			return nil, err
		}
	}

	if err := p.advance(ctx, room, RoundCompleteEvent(payload.RoundNumber)); err != nil {
		return nil, err
	}

	if payload.RoundNumber == 3 {
		juryPayload := models.JobPayload{Jury: &models.JuryPayload{RoomID: room.ID}}
		if err := p.chain(ctx, job, models.JobTypeJury, juryPayload, 0); err != nil {
			return nil, err
		}
	}

	return bson.M{"roundNumber": payload.RoundNumber}, nil
}

func (p *Pipeline) findOrCreateRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (*models.Round, error) {
	round, err := p.rounds.FindByRoomAndNumber(ctx, roomID, roundNumber)
	if err != nil {
		return nil, err
	}
	if round != nil {
		return round, nil
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	round = &models.Round{
		RoomID:      roomID,
		RoundNumber: roundNumber,
		Status:      models.RoundStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := p.rounds.Insert(ctx, round)
	if err != nil {
		// The (roomId, roundNumber) unique index may have raced a
		// concurrent insert; re-read before giving up.
		existing, findErr := p.rounds.FindByRoomAndNumber(ctx, roomID, roundNumber)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	round.ID = id
	return round, nil
}

// ensureTurn returns the already persisted turn when one exists,
// otherwise generates and upserts it.
func (p *Pipeline) ensureTurn(
	ctx context.Context,
	room *models.Room,
	round *models.Round,
	byNumber map[int]models.DebateTurn,
	turnNumber int,
	side models.Side,
	dc generative.DebateContext,
	opponentStatement string,
) (*models.DebateTurn, error) {
	if turn, ok := byNumber[turnNumber]; ok && turn.Status == models.TurnStatusCompleted {
		return &turn, nil
	}

	statement, err := p.gen.Advocate(ctx, generative.AdvocateRequest{
		Context:           dc,
		Side:              side,
		RoundNumber:       round.RoundNumber,
		OpponentStatement: opponentStatement,
	})
	if err != nil {
		return nil, err
	}

	turn := &models.DebateTurn{
		RoundID:    round.ID,
		RoomID:     room.ID,
		TurnNumber: turnNumber,
		Side:       side,
		Content:    statement.Content,
		Fallback:   statement.Fallback,
		Status:     models.TurnStatusCompleted,
	}
	if err := p.turns.Upsert(ctx, turn); err != nil {
		return nil, err
	}
	zap.S().Infow("debate turn persisted",
		"roomId", room.ID.Hex(),
		"round", round.RoundNumber,
		"turn", turnNumber,
		"side", side,
		"fallback", statement.Fallback,
	)
	p.notifyTurn(turn)
	return turn, nil
}
