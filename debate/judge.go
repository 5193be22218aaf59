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

// HandleJudge synthesizes the final verdict from the transcript and the
// jury votes. A decision already on disk from an earlier run is reused
// rather than regenerated, then the room is closed with JUDGE_COMPLETE.
func (p *Pipeline) HandleJudge(ctx context.Context, job *models.Job) (bson.M, error) {
	room, err := p.loadRoom(ctx, job)
	if err != nil {
		return nil, err
	}

	decision, err := p.decisions.FindByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		dc, err := p.loadContext(ctx, room)
		if err != nil {
			return nil, err
		}
		votes, err := p.votes.FindByRoom(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		if len(votes) < p.jurySize {
			return nil, Terminal("room %s has %d of %d jury votes, cannot judge", room.ID.Hex(), len(votes), p.jurySize)
		}

		verdict, err := p.gen.Verdict(ctx, generative.VerdictRequest{Context: dc, Votes: votes})
		if err != nil {
			return nil, err
		}
		decision = &models.JudgeDecision{
			RoomID:    room.ID,
			Winner:    verdict.Winner,
			Reasoning: verdict.Reasoning,
			ScoreA:    verdict.ScoreA,
			ScoreB:    verdict.ScoreB,
			CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
		}
		if err := p.decisions.Upsert(ctx, decision); err != nil {
			return nil, err
		}
		zap.S().Infow("verdict persisted",
			"roomId", room.ID.Hex(),
			"winner", decision.Winner,
			"scoreA", decision.ScoreA,
			"scoreB", decision.ScoreB,
		)
	}

	if err := p.advance(ctx, room, EventJudgeComplete); err != nil {
		return nil, err
	}
	p.notifyVerdict(decision)

	return bson.M{
		"winner": decision.Winner,
		"scoreA": decision.ScoreA,
		"scoreB": decision.ScoreB,
	}, nil
}
