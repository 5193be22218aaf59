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

// HandleJury fans the finished debate out to the jury. Votes already
// persisted from an earlier partial run are kept as-is; only the missing
// juror numbers are generated, so a retry after 4 of 7 votes produces
// exactly 7. When the bench is full it chains the AI_JUDGE job.
func (p *Pipeline) HandleJury(ctx context.Context, job *models.Job) (bson.M, error) {
	room, err := p.loadRoom(ctx, job)
	if err != nil {
		return nil, err
	}

	dc, err := p.loadContext(ctx, room)
	if err != nil {
		return nil, err
	}

	existing, err := p.votes.FindByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	voted := make(map[int]bool, len(existing))
	for _, vote := range existing {
		voted[vote.JurorNumber] = true
	}
	if len(voted) > 0 {
		zap.S().Infow("resuming jury with existing votes",
			"roomId", room.ID.Hex(),
			"existing", len(voted),
			"jurySize", p.jurySize,
		)
	}

	for juror := 1; juror <= p.jurySize; juror++ {
		if voted[juror] {
			continue
		}
		vote, err := p.gen.JurorVote(ctx, generative.JurorRequest{Context: dc, JurorNumber: juror})
		if err != nil {
			return nil, err
		}
		record := &models.JuryVote{
			RoomID:      room.ID,
			JurorNumber: juror,
			Vote:        vote.Side,
			Confidence:  vote.Confidence,
			Reasoning:   vote.Reasoning,
			Persona:     vote.Persona,
			CreatedAt:   primitive.NewDateTimeFromTime(time.Now()),
		}
		if err := p.votes.Upsert(ctx, record); err != nil {
			return nil, err
		}
	}

	votes, err := p.votes.FindByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	summary := Aggregate(votes, p.jurySize)

	if err := p.advance(ctx, room, EventJuryComplete); err != nil {
		return nil, err
	}

	judgePayload := models.JobPayload{Judge: &models.JudgePayload{RoomID: room.ID}}
	if err := p.chain(ctx, job, models.JobTypeJudge, judgePayload, 0); err != nil {
		return nil, err
	}

	result := bson.M{
		"votesA":            summary.VotesA,
		"votesB":            summary.VotesB,
		"totalVotes":        summary.TotalVotes,
		"consensusLevel":    summary.ConsensusLevel,
		"averageConfidence": summary.AverageConfidence,
	}
	if summary.MajoritySide != nil {
		result["majoritySide"] = *summary.MajoritySide
	}
	return result, nil
}
