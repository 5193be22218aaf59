package debate

import (
	"math"

	"github.com/parleyhq/debate-api/models"
)

// ConsensusLevel describes how lopsided the jury vote was. It is only
// meaningful once every expected juror has voted.
type ConsensusLevel string

// Consensus bands over the majority share of the total vote.
const (
	ConsensusHigh   ConsensusLevel = "high"   // majority share >= 0.8
	ConsensusMedium ConsensusLevel = "medium" // majority share >= 0.6
	ConsensusLow    ConsensusLevel = "low"
)

// JurySummary is the aggregated outcome of the jury stage. The judge's
// declared winner is a separate generative output; nothing here is
// reconciled against it.
type JurySummary struct {
	VotesA            int            `json:"votesA"`
	VotesB            int            `json:"votesB"`
	TotalVotes        int            `json:"totalVotes"`
	ExpectedJurors    int            `json:"expectedJurors"`
	MajoritySide      *models.Side   `json:"majoritySide,omitempty"`
	ConsensusLevel    ConsensusLevel `json:"consensusLevel,omitempty"`
	AverageConfidence float64        `json:"averageConfidence"`
}

// Aggregate tallies jury votes. MajoritySide is nil on a tie, and
// ConsensusLevel stays empty until totalVotes reaches expectedJurors.
func Aggregate(votes []models.JuryVote, expectedJurors int) JurySummary {
	summary := JurySummary{ExpectedJurors: expectedJurors}
	confidenceSum := 0
	for _, v := range votes {
		switch v.Vote {
		case models.SideA:
			summary.VotesA++
		case models.SideB:
			summary.VotesB++
		}
		confidenceSum += v.Confidence
	}
	summary.TotalVotes = len(votes)

	switch {
	case summary.VotesA > summary.VotesB:
		side := models.SideA
		summary.MajoritySide = &side
	case summary.VotesB > summary.VotesA:
		side := models.SideB
		summary.MajoritySide = &side
	}

	if summary.TotalVotes > 0 {
		mean := float64(confidenceSum) / float64(summary.TotalVotes)
		summary.AverageConfidence = math.Round(mean*10) / 10
	}

	if summary.TotalVotes >= expectedJurors && summary.TotalVotes > 0 {
		majority := summary.VotesA
		if summary.VotesB > majority {
			majority = summary.VotesB
		}
		share := float64(majority) / float64(summary.TotalVotes)
		switch {
		case share >= 0.8:
			summary.ConsensusLevel = ConsensusHigh
		case share >= 0.6:
			summary.ConsensusLevel = ConsensusMedium
		default:
			summary.ConsensusLevel = ConsensusLow
		}
	}
	return summary
}
