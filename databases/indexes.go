package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// EnsureIndexes creates the uniqueness constraints the orchestration layer
// depends on. Every append-only entity is protected by a unique key rather
// than a lock, which is what makes idempotent retries safe.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	indexes := []struct {
		collection string
		keys       bson.D
		unique     bool
		name       string
	}{
		{roomName, bson.D{{Key: "code", Value: 1}}, true, "uniq_room_code"},
		{argumentName, bson.D{{Key: "roomId", Value: 1}, {Key: "side", Value: 1}}, true, "uniq_argument_room_side"},
		{rebuttalName, bson.D{{Key: "roomId", Value: 1}, {Key: "userId", Value: 1}, {Key: "roundNumber", Value: 1}}, true, "uniq_rebuttal_room_user_round"},
		{roundName, bson.D{{Key: "roomId", Value: 1}, {Key: "roundNumber", Value: 1}}, true, "uniq_round_room_number"},
		{turnName, bson.D{{Key: "roundId", Value: 1}, {Key: "turnNumber", Value: 1}}, true, "uniq_turn_round_number"},
		{juryVoteName, bson.D{{Key: "roomId", Value: 1}, {Key: "jurorNumber", Value: 1}}, true, "uniq_vote_room_juror"},
		{judgeDecisionName, bson.D{{Key: "roomId", Value: 1}}, true, "uniq_decision_room"},
		{userName, bson.D{{Key: "email", Value: 1}}, true, "uniq_user_email"},
		{jobName, bson.D{{Key: "status", Value: 1}, {Key: "scheduledAt", Value: 1}}, false, "idx_job_status_scheduled"},
		{jobName, bson.D{{Key: "roomId", Value: 1}, {Key: "type", Value: 1}}, false, "idx_job_room_type"},
	}

	for _, idx := range indexes {
		if err := db.Collection(idx.collection).EnsureIndex(ctx, idx.keys, idx.unique, idx.name); err != nil {
			return err
		}
	}
	return nil
}
