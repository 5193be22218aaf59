package debate

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/parleyhq/debate-api/models"
)

// Notifier receives pipeline events for delivery to connected clients.
// Implementations must not block; delivery is best effort and carries no
// orchestration state.
type Notifier interface {
	TurnPersisted(roomID primitive.ObjectID, turn *models.DebateTurn)
	RoomStatusChanged(roomID primitive.ObjectID, status models.RoomStatus)
	VerdictReady(roomID primitive.ObjectID, decision *models.JudgeDecision)
}

// NopNotifier discards every event. Embed it to implement only the
// subset of Notifier a delivery channel cares about.
type NopNotifier struct{}

func (NopNotifier) TurnPersisted(primitive.ObjectID, *models.DebateTurn)    {}
func (NopNotifier) RoomStatusChanged(primitive.ObjectID, models.RoomStatus) {}
func (NopNotifier) VerdictReady(primitive.ObjectID, *models.JudgeDecision)  {}
