package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/config"
	"github.com/parleyhq/debate-api/databases"
	"github.com/parleyhq/debate-api/debate"
	"github.com/parleyhq/debate-api/models"
)

// Argument exported for testing purposes
type Argument struct {
	DB      databases.ArgumentDatabase
	RebDB   databases.RebuttalDatabase
	Room    Room
	Machine *debate.StateMachine
	Queue   *debate.Queue
}

type argumentRequest struct {
	Content  string            `json:"content"`
	Evidence []models.Evidence `json:"evidence,omitempty"`
}

type rebuttalRequest struct {
	Content string `json:"content"`
}

// ArgumentCreateHandler records the caller's opening argument. When both
// sides are in, it advances the room and enqueues the first AI round.
func (a Argument) ArgumentCreateHandler(w http.ResponseWriter, r *http.Request) {
	room, userID, ok := a.Room.fetchMemberRoom(w, r)
	if !ok {
		return
	}
	if room.Status != models.RoomStatusArgumentsSubmission {
		config.ErrorStatus("room is not accepting arguments", http.StatusConflict, w,
			fmt.Errorf("room %s is in status %s", room.ID.Hex(), room.Status))
		return
	}
	var req argumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		config.ErrorStatus("argument content is required", http.StatusBadRequest, w, err)
		return
	}

	side, _ := room.SideOf(userID)
	argument := &models.Argument{
		RoomID:    room.ID,
		UserID:    userID,
		Side:      side,
		Content:   req.Content,
		Evidence:  req.Evidence,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}
	id, err := a.DB.Insert(context.Background(), argument)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("argument already submitted for this side", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create argument", http.StatusInternalServerError, w, err)
		return
	}
	argument.ID = id
	zap.S().Infow("argument submitted", "roomId", room.ID.Hex(), "side", side)

	// The second submission satisfies the guard and starts the debate.
	// With only one argument in, the guard rejects and that is fine.
	applied, err := a.Machine.Transition(context.Background(), room, debate.EventBothArgumentsSubmitted)
	if err != nil && !errors.Is(err, debate.ErrGuardNotSatisfied) {
		config.ErrorStatus("argument saved but room transition failed", http.StatusInternalServerError, w, err)
		return
	}
	if applied {
		a.enqueueDebateRound(room.ID, 1)
	}

	b, err := json.Marshal(argument)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// RebuttalCreateHandler records the caller's rebuttal for the active
// gate. When both rebuttals are in, it enqueues the next AI round.
func (a Argument) RebuttalCreateHandler(w http.ResponseWriter, r *http.Request) {
	room, userID, ok := a.Room.fetchMemberRoom(w, r)
	if !ok {
		return
	}
	roundNumber := room.ActiveRebuttalRound()
	if roundNumber == 0 {
		config.ErrorStatus("room is not accepting rebuttals", http.StatusConflict, w,
			fmt.Errorf("room %s is in status %s", room.ID.Hex(), room.Status))
		return
	}
	var req rebuttalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		config.ErrorStatus("rebuttal content is required", http.StatusBadRequest, w, err)
		return
	}

	side, _ := room.SideOf(userID)
	rebuttal := &models.Rebuttal{
		RoomID:      room.ID,
		UserID:      userID,
		Side:        side,
		RoundNumber: roundNumber,
		Content:     req.Content,
		CreatedAt:   primitive.NewDateTimeFromTime(time.Now()),
	}
	id, err := a.RebDB.Insert(context.Background(), rebuttal)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("rebuttal already submitted for this round", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create rebuttal", http.StatusInternalServerError, w, err)
		return
	}
	rebuttal.ID = id
	zap.S().Infow("rebuttal submitted", "roomId", room.ID.Hex(), "side", side, "round", roundNumber)

	applied, err := a.Machine.Transition(context.Background(), room, debate.EventBothRebuttalsSubmitted)
	if err != nil && !errors.Is(err, debate.ErrGuardNotSatisfied) {
		config.ErrorStatus("rebuttal saved but room transition failed", http.StatusInternalServerError, w, err)
		return
	}
	if applied {
		a.enqueueDebateRound(room.ID, roundNumber+1)
	}

	b, err := json.Marshal(rebuttal)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// enqueueDebateRound enqueues the AI round at most once; a job that
// already exists for (room, round) means a concurrent submission beat us.
func (a Argument) enqueueDebateRound(roomID primitive.ObjectID, roundNumber int) {
	ctx := context.Background()
	exists, err := a.Queue.HasJob(ctx, roomID, models.JobTypeDebate, roundNumber)
	if err != nil {
		zap.S().Errorw("failed to check for existing debate job",
			"roomId", roomID.Hex(), "round", roundNumber, "error", err)
		return
	}
	if exists {
		return
	}
	payload := models.JobPayload{Debate: &models.DebatePayload{RoomID: roomID, RoundNumber: roundNumber}}
	if _, err := a.Queue.Enqueue(ctx, models.JobTypeDebate, roomID, payload, debate.DefaultMaxRetries); err != nil {
		zap.S().Errorw("failed to enqueue debate round",
			"roomId", roomID.Hex(), "round", roundNumber, "error", err)
	}
}
