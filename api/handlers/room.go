package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/api"
	"github.com/parleyhq/debate-api/config"
	"github.com/parleyhq/debate-api/databases"
	"github.com/parleyhq/debate-api/debate"
	"github.com/parleyhq/debate-api/models"
)

// Room exported for testing purposes
type Room struct {
	DB      databases.RoomDatabase
	ADB     databases.ArgumentDatabase
	RebDB   databases.RebuttalDatabase
	RoundDB databases.RoundDatabase
	TDB     databases.TurnDatabase
	VDB     databases.JuryVoteDatabase
	DecDB   databases.JudgeDecisionDatabase
	JDB     databases.JobDatabase
	Machine *debate.StateMachine
	Queue   *debate.Queue
	Config  config.Config
}

type createRoomRequest struct {
	Motion *models.Motion `json:"motion,omitempty"`
}

type joinRoomRequest struct {
	Code string `json:"code"`
}

type motionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// roomStateResponse is the full debate view a client renders from.
type roomStateResponse struct {
	Room      *models.Room          `json:"room"`
	Arguments []models.Argument     `json:"arguments"`
	Rounds    []models.Round        `json:"rounds"`
	Turns     []models.DebateTurn   `json:"turns"`
	Rebuttals []models.Rebuttal     `json:"rebuttals"`
	Jury      *debate.JurySummary   `json:"jury,omitempty"`
	Decision  *models.JudgeDecision `json:"decision,omitempty"`
	FailedJob *models.Job           `json:"failedJob,omitempty"`
}

type verdictResponse struct {
	Motion   *models.Motion        `json:"motion,omitempty"`
	Decision *models.JudgeDecision `json:"decision"`
	Jury     debate.JurySummary    `json:"jury"`
	ShareURL string                `json:"shareUrl,omitempty"`
}

// newRoomCode returns a short join code. Uniqueness is enforced by the
// index on rooms.code, not by this generator.
func newRoomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// RoomCreateHandler creates a room with the caller as side A
func (rm Room) RoomCreateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := api.AuthUserID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve authenticated user", http.StatusUnauthorized, w, err)
		return
	}

	var req createRoomRequest
	if r.Body != nil {
		// The body is optional; a motion can also be proposed later.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	room := &models.Room{
		Code:      newRoomCode(),
		CreatorID: userID,
		Status:    models.RoomStatusWaitingParticipant,
		Motion:    req.Motion,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := rm.DB.Insert(context.Background(), room)
	if err != nil {
		config.ErrorStatus("failed to create room", http.StatusInternalServerError, w, err)
		return
	}
	room.ID = id
	zap.S().Infow("room created", "roomId", id.Hex(), "code", room.Code)

	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// RoomJoinHandler admits the caller as side B using the room code
func (rm Room) RoomJoinHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := api.AuthUserID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve authenticated user", http.StatusUnauthorized, w, err)
		return
	}
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		config.ErrorStatus("room code is required", http.StatusBadRequest, w, err)
		return
	}

	room, err := rm.DB.GetByCode(context.Background(), strings.ToUpper(req.Code))
	if err != nil {
		config.ErrorStatus("failed to get room by code", http.StatusInternalServerError, w, err)
		return
	}
	if room == nil {
		config.ErrorStatus("room not found", http.StatusNotFound, w, fmt.Errorf("no room with code %q", req.Code))
		return
	}
	if room.CreatorID == userID {
		config.ErrorStatus("cannot join a room you created", http.StatusConflict, w, fmt.Errorf("creator already holds side A"))
		return
	}

	applied, err := rm.Machine.Join(context.Background(), room, userID)
	if err != nil {
		transitionErrorStatus(w, err)
		return
	}
	if !applied {
		config.ErrorStatus("room is no longer open to join", http.StatusConflict, w, fmt.Errorf("join lost to a concurrent participant"))
		return
	}

	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RoomHandler returns a room by ID
func (rm Room) RoomHandler(w http.ResponseWriter, r *http.Request) {
	room, ok := rm.fetchRoom(w, r)
	if !ok {
		return
	}
	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RoomStateHandler returns the room with its full debate record
func (rm Room) RoomStateHandler(w http.ResponseWriter, r *http.Request) {
	room, ok := rm.fetchRoom(w, r)
	if !ok {
		return
	}
	ctx := context.Background()

	state := roomStateResponse{Room: room}
	var err error
	if state.Arguments, err = rm.ADB.FindByRoom(ctx, room.ID); err != nil {
		config.ErrorStatus("failed to get arguments", http.StatusInternalServerError, w, err)
		return
	}
	if state.Rounds, err = rm.RoundDB.FindByRoom(ctx, room.ID); err != nil {
		config.ErrorStatus("failed to get rounds", http.StatusInternalServerError, w, err)
		return
	}
	if state.Turns, err = rm.TDB.FindByRoom(ctx, room.ID); err != nil {
		config.ErrorStatus("failed to get turns", http.StatusInternalServerError, w, err)
		return
	}
	if state.Rebuttals, err = rm.RebDB.FindByRoom(ctx, room.ID); err != nil {
		config.ErrorStatus("failed to get rebuttals", http.StatusInternalServerError, w, err)
		return
	}
	votes, err := rm.VDB.FindByRoom(ctx, room.ID)
	if err != nil {
		config.ErrorStatus("failed to get jury votes", http.StatusInternalServerError, w, err)
		return
	}
	if len(votes) > 0 {
		summary := debate.Aggregate(votes, rm.Config.JurySize)
		state.Jury = &summary
	}
	if state.Decision, err = rm.DecDB.FindByRoom(ctx, room.ID); err != nil {
		config.ErrorStatus("failed to get decision", http.StatusInternalServerError, w, err)
		return
	}
	// A room parked in an AI stage with a terminally failed job is stuck
	// until someone retries the job; surface the failure so clients can
	// show it instead of an endless spinner.
	if !room.Status.Terminal() {
		jobs, err := rm.JDB.FindByRoom(ctx, room.ID)
		if err != nil {
			config.ErrorStatus("failed to get jobs", http.StatusInternalServerError, w, err)
			return
		}
		for i := range jobs {
			if jobs[i].Status == models.JobStatusFailed {
				state.FailedJob = &jobs[i]
				break
			}
		}
	}
	if state.Arguments == nil {
		state.Arguments = []models.Argument{}
	}
	if state.Rounds == nil {
		state.Rounds = []models.Round{}
	}
	if state.Turns == nil {
		state.Turns = []models.DebateTurn{}
	}
	if state.Rebuttals == nil {
		state.Rebuttals = []models.Rebuttal{}
	}

	b, err := json.Marshal(state)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MotionHandler replaces the proposed motion during agenda negotiation
func (rm Room) MotionHandler(w http.ResponseWriter, r *http.Request) {
	room, userID, ok := rm.fetchMemberRoom(w, r)
	if !ok {
		return
	}
	var req motionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		config.ErrorStatus("motion title is required", http.StatusBadRequest, w, err)
		return
	}

	motion := &models.Motion{Title: req.Title, Description: req.Description}
	applied, err := rm.DB.SetMotion(context.Background(), room.ID, motion)
	if err != nil {
		config.ErrorStatus("failed to set motion", http.StatusInternalServerError, w, err)
		return
	}
	if !applied {
		config.ErrorStatus("motion can only be proposed during agenda negotiation", http.StatusConflict, w,
			fmt.Errorf("room %s is in status %s", room.ID.Hex(), room.Status))
		return
	}
	room.Motion = motion
	zap.S().Infow("motion proposed", "roomId", room.ID.Hex(), "userId", userID.Hex(), "title", req.Title)

	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MotionAgreeHandler locks the motion and opens argument submission
func (rm Room) MotionAgreeHandler(w http.ResponseWriter, r *http.Request) {
	room, _, ok := rm.fetchMemberRoom(w, r)
	if !ok {
		return
	}
	if room.Motion == nil || room.Motion.Title == "" {
		config.ErrorStatus("no motion has been proposed", http.StatusBadRequest, w, fmt.Errorf("room %s has no motion", room.ID.Hex()))
		return
	}

	applied, err := rm.Machine.Transition(context.Background(), room, debate.EventMotionAgreed)
	if err != nil {
		transitionErrorStatus(w, err)
		return
	}
	if !applied {
		config.ErrorStatus("room state changed, retry", http.StatusConflict, w, fmt.Errorf("concurrent transition"))
		return
	}

	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RoomCancelHandler cancels the room and every live job attached to it
func (rm Room) RoomCancelHandler(w http.ResponseWriter, r *http.Request) {
	room, userID, ok := rm.fetchMemberRoom(w, r)
	if !ok {
		return
	}

	applied, err := rm.Machine.Transition(context.Background(), room, debate.EventCancelled)
	if err != nil {
		transitionErrorStatus(w, err)
		return
	}
	if !applied {
		config.ErrorStatus("room is already terminal", http.StatusConflict, w, fmt.Errorf("concurrent transition"))
		return
	}
	zap.S().Infow("room cancelled", "roomId", room.ID.Hex(), "userId", userID.Hex())

	// In-flight work is cancelled best effort: a job mid-run keeps its
	// generation call, but the cancel CAS stops its result and its chain.
	jobs, err := rm.JDB.FindByRoom(context.Background(), room.ID)
	if err != nil {
		config.ErrorStatus("room cancelled but failed to list jobs", http.StatusInternalServerError, w, err)
		return
	}
	for i := range jobs {
		if jobs[i].Status.Terminal() {
			continue
		}
		if _, err := rm.Queue.Cancel(context.Background(), &jobs[i]); err != nil {
			zap.S().Errorw("failed to cancel job for cancelled room",
				"roomId", room.ID.Hex(),
				"jobId", jobs[i].ID.Hex(),
				"error", err,
			)
		}
	}

	b, err := json.Marshal(room)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// VerdictHandler returns the verdict with the jury summary and share link
func (rm Room) VerdictHandler(w http.ResponseWriter, r *http.Request) {
	room, ok := rm.fetchRoom(w, r)
	if !ok {
		return
	}
	decision, err := rm.DecDB.FindByRoom(context.Background(), room.ID)
	if err != nil {
		config.ErrorStatus("failed to get decision", http.StatusInternalServerError, w, err)
		return
	}
	if decision == nil {
		config.ErrorStatus("verdict is not ready", http.StatusNotFound, w, fmt.Errorf("room %s has no decision", room.ID.Hex()))
		return
	}
	votes, err := rm.VDB.FindByRoom(context.Background(), room.ID)
	if err != nil {
		config.ErrorStatus("failed to get jury votes", http.StatusInternalServerError, w, err)
		return
	}

	resp := verdictResponse{
		Motion:   room.Motion,
		Decision: decision,
		Jury:     debate.Aggregate(votes, rm.Config.JurySize),
	}
	if token, err := api.SignVerdictToken(rm.Config.JWTSecret, room.ID); err == nil {
		resp.ShareURL = fmt.Sprintf("%s/api/v1/verdict/%s", strings.TrimRight(rm.Config.BaseURL, "/"), token)
	} else {
		zap.S().Warnw("failed to sign verdict share token", "roomId", room.ID.Hex(), "error", err)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// VerdictByTokenHandler serves a shared verdict without authentication
func (rm Room) VerdictByTokenHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	roomID, err := api.ParseVerdictToken(rm.Config.JWTSecret, token)
	if err != nil {
		config.ErrorStatus("invalid verdict link", http.StatusUnauthorized, w, err)
		return
	}
	room, err := rm.DB.Get(context.Background(), roomID)
	if err != nil {
		config.ErrorStatus("failed to get room", http.StatusInternalServerError, w, err)
		return
	}
	if room == nil {
		config.ErrorStatus("room not found", http.StatusNotFound, w, fmt.Errorf("no room %s", roomID.Hex()))
		return
	}
	decision, err := rm.DecDB.FindByRoom(context.Background(), roomID)
	if err != nil || decision == nil {
		config.ErrorStatus("verdict is not ready", http.StatusNotFound, w, err)
		return
	}
	votes, err := rm.VDB.FindByRoom(context.Background(), roomID)
	if err != nil {
		config.ErrorStatus("failed to get jury votes", http.StatusInternalServerError, w, err)
		return
	}

	resp := verdictResponse{
		Motion:   room.Motion,
		Decision: decision,
		Jury:     debate.Aggregate(votes, rm.Config.JurySize),
	}
	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// fetchRoom loads the room in the route or writes the error response.
func (rm Room) fetchRoom(w http.ResponseWriter, r *http.Request) (*models.Room, bool) {
	roomID := mux.Vars(r)["room_id"]
	rID, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return nil, false
	}
	room, err := rm.DB.Get(context.Background(), rID)
	if err != nil {
		config.ErrorStatus("failed to get room by ID", http.StatusInternalServerError, w, err)
		return nil, false
	}
	if room == nil {
		config.ErrorStatus("room not found", http.StatusNotFound, w, fmt.Errorf("no room %s", roomID))
		return nil, false
	}
	return room, true
}

// fetchMemberRoom additionally requires the caller to be in the room.
func (rm Room) fetchMemberRoom(w http.ResponseWriter, r *http.Request) (*models.Room, primitive.ObjectID, bool) {
	room, ok := rm.fetchRoom(w, r)
	if !ok {
		return nil, primitive.NilObjectID, false
	}
	userID, err := api.AuthUserID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve authenticated user", http.StatusUnauthorized, w, err)
		return nil, primitive.NilObjectID, false
	}
	if !room.HasMember(userID) {
		config.ErrorStatus("user is not a member of this room", http.StatusForbidden, w,
			fmt.Errorf("user %s not in room %s", userID.Hex(), room.ID.Hex()))
		return nil, primitive.NilObjectID, false
	}
	return room, userID, true
}

// transitionErrorStatus maps state machine errors to HTTP statuses:
// off-graph events and unmet guards are conflicts, everything else is a
// server error.
func transitionErrorStatus(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, debate.ErrInvalidTransition):
		config.ErrorStatus("invalid lifecycle transition", http.StatusConflict, w, err)
	case errors.Is(err, debate.ErrGuardNotSatisfied):
		config.ErrorStatus("transition requirements not met", http.StatusConflict, w, err)
	default:
		config.ErrorStatus("failed to transition room", http.StatusInternalServerError, w, err)
	}
}
