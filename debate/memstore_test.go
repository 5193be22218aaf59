package debate_test

// In-memory store fakes for the engine tests. They reproduce the
// compare-and-swap semantics of the mongo repositories (a status swap
// only applies when the expected prior status still holds) so the
// concurrency-sensitive paths can be exercised without a database.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/parleyhq/debate-api/debate"
	"github.com/parleyhq/debate-api/generative"
	"github.com/parleyhq/debate-api/models"
)

type memRooms struct {
	mu    sync.Mutex
	rooms map[primitive.ObjectID]*models.Room
}

func newMemRooms() *memRooms {
	return &memRooms{rooms: make(map[primitive.ObjectID]*models.Room)}
}

func (m *memRooms) add(room *models.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room.ID.IsZero() {
		room.ID = primitive.NewObjectID()
	}
	copied := *room
	m.rooms[room.ID] = &copied
}

func (m *memRooms) Get(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	copied := *room
	return &copied, nil
}

func (m *memRooms) Join(ctx context.Context, id, participantID primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok || room.Status != models.RoomStatusWaitingParticipant || room.ParticipantID != nil {
		return false, nil
	}
	pid := participantID
	room.ParticipantID = &pid
	room.Status = models.RoomStatusAgendaNegotiation
	return true, nil
}

func (m *memRooms) Transition(ctx context.Context, id primitive.ObjectID, expected, next models.RoomStatus, set bson.M) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok || room.Status != expected {
		return false, nil
	}
	room.Status = next
	return true, nil
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[primitive.ObjectID]*models.Job
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[primitive.ObjectID]*models.Job)}
}

func (m *memJobs) Insert(ctx context.Context, job *models.Job) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := primitive.NewObjectID()
	copied := *job
	copied.ID = id
	m.jobs[id] = &copied
	return id, nil
}

func (m *memJobs) Get(ctx context.Context, id primitive.ObjectID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (m *memJobs) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Job
	for _, job := range m.jobs {
		if job.Status == models.JobStatusQueued && !job.ScheduledAt.Time().After(now) {
			due = append(due, *job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt < due[j].ScheduledAt })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memJobs) Exists(ctx context.Context, roomID primitive.ObjectID, jobType models.JobType, roundNumber int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.RoomID != roomID || job.Type != jobType {
			continue
		}
		if roundNumber > 0 && (job.Payload.Debate == nil || job.Payload.Debate.RoundNumber != roundNumber) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (m *memJobs) swap(id primitive.ObjectID, expected models.JobStatus, apply func(*models.Job)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != expected {
		return false
	}
	apply(job)
	return true
}

func (m *memJobs) Claim(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	return m.swap(id, models.JobStatusQueued, func(job *models.Job) {
		job.Status = models.JobStatusRunning
		started := primitive.NewDateTimeFromTime(now)
		job.StartedAt = &started
	}), nil
}

func (m *memJobs) Complete(ctx context.Context, id primitive.ObjectID, result bson.M, now time.Time) (bool, error) {
	return m.swap(id, models.JobStatusRunning, func(job *models.Job) {
		job.Status = models.JobStatusSucceeded
		job.Result = result
	}), nil
}

func (m *memJobs) Requeue(ctx context.Context, id primitive.ObjectID, retryCount int, scheduledAt time.Time, errMsg string) (bool, error) {
	return m.swap(id, models.JobStatusRunning, func(job *models.Job) {
		job.Status = models.JobStatusQueued
		job.RetryCount = retryCount
		job.ScheduledAt = primitive.NewDateTimeFromTime(scheduledAt)
		job.Error = errMsg
	}), nil
}

func (m *memJobs) FailTerminal(ctx context.Context, id primitive.ObjectID, errMsg string, now time.Time) (bool, error) {
	return m.swap(id, models.JobStatusRunning, func(job *models.Job) {
		job.Status = models.JobStatusFailed
		job.Error = errMsg
	}), nil
}

func (m *memJobs) Cancel(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || (job.Status != models.JobStatusQueued && job.Status != models.JobStatusRunning) {
		return false, nil
	}
	job.Status = models.JobStatusCancelled
	return true, nil
}

func (m *memJobs) byType(roomID primitive.ObjectID, jobType models.JobType) []models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Job
	for _, job := range m.jobs {
		if job.RoomID == roomID && job.Type == jobType {
			out = append(out, *job)
		}
	}
	return out
}

type memArguments struct {
	mu   sync.Mutex
	args []models.Argument
}

func (m *memArguments) add(arg models.Argument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if arg.ID.IsZero() {
		arg.ID = primitive.NewObjectID()
	}
	m.args = append(m.args, arg)
}

func (m *memArguments) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Argument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Argument
	for _, arg := range m.args {
		if arg.RoomID == roomID {
			out = append(out, arg)
		}
	}
	return out, nil
}

type memRebuttals struct {
	mu        sync.Mutex
	rebuttals []models.Rebuttal
}

func (m *memRebuttals) add(reb models.Rebuttal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reb.ID.IsZero() {
		reb.ID = primitive.NewObjectID()
	}
	m.rebuttals = append(m.rebuttals, reb)
}

func (m *memRebuttals) FindByRoomAndRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) ([]models.Rebuttal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Rebuttal
	for _, reb := range m.rebuttals {
		if reb.RoomID == roomID && reb.RoundNumber == roundNumber {
			out = append(out, reb)
		}
	}
	return out, nil
}

func (m *memRebuttals) CountByRoomAndRound(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (int64, error) {
	rebs, _ := m.FindByRoomAndRound(ctx, roomID, roundNumber)
	return int64(len(rebs)), nil
}

type memRounds struct {
	mu     sync.Mutex
	rounds map[primitive.ObjectID]*models.Round
}

func newMemRounds() *memRounds {
	return &memRounds{rounds: make(map[primitive.ObjectID]*models.Round)}
}

func (m *memRounds) FindByRoomAndNumber(ctx context.Context, roomID primitive.ObjectID, roundNumber int) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, round := range m.rounds {
		if round.RoomID == roomID && round.RoundNumber == roundNumber {
			copied := *round
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memRounds) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Round
	for _, round := range m.rounds {
		if round.RoomID == roomID {
			out = append(out, *round)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (m *memRounds) Insert(ctx context.Context, round *models.Round) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rounds {
		if existing.RoomID == round.RoomID && existing.RoundNumber == round.RoundNumber {
			return primitive.NilObjectID, fmt.Errorf("duplicate key: round %d", round.RoundNumber)
		}
	}
	id := primitive.NewObjectID()
	copied := *round
	copied.ID = id
	m.rounds[id] = &copied
	return id, nil
}

func (m *memRounds) SetStatus(ctx context.Context, id primitive.ObjectID, status models.RoundStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if round, ok := m.rounds[id]; ok {
		round.Status = status
	}
	return nil
}

type memTurns struct {
	mu    sync.Mutex
	turns []models.DebateTurn
}

func (m *memTurns) Upsert(ctx context.Context, turn *models.DebateTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.turns {
		if m.turns[i].RoundID == turn.RoundID && m.turns[i].TurnNumber == turn.TurnNumber {
			id := m.turns[i].ID
			m.turns[i] = *turn
			m.turns[i].ID = id
			return nil
		}
	}
	copied := *turn
	copied.ID = primitive.NewObjectID()
	m.turns = append(m.turns, copied)
	return nil
}

func (m *memTurns) FindByRound(ctx context.Context, roundID primitive.ObjectID) ([]models.DebateTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DebateTurn
	for _, turn := range m.turns {
		if turn.RoundID == roundID {
			out = append(out, turn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnNumber < out[j].TurnNumber })
	return out, nil
}

func (m *memTurns) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.DebateTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DebateTurn
	for _, turn := range m.turns {
		if turn.RoomID == roomID {
			out = append(out, turn)
		}
	}
	return out, nil
}

type memVotes struct {
	mu    sync.Mutex
	votes []models.JuryVote
}

func (m *memVotes) Upsert(ctx context.Context, vote *models.JuryVote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.votes {
		if m.votes[i].RoomID == vote.RoomID && m.votes[i].JurorNumber == vote.JurorNumber {
			id := m.votes[i].ID
			m.votes[i] = *vote
			m.votes[i].ID = id
			return nil
		}
	}
	copied := *vote
	copied.ID = primitive.NewObjectID()
	m.votes = append(m.votes, copied)
	return nil
}

func (m *memVotes) FindByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.JuryVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JuryVote
	for _, vote := range m.votes {
		if vote.RoomID == roomID {
			out = append(out, vote)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JurorNumber < out[j].JurorNumber })
	return out, nil
}

func (m *memVotes) CountByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	votes, _ := m.FindByRoom(ctx, roomID)
	return int64(len(votes)), nil
}

type memDecisions struct {
	mu        sync.Mutex
	decisions map[primitive.ObjectID]*models.JudgeDecision
}

func newMemDecisions() *memDecisions {
	return &memDecisions{decisions: make(map[primitive.ObjectID]*models.JudgeDecision)}
}

func (m *memDecisions) Upsert(ctx context.Context, decision *models.JudgeDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *decision
	if copied.ID.IsZero() {
		copied.ID = primitive.NewObjectID()
	}
	m.decisions[decision.RoomID] = &copied
	return nil
}

func (m *memDecisions) FindByRoom(ctx context.Context, roomID primitive.ObjectID) (*models.JudgeDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	decision, ok := m.decisions[roomID]
	if !ok {
		return nil, nil
	}
	copied := *decision
	return &copied, nil
}

// fakeGen is a deterministic generative client. Hooks run before each
// call so tests can inject failures or race a cancellation mid-job.
type fakeGen struct {
	mu            sync.Mutex
	advocateCalls int
	jurorCalls    int
	verdictCalls  int
	advocateHook  func(req generative.AdvocateRequest) error
	jurorHook     func(req generative.JurorRequest) error
	jurorVotes    map[int]models.Side
}

func (f *fakeGen) Advocate(ctx context.Context, req generative.AdvocateRequest) (*generative.Statement, error) {
	f.mu.Lock()
	hook := f.advocateHook
	f.advocateCalls++
	f.mu.Unlock()
	if hook != nil {
		if err := hook(req); err != nil {
			return nil, err
		}
	}
	return &generative.Statement{
		Content: fmt.Sprintf("round %d side %s statement", req.RoundNumber, req.Side),
	}, nil
}

func (f *fakeGen) JurorVote(ctx context.Context, req generative.JurorRequest) (*generative.Vote, error) {
	f.mu.Lock()
	hook := f.jurorHook
	f.jurorCalls++
	f.mu.Unlock()
	if hook != nil {
		if err := hook(req); err != nil {
			return nil, err
		}
	}
	side := models.SideA
	if f.jurorVotes != nil {
		if v, ok := f.jurorVotes[req.JurorNumber]; ok {
			side = v
		}
	}
	return &generative.Vote{
		Side:       side,
		Confidence: 8,
		Reasoning:  fmt.Sprintf("juror %d reasoning", req.JurorNumber),
		Persona:    fmt.Sprintf("persona-%d", req.JurorNumber),
	}, nil
}

func (f *fakeGen) Verdict(ctx context.Context, req generative.VerdictRequest) (*generative.Verdict, error) {
	f.mu.Lock()
	f.verdictCalls++
	f.mu.Unlock()
	return &generative.Verdict{
		Winner:    models.SideA,
		Reasoning: "side A engaged the rebuttals more directly",
		ScoreA:    86,
		ScoreB:    71,
	}, nil
}

// env bundles a fully wired engine over the in-memory stores.
type env struct {
	rooms      *memRooms
	jobs       *memJobs
	arguments  *memArguments
	rebuttals  *memRebuttals
	rounds     *memRounds
	turns      *memTurns
	votes      *memVotes
	decisions  *memDecisions
	gen        *fakeGen
	machine    *debate.StateMachine
	queue      *debate.Queue
	pipeline   *debate.Pipeline
	dispatcher *debate.Dispatcher
}

func newEnv(jurySize int) *env {
	e := &env{
		rooms:     newMemRooms(),
		jobs:      newMemJobs(),
		arguments: &memArguments{},
		rebuttals: &memRebuttals{},
		rounds:    newMemRounds(),
		turns:     &memTurns{},
		votes:     &memVotes{},
		decisions: newMemDecisions(),
		gen:       &fakeGen{},
	}
	e.machine = debate.NewStateMachine(e.rooms, e.arguments, e.rebuttals, e.rounds, e.turns, e.votes, e.decisions, jurySize)
	e.queue = debate.NewQueue(e.jobs)
	e.pipeline = debate.NewPipeline(
		e.machine, e.queue, e.gen,
		e.rooms, e.arguments, e.rebuttals, e.rounds, e.turns, e.votes, e.decisions,
		jurySize,
	)
	e.dispatcher = debate.NewDispatcher(e.queue, e.pipeline)
	return e
}

// seedRoom creates a room in the given status with two members, a motion
// and both opening arguments in place.
func (e *env) seedRoom(status models.RoomStatus) *models.Room {
	creator := primitive.NewObjectID()
	participant := primitive.NewObjectID()
	room := &models.Room{
		ID:            primitive.NewObjectID(),
		Code:          "TESTCODE",
		CreatorID:     creator,
		ParticipantID: &participant,
		Status:        status,
		Motion:        &models.Motion{Title: "This house would adopt a four day work week"},
	}
	e.rooms.add(room)
	e.arguments.add(models.Argument{RoomID: room.ID, UserID: creator, Side: models.SideA, Content: "opening A"})
	e.arguments.add(models.Argument{RoomID: room.ID, UserID: participant, Side: models.SideB, Content: "opening B"})
	return room
}

func (e *env) addRebuttals(room *models.Room, roundNumber int) {
	e.rebuttals.add(models.Rebuttal{RoomID: room.ID, UserID: room.CreatorID, Side: models.SideA, RoundNumber: roundNumber, Content: "rebuttal A"})
	e.rebuttals.add(models.Rebuttal{RoomID: room.ID, UserID: *room.ParticipantID, Side: models.SideB, RoundNumber: roundNumber, Content: "rebuttal B"})
}

func (e *env) enqueueDebate(room *models.Room, roundNumber int) *models.Job {
	payload := models.JobPayload{Debate: &models.DebatePayload{RoomID: room.ID, RoundNumber: roundNumber}}
	job, err := e.queue.Enqueue(context.Background(), models.JobTypeDebate, room.ID, payload, debate.DefaultMaxRetries)
	if err != nil {
		panic(err)
	}
	return job
}

func (e *env) roomStatus(id primitive.ObjectID) models.RoomStatus {
	room, _ := e.rooms.Get(context.Background(), id)
	return room.Status
}
