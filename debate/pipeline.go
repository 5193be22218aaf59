package debate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/generative"
	"github.com/parleyhq/debate-api/models"
)

// Pipeline implements the three job handlers that move a debate from its
// first AI round to the final verdict. Every write is idempotent (upserts
// on natural keys, CAS transitions), so a handler re-run after a crash or
// a retry converges on the same persisted state instead of duplicating
// it.
type Pipeline struct {
	machine   *StateMachine
	queue     *Queue
	gen       generative.Client
	rooms     RoomStore
	arguments ArgumentStore
	rebuttals RebuttalStore
	rounds    RoundStore
	turns     TurnStore
	votes     JuryVoteStore
	decisions DecisionStore
	jurySize  int
	notifiers []Notifier
}

// NewPipeline wires the handlers. Notifiers are optional fan-out targets
// for turn, status, and verdict events.
func NewPipeline(
	machine *StateMachine,
	queue *Queue,
	gen generative.Client,
	rooms RoomStore,
	arguments ArgumentStore,
	rebuttals RebuttalStore,
	rounds RoundStore,
	turns TurnStore,
	votes JuryVoteStore,
	decisions DecisionStore,
	jurySize int,
	notifiers ...Notifier,
) *Pipeline {
	return &Pipeline{
		machine:   machine,
		queue:     queue,
		gen:       gen,
		rooms:     rooms,
		arguments: arguments,
		rebuttals: rebuttals,
		rounds:    rounds,
		turns:     turns,
		votes:     votes,
		decisions: decisions,
		jurySize:  jurySize,
		notifiers: notifiers,
	}
}

func (p *Pipeline) notifyTurn(turn *models.DebateTurn) {
	for _, n := range p.notifiers {
		n.TurnPersisted(turn.RoomID, turn)
	}
}

func (p *Pipeline) notifyStatus(room *models.Room) {
	for _, n := range p.notifiers {
		n.RoomStatusChanged(room.ID, room.Status)
	}
}

func (p *Pipeline) notifyVerdict(decision *models.JudgeDecision) {
	for _, n := range p.notifiers {
		n.VerdictReady(decision.RoomID, decision)
	}
}

// loadRoom fetches the room for a job and classifies the dead ends: a
// missing or cancelled room can never be processed, so retrying is
// pointless.
func (p *Pipeline) loadRoom(ctx context.Context, job *models.Job) (*models.Room, error) {
	room, err := p.rooms.Get(ctx, job.RoomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, Terminal("room %s not found", job.RoomID.Hex())
	}
	if room.Status == models.RoomStatusCancelled {
		return nil, Terminal("room %s is cancelled", room.ID.Hex())
	}
	return room, nil
}

// loadContext assembles the full debate transcript for prompting: both
// opening arguments, every completed round's statements, and all human
// rebuttals.
func (p *Pipeline) loadContext(ctx context.Context, room *models.Room) (generative.DebateContext, error) {
	dc := generative.DebateContext{}
	if room.Motion != nil {
		dc.MotionTitle = room.Motion.Title
		dc.MotionDescription = room.Motion.Description
	}

	arguments, err := p.arguments.FindByRoom(ctx, room.ID)
	if err != nil {
		return dc, err
	}
	for i := range arguments {
		switch arguments[i].Side {
		case models.SideA:
			dc.ArgumentA = &arguments[i]
		case models.SideB:
			dc.ArgumentB = &arguments[i]
		}
	}

	rounds, err := p.rounds.FindByRoom(ctx, room.ID)
	if err != nil {
		return dc, err
	}
	for _, round := range rounds {
		if round.Status != models.RoundStatusCompleted {
			continue
		}
		turns, err := p.turns.FindByRound(ctx, round.ID)
		if err != nil {
			return dc, err
		}
		entry := generative.RoundHistory{RoundNumber: round.RoundNumber}
		for _, turn := range turns {
			switch turn.Side {
			case models.SideA:
				entry.StatementA = turn.Content
			case models.SideB:
				entry.StatementB = turn.Content
			}
		}
		dc.History = append(dc.History, entry)
	}

	for roundNumber := 1; roundNumber <= 3; roundNumber++ {
		rebuttals, err := p.rebuttals.FindByRoomAndRound(ctx, room.ID, roundNumber)
		if err != nil {
			return dc, err
		}
		dc.Rebuttals = append(dc.Rebuttals, rebuttals...)
	}
	return dc, nil
}

// advance applies a lifecycle event, treating two outcomes as benign:
// losing the CAS to a concurrent actor, and the room having already moved
// past the event on a handler re-run. Guard failures stay errors so the
// retry path can re-check them.
func (p *Pipeline) advance(ctx context.Context, room *models.Room, event Event) error {
	applied, err := p.machine.Transition(ctx, room, event)
	if errors.Is(err, ErrInvalidTransition) {
		fresh, getErr := p.rooms.Get(ctx, room.ID)
		if getErr != nil {
			return getErr
		}
		if fresh == nil {
			return Terminal("room %s disappeared mid-transition", room.ID.Hex())
		}
		if fresh.Status == models.RoomStatusCancelled {
			return Terminal("room %s is cancelled", room.ID.Hex())
		}
		// Already transitioned by an earlier run of this handler.
		zap.S().Debugw("lifecycle event already applied",
			"roomId", room.ID.Hex(),
			"event", event,
			"status", fresh.Status,
		)
		*room = *fresh
		return nil
	}
	if err != nil {
		return err
	}
	if applied {
		p.notifyStatus(room)
	}
	return nil
}

// chain enqueues the follow-on job exactly once, and only while this job
// is still running: a cancellation that raced the handler stops the chain
// here.
func (p *Pipeline) chain(ctx context.Context, job *models.Job, nextType models.JobType, payload models.JobPayload, roundNumber int) error {
	running, err := p.queue.StillRunning(ctx, job.ID)
	if err != nil {
		return err
	}
	if !running {
		zap.S().Infow("job no longer running, follow-on not enqueued",
			"jobId", job.ID.Hex(),
			"next", nextType,
		)
		return nil
	}
	exists, err := p.queue.HasJob(ctx, job.RoomID, nextType, roundNumber)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := p.queue.Enqueue(ctx, nextType, job.RoomID, payload, DefaultMaxRetries); err != nil {
		return fmt.Errorf("enqueue %s: %w", nextType, err)
	}
	return nil
}
