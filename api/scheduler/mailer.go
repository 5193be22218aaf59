package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/api"
	"github.com/parleyhq/debate-api/config"
	"github.com/parleyhq/debate-api/databases"
	"github.com/parleyhq/debate-api/debate"
	"github.com/parleyhq/debate-api/models"
	templates "github.com/parleyhq/debate-api/templates/html"
)

// Mailer delivers verdict-ready emails to both debaters. It plugs into
// the pipeline as a notifier; sends happen off the job handler's
// goroutine and a delivery failure is logged, never retried through the
// job system. Turn and status events are delivered over the live feed,
// so the embedded NopNotifier discards them.
type Mailer struct {
	debate.NopNotifier
	Config config.Config
	UDB    databases.UserDatabase
	RDB    databases.RoomDatabase
}

// NewMailer creates a verdict mailer.
func NewMailer(conf config.Config, udb databases.UserDatabase, rdb databases.RoomDatabase) *Mailer {
	return &Mailer{Config: conf, UDB: udb, RDB: rdb}
}

// VerdictReady emails both debaters that the verdict is in.
func (m *Mailer) VerdictReady(roomID primitive.ObjectID, decision *models.JudgeDecision) {
	if m.Config.SendgridKey == "" {
		zap.S().Debug("sendgrid key not configured, skipping verdict emails")
		return
	}
	go m.sendVerdictEmails(roomID, decision)
}

func (m *Mailer) sendVerdictEmails(roomID primitive.ObjectID, decision *models.JudgeDecision) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	room, err := m.RDB.Get(ctx, roomID)
	if err != nil || room == nil {
		zap.S().Errorw("failed to load room for verdict email", "roomId", roomID.Hex(), "error", err)
		return
	}

	motionTitle := ""
	if room.Motion != nil {
		motionTitle = room.Motion.Title
	}
	verdictURL := m.verdictLink(roomID)

	recipients := []primitive.ObjectID{room.CreatorID}
	if room.ParticipantID != nil {
		recipients = append(recipients, *room.ParticipantID)
	}
	for _, userID := range recipients {
		user, err := m.UDB.FindByID(ctx, userID)
		if err != nil || user == nil {
			zap.S().Errorw("failed to load user for verdict email", "userId", userID.Hex(), "error", err)
			continue
		}
		htmlContent := templates.RenderVerdictEmail(
			user.Username, motionTitle, string(decision.Winner),
			decision.Reasoning, decision.ScoreA, decision.ScoreB, verdictURL,
		)
		plainText := fmt.Sprintf(
			"The verdict is in for %q: side %s wins (A: %d, B: %d).\n\n%s\n\n%s",
			motionTitle, decision.Winner, decision.ScoreA, decision.ScoreB, decision.Reasoning, verdictURL,
		)
		m.send(user, "The verdict is in", plainText, htmlContent)
	}
}

// verdictLink builds the URL the email points at: a signed share link
// that the unauthenticated verdict route accepts directly. If signing is
// not possible the link falls back to the authenticated room view.
func (m *Mailer) verdictLink(roomID primitive.ObjectID) string {
	base := strings.TrimRight(m.Config.BaseURL, "/")
	token, err := api.SignVerdictToken(m.Config.JWTSecret, roomID)
	if err != nil {
		zap.S().Warnw("failed to sign verdict link, using authenticated URL",
			"roomId", roomID.Hex(),
			"error", err,
		)
		return fmt.Sprintf("%s/room/%s/verdict", base, roomID.Hex())
	}
	return fmt.Sprintf("%s/api/v1/verdict/%s", base, token)
}

func (m *Mailer) send(user *models.User, subject, plainText, htmlContent string) {
	from := mail.NewEmail("ParleyHQ", "no-reply@parleyhq.com")
	to := mail.NewEmail(user.Username, user.Email)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(m.Config.SendgridKey)
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send verdict email", "email", user.Email, "error", err)
		return
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return
	}
	zap.S().Infow("verdict email sent", "email", user.Email)
}
