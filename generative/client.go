// Package generative wraps the Anthropic Messages API behind typed
// debate requests. Transient provider failures are retried with capped
// exponential backoff and a hard per-call timeout; this retry loop is
// independent of, and nested inside, the job-level retry policy.
package generative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/config"
	"github.com/parleyhq/debate-api/models"
)

// RoundHistory is one completed round of generated statements.
type RoundHistory struct {
	RoundNumber int
	StatementA  string
	StatementB  string
}

// DebateContext carries everything a generation call may need about the
// debate so far.
type DebateContext struct {
	MotionTitle       string
	MotionDescription string
	ArgumentA         *models.Argument
	ArgumentB         *models.Argument
	History           []RoundHistory
	Rebuttals         []models.Rebuttal
}

// AdvocateRequest asks for one side's statement in a round.
type AdvocateRequest struct {
	Context     DebateContext
	Side        models.Side
	RoundNumber int
	// OpponentStatement is the same-round statement from the other side
	// when it has already been generated (side B sees side A's).
	OpponentStatement string
}

// Statement is an advocate's generated output. Fallback marks a
// best-effort result assembled from raw text after a parse failure.
type Statement struct {
	Content  string
	Fallback bool
}

// JurorRequest asks one juror persona for a vote.
type JurorRequest struct {
	Context     DebateContext
	JurorNumber int
}

// Vote is one juror's structured output.
type Vote struct {
	Side       models.Side
	Confidence int
	Reasoning  string
	Persona    string
}

// VerdictRequest asks the judge for the final decision.
type VerdictRequest struct {
	Context DebateContext
	Votes   []models.JuryVote
}

// Verdict is the judge's structured output.
type Verdict struct {
	Winner    models.Side
	Reasoning string
	ScoreA    int
	ScoreB    int
}

// Client produces structured AI output for the three debate request
// kinds.
type Client interface {
	Advocate(ctx context.Context, req AdvocateRequest) (*Statement, error)
	JurorVote(ctx context.Context, req JurorRequest) (*Vote, error)
	Verdict(ctx context.Context, req VerdictRequest) (*Verdict, error)
}

// AnthropicClient implements Client on the Anthropic Messages API.
type AnthropicClient struct {
	client     anthropic.Client
	model      anthropic.Model
	timeout    time.Duration
	maxElapsed time.Duration
}

var errAPIKeyRequired = errors.New("API key required")

// NewAnthropicClient builds the client from config. The per-call timeout
// caps each generation end to end, retries included.
func NewAnthropicClient(conf *config.Config) (*AnthropicClient, error) {
	if conf.AnthropicKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY", errAPIKeyRequired)
	}
	return &AnthropicClient{
		client:     anthropic.NewClient(option.WithAPIKey(conf.AnthropicKey)),
		model:      anthropic.Model(conf.AnthropicModel),
		timeout:    conf.GenerateTimeout,
		maxElapsed: conf.GenerateTimeout,
	}, nil
}

// Advocate generates one side's statement. On a parse failure the raw
// text is still usable prose, so it is returned flagged as a fallback
// rather than discarded.
func (c *AnthropicClient) Advocate(ctx context.Context, req AdvocateRequest) (*Statement, error) {
	raw, err := c.complete(ctx, advocatePrompt(req), 1024)
	if err != nil {
		return nil, err
	}
	var dto struct {
		Statement string `json:"statement"`
	}
	if jsonErr := decodeJSON(raw, &dto); jsonErr != nil || dto.Statement == "" {
		zap.S().Warnw("advocate response not parseable, using raw text as flagged fallback",
			"side", req.Side,
			"round", req.RoundNumber,
		)
		return &Statement{Content: strings.TrimSpace(raw), Fallback: true}, nil
	}
	return &Statement{Content: dto.Statement}, nil
}

// JurorVote generates one juror's vote. A vote without a valid side is
// useless, so parse failures fail loudly instead of fabricating a
// result.
func (c *AnthropicClient) JurorVote(ctx context.Context, req JurorRequest) (*Vote, error) {
	persona := personaFor(req.JurorNumber)
	raw, err := c.complete(ctx, jurorPrompt(req, persona), 512)
	if err != nil {
		return nil, err
	}
	var dto struct {
		Vote       string `json:"vote"`
		Confidence int    `json:"confidence"`
		Reasoning  string `json:"reasoning"`
	}
	if err := decodeJSON(raw, &dto); err != nil {
		return nil, fmt.Errorf("juror %d returned unparseable output: %w", req.JurorNumber, err)
	}
	side, err := parseSide(dto.Vote)
	if err != nil {
		return nil, fmt.Errorf("juror %d: %w", req.JurorNumber, err)
	}
	return &Vote{
		Side:       side,
		Confidence: clampConfidence(dto.Confidence),
		Reasoning:  dto.Reasoning,
		Persona:    persona.Name,
	}, nil
}

// Verdict generates the final decision. Like juror votes, a verdict
// without a valid winner fails loudly.
func (c *AnthropicClient) Verdict(ctx context.Context, req VerdictRequest) (*Verdict, error) {
	raw, err := c.complete(ctx, verdictPrompt(req), 1024)
	if err != nil {
		return nil, err
	}
	var dto struct {
		Winner    string `json:"winner"`
		Reasoning string `json:"reasoning"`
		ScoreA    int    `json:"scoreA"`
		ScoreB    int    `json:"scoreB"`
	}
	if err := decodeJSON(raw, &dto); err != nil {
		return nil, fmt.Errorf("judge returned unparseable output: %w", err)
	}
	winner, err := parseSide(dto.Winner)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}
	return &Verdict{
		Winner:    winner,
		Reasoning: dto.Reasoning,
		ScoreA:    dto.ScoreA,
		ScoreB:    dto.ScoreB,
	}, nil
}

func (c *AnthropicClient) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var out string
	operation := func() error {
		t0 := time.Now()
		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			zap.S().Warnw("transient provider failure, will retry",
				"error", err,
				"elapsed", time.Since(t0),
			)
			return err
		}
		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("unexpected response format: no content blocks"))
		}
		block := message.Content[0]
		if block.Type != "text" {
			return backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", block.Type))
		}
		out = block.Text
		return nil
	}

	// BackOff implementations are stateful; always use a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return out, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// decodeJSON unmarshals the first JSON object found in raw, tolerating
// prose or code fences around it.
func decodeJSON(raw string, v interface{}) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v)
}

func parseSide(s string) (models.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return models.SideA, nil
	case "B":
		return models.SideB, nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

func clampConfidence(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}
