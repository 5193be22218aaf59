package generative

import (
	"fmt"
	"strings"

	"github.com/parleyhq/debate-api/models"
)

// Persona is a juror archetype. Jurors are assigned a persona by juror
// number so a resumed jury batch re-asks the same juror the same way.
type Persona struct {
	Name        string
	Description string
}

var personas = []Persona{
	{"The Pragmatist", "You care about real-world feasibility and second-order effects. Abstract principle matters less to you than what would actually happen."},
	{"The Ethicist", "You weigh moral principle above all. Consequences matter, but an argument that wins by abandoning principle loses you."},
	{"The Skeptic", "You distrust sweeping claims. You reward the side that concedes weaknesses honestly and punish unsupported assertions."},
	{"The Economist", "You reason in costs, incentives, and trade-offs. You reward arguments that quantify and punish ones that wish away scarcity."},
	{"The Historian", "You test every claim against precedent. Arguments that account for how similar ideas played out before earn your trust."},
	{"The Scientist", "You weigh evidence quality. Cited data beats anecdote, and you notice when a rebuttal actually engaged the opposing evidence."},
	{"The Everyman", "You are a layperson. You reward the side that was clearer and more persuasive to someone without domain expertise."},
}

// personaFor maps a 1-based juror number to a persona, cycling when the
// jury is larger than the archetype list.
func personaFor(jurorNumber int) Persona {
	if jurorNumber < 1 {
		jurorNumber = 1
	}
	return personas[(jurorNumber-1)%len(personas)]
}

func writeContext(b *strings.Builder, dc DebateContext) {
	fmt.Fprintf(b, "Motion: %s\n", dc.MotionTitle)
	if dc.MotionDescription != "" {
		fmt.Fprintf(b, "Context: %s\n", dc.MotionDescription)
	}
	b.WriteString("\n")
	if dc.ArgumentA != nil {
		fmt.Fprintf(b, "Opening argument, side A (for the motion):\n%s\n", dc.ArgumentA.Content)
		writeEvidence(b, dc.ArgumentA.Evidence)
		b.WriteString("\n")
	}
	if dc.ArgumentB != nil {
		fmt.Fprintf(b, "Opening argument, side B (against the motion):\n%s\n", dc.ArgumentB.Content)
		writeEvidence(b, dc.ArgumentB.Evidence)
		b.WriteString("\n")
	}
	for _, round := range dc.History {
		fmt.Fprintf(b, "Round %d, side A:\n%s\n\n", round.RoundNumber, round.StatementA)
		fmt.Fprintf(b, "Round %d, side B:\n%s\n\n", round.RoundNumber, round.StatementB)
	}
	for _, reb := range dc.Rebuttals {
		fmt.Fprintf(b, "Human rebuttal after round %d (side %s):\n%s\n\n", reb.RoundNumber, reb.Side, reb.Content)
	}
}

func writeEvidence(b *strings.Builder, evidence []models.Evidence) {
	for _, ev := range evidence {
		fmt.Fprintf(b, "- Evidence: %s", ev.Title)
		if ev.URL != "" {
			fmt.Fprintf(b, " (%s)", ev.URL)
		}
		if ev.Note != "" {
			fmt.Fprintf(b, " -- %s", ev.Note)
		}
		b.WriteString("\n")
	}
}

func advocatePrompt(req AdvocateRequest) string {
	var b strings.Builder
	stance := "for"
	if req.Side == models.SideB {
		stance = "against"
	}
	fmt.Fprintf(&b, "You are the AI advocate arguing %s the motion (side %s) in a structured debate. This is round %d of 3.\n\n", stance, req.Side, req.RoundNumber)
	writeContext(&b, req.Context)
	if req.OpponentStatement != "" {
		fmt.Fprintf(&b, "Your opponent's statement this round:\n%s\n\n", req.OpponentStatement)
		b.WriteString("Respond to it directly while advancing your own case.\n")
	}
	b.WriteString("\nWrite your statement for this round. Stay in character for your side, engage the strongest opposing points, and keep it under 300 words.\n")
	b.WriteString(`Respond with only a JSON object: {"statement": "<your statement>"}` + "\n")
	return b.String()
}

func jurorPrompt(req JurorRequest, persona Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are juror %d in a structured debate. Your persona: %s. %s\n\n", req.JurorNumber, persona.Name, persona.Description)
	writeContext(&b, req.Context)
	b.WriteString("\nThe debate is over. Vote for the side that argued better, judged through your persona. Do not vote on which position you personally prefer.\n")
	b.WriteString(`Respond with only a JSON object: {"vote": "A" or "B", "confidence": 1-10, "reasoning": "<2-3 sentences>"}` + "\n")
	return b.String()
}

func verdictPrompt(req VerdictRequest) string {
	var b strings.Builder
	b.WriteString("You are the presiding judge of a structured debate. Weigh the full transcript and the jury's votes, then deliver the final verdict.\n\n")
	writeContext(&b, req.Context)
	b.WriteString("\nJury votes:\n")
	for _, v := range req.Votes {
		fmt.Fprintf(&b, "- Juror %d (%s): %s, confidence %d. %s\n", v.JurorNumber, v.Persona, v.Vote, v.Confidence, v.Reasoning)
	}
	b.WriteString("\nThe jury informs but does not bind you. Score each side out of 100 on argument quality, evidence, and responsiveness to rebuttals, and declare a winner.\n")
	b.WriteString(`Respond with only a JSON object: {"winner": "A" or "B", "reasoning": "<one paragraph>", "scoreA": 0-100, "scoreB": 0-100}` + "\n")
	return b.String()
}
