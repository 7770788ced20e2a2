package interview

import (
	"context"
	"log/slog"
	"strings"

	"github.com/viva-labs/viva/pkg/core/reason"
)

// Intent is the classified purpose of a user's spoken turn.
type Intent string

const (
	// IntentAnswering means the user is answering the current question.
	IntentAnswering Intent = "answering_question"
	// IntentAsking means the user is asking the interviewer a question.
	IntentAsking Intent = "asking_question"
	// IntentClarification means the user wants the question clarified.
	IntentClarification Intent = "seeking_clarification"
	// IntentConfused means the user is confused, stuck, or needs help.
	IntentConfused Intent = "confused_or_stuck"
)

// Classifier maps a transcript plus conversation state to one of the four
// closed intents via a single reasoning call. It never fails: any error or
// unrecognized output maps to IntentAnswering, the safest default, because
// mis-classifying as "answering" simply evaluates whatever text arrived.
type Classifier struct {
	reasoner reason.Reasoner
	opts     reason.Options
	logger   *slog.Logger
}

// NewClassifier creates an intent classifier backed by the given reasoner.
func NewClassifier(r reason.Reasoner, opts reason.Options, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{reasoner: r, opts: opts, logger: logger}
}

// Classify determines the intent of one transcript.
func (c *Classifier) Classify(ctx context.Context, transcript string, conv *Context) Intent {
	prompt := buildIntentPrompt(transcript, conv)
	raw, err := c.reasoner.Complete(ctx, prompt, c.opts)
	if err != nil {
		c.logger.Error("intent classification failed", "error", err)
		return IntentAnswering
	}
	return parseIntent(raw)
}

// parseIntent keyword-matches the reasoner's free text against the four
// categories in a fixed priority order: asking > clarification > confused >
// answering. The sniffing is deliberately loose; ambiguity falls through to
// IntentAnswering rather than triggering a retry.
func parseIntent(raw string) Intent {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "asking"):
		return IntentAsking
	case strings.Contains(s, "clarification"):
		return IntentClarification
	case strings.Contains(s, "confused") || strings.Contains(s, "stuck"):
		return IntentConfused
	default:
		return IntentAnswering
	}
}
