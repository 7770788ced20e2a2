package interview

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/viva-labs/viva/pkg/core/reason"
)

// Evaluation is the structured assessment of one answer.
type Evaluation struct {
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions string   `json:"suggestions,omitempty"`
	FollowUp    string   `json:"follow_up,omitempty"`
	Strengths   []string `json:"strengths,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
}

// Evaluator scores answers via a reasoning call that is asked for JSON but
// never trusted to return it: malformed output is converted into a
// best-effort evaluation synthesized from the raw text, and a failed call
// into a neutral placeholder. Evaluate therefore never returns an error.
type Evaluator struct {
	reasoner reason.Reasoner
	opts     reason.Options
	logger   *slog.Logger
}

// NewEvaluator creates an answer evaluator backed by the given reasoner.
func NewEvaluator(r reason.Reasoner, opts reason.Options, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{reasoner: r, opts: opts, logger: logger}
}

// Evaluate scores the user's answer to the given question. expectedAnswer
// may be empty when the question was generated rather than drawn from the
// bank; the reasoner then judges quality on its own.
func (e *Evaluator) Evaluate(ctx context.Context, question, expectedAnswer, answer, topic string, difficulty int) *Evaluation {
	prompt := buildEvaluationPrompt(question, expectedAnswer, answer, topic, difficulty)
	raw, err := e.reasoner.Complete(ctx, prompt, e.opts)
	if err != nil {
		e.logger.Error("answer evaluation failed", "error", err)
		return &Evaluation{Score: 5, Feedback: "Answer received"}
	}

	var result Evaluation
	if jsonErr := json.Unmarshal([]byte(stripCodeFence(raw)), &result); jsonErr != nil {
		e.logger.Warn("evaluation response was not valid JSON", "error", jsonErr)
		return fallbackEvaluation(answer, raw)
	}
	if result.Score < 1 {
		result.Score = 1
	}
	if result.Score > 10 {
		result.Score = 10
	}
	return &result
}

// fallbackEvaluation synthesizes a best-effort result from the raw reasoner
// text when JSON parsing fails. The score is a rough word-count heuristic
// clamped to [1, 10].
func fallbackEvaluation(answer, raw string) *Evaluation {
	score := len(strings.Fields(answer)) / 5
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return &Evaluation{
		Score:       score,
		Feedback:    "Evaluation completed. " + truncate(raw, 200) + "...",
		Suggestions: "Please provide more detailed explanations and examples.",
		Strengths:   []string{"Provided an answer"},
		Weaknesses:  []string{"Could be more detailed"},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// stripCodeFence removes a surrounding markdown code fence, which chat models
// frequently wrap JSON in despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
