package interview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/viva-labs/viva/pkg/core/reason"
)

// reasonerFunc adapts a function to the reason.Reasoner interface.
type reasonerFunc func(prompt string) (string, error)

func (f reasonerFunc) Complete(_ context.Context, prompt string, _ reason.Options) (string, error) {
	return f(prompt)
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		raw  string
		want Intent
	}{
		{"answering_question", IntentAnswering},
		{"asking_question", IntentAsking},
		{"seeking_clarification", IntentClarification},
		{"confused_or_stuck", IntentConfused},
		{"  ASKING_QUESTION  ", IntentAsking},
		{"The user is asking the interviewer something", IntentAsking},
		{"they want clarification on the question", IntentClarification},
		{"the candidate sounds stuck", IntentConfused},
		{"the user appears confused here", IntentConfused},
		{"some unrelated rambling", IntentAnswering},
		{"", IntentAnswering},
		// Priority: asking wins over clarification and confusion mentions.
		{"asking for clarification while confused", IntentAsking},
		{"clarification needed, seems stuck too", IntentClarification},
	}
	for _, tt := range tests {
		if got := parseIntent(tt.raw); got != tt.want {
			t.Errorf("parseIntent(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestClassifier_FailureDefaultsToAnswering(t *testing.T) {
	c := NewClassifier(reasonerFunc(func(string) (string, error) {
		return "", errors.New("backend down")
	}), reason.Options{}, nil)

	conv := NewContext([]string{"programming"}, 30*time.Minute, 0)
	if got := c.Classify(context.Background(), "uh, polymorphism I think", conv); got != IntentAnswering {
		t.Errorf("intent = %v, want IntentAnswering on failure", got)
	}
}

func TestClassifier_UsesReasonerOutput(t *testing.T) {
	var gotPrompt string
	c := NewClassifier(reasonerFunc(func(prompt string) (string, error) {
		gotPrompt = prompt
		return "seeking_clarification", nil
	}), reason.Options{}, nil)

	conv := NewContext([]string{"databases"}, 30*time.Minute, 0)
	conv.CurrentQuestion = "Explain indexes."
	if got := c.Classify(context.Background(), "can you repeat that?", conv); got != IntentClarification {
		t.Errorf("intent = %v, want IntentClarification", got)
	}
	for _, want := range []string{"Explain indexes.", "can you repeat that?", "answering_question"} {
		if !strings.Contains(gotPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
