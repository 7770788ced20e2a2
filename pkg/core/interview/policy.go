package interview

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/viva-labs/viva/pkg/core/bank"
	"github.com/viva-labs/viva/pkg/core/reason"
)

// ActionKind identifies what kind of dialogue move the policy chose.
type ActionKind string

const (
	// ActionQuestion introduces a new top-level question.
	ActionQuestion ActionKind = "question"
	// ActionFollowUp probes deeper into the preceding answer.
	ActionFollowUp ActionKind = "follow_up"
	// ActionClarification rephrases the current question.
	ActionClarification ActionKind = "clarification"
	// ActionGuidance answers a meta-question or reassures a stuck candidate.
	ActionGuidance ActionKind = "guidance"
)

// Action is the policy's chosen next utterance.
type Action struct {
	Kind  ActionKind
	Text  string
	Speak bool
}

// Turn is the full outcome of processing one utterance.
type Turn struct {
	Action     Action
	Intent     Intent
	Evaluation *Evaluation
}

// endBuffer is the remaining-time floor at which the interview is terminal.
const endBuffer = time.Minute

// PolicyConfig assembles a dialogue policy.
type PolicyConfig struct {
	Reasoner     reason.Reasoner
	Topics       []string
	Duration     time.Duration
	MaxFollowUps int             // <= 0 selects the default of 3
	Examples     []bank.Question // style references for question generation
	Remaining    func() time.Duration
	GenOptions   reason.Options // generation parameters for free-text calls
	EvalOptions  reason.Options // generation parameters for evaluation calls
	Logger       *slog.Logger
}

// Policy is the per-session dialogue state machine. Every external reasoning
// call it makes is a boundary: failures map to a conservative branch or a
// canned utterance, never an error to the caller. Not safe for concurrent
// use; one caller drives one policy sequentially.
type Policy struct {
	reasoner   reason.Reasoner
	classifier *Classifier
	evaluator  *Evaluator
	conv       *Context
	examples   []bank.Question
	remaining  func() time.Duration
	genOpts    reason.Options
	logger     *slog.Logger

	// Set when the current question came from the bank; used to evaluate
	// against its reference answer.
	currentMeta *bank.Question
}

// NewPolicy creates a dialogue policy for one session.
func NewPolicy(cfg PolicyConfig) *Policy {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conv := NewContext(cfg.Topics, cfg.Duration, cfg.MaxFollowUps)
	remaining := cfg.Remaining
	if remaining == nil {
		start := time.Now()
		remaining = func() time.Duration {
			left := cfg.Duration - time.Since(start)
			if left < 0 {
				return 0
			}
			return left
		}
	}
	return &Policy{
		reasoner:   cfg.Reasoner,
		classifier: NewClassifier(cfg.Reasoner, cfg.GenOptions, logger),
		evaluator:  NewEvaluator(cfg.Reasoner, cfg.EvalOptions, logger),
		conv:       conv,
		examples:   cfg.Examples,
		remaining:  remaining,
		genOpts:    cfg.GenOptions,
		logger:     logger,
	}
}

// Context exposes the conversation state for summaries and persistence.
func (p *Policy) Context() *Context {
	return p.conv
}

// ShouldEnd reports whether the interview is terminal: remaining time at or
// below the one-minute buffer. Checked before processing each utterance,
// never mid-utterance.
func (p *Policy) ShouldEnd() bool {
	return p.remaining() <= endBuffer
}

// SetQuestion installs a bank question as the current top-level question.
// The follow-up counter resets, matching the invariant that it is zeroed on
// every advance to a new top-level question.
func (p *Policy) SetQuestion(q bank.Question) {
	p.conv.CurrentQuestion = q.Text
	p.conv.AwaitingAnswer = true
	p.conv.FollowUpCount = 0
	p.conv.QuestionsAsked++
	p.conv.MarkTopicCovered(q.Topic)
	p.currentMeta = &q
}

// Handle is the single entry point: it classifies the transcript's intent,
// dispatches to the matching branch, records the exchange, and returns the
// chosen action. It never fails; every branch has a fallback utterance.
func (p *Policy) Handle(ctx context.Context, transcript string) Turn {
	if strings.TrimSpace(transcript) == "" {
		// Nothing usable arrived; ask the candidate to repeat without
		// touching question or follow-up state.
		return Turn{
			Action: Action{Kind: ActionGuidance, Text: fallbackProcessing, Speak: true},
			Intent: IntentAnswering,
		}
	}

	intent := p.classifier.Classify(ctx, transcript, p.conv)
	p.logger.Info("intent classified", "intent", intent, "transcript", truncate(transcript, 50))

	var turn Turn
	switch intent {
	case IntentAsking:
		turn = p.handleUserQuestion(ctx, transcript)
	case IntentClarification:
		turn = p.handleClarification(ctx, transcript)
	case IntentConfused:
		turn = p.handleConfusion(ctx, transcript)
	default:
		turn = p.handleAnswer(ctx, transcript)
	}
	turn.Intent = intent

	p.conv.AddExchange(transcript, turn.Action.Text, intent)
	return turn
}

func (p *Policy) handleAnswer(ctx context.Context, transcript string) Turn {
	if p.conv.CurrentQuestion == "" {
		return Turn{Action: p.firstQuestion(ctx)}
	}

	eval := p.evaluate(ctx, transcript)

	if p.decideFollowUp(ctx, eval) && p.conv.FollowUpCount < p.conv.MaxFollowUps {
		return Turn{Action: p.generateFollowUp(ctx, transcript, eval), Evaluation: eval}
	}

	p.conv.FollowUpCount = 0
	return Turn{Action: p.nextQuestion(ctx), Evaluation: eval}
}

func (p *Policy) evaluate(ctx context.Context, answer string) *Evaluation {
	expected, topic, difficulty := "", "general", 3
	if p.currentMeta != nil {
		expected = p.currentMeta.Answer
		topic = p.currentMeta.Topic
		difficulty = p.currentMeta.Difficulty
	}
	return p.evaluator.Evaluate(ctx, p.conv.CurrentQuestion, expected, answer, topic, difficulty)
}

// decideFollowUp asks the reasoner to choose between probing deeper and
// moving on. Failure or ambiguity takes the conservative branch: move on.
func (p *Policy) decideFollowUp(ctx context.Context, eval *Evaluation) bool {
	prompt := buildDecisionPrompt(eval, p.conv, p.remaining())
	raw, err := p.reasoner.Complete(ctx, prompt, p.genOpts)
	if err != nil {
		p.logger.Error("follow-up decision failed", "error", err)
		return false
	}
	return strings.Contains(strings.ToLower(strings.TrimSpace(raw)), "follow")
}

func (p *Policy) generateFollowUp(ctx context.Context, originalAnswer string, eval *Evaluation) Action {
	p.conv.FollowUpCount++

	text, err := p.reasoner.Complete(ctx, buildFollowUpPrompt(originalAnswer, eval, p.conv), p.genOpts)
	if err != nil {
		p.logger.Error("follow-up generation failed", "error", err)
		text = fallbackFollowUp
	}
	return Action{Kind: ActionFollowUp, Text: strings.TrimSpace(text), Speak: true}
}

func (p *Policy) firstQuestion(ctx context.Context) Action {
	text, err := p.reasoner.Complete(ctx, buildFirstQuestionPrompt(p.conv, p.examples), p.genOpts)
	if err != nil {
		p.logger.Error("opening question generation failed", "error", err)
		text = fallbackFirstQuestion
	}
	return p.installQuestion(text)
}

func (p *Policy) nextQuestion(ctx context.Context) Action {
	text, err := p.reasoner.Complete(ctx, buildNextQuestionPrompt(p.conv, p.examples, p.remaining()), p.genOpts)
	if err != nil {
		p.logger.Error("next question generation failed", "error", err)
		text = fallbackNextQuestion
	}
	return p.installQuestion(text)
}

func (p *Policy) installQuestion(text string) Action {
	text = strings.TrimSpace(text)
	p.conv.CurrentQuestion = text
	p.conv.AwaitingAnswer = true
	p.conv.QuestionsAsked++
	p.conv.MarkTopicCovered(p.conv.LeastCoveredTopic())
	p.currentMeta = nil
	return Action{Kind: ActionQuestion, Text: text, Speak: true}
}

func (p *Policy) handleUserQuestion(ctx context.Context, userQuestion string) Turn {
	text, err := p.reasoner.Complete(ctx, buildGuidancePrompt(userQuestion, p.conv, p.remaining()), p.genOpts)
	if err != nil {
		p.logger.Error("guidance generation failed", "error", err)
		text = fallbackGuidance
	}
	return Turn{Action: Action{Kind: ActionGuidance, Text: strings.TrimSpace(text), Speak: true}}
}

func (p *Policy) handleClarification(ctx context.Context, transcript string) Turn {
	if p.conv.CurrentQuestion == "" {
		return Turn{Action: p.firstQuestion(ctx)}
	}
	text, err := p.reasoner.Complete(ctx, buildClarificationPrompt(transcript, p.conv), p.genOpts)
	if err != nil {
		p.logger.Error("clarification generation failed", "error", err)
		text = fallbackClarification(p.conv.CurrentQuestion)
	}
	return Turn{Action: Action{Kind: ActionClarification, Text: strings.TrimSpace(text), Speak: true}}
}

func (p *Policy) handleConfusion(ctx context.Context, transcript string) Turn {
	text, err := p.reasoner.Complete(ctx, buildConfusionPrompt(transcript, p.conv), p.genOpts)
	if err != nil {
		p.logger.Error("confusion guidance failed", "error", err)
		text = fallbackConfusion
	}
	return Turn{Action: Action{Kind: ActionGuidance, Text: strings.TrimSpace(text), Speak: true}}
}
