package session

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/viva-labs/viva/pkg/core/interview"
)

func TestSession_IDUnique(t *testing.T) {
	a, b := New(30*time.Minute), New(30*time.Minute)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("ids not unique: %q vs %q", a.ID(), b.ID())
	}
}

func TestSession_RemainingNeverNegative(t *testing.T) {
	s := New(0)
	if got := s.Remaining(); got != 0 {
		t.Errorf("Remaining = %v, want 0", got)
	}
}

func TestSession_AppendAfterEnd(t *testing.T) {
	s := New(30 * time.Minute)
	s.End()
	if err := s.Append(Entry{QuestionText: "late"}); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("Append after End: err = %v, want ErrSessionEnded", err)
	}
	if err := s.AmendLast(func(e *Entry) {}); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("AmendLast after End: err = %v, want ErrSessionEnded", err)
	}
}

func TestSession_EndIdempotent(t *testing.T) {
	s := New(30 * time.Minute)
	if err := s.Append(Entry{
		QuestionText: "Explain channels.",
		Topic:        "programming",
		Answer:       "Typed conduits.",
		Evaluation:   &interview.Evaluation{Score: 8, Feedback: "good"},
	}); err != nil {
		t.Fatal(err)
	}

	first := s.End()
	second := s.End()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("End not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if first.EndedAt != second.EndedAt {
		t.Error("EndedAt changed between End calls")
	}
}

func TestSession_ElapsedFrozenAtEnd(t *testing.T) {
	s := New(30 * time.Minute)
	s.End()
	e1 := s.Elapsed()
	time.Sleep(5 * time.Millisecond)
	if e2 := s.Elapsed(); e2 != e1 {
		t.Errorf("Elapsed advanced after End: %v -> %v", e1, e2)
	}
}

func TestSummarize_Aggregates(t *testing.T) {
	s := New(30 * time.Minute)
	entries := []Entry{
		{
			QuestionText:     "q1",
			Topic:            "programming",
			Answer:           "a1",
			Evaluation:       &interview.Evaluation{Score: 9},
			FollowUpQuestion: "why?",
			FollowUpAnswer:   "because",
		},
		{
			QuestionText: "q2",
			Topic:        "programming",
			Answer:       "a2",
			Evaluation:   &interview.Evaluation{Score: 5},
		},
		{
			QuestionText:     "q3",
			Topic:            "databases",
			Answer:           "a3",
			Evaluation:       &interview.Evaluation{Score: 7},
			FollowUpQuestion: "and?",
		},
		// Unevaluated entry: counted as a question, excluded from scores.
		{QuestionText: "q4", Answer: "skipped"},
	}
	for _, e := range entries {
		if err := s.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	sum := s.End()
	if sum.Questions != 4 || sum.Evaluated != 3 {
		t.Errorf("questions/evaluated = %d/%d, want 4/3", sum.Questions, sum.Evaluated)
	}
	if sum.AverageScore != 7 {
		t.Errorf("average = %v, want 7", sum.AverageScore)
	}
	if sum.MinScore != 5 || sum.MaxScore != 9 {
		t.Errorf("min/max = %d/%d, want 5/9", sum.MinScore, sum.MaxScore)
	}
	if sum.TopicAverages["programming"] != 7 || sum.TopicAverages["databases"] != 7 {
		t.Errorf("topic averages = %v", sum.TopicAverages)
	}
	if sum.FollowUpsGenerated != 2 || sum.FollowUpsAnswered != 1 {
		t.Errorf("follow-ups = %d generated / %d answered, want 2/1", sum.FollowUpsGenerated, sum.FollowUpsAnswered)
	}
	if sum.Performance != "Good" {
		t.Errorf("performance = %q, want Good", sum.Performance)
	}
	if sum.SessionID != s.ID() {
		t.Errorf("summary session id = %q, want %q", sum.SessionID, s.ID())
	}
}

func TestPerformanceLevel(t *testing.T) {
	tests := []struct {
		avg       float64
		evaluated int
		want      string
	}{
		{0, 0, "Not Evaluated"},
		{9.2, 3, "Excellent"},
		{8, 3, "Excellent"},
		{6.5, 3, "Good"},
		{4, 3, "Average"},
		{3.9, 3, "Needs Improvement"},
	}
	for _, tt := range tests {
		if got := performanceLevel(tt.avg, tt.evaluated); got != tt.want {
			t.Errorf("performanceLevel(%v, %d) = %q, want %q", tt.avg, tt.evaluated, got, tt.want)
		}
	}
}

func TestSession_AmendLast(t *testing.T) {
	s := New(30 * time.Minute)
	if err := s.Append(Entry{QuestionText: "q1", Answer: "a1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AmendLast(func(e *Entry) {
		e.FollowUpQuestion = "why?"
		e.Evaluation = &interview.Evaluation{Score: 6}
	}); err != nil {
		t.Fatal(err)
	}
	got := s.Entries()
	if got[0].FollowUpQuestion != "why?" || got[0].Evaluation.Score != 6 {
		t.Errorf("entry not amended: %+v", got[0])
	}
}
