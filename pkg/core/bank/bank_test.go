package bank

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func validQuestions() []Question {
	return []Question{
		{ID: "q1", Text: "What is a pointer?", Topic: "programming", Difficulty: 2, Answer: "An address."},
		{ID: "q2", Text: "Explain indexes.", Topic: "databases", Difficulty: 3, Answer: "A lookup structure.", FollowUps: []string{"When do they hurt?"}},
		{ID: "q3", Text: "What is a goroutine?", Topic: "programming", Difficulty: 3, Answer: "A lightweight thread."},
	}
}

func TestNew_Valid(t *testing.T) {
	b, err := New(validQuestions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.Len() != 3 {
		t.Errorf("Len = %d, want 3", b.Len())
	}
	q, ok := b.Get("q2")
	if !ok || q.Topic != "databases" {
		t.Errorf("Get(q2) = %+v, %v", q, ok)
	}
}

func TestNew_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Question) []Question
	}{
		{"empty bank", func(qs []Question) []Question { return nil }},
		{"duplicate id", func(qs []Question) []Question { qs[1].ID = "q1"; return qs }},
		{"empty text", func(qs []Question) []Question { qs[0].Text = "  "; return qs }},
		{"empty answer", func(qs []Question) []Question { qs[2].Answer = ""; return qs }},
		{"difficulty too low", func(qs []Question) []Question { qs[0].Difficulty = 0; return qs }},
		{"difficulty too high", func(qs []Question) []Question { qs[0].Difficulty = 6; return qs }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.mutate(validQuestions())); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	content := `{
		"questions": [
			{"id": "q1", "text": "What is TCP?", "topic": "networking", "difficulty": 2, "expected_answer": "A transport protocol."}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTopicsAndDifficultyRange(t *testing.T) {
	b, err := New(validQuestions())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := b.Topics(), []string{"databases", "programming"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Topics = %v, want %v", got, want)
	}
	min, max := b.DifficultyRange()
	if min != 2 || max != 3 {
		t.Errorf("DifficultyRange = %d..%d, want 2..3", min, max)
	}
}

func TestFilter(t *testing.T) {
	b, err := New(validQuestions())
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Filter([]string{"programming"}, 3); len(got) != 1 || got[0].ID != "q3" {
		t.Errorf("Filter(programming, 3) = %v", got)
	}
	if got := b.Filter(nil, 0); len(got) != 3 {
		t.Errorf("unconstrained Filter returned %d questions", len(got))
	}
	if got := b.Filter([]string{"networking"}, 0); len(got) != 0 {
		t.Errorf("Filter(networking) = %v, want empty", got)
	}
}

func TestPicker_NeverRepeats(t *testing.T) {
	b, err := New(validQuestions())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPicker(b, []string{"programming"}, 0, nil)

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		q, err := p.Next()
		if err != nil {
			t.Fatalf("Next #%d: %v", i+1, err)
		}
		if seen[q.ID] {
			t.Fatalf("question %s handed out twice", q.ID)
		}
		seen[q.ID] = true
	}
	if _, err := p.Next(); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("exhausted pool: err = %v, want ErrNoQuestions", err)
	}
}

func TestPicker_NoMatch(t *testing.T) {
	b, err := New(validQuestions())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPicker(b, []string{"networking"}, 0, nil)
	if _, err := p.Next(); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestPicker_TopicScoping(t *testing.T) {
	b, err := New(validQuestions())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPicker(b, nil, 0, nil)

	q, err := p.NextForTopic("databases")
	if err != nil {
		t.Fatalf("NextForTopic: %v", err)
	}
	if q.Topic != "databases" {
		t.Errorf("topic = %q, want databases", q.Topic)
	}

	// Databases is exhausted; falls back to the remaining pool.
	q, err = p.NextForTopic("databases")
	if err != nil {
		t.Fatalf("fallback NextForTopic: %v", err)
	}
	if q.Topic != "programming" {
		t.Errorf("fallback topic = %q, want programming", q.Topic)
	}
}

func TestPicker_Reset(t *testing.T) {
	b, err := New(validQuestions())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPicker(b, nil, 3, nil)
	if _, err := p.Next(); err != nil {
		t.Fatal(err)
	}
	if p.Used() != 1 {
		t.Errorf("Used = %d, want 1", p.Used())
	}
	p.Reset()
	if p.Used() != 0 || p.Remaining() != 2 {
		t.Errorf("after reset: Used = %d, Remaining = %d", p.Used(), p.Remaining())
	}
}
