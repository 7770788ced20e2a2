// Package bank holds the static question collection shared across interview
// sessions. The bank is validated once at load time and read-only afterwards,
// so concurrent sessions can consult it without synchronization.
package bank

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Question is a single interview prompt. Immutable once loaded.
type Question struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Topic      string   `json:"topic"`
	Difficulty int      `json:"difficulty"`
	Answer     string   `json:"expected_answer"`
	FollowUps  []string `json:"follow_up_questions,omitempty"`
}

// Bank is a validated, read-only collection of questions.
type Bank struct {
	questions []Question
	byID      map[string]int
}

// New builds a bank from the given questions, rejecting schema violations up
// front: duplicate ids, empty text or reference answer, difficulty outside
// 1..5. An empty bank is also rejected.
func New(questions []Question) (*Bank, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("bank: no questions")
	}

	byID := make(map[string]int, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("bank: question %d has no id", i)
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("bank: duplicate question id %q", q.ID)
		}
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("bank: question %q has empty text", q.ID)
		}
		if strings.TrimSpace(q.Answer) == "" {
			return nil, fmt.Errorf("bank: question %q has empty expected answer", q.ID)
		}
		if q.Difficulty < 1 || q.Difficulty > 5 {
			return nil, fmt.Errorf("bank: question %q has difficulty %d, want 1..5", q.ID, q.Difficulty)
		}
		byID[q.ID] = i
	}

	return &Bank{questions: questions, byID: byID}, nil
}

// Load reads a question bank from a JSON file of the form
// {"questions": [...]} and validates it.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bank: read %s: %w", path, err)
	}

	var file struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("bank: parse %s: %w", path, err)
	}
	return New(file.Questions)
}

// Len reports the number of questions.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Get returns the question with the given id.
func (b *Bank) Get(id string) (Question, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Question{}, false
	}
	return b.questions[i], true
}

// Topics returns the sorted set of distinct topics.
func (b *Bank) Topics() []string {
	seen := make(map[string]bool)
	var topics []string
	for _, q := range b.questions {
		if !seen[q.Topic] {
			seen[q.Topic] = true
			topics = append(topics, q.Topic)
		}
	}
	sort.Strings(topics)
	return topics
}

// DifficultyRange returns the lowest and highest difficulty present.
func (b *Bank) DifficultyRange() (min, max int) {
	min, max = b.questions[0].Difficulty, b.questions[0].Difficulty
	for _, q := range b.questions[1:] {
		if q.Difficulty < min {
			min = q.Difficulty
		}
		if q.Difficulty > max {
			max = q.Difficulty
		}
	}
	return min, max
}

// Filter returns the questions matching the given criteria. An empty topics
// slice matches every topic; difficulty 0 matches every difficulty.
func (b *Bank) Filter(topics []string, difficulty int) []Question {
	topicSet := make(map[string]bool, len(topics))
	for _, t := range topics {
		topicSet[t] = true
	}

	var out []Question
	for _, q := range b.questions {
		if len(topicSet) > 0 && !topicSet[q.Topic] {
			continue
		}
		if difficulty != 0 && q.Difficulty != difficulty {
			continue
		}
		out = append(out, q)
	}
	return out
}
