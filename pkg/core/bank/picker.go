package bank

import (
	"errors"
	"math/rand"
)

// ErrNoQuestions is returned when no question matches the picker's filters.
var ErrNoQuestions = errors.New("bank: no questions available matching criteria")

// Picker selects questions for one session, never repeating an id. It is not
// safe for concurrent use; each session owns exactly one picker and drives it
// sequentially.
type Picker struct {
	bank       *Bank
	topics     []string
	difficulty int
	used       map[string]bool
	rng        *rand.Rand
}

// NewPicker creates a picker over the bank constrained to the given topics
// and difficulty. Empty topics or zero difficulty leave that dimension
// unconstrained. A nil rng selects the first available question, which keeps
// tests deterministic.
func NewPicker(b *Bank, topics []string, difficulty int, rng *rand.Rand) *Picker {
	return &Picker{
		bank:       b,
		topics:     topics,
		difficulty: difficulty,
		used:       make(map[string]bool),
		rng:        rng,
	}
}

// Next returns an unused question matching the filters and marks it used.
// Returns ErrNoQuestions when the filtered pool is exhausted or empty.
func (p *Picker) Next() (Question, error) {
	pool := p.available()
	if len(pool) == 0 {
		return Question{}, ErrNoQuestions
	}

	q := pool[0]
	if p.rng != nil {
		q = pool[p.rng.Intn(len(pool))]
	}
	p.used[q.ID] = true
	return q, nil
}

// NextForTopic behaves like Next but restricts the pool to one topic. Falls
// back to the full filtered pool when that topic is exhausted.
func (p *Picker) NextForTopic(topic string) (Question, error) {
	pool := p.available()
	var scoped []Question
	for _, q := range pool {
		if q.Topic == topic {
			scoped = append(scoped, q)
		}
	}
	if len(scoped) == 0 {
		return p.Next()
	}

	q := scoped[0]
	if p.rng != nil {
		q = scoped[p.rng.Intn(len(scoped))]
	}
	p.used[q.ID] = true
	return q, nil
}

// Used reports how many questions have been handed out.
func (p *Picker) Used() int {
	return len(p.used)
}

// Remaining reports how many matching questions are still unused.
func (p *Picker) Remaining() int {
	return len(p.available())
}

// Reset forgets which questions were handed out.
func (p *Picker) Reset() {
	p.used = make(map[string]bool)
}

func (p *Picker) available() []Question {
	var out []Question
	for _, q := range p.bank.Filter(p.topics, p.difficulty) {
		if !p.used[q.ID] {
			out = append(out, q)
		}
	}
	return out
}
