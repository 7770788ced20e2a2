// Package interview implements the per-session conversation engine: intent
// classification, answer evaluation, and the dialogue policy that decides
// what the interviewer says next.
package interview

import (
	"encoding/json"
	"time"
)

// Exchange is one user/system turn pair in the conversation history.
type Exchange struct {
	Timestamp      time.Time `json:"timestamp"`
	UserText       string    `json:"user_input"`
	SystemText     string    `json:"ai_response"`
	Intent         Intent    `json:"intent,omitempty"`
	QuestionNumber int       `json:"question_number"`
}

// Context is the mutable conversation state for one session. It is owned
// exclusively by one Policy and driven by a single caller, so it carries no
// locking.
type Context struct {
	CurrentQuestion string
	AwaitingAnswer  bool
	FollowUpCount   int
	MaxFollowUps    int
	History         []Exchange
	TopicsCovered   map[string]int
	Duration        time.Duration
	QuestionsAsked  int
}

// NewContext creates conversation state for a session covering the given
// topics. maxFollowUps <= 0 selects the default budget of 3.
func NewContext(topics []string, duration time.Duration, maxFollowUps int) *Context {
	if maxFollowUps <= 0 {
		maxFollowUps = 3
	}
	covered := make(map[string]int, len(topics))
	for _, t := range topics {
		covered[t] = 0
	}
	return &Context{
		AwaitingAnswer: true,
		MaxFollowUps:   maxFollowUps,
		TopicsCovered:  covered,
		Duration:       duration,
	}
}

// AddExchange appends one turn pair to the history.
func (c *Context) AddExchange(userText, systemText string, intent Intent) {
	c.History = append(c.History, Exchange{
		Timestamp:      time.Now(),
		UserText:       userText,
		SystemText:     systemText,
		Intent:         intent,
		QuestionNumber: c.QuestionsAsked,
	})
}

// Topics returns the topics this session covers, in map order.
func (c *Context) Topics() []string {
	out := make([]string, 0, len(c.TopicsCovered))
	for t := range c.TopicsCovered {
		out = append(out, t)
	}
	return out
}

// LeastCoveredTopic returns the topic with the lowest coverage count, or ""
// when no topics are configured.
func (c *Context) LeastCoveredTopic() string {
	best := ""
	bestCount := -1
	for t, n := range c.TopicsCovered {
		if bestCount == -1 || n < bestCount || (n == bestCount && t < best) {
			best, bestCount = t, n
		}
	}
	return best
}

// MarkTopicCovered increments the coverage count for a topic.
func (c *Context) MarkTopicCovered(topic string) {
	if topic == "" {
		return
	}
	if c.TopicsCovered == nil {
		c.TopicsCovered = make(map[string]int)
	}
	c.TopicsCovered[topic]++
}

// Summary renders the recent conversation state as JSON for inclusion in
// reasoning prompts.
func (c *Context) Summary(remaining time.Duration) string {
	recent := c.History
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	summary := struct {
		QuestionsAsked  int        `json:"questions_asked"`
		FollowUpCount   int        `json:"follow_up_count"`
		RemainingMin    float64    `json:"remaining_time"`
		Recent          []Exchange `json:"recent_conversation"`
		TopicsCovered   []string   `json:"topics_covered"`
		CurrentQuestion string     `json:"current_question"`
	}{
		QuestionsAsked:  c.QuestionsAsked,
		FollowUpCount:   c.FollowUpCount,
		RemainingMin:    remaining.Minutes(),
		Recent:          recent,
		TopicsCovered:   c.Topics(),
		CurrentQuestion: c.CurrentQuestion,
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
