// Package session owns the per-interview lifecycle: a monotonic clock over a
// configured duration, the record of question/answer entries, and the sealed
// end-of-session summary.
package session

import (
	"time"

	"github.com/viva-labs/viva/pkg/core/interview"
)

// Entry records one question asked during the session, the answer it
// received, and any follow-up exchange it spawned.
type Entry struct {
	QuestionID       string                `json:"question_id,omitempty"`
	QuestionText     string                `json:"question_text"`
	Topic            string                `json:"topic,omitempty"`
	Answer           string                `json:"answer"`
	FollowUpQuestion string                `json:"follow_up_question,omitempty"`
	FollowUpAnswer   string                `json:"follow_up_answer,omitempty"`
	Evaluation       *interview.Evaluation `json:"evaluation,omitempty"`
	Latency          time.Duration         `json:"latency_ns,omitempty"`
	AskedAt          time.Time             `json:"asked_at"`
}

// Summary is the immutable aggregate computed when a session ends.
type Summary struct {
	SessionID          string             `json:"session_id"`
	Questions          int                `json:"questions"`
	Evaluated          int                `json:"evaluated"`
	AverageScore       float64            `json:"average_score"`
	MinScore           int                `json:"min_score"`
	MaxScore           int                `json:"max_score"`
	TopicAverages      map[string]float64 `json:"topic_averages,omitempty"`
	FollowUpsGenerated int                `json:"follow_ups_generated"`
	FollowUpsAnswered  int                `json:"follow_ups_answered"`
	Duration           time.Duration      `json:"duration_ns"`
	Performance        string             `json:"performance"`
	StartedAt          time.Time          `json:"started_at"`
	EndedAt            time.Time          `json:"ended_at"`
}

// summarize aggregates scores over evaluated entries only; unevaluated
// entries count toward Questions but never skew the score statistics.
func summarize(id string, entries []Entry, startedAt, endedAt time.Time, elapsed time.Duration) Summary {
	s := Summary{
		SessionID: id,
		Questions: len(entries),
		Duration:  elapsed,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	}

	var total int
	topicTotals := make(map[string]int)
	topicCounts := make(map[string]int)

	for _, e := range entries {
		if e.FollowUpQuestion != "" {
			s.FollowUpsGenerated++
			if e.FollowUpAnswer != "" {
				s.FollowUpsAnswered++
			}
		}
		if e.Evaluation == nil {
			continue
		}
		score := e.Evaluation.Score
		s.Evaluated++
		total += score
		if s.Evaluated == 1 || score < s.MinScore {
			s.MinScore = score
		}
		if score > s.MaxScore {
			s.MaxScore = score
		}
		if e.Topic != "" {
			topicTotals[e.Topic] += score
			topicCounts[e.Topic]++
		}
	}

	if s.Evaluated > 0 {
		s.AverageScore = float64(total) / float64(s.Evaluated)
	}
	if len(topicCounts) > 0 {
		s.TopicAverages = make(map[string]float64, len(topicCounts))
		for topic, n := range topicCounts {
			s.TopicAverages[topic] = float64(topicTotals[topic]) / float64(n)
		}
	}
	s.Performance = performanceLevel(s.AverageScore, s.Evaluated)
	return s
}

func performanceLevel(avg float64, evaluated int) string {
	switch {
	case evaluated == 0:
		return "Not Evaluated"
	case avg >= 8:
		return "Excellent"
	case avg >= 6:
		return "Good"
	case avg >= 4:
		return "Average"
	default:
		return "Needs Improvement"
	}
}
