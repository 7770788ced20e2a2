package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionEnded is returned when appending to a sealed session.
var ErrSessionEnded = errors.New("session: already ended")

// Session is one timed interview. Elapsed time is measured with time.Since
// against the creation instant, which carries Go's monotonic clock reading,
// so system clock changes never distort the budget. A session is sealed by
// End: the summary is computed once and every later End returns the same
// value.
type Session struct {
	id        string
	startedAt time.Time
	duration  time.Duration

	mu      sync.Mutex
	entries []Entry
	ended   bool
	endedAt time.Time
	summary Summary
}

// New starts a session with the given wall-clock budget.
func New(duration time.Duration) *Session {
	return &Session{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		duration:  duration,
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Duration returns the configured budget.
func (s *Session) Duration() time.Duration {
	return s.duration
}

// Elapsed returns how long the session has been running. Frozen at End.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return s.endedAt.Sub(s.startedAt)
	}
	return time.Since(s.startedAt)
}

// Remaining returns the unspent budget, never negative.
func (s *Session) Remaining() time.Duration {
	left := s.duration - s.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// Ended reports whether the session has been sealed.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Append records one question entry. Fails with ErrSessionEnded once the
// session is sealed; a frozen record is never mutated.
func (s *Session) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if e.AskedAt.IsZero() {
		e.AskedAt = time.Now()
	}
	s.entries = append(s.entries, e)
	return nil
}

// AmendLast replaces the most recent entry, for attaching a follow-up answer
// or evaluation that arrives after the entry was first recorded.
func (s *Session) AmendLast(fn func(*Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if len(s.entries) == 0 {
		return nil
	}
	fn(&s.entries[len(s.entries)-1])
	return nil
}

// Entries returns a copy of the recorded entries.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// End seals the session and returns its summary. Idempotent: ending an
// already-ended session returns the previously computed summary without
// recomputation.
func (s *Session) End() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return s.summary
	}
	s.ended = true
	s.endedAt = time.Now()
	s.summary = summarize(s.id, s.entries, s.startedAt, s.endedAt, s.endedAt.Sub(s.startedAt))
	return s.summary
}
