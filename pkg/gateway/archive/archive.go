// Package archive persists sealed interview sessions to SQLite. Archival is
// best effort: callers log failures and continue, a session never fails to
// end because the archive is unavailable.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viva-labs/viva/pkg/core/session"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the archive database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interview_sessions (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		duration_seconds REAL NOT NULL,
		questions INTEGER NOT NULL,
		evaluated INTEGER NOT NULL,
		average_score REAL NOT NULL,
		performance TEXT NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interview_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question_id TEXT NOT NULL DEFAULT '',
		question_text TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL DEFAULT '',
		follow_up_question TEXT NOT NULL DEFAULT '',
		follow_up_answer TEXT NOT NULL DEFAULT '',
		score REAL,
		feedback TEXT NOT NULL DEFAULT '',
		asked_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES interview_sessions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSession stores one sealed session and its entries in a single
// transaction.
func (s *Store) SaveSession(sum session.Summary, entries []session.Entry) error {
	summaryJSON, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO interview_sessions (id, started_at, ended_at, duration_seconds, questions, evaluated, average_score, performance, summary_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID, sum.StartedAt, sum.EndedAt, sum.Duration.Seconds(),
		sum.Questions, sum.Evaluated, sum.AverageScore, sum.Performance, string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, e := range entries {
		var score any
		var feedback string
		if e.Evaluation != nil {
			score = e.Evaluation.Score
			feedback = e.Evaluation.Feedback
		}
		_, err := tx.Exec(
			`INSERT INTO interview_entries (session_id, question_id, question_text, topic, answer, follow_up_question, follow_up_answer, score, feedback, asked_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.SessionID, e.QuestionID, e.QuestionText, e.Topic, e.Answer,
			e.FollowUpQuestion, e.FollowUpAnswer, score, feedback, e.AskedAt,
		)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	return tx.Commit()
}

// ArchivedSession is one stored session header.
type ArchivedSession struct {
	ID           string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
	Questions    int
	Evaluated    int
	AverageScore float64
	Performance  string
}

// ListSessions returns stored session headers, most recent first.
func (s *Store) ListSessions() ([]ArchivedSession, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, ended_at, duration_seconds, questions, evaluated, average_score, performance
		 FROM interview_sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []ArchivedSession
	for rows.Next() {
		var a ArchivedSession
		var seconds float64
		if err := rows.Scan(&a.ID, &a.StartedAt, &a.EndedAt, &seconds, &a.Questions, &a.Evaluated, &a.AverageScore, &a.Performance); err != nil {
			return nil, err
		}
		a.Duration = time.Duration(seconds * float64(time.Second))
		sessions = append(sessions, a)
	}
	return sessions, rows.Err()
}

// GetSummary returns the stored summary for a session, or nil when the
// session was never archived.
func (s *Store) GetSummary(sessionID string) (*session.Summary, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT summary_json FROM interview_sessions WHERE id = ?`, sessionID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sum session.Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &sum, nil
}

// EntryCount returns the number of archived entries for a session.
func (s *Store) EntryCount(sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM interview_entries WHERE session_id = ?`, sessionID,
	).Scan(&count)
	return count, err
}
