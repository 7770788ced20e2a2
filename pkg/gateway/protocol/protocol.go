// Package protocol defines the tagged websocket messages exchanged with
// interview clients and the strict decoder for inbound frames.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeError is a typed protocol error surfaced to the offending caller.
// Session state is never touched by a decode failure.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// Inbound messages.

// StartSession opens a new interview session.
type StartSession struct {
	Type            string   `json:"type"`
	Topics          []string `json:"topics,omitempty"`
	Difficulty      int      `json:"difficulty,omitempty"`
	DurationMinutes int      `json:"interview_duration,omitempty"`
}

// GetQuestion requests the next bank question for a session.
type GetQuestion struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// SubmitAudio carries one finished utterance as base64 PCM.
type SubmitAudio struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	AudioB64  string `json:"audio_data"`
}

// Audio decodes the base64 payload.
func (m SubmitAudio) Audio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.AudioB64)
	if err != nil {
		return nil, badRequest("audio_data is not valid base64", "audio_data")
	}
	return data, nil
}

// TextToSpeech requests standalone speech synthesis.
type TextToSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// GetTopics lists the question bank's topics and difficulty range.
type GetTopics struct {
	Type string `json:"type"`
}

// EndSession seals a session and returns its summary.
type EndSession struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// DecodeClientMessage parses one inbound frame into its typed message.
// Unknown tags produce a DecodeError, never a crash.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "start_session":
		var msg StartSession
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start_session", "")
		}
		if msg.Difficulty < 0 || msg.Difficulty > 5 {
			return nil, badRequest("start_session.difficulty must be in 1..5", "difficulty")
		}
		if msg.DurationMinutes < 0 {
			return nil, badRequest("start_session.interview_duration must be >= 0", "interview_duration")
		}
		return msg, nil
	case "get_question":
		var msg GetQuestion
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid get_question", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("get_question.session_id is required", "session_id")
		}
		return msg, nil
	case "submit_audio", "process_audio": // process_audio is the legacy alias
		var msg SubmitAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid submit_audio", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("submit_audio.session_id is required", "session_id")
		}
		if strings.TrimSpace(msg.AudioB64) == "" {
			return nil, badRequest("submit_audio.audio_data is required", "audio_data")
		}
		return msg, nil
	case "text_to_speech":
		var msg TextToSpeech
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid text_to_speech", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("text_to_speech.text is required", "text")
		}
		return msg, nil
	case "get_topics":
		var msg GetTopics
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid get_topics", "")
		}
		return msg, nil
	case "end_session":
		var msg EndSession
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid end_session", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("end_session.session_id is required", "session_id")
		}
		return msg, nil
	default:
		return nil, badRequest(fmt.Sprintf("unknown message type: %s", typ), "type")
	}
}

// Outbound messages.

// SessionStarted acknowledges a new session.
type SessionStarted struct {
	Type            string   `json:"type"`
	SessionID       string   `json:"session_id"`
	Topics          []string `json:"topics"`
	Difficulty      int      `json:"difficulty"`
	DurationMinutes int      `json:"interview_duration"`
}

// Question carries one bank question to the client.
type Question struct {
	Type             string  `json:"type"`
	QuestionID       string  `json:"question_id"`
	QuestionText     string  `json:"question_text"`
	QuestionTopic    string  `json:"question_topic"`
	Difficulty       int     `json:"question_difficulty"`
	QuestionNumber   int     `json:"question_number"`
	RemainingSeconds float64 `json:"remaining_time"`
	DurationMinutes  int     `json:"interview_duration"`
}

// Conversation is the engine's reply to one utterance.
type Conversation struct {
	Type         string `json:"type"`
	Transcript   string `json:"transcript"`
	ResponseText string `json:"response_text"`
	ResponseType string `json:"response_type"`
	AudioB64     string `json:"response_audio,omitempty"`
	AutoPlay     bool   `json:"auto_play"`
}

// Audio is a standalone synthesis result.
type Audio struct {
	Type     string `json:"type"`
	AudioB64 string `json:"audio_data"`
}

// Topics lists the bank's topics and difficulty range.
type Topics struct {
	Type            string   `json:"type"`
	Topics          []string `json:"topics"`
	DifficultyRange [2]int   `json:"difficulty_range"`
}

// InterviewComplete signals that the time budget ran out.
type InterviewComplete struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SessionEnded carries the sealed summary.
type SessionEnded struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Summary   any    `json:"summary"`
}

// Error is the outbound error envelope.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewError builds an outbound error message, copying the code from a
// DecodeError when one is given.
func NewError(err error) Error {
	out := Error{Type: "error", Message: "internal error"}
	if err == nil {
		return out
	}
	out.Message = err.Error()
	var de *DecodeError
	if errors.As(err, &de) {
		out.Code = de.Code
	}
	return out
}
