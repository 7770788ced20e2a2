// Package server exposes the interview engine over a websocket endpoint.
// Each connection runs a sequential read loop: one inbound frame is fully
// handled before the next is read, so per-session ordering needs no extra
// coordination beyond the registry and the per-interview turn mutex.
package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/viva-labs/viva/pkg/core/bank"
	"github.com/viva-labs/viva/pkg/core/interview"
	"github.com/viva-labs/viva/pkg/core/reason"
	"github.com/viva-labs/viva/pkg/core/session"
	"github.com/viva-labs/viva/pkg/core/voice/stt"
	"github.com/viva-labs/viva/pkg/core/voice/tts"
	"github.com/viva-labs/viva/pkg/gateway/archive"
	"github.com/viva-labs/viva/pkg/gateway/config"
	"github.com/viva-labs/viva/pkg/gateway/metrics"
	"github.com/viva-labs/viva/pkg/gateway/protocol"
	"github.com/viva-labs/viva/pkg/gateway/sessions"
)

// Spoken when the utterance produced no usable transcript. The session state
// is left untouched so the candidate can simply try again.
const noSpeechReply = "I didn't catch that. Could you please repeat your answer?"

// Spoken when the time budget has run out and a turn arrives anyway.
const timeUpMessage = "We're out of time. Thank you for the interview! Your responses have been recorded."

// Handler serves /ws interview connections.
type Handler struct {
	Config   config.Config
	Bank     *bank.Bank
	STT      stt.Provider
	TTS      tts.Provider
	Reasoner reason.Reasoner
	Registry *sessions.Registry
	Metrics  *metrics.Metrics
	Archive  *archive.Store // nil disables persistence
	Logger   *slog.Logger
}

/// Routes builds the gateway mux: the websocket endpoint, health, and
// metrics.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.Metrics != nil {
		mux.Handle("/metrics", h.Metrics.Handler())
	}
	return mux
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.MaxMessageBytes)
	}

	logger := h.logger()
	ctx := r.Context()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			h.writeError(conn, protocol.NewError(&protocol.DecodeError{
				Code: "bad_request", Message: "frames must be text",
			}))
			continue
		}

		decoded, err := protocol.DecodeClientMessage(data)
		if err != nil {
			h.writeError(conn, protocol.NewError(err))
			continue
		}

		switch msg := decoded.(type) {
		case protocol.StartSession:
			h.handleStartSession(conn, msg)
		case protocol.GetQuestion:
			h.handleGetQuestion(conn, msg)
		case protocol.SubmitAudio:
			h.handleSubmitAudio(ctx, conn, msg)
		case protocol.TextToSpeech:
			h.handleTextToSpeech(ctx, conn, msg)
		case protocol.GetTopics:
			h.handleGetTopics(conn)
		case protocol.EndSession:
			h.handleEndSession(conn, msg)
		default:
			logger.Error("decoded message has no handler", "type", msg)
		}
	}
}

func (h *Handler) handleStartSession(conn *websocket.Conn, msg protocol.StartSession) {
	topics := msg.Topics
	if len(topics) == 0 {
		topics = h.Bank.Topics()
	}
	duration := h.Config.InterviewDuration
	if msg.DurationMinutes > 0 {
		duration = time.Duration(msg.DurationMinutes) * time.Minute
	}

	sess := session.New(duration)
	genOpts := reason.Options{
		Temperature: float32(h.Config.LLMTemperature),
		MaxTokens:   h.Config.LLMMaxTokens,
	}
	evalOpts := genOpts
	evalOpts.JSONObject = true

	reasoner := h.Reasoner
	if h.Metrics != nil {
		reasoner = &meteredReasoner{inner: h.Reasoner, metrics: h.Metrics}
	}

	policy := interview.NewPolicy(interview.PolicyConfig{
		Reasoner:     reasoner,
		Topics:       topics,
		Duration:     duration,
		MaxFollowUps: h.Config.MaxFollowUps,
		Examples:     h.Bank.Filter(topics, msg.Difficulty),
		Remaining:    sess.Remaining,
		GenOptions:   genOpts,
		EvalOptions:  evalOpts,
		Logger:       h.logger(),
	})
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	iv := &sessions.Interview{
		Lifecycle:  sess,
		Policy:     policy,
		Picker:     bank.NewPicker(h.Bank, topics, msg.Difficulty, rng),
		Topics:     topics,
		Difficulty: msg.Difficulty,
	}
	h.Registry.Add(iv)
	if h.Metrics != nil {
		h.Metrics.RecordSessionStart()
	}
	h.logger().Info("session started", "session_id", sess.ID(), "topics", topics, "duration", duration)

	h.writeJSON(conn, protocol.SessionStarted{
		Type:            "session_started",
		SessionID:       sess.ID(),
		Topics:          topics,
		Difficulty:      msg.Difficulty,
		DurationMinutes: int(duration.Minutes()),
	})
}

func (h *Handler) handleGetQuestion(conn *websocket.Conn, msg protocol.GetQuestion) {
	iv, err := h.Registry.Get(msg.SessionID)
	if err != nil {
		h.writeError(conn, protocol.Error{Type: "error", Code: "not_found", Message: "session not found"})
		return
	}
	if iv.Lifecycle.Remaining() <= 0 {
		h.writeJSON(conn, protocol.InterviewComplete{Type: "interview_complete", Message: timeUpMessage})
		return
	}

	q, err := iv.Picker.Next()
	if err != nil {
		h.writeError(conn, protocol.Error{Type: "error", Code: "exhausted", Message: "No more questions available"})
		return
	}

	iv.TurnMu.Lock()
	iv.Policy.SetQuestion(q)
	questionNumber := iv.Policy.Context().QuestionsAsked
	iv.TurnMu.Unlock()

	if err := iv.Lifecycle.Append(session.Entry{
		QuestionID:   q.ID,
		QuestionText: q.Text,
		Topic:        q.Topic,
	}); err != nil {
		h.writeError(conn, protocol.NewError(err))
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordQuestion()
	}

	h.writeJSON(conn, protocol.Question{
		Type:             "question",
		QuestionID:       q.ID,
		QuestionText:     q.Text,
		QuestionTopic:    q.Topic,
		Difficulty:       q.Difficulty,
		QuestionNumber:   questionNumber,
		RemainingSeconds: iv.Lifecycle.Remaining().Seconds(),
		DurationMinutes:  int(iv.Lifecycle.Duration().Minutes()),
	})
}

func (h *Handler) handleSubmitAudio(ctx context.Context, conn *websocket.Conn, msg protocol.SubmitAudio) {
	iv, err := h.Registry.Get(msg.SessionID)
	if err != nil {
		h.writeError(conn, protocol.Error{Type: "error", Code: "not_found", Message: "session not found"})
		return
	}
	audio, err := msg.Audio()
	if err != nil {
		h.writeError(conn, protocol.NewError(err))
		return
	}

	iv.TurnMu.Lock()
	defer iv.TurnMu.Unlock()
	start := time.Now()

	if iv.Policy.ShouldEnd() {
		h.writeJSON(conn, protocol.InterviewComplete{Type: "interview_complete", Message: timeUpMessage})
		return
	}

	transcript, err := h.transcribe(ctx, audio)
	if err != nil {
		h.logger().Error("transcription failed", "session_id", msg.SessionID, "error", err)
		if h.Metrics != nil {
			h.Metrics.RecordUpstreamError("stt")
		}
		h.writeError(conn, protocol.Error{Type: "error", Code: "stt_failed", Message: "Failed to process audio"})
		return
	}
	if transcript == "" {
		h.writeJSON(conn, h.conversationReply(ctx, "", interview.Action{
			Kind:  interview.ActionGuidance,
			Text:  noSpeechReply,
			Speak: true,
		}))
		return
	}

	turn := iv.Policy.Handle(ctx, transcript)
	h.recordTurn(iv, transcript, turn)
	if h.Metrics != nil {
		h.Metrics.RecordTurn(string(turn.Intent), time.Since(start))
	}

	h.writeJSON(conn, h.conversationReply(ctx, transcript, turn.Action))
}

func (h *Handler) transcribe(ctx context.Context, audio []byte) (string, error) {
	tr, err := h.STT.Transcribe(ctx, audio, stt.TranscribeOptions{
		Model:      h.Config.STTModel,
		SampleRate: h.Config.SampleRateHz,
		Channels:   h.Config.Channels,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(tr.Text), nil
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// recordTurn maps one dialogue turn onto the session record: answers and
// evaluations amend the current entry, follow-ups attach to it, and
// generated questions open a new one. Record errors after sealing are
// logged, never surfaced; the reply still goes out.
func (h *Handler) recordTurn(iv *sessions.Interview, transcript string, turn interview.Turn) {
	if turn.Intent == interview.IntentAnswering {
		err := iv.Lifecycle.AmendLast(func(e *session.Entry) {
			if e.Answer == "" {
				e.Answer = transcript
				e.Latency = time.Since(e.AskedAt)
			} else if e.FollowUpQuestion != "" && e.FollowUpAnswer == "" {
				e.FollowUpAnswer = transcript
			}
			if turn.Evaluation != nil {
				e.Evaluation = turn.Evaluation
			}
		})
		if err != nil {
			h.logger().Error("record amend failed", "error", err)
		}
	}

	switch turn.Action.Kind {
	case interview.ActionFollowUp:
		err := iv.Lifecycle.AmendLast(func(e *session.Entry) {
			e.FollowUpQuestion = turn.Action.Text
		})
		if err != nil {
			h.logger().Error("record amend failed", "error", err)
		}
	case interview.ActionQuestion:
		err := iv.Lifecycle.Append(session.Entry{
			QuestionText: turn.Action.Text,
		})
		if err != nil {
			h.logger().Error("record append failed", "error", err)
		}
	}
}

// conversationReply synthesizes speech for the chosen utterance. Synthesis
// failure degrades to a text-only reply with auto-play off.
func (h *Handler) conversationReply(ctx context.Context, transcript string, action interview.Action) protocol.Conversation {
	reply := protocol.Conversation{
		Type:         "ai_conversation",
		Transcript:   transcript,
		ResponseText: action.Text,
		ResponseType: string(action.Kind),
	}
	if !action.Speak {
		return reply
	}

	audio, err := h.TTS.Synthesize(ctx, action.Text, tts.SynthesizeOptions{
		Model:      h.Config.TTSModel,
		Encoding:   "linear16",
		SampleRate: h.Config.SampleRateHz,
	})
	if err != nil {
		h.logger().Error("speech synthesis failed", "error", err)
		if h.Metrics != nil {
			h.Metrics.RecordUpstreamError("tts")
		}
		return reply
	}
	reply.AudioB64 = base64Encode(audio)
	reply.AutoPlay = true
	return reply
}

func (h *Handler) handleTextToSpeech(ctx context.Context, conn *websocket.Conn, msg protocol.TextToSpeech) {
	audio, err := h.TTS.Synthesize(ctx, msg.Text, tts.SynthesizeOptions{
		Model:      h.Config.TTSModel,
		Encoding:   "linear16",
		SampleRate: h.Config.SampleRateHz,
	})
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.RecordUpstreamError("tts")
		}
		h.writeError(conn, protocol.Error{Type: "error", Code: "tts_failed", Message: "Failed to synthesize speech"})
		return
	}
	h.writeJSON(conn, protocol.Audio{Type: "audio", AudioB64: base64Encode(audio)})
}

func (h *Handler) handleGetTopics(conn *websocket.Conn) {
	minDifficulty, maxDifficulty := h.Bank.DifficultyRange()
	h.writeJSON(conn, protocol.Topics{
		Type:            "topics",
		Topics:          h.Bank.Topics(),
		DifficultyRange: [2]int{minDifficulty, maxDifficulty},
	})
}

func (h *Handler) handleEndSession(conn *websocket.Conn, msg protocol.EndSession) {
	iv, err := h.Registry.Get(msg.SessionID)
	if err != nil {
		h.writeError(conn, protocol.Error{Type: "error", Code: "not_found", Message: "session not found"})
		return
	}

	// Wait out any in-flight turn before sealing the record.
	iv.TurnMu.Lock()
	summary := iv.Lifecycle.End()
	iv.TurnMu.Unlock()

	if h.Archive != nil {
		if err := h.Archive.SaveSession(summary, iv.Lifecycle.Entries()); err != nil {
			h.logger().Error("session archive failed", "session_id", msg.SessionID, "error", err)
		}
	}
	h.Registry.Remove(msg.SessionID)
	if h.Metrics != nil {
		status := "ended"
		if iv.Lifecycle.Remaining() == 0 {
			status = "completed"
		}
		h.Metrics.RecordSessionEnd(status)
	}
	h.logger().Info("session ended", "session_id", msg.SessionID,
		"questions", summary.Questions, "performance", summary.Performance)

	h.writeJSON(conn, protocol.SessionEnded{
		Type:      "session_ended",
		SessionID: msg.SessionID,
		Summary:   summary,
	})
}

// meteredReasoner counts Complete failures so that reasoner fallbacks taken
// inside the dialogue policy still show up on /metrics.
type meteredReasoner struct {
	inner   reason.Reasoner
	metrics *metrics.Metrics
}

func (r *meteredReasoner) Complete(ctx context.Context, prompt string, opts reason.Options) (string, error) {
	out, err := r.inner.Complete(ctx, prompt, opts)
	if err != nil {
		r.metrics.RecordUpstreamError("llm")
	}
	return out, err
}

func (h *Handler) writeJSON(conn *websocket.Conn, v any) {
	if err := conn.WriteJSON(v); err != nil {
		h.logger().Error("websocket write failed", "error", err)
	}
}

func (h *Handler) writeError(conn *websocket.Conn, e protocol.Error) {
	h.writeJSON(conn, e)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
