package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/viva-labs/viva/pkg/core/bank"
	"github.com/viva-labs/viva/pkg/core/reason"
	"github.com/viva-labs/viva/pkg/core/voice/stt"
	"github.com/viva-labs/viva/pkg/core/voice/tts"
	"github.com/viva-labs/viva/pkg/gateway/config"
	"github.com/viva-labs/viva/pkg/gateway/metrics"
	"github.com/viva-labs/viva/pkg/gateway/sessions"
)

type fakeReasoner struct {
	intent   string
	eval     string
	decision string
	text     string
	err      error
}

func (f *fakeReasoner) Complete(_ context.Context, prompt string, _ reason.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	switch {
	case strings.Contains(prompt, "Determine the user's intent"):
		return f.intent, nil
	case strings.Contains(prompt, "Provide your evaluation in the following JSON format"):
		return f.eval, nil
	case strings.Contains(prompt, `Return ONLY: "follow_up" or "new_question"`):
		return f.decision, nil
	default:
		return f.text, nil
	}
}

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Name() string { return "fake-stt" }

func (f *fakeSTT) Transcribe(context.Context, []byte, stt.TranscribeOptions) (*stt.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Transcript{Text: f.text, Confidence: 0.9}, nil
}

type fakeTTS struct {
	audio []byte
	err   error
}

func (f *fakeTTS) Name() string { return "fake-tts" }

func (f *fakeTTS) Synthesize(context.Context, string, tts.SynthesizeOptions) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func testBank(t *testing.T) *bank.Bank {
	t.Helper()
	b, err := bank.New([]bank.Question{
		{ID: "q1", Text: "Explain goroutines.", Topic: "concurrency", Difficulty: 2, Answer: "Lightweight threads."},
		{ID: "q2", Text: "What is an index?", Topic: "databases", Difficulty: 3, Answer: "A lookup structure."},
	})
	if err != nil {
		t.Fatalf("bank.New: %v", err)
	}
	return b
}

func testConfig() config.Config {
	return config.Config{
		LLMModel:          "gpt-3.5-turbo",
		LLMTemperature:    0.7,
		LLMMaxTokens:      500,
		SampleRateHz:      16000,
		Channels:          1,
		InterviewDuration: 30 * time.Minute,
		MaxFollowUps:      3,
		STTModel:          "nova-2",
		TTSModel:          "aura-asteria-en",
		MaxMessageBytes:   16 << 20,
	}
}

func newTestHandler(t *testing.T, r *fakeReasoner, sttP stt.Provider, ttsP tts.Provider) (*Handler, *websocket.Conn) {
	t.Helper()
	h := &Handler{
		Config:   testConfig(),
		Bank:     testBank(t),
		STT:      sttP,
		TTS:      ttsP,
		Reasoner: r,
		Registry: sessions.NewRegistry(),
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return h, conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) map[string]any {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply map[string]any
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	return reply
}

func startSession(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	reply := send(t, conn, `{"type": "start_session", "topics": ["concurrency"], "difficulty": 2}`)
	if reply["type"] != "session_started" {
		t.Fatalf("reply = %v", reply)
	}
	id, _ := reply["session_id"].(string)
	if id == "" {
		t.Fatal("missing session_id")
	}
	return id
}

func TestHandler_StartSession(t *testing.T) {
	h, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})

	reply := send(t, conn, `{"type": "start_session", "topics": ["concurrency"], "difficulty": 2, "interview_duration": 15}`)
	if reply["type"] != "session_started" {
		t.Fatalf("type = %v", reply["type"])
	}
	if reply["interview_duration"] != float64(15) {
		t.Errorf("interview_duration = %v", reply["interview_duration"])
	}
	if h.Registry.Len() != 1 {
		t.Errorf("registry size = %d", h.Registry.Len())
	}
}

func TestHandler_StartSession_DefaultsToAllTopics(t *testing.T) {
	_, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})

	reply := send(t, conn, `{"type": "start_session"}`)
	topics, _ := reply["topics"].([]any)
	if len(topics) != 2 {
		t.Errorf("topics = %v", reply["topics"])
	}
	if reply["interview_duration"] != float64(30) {
		t.Errorf("interview_duration = %v", reply["interview_duration"])
	}
}

func TestHandler_GetQuestion(t *testing.T) {
	_, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})
	id := startSession(t, conn)

	reply := send(t, conn, `{"type": "get_question", "session_id": "`+id+`"}`)
	if reply["type"] != "question" {
		t.Fatalf("reply = %v", reply)
	}
	if reply["question_id"] != "q1" || reply["question_topic"] != "concurrency" {
		t.Errorf("question = %v", reply)
	}
	if reply["question_number"] != float64(1) {
		t.Errorf("question_number = %v", reply["question_number"])
	}
	if remaining, _ := reply["remaining_time"].(float64); remaining <= 0 {
		t.Errorf("remaining_time = %v", reply["remaining_time"])
	}
}

func TestHandler_GetQuestion_Exhausted(t *testing.T) {
	_, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})
	id := startSession(t, conn)

	first := send(t, conn, `{"type": "get_question", "session_id": "`+id+`"}`)
	if first["type"] != "question" {
		t.Fatalf("first reply = %v", first)
	}
	// The session is scoped to the one concurrency question.
	second := send(t, conn, `{"type": "get_question", "session_id": "`+id+`"}`)
	if second["type"] != "error" {
		t.Fatalf("second reply = %v", second)
	}
	if second["message"] != "No more questions available" {
		t.Errorf("message = %v", second["message"])
	}
}

func TestHandler_GetQuestion_UnknownSession(t *testing.T) {
	_, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})

	reply := send(t, conn, `{"type": "get_question", "session_id": "ghost"}`)
	if reply["type"] != "error" || reply["code"] != "not_found" {
		t.Fatalf("reply = %v", reply)
	}
}

func TestHandler_SubmitAudio_FullTurn(t *testing.T) {
	r := &fakeReasoner{
		intent:   "answering_question",
		eval:     `{"score": 8, "feedback": "Good answer.", "follow_up": false}`,
		decision: "new_question",
		text:     "Tell me about channels.",
	}
	_, conn := newTestHandler(t, r, &fakeSTT{text: "Goroutines are lightweight threads."}, &fakeTTS{audio: []byte{1, 2, 3}})
	id := startSession(t, conn)
	send(t, conn, `{"type": "get_question", "session_id": "`+id+`"}`)

	audio := base64.StdEncoding.EncodeToString([]byte{0, 0, 0, 0})
	reply := send(t, conn, `{"type": "submit_audio", "session_id": "`+id+`", "audio_data": "`+audio+`"}`)

	if reply["type"] != "ai_conversation" {
		t.Fatalf("reply = %v", reply)
	}
	if reply["transcript"] != "Goroutines are lightweight threads." {
		t.Errorf("transcript = %v", reply["transcript"])
	}
	if reply["response_text"] != "Tell me about channels." {
		t.Errorf("response_text = %v", reply["response_text"])
	}
	if reply["response_type"] != "question" {
		t.Errorf("response_type = %v", reply["response_type"])
	}
	if reply["auto_play"] != true {
		t.Errorf("auto_play = %v", reply["auto_play"])
	}
	wantAudio := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	if reply["response_audio"] != wantAudio {
		t.Errorf("response_audio = %v", reply["response_audio"])
	}
}

func TestHandler_SubmitAudio_UnknownSessionLeavesRegistryUntouched(t *testing.T) {
	h, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})
	startSession(t, conn)

	audio := base64.StdEncoding.EncodeToString([]byte{0})
	reply := send(t, conn, `{"type": "submit_audio", "session_id": "ghost", "audio_data": "`+audio+`"}`)
	if reply["type"] != "error" {
		t.Fatalf("reply = %v", reply)
	}
	if h.Registry.Len() != 1 {
		t.Errorf("registry size = %d, want 1", h.Registry.Len())
	}
}

func TestHandler_SubmitAudio_EmptyTranscript(t *testing.T) {
	_, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{text: "   "}, &fakeTTS{audio: []byte{9}})
	id := startSession(t, conn)

	audio := base64.StdEncoding.EncodeToString([]byte{0})
	reply := send(t, conn, `{"type": "submit_audio", "session_id": "`+id+`", "audio_data": "`+audio+`"}`)

	if reply["type"] != "ai_conversation" {
		t.Fatalf("reply = %v", reply)
	}
	if reply["response_text"] != noSpeechReply {
		t.Errorf("response_text = %v", reply["response_text"])
	}
	if reply["response_type"] != "guidance" {
		t.Errorf("response_type = %v", reply["response_type"])
	}
}

func TestHandler_SubmitAudio_TTSFailureDegradesToText(t *testing.T) {
	r := &fakeReasoner{
		intent:   "answering_question",
		eval:     `{"score": 7, "feedback": "Fine."}`,
		decision: "new_question",
		text:     "Next question.",
	}
	_, conn := newTestHandler(t, r, &fakeSTT{text: "An answer."}, &fakeTTS{err: context.DeadlineExceeded})
	id := startSession(t, conn)

	audio := base64.StdEncoding.EncodeToString([]byte{0})
	reply := send(t, conn, `{"type": "submit_audio", "session_id": "`+id+`", "audio_data": "`+audio+`"}`)

	if reply["type"] != "ai_conversation" {
		t.Fatalf("reply = %v", reply)
	}
	if reply["auto_play"] != false {
		t.Errorf("auto_play = %v", reply["auto_play"])
	}
	if _, ok := reply["response_audio"]; ok {
		t.Errorf("unexpected response_audio: %v", reply["response_audio"])
	}
}

func TestHandler_SubmitAudio_ReasonerFailureCounted(t *testing.T) {
	h := &Handler{
		Config:   testConfig(),
		Bank:     testBank(t),
		STT:      &fakeSTT{text: "An answer."},
		TTS:      &fakeTTS{audio: []byte{1}},
		Reasoner: &fakeReasoner{err: errors.New("llm down")},
		Registry: sessions.NewRegistry(),
		Metrics:  metrics.New("viva"),
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	id := startSession(t, conn)
	audio := base64.StdEncoding.EncodeToString([]byte{0})
	reply := send(t, conn, `{"type": "submit_audio", "session_id": "`+id+`", "audio_data": "`+audio+`"}`)
	if reply["type"] != "ai_conversation" {
		t.Fatalf("reply = %v", reply)
	}

	// Intent classification and opening-question generation both failed.
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), `viva_upstream_errors_total{service="llm"} 2`) {
		t.Errorf("metrics missing llm upstream error count:\n%s", body)
	}
}

func TestHandler_TextToSpeech(t *testing.T) {
	_, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{audio: []byte{5, 6}})

	reply := send(t, conn, `{"type": "text_to_speech", "text": "Hello there."}`)
	if reply["type"] != "audio" {
		t.Fatalf("reply = %v", reply)
	}
	if reply["audio_data"] != base64.StdEncoding.EncodeToString([]byte{5, 6}) {
		t.Errorf("audio_data = %v", reply["audio_data"])
	}
}

func TestHandler_GetTopics(t *testing.T) {
	_, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})

	reply := send(t, conn, `{"type": "get_topics"}`)
	if reply["type"] != "topics" {
		t.Fatalf("reply = %v", reply)
	}
	topics, _ := reply["topics"].([]any)
	if len(topics) != 2 || topics[0] != "concurrency" {
		t.Errorf("topics = %v", reply["topics"])
	}
	rng, _ := reply["difficulty_range"].([]any)
	if len(rng) != 2 || rng[0] != float64(2) || rng[1] != float64(3) {
		t.Errorf("difficulty_range = %v", reply["difficulty_range"])
	}
}

func TestHandler_EndSession(t *testing.T) {
	h, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})
	id := startSession(t, conn)

	reply := send(t, conn, `{"type": "end_session", "session_id": "`+id+`"}`)
	if reply["type"] != "session_ended" {
		t.Fatalf("reply = %v", reply)
	}
	if reply["session_id"] != id {
		t.Errorf("session_id = %v", reply["session_id"])
	}
	if _, ok := reply["summary"]; !ok {
		t.Error("missing summary")
	}
	if h.Registry.Len() != 0 {
		t.Errorf("registry size = %d, want 0", h.Registry.Len())
	}

	again := send(t, conn, `{"type": "end_session", "session_id": "`+id+`"}`)
	if again["type"] != "error" || again["code"] != "not_found" {
		t.Fatalf("second end = %v", again)
	}
}

func TestHandler_MalformedFrame(t *testing.T) {
	_, conn := newTestHandler(t, &fakeReasoner{}, &fakeSTT{}, &fakeTTS{})

	reply := send(t, conn, `{"type": "dance"}`)
	if reply["type"] != "error" || reply["code"] != "bad_request" {
		t.Fatalf("reply = %v", reply)
	}
}
