// viva-mic is a terminal interview client: it records utterances from the
// default microphone, submits them to a running gateway over the websocket
// protocol, and plays the spoken replies through the default output device.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/viva-labs/viva/pkg/core/audio"
)

type options struct {
	gateway    string
	topics     string
	difficulty int
	duration   int
	silenceSec float64
	noPlayback bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	_ = godotenv.Load()

	var opt options
	flag.StringVar(&opt.gateway, "gateway", "http://localhost:8090", "Gateway base URL")
	flag.StringVar(&opt.topics, "topics", "", "Comma-separated interview topics (default: all)")
	flag.IntVar(&opt.difficulty, "difficulty", 0, "Question difficulty 1..5 (default: any)")
	flag.IntVar(&opt.duration, "duration", 0, "Interview duration in minutes (default: server setting)")
	flag.Float64Var(&opt.silenceSec, "silence-sec", 2, "Seconds of silence that end an utterance")
	flag.BoolVar(&opt.noPlayback, "no-playback", false, "Print replies without playing audio")
	flag.Parse()

	wsURL, err := gatewayWSURL(opt.gateway)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid --gateway:", err)
		return 2
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial websocket:", err)
		return 1
	}
	defer conn.Close()

	sessionID, err := startSession(conn, opt)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start session:", err)
		return 1
	}
	fmt.Println("session started:", sessionID)

	var player *pcmPlayer
	if !opt.noPlayback {
		player, err = newPCMPlayer(16000, 1)
		if err != nil {
			fmt.Fprintln(os.Stderr, "audio output unavailable, text only:", err)
		} else {
			defer player.Close()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	endSession := func() {
		_ = conn.WriteJSON(map[string]any{"type": "end_session", "session_id": sessionID})
		var reply map[string]any
		if err := conn.ReadJSON(&reply); err == nil && reply["type"] == "session_ended" {
			pretty, _ := json.MarshalIndent(reply["summary"], "", "  ")
			fmt.Println("interview summary:")
			fmt.Println(string(pretty))
		}
	}

	gateCfg := audio.DefaultGateConfig()
	gateCfg.SilenceDuration = time.Duration(opt.silenceSec * float64(time.Second))

	for {
		select {
		case <-sigCh:
			endSession()
			return 0
		default:
		}

		fmt.Println("listening... (speak, then pause to submit; Ctrl-C to end)")
		utterance, err := recordUtterance(gateCfg, sigCh)
		if err != nil {
			fmt.Fprintln(os.Stderr, "record:", err)
			endSession()
			return 1
		}
		if utterance == nil {
			endSession()
			return 0
		}

		reply, err := submitAudio(conn, sessionID, utterance)
		if err != nil {
			fmt.Fprintln(os.Stderr, "submit audio:", err)
			endSession()
			return 1
		}

		switch reply["type"] {
		case "interview_complete":
			fmt.Println(reply["message"])
			endSession()
			return 0
		case "ai_conversation":
			if t, _ := reply["transcript"].(string); t != "" {
				fmt.Println("you:", t)
			}
			fmt.Println("interviewer:", reply["response_text"])
			if player != nil {
				if b64, _ := reply["response_audio"].(string); b64 != "" {
					if pcm, err := base64.StdEncoding.DecodeString(b64); err == nil {
						player.Play(pcm)
					}
				}
			}
		case "error":
			fmt.Fprintln(os.Stderr, "gateway error:", reply["message"])
		default:
			fmt.Fprintf(os.Stderr, "unexpected reply: %v\n", reply["type"])
		}
	}
}

func startSession(conn *websocket.Conn, opt options) (string, error) {
	msg := map[string]any{"type": "start_session"}
	if strings.TrimSpace(opt.topics) != "" {
		var topics []string
		for _, t := range strings.Split(opt.topics, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
		msg["topics"] = topics
	}
	if opt.difficulty > 0 {
		msg["difficulty"] = opt.difficulty
	}
	if opt.duration > 0 {
		msg["interview_duration"] = opt.duration
	}
	if err := conn.WriteJSON(msg); err != nil {
		return "", err
	}

	var reply map[string]any
	if err := conn.ReadJSON(&reply); err != nil {
		return "", err
	}
	if reply["type"] != "session_started" {
		return "", fmt.Errorf("expected session_started, got %v: %v", reply["type"], reply["message"])
	}
	id, _ := reply["session_id"].(string)
	if id == "" {
		return "", fmt.Errorf("session_started missing session_id")
	}
	return id, nil
}

// recordUtterance captures one utterance from the microphone, ending on the
// silence gate or on an interrupt. A nil slice with nil error means the user
// interrupted before speaking.
func recordUtterance(cfg audio.GateConfig, sigCh <-chan os.Signal) ([]byte, error) {
	mic, err := audio.NewMicSource(cfg.SampleRateHz, 1, cfg.FrameSamples)
	if err != nil {
		return nil, err
	}

	recorder := audio.NewRecorder(cfg, nil)
	if err := recorder.Start(mic); err != nil {
		mic.Close()
		return nil, err
	}

	select {
	case <-recorder.Done():
	case <-sigCh:
		_, _ = recorder.Stop()
		return nil, nil
	}
	return recorder.Stop()
}

func submitAudio(conn *websocket.Conn, sessionID string, pcm []byte) (map[string]any, error) {
	err := conn.WriteJSON(map[string]any{
		"type":       "submit_audio",
		"session_id": sessionID,
		"audio_data": base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		return nil, err
	}
	var reply map[string]any
	if err := conn.ReadJSON(&reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// pcmPlayer plays raw signed 16-bit PCM through the default output device.
type pcmPlayer struct {
	ctx            *oto.Context
	sampleRateHz   int
	channels       int
	bytesPerSecond int
}

func newPCMPlayer(sampleRateHz, channels int) (*pcmPlayer, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRateHz,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return &pcmPlayer{
		ctx:            ctx,
		sampleRateHz:   sampleRateHz,
		channels:       channels,
		bytesPerSecond: sampleRateHz * channels * 2,
	}, nil
}

// Play blocks until the clip has finished.
func (p *pcmPlayer) Play(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	for player.IsPlaying() {
		time.Sleep(20 * time.Millisecond)
	}
	_ = player.Close()
}

func (p *pcmPlayer) Close() error {
	return p.ctx.Suspend()
}

func gatewayWSURL(gateway string) (string, error) {
	raw := strings.TrimSpace(gateway)
	if raw == "" {
		return "", fmt.Errorf("empty gateway")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
