package audio

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// FrameSource supplies fixed-size audio frames. ReadFrame blocks until a full
// frame is available and returns io.EOF when the source is exhausted. Close
// unblocks any pending ReadFrame and must be safe to call more than once.
type FrameSource interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// State is the recorder lifecycle state.
type State int

const (
	// Idle means no recording is active and no captured audio is pending.
	Idle State = iota
	// Recording means the capture loop is running.
	Recording
	// Finished means the capture loop has exited and audio awaits collection.
	Finished
)

var (
	// ErrAlreadyRecording is returned by Start while a recording is active.
	ErrAlreadyRecording = errors.New("audio: recording already in progress")
	// ErrNoActiveRecording is returned by Stop when nothing was started.
	ErrNoActiveRecording = errors.New("audio: no active recording")
)

// Recorder owns one recording lifecycle at a time. Start launches the capture
// loop on its own goroutine; the loop appends every frame to the buffer and
// feeds it to a SilenceGate, exiting on end-of-utterance, source EOF, a read
// error, or an explicit Stop. Completion is signalled through Done rather
// than a callback so the loop can be driven by a synthetic source in tests.
type Recorder struct {
	cfg    GateConfig
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	frames [][]byte
	stop   chan struct{}
	done   chan struct{}
	source FrameSource
}

// NewRecorder creates a recorder with the given gate configuration.
func NewRecorder(cfg GateConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{cfg: cfg, logger: logger}
}

// State reports the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins capturing from src. It fails with ErrAlreadyRecording unless
// the recorder is Idle. The caller is not blocked; watch Done to learn when
// the gate ends the utterance.
func (r *Recorder) Start(src FrameSource) error {
	r.mu.Lock()
	if r.state != Idle {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.state = Recording
	r.frames = nil
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.source = src
	stop, done := r.stop, r.done
	r.mu.Unlock()

	go r.captureLoop(src, stop, done)
	return nil
}

// Done returns a channel closed when the capture loop has exited. Returns nil
// if no recording was started.
func (r *Recorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Stop ends the recording at the next frame boundary, waits for the capture
// goroutine to exit, and returns the concatenated audio. Audio captured
// before an early manual stop is returned, not discarded. A nil slice means
// nothing was captured. Stop on an Idle recorder returns ErrNoActiveRecording.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if r.state == Idle {
		r.mu.Unlock()
		return nil, ErrNoActiveRecording
	}
	stop, done, src := r.stop, r.done, r.source
	r.mu.Unlock()

	select {
	case <-stop:
	default:
		close(stop)
		// The loop may be blocked inside ReadFrame; closing the source
		// unblocks it so the goroutine can exit.
		if src != nil {
			_ = src.Close()
		}
	}
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	data := concatFrames(r.frames)
	r.frames = nil
	r.state = Idle
	return data, nil
}

// Abort ends the recording and discards whatever was captured.
func (r *Recorder) Abort() {
	data, err := r.Stop()
	if err == nil && data != nil {
		r.logger.Debug("recording aborted", "discarded_bytes", len(data))
	}
}

func (r *Recorder) captureLoop(src FrameSource, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := src.Close(); err != nil {
			r.logger.Warn("closing frame source", "error", err)
		}
		r.mu.Lock()
		if r.state == Recording {
			r.state = Finished
		}
		r.mu.Unlock()
	}()

	gate := NewSilenceGate(r.cfg)

	for {
		select {
		case <-stop:
			return
		default:
		}

		frame, err := src.ReadFrame()
		if err != nil {
			// Fail fast on a bad read; keep what was captured so far.
			if !errors.Is(err, io.EOF) {
				r.logger.Error("reading audio frame", "error", err)
			}
			return
		}

		r.mu.Lock()
		r.frames = append(r.frames, frame)
		captured := len(r.frames)
		r.mu.Unlock()

		if gate.Observe(frame) == GateEndOfUtterance {
			r.logger.Debug("end of utterance detected", "frames", captured)
			return
		}
	}
}

func concatFrames(frames [][]byte) []byte {
	if len(frames) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f)
	}
	return buf.Bytes()
}
