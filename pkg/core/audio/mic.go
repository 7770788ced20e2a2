package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
)

// MicSource captures signed 16-bit PCM from the default microphone and serves
// it as fixed-size frames. It satisfies FrameSource so a Recorder can run the
// same capture loop against live hardware that tests run against synthetic
// sources.
type MicSource struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	frameBytes int

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// NewMicSource opens the default capture device at the given rate and starts
// buffering. frameSamples is the number of samples per returned frame.
func NewMicSource(sampleRateHz, channels, frameSamples int) (*MicSource, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	m := &MicSource{
		malgoCtx:   malgoCtx,
		frameBytes: frameSamples * channels * 2,
		buf:        make([]byte, 0, sampleRateHz*2),
	}
	m.cond = sync.NewCond(&m.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRateHz)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			m.mu.Lock()
			m.buf = append(m.buf, in...)
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	m.device = device
	return m, nil
}

// ReadFrame blocks until one full frame of samples has been captured.
func (m *MicSource) ReadFrame() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.buf) < m.frameBytes && !m.closed {
		m.cond.Wait()
	}
	if m.closed && len(m.buf) < m.frameBytes {
		return nil, io.EOF
	}
	frame := make([]byte, m.frameBytes)
	copy(frame, m.buf[:m.frameBytes])
	m.buf = m.buf[m.frameBytes:]
	return frame, nil
}

// Close stops the device and wakes any blocked reader.
func (m *MicSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()

	if m.device != nil {
		m.device.Uninit()
	}
	if m.malgoCtx != nil {
		m.malgoCtx.Uninit()
		m.malgoCtx.Free()
	}
	return nil
}
