//go:build portaudio

package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"confcap/internal/logging"
)

// MicrophoneAvailable reports whether the binary was built with PortAudio support.
const MicrophoneAvailable = true

// Microphone captures the default input device through PortAudio.
type Microphone struct {
	Broadcaster

	id         string
	sampleRate int
	frames     int
	logger     *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	quit   chan struct{}
	done   chan struct{}
}

// NewMicrophone constructs an unopened microphone stream.
func NewMicrophone(id string, sampleRate, framesPerBuffer int, logger *slog.Logger) *Microphone {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &Microphone{
		id:         id,
		sampleRate: sampleRate,
		frames:     framesPerBuffer,
		logger:     logging.NewComponentLogger(logger, "microphone"),
	}
}

// ID implements Stream.
func (m *Microphone) ID() string { return m.id }

// SampleRate implements Stream.
func (m *Microphone) SampleRate() int { return m.sampleRate }

// Open initializes PortAudio and starts reading the default input device.
func (m *Microphone) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	buffer := make([]float32, m.frames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.frames, buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	m.stream = stream
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	go m.readLoop(stream, buffer, m.quit, m.done)

	m.logger.Info("microphone opened",
		logging.String(logging.FieldEventType, "microphone_opened"),
		logging.Int("sample_rate", m.sampleRate),
		logging.Int("frames_per_buffer", m.frames),
	)
	return nil
}

// Close stops the device and ends the stream.
func (m *Microphone) Close() error {
	m.mu.Lock()
	stream := m.stream
	quit, done := m.quit, m.done
	m.stream = nil
	m.mu.Unlock()
	if stream == nil {
		return nil
	}
	close(quit)
	<-done
	_ = stream.Stop()
	err := stream.Close()
	_ = portaudio.Terminate()
	m.End()
	return err
}

func (m *Microphone) readLoop(stream *portaudio.Stream, buffer []float32, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		default:
		}
		if err := stream.Read(); err != nil {
			m.logger.Warn("microphone read failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "microphone_read_failed"),
				logging.String(logging.FieldErrorHint, "check the input device is still connected"),
				logging.String(logging.FieldImpact, "local participant audio dropped from the mix"),
			)
			go m.End()
			return
		}
		samples := make([]float32, len(buffer))
		copy(samples, buffer)
		m.Publish(Frame{Samples: samples, SampleRate: m.sampleRate, Timestamp: time.Now()})
	}
}
