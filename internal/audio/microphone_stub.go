//go:build !portaudio

package audio

import (
	"errors"
	"log/slog"
)

// MicrophoneAvailable reports whether the binary was built with PortAudio support.
const MicrophoneAvailable = false

// Microphone is unavailable without the portaudio build tag.
type Microphone struct {
	Broadcaster

	id         string
	sampleRate int
}

// NewMicrophone constructs a stub microphone.
func NewMicrophone(id string, sampleRate, _ int, _ *slog.Logger) *Microphone {
	return &Microphone{id: id, sampleRate: sampleRate}
}

// ID implements Stream.
func (m *Microphone) ID() string { return m.id }

// SampleRate implements Stream.
func (m *Microphone) SampleRate() int { return m.sampleRate }

// Open always fails in builds without PortAudio.
func (m *Microphone) Open() error {
	return errors.New("microphone not available: rebuild with -tags portaudio")
}

// Close is a no-op.
func (m *Microphone) Close() error { return nil }
