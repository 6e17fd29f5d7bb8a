package testsupport

import (
	"math"
	"sync"
	"time"

	"confcap/internal/audio"
)

// ManualStream is an audio.Stream whose frames are pushed by the test.
type ManualStream struct {
	audio.Broadcaster

	id         string
	sampleRate int

	mu            sync.Mutex
	subscribeErr  error
	subscriptions int
}

// NewManualStream returns a live stream.
func NewManualStream(id string, sampleRate int) *ManualStream {
	return &ManualStream{id: id, sampleRate: sampleRate}
}

func (s *ManualStream) ID() string { return s.id }

func (s *ManualStream) SampleRate() int { return s.sampleRate }

// FailSubscribe makes subsequent Subscribe calls return err.
func (s *ManualStream) FailSubscribe(err error) {
	s.mu.Lock()
	s.subscribeErr = err
	s.mu.Unlock()
}

// Subscribe implements audio.Stream.
func (s *ManualStream) Subscribe(fn func(audio.Frame)) (func() error, error) {
	s.mu.Lock()
	err := s.subscribeErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	cancel, err := s.Broadcaster.Subscribe(fn)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.subscriptions++
	s.mu.Unlock()
	return func() error {
		s.mu.Lock()
		s.subscriptions--
		s.mu.Unlock()
		return cancel()
	}, nil
}

// Subscriptions returns the number of active subscribers.
func (s *ManualStream) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptions
}

// Push publishes samples as one frame.
func (s *ManualStream) Push(samples []float32) {
	s.Publish(audio.Frame{Samples: samples, SampleRate: s.sampleRate, Timestamp: time.Now()})
}

// PushConstant publishes n samples of the given amplitude.
func (s *ManualStream) PushConstant(amplitude float32, n int) {
	s.Push(Constant(amplitude, n))
}

// Constant returns n samples of the given amplitude.
func Constant(amplitude float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude
	}
	return out
}

// Sine returns n samples of a sine wave at freq Hz.
func Sine(amplitude float64, freq float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}
