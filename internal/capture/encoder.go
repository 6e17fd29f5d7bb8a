package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// mixPullInterval is how often mixed PCM is moved from the bus to the encoder.
const mixPullInterval = 20 * time.Millisecond

// Encoder compresses the mixed PCM stream.
type Encoder interface {
	MimeType() string
	// Write feeds mono samples at the graph sample rate.
	Write(samples []float32) error
	// Flush returns the encoded bytes produced since the previous Flush.
	Flush() ([]byte, error)
	// Close finishes the stream. Flush may be called once afterwards to
	// collect trailing output.
	Close() error
}

// EncoderFactory creates encoders for the MIME types it supports.
type EncoderFactory interface {
	Supports(mimeType string) bool
	NewEncoder(mimeType string, sampleRate int) (Encoder, error)
}

// NegotiateMimeType picks requested when supported, then FallbackMimeType.
func NegotiateMimeType(f EncoderFactory, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if f == nil {
		return "", fmt.Errorf("%w: no encoder available for %q", ErrUnsupportedFormat, requested)
	}
	if requested != "" && f.Supports(requested) {
		return requested, nil
	}
	if f.Supports(FallbackMimeType) {
		return FallbackMimeType, nil
	}
	return "", fmt.Errorf("%w: %q and fallback %q", ErrUnsupportedFormat, requested, FallbackMimeType)
}

// encoderSink moves mixed audio into the encoder and emits time-sliced chunks.
type encoderSink struct {
	mu      sync.Mutex
	enc     Encoder
	mix     *mixBus
	onChunk func([]byte)
	onError func(error)
	feed    Timer
	chunk   Timer
	closed  bool
}

func startEncoderSink(clock Clock, enc Encoder, mix *mixBus, interval time.Duration, onChunk func([]byte), onError func(error)) *encoderSink {
	s := &encoderSink{enc: enc, mix: mix, onChunk: onChunk, onError: onError}
	s.feed = clock.Every(mixPullInterval, s.pump)
	s.chunk = clock.Every(interval, s.drain)
	return s
}

func (s *encoderSink) pump() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pumpLocked()
}

func (s *encoderSink) pumpLocked() {
	if s.closed {
		return
	}
	samples := s.mix.pull()
	if len(samples) == 0 {
		return
	}
	if err := s.enc.Write(samples); err != nil {
		s.onError(fmt.Errorf("%w: write: %v", ErrEncoderRuntime, err))
	}
}

func (s *encoderSink) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pumpLocked()
	data, err := s.enc.Flush()
	if err != nil {
		s.onError(fmt.Errorf("%w: flush: %v", ErrEncoderRuntime, err))
		return
	}
	if len(data) > 0 {
		s.onChunk(data)
	}
}

// stop cancels both periodic tasks, closes the encoder, and returns the final
// partial chunk.
func (s *encoderSink) stop() ([]byte, error) {
	s.feed.Stop()
	s.chunk.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil
	}
	s.pumpLocked()
	s.closed = true
	closeErr := s.enc.Close()
	data, err := s.enc.Flush()
	if closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return data, fmt.Errorf("%w: close: %v", ErrEncoderRuntime, err)
	}
	return data, nil
}
