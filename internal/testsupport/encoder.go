package testsupport

import (
	"errors"
	"sync"

	"confcap/internal/capture"
)

// EncoderTrailer is appended to the output when a FakeEncoder is closed.
var EncoderTrailer = []byte("EOS")

// FakeEncoders is a capture.EncoderFactory with a configurable MIME set.
type FakeEncoders struct {
	mu        sync.Mutex
	supported map[string]bool
	created   []*FakeEncoder
	writeErr  error
}

// NewFakeEncoders supports exactly the given MIME types.
func NewFakeEncoders(mimeTypes ...string) *FakeEncoders {
	f := &FakeEncoders{supported: map[string]bool{}}
	for _, m := range mimeTypes {
		f.supported[m] = true
	}
	return f
}

// FailWrites makes every encoder created afterwards fail Write with err.
func (f *FakeEncoders) FailWrites(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

// Supports implements capture.EncoderFactory.
func (f *FakeEncoders) Supports(mimeType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supported[mimeType]
}

// NewEncoder implements capture.EncoderFactory.
func (f *FakeEncoders) NewEncoder(mimeType string, sampleRate int) (capture.Encoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.supported[mimeType] {
		return nil, errors.New("fake encoder: unsupported mime type")
	}
	enc := &FakeEncoder{mime: mimeType, writeErr: f.writeErr}
	f.created = append(f.created, enc)
	return enc, nil
}

// Created returns the encoders built so far.
func (f *FakeEncoders) Created() []*FakeEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeEncoder(nil), f.created...)
}

// FakeEncoder emits one byte per sample written.
type FakeEncoder struct {
	mu       sync.Mutex
	mime     string
	pending  []byte
	samples  int
	closed   bool
	writeErr error
}

func (e *FakeEncoder) MimeType() string { return e.mime }

func (e *FakeEncoder) Write(samples []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writeErr != nil {
		return e.writeErr
	}
	if e.closed {
		return errors.New("fake encoder: closed")
	}
	e.samples += len(samples)
	e.pending = append(e.pending, make([]byte, len(samples))...)
	return nil
}

func (e *FakeEncoder) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.pending
	e.pending = nil
	return out, nil
}

func (e *FakeEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.pending = append(e.pending, EncoderTrailer...)
	return nil
}

// Closed reports whether Close was called.
func (e *FakeEncoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Samples returns the number of samples written.
func (e *FakeEncoder) Samples() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.samples
}
