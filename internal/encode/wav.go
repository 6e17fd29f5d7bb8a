package encode

import (
	"encoding/binary"
	"errors"
	"sync"

	"confcap/internal/audio"
)

// streamingSize marks RIFF and data chunk sizes as unknown.
const streamingSize = 0xFFFFFFFF

// WAVEncoder writes mono 16-bit PCM. The first chunk carries a streaming
// RIFF header whose sizes are left open.
type WAVEncoder struct {
	mu       sync.Mutex
	mimeType string
	pending  []byte
	scratch  []int16
	closed   bool
}

// NewWAVEncoder returns an encoder for samples at sampleRate.
func NewWAVEncoder(mimeType string, sampleRate int) *WAVEncoder {
	return &WAVEncoder{mimeType: mimeType, pending: wavHeader(sampleRate)}
}

// MimeType implements capture.Encoder.
func (e *WAVEncoder) MimeType() string { return e.mimeType }

// Write implements capture.Encoder.
func (e *WAVEncoder) Write(samples []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("wav encoder closed")
	}
	e.scratch = audio.FloatToInt16(e.scratch[:0], samples)
	for _, s := range e.scratch {
		e.pending = binary.LittleEndian.AppendUint16(e.pending, uint16(s))
	}
	return nil
}

// Flush implements capture.Encoder.
func (e *WAVEncoder) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.pending
	e.pending = nil
	return out, nil
}

// Close implements capture.Encoder.
func (e *WAVEncoder) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func wavHeader(sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	h := make([]byte, 0, 44)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, streamingSize)
	h = append(h, "WAVE"...)
	h = append(h, "fmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16)
	h = binary.LittleEndian.AppendUint16(h, 1)
	h = binary.LittleEndian.AppendUint16(h, channels)
	h = binary.LittleEndian.AppendUint32(h, uint32(sampleRate))
	h = binary.LittleEndian.AppendUint32(h, uint32(sampleRate*blockAlign))
	h = binary.LittleEndian.AppendUint16(h, uint16(blockAlign))
	h = binary.LittleEndian.AppendUint16(h, bitsPerSample)
	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, streamingSize)
	return h
}
