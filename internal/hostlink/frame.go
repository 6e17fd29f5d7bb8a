package hostlink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame payload.
const MaxFrameSize = 16 * 1024 * 1024

// WriteFrame writes data as [4-byte BE length][payload].
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return errors.New("hostlink: empty frame")
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("hostlink: frame too large: %d > %d", len(data), MaxFrameSize)
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("hostlink: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("hostlink: read header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return nil, errors.New("hostlink: zero-length frame")
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("hostlink: frame too large: %d > %d", length, MaxFrameSize)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("hostlink: read payload: %w", err)
	}
	return data, nil
}
