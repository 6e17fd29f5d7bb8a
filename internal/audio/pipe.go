package audio

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// PipeStream reads signed 16-bit little-endian mono PCM from a reader and
// publishes it as frames. The stream ends when the reader returns an error.
type PipeStream struct {
	Broadcaster

	id         string
	sampleRate int
	frameSize  int
	reader     io.ReadCloser
	err        error
	done       chan struct{}
}

// OpenPipe opens a PCM source by path. Paths prefixed with "unix:" are dialed
// as Unix stream sockets; anything else is opened as a file or FIFO.
func OpenPipe(id, path string, sampleRate int) (*PipeStream, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("open pipe: empty path")
	}
	var (
		reader io.ReadCloser
		err    error
	)
	if socket, ok := strings.CutPrefix(path, "unix:"); ok {
		reader, err = net.DialTimeout("unix", socket, 2*time.Second)
	} else {
		reader, err = os.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open pipe %s: %w", path, err)
	}
	return NewPipeStream(id, reader, sampleRate), nil
}

// NewPipeStream starts reading from r. Frames carry 20ms of audio.
func NewPipeStream(id string, r io.ReadCloser, sampleRate int) *PipeStream {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	frameSize := sampleRate / 50
	if frameSize <= 0 {
		frameSize = 960
	}
	s := &PipeStream{
		id:         id,
		sampleRate: sampleRate,
		frameSize:  frameSize,
		reader:     r,
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

// ID implements Stream.
func (s *PipeStream) ID() string { return s.id }

// SampleRate implements Stream.
func (s *PipeStream) SampleRate() int { return s.sampleRate }

// Err returns the error that ended the stream, if any.
func (s *PipeStream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close stops reading and ends the stream.
func (s *PipeStream) Close() error {
	err := s.reader.Close()
	<-s.done
	return err
}

func (s *PipeStream) run() {
	defer close(s.done)
	defer s.End()

	buf := make([]byte, s.frameSize*2)
	for {
		if _, err := io.ReadFull(s.reader, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, net.ErrClosed) {
				s.err = err
			}
			return
		}
		s.Publish(Frame{
			Samples:    DecodeS16LE(nil, buf),
			SampleRate: s.sampleRate,
			Timestamp:  time.Now(),
		})
	}
}
