package encode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"confcap/internal/audio"
	"confcap/internal/logging"
)

const stderrLimit = 4096

// FFmpegOptions configures an ffmpeg encoder process.
type FFmpegOptions struct {
	Binary      string
	BitrateKbps int
	SampleRate  int
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// FFmpegEncoder pipes float PCM into ffmpeg and collects the encoded stream.
type FFmpegEncoder struct {
	format      Format
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stopTimeout time.Duration
	logger      *slog.Logger

	writeMu sync.Mutex
	scratch []byte

	mu      sync.Mutex
	out     bytes.Buffer
	readErr error
	closed  bool

	stderr   *tailBuffer
	readDone chan struct{}
}

// StartFFmpeg launches ffmpeg for format.
func StartFFmpeg(format Format, opts FFmpegOptions) (*FFmpegEncoder, error) {
	if !format.NeedsFFmpeg() {
		return nil, fmt.Errorf("start ffmpeg: %s does not use ffmpeg", format.MimeType)
	}
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		return nil, errors.New("start ffmpeg: binary not configured")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("start ffmpeg: invalid sample rate %d", opts.SampleRate)
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}

	cmd := exec.Command(binary, ffmpegArgs(format, opts)...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	e := &FFmpegEncoder{
		format:      format,
		cmd:         cmd,
		stdin:       stdin,
		stopTimeout: opts.StopTimeout,
		logger:      logging.NewComponentLogger(opts.Logger, "encoder"),
		stderr:      stderr,
		readDone:    make(chan struct{}),
	}
	go e.readOutput(stdout)
	e.logger.Debug("ffmpeg started",
		logging.String("mime_type", format.MimeType),
		logging.Int("pid", cmd.Process.Pid),
		logging.Int("bitrate_kbps", opts.BitrateKbps),
	)
	return e, nil
}

func ffmpegArgs(format Format, opts FFmpegOptions) []string {
	bitrate := opts.BitrateKbps
	if bitrate <= 0 {
		bitrate = 32
	}
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "f32le",
		"-ar", strconv.Itoa(opts.SampleRate),
		"-ac", "1",
		"-i", "pipe:0",
		"-c:a", "libopus",
		"-b:a", strconv.Itoa(bitrate) + "k",
		"-application", "voip",
		"-flush_packets", "1",
		"-f", string(format.Container),
		"pipe:1",
	}
}

// MimeType implements capture.Encoder.
func (e *FFmpegEncoder) MimeType() string { return e.format.MimeType }

// Write implements capture.Encoder.
func (e *FFmpegEncoder) Write(samples []float32) error {
	e.mu.Lock()
	closed, readErr := e.closed, e.readErr
	e.mu.Unlock()
	if closed {
		return errors.New("ffmpeg encoder closed")
	}
	if readErr != nil {
		return fmt.Errorf("ffmpeg output: %w", readErr)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.scratch = audio.EncodeF32LE(e.scratch[:0], samples)
	if _, err := e.stdin.Write(e.scratch); err != nil {
		return fmt.Errorf("write ffmpeg stdin: %w%s", err, e.stderrSuffix())
	}
	return nil
}

// Flush implements capture.Encoder.
func (e *FFmpegEncoder) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out.Len() == 0 {
		return nil, nil
	}
	data := bytes.Clone(e.out.Bytes())
	e.out.Reset()
	return data, nil
}

// Close ends the input and waits for ffmpeg to finish writing. The process is
// killed when it does not exit within the stop timeout.
func (e *FFmpegEncoder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.writeMu.Lock()
	closeErr := e.stdin.Close()
	e.writeMu.Unlock()

	timer := time.NewTimer(e.stopTimeout)
	defer timer.Stop()
	killed := false
	select {
	case <-e.readDone:
	case <-timer.C:
		killed = true
		e.logger.Warn("ffmpeg did not exit; killing",
			logging.String(logging.FieldEventType, "ffmpeg_kill"),
			logging.Duration("timeout", e.stopTimeout),
			logging.String(logging.FieldErrorHint, "check encoder.stop_timeout_seconds"),
			logging.String(logging.FieldImpact, "final audio chunk may be truncated"),
		)
		_ = e.cmd.Process.Kill()
		<-e.readDone
	}

	waitErr := e.cmd.Wait()
	switch {
	case killed:
		return fmt.Errorf("ffmpeg killed after %s", e.stopTimeout)
	case waitErr != nil:
		return fmt.Errorf("ffmpeg exit: %w%s", waitErr, e.stderrSuffix())
	case closeErr != nil && !errors.Is(closeErr, io.ErrClosedPipe):
		return fmt.Errorf("close ffmpeg stdin: %w", closeErr)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readErr
}

func (e *FFmpegEncoder) readOutput(r io.Reader) {
	defer close(e.readDone)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			e.mu.Lock()
			e.out.Write(buf[:n])
			e.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.mu.Lock()
				e.readErr = err
				e.mu.Unlock()
			}
			return
		}
	}
}

func (e *FFmpegEncoder) stderrSuffix() string {
	if tail := strings.TrimSpace(e.stderr.String()); tail != "" {
		return ": " + tail
	}
	return ""
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
