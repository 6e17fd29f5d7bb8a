package encode

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"confcap/internal/capture"
	"confcap/internal/config"
	"confcap/internal/logging"
)

// Registry builds encoders for the MIME types the host may request.
type Registry struct {
	ffmpeg      string
	bitrateKbps int
	stopTimeout time.Duration
	logger      *slog.Logger
}

// NewRegistry resolves the ffmpeg binary once. Opus formats are only offered
// when ffmpeg is enabled and found.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	r := &Registry{
		bitrateKbps: cfg.Encoder.BitrateKbps,
		stopTimeout: time.Duration(cfg.Encoder.StopTimeoutSec) * time.Second,
		logger:      logging.NewComponentLogger(logger, "encode"),
	}
	if cfg.Encoder.DisableFFmpeg {
		r.logger.Info("ffmpeg encoders disabled",
			logging.String(logging.FieldEventType, "ffmpeg_disabled"),
		)
		return r
	}
	path, err := exec.LookPath(cfg.FFmpegBinary())
	if err != nil {
		logging.WarnWithContext(r.logger, "ffmpeg not found; opus encoders unavailable", "ffmpeg_missing",
			logging.String("binary", cfg.FFmpegBinary()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set encoder.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "only audio/wav chunks can be produced"),
		)
		return r
	}
	r.ffmpeg = path
	return r
}

// FFmpegPath returns the resolved ffmpeg binary, or "" when unavailable.
func (r *Registry) FFmpegPath() string {
	return r.ffmpeg
}

// MimeTypes lists the canonical MIME types this registry can encode.
func (r *Registry) MimeTypes() []string {
	types := make([]string, 0, 5)
	if r.ffmpeg != "" {
		types = append(types, "audio/webm;codecs=opus", "audio/webm", "audio/ogg;codecs=opus", "audio/ogg")
	}
	return append(types, "audio/wav")
}

// Supports implements capture.EncoderFactory.
func (r *Registry) Supports(mimeType string) bool {
	format, err := ParseFormat(mimeType)
	if err != nil {
		return false
	}
	return !format.NeedsFFmpeg() || r.ffmpeg != ""
}

// NewEncoder implements capture.EncoderFactory.
func (r *Registry) NewEncoder(mimeType string, sampleRate int) (capture.Encoder, error) {
	format, err := ParseFormat(mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrUnsupportedFormat, err)
	}
	if !format.NeedsFFmpeg() {
		return NewWAVEncoder(strings.TrimSpace(mimeType), sampleRate), nil
	}
	if r.ffmpeg == "" {
		return nil, fmt.Errorf("%w: %s requires ffmpeg", capture.ErrUnsupportedFormat, format.MimeType)
	}
	return StartFFmpeg(format, FFmpegOptions{
		Binary:      r.ffmpeg,
		BitrateKbps: r.bitrateKbps,
		SampleRate:  sampleRate,
		StopTimeout: r.stopTimeout,
		Logger:      r.logger,
	})
}
