package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	minPCMBufferSize = 256
	maxPCMBufferSize = 16384
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateHost(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.ChunkIntervalMs <= 0 {
		return errors.New("capture.chunk_interval_ms must be positive")
	}
	if c.Capture.LevelIntervalMs <= 0 {
		return errors.New("capture.level_interval_ms must be positive")
	}
	if c.Capture.VADThreshold < 0 || c.Capture.VADThreshold > 1 {
		return errors.New("capture.vad_threshold must be between 0 and 1")
	}
	if !c.Capture.RawPCM && c.Capture.EncodedMimeType == "" {
		return errors.New("capture.encoded_mime_type must be set when capture.raw_pcm is false")
	}
	size := c.Capture.PCMBufferSize
	if size < minPCMBufferSize || size > maxPCMBufferSize || size&(size-1) != 0 {
		return fmt.Errorf("capture.pcm_buffer_size must be a power of two between %d and %d", minPCMBufferSize, maxPCMBufferSize)
	}
	if c.Capture.SampleRate < 8000 || c.Capture.SampleRate > 192000 {
		return errors.New("capture.sample_rate must be between 8000 and 192000")
	}
	return nil
}

func (c *Config) validateSources() error {
	if c.Sources.FramesPerRead > c.Capture.SampleRate {
		return errors.New("sources.frames_per_read must not exceed one second of audio")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.BitrateKbps > 512 {
		return errors.New("encoder.bitrate_kbps must be 512 or lower")
	}
	return nil
}

func (c *Config) validateHost() error {
	switch c.Host.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("host.codec: unsupported value %q (use json or msgpack)", c.Host.Codec)
	}
	if bind := c.Host.WebSocketBind; bind != "" && !strings.Contains(bind, ":") {
		return fmt.Errorf("host.websocket_bind must be host:port, got %q", bind)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
