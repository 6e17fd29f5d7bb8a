package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	if err := c.normalizeSources(); err != nil {
		return err
	}
	c.normalizeEncoder()
	if err := c.normalizeHost(); err != nil {
		return err
	}
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = c.Paths.StateDir
	}
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.EncodedMimeType = strings.ToLower(strings.TrimSpace(c.Capture.EncodedMimeType))
	c.Capture.EncodedMimeType = strings.ReplaceAll(c.Capture.EncodedMimeType, " ", "")
	if c.Capture.SampleRate <= 0 {
		c.Capture.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeSources() error {
	c.Sources.LocalName = strings.TrimSpace(c.Sources.LocalName)
	if c.Sources.FramesPerRead <= 0 {
		c.Sources.FramesPerRead = defaultFramesPerRead
	}
	var err error
	if c.Sources.ManifestPath, err = expandPath(strings.TrimSpace(c.Sources.ManifestPath)); err != nil {
		return fmt.Errorf("sources.manifest_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	if value, ok := os.LookupEnv("CONFCAP_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Encoder.FFmpegBinary = strings.TrimSpace(value)
	}
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Encoder.BitrateKbps <= 0 {
		c.Encoder.BitrateKbps = defaultBitrateKbps
	}
	if c.Encoder.StopTimeoutSec <= 0 {
		c.Encoder.StopTimeoutSec = defaultStopTimeoutSec
	}
}

func (c *Config) normalizeHost() error {
	c.Host.Codec = strings.ToLower(strings.TrimSpace(c.Host.Codec))
	if c.Host.Codec == "" {
		c.Host.Codec = defaultHostCodec
	}
	c.Host.WebSocketBind = strings.TrimSpace(c.Host.WebSocketBind)
	if strings.TrimSpace(c.Host.SocketPath) == "" {
		c.Host.SocketPath = filepath.Join(c.Paths.RuntimeDir, "confcap-host.sock")
	}
	var err error
	if c.Host.SocketPath, err = expandPath(c.Host.SocketPath); err != nil {
		return fmt.Errorf("host.socket_path: %w", err)
	}
	if c.Host.BufferEvents <= 0 {
		c.Host.BufferEvents = defaultHostBufferEvents
	}
	return nil
}

func (c *Config) normalizeJournal() error {
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = filepath.Join(c.Paths.StateDir, defaultJournalFile)
	}
	var err error
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "warning":
		c.Logging.Level = "warn"
	default:
		c.Logging.Level = level
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
