package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultChunkInterval   = time.Second
	DefaultEncodedMimeType = "audio/webm;codecs=opus"
	DefaultLevelInterval   = 100 * time.Millisecond
	DefaultVADThreshold    = 0.01
	DefaultPCMBufferSize   = 4096
	DefaultSampleRate      = 48000

	// FallbackMimeType is tried when the configured MIME type is unsupported.
	FallbackMimeType = "audio/webm"

	// AnalysisWindowSize is the number of samples each level reading covers.
	AnalysisWindowSize = 2048
	// AnalysisSmoothing weights the previous smoothed meter value.
	AnalysisSmoothing = 0.8
	// SilenceDelay is how long a source must stay quiet before it stops speaking.
	SilenceDelay = 500 * time.Millisecond

	minPCMBufferSize = 256
	maxPCMBufferSize = 16384
)

// Config is the immutable per-session capture configuration.
type Config struct {
	ChunkInterval   time.Duration `json:"chunk_interval"`
	EncodedMimeType string        `json:"encoded_mime_type"`
	IncludeLocal    bool          `json:"include_local"`
	IncludeRemote   bool          `json:"include_remote"`
	EnableLevels    bool          `json:"enable_levels"`
	LevelInterval   time.Duration `json:"level_interval"`
	EnableVAD       bool          `json:"enable_vad"`
	VADThreshold    float64       `json:"vad_threshold"`
	RawPCM          bool          `json:"raw_pcm"`
	PCMBufferSize   int           `json:"pcm_buffer_size"`
}

// DefaultConfig returns the configuration used when no options are provided.
func DefaultConfig() Config {
	return Config{
		ChunkInterval:   DefaultChunkInterval,
		EncodedMimeType: DefaultEncodedMimeType,
		IncludeLocal:    true,
		IncludeRemote:   true,
		EnableLevels:    true,
		LevelInterval:   DefaultLevelInterval,
		EnableVAD:       true,
		VADThreshold:    DefaultVADThreshold,
		RawPCM:          false,
		PCMBufferSize:   DefaultPCMBufferSize,
	}
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if c.ChunkInterval <= 0 {
		return errors.New("capture.chunk_interval_ms must be positive")
	}
	if c.LevelInterval <= 0 {
		return errors.New("capture.level_interval_ms must be positive")
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return errors.New("capture.vad_threshold must be between 0 and 1")
	}
	if !c.RawPCM && strings.TrimSpace(c.EncodedMimeType) == "" {
		return errors.New("capture.encoded_mime_type must be set when capture.raw_pcm is false")
	}
	if c.PCMBufferSize < minPCMBufferSize || c.PCMBufferSize > maxPCMBufferSize || c.PCMBufferSize&(c.PCMBufferSize-1) != 0 {
		return fmt.Errorf("capture.pcm_buffer_size must be a power of two between %d and %d", minPCMBufferSize, maxPCMBufferSize)
	}
	return nil
}

// Options overrides individual Config fields. Nil fields keep the base value.
type Options struct {
	ChunkIntervalMs *int     `json:"chunkIntervalMs,omitempty"`
	EncodedMimeType *string  `json:"encodedMimeType,omitempty"`
	IncludeLocal    *bool    `json:"includeLocal,omitempty"`
	IncludeRemote   *bool    `json:"includeRemote,omitempty"`
	EnableLevels    *bool    `json:"enableLevels,omitempty"`
	LevelIntervalMs *int     `json:"levelIntervalMs,omitempty"`
	EnableVAD       *bool    `json:"enableVAD,omitempty"`
	VADThreshold    *float64 `json:"vadThreshold,omitempty"`
	RawPCM          *bool    `json:"rawPCM,omitempty"`
	PCMBufferSize   *int     `json:"pcmBufferSize,omitempty"`
}

// Apply overlays the provided options onto base.
func (o Options) Apply(base Config) Config {
	cfg := base
	if o.ChunkIntervalMs != nil {
		cfg.ChunkInterval = time.Duration(*o.ChunkIntervalMs) * time.Millisecond
	}
	if o.EncodedMimeType != nil {
		cfg.EncodedMimeType = strings.TrimSpace(*o.EncodedMimeType)
	}
	if o.IncludeLocal != nil {
		cfg.IncludeLocal = *o.IncludeLocal
	}
	if o.IncludeRemote != nil {
		cfg.IncludeRemote = *o.IncludeRemote
	}
	if o.EnableLevels != nil {
		cfg.EnableLevels = *o.EnableLevels
	}
	if o.LevelIntervalMs != nil {
		cfg.LevelInterval = time.Duration(*o.LevelIntervalMs) * time.Millisecond
	}
	if o.EnableVAD != nil {
		cfg.EnableVAD = *o.EnableVAD
	}
	if o.VADThreshold != nil {
		cfg.VADThreshold = *o.VADThreshold
	}
	if o.RawPCM != nil {
		cfg.RawPCM = *o.RawPCM
	}
	if o.PCMBufferSize != nil {
		cfg.PCMBufferSize = *o.PCMBufferSize
	}
	return cfg
}

// Merge returns o with every field set in override replacing the original.
func (o Options) Merge(override Options) Options {
	out := o
	if override.ChunkIntervalMs != nil {
		out.ChunkIntervalMs = override.ChunkIntervalMs
	}
	if override.EncodedMimeType != nil {
		out.EncodedMimeType = override.EncodedMimeType
	}
	if override.IncludeLocal != nil {
		out.IncludeLocal = override.IncludeLocal
	}
	if override.IncludeRemote != nil {
		out.IncludeRemote = override.IncludeRemote
	}
	if override.EnableLevels != nil {
		out.EnableLevels = override.EnableLevels
	}
	if override.LevelIntervalMs != nil {
		out.LevelIntervalMs = override.LevelIntervalMs
	}
	if override.EnableVAD != nil {
		out.EnableVAD = override.EnableVAD
	}
	if override.VADThreshold != nil {
		out.VADThreshold = override.VADThreshold
	}
	if override.RawPCM != nil {
		out.RawPCM = override.RawPCM
	}
	if override.PCMBufferSize != nil {
		out.PCMBufferSize = override.PCMBufferSize
	}
	return out
}
