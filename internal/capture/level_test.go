package capture_test

import (
	"math"
	"strings"
	"testing"

	"confcap/internal/capture"
	"confcap/internal/testsupport"
)

func TestLevelNormalization(t *testing.T) {
	tests := []struct {
		name    string
		window  []float32
		want    float64
		epsilon float64
	}{
		{name: "silence", window: make([]float32, capture.AnalysisWindowSize), want: 0},
		{name: "empty", window: nil, want: 0},
		{name: "full scale sine", window: testsupport.Sine(1, 440, 48000, capture.AnalysisWindowSize), want: 1, epsilon: 0.02},
		{name: "half scale sine", window: testsupport.Sine(0.5, 440, 48000, capture.AnalysisWindowSize), want: 0.5, epsilon: 0.02},
		{name: "clipped square", window: testsupport.Constant(1, capture.AnalysisWindowSize), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := capture.Level(tt.window)
			if got < 0 || got > 1 {
				t.Fatalf("level %v outside [0,1]", got)
			}
			if math.Abs(got-tt.want) > tt.epsilon {
				t.Fatalf("Level = %v, want %v ±%v", got, tt.want, tt.epsilon)
			}
		})
	}
}

func TestRMS(t *testing.T) {
	if got := capture.RMS(testsupport.Constant(-0.5, 16)); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("RMS = %v, want 0.5", got)
	}
	if got := capture.RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v", got)
	}
}

func TestSourceKey(t *testing.T) {
	tests := []struct {
		locality capture.Locality
		id       string
		want     string
	}{
		{capture.LocalityLocal, "me", "local-audio"},
		{capture.LocalityLocal, "", "local-audio"},
		{capture.LocalityRemote, "p1", "remote-p1"},
	}
	for _, tt := range tests {
		if got := capture.SourceKey(tt.locality, tt.id); got != tt.want {
			t.Errorf("SourceKey(%s, %q) = %q, want %q", tt.locality, tt.id, got, tt.want)
		}
	}
}

func TestFallbackDisplayName(t *testing.T) {
	if got := capture.FallbackDisplayName(capture.LocalityLocal, "x"); got != "You" {
		t.Fatalf("local fallback = %q", got)
	}
	if got := capture.FallbackDisplayName(capture.LocalityRemote, "abcdefghijkl"); got != "Participant abcdefgh" {
		t.Fatalf("remote fallback = %q", got)
	}
}

func TestOptionsApplyAndValidate(t *testing.T) {
	chunk := 250
	mime := "  audio/ogg;codecs=opus "
	vad := false
	cfg := capture.Options{ChunkIntervalMs: &chunk, EncodedMimeType: &mime, EnableVAD: &vad}.Apply(capture.DefaultConfig())

	if cfg.ChunkInterval.Milliseconds() != 250 {
		t.Fatalf("chunk interval = %v", cfg.ChunkInterval)
	}
	if cfg.EncodedMimeType != "audio/ogg;codecs=opus" {
		t.Fatalf("mime = %q", cfg.EncodedMimeType)
	}
	if cfg.EnableVAD || !cfg.EnableLevels {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	invalid := []struct {
		name   string
		mutate func(*capture.Config)
		key    string
	}{
		{"zero chunk", func(c *capture.Config) { c.ChunkInterval = 0 }, "capture.chunk_interval_ms"},
		{"zero level interval", func(c *capture.Config) { c.LevelInterval = 0 }, "capture.level_interval_ms"},
		{"threshold above one", func(c *capture.Config) { c.VADThreshold = 1.5 }, "capture.vad_threshold"},
		{"encoded without mime", func(c *capture.Config) { c.EncodedMimeType = "" }, "capture.encoded_mime_type"},
		{"buffer not power of two", func(c *capture.Config) { c.PCMBufferSize = 3000 }, "capture.pcm_buffer_size"},
		{"buffer too large", func(c *capture.Config) { c.PCMBufferSize = 32768 }, "capture.pcm_buffer_size"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			c := capture.DefaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.HasPrefix(err.Error(), tt.key+" ") {
				t.Fatalf("error %q should name %s", err, tt.key)
			}
		})
	}

	raw := capture.DefaultConfig()
	raw.RawPCM = true
	raw.EncodedMimeType = ""
	if err := raw.Validate(); err != nil {
		t.Fatalf("raw mode should not need a mime type: %v", err)
	}
}
