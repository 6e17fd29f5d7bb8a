package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	RuntimeDir string `toml:"runtime_dir"`
}

// Capture mirrors the per-session capture options. Values here become the
// daemon's defaults; start requests may override them.
type Capture struct {
	ChunkIntervalMs int     `toml:"chunk_interval_ms"`
	EncodedMimeType string  `toml:"encoded_mime_type"`
	IncludeLocal    bool    `toml:"include_local"`
	IncludeRemote   bool    `toml:"include_remote"`
	EnableLevels    bool    `toml:"enable_levels"`
	LevelIntervalMs int     `toml:"level_interval_ms"`
	EnableVAD       bool    `toml:"enable_vad"`
	VADThreshold    float64 `toml:"vad_threshold"`
	RawPCM          bool    `toml:"raw_pcm"`
	PCMBufferSize   int     `toml:"pcm_buffer_size"`
	SampleRate      int     `toml:"sample_rate"`
	AutoStart       bool    `toml:"auto_start"`
}

// Sources configures where participant tracks come from.
type Sources struct {
	LocalName     string `toml:"local_name"`
	Microphone    bool   `toml:"microphone"`
	FramesPerRead int    `toml:"frames_per_read"`
	ManifestPath  string `toml:"manifest_path"`
	WatchDevices  bool   `toml:"watch_devices"`
}

// Encoder configures the compressed chunk encoders.
type Encoder struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	BitrateKbps    int    `toml:"bitrate_kbps"`
	DisableFFmpeg  bool   `toml:"disable_ffmpeg"`
	StopTimeoutSec int    `toml:"stop_timeout_seconds"`
}

// Host configures the outbound event link toward the host application.
type Host struct {
	SocketPath    string `toml:"socket_path"`
	Codec         string `toml:"codec"`
	WebSocketBind string `toml:"websocket_bind"`
	AllowAnyUID   bool   `toml:"allow_any_uid"`
	BufferEvents  int    `toml:"buffer_events"`
}

// Journal configures the SQLite session journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for confcap.
//
// Configuration sections by subsystem:
//   - Paths: state, log, and runtime directories
//   - Capture: default session options
//   - Sources: local microphone and track manifest
//   - Encoder: ffmpeg binary and bitrate
//   - Host: event link socket, codec, and WebSocket bind
//   - Journal: SQLite session journal
//   - Logging: log format, level, and rotation
type Config struct {
	Paths   Paths   `toml:"paths"`
	Capture Capture `toml:"capture"`
	Sources Sources `toml:"sources"`
	Encoder Encoder `toml:"encoder"`
	Host    Host    `toml:"host"`
	Journal Journal `toml:"journal"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("confcap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.RuntimeDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath is the control socket used by the CLI.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "confcap.sock")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "confcap.lock")
}

// PIDPath is the daemon PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "confcap.pid")
}

// LogPath is the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "confcap.log")
}

// FFmpegBinary returns the ffmpeg executable used by the encoders.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Encoder.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultRuntimeDir() string {
	if base, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "confcap")
	}
	return defaultStateDir
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
