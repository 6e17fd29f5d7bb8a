package config

const (
	defaultConfigPath       = "~/.config/confcap/config.toml"
	defaultStateDir         = "~/.local/share/confcap"
	defaultLogDir           = "~/.local/share/confcap/logs"
	defaultJournalFile      = "journal.db"
	defaultChunkIntervalMs  = 1000
	defaultEncodedMimeType  = "audio/webm;codecs=opus"
	defaultLevelIntervalMs  = 100
	defaultVADThreshold     = 0.01
	defaultPCMBufferSize    = 4096
	defaultSampleRate       = 48000
	defaultLocalName        = "You"
	defaultFramesPerRead    = 960
	defaultFFmpegBinary     = "ffmpeg"
	defaultBitrateKbps      = 32
	defaultStopTimeoutSec   = 5
	defaultHostCodec        = "json"
	defaultHostBufferEvents = 1024
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogMaxSizeMB     = 20
	defaultLogMaxBackups    = 5
	defaultLogMaxAgeDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			RuntimeDir: defaultRuntimeDir(),
		},
		Capture: Capture{
			ChunkIntervalMs: defaultChunkIntervalMs,
			EncodedMimeType: defaultEncodedMimeType,
			IncludeLocal:    true,
			IncludeRemote:   true,
			EnableLevels:    true,
			LevelIntervalMs: defaultLevelIntervalMs,
			EnableVAD:       true,
			VADThreshold:    defaultVADThreshold,
			RawPCM:          false,
			PCMBufferSize:   defaultPCMBufferSize,
			SampleRate:      defaultSampleRate,
		},
		Sources: Sources{
			LocalName:     defaultLocalName,
			FramesPerRead: defaultFramesPerRead,
			WatchDevices:  true,
		},
		Encoder: Encoder{
			FFmpegBinary:   defaultFFmpegBinary,
			BitrateKbps:    defaultBitrateKbps,
			StopTimeoutSec: defaultStopTimeoutSec,
		},
		Host: Host{
			Codec:        defaultHostCodec,
			BufferEvents: defaultHostBufferEvents,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
