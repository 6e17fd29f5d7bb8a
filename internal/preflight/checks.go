package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"confcap/internal/audio"
	"confcap/internal/config"
	"confcap/internal/deps"
	"confcap/internal/tracks"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOpusEncoder verifies that ffmpeg can produce Opus chunks.
func CheckOpusEncoder(ctx context.Context, binary string) Result {
	const name = "Opus encoder"
	status := deps.CheckFFmpeg(ctx, binary)
	if !status.Available {
		return Result{Name: name, Detail: status.Detail + " (audio/wav fallback only)"}
	}
	return Result{Name: name, Passed: true, Detail: status.Command}
}

// CheckMicrophone reports whether the local microphone can be opened by this
// build.
func CheckMicrophone() Result {
	const name = "Microphone"
	if !audio.MicrophoneAvailable {
		return Result{Name: name, Detail: "built without PortAudio (rebuild with -tags portaudio)"}
	}
	return Result{Name: name, Passed: true, Detail: "PortAudio available"}
}

// CheckManifest verifies that the configured track manifest parses.
func CheckManifest(path string) Result {
	const name = "Track manifest"
	descs, err := tracks.LoadManifest(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d tracks)", path, len(descs))}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	if cfg == nil || cfg.Encoder.DisableFFmpeg {
		return nil
	}
	return []deps.Status{deps.CheckFFmpeg(ctx, cfg.FFmpegBinary())}
}
