package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// OpusEncoder is the ffmpeg encoder used for webm and ogg chunks.
const OpusEncoder = "libopus"

// CheckFFmpeg reports whether binary resolves and ships the Opus encoder.
// A binary without libopus is reported unavailable so callers fall back to
// WAV instead of failing at session start.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	result := Status{
		Name:        "FFmpeg",
		Command:     strings.TrimSpace(binary),
		Description: "Encodes Opus audio chunks (webm, ogg)",
		Optional:    true,
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}
	resolved, err := exec.LookPath(result.Command)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", result.Command)
		return result
	}
	result.Command = resolved

	ok, err := HasEncoder(ctx, resolved, OpusEncoder)
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	if !ok {
		result.Detail = fmt.Sprintf("encoder %s missing; rebuild ffmpeg with --enable-libopus", OpusEncoder)
		return result
	}
	result.Available = true
	return result
}

// HasEncoder runs "ffmpeg -encoders" and looks for name.
func HasEncoder(ctx context.Context, binary, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		return false, err
	}
	return encoderListed(out, name), nil
}

// encoderListed scans ffmpeg's encoder table. Rows look like
// " A....D libopus              libopus Opus".
func encoderListed(output []byte, name string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}
