package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func writeFakeFFmpeg(t *testing.T, encoders string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncat <<'OUT'\nEncoders:\n ------\n" + encoders + "OUT\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	return path
}

func TestCheckFFmpeg(t *testing.T) {
	t.Run("with libopus", func(t *testing.T) {
		bin := writeFakeFFmpeg(t, " A....D libopus              libopus Opus (codec opus)\n A....D pcm_s16le            PCM signed 16-bit\n")
		status := CheckFFmpeg(context.Background(), bin)
		if !status.Available {
			t.Fatalf("expected ffmpeg available, got detail %q", status.Detail)
		}
		if status.Command != bin {
			t.Fatalf("command = %q, want %q", status.Command, bin)
		}
	})

	t.Run("without libopus", func(t *testing.T) {
		bin := writeFakeFFmpeg(t, " A....D pcm_s16le            PCM signed 16-bit\n A....D opus                 Opus (experimental)\n")
		status := CheckFFmpeg(context.Background(), bin)
		if status.Available {
			t.Fatal("expected ffmpeg without libopus to be unavailable")
		}
		if status.Detail == "" {
			t.Fatal("expected detail message")
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		t.Setenv("PATH", "")
		status := CheckFFmpeg(context.Background(), "ffmpeg")
		if status.Available || status.Detail == "" {
			t.Fatalf("expected unavailable with detail, got %#v", status)
		}
		if !status.Optional {
			t.Fatal("ffmpeg should be reported as optional")
		}
	})
}

func TestEncoderListed(t *testing.T) {
	out := []byte(" V....D libx264   H.264\n A....D libopus   libopus Opus\n")
	if !encoderListed(out, "libopus") {
		t.Fatal("expected libopus to be listed")
	}
	if encoderListed(out, "libvorbis") {
		t.Fatal("unexpected libvorbis match")
	}
}
