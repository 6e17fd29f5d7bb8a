package encode_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"confcap/internal/capture"
	"confcap/internal/encode"
	"confcap/internal/testsupport"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		mime      string
		container encode.Container
		wantErr   bool
	}{
		{mime: "audio/webm;codecs=opus", container: encode.ContainerWebM},
		{mime: "audio/webm", container: encode.ContainerWebM},
		{mime: " audio/ogg; codecs=\"opus\" ", container: encode.ContainerOgg},
		{mime: "audio/wav", container: encode.ContainerWAV},
		{mime: "audio/x-wav", container: encode.ContainerWAV},
		{mime: "audio/webm;codecs=vorbis", wantErr: true},
		{mime: "audio/mp4", wantErr: true},
		{mime: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			got, err := encode.ParseFormat(tt.mime)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat: %v", err)
			}
			if got.Container != tt.container {
				t.Fatalf("container = %s, want %s", got.Container, tt.container)
			}
		})
	}
}

func TestWAVEncoderStreamsHeaderThenSamples(t *testing.T) {
	enc := encode.NewWAVEncoder("audio/wav", 16000)

	if err := enc.Write([]float32{0, 1, -1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first, err := enc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(first) != 44+6 {
		t.Fatalf("first chunk has %d bytes, want 50", len(first))
	}
	if !bytes.HasPrefix(first, []byte("RIFF")) || string(first[8:12]) != "WAVE" || string(first[36:40]) != "data" {
		t.Fatalf("missing RIFF header: %q", first[:44])
	}
	if rate := binary.LittleEndian.Uint32(first[24:28]); rate != 16000 {
		t.Fatalf("header sample rate = %d", rate)
	}
	samples := []int16{
		int16(binary.LittleEndian.Uint16(first[44:46])),
		int16(binary.LittleEndian.Uint16(first[46:48])),
		int16(binary.LittleEndian.Uint16(first[48:50])),
	}
	if samples[0] != 0 || samples[1] != 32767 || samples[2] != -32767 {
		t.Fatalf("unexpected samples: %v", samples)
	}

	if err := enc.Write([]float32{0.5}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	second, _ := enc.Flush()
	if len(second) != 2 {
		t.Fatalf("later chunks must not repeat the header, got %d bytes", len(second))
	}

	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := enc.Write([]float32{0}); err == nil {
		t.Fatal("expected write after close to fail")
	}
}

func TestRegistryWithoutFFmpegOffersOnlyWAV(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reg := encode.NewRegistry(cfg, nil)

	if reg.Supports(capture.DefaultEncodedMimeType) || reg.Supports(capture.FallbackMimeType) {
		t.Fatal("opus formats must be unavailable without ffmpeg")
	}
	if !reg.Supports("audio/wav") {
		t.Fatal("wav must always be available")
	}
	if _, err := capture.NegotiateMimeType(reg, capture.DefaultEncodedMimeType); !errors.Is(err, capture.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := reg.NewEncoder("audio/ogg", 48000); !errors.Is(err, capture.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if got := reg.MimeTypes(); len(got) != 1 || got[0] != "audio/wav" {
		t.Fatalf("unexpected mime types: %v", got)
	}
}

func TestRegistryMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoder.DisableFFmpeg = false
	cfg.Encoder.FFmpegBinary = filepath.Join(t.TempDir(), "no-such-ffmpeg")

	reg := encode.NewRegistry(cfg, nil)
	if reg.FFmpegPath() != "" || reg.Supports("audio/webm") {
		t.Fatal("missing binary should disable opus formats")
	}
}

// writeEchoFFmpeg installs a fake ffmpeg that copies stdin to stdout.
func writeEchoFFmpeg(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func TestFFmpegEncoderPipesThroughProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoder.DisableFFmpeg = false
	cfg.Encoder.FFmpegBinary = writeEchoFFmpeg(t, "#!/bin/sh\nexec cat\n")

	reg := encode.NewRegistry(cfg, nil)
	if !reg.Supports(capture.DefaultEncodedMimeType) {
		t.Fatal("expected opus support with ffmpeg present")
	}
	enc, err := reg.NewEncoder(capture.DefaultEncodedMimeType, 48000)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if enc.MimeType() != capture.DefaultEncodedMimeType {
		t.Fatalf("mime = %q", enc.MimeType())
	}

	if err := enc.Write(make([]float32, 256)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got []byte
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < 1024 && time.Now().Before(deadline) {
		chunk, err := enc.Flush()
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
		got = append(got, chunk...)
		time.Sleep(5 * time.Millisecond)
	}
	if len(got) != 1024 {
		t.Fatalf("expected 1024 echoed bytes, got %d", len(got))
	}

	if err := enc.Write(make([]float32, 4)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	tail, _ := enc.Flush()
	if len(tail) != 16 {
		t.Fatalf("expected trailing output after close, got %d bytes", len(tail))
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestFFmpegEncoderReportsExitFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoder.DisableFFmpeg = false
	cfg.Encoder.FFmpegBinary = writeEchoFFmpeg(t, "#!/bin/sh\ncat >/dev/null\necho 'unknown encoder libopus' >&2\nexit 1\n")

	enc, err := encode.NewRegistry(cfg, nil).NewEncoder("audio/ogg;codecs=opus", 48000)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	err = enc.Close()
	if err == nil {
		t.Fatal("expected exit failure")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("unknown encoder libopus")) {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}
