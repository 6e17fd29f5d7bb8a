package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"confcap/internal/capture"
	"confcap/internal/daemonctl"
	"confcap/internal/deps"
	"confcap/internal/hub"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestTitleLabel(t *testing.T) {
	tests := map[string]string{
		"capture-status":       "Capture Status",
		"remote":               "Remote",
		"transcription_status": "Transcription Status",
		"  ":                   "",
	}
	for in, want := range tests {
		if got := titleLabel(in); got != want {
			t.Errorf("titleLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false},
		{Name: "PortAudio", Available: true, Command: "portaudio"},
		{Name: "udev", Available: false, Optional: true, Detail: "netlink unavailable"},
	}
	summary := daemonctl.BuildDependencySummary(statuses)
	lines := dependencyLines(statuses, summary, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR]") || !strings.Contains(lines[0], "Summary") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] not available") {
		t.Fatalf("expected error detail in second line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: portaudio)") {
		t.Fatalf("expected ready detail in third line, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN] netlink unavailable") {
		t.Fatalf("expected warn detail in fourth line, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "Missing dependencies:") {
		t.Fatalf("expected missing dependencies summary, got %q", lines[4])
	}
}

func TestEventLinesSortsKinds(t *testing.T) {
	lines := eventLines(hub.Stats{
		Buffered: 3,
		Capacity: 64,
		LastSeq:  9,
		Counts: map[capture.EventKind]uint64{
			capture.KindVoiceActivity: 1,
			capture.KindAudioChunk:    2,
		},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	requireContains(t, lines[0], "3/64 (last seq 9)")
	requireContains(t, lines[1], "Audio Chunk:")
	requireContains(t, lines[2], "Voice Activity:")
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   capture.Event
		want string
	}{
		{"chunk", capture.AudioChunk{Data: make([]byte, 12), MimeType: "audio/wav"}, "12 bytes audio/wav"},
		{"pcm uses name", capture.PCMFrame{Samples: make([]float32, 4), SampleRate: 48000, ParticipantID: "p1", ParticipantName: "Ada"}, "Ada: 4 samples @ 48000 Hz"},
		{"levels sorted", capture.AudioLevels{Levels: map[string]float64{"b": 0.5, "a": 0.25}}, "a=0.25 b=0.50"},
		{"vad", capture.VoiceActivity{ParticipantID: "p1", Speaking: true}, "p1 speaking"},
		{"status error", capture.CaptureStatus{Status: capture.StateError, Error: "encoder failed"}, "error: encoder failed"},
		{"transcription", capture.TranscriptionStatus{Enabled: false}, "transcription off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeEvent(tt.ev); got != tt.want {
				t.Fatalf("describeEvent = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatRecord(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	got := formatRecord(hub.Record{Sequence: 7, Event: capture.CaptureStatus{Status: capture.StateStarted, Timestamp: at}})
	requireContains(t, got, "     7  03:04:05.000  Capture Status")
	if !strings.HasSuffix(got, "started") {
		t.Fatalf("expected status suffix, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
