package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"confcap/internal/testsupport"
)

func TestTracksPushListClear(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutJournal())

	manifest := testsupport.WriteManifest(t, `
tracks:
  - id: alice-mic
    participant_id: alice
    display_name: Alice
    source: /tmp/alice.pcm
`)
	out, _, err := env.run(t, "tracks", "push", manifest)
	if err != nil {
		t.Fatalf("tracks push: %v", err)
	}
	requireContains(t, out, "Pushed 1 track(s); 1 registered")

	out, _, err = env.run(t, "tracks", "list")
	if err != nil {
		t.Fatalf("tracks list: %v", err)
	}
	requireContains(t, out, "alice-mic")
	requireContains(t, out, "Remote")
	requireContains(t, out, "live")

	out, _, err = env.run(t, "tracks", "clear")
	if err != nil {
		t.Fatalf("tracks clear: %v", err)
	}
	requireContains(t, out, "0 registered")

	if _, _, err := env.run(t, "tracks", "push", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing manifest to fail")
	}
}

func TestEventsCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRawPCM(), testsupport.WithoutJournal())

	if _, _, err := env.run(t, "start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := env.run(t, "stop"); err != nil {
		t.Fatalf("stop: %v", err)
	}

	out, _, err := env.run(t, "events", "--kind", "capture-status")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 capture status lines, got %q", out)
	}
	requireContains(t, lines[0], "Capture Status")
	requireContains(t, lines[0], "started")
	requireContains(t, lines[1], "stopped")

	out, _, err = env.run(t, "events", "--tail", "1", "--json")
	if err != nil {
		t.Fatalf("events --json: %v", err)
	}
	requireContains(t, out, `"type":"event"`)
}

func TestSessionsCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRawPCM())

	if _, _, err := env.run(t, "start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	sessionID := env.daemon.CaptureStatus(t.Context()).SessionID
	if _, _, err := env.run(t, "stop"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	testsupport.SyncJournal(t, env.daemon.Journal())

	out, _, err := env.run(t, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, sessionID)
	requireContains(t, out, "raw PCM")

	out, _, err = env.run(t, "sessions", sessionID)
	if err != nil {
		t.Fatalf("sessions <id>: %v", err)
	}
	requireContains(t, out, "No sources recorded")
}

func TestSessionsCommandWithoutJournal(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutJournal())

	if _, _, err := env.run(t, "sessions"); err == nil {
		t.Fatal("expected sessions to fail without a journal")
	}
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutJournal())

	logPath := env.cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := strings.Join([]string{
		`{"time":"2026-01-02T03:04:05Z","level":"INFO","msg":"one","component":"capture"}`,
		`{"time":"2026-01-02T03:04:06Z","level":"DEBUG","msg":"two","component":"ipc"}`,
		`{"time":"2026-01-02T03:04:07Z","level":"WARN","msg":"three","component":"capture"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := env.run(t, "logs", "--lines", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, `"one"`) || !strings.Contains(out, `"two"`) || !strings.Contains(out, `"three"`) {
		t.Fatalf("unexpected tail output %q", out)
	}

	out, _, err = env.run(t, "logs", "--component", "capture", "--level", "warn")
	if err != nil {
		t.Fatalf("logs filtered: %v", err)
	}
	if strings.TrimSpace(out) != strings.Split(strings.TrimSpace(content), "\n")[2] {
		t.Fatalf("unexpected filtered output %q", out)
	}
}

func TestHostPingAndTap(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithRawPCM(), testsupport.WithoutJournal())
	env.startHostLink(t)

	out, _, err := env.run(t, "host", "ping")
	if err != nil {
		t.Fatalf("host ping: %v", err)
	}
	requireContains(t, out, "Host link OK")
	requireContains(t, out, "idle")

	if _, _, err := env.run(t, "start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	out, _, err = env.run(t, "host", "ping")
	if err != nil {
		t.Fatalf("host ping while capturing: %v", err)
	}
	requireContains(t, out, "capturing")

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, _, err := runCLI(t, []string{"host", "tap", "--count", "1", "--kind", "transcription-status"}, env.socketPath, env.configPath)
		done <- result{out: out, err: err}
	}()

	// The tap only sees events emitted after its hello, so keep producing
	// transcription changes until it returns.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case res := <-done:
			if res.err != nil {
				t.Fatalf("host tap: %v", res.err)
			}
			requireContains(t, res.out, "Connected (protocol 1, codec json")
			requireContains(t, res.out, "Transcription Status")
			return
		case <-ticker.C:
			if _, err := env.daemon.ToggleTranscription(t.Context()); err != nil {
				t.Fatalf("ToggleTranscription: %v", err)
			}
		case <-deadline:
			t.Fatal("host tap did not receive an event")
		}
	}
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"start"}, "", configPath)
	if err == nil {
		t.Fatal("expected start without daemon to fail")
	}
	requireContains(t, err.Error(), "confcap daemon start")

	out, _, err := runCLI(t, []string{"status"}, "", configPath)
	if err != nil {
		t.Fatalf("offline status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "== Dependencies ==")
}
