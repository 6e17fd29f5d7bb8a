package daemonctl

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"confcap/internal/capture"
	"confcap/internal/deps"
	"confcap/internal/ipc"
	"confcap/internal/preflight"
	"confcap/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		statuses []deps.Status
		severity string
		detail   string
	}{
		{"none", nil, "info", "No dependency checks configured"},
		{"all available", []deps.Status{{Name: "FFmpeg", Available: true}}, "ok", "1/1 available"},
		{
			"optional missing",
			[]deps.Status{{Name: "FFmpeg", Available: true}, {Name: "udev", Optional: true}},
			"warn",
			"1/2 available (missing: 0 required, 1 optional)",
		},
		{
			"required missing",
			[]deps.Status{{Name: "FFmpeg"}, {Name: "udev", Optional: true}},
			"error",
			"0/2 available (missing: 1 required, 1 optional)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDependencySummary(tt.statuses)
			if got.Severity != tt.severity || got.Detail != tt.detail {
				t.Fatalf("summary = %+v, want severity %q detail %q", got, tt.severity, tt.detail)
			}
		})
	}
}

func TestBuildSystemLines(t *testing.T) {
	if lines := BuildSystemLines(nil); lines != nil {
		t.Fatalf("expected nil lines for nil snapshot, got %+v", lines)
	}

	offline := &Snapshot{Status: ipc.StatusResponse{
		Checks: []preflight.Result{{Name: "Host Socket", Passed: false, Detail: "directory not writable"}},
	}}
	lines := BuildSystemLines(offline)
	if len(lines) != 2 {
		t.Fatalf("expected 2 offline lines, got %+v", lines)
	}
	if lines[0].Label != "Daemon" || lines[0].Severity != "warn" || !strings.Contains(lines[0].Detail, "confcap daemon start") {
		t.Fatalf("unexpected daemon line %+v", lines[0])
	}
	if lines[1].Severity != "error" || lines[1].Detail != "directory not writable" {
		t.Fatalf("unexpected check line %+v", lines[1])
	}

	online := &Snapshot{Reachable: true, Status: ipc.StatusResponse{
		PID:           42,
		DeviceMonitor: true,
		Capture:       capture.Status{Capturing: true, SessionID: "sess-1"},
	}}
	lines = BuildSystemLines(online)
	if len(lines) != 3 {
		t.Fatalf("expected 3 online lines, got %+v", lines)
	}
	if lines[0].Detail != "Running (pid 42)" {
		t.Fatalf("unexpected daemon detail %q", lines[0].Detail)
	}
	if lines[1].Severity != "ok" || lines[1].Detail != "Capturing sess-1" {
		t.Fatalf("unexpected capture line %+v", lines[1])
	}
	if lines[2].Severity != "ok" {
		t.Fatalf("unexpected device line %+v", lines[2])
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "confcap.pid")

	pid, err := ReadPID(path)
	if err != nil || pid != 0 {
		t.Fatalf("missing pid file: pid=%d err=%v", pid, err)
	}

	if err := os.WriteFile(path, []byte("1234\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	pid, err = ReadPID(path)
	if err != nil || pid != 1234 {
		t.Fatalf("pid=%d err=%v, want 1234", pid, err)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	pid, err = ReadPID(path)
	if err != nil || pid != 0 {
		t.Fatalf("garbage pid file: pid=%d err=%v", pid, err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "confcap.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatalf("pid file should be left in place: %v", err)
	}
}

func TestForceKillProcessWithoutPID(t *testing.T) {
	if _, err := ForceKillProcess(filepath.Join(t.TempDir(), "none.pid"), "", 0); err == nil {
		t.Fatal("expected error when no pid is known")
	}
}

func TestOfflineHelpers(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	reachable, pid, err := ProcessInfo(cfg.SocketPath())
	if err != nil || reachable || pid != 0 {
		t.Fatalf("ProcessInfo offline: reachable=%v pid=%d err=%v", reachable, pid, err)
	}
	if _, err := StopAndTerminate(cfg, 0); err != ErrDaemonNotRunning {
		t.Fatalf("StopAndTerminate offline err = %v, want ErrDaemonNotRunning", err)
	}
	if err := WaitForShutdown(cfg.SocketPath(), time.Second); err != nil {
		t.Fatalf("WaitForShutdown offline: %v", err)
	}

	snap, err := BuildStatusSnapshot(context.Background(), "", cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Reachable {
		t.Fatal("snapshot should not be reachable without a daemon")
	}
	if snap.Status.LockPath != cfg.LockPath() || snap.Status.HostSocket != cfg.Host.SocketPath {
		t.Fatalf("offline snapshot missing paths: %+v", snap.Status)
	}
	if snap.Summary.Total != len(snap.Status.Dependencies) {
		t.Fatalf("summary total %d != %d dependencies", snap.Summary.Total, len(snap.Status.Dependencies))
	}
	if _, err := BuildStatusSnapshot(context.Background(), "", nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected empty executable path to fail")
	}
}
