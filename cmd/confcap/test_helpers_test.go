package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"confcap/internal/audio"
	"confcap/internal/config"
	"confcap/internal/daemon"
	"confcap/internal/hostlink"
	"confcap/internal/hub"
	"confcap/internal/ipc"
	"confcap/internal/logging"
	"confcap/internal/testsupport"
	"confcap/internal/tracks"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func openManual(d tracks.Descriptor) (audio.Stream, error) {
	return testsupport.NewManualStream(d.ID, 48000), nil
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.WithTrackOpener(openManual))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

// startHostLink serves the host event link for env's daemon.
func (e *cliTestEnv) startHostLink(t *testing.T) {
	t.Helper()
	codec, err := hub.CodecByName(e.cfg.Host.Codec)
	if err != nil {
		t.Fatalf("CodecByName: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := hostlink.NewServer(ctx, hostlink.Options{
		SocketPath: e.cfg.Host.SocketPath,
		Codec:      codec,
		Events:     e.daemon.Events(),
		Commands:   e.daemon,
		Logger:     logging.NewNop(),
	})
	if err != nil {
		cancel()
		t.Fatalf("hostlink.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
	})
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.socketPath, e.configPath)
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
