package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"confcap/internal/config"
	"confcap/internal/daemon"
	"confcap/internal/hostlink"
	"confcap/internal/hub"
	"confcap/internal/ipc"
	"confcap/internal/logging"
	"confcap/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// DaemonOptions are passed through to daemon.New.
	DaemonOptions []daemon.Option
}

// Run starts the confcap daemon and blocks until a signal, a shutdown
// request, or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logger, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if opts.Development {
		logger.Info("development mode enabled",
			logging.String(logging.FieldEventType, "development_mode_enabled"))
	}

	logDependencySnapshot(signalCtx, logger, cfg)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, logger, opts.DaemonOptions...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	codec, err := hub.CodecByName(cfg.Host.Codec)
	if err != nil {
		return fmt.Errorf("host codec: %w", err)
	}
	hostServer, err := hostlink.NewServer(signalCtx, hostlink.Options{
		SocketPath:  cfg.Host.SocketPath,
		Codec:       codec,
		Events:      d.Events(),
		Commands:    d,
		AllowAnyUID: cfg.Host.AllowAnyUID,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("start host link: %w", err)
	}
	defer hostServer.Close()
	hostServer.Serve()

	if bind := strings.TrimSpace(cfg.Host.WebSocketBind); bind != "" {
		ws, err := hostlink.NewWebSocketServer(signalCtx, hostlink.WebSocketOptions{
			Bind:     bind,
			Codec:    codec,
			Events:   d.Events(),
			Commands: d,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("create websocket host link: %w", err)
		}
		if err := ws.Listen(); err != nil {
			return err
		}
		defer ws.Close()
	}

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	select {
	case <-signalCtx.Done():
	case <-d.Done():
	}
	logger.Info("confcap daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_disabled", cfg.Encoder.DisableFFmpeg),
		logging.String("ffmpeg_binary", cfg.FFmpegBinary()),
		logging.Bool("microphone", cfg.Sources.Microphone),
		logging.Bool("journal", cfg.Journal.Enabled),
		logging.String("host_codec", cfg.Host.Codec),
	}
	for _, dep := range preflight.CheckSystemDeps(ctx, cfg) {
		key := strings.ToLower(strings.ReplaceAll(dep.Name, " ", "_")) + "_available"
		attrs = append(attrs, logging.Bool(key, dep.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
