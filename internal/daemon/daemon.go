package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"confcap/internal/capture"
	"confcap/internal/config"
	"confcap/internal/deps"
	"confcap/internal/devicemon"
	"confcap/internal/encode"
	"confcap/internal/hub"
	"confcap/internal/journal"
	"confcap/internal/logging"
	"confcap/internal/preflight"
	"confcap/internal/tracks"
)

// ErrAlreadyRunning is returned by Start when this daemon, or another
// instance holding the lock, is running.
var ErrAlreadyRunning = errors.New("daemon already running")

// Daemon coordinates capture, the track store, and the event hub, and
// enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	events   *hub.Hub
	tracks   *tracks.Store
	encoders *encode.Registry
	journal  *journal.Store
	capture  *capture.Controller
	monitor  *devicemon.Monitor

	base     []tracks.Descriptor
	pushedMu sync.Mutex
	pushed   []tracks.Descriptor

	lockPath string
	lock     *flock.Flock

	lastError atomic.Pointer[capture.CaptureStatus]

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Option customizes a Daemon.
type Option func(*settings)

type settings struct {
	opener tracks.Opener
	clock  capture.Clock
}

// WithTrackOpener overrides how track sources are opened.
func WithTrackOpener(open tracks.Opener) Option {
	return func(s *settings) { s.opener = open }
}

// WithClock replaces the capture clock.
func WithClock(clock capture.Clock) Option {
	return func(s *settings) { s.clock = clock }
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	StartedAt     time.Time          `json:"started_at,omitempty"`
	LockPath      string             `json:"lock_path"`
	JournalPath   string             `json:"journal_path,omitempty"`
	HostSocket    string             `json:"host_socket"`
	Capture       capture.Status     `json:"capture"`
	Transcription bool               `json:"transcription_preference"`
	Tracks        []tracks.Status    `json:"tracks"`
	MimeTypes     []string           `json:"mime_types"`
	Events        hub.Stats          `json:"events"`
	DeviceMonitor bool               `json:"device_monitor"`
	Dependencies  []deps.Status      `json:"dependencies"`
	Checks        []preflight.Result `json:"checks"`

	// LastError is the most recent capture error since the daemon started.
	LastError *capture.CaptureStatus `json:"last_error,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var set settings
	for _, opt := range opts {
		opt(&set)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		events:   hub.New(cfg.Host.BufferEvents),
		encoders: encode.NewRegistry(cfg, logger),
		base:     LocalTracks(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		shutdown: make(chan struct{}),
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		d.journal = store
	}

	d.tracks = tracks.NewStore(tracks.Options{
		SampleRate:    cfg.Capture.SampleRate,
		FramesPerRead: cfg.Sources.FramesPerRead,
		Logger:        logger,
		Opener:        set.opener,
	})

	ctrlOpts := []capture.Option{
		capture.WithLogger(logger),
		capture.WithEncoders(d.encoders),
		capture.WithSampleRate(cfg.Capture.SampleRate),
	}
	if d.journal != nil {
		ctrlOpts = append(ctrlOpts, capture.WithJournal(d.journal))
	}
	if set.clock != nil {
		ctrlOpts = append(ctrlOpts, capture.WithClock(set.clock))
	}
	sink := capture.MultiSink{d.events, capture.SinkFunc(d.observe)}
	d.capture = capture.NewController(sink, d.tracks, ctrlOpts...)
	d.monitor = devicemon.New(cfg, logger, d.handleDeviceChange)
	return d, nil
}

// Start acquires the daemon lock, loads the configured tracks, and starts
// the device monitor. Capture itself starts on request unless
// capture.auto_start is set.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return ErrAlreadyRunning
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another confcap daemon holds %s: %w", d.lockPath, ErrAlreadyRunning)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.ctx = logging.WithCorrelationID(d.ctx, uuid.NewString())

	if path := strings.TrimSpace(d.cfg.Sources.ManifestPath); path != "" {
		descs, err := tracks.LoadManifest(path)
		if err != nil {
			logging.WarnWithContext(d.logger, "track manifest not loaded", "manifest_load_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the manifest or push tracks from the host"),
				logging.String(logging.FieldImpact, "only local tracks are available"),
			)
		} else {
			d.setPushed(descs)
		}
	}
	if err := d.applyTracks(); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		return fmt.Errorf("load tracks: %w", err)
	}

	if err := d.monitor.Start(d.ctx); err != nil {
		d.logger.Warn("device monitor unavailable", logging.Error(err))
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("confcap daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("tracks", len(d.tracks.Descriptors())),
	)

	for _, check := range preflight.Failed(preflight.RunAll(d.ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldErrorHint, "run confcap status for the full dependency report"),
		)
	}

	if d.cfg.Capture.AutoStart {
		if err := d.StartCapture(d.ctx, capture.Options{}); err != nil {
			logging.WarnWithContext(d.logger, "auto start failed", "capture_autostart_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check encoder and track configuration"),
				logging.String(logging.FieldImpact, "capture waits for a start request"),
			)
		}
	}
	return nil
}

// Stop ends any capture session, stops background services, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if err := d.StopCapture(context.Background()); err != nil {
		d.logger.Warn("capture stop failed", logging.Error(err))
	}
	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("confcap daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if err := d.tracks.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RequestShutdown asks the hosting process to exit.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// Done is closed after RequestShutdown.
func (d *Daemon) Done() <-chan struct{} {
	return d.shutdown
}

// Events returns the hub every consumer reads from.
func (d *Daemon) Events() *hub.Hub {
	return d.events
}

// Journal returns the session journal, or nil when disabled.
func (d *Daemon) Journal() *journal.Store {
	return d.journal
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockPath:      d.lockPath,
		HostSocket:    d.cfg.Host.SocketPath,
		Capture:       d.capture.Snapshot(),
		Transcription: d.transcriptionPreference(ctx),
		Tracks:        d.tracks.Statuses(),
		MimeTypes:     d.encoders.MimeTypes(),
		Events:        d.events.Stats(),
		DeviceMonitor: d.monitor.Running(),
		Dependencies:  preflight.CheckSystemDeps(ctx, d.cfg),
		Checks:        preflight.RunAll(ctx, d.cfg),
	}
	if st.Running {
		st.StartedAt = d.startedAt
	}
	if d.journal != nil {
		st.JournalPath = d.journal.Path()
	}
	st.LastError = d.lastError.Load()
	return st
}

// observe runs for every capture event after the hub has it.
func (d *Daemon) observe(ev capture.Event) {
	status, ok := ev.(capture.CaptureStatus)
	if !ok || status.Status != capture.StateError {
		return
	}
	d.lastError.Store(&status)
}

func (d *Daemon) handleDeviceChange(_ context.Context, change devicemon.Change) {
	reopened := d.tracks.Refresh()
	d.logger.Info("tracks refreshed after device change",
		logging.String(logging.FieldEventType, "tracks_refreshed"),
		logging.String("device", change.Device),
		logging.Int("reopened", reopened),
	)
}

// LogPath returns the daemon log file tailed by `confcap logs`.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}

// TrackStatuses reports every known track with its stream state.
func (d *Daemon) TrackStatuses() []tracks.Status {
	return d.tracks.Statuses()
}
