package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"confcap/internal/logging"
)

// Journal records session metadata. Calls happen under the controller lock,
// so implementations must return quickly.
type Journal interface {
	SessionStarted(rec SessionRecord)
	SessionStopped(sessionID string, at time.Time)
	SourceAdded(sessionID string, src SourceStatus, at time.Time)
	SourceRemoved(sessionID, key string, at time.Time)
}

// SessionRecord describes a started session.
type SessionRecord struct {
	ID        string
	StartedAt time.Time
	MimeType  string
	Config    Config
}

// SourceStatus is a point-in-time view of one admitted source.
type SourceStatus struct {
	Key           string   `json:"key"`
	ParticipantID string   `json:"participant_id"`
	DisplayName   string   `json:"display_name"`
	Locality      Locality `json:"locality"`
	Level         float64  `json:"level"`
	Smoothed      float64  `json:"smoothed"`
	Speaking      bool     `json:"speaking"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	Capturing     bool           `json:"capturing"`
	Transcription bool           `json:"transcription"`
	SessionID     string         `json:"session_id,omitempty"`
	StartedAt     time.Time      `json:"started_at,omitempty"`
	MimeType      string         `json:"mime_type,omitempty"`
	Config        Config         `json:"config"`
	Sources       []SourceStatus `json:"sources"`
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logging.NewComponentLogger(logger, "capture") }
}

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithEncoders sets the encoder factory used in non-raw sessions.
func WithEncoders(f EncoderFactory) Option {
	return func(c *Controller) { c.encoders = f }
}

// WithJournal records session metadata.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithSampleRate sets the mix sample rate.
func WithSampleRate(rate int) Option {
	return func(c *Controller) {
		if rate > 0 {
			c.sampleRate = rate
		}
	}
}

// Controller runs at most one capture session at a time.
type Controller struct {
	sink       Sink
	tracks     TrackSource
	encoders   EncoderFactory
	journal    Journal
	clock      Clock
	logger     *slog.Logger
	sampleRate int

	// lifecycle serializes Start and Stop; mu guards everything below.
	lifecycle sync.Mutex
	mu        sync.Mutex

	capturing     bool
	transcription bool
	gen           uint64
	sessionID     string
	startedAt     time.Time
	mimeType      string
	cfg           Config
	registry      *Registry
	graph         *Graph
	sampler       Timer
	encoder       *encoderSink
	unsubscribe   func()
	window        []float32
}

// NewController wires a controller that emits to sink and follows tracks.
func NewController(sink Sink, tracks TrackSource, opts ...Option) *Controller {
	if sink == nil {
		sink = nopSink{}
	}
	c := &Controller{
		sink:       sink,
		tracks:     tracks,
		clock:      SystemClock(),
		logger:     logging.NewComponentLogger(nil, "capture"),
		sampleRate: DefaultSampleRate,
		registry:   NewRegistry(),
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a session with opts overlaid onto the defaults.
func (c *Controller) Start(ctx context.Context, opts Options) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.IsCapturing() {
		c.logger.Info("start ignored; session already active",
			logging.String(logging.FieldEventType, "capture_already_active"),
			logging.String(logging.FieldSessionID, c.currentSessionID()),
		)
		return ErrAlreadyCapturing
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	cfg := opts.Apply(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return c.failStart(fmt.Errorf("invalid capture config: %w", err))
	}

	var (
		mimeType string
		enc      Encoder
	)
	if !cfg.RawPCM {
		negotiated, err := NegotiateMimeType(c.encoders, cfg.EncodedMimeType)
		if err != nil {
			return c.failStart(err)
		}
		enc, err = c.encoders.NewEncoder(negotiated, c.sampleRate)
		if err != nil {
			return c.failStart(fmt.Errorf("create encoder for %s: %w", negotiated, err))
		}
		mimeType = negotiated
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	gen := c.gen
	c.sessionID = uuid.NewString()
	c.startedAt = c.clock.Now()
	c.cfg = cfg
	c.mimeType = mimeType
	c.transcription = false
	c.registry.Reset()
	c.graph = newGraph(cfg, c.sampleRate, c.registry, c.logger, c.clock.Now, func(entry *SourceEntry, frame PCMFrame) {
		c.emitPCM(gen, entry, frame)
	})
	if enc != nil {
		c.encoder = startEncoderSink(c.clock, enc, c.graph.mix, cfg.ChunkInterval,
			func(data []byte) { c.emitChunk(gen, data) },
			func(err error) { c.reportEncoderError(gen, err) },
		)
	}
	c.capturing = true
	if cfg.EnableLevels {
		c.sampler = c.clock.Every(cfg.LevelInterval, func() { c.sampleTick(gen) })
	}
	if c.journal != nil {
		c.journal.SessionStarted(SessionRecord{ID: c.sessionID, StartedAt: c.startedAt, MimeType: mimeType, Config: cfg})
	}
	c.reconcileLocked()
	if c.tracks != nil {
		c.unsubscribe = c.tracks.Subscribe(func() { c.handleTracksChanged(gen) })
	}

	c.logger.Info("capture started",
		logging.String(logging.FieldEventType, "capture_started"),
		logging.String(logging.FieldSessionID, c.sessionID),
		logging.String("mime_type", mimeType),
		logging.Bool("raw_pcm", cfg.RawPCM),
		logging.Bool("levels", cfg.EnableLevels),
		logging.Bool("vad", cfg.EnableVAD),
		logging.Int("sources", c.registry.Len()),
	)
	c.sink.Emit(CaptureStatus{Status: StateStarted, Timestamp: c.clock.Now()})
	return nil
}

// failStart reports a setup failure to the host and returns err. Nothing has
// been acquired at this point, so there is nothing left to release.
func (c *Controller) failStart(err error) error {
	logging.ErrorWithContext(c.logger, "capture start failed", "capture_start_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check capture.encoded_mime_type and ffmpeg availability"),
	)
	c.mu.Lock()
	c.sink.Emit(CaptureStatus{Status: StateError, Error: err.Error(), Timestamp: c.clock.Now()})
	c.mu.Unlock()
	return err
}

// Stop ends the session and releases every resource. No event is emitted
// after Stop returns.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if !c.capturing {
		c.mu.Unlock()
		c.logger.Debug("stop ignored; no active session")
		return ErrNotCapturing
	}
	gen := c.gen
	sampler, unsubscribe, enc := c.sampler, c.unsubscribe, c.encoder
	c.sampler, c.unsubscribe, c.encoder = nil, nil, nil
	c.mu.Unlock()

	// Periodic tasks take the controller lock, so they are stopped without it.
	if sampler != nil {
		sampler.Stop()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	var (
		final  []byte
		encErr error
	)
	if enc != nil {
		final, encErr = enc.stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if encErr != nil {
		c.logger.Warn("encoder did not close cleanly",
			logging.Error(encErr),
			logging.String(logging.FieldEventType, "encoder_close_failed"),
			logging.String(logging.FieldErrorHint, "inspect ffmpeg stderr in the daemon log"),
			logging.String(logging.FieldImpact, "final audio chunk may be truncated"),
		)
	}
	if len(final) > 0 && c.gen == gen {
		c.sink.Emit(AudioChunk{Data: final, Timestamp: now, MimeType: c.mimeType})
	}
	for _, key := range c.registry.Keys() {
		c.removeSourceLocked(key)
	}
	c.graph.ReleaseAll()
	c.graph = nil
	c.registry.Reset()

	sessionID := c.sessionID
	c.capturing = false
	c.transcription = false
	c.gen++
	c.sessionID = ""
	c.mimeType = ""
	c.startedAt = time.Time{}
	if c.journal != nil {
		c.journal.SessionStopped(sessionID, now)
	}

	c.logger.Info("capture stopped",
		logging.String(logging.FieldEventType, "capture_stopped"),
		logging.String(logging.FieldSessionID, sessionID),
	)
	c.sink.Emit(CaptureStatus{Status: StateStopped, Timestamp: now})
	return nil
}

// EnableTranscription turns on raw frame emission for the session.
func (c *Controller) EnableTranscription() error {
	return c.setTranscription(true)
}

// DisableTranscription suppresses raw frame emission. Levels and voice
// activity keep flowing.
func (c *Controller) DisableTranscription() error {
	return c.setTranscription(false)
}

// ToggleTranscription flips the flag and returns the new value.
func (c *Controller) ToggleTranscription() (bool, error) {
	enabled := !c.IsTranscriptionEnabled()
	if err := c.setTranscription(enabled); err != nil {
		return c.IsTranscriptionEnabled(), err
	}
	return enabled, nil
}

func (c *Controller) setTranscription(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		logging.WarnWithContext(c.logger, "transcription change ignored; not capturing", "transcription_not_capturing",
			logging.Bool("enabled", enabled),
			logging.String(logging.FieldErrorHint, "start capture before toggling transcription"),
			logging.String(logging.FieldImpact, "transcription state unchanged"),
		)
		return ErrNotCapturing
	}
	c.transcription = enabled
	c.logger.Info("transcription updated",
		logging.String(logging.FieldEventType, "transcription_updated"),
		logging.Bool("enabled", enabled),
	)
	c.sink.Emit(TranscriptionStatus{Enabled: enabled, Timestamp: c.clock.Now()})
	return nil
}

// IsCapturing reports whether a session is active.
func (c *Controller) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// IsTranscriptionEnabled reports the transcription flag.
func (c *Controller) IsTranscriptionEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcription
}

// Resync reconciles the registry against the current track list.
func (c *Controller) Resync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return ErrNotCapturing
	}
	c.reconcileLocked()
	return nil
}

// RemoveSource removes one source from the active session.
func (c *Controller) RemoveSource(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return ErrNotCapturing
	}
	c.removeSourceLocked(key)
	return nil
}

// Snapshot returns the current status.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Capturing:     c.capturing,
		Transcription: c.transcription,
		SessionID:     c.sessionID,
		StartedAt:     c.startedAt,
		MimeType:      c.mimeType,
		Config:        c.cfg,
	}
	for _, e := range c.registry.Entries() {
		st.Sources = append(st.Sources, sourceStatus(e))
	}
	return st
}

func (c *Controller) currentSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) handleTracksChanged(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing || c.gen != gen {
		return
	}
	c.reconcileLocked()
}

func (c *Controller) reconcileLocked() {
	if c.tracks == nil || !c.graph.Active() {
		return
	}
	plan := planReconcile(c.cfg, c.registry, c.tracks.Tracks(), c.tracks.DisplayName)
	for _, a := range plan.add {
		entry, err := c.graph.AddSource(a.key, a.track.ParticipantID, a.displayName, a.track.Locality, a.track.Stream)
		if err != nil {
			logging.WarnWithContext(c.logger, "source skipped", "source_setup_failed",
				logging.Error(err),
				logging.String(logging.FieldSourceKey, a.key),
				logging.String(logging.FieldErrorHint, "verify the participant's PCM stream is readable"),
				logging.String(logging.FieldImpact, "participant missing from mix and levels"),
			)
			continue
		}
		if entry != nil && c.journal != nil {
			c.journal.SourceAdded(c.sessionID, sourceStatus(entry), entry.AddedAt)
		}
	}
	for _, key := range plan.remove {
		c.removeSourceLocked(key)
	}
	c.registry.SetPrevious(plan.current)
}

func (c *Controller) removeSourceLocked(key string) {
	if c.graph.RemoveSource(key) && c.journal != nil {
		c.journal.SourceRemoved(c.sessionID, key, c.clock.Now())
	}
}

func (c *Controller) emitPCM(gen uint64, entry *SourceEntry, frame PCMFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing || c.gen != gen || !c.transcription {
		return
	}
	if current, ok := c.registry.Get(entry.Key); !ok || current != entry {
		return
	}
	c.sink.Emit(frame)
}

func (c *Controller) emitChunk(gen uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing || c.gen != gen {
		return
	}
	c.sink.Emit(AudioChunk{Data: data, Timestamp: c.clock.Now(), MimeType: c.mimeType})
}

func (c *Controller) reportEncoderError(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing || c.gen != gen {
		return
	}
	logging.WarnWithContext(c.logger, "encoder error", "encoder_runtime_error",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect encoder output in the daemon log"),
		logging.String(logging.FieldImpact, "one audio chunk may be missing"),
	)
	c.sink.Emit(CaptureStatus{Status: StateError, Error: err.Error(), Timestamp: c.clock.Now()})
}

func sourceStatus(e *SourceEntry) SourceStatus {
	return SourceStatus{
		Key:           e.Key,
		ParticipantID: e.ParticipantID,
		DisplayName:   e.DisplayName,
		Locality:      e.Locality,
		Level:         e.LastLevel,
		Smoothed:      e.Smoothed,
		Speaking:      e.Speaking(),
	}
}

// IsBenign reports whether err is one of the no-op lifecycle errors.
func IsBenign(err error) bool {
	return errors.Is(err, ErrAlreadyCapturing) || errors.Is(err, ErrNotCapturing)
}
