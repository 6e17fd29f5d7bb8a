package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"confcap/internal/capture"
	"confcap/internal/config"
	"confcap/internal/hostlink"
	"confcap/internal/journal"
	"confcap/internal/logging"
	"confcap/internal/tracks"
)

// LocalParticipantID identifies the local participant in levels and voice
// activity events.
const LocalParticipantID = "local"

// LocalMicrophoneTrackID is the track id of the configured microphone.
const LocalMicrophoneTrackID = "local-microphone"

var _ hostlink.Commands = (*Daemon)(nil)

// DefaultOptions converts the [capture] config section into start options.
func DefaultOptions(cfg *config.Config) capture.Options {
	c := cfg.Capture
	return capture.Options{
		ChunkIntervalMs: &c.ChunkIntervalMs,
		EncodedMimeType: &c.EncodedMimeType,
		IncludeLocal:    &c.IncludeLocal,
		IncludeRemote:   &c.IncludeRemote,
		EnableLevels:    &c.EnableLevels,
		LevelIntervalMs: &c.LevelIntervalMs,
		EnableVAD:       &c.EnableVAD,
		VADThreshold:    &c.VADThreshold,
		RawPCM:          &c.RawPCM,
		PCMBufferSize:   &c.PCMBufferSize,
	}
}

// LocalTracks returns the tracks the daemon owns regardless of host pushes.
func LocalTracks(cfg *config.Config) []tracks.Descriptor {
	if cfg == nil || !cfg.Sources.Microphone {
		return nil
	}
	return []tracks.Descriptor{{
		ID:            LocalMicrophoneTrackID,
		Kind:          capture.MediaAudio,
		Locality:      capture.LocalityLocal,
		ParticipantID: LocalParticipantID,
		DisplayName:   cfg.Sources.LocalName,
		Source:        tracks.MicrophoneSource,
		SampleRate:    cfg.Capture.SampleRate,
	}}
}

// StartCapture starts a session with the configured defaults overlaid by
// override, then applies the persisted transcription preference.
func (d *Daemon) StartCapture(ctx context.Context, override capture.Options) error {
	opts := DefaultOptions(d.cfg).Merge(override)
	if err := d.capture.Start(ctx, opts); err != nil {
		return err
	}
	if !d.transcriptionPreference(ctx) {
		return nil
	}
	if err := d.capture.EnableTranscription(); err != nil && !errors.Is(err, capture.ErrNotCapturing) {
		return fmt.Errorf("enable transcription: %w", err)
	}
	return nil
}

// StopCapture ends the active session. Stopping while idle is a no-op.
func (d *Daemon) StopCapture(context.Context) error {
	if err := d.capture.Stop(); err != nil && !errors.Is(err, capture.ErrNotCapturing) {
		return err
	}
	return nil
}

// ResyncCapture reconciles the active session against the current track
// list.
func (d *Daemon) ResyncCapture(context.Context) error {
	return d.capture.Resync()
}

// RemoveCaptureSource drops one source from the active session. The source
// returns on the next reconciliation if its track is still live.
func (d *Daemon) RemoveCaptureSource(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("source key is required")
	}
	return d.capture.RemoveSource(key)
}

// SetTranscription persists the preference and applies it to the active
// session, if any.
func (d *Daemon) SetTranscription(ctx context.Context, enabled bool) error {
	if err := d.persistTranscription(ctx, enabled); err != nil {
		return err
	}
	if !d.capture.IsCapturing() {
		return nil
	}
	var err error
	if enabled {
		err = d.capture.EnableTranscription()
	} else {
		err = d.capture.DisableTranscription()
	}
	if errors.Is(err, capture.ErrNotCapturing) {
		return nil
	}
	return err
}

// ToggleTranscription flips the session flag, or the stored preference when
// idle, and returns the new value.
func (d *Daemon) ToggleTranscription(ctx context.Context) (bool, error) {
	if d.capture.IsCapturing() {
		enabled, err := d.capture.ToggleTranscription()
		if err == nil {
			return enabled, d.persistTranscription(ctx, enabled)
		}
		if !errors.Is(err, capture.ErrNotCapturing) {
			return enabled, err
		}
	}
	enabled := !d.transcriptionPreference(ctx)
	return enabled, d.persistTranscription(ctx, enabled)
}

// ReplaceTracks swaps the host-provided track list. Local tracks from the
// config stay unless a pushed track reuses their id.
func (d *Daemon) ReplaceTracks(_ context.Context, descs []tracks.Descriptor) error {
	d.setPushed(descs)
	return d.applyTracks()
}

// CaptureStatus returns the controller snapshot.
func (d *Daemon) CaptureStatus(context.Context) capture.Status {
	return d.capture.Snapshot()
}

// Sessions lists journaled sessions, newest first.
func (d *Daemon) Sessions(ctx context.Context, limit int) ([]journal.Session, error) {
	if d.journal == nil {
		return nil, errors.New("journal disabled")
	}
	return d.journal.Sessions(ctx, limit)
}

// SessionSources lists the participants admitted to one session.
func (d *Daemon) SessionSources(ctx context.Context, sessionID string) ([]journal.SourceRecord, error) {
	if d.journal == nil {
		return nil, errors.New("journal disabled")
	}
	return d.journal.Sources(ctx, sessionID)
}

func (d *Daemon) setPushed(descs []tracks.Descriptor) {
	d.pushedMu.Lock()
	d.pushed = append([]tracks.Descriptor(nil), descs...)
	d.pushedMu.Unlock()
}

func (d *Daemon) applyTracks() error {
	d.pushedMu.Lock()
	pushed := append([]tracks.Descriptor(nil), d.pushed...)
	d.pushedMu.Unlock()

	override := make(map[string]struct{}, len(pushed))
	for _, desc := range pushed {
		override[desc.ID] = struct{}{}
	}
	merged := make([]tracks.Descriptor, 0, len(d.base)+len(pushed))
	for _, desc := range d.base {
		if _, ok := override[desc.ID]; !ok {
			merged = append(merged, desc)
		}
	}
	merged = append(merged, pushed...)
	if err := d.tracks.Replace(merged); err != nil {
		return fmt.Errorf("replace tracks: %w", err)
	}
	d.logger.Debug("tracks applied",
		logging.Int("local", len(merged)-len(pushed)),
		logging.Int("pushed", len(pushed)),
	)
	return nil
}

func (d *Daemon) transcriptionPreference(ctx context.Context) bool {
	if d.journal == nil {
		return true
	}
	enabled, err := d.journal.TranscriptionPreference(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "transcription preference unreadable", "transcription_preference_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the journal database"),
			logging.String(logging.FieldImpact, "transcription defaults to enabled"),
		)
	}
	return enabled
}

func (d *Daemon) persistTranscription(ctx context.Context, enabled bool) error {
	if d.journal == nil {
		return nil
	}
	if err := d.journal.SetTranscriptionPreference(ctx, enabled); err != nil {
		return fmt.Errorf("persist transcription preference: %w", err)
	}
	return nil
}
