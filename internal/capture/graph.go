package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"confcap/internal/audio"
	"confcap/internal/logging"
)

// Graph owns the shared mix destination and every per-source tap of one
// session. Its methods must be called with the controller lock held.
type Graph struct {
	cfg        Config
	sampleRate int
	registry   *Registry
	mix        *mixBus
	logger     *slog.Logger
	now        func() time.Time
	onPCM      func(entry *SourceEntry, frame PCMFrame)
	active     bool
}

func newGraph(cfg Config, sampleRate int, registry *Registry, logger *slog.Logger, now func() time.Time, onPCM func(*SourceEntry, PCMFrame)) *Graph {
	g := &Graph{
		cfg:        cfg,
		sampleRate: sampleRate,
		registry:   registry,
		logger:     logger,
		now:        now,
		onPCM:      onPCM,
		active:     true,
	}
	if !cfg.RawPCM {
		g.mix = newMixBus(sampleRate)
	}
	return g
}

// Active reports whether the graph accepts sources.
func (g *Graph) Active() bool {
	return g != nil && g.active
}

// AddSource admits a participant stream. A duplicate key is a logged no-op.
// Failures are wrapped in ErrSourceSetup and leave nothing registered.
func (g *Graph) AddSource(key, participantID, displayName string, locality Locality, stream audio.Stream) (*SourceEntry, error) {
	if !g.Active() {
		return nil, ErrNotCapturing
	}
	if _, exists := g.registry.Get(key); exists {
		g.logger.Warn("source already registered",
			logging.String(logging.FieldSourceKey, key),
			logging.String(logging.FieldEventType, "source_duplicate"),
			logging.String(logging.FieldErrorHint, "the host reported the same participant twice"),
			logging.String(logging.FieldImpact, "duplicate ignored"),
		)
		return nil, nil
	}
	if stream == nil {
		return nil, fmt.Errorf("%w: %s: no stream", ErrSourceSetup, key)
	}
	if !stream.Live() {
		return nil, fmt.Errorf("%w: %s: stream %s is not live", ErrSourceSetup, key, stream.ID())
	}

	entry := &SourceEntry{
		Key:           key,
		ParticipantID: participantID,
		DisplayName:   displayName,
		Locality:      locality,
		AddedAt:       g.now(),
		analysis:      newAnalysisTap(AnalysisWindowSize, g.now, analysisStaleAfter(g.sampleRate, g.cfg.LevelInterval)),
	}
	if g.cfg.RawPCM {
		onPCM := g.onPCM
		entry.pcm = newPCMTap(g.cfg.PCMBufferSize, func(samples []float32, rate int, at time.Time) {
			if onPCM == nil {
				return
			}
			if at.IsZero() {
				at = g.now()
			}
			onPCM(entry, PCMFrame{
				Samples:         samples,
				SampleRate:      rate,
				Timestamp:       at,
				ParticipantID:   entry.ParticipantID,
				ParticipantName: entry.DisplayName,
			})
		})
	}

	mix := g.mix
	detach, err := stream.Subscribe(func(frame audio.Frame) {
		if entry.released.Load() {
			return
		}
		entry.analysis.write(frame.Samples)
		if mix != nil {
			mix.write(key, frame.Samples, frame.SampleRate)
		}
		if entry.pcm != nil {
			entry.pcm.write(frame)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: subscribe: %v", ErrSourceSetup, key, err)
	}
	entry.detach = detach

	g.registry.Add(entry)
	g.logger.Info("source added",
		logging.String(logging.FieldEventType, "source_added"),
		logging.String(logging.FieldSourceKey, key),
		logging.String(logging.FieldParticipantID, participantID),
		logging.String("display_name", displayName),
		logging.Bool("raw_pcm", g.cfg.RawPCM),
	)
	return entry, nil
}

// RemoveSource detaches and forgets the source. It reports whether the key
// was registered; removing an absent key is a no-op.
func (g *Graph) RemoveSource(key string) bool {
	if g == nil {
		return false
	}
	entry, ok := g.registry.Remove(key)
	if !ok {
		return false
	}
	if g.mix != nil {
		g.mix.remove(key)
	}
	if err := entry.release(); err != nil && !errors.Is(err, audio.ErrStreamEnded) {
		g.logger.Debug("tap disconnect failed",
			logging.String(logging.FieldSourceKey, key),
			logging.Error(err),
		)
	}
	g.logger.Info("source removed",
		logging.String(logging.FieldEventType, "source_removed"),
		logging.String(logging.FieldSourceKey, key),
		logging.String(logging.FieldParticipantID, entry.ParticipantID),
	)
	return true
}

// ReleaseAll removes every source and then releases the shared mix.
func (g *Graph) ReleaseAll() {
	if g == nil {
		return
	}
	for _, key := range g.registry.Keys() {
		g.RemoveSource(key)
	}
	if g.mix != nil {
		g.mix.release()
	}
	g.active = false
}
