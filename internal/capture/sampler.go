package capture

import "confcap/internal/logging"

// sampleTick reads every source's analysis window, updates levels and VAD
// state, and emits one audio-levels event. Ticks from a finished session
// are ignored.
func (c *Controller) sampleTick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing || c.gen != gen {
		return
	}

	entries := c.registry.Entries()
	if len(entries) == 0 {
		return
	}
	now := c.clock.Now()
	levels := make(map[string]float64, len(entries))
	for _, entry := range entries {
		c.window = entry.analysis.window(c.window)
		level := Level(c.window)
		entry.LastLevel = level
		entry.Smoothed = AnalysisSmoothing*entry.Smoothed + (1-AnalysisSmoothing)*level
		levels[entry.ParticipantID] = level

		if !c.cfg.EnableVAD {
			continue
		}
		current := entry
		if current.vad.observe(level > c.cfg.VADThreshold, func() Timer { return c.armSilence(gen, current) }) {
			c.logger.Debug("voice activity started",
				logging.String(logging.FieldSourceKey, current.Key),
				logging.Float64("level", level),
			)
			c.sink.Emit(VoiceActivity{ParticipantID: current.ParticipantID, Speaking: true, Timestamp: now})
		}
	}
	c.sink.Emit(AudioLevels{Levels: levels, Timestamp: now})
}

// armSilence schedules the end of speech for entry.
func (c *Controller) armSilence(gen uint64, entry *SourceEntry) Timer {
	var t Timer
	t = c.clock.AfterFunc(SilenceDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.capturing || c.gen != gen {
			return
		}
		if current, ok := c.registry.Get(entry.Key); !ok || current != entry {
			return
		}
		if entry.vad.expire(t) {
			c.logger.Debug("voice activity stopped", logging.String(logging.FieldSourceKey, entry.Key))
			c.sink.Emit(VoiceActivity{ParticipantID: entry.ParticipantID, Speaking: false, Timestamp: c.clock.Now()})
		}
	})
	return t
}
