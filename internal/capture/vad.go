package capture

// voiceDetector is the per-source Silent/Speaking hysteresis machine. A
// source starts speaking on the first loud sample and stops only after it
// stays quiet for SilenceDelay.
type voiceDetector struct {
	speaking bool
	silence  Timer
}

// observe feeds one level decision. arm starts the silence timer when the
// source goes quiet while speaking. It reports whether the source just
// started speaking.
func (v *voiceDetector) observe(above bool, arm func() Timer) bool {
	if above {
		if v.silence != nil {
			v.silence.Stop()
			v.silence = nil
		}
		if v.speaking {
			return false
		}
		v.speaking = true
		return true
	}
	if v.speaking && v.silence == nil {
		v.silence = arm()
	}
	return false
}

// expire handles a fired silence timer and reports whether the source just
// stopped speaking. Timers that were cancelled or replaced are ignored.
func (v *voiceDetector) expire(t Timer) bool {
	if v.silence == nil || v.silence != t {
		return false
	}
	v.silence = nil
	v.speaking = false
	return true
}

// pending reports whether a silence timer is armed.
func (v *voiceDetector) pending() bool {
	return v.silence != nil
}

func (v *voiceDetector) reset() {
	if v.silence != nil {
		v.silence.Stop()
		v.silence = nil
	}
	v.speaking = false
}
