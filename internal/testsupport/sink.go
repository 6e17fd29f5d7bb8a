package testsupport

import (
	"sync"

	"confcap/internal/capture"
)

// RecordingSink captures emitted events for assertions.
type RecordingSink struct {
	mu     sync.Mutex
	events []capture.Event
}

// Emit implements capture.Sink.
func (s *RecordingSink) Emit(ev capture.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

// Events returns a copy of every recorded event.
func (s *RecordingSink) Events() []capture.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capture.Event(nil), s.events...)
}

// OfKind returns the recorded events of one kind.
func (s *RecordingSink) OfKind(kind capture.EventKind) []capture.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []capture.Event
	for _, ev := range s.events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns the number of recorded events of one kind.
func (s *RecordingSink) Count(kind capture.EventKind) int {
	return len(s.OfKind(kind))
}

// Len returns the number of recorded events.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Reset forgets every recorded event.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// VoiceActivity returns the recorded voice-activity events in order.
func (s *RecordingSink) VoiceActivity() []capture.VoiceActivity {
	var out []capture.VoiceActivity
	for _, ev := range s.OfKind(capture.KindVoiceActivity) {
		out = append(out, ev.(capture.VoiceActivity))
	}
	return out
}

// Statuses returns the recorded capture-status values in order.
func (s *RecordingSink) Statuses() []capture.CaptureState {
	var out []capture.CaptureState
	for _, ev := range s.OfKind(capture.KindCaptureStatus) {
		out = append(out, ev.(capture.CaptureStatus).Status)
	}
	return out
}
