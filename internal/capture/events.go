package capture

import "time"

// EventKind discriminates outbound events.
type EventKind string

const (
	KindAudioChunk          EventKind = "audio-chunk"
	KindPCMFrame            EventKind = "pcm-frame"
	KindAudioLevels         EventKind = "audio-levels"
	KindVoiceActivity       EventKind = "voice-activity"
	KindCaptureStatus       EventKind = "capture-status"
	KindTranscriptionStatus EventKind = "transcription-status"
)

// Event is one message for the embedding host.
type Event interface {
	Kind() EventKind
	At() time.Time
}

// AudioChunk carries one time slice of the encoded mix.
type AudioChunk struct {
	Data      []byte    `json:"data" msgpack:"data"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	MimeType  string    `json:"mimeType" msgpack:"mimeType"`
}

// PCMFrame carries one raw buffer from a single participant.
type PCMFrame struct {
	Samples         []float32 `json:"samples" msgpack:"samples"`
	SampleRate      int       `json:"sampleRate" msgpack:"sampleRate"`
	Timestamp       time.Time `json:"timestamp" msgpack:"timestamp"`
	ParticipantID   string    `json:"participantId" msgpack:"participantId"`
	ParticipantName string    `json:"participantName" msgpack:"participantName"`
}

// AudioLevels maps participant ids to normalized levels in [0,1].
type AudioLevels struct {
	Levels    map[string]float64 `json:"levels" msgpack:"levels"`
	Timestamp time.Time          `json:"timestamp" msgpack:"timestamp"`
}

// VoiceActivity reports a debounced speaking transition.
type VoiceActivity struct {
	ParticipantID string    `json:"participantId" msgpack:"participantId"`
	Speaking      bool      `json:"speaking" msgpack:"speaking"`
	Timestamp     time.Time `json:"timestamp" msgpack:"timestamp"`
}

// CaptureState is the lifecycle value carried by CaptureStatus.
type CaptureState string

const (
	StateStarted CaptureState = "started"
	StateStopped CaptureState = "stopped"
	StateError   CaptureState = "error"
)

// CaptureStatus reports lifecycle changes and session-level failures.
type CaptureStatus struct {
	Status    CaptureState `json:"status" msgpack:"status"`
	Error     string       `json:"error,omitempty" msgpack:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp" msgpack:"timestamp"`
}

// TranscriptionStatus reports the transcription flag after a change.
type TranscriptionStatus struct {
	Enabled   bool      `json:"enabled" msgpack:"enabled"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

func (AudioChunk) Kind() EventKind          { return KindAudioChunk }
func (PCMFrame) Kind() EventKind            { return KindPCMFrame }
func (AudioLevels) Kind() EventKind         { return KindAudioLevels }
func (VoiceActivity) Kind() EventKind       { return KindVoiceActivity }
func (CaptureStatus) Kind() EventKind       { return KindCaptureStatus }
func (TranscriptionStatus) Kind() EventKind { return KindTranscriptionStatus }

func (e AudioChunk) At() time.Time          { return e.Timestamp }
func (e PCMFrame) At() time.Time            { return e.Timestamp }
func (e AudioLevels) At() time.Time         { return e.Timestamp }
func (e VoiceActivity) At() time.Time       { return e.Timestamp }
func (e CaptureStatus) At() time.Time       { return e.Timestamp }
func (e TranscriptionStatus) At() time.Time { return e.Timestamp }

// Sink receives every event the controller emits. Emit is called while the
// controller holds its lock, so implementations must not block or call back
// into the controller.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ev Event) { f(ev) }

// MultiSink forwards each event to every member in order.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

type nopSink struct{}

func (nopSink) Emit(Event) {}
