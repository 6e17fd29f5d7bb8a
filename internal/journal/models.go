package journal

import "time"

// Session is one recorded capture session.
type Session struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	MimeType   string     `json:"mime_type,omitempty"`
	RawPCM     bool       `json:"raw_pcm"`
	ConfigJSON string     `json:"config_json,omitempty"`
}

// Duration returns how long the session ran, or zero while it is open.
func (s Session) Duration() time.Duration {
	if s.StoppedAt == nil {
		return 0
	}
	return s.StoppedAt.Sub(s.StartedAt)
}

// SourceRecord is one admission of a participant into a session.
type SourceRecord struct {
	SessionID     string     `json:"session_id"`
	SourceKey     string     `json:"source_key"`
	ParticipantID string     `json:"participant_id,omitempty"`
	DisplayName   string     `json:"display_name,omitempty"`
	Locality      string     `json:"locality"`
	AddedAt       time.Time  `json:"added_at"`
	RemovedAt     *time.Time `json:"removed_at,omitempty"`
}
