package ipc

import (
	"encoding/json"

	"confcap/internal/capture"
	"confcap/internal/daemon"
	"confcap/internal/journal"
	"confcap/internal/logs"
	"confcap/internal/tracks"
)

// StartRequest starts a capture session. Nil option fields keep the
// daemon's configured defaults.
type StartRequest struct {
	Options capture.Options `json:"options"`
}

// StartResponse reports the session that is now active.
type StartResponse struct {
	Started   bool   `json:"started"`
	SessionID string `json:"session_id,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Message   string `json:"message"`
}

// StopRequest ends the active capture session.
type StopRequest struct{}

// StopResponse reports whether a session was running.
type StopResponse struct {
	Stopped   bool   `json:"stopped"`
	SessionID string `json:"session_id,omitempty"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the daemon status snapshot.
type StatusResponse = daemon.Status

// Transcription modes accepted by TranscriptionRequest.
const (
	TranscriptionOn     = "on"
	TranscriptionOff    = "off"
	TranscriptionToggle = "toggle"
)

// TranscriptionRequest changes the transcription flag. An empty mode only
// reports the current value.
type TranscriptionRequest struct {
	Mode string `json:"mode"`
}

// TranscriptionResponse reports the flag after the request.
type TranscriptionResponse struct {
	Enabled   bool `json:"enabled"`
	Capturing bool `json:"capturing"`
}

// TracksPushRequest replaces the host-provided track list.
type TracksPushRequest struct {
	Tracks []tracks.Descriptor `json:"tracks"`
}

// TracksPushResponse reports how many tracks the daemon now knows.
type TracksPushResponse struct {
	Total int `json:"total"`
}

// TracksListRequest lists known tracks.
type TracksListRequest struct{}

// TracksListResponse contains every track and its stream state.
type TracksListResponse struct {
	Tracks []tracks.Status `json:"tracks"`
}

// EventsRequest reads buffered events after Since. Tail, when positive,
// ignores Since and returns the newest Tail events instead.
type EventsRequest struct {
	Since      uint64   `json:"since"`
	Limit      int      `json:"limit"`
	Tail       int      `json:"tail"`
	WaitMillis int      `json:"wait_millis"`
	Kinds      []string `json:"kinds,omitempty"`
}

// EventsResponse carries JSON-encoded event records and the next cursor.
type EventsResponse struct {
	Records []json.RawMessage `json:"records"`
	Cursor  uint64            `json:"cursor"`
	// Lagged is set when events between Since and the oldest buffered
	// record were dropped.
	Lagged bool `json:"lagged"`
}

// SessionsRequest lists journaled sessions, or the sources of one session
// when SessionID is set.
type SessionsRequest struct {
	Limit     int    `json:"limit"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionsResponse contains journal rows.
type SessionsResponse struct {
	Sessions []journal.Session      `json:"sessions,omitempty"`
	Sources  []journal.SourceRecord `json:"sources,omitempty"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64       `json:"offset"`
	Limit      int         `json:"limit"`
	Follow     bool        `json:"follow"`
	WaitMillis int         `json:"wait_millis"`
	Filter     logs.Filter `json:"filter"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the request.
type ShutdownResponse struct {
	Accepted bool `json:"accepted"`
}
