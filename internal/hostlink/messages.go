package hostlink

import (
	"context"

	"confcap/internal/capture"
	"confcap/internal/hub"
	"confcap/internal/tracks"
)

// ProtocolVersion is sent in the hello frame.
const ProtocolVersion = 1

// Frame types. Event frames use the hub record layout with type "event".
const (
	TypeHello   = "hello"
	TypeEvent   = hub.RecordType
	TypeLagged  = "lagged"
	TypeCommand = "command"
	TypeReply   = "reply"
)

// Command names carried by command frames.
const (
	CmdStart         = "start"
	CmdStop          = "stop"
	CmdTranscription = "transcription"
	CmdTracks        = "tracks"
	CmdStatus        = "status"
	CmdSubscribe     = "subscribe"
	CmdPing          = "ping"
	CmdResync        = "resync"
	CmdRemoveSource  = "remove-source"
)

// Hello is the first frame on every connection.
type Hello struct {
	Type      string `json:"type" msgpack:"type"`
	Version   int    `json:"version" msgpack:"version"`
	Codec     string `json:"codec" msgpack:"codec"`
	Cursor    uint64 `json:"cursor" msgpack:"cursor"`
	Capturing bool   `json:"capturing" msgpack:"capturing"`
}

// Lagged tells a consumer that buffered events were overwritten before it
// read them.
type Lagged struct {
	Type   string `json:"type" msgpack:"type"`
	Missed uint64 `json:"missed" msgpack:"missed"`
}

// Command is a request from the host.
type Command struct {
	Type    string              `json:"type" msgpack:"type"`
	ID      string              `json:"id" msgpack:"id"`
	Command string              `json:"command" msgpack:"command"`
	Options *capture.Options    `json:"options,omitempty" msgpack:"options,omitempty"`
	Enabled *bool               `json:"enabled,omitempty" msgpack:"enabled,omitempty"`
	Tracks  []tracks.Descriptor `json:"tracks,omitempty" msgpack:"tracks,omitempty"`
	Kinds   []capture.EventKind `json:"kinds,omitempty" msgpack:"kinds,omitempty"`
	Key     string              `json:"key,omitempty" msgpack:"key,omitempty"`
}

// Reply answers one Command.
type Reply struct {
	Type   string          `json:"type" msgpack:"type"`
	ID     string          `json:"id" msgpack:"id"`
	OK     bool            `json:"ok" msgpack:"ok"`
	Error  string          `json:"error,omitempty" msgpack:"error,omitempty"`
	Status *capture.Status `json:"status,omitempty" msgpack:"status,omitempty"`
}

// Commands is implemented by the daemon to execute host requests.
type Commands interface {
	StartCapture(ctx context.Context, opts capture.Options) error
	StopCapture(ctx context.Context) error
	SetTranscription(ctx context.Context, enabled bool) error
	ReplaceTracks(ctx context.Context, descs []tracks.Descriptor) error
	CaptureStatus(ctx context.Context) capture.Status
	ResyncCapture(ctx context.Context) error
	RemoveCaptureSource(ctx context.Context, key string) error
}

type frameHeader struct {
	Type string `json:"type" msgpack:"type"`
}
