package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"confcap/internal/capture"
)

// Codec serializes records and control messages for a transport.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	EncodeRecord(rec Record) ([]byte, error)
	DecodeRecord(data []byte) (Record, error)
}

var (
	// JSON encodes records as {"type","seq","kind","event"} objects.
	JSON Codec = jsonCodec{}
	// MsgPack encodes the same shape with MessagePack.
	MsgPack Codec = msgpackCodec{}
)

// CodecByName resolves "json" or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// RecordType is the "type" field of every encoded record.
const RecordType = "event"

type wireRecord struct {
	Type  string            `json:"type" msgpack:"type"`
	Seq   uint64            `json:"seq" msgpack:"seq"`
	Kind  capture.EventKind `json:"kind" msgpack:"kind"`
	Event capture.Event     `json:"event" msgpack:"event"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) EncodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(wireRecord{Type: RecordType, Seq: rec.Sequence, Kind: rec.Event.Kind(), Event: rec.Event})
}

func (jsonCodec) DecodeRecord(data []byte) (Record, error) {
	var w struct {
		Seq   uint64            `json:"seq"`
		Kind  capture.EventKind `json:"kind"`
		Event json.RawMessage   `json:"event"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	ev, err := decodeEvent(w.Kind, func(v any) error { return json.Unmarshal(w.Event, v) })
	if err != nil {
		return Record{}, err
	}
	return Record{Sequence: w.Seq, Event: ev}, nil
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpackMarshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpackUnmarshal(data, v) }

func (msgpackCodec) EncodeRecord(rec Record) ([]byte, error) {
	return msgpackMarshal(wireRecord{Type: RecordType, Seq: rec.Sequence, Kind: rec.Event.Kind(), Event: rec.Event})
}

func (msgpackCodec) DecodeRecord(data []byte) (Record, error) {
	var w struct {
		Seq   uint64             `msgpack:"seq"`
		Kind  capture.EventKind  `msgpack:"kind"`
		Event msgpack.RawMessage `msgpack:"event"`
	}
	if err := msgpackUnmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	ev, err := decodeEvent(w.Kind, func(v any) error { return msgpackUnmarshal(w.Event, v) })
	if err != nil {
		return Record{}, err
	}
	return Record{Sequence: w.Seq, Event: ev}, nil
}

// Structs without msgpack tags fall back to their json names.
func msgpackMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func msgpackUnmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// decodeEvent builds the concrete event type for kind.
func decodeEvent(kind capture.EventKind, unmarshal func(any) error) (capture.Event, error) {
	var err error
	switch kind {
	case capture.KindAudioChunk:
		var ev capture.AudioChunk
		err = unmarshal(&ev)
		return ev, wrapDecode(kind, err)
	case capture.KindPCMFrame:
		var ev capture.PCMFrame
		err = unmarshal(&ev)
		return ev, wrapDecode(kind, err)
	case capture.KindAudioLevels:
		var ev capture.AudioLevels
		err = unmarshal(&ev)
		return ev, wrapDecode(kind, err)
	case capture.KindVoiceActivity:
		var ev capture.VoiceActivity
		err = unmarshal(&ev)
		return ev, wrapDecode(kind, err)
	case capture.KindCaptureStatus:
		var ev capture.CaptureStatus
		err = unmarshal(&ev)
		return ev, wrapDecode(kind, err)
	case capture.KindTranscriptionStatus:
		var ev capture.TranscriptionStatus
		err = unmarshal(&ev)
		return ev, wrapDecode(kind, err)
	default:
		return nil, fmt.Errorf("decode record: unknown event kind %q", kind)
	}
}

func wrapDecode(kind capture.EventKind, err error) error {
	if err != nil {
		return fmt.Errorf("decode %s event: %w", kind, err)
	}
	return nil
}
