package hostlink_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"confcap/internal/capture"
	"confcap/internal/hostlink"
	"confcap/internal/hub"
	"confcap/internal/logging"
	"confcap/internal/tracks"
)

type fakeCommands struct {
	mu            sync.Mutex
	started       []capture.Options
	stops         int
	transcription []bool
	pushed        [][]tracks.Descriptor
	resyncs       int
	removed       []string
	capturing     bool
}

func (f *fakeCommands) StartCapture(_ context.Context, opts capture.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capturing {
		return capture.ErrAlreadyCapturing
	}
	f.capturing = true
	f.started = append(f.started, opts)
	return nil
}

func (f *fakeCommands) StopCapture(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturing = false
	f.stops++
	return nil
}

func (f *fakeCommands) SetTranscription(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcription = append(f.transcription, enabled)
	return nil
}

func (f *fakeCommands) ReplaceTracks(_ context.Context, descs []tracks.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, descs)
	return nil
}

func (f *fakeCommands) CaptureStatus(context.Context) capture.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capture.Status{Capturing: f.capturing, SessionID: "session-1"}
}

func (f *fakeCommands) ResyncCapture(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.capturing {
		return capture.ErrNotCapturing
	}
	f.resyncs++
	return nil
}

func (f *fakeCommands) RemoveCaptureSource(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.capturing {
		return capture.ErrNotCapturing
	}
	f.removed = append(f.removed, key)
	return nil
}

func statusEvent(state capture.CaptureState) capture.Event {
	return capture.CaptureStatus{Status: state, Timestamp: time.Unix(10, 0).UTC()}
}

func startServer(t *testing.T, codec hub.Codec) (*hub.Hub, *fakeCommands, string) {
	t.Helper()
	events := hub.New(64)
	commands := &fakeCommands{}
	socket := filepath.Join(t.TempDir(), "h.sock")
	srv, err := hostlink.NewServer(context.Background(), hostlink.Options{
		SocketPath:  socket,
		Codec:       codec,
		Events:      events,
		Commands:    commands,
		AllowAnyUID: runtime.GOOS != "linux",
		Logger:      logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() { _ = srv.Close() })
	return events, commands, socket
}

func dial(t *testing.T, socket string, codec hub.Codec) *hostlink.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := hostlink.Dial(ctx, socket, codec)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func recvWithin(t *testing.T, client *hostlink.Client) hostlink.Message {
	t.Helper()
	type result struct {
		msg hostlink.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := client.Recv()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("Recv: %v", r.err)
		}
		return r.msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return hostlink.Message{}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := hostlink.WriteFrame(&buf, []byte("one")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := hostlink.WriteFrame(&buf, []byte("two")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	for _, want := range []string{"one", "two"} {
		got, err := hostlink.ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != want {
			t.Fatalf("ReadFrame = %q, want %q", got, want)
		}
	}

	if err := hostlink.WriteFrame(&buf, nil); err == nil {
		t.Fatal("expected error for empty frame")
	}

	var oversized bytes.Buffer
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, hostlink.MaxFrameSize+1)
	oversized.Write(header)
	if _, err := hostlink.ReadFrame(&oversized); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestServerStreamsEventsFromConnectCursor(t *testing.T) {
	events, _, socket := startServer(t, hub.JSON)
	events.Emit(statusEvent(capture.StateStarted))

	client := dial(t, socket, hub.JSON)
	hello := client.Hello()
	if hello.Cursor != 1 || hello.Codec != "json" || hello.Version != hostlink.ProtocolVersion {
		t.Fatalf("unexpected hello: %+v", hello)
	}

	events.Emit(statusEvent(capture.StateStopped))
	msg := recvWithin(t, client)
	if msg.Record == nil {
		t.Fatalf("expected event frame, got %+v", msg)
	}
	if msg.Record.Sequence != 2 {
		t.Fatalf("sequence = %d, want 2", msg.Record.Sequence)
	}
	ev, ok := msg.Record.Event.(capture.CaptureStatus)
	if !ok || ev.Status != capture.StateStopped {
		t.Fatalf("unexpected event: %#v", msg.Record.Event)
	}
}

func TestServerExecutesCommands(t *testing.T) {
	_, commands, socket := startServer(t, hub.JSON)
	client := dial(t, socket, hub.JSON)

	interval := 500
	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdStart, Options: &capture.Options{ChunkIntervalMs: &interval}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdStart}); err == nil || !strings.Contains(err.Error(), "already capturing") {
		t.Fatalf("expected already capturing, got %v", err)
	}

	enabled := false
	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdTranscription, Enabled: &enabled}); err != nil {
		t.Fatalf("transcription: %v", err)
	}
	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdTranscription}); err == nil {
		t.Fatal("expected error without enabled flag")
	}

	reply, err := client.Call(hostlink.Command{Command: hostlink.CmdStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if reply.Status == nil || !reply.Status.Capturing || reply.Status.SessionID != "session-1" {
		t.Fatalf("unexpected status reply: %+v", reply)
	}

	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdResync}); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdRemoveSource, Key: "remote-alice"}); err != nil {
		t.Fatalf("remove-source: %v", err)
	}
	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdRemoveSource}); err == nil {
		t.Fatal("expected remove-source without key to fail")
	}

	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdStop}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdResync}); err == nil || !strings.Contains(err.Error(), "not capturing") {
		t.Fatalf("expected resync while idle to fail, got %v", err)
	}
	if _, err := client.Call(hostlink.Command{Command: "rewind"}); err == nil {
		t.Fatal("expected unknown command error")
	}

	commands.mu.Lock()
	defer commands.mu.Unlock()
	if len(commands.started) != 1 || commands.started[0].ChunkIntervalMs == nil || *commands.started[0].ChunkIntervalMs != 500 {
		t.Fatalf("unexpected start options: %+v", commands.started)
	}
	if len(commands.transcription) != 1 || commands.transcription[0] {
		t.Fatalf("unexpected transcription calls: %v", commands.transcription)
	}
	if commands.stops != 1 {
		t.Fatalf("stops = %d, want 1", commands.stops)
	}
	if commands.resyncs != 1 || len(commands.removed) != 1 || commands.removed[0] != "remote-alice" {
		t.Fatalf("unexpected resync/remove calls: %d %v", commands.resyncs, commands.removed)
	}
}

func TestSubscribeFiltersKinds(t *testing.T) {
	events, _, socket := startServer(t, hub.JSON)
	client := dial(t, socket, hub.JSON)

	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdSubscribe, Kinds: []capture.EventKind{capture.KindVoiceActivity}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	events.Emit(statusEvent(capture.StateStarted))
	events.Emit(capture.VoiceActivity{ParticipantID: "alice", Speaking: true, Timestamp: time.Unix(11, 0).UTC()})

	msg := recvWithin(t, client)
	if msg.Record == nil {
		t.Fatalf("expected event frame, got %+v", msg)
	}
	va, ok := msg.Record.Event.(capture.VoiceActivity)
	if !ok || va.ParticipantID != "alice" || !va.Speaking {
		t.Fatalf("unexpected event: %#v", msg.Record.Event)
	}
	if msg.Record.Sequence != 2 {
		t.Fatalf("sequence = %d, want 2", msg.Record.Sequence)
	}
}

func TestMsgPackOverSocket(t *testing.T) {
	events, commands, socket := startServer(t, hub.MsgPack)
	client := dial(t, socket, hub.MsgPack)
	if client.Hello().Codec != "msgpack" {
		t.Fatalf("hello codec = %q", client.Hello().Codec)
	}

	descs := []tracks.Descriptor{{ID: "t1", Kind: "audio", Locality: capture.LocalityRemote, ParticipantID: "bob", Source: "/tmp/bob.pcm"}}
	if _, err := client.Call(hostlink.Command{Command: hostlink.CmdTracks, Tracks: descs}); err != nil {
		t.Fatalf("tracks: %v", err)
	}

	events.Emit(capture.AudioChunk{Data: []byte{1, 2, 3}, MimeType: "audio/webm", Timestamp: time.Unix(12, 0).UTC()})
	msg := recvWithin(t, client)
	chunk, ok := msg.Record.Event.(capture.AudioChunk)
	if !ok || !bytes.Equal(chunk.Data, []byte{1, 2, 3}) || chunk.MimeType != "audio/webm" {
		t.Fatalf("unexpected event: %#v", msg.Record.Event)
	}

	commands.mu.Lock()
	defer commands.mu.Unlock()
	if len(commands.pushed) != 1 || commands.pushed[0][0].ParticipantID != "bob" || commands.pushed[0][0].Locality != capture.LocalityRemote {
		t.Fatalf("unexpected pushed tracks: %+v", commands.pushed)
	}
}

func TestWebSocketServer(t *testing.T) {
	for _, codec := range []hub.Codec{hub.JSON, hub.MsgPack} {
		t.Run(codec.Name(), func(t *testing.T) {
			events := hub.New(16)
			commands := &fakeCommands{}
			ws, err := hostlink.NewWebSocketServer(context.Background(), hostlink.WebSocketOptions{
				Events:   events,
				Commands: commands,
				Logger:   logging.NewNop(),
			})
			if err != nil {
				t.Fatalf("NewWebSocketServer: %v", err)
			}
			srv := httptest.NewServer(ws.Handler())
			t.Cleanup(func() {
				_ = ws.Close()
				srv.Close()
			})

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client, err := hostlink.DialWebSocket(ctx, "ws://"+srv.Listener.Addr().String(), codec)
			if err != nil {
				t.Fatalf("DialWebSocket: %v", err)
			}
			defer client.Close()
			if client.Hello().Codec != codec.Name() {
				t.Fatalf("hello codec = %q, want %q", client.Hello().Codec, codec.Name())
			}

			if _, err := client.Call(hostlink.Command{Command: hostlink.CmdPing}); err != nil {
				t.Fatalf("ping: %v", err)
			}
			events.Emit(capture.AudioLevels{Levels: map[string]float64{"alice": 0.25}, Timestamp: time.Unix(13, 0).UTC()})
			msg := recvWithin(t, client)
			levels, ok := msg.Record.Event.(capture.AudioLevels)
			if !ok || levels.Levels["alice"] != 0.25 {
				t.Fatalf("unexpected event: %#v", msg.Record.Event)
			}
		})
	}
}

func TestWebSocketRejectsUnknownCodec(t *testing.T) {
	ws, err := hostlink.NewWebSocketServer(context.Background(), hostlink.WebSocketOptions{Events: hub.New(4), Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("NewWebSocketServer: %v", err)
	}
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()
	defer ws.Close()

	resp, err := srv.Client().Get(srv.URL + hostlink.EventsPath + "?codec=xml")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
