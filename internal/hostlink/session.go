package hostlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"confcap/internal/capture"
	"confcap/internal/hub"
	"confcap/internal/logging"
)

const (
	fetchBatch   = 256
	fetchTimeout = time.Second
)

// transport moves whole frames.
type transport interface {
	WriteFrame(data []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// session serves one connected host: it streams hub records and answers
// command frames until the context ends or either side fails.
type session struct {
	id       string
	codec    hub.Codec
	events   *hub.Hub
	commands Commands
	conn     transport
	logger   *slog.Logger

	writeMu sync.Mutex
	kinds   atomic.Pointer[map[capture.EventKind]struct{}]
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.conn.Close()

	cursor := s.events.LastSequence()
	hello := Hello{Type: TypeHello, Version: ProtocolVersion, Codec: s.codec.Name(), Cursor: cursor}
	if s.commands != nil {
		hello.Capturing = s.commands.CaptureStatus(ctx).Capturing
	}
	if err := s.send(hello); err != nil {
		s.logger.Debug("hello failed", logging.Error(err))
		return
	}

	go func() {
		// The reader owns connection teardown on the command side.
		defer cancel()
		s.readLoop(ctx)
	}()

	for {
		records, next, err := s.events.FetchTimeout(ctx, cursor, fetchBatch, fetchTimeout)
		if err != nil {
			return
		}
		if first := s.events.FirstSequence(); len(records) > 0 && cursor+1 < first {
			if err := s.send(Lagged{Type: TypeLagged, Missed: first - cursor - 1}); err != nil {
				return
			}
		}
		for _, rec := range records {
			if !s.wants(rec.Event.Kind()) {
				continue
			}
			data, err := s.codec.EncodeRecord(rec)
			if err != nil {
				s.logger.Warn("encode event failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "hostlink_encode_failed"),
					logging.String(logging.FieldErrorHint, "report the event kind to the maintainers"),
					logging.String(logging.FieldImpact, "one event skipped for this host"),
				)
				continue
			}
			if err := s.write(data); err != nil {
				s.logger.Debug("event write failed", logging.Error(err))
				return
			}
		}
		cursor = next
	}
}

func (s *session) readLoop(ctx context.Context) {
	for {
		data, err := s.conn.ReadFrame()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("host disconnected", logging.Error(err))
			}
			return
		}
		var header frameHeader
		if err := s.codec.Unmarshal(data, &header); err != nil || header.Type != TypeCommand {
			s.logger.Debug("ignoring frame", logging.String("frame_type", header.Type))
			continue
		}
		var cmd Command
		if err := s.codec.Unmarshal(data, &cmd); err != nil {
			_ = s.send(Reply{Type: TypeReply, Error: fmt.Sprintf("decode command: %v", err)})
			continue
		}
		if err := s.send(s.execute(ctx, cmd)); err != nil {
			return
		}
	}
}

func (s *session) execute(ctx context.Context, cmd Command) Reply {
	reply := Reply{Type: TypeReply, ID: cmd.ID}
	logger := s.logger.With(logging.String(logging.FieldCorrelationID, cmd.ID))
	logger.Debug("host command", logging.String("command", cmd.Command))

	var err error
	switch cmd.Command {
	case CmdPing:
	case CmdSubscribe:
		s.setKinds(cmd.Kinds)
	case CmdStatus:
		if s.commands == nil {
			err = errors.New("commands unavailable")
			break
		}
		st := s.commands.CaptureStatus(ctx)
		reply.Status = &st
	case CmdStart, CmdStop, CmdTranscription, CmdTracks, CmdResync, CmdRemoveSource:
		if s.commands == nil {
			err = errors.New("commands unavailable")
			break
		}
		err = s.dispatch(ctx, cmd)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Command)
	}
	if err != nil {
		if !capture.IsBenign(err) {
			logging.WarnWithContext(logger, "host command failed", "host_command_failed",
				logging.String("command", cmd.Command),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the command payload sent by the host"),
				logging.String(logging.FieldImpact, "command not applied"),
			)
		}
		reply.Error = err.Error()
		return reply
	}
	reply.OK = true
	return reply
}

func (s *session) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Command {
	case CmdStart:
		var opts capture.Options
		if cmd.Options != nil {
			opts = *cmd.Options
		}
		return s.commands.StartCapture(ctx, opts)
	case CmdStop:
		return s.commands.StopCapture(ctx)
	case CmdTranscription:
		if cmd.Enabled == nil {
			return errors.New("transcription command requires enabled")
		}
		return s.commands.SetTranscription(ctx, *cmd.Enabled)
	case CmdTracks:
		return s.commands.ReplaceTracks(ctx, cmd.Tracks)
	case CmdResync:
		return s.commands.ResyncCapture(ctx)
	case CmdRemoveSource:
		if strings.TrimSpace(cmd.Key) == "" {
			return errors.New("remove-source command requires key")
		}
		return s.commands.RemoveCaptureSource(ctx, cmd.Key)
	}
	return nil
}

func (s *session) setKinds(kinds []capture.EventKind) {
	if len(kinds) == 0 {
		s.kinds.Store(nil)
		return
	}
	set := make(map[capture.EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	s.kinds.Store(&set)
}

func (s *session) wants(kind capture.EventKind) bool {
	set := s.kinds.Load()
	if set == nil {
		return true
	}
	_, ok := (*set)[kind]
	return ok
}

func (s *session) send(v any) error {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("hostlink: marshal frame: %w", err)
	}
	return s.write(data)
}

func (s *session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteFrame(data)
}
