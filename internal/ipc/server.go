package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"confcap/internal/capture"
	"confcap/internal/daemon"
	"confcap/internal/hub"
	"confcap/internal/logging"
	"confcap/internal/logs"
)

// ServiceName is the JSON-RPC service the daemon registers.
const ServiceName = "Confcap"

const (
	maxEventWait = 30 * time.Second
	// shutdownDelay lets the Shutdown reply reach the caller before Close
	// drops its connection.
	shutdownDelay = 100 * time.Millisecond
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			if !s.track(conn, true) {
				_ = conn.Close()
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// track registers or forgets an accepted connection. It reports false once
// the server is closing.
func (s *Server) track(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !add {
		delete(s.conns, conn)
		return true
	}
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

// Connections returns the number of connected clients.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops the server, disconnects every client, and removes the socket
// file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun confcap stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(req StartRequest, resp *StartResponse) error {
	s.logger.Debug("capture start requested")
	err := s.daemon.StartCapture(s.ctx, req.Options)
	status := s.daemon.CaptureStatus(s.ctx)
	resp.SessionID = status.SessionID
	resp.MimeType = status.MimeType
	switch {
	case errors.Is(err, capture.ErrAlreadyCapturing):
		resp.Message = "capture already running"
		return nil
	case err != nil:
		return err
	}
	resp.Started = true
	resp.Message = "capture started"
	s.logger.Info("capture started via IPC",
		logging.String(logging.FieldEventType, "ipc_capture_start"),
		logging.String(logging.FieldSessionID, status.SessionID))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("capture stop requested")
	status := s.daemon.CaptureStatus(s.ctx)
	if err := s.daemon.StopCapture(s.ctx); err != nil {
		return err
	}
	resp.Stopped = status.Capturing
	resp.SessionID = status.SessionID
	if resp.Stopped {
		s.logger.Info("capture stopped via IPC",
			logging.String(logging.FieldEventType, "ipc_capture_stop"),
			logging.String(logging.FieldSessionID, status.SessionID))
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Transcription(req TranscriptionRequest, resp *TranscriptionResponse) error {
	var err error
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "":
	case TranscriptionOn:
		err = s.daemon.SetTranscription(s.ctx, true)
	case TranscriptionOff:
		err = s.daemon.SetTranscription(s.ctx, false)
	case TranscriptionToggle:
		_, err = s.daemon.ToggleTranscription(s.ctx)
	default:
		return fmt.Errorf("unknown transcription mode %q", req.Mode)
	}
	if err != nil {
		return err
	}
	status := s.daemon.Status(s.ctx)
	resp.Capturing = status.Capture.Capturing
	resp.Enabled = status.Transcription
	if resp.Capturing {
		resp.Enabled = status.Capture.Transcription
	}
	return nil
}

func (s *service) TracksPush(req TracksPushRequest, resp *TracksPushResponse) error {
	if err := s.daemon.ReplaceTracks(s.ctx, req.Tracks); err != nil {
		return err
	}
	resp.Total = len(s.daemon.TrackStatuses())
	s.logger.Info("tracks pushed via IPC",
		logging.String(logging.FieldEventType, "ipc_tracks_push"),
		logging.Int("pushed", len(req.Tracks)),
		logging.Int("total", resp.Total))
	return nil
}

func (s *service) TracksList(_ TracksListRequest, resp *TracksListResponse) error {
	resp.Tracks = s.daemon.TrackStatuses()
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	events := s.daemon.Events()
	var (
		records []hub.Record
		cursor  uint64
		err     error
	)
	if req.Tail > 0 {
		records, cursor = events.Tail(req.Tail)
	} else {
		resp.Lagged = req.Since+1 < events.FirstSequence()
		wait := min(time.Duration(req.WaitMillis)*time.Millisecond, maxEventWait)
		records, cursor, err = events.FetchTimeout(s.ctx, req.Since, req.Limit, wait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				resp.Cursor = req.Since
				return nil
			}
			return err
		}
	}

	kinds := make(map[capture.EventKind]struct{}, len(req.Kinds))
	for _, k := range req.Kinds {
		kinds[capture.EventKind(strings.TrimSpace(k))] = struct{}{}
	}
	resp.Records = make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		if len(kinds) > 0 {
			if _, ok := kinds[rec.Event.Kind()]; !ok {
				continue
			}
		}
		data, err := hub.JSON.EncodeRecord(rec)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", rec.Sequence, err)
		}
		resp.Records = append(resp.Records, data)
	}
	resp.Cursor = cursor
	return nil
}

func (s *service) Sessions(req SessionsRequest, resp *SessionsResponse) error {
	if id := strings.TrimSpace(req.SessionID); id != "" {
		sources, err := s.daemon.SessionSources(s.ctx, id)
		if err != nil {
			return err
		}
		resp.Sources = sources
		return nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	sessions, err := s.daemon.Sessions(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Sessions = sessions
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		Filter: req.Filter,
	}
	result, err := logs.Tail(s.ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.logger.Info("shutdown requested via IPC",
		logging.String(logging.FieldEventType, "ipc_shutdown"))
	time.AfterFunc(shutdownDelay, s.daemon.RequestShutdown)
	resp.Accepted = true
	return nil
}
