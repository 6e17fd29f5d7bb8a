package hostlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"confcap/internal/hub"
	"confcap/internal/logging"
)

// Options configures a Server.
type Options struct {
	SocketPath  string
	Codec       hub.Codec
	Events      *hub.Hub
	Commands    Commands
	AllowAnyUID bool
	Logger      *slog.Logger
}

// Server accepts host connections on a Unix socket.
type Server struct {
	opts     Options
	logger   *slog.Logger
	listener net.Listener
	uid      uint32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer binds the socket, replacing a stale socket file.
func NewServer(ctx context.Context, opts Options) (*Server, error) {
	if opts.SocketPath == "" {
		return nil, errors.New("hostlink: socket path required")
	}
	if opts.Events == nil {
		return nil, errors.New("hostlink: event hub required")
	}
	if opts.Codec == nil {
		opts.Codec = hub.JSON
	}
	if err := os.MkdirAll(filepath.Dir(opts.SocketPath), 0o755); err != nil {
		return nil, fmt.Errorf("hostlink: ensure socket directory: %w", err)
	}
	if err := os.Remove(opts.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("hostlink: remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", opts.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("hostlink: listen: %w", err)
	}
	if err := os.Chmod(opts.SocketPath, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("hostlink: chmod socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "hostlink"),
		listener: listener,
		uid:      uint32(os.Getuid()),
		ctx:      serverCtx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections in the background.
func (s *Server) Serve() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "hostlink_accept_failed"),
					logging.String(logging.FieldErrorHint, "check the host socket path permissions"),
				)
				continue
			}
			if !s.authorize(conn) {
				_ = conn.Close()
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.track(conn, false)
				s.serveConn(conn)
			}()
		}
	}()
}

func (s *Server) authorize(conn net.Conn) bool {
	if s.opts.AllowAnyUID {
		return true
	}
	cred, err := GetPeerCredentials(conn)
	if err != nil {
		logging.WarnWithContext(s.logger, "host rejected; peer credentials unavailable", "hostlink_peer_unknown",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set host.allow_any_uid on platforms without SO_PEERCRED"),
			logging.String(logging.FieldImpact, "host connection closed"),
		)
		return false
	}
	if cred.UID != s.uid {
		logging.WarnWithContext(s.logger, "host rejected; uid mismatch", "hostlink_uid_mismatch",
			logging.Int("peer_uid", int(cred.UID)),
			logging.Int("peer_pid", cred.PID),
			logging.String(logging.FieldErrorHint, "run the host as the daemon user"),
			logging.String(logging.FieldImpact, "host connection closed"),
		)
		return false
	}
	return true
}

func (s *Server) serveConn(conn net.Conn) {
	id := uuid.NewString()
	logger := s.logger.With(logging.String("host_conn", id))
	logger.Info("host connected",
		logging.String(logging.FieldEventType, "host_connected"),
		logging.String("codec", s.opts.Codec.Name()),
	)
	sess := &session{
		id:       id,
		codec:    s.opts.Codec,
		events:   s.opts.Events,
		commands: s.opts.Commands,
		conn:     unixTransport{conn: conn},
		logger:   logger,
	}
	sess.run(s.ctx)
	logger.Info("host disconnected", logging.String(logging.FieldEventType, "host_disconnected"))
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Connections returns the number of connected hosts.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops accepting, disconnects every host, and removes the socket.
func (s *Server) Close() error {
	s.cancel()
	err := s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	_ = os.Remove(s.opts.SocketPath)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

type unixTransport struct {
	conn net.Conn
}

func (t unixTransport) WriteFrame(data []byte) error { return WriteFrame(t.conn, data) }
func (t unixTransport) ReadFrame() ([]byte, error)   { return ReadFrame(t.conn) }
func (t unixTransport) Close() error                 { return t.conn.Close() }
