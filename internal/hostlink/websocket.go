package hostlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"confcap/internal/hub"
	"confcap/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	// EventsPath is the WebSocket endpoint served by WebSocketServer.
	EventsPath = "/events"
)

// WebSocketOptions configures a WebSocketServer.
type WebSocketOptions struct {
	Bind     string
	Codec    hub.Codec
	Events   *hub.Hub
	Commands Commands
	Logger   *slog.Logger
}

// WebSocketServer serves the host link over WebSocket for hosts that cannot
// open Unix sockets. JSON codecs use text messages; msgpack uses binary.
type WebSocketServer struct {
	opts     WebSocketOptions
	logger   *slog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	srv      *http.Server
	listener net.Listener
}

// NewWebSocketServer prepares the handler. Call Listen to bind opts.Bind or
// mount Handler on an existing server.
func NewWebSocketServer(ctx context.Context, opts WebSocketOptions) (*WebSocketServer, error) {
	if opts.Events == nil {
		return nil, errors.New("hostlink: event hub required")
	}
	if opts.Codec == nil {
		opts.Codec = hub.JSON
	}
	serverCtx, cancel := context.WithCancel(ctx)
	s := &WebSocketServer{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "hostlink-ws"),
		ctx:    serverCtx,
		cancel: cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     sameHostOrigin,
	}
	return s, nil
}

// Handler returns the HTTP handler serving EventsPath.
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(EventsPath, s.handleEvents)
	return mux
}

// Listen binds opts.Bind and serves in the background.
func (s *WebSocketServer) Listen() error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("hostlink: websocket listen %s: %w", s.opts.Bind, err)
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("websocket server stopped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "hostlink_ws_failed"),
				logging.String(logging.FieldErrorHint, "check host.websocket_bind"),
			)
		}
	}()
	s.logger.Info("websocket host link listening",
		logging.String(logging.FieldEventType, "hostlink_ws_listening"),
		logging.String("addr", listener.Addr().String()),
	)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *WebSocketServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *WebSocketServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	codec := s.opts.Codec
	if name := r.URL.Query().Get("codec"); name != "" {
		resolved, err := hub.CodecByName(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = resolved
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	id := uuid.NewString()
	logger := s.logger.With(logging.String("host_conn", id))
	logger.Info("host connected",
		logging.String(logging.FieldEventType, "host_connected"),
		logging.String("codec", codec.Name()),
		logging.String("remote", r.RemoteAddr),
	)

	messageType := websocket.TextMessage
	if codec.Name() == hub.MsgPack.Name() {
		messageType = websocket.BinaryMessage
	}
	t := newWSTransport(conn, messageType)

	s.wg.Add(1)
	defer s.wg.Done()
	done := make(chan struct{})
	go t.pingLoop(done)
	sess := &session{
		id:       id,
		codec:    codec,
		events:   s.opts.Events,
		commands: s.opts.Commands,
		conn:     t,
		logger:   logger,
	}
	sess.run(s.ctx)
	close(done)
	logger.Info("host disconnected", logging.String(logging.FieldEventType, "host_disconnected"))
}

// Close disconnects every host and stops the listener.
func (s *WebSocketServer) Close() error {
	s.cancel()
	var err error
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.srv.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

type wsTransport struct {
	conn        *websocket.Conn
	messageType int
	closeOnce   sync.Once
}

func newWSTransport(conn *websocket.Conn, messageType int) *wsTransport {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsTransport{conn: conn, messageType: messageType}
}

func (t *wsTransport) WriteFrame(data []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(t.messageType, data)
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// sameHostOrigin accepts non-browser clients and pages served from the
// host the request was addressed to.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
