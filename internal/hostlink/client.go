package hostlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"confcap/internal/hub"
)

// Message is one decoded inbound frame. Exactly one pointer is set.
type Message struct {
	Type   string
	Record *hub.Record
	Lagged *Lagged
	Reply  *Reply
}

// Client is the host side of the link. It is used by the CLI and by tests.
type Client struct {
	conn  transport
	codec hub.Codec
	hello Hello

	writeMu sync.Mutex
	nextID  int

	pending []Message
}

// Dial connects to the daemon's Unix socket and reads the hello frame.
func Dial(ctx context.Context, socketPath string, codec hub.Codec) (*Client, error) {
	if codec == nil {
		codec = hub.JSON
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("hostlink: dial %s: %w", socketPath, err)
	}
	return newClient(unixTransport{conn: conn}, codec)
}

// DialWebSocket connects to a WebSocketServer at base (ws://host:port).
func DialWebSocket(ctx context.Context, base string, codec hub.Codec) (*Client, error) {
	if codec == nil {
		codec = hub.JSON
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("hostlink: parse url: %w", err)
	}
	u.Path = EventsPath
	q := u.Query()
	q.Set("codec", codec.Name())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("hostlink: dial %s: %w", u.Redacted(), err)
	}
	conn.SetReadLimit(maxMessageSize)
	messageType := websocket.TextMessage
	if codec.Name() == hub.MsgPack.Name() {
		messageType = websocket.BinaryMessage
	}
	return newClient(&wsTransport{conn: conn, messageType: messageType}, codec)
}

func newClient(conn transport, codec hub.Codec) (*Client, error) {
	c := &Client{conn: conn, codec: codec}
	data, err := conn.ReadFrame()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hostlink: read hello: %w", err)
	}
	if err := codec.Unmarshal(data, &c.hello); err != nil || c.hello.Type != TypeHello {
		_ = conn.Close()
		return nil, errors.New("hostlink: expected hello frame")
	}
	if c.hello.Version != ProtocolVersion {
		_ = conn.Close()
		return nil, fmt.Errorf("hostlink: unsupported protocol version %d", c.hello.Version)
	}
	return c, nil
}

// Hello returns the frame received on connect.
func (c *Client) Hello() Hello { return c.hello }

// Send writes cmd and returns the id assigned to it.
func (c *Client) Send(cmd Command) (string, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	cmd.Type = TypeCommand
	if cmd.ID == "" {
		c.nextID++
		cmd.ID = strconv.Itoa(c.nextID)
	}
	data, err := c.codec.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("hostlink: marshal command: %w", err)
	}
	if err := c.conn.WriteFrame(data); err != nil {
		return "", err
	}
	return cmd.ID, nil
}

// Recv returns the next inbound frame. It must not be called concurrently
// with Call.
func (c *Client) Recv() (Message, error) {
	if len(c.pending) > 0 {
		msg := c.pending[0]
		c.pending = c.pending[1:]
		return msg, nil
	}
	return c.read()
}

// Call sends cmd and waits for its reply. Events that arrive meanwhile are
// queued for Recv. A reply carrying an error is returned as an error.
func (c *Client) Call(cmd Command) (Reply, error) {
	id, err := c.Send(cmd)
	if err != nil {
		return Reply{}, err
	}
	for {
		msg, err := c.read()
		if err != nil {
			return Reply{}, err
		}
		if msg.Reply == nil || msg.Reply.ID != id {
			c.pending = append(c.pending, msg)
			continue
		}
		if !msg.Reply.OK {
			return *msg.Reply, errors.New(msg.Reply.Error)
		}
		return *msg.Reply, nil
	}
}

func (c *Client) read() (Message, error) {
	for {
		data, err := c.conn.ReadFrame()
		if err != nil {
			return Message{}, err
		}
		var header frameHeader
		if err := c.codec.Unmarshal(data, &header); err != nil {
			return Message{}, fmt.Errorf("hostlink: decode frame: %w", err)
		}
		msg := Message{Type: header.Type}
		switch header.Type {
		case TypeEvent:
			rec, err := c.codec.DecodeRecord(data)
			if err != nil {
				return Message{}, err
			}
			msg.Record = &rec
		case TypeLagged:
			var lagged Lagged
			if err := c.codec.Unmarshal(data, &lagged); err != nil {
				return Message{}, fmt.Errorf("hostlink: decode lagged: %w", err)
			}
			msg.Lagged = &lagged
		case TypeReply:
			var reply Reply
			if err := c.codec.Unmarshal(data, &reply); err != nil {
				return Message{}, fmt.Errorf("hostlink: decode reply: %w", err)
			}
			msg.Reply = &reply
		default:
			continue
		}
		return msg, nil
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
