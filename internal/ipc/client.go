package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"confcap/internal/capture"
	"confcap/internal/tracks"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// Start begins a capture session with opts overlaid on the daemon defaults.
func (c *Client) Start(opts capture.Options) (*StartResponse, error) {
	var resp StartResponse
	if err := c.call("Start", StartRequest{Options: opts}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop ends the active capture session.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transcription applies mode (on, off, toggle, or "" to query).
func (c *Client) Transcription(mode string) (*TranscriptionResponse, error) {
	var resp TranscriptionResponse
	if err := c.call("Transcription", TranscriptionRequest{Mode: mode}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TracksPush replaces the host-provided tracks.
func (c *Client) TracksPush(descs []tracks.Descriptor) (*TracksPushResponse, error) {
	var resp TracksPushResponse
	if err := c.call("TracksPush", TracksPushRequest{Tracks: descs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TracksList returns every known track.
func (c *Client) TracksList() (*TracksListResponse, error) {
	var resp TracksListResponse
	if err := c.call("TracksList", TracksListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events reads buffered events.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.call("Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sessions lists journaled sessions or the sources of one session.
func (c *Client) Sessions(req SessionsRequest) (*SessionsResponse, error) {
	var resp SessionsResponse
	if err := c.call("Sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.call("LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.call("Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
