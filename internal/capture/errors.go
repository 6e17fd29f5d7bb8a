package capture

import "errors"

var (
	// ErrAlreadyCapturing is returned by Start when a session is active.
	ErrAlreadyCapturing = errors.New("already capturing")
	// ErrNotCapturing is returned by operations that need an active session.
	ErrNotCapturing = errors.New("not capturing")
	// ErrUnsupportedFormat is returned when neither the configured encoded
	// MIME type nor its fallback can be produced.
	ErrUnsupportedFormat = errors.New("unsupported encoded format")
	// ErrSourceSetup wraps failures admitting a single source.
	ErrSourceSetup = errors.New("source setup failed")
	// ErrTapDisconnect wraps failures detaching a source's taps.
	ErrTapDisconnect = errors.New("tap disconnect failed")
	// ErrEncoderRuntime wraps failures reported by a running encoder.
	ErrEncoderRuntime = errors.New("encoder runtime error")
)
