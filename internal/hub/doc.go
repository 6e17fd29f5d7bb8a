// Package hub buffers capture events for out-of-process consumers.
//
// Hub implements capture.Sink: every emitted event gets a sequence number and
// lands in a bounded ring. The CLI (over IPC), the host link, and WebSocket
// clients read it with long-poll Fetch calls, so a slow consumer never blocks
// the capture controller.
package hub
