// Package daemon coordinates the long-running confcap process and its system
// integration points.
//
// It wires configuration, the track store, the capture controller, the event
// hub, the session journal, and the device monitor into a single lifecycle
// with flock-based locking to prevent multiple instances. The daemon answers
// host and CLI commands (start, stop, transcription, track pushes), persists
// the transcription preference, and reports dependency health.
//
// Keep orchestration logic here: capture semantics live in internal/capture
// and transports in internal/ipc and internal/hostlink, while the daemon
// focuses on startup, shutdown, and high level coordination.
package daemon
