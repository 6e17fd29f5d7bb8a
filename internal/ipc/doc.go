// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Events
// are returned as JSON-encoded hub records so CLI output matches what hosts
// receive on the host link. Long-polling calls cap their wait so a closing
// server never blocks on a client.
package ipc
