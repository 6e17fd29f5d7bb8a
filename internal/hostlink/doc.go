// Package hostlink streams capture events to the embedding host application
// and accepts its commands.
//
// The primary transport is a Unix socket carrying length-prefixed frames
// ([4-byte big-endian length][payload]) whose payload is JSON or MessagePack.
// Connections are restricted to the daemon's own UID through SO_PEERCRED. An
// optional WebSocket endpoint serves the same protocol to browser hosts.
package hostlink
