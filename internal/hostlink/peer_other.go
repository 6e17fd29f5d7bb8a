//go:build !linux

package hostlink

import (
	"errors"
	"net"
)

// PeerCredentials holds the kernel-verified identity of a socket peer.
type PeerCredentials struct {
	PID int
	UID uint32
	GID uint32
}

// GetPeerCredentials is only implemented on Linux.
func GetPeerCredentials(net.Conn) (*PeerCredentials, error) {
	return nil, errors.New("hostlink: peer credentials unsupported on this platform")
}
