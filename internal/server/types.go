// Package server defines shared utility helpers that are reused across the
// TCP listener and the WebSocket gateway.
package server

import (
	"errors"
	"io"
	"net"
	"strings"
)

// Registry key prefixes. TCP and WebSocket clients share one Hub and a client
// may reuse one source port towards both listeners.
const (
	tcpKeyPrefix = "tcp/"
	wsKeyPrefix  = "ws/"
)

// peerKey returns the registry key for a client of the front door prefix.
func peerKey(prefix, remoteAddr string) string {
	return prefix + remoteAddr
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
