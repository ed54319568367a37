// Package server implements the network front doors of the line chat service.
//
// TCPServer runs the accept loop for newline-delimited TCP clients and
// Gateway lets WebSocket clients join the same chat. Both frame their
// connections as chat.Conn and hand them to a chat.Handler. The package also
// holds configuration loading and the HTTP routes for health checks.
package server
