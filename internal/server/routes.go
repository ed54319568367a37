// Package server wires HTTP handlers into a ServeMux via routing helpers.
package server

import (
	"log/slog"
	"net/http"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, WebSocket gateway, and test page.
func SetupRoutes(gateway *Gateway, peers PeerCounter, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthHandler(peers))
	mux.Handle("/ws", gateway)
	mux.HandleFunc("/test", TestPageHandler(log))
	return mux
}
