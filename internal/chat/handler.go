package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// UsernamePrompt is the first line sent on every new connection.
const UsernamePrompt = "Enter your username: "

// Handler drives a single connection from handshake to teardown.
type Handler struct {
	registry Registry
	log      *slog.Logger
}

// NewHandler returns a Handler that registers peers in registry.
func NewHandler(registry Registry, log *slog.Logger) *Handler {
	return &Handler{registry: registry, log: log}
}

// Serve prompts for a username, registers the connection under addr and
// broadcasts every following line until the connection ends. It returns nil
// when the client disconnects, including before sending a username, and an
// error only when the handshake itself fails.
//
// Once registered, the peer is always deregistered and announced as gone
// before Serve returns.
func (h *Handler) Serve(ctx context.Context, addr string, conn Conn) error {
	log := h.log.With("addr", addr)

	if err := conn.WriteLine(UsernamePrompt); err != nil {
		return fmt.Errorf("write username prompt: %w", err)
	}

	username, err := conn.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			log.Debug("Connection closed before handshake")
			return nil
		}
		return fmt.Errorf("read username: %w", err)
	}

	peer := h.registry.Register(addr, username, conn)

	joined := Joined(peer.Username)
	log.Info("Joined", "message", joined.Render())
	h.registry.Broadcast(ctx, addr, joined)

	h.relay(ctx, addr, peer, log)

	h.registry.Deregister(addr)

	left := Left(peer.Username)
	log.Info("Left", "message", left.Render())
	h.registry.Broadcast(ctx, addr, left)

	return nil
}

// relay broadcasts each inbound line as chat until the source ends or fails.
func (h *Handler) relay(ctx context.Context, addr string, peer *Peer, log *slog.Logger) {
	for {
		line, err := peer.Inbound.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("Failed to read line", "error", err)
			}
			return
		}
		h.registry.Broadcast(ctx, addr, Chat(peer.Username, line))
	}
}
