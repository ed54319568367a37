// Package server implements the TCP listener loop that hands every accepted
// connection to the chat handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/linechat/internal/chat"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// TCPServer accepts line chat connections and runs one handler goroutine
// per connection.
type TCPServer struct {
	handler *chat.Handler
	log     *slog.Logger
	conns   *connTracker

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
}

// NewTCPServer creates a TCPServer that serves connections with handler.
func NewTCPServer(handler *chat.Handler, log *slog.Logger) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		handler: handler,
		log:     log,
		conns:   newConnTracker(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Serve accepts connections on ln until accepting fails or Shutdown is
// called. An accept failure is returned and the listener is not retried.
func (s *TCPServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.conns.isClosing() {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("TCP server listening", "addr", ln.Addr().String())

	for {
		raw, err := ln.Accept()
		if err != nil {
			if s.conns.isClosing() {
				return ErrServerClosed
			}
			s.log.Error("Accept failed", "addr", ln.Addr().String(), "error", err)
			return fmt.Errorf("accept on %s: %w", ln.Addr(), err)
		}

		conn := NewLineConn(raw)
		if !s.conns.add(conn, conn.RemoteAddr()) {
			_ = conn.Close()
			return ErrServerClosed
		}
		go s.handle(conn)
	}
}

// Shutdown stops accepting, closes every open connection and waits for
// their handlers to return or for ctx to end.
func (s *TCPServer) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down TCP server...")

	closed := s.conns.closeAll(s.log)
	s.cancel()

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warn("Error closing listener", "error", err)
		}
	}
	s.log.Info("Closed client connections", "count", closed)

	if err := s.conns.wait(ctx); err != nil {
		s.log.Warn("TCP server shutdown timeout reached, some handlers may still be running")
		return err
	}
	s.log.Info("TCP server shutdown completed")
	return nil
}

// ActiveConnections returns the number of connections being handled.
func (s *TCPServer) ActiveConnections() int {
	return s.conns.count()
}

func (s *TCPServer) handle(conn *LineConn) {
	addr := conn.RemoteAddr()
	log := s.log.With("conn_id", uuid.NewString(), "addr", addr)
	log.Info("Connection accepted")

	defer func() {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Warn("Error closing connection", "error", err)
		}
		s.conns.done(conn)
		log.Info("Connection closed")
	}()

	if err := s.handler.Serve(s.ctx, peerKey(tcpKeyPrefix, addr), conn); err != nil {
		log.Warn("Failed to handle client", "error", err)
	}
}
