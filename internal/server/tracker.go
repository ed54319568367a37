package server

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// connTracker records the connections a front door is serving so that
// shutdown can close them and wait for their handlers.
type connTracker struct {
	mu      sync.Mutex
	conns   map[io.Closer]string
	closing bool
	wg      sync.WaitGroup
}

func newConnTracker() *connTracker {
	return &connTracker{conns: make(map[io.Closer]string)}
}

// add starts tracking conn. It returns false once shutdown has begun.
func (t *connTracker) add(conn io.Closer, addr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closing {
		return false
	}
	t.conns[conn] = addr
	t.wg.Add(1)
	return true
}

// done stops tracking conn after its handler returned.
func (t *connTracker) done(conn io.Closer) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
	t.wg.Done()
}

// closeAll refuses new connections and closes the tracked ones.
func (t *connTracker) closeAll(log *slog.Logger) int {
	t.mu.Lock()
	t.closing = true
	conns := make(map[io.Closer]string, len(t.conns))
	for conn, addr := range t.conns {
		conns[conn] = addr
	}
	t.mu.Unlock()

	for conn, addr := range conns {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Warn("Error closing client connection", "addr", addr, "error", err)
		}
	}
	return len(conns)
}

// wait blocks until every tracked handler returned or ctx ends.
func (t *connTracker) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *connTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *connTracker) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}
