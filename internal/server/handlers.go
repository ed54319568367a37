// Package server exposes HTTP handlers: the WebSocket gateway into the chat,
// the health check, and the built-in test page.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linechat/internal/chat"
)

// Gateway upgrades HTTP requests to WebSockets and serves each one with the
// chat handler, exactly like a TCP connection.
type Gateway struct {
	handler  *chat.Handler
	log      *slog.Logger
	origins  originPolicy
	upgrader websocket.Upgrader
	conns    *connTracker
	maxSize  int64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewGateway creates a Gateway accepting the given origins ("*" for any).
// Inbound frames larger than maxMessageSize bytes end the connection.
func NewGateway(handler *chat.Handler, origins []string, maxMessageSize int64, log *slog.Logger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		handler: handler,
		log:     log,
		origins: newOriginPolicy(origins, log),
		conns:   newConnTracker(),
		maxSize: maxMessageSize,
		ctx:     ctx,
		cancel:  cancel,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// ServeHTTP handles WebSocket upgrade requests. It validates that the request
// uses the GET method, upgrades the connection and runs the chat lifecycle
// until the client goes away.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	ws.SetReadLimit(g.maxSize)
	conn := NewWSConn(ws, r.RemoteAddr)
	if !g.conns.add(conn, r.RemoteAddr) {
		_ = conn.Close()
		return
	}

	log := g.log.With("conn_id", uuid.NewString(), "addr", r.RemoteAddr)
	log.Info("WebSocket connection accepted")

	defer func() {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Warn("Error closing WebSocket", "error", err)
		}
		g.conns.done(conn)
		log.Info("WebSocket connection closed")
	}()

	if err := g.handler.Serve(g.ctx, peerKey(wsKeyPrefix, r.RemoteAddr), conn); err != nil {
		log.Warn("Failed to handle client", "error", err)
	}
}

// Shutdown closes every open WebSocket and waits for their handlers.
func (g *Gateway) Shutdown(ctx context.Context) error {
	closed := g.conns.closeAll(g.log)
	g.cancel()
	g.log.Info("Closed WebSocket connections", "count", closed)
	return g.conns.wait(ctx)
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if g.origins.allows(r) {
		return true
	}

	g.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}

// PeerCounter reports how many peers are registered.
type PeerCounter interface {
	Len() int
}

// HealthHandler returns a handler reporting that the server is up and how
// many peers are registered.
func HealthHandler(peers PeerCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "ok\npeers: %d\n", peers.Len())
	}
}

// TestPageHandler serves an HTML page for trying the chat from a browser.
func TestPageHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := fmt.Fprint(w, testPage); err != nil {
			log.Warn("Error writing HTML response", "error", err)
		}
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Line Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            white-space: pre-wrap;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
    </style>
</head>
<body>
    <h1>Line Chat Test</h1>
    <div>
        <input type="text" id="line" placeholder="Username first, then messages..." disabled>
        <button id="send" onclick="sendLine()" disabled>Send</button>
        <button id="connect" onclick="toggleConnection()">Connect</button>
    </div>
    <div id="messages"></div>

    <script>
        let ws = null;
        const messages = document.getElementById('messages');
        const line = document.getElementById('line');
        const send = document.getElementById('send');
        const connectButton = document.getElementById('connect');

        function show(text) {
            const el = document.createElement('div');
            el.textContent = text;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        function setConnected(connected) {
            line.disabled = !connected;
            send.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = () => setConnected(true);
            ws.onmessage = (event) => show(event.data);
            ws.onclose = () => { show('-- disconnected --'); setConnected(false); ws = null; };
        }

        function sendLine() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(line.value);
                show('> ' + line.value);
                line.value = '';
            }
        }

        line.addEventListener('keypress', (e) => { if (e.key === 'Enter') sendLine(); });
    </script>
</body>
</html>`
