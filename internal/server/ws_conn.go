// Package server adapts WebSocket connections to the line chat transport so
// browser clients share the same registry as TCP clients.
package server

import (
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linechat/internal/chat"
)

// closeGracePeriod bounds the close frame written on Close.
const closeGracePeriod = time.Second

// WSConn adapts a WebSocket to chat.Conn. An inbound frame may carry several
// newline-separated lines; every outbound line is sent as one text frame.
type WSConn struct {
	conn    *websocket.Conn
	addr    string
	pending []string

	writeMu sync.Mutex
}

// NewWSConn wraps conn. addr is the client address reported by RemoteAddr.
func NewWSConn(conn *websocket.Conn, addr string) *WSConn {
	return &WSConn{conn: conn, addr: addr}
}

var _ chat.Conn = (*WSConn)(nil)

// ReadLine returns the next inbound line. A normal close frame from the
// client is reported as io.EOF and a frame over the read limit as
// websocket.ErrReadLimit.
func (c *WSConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", translateReadError(err)
		}
		if !utf8.Valid(data) {
			return "", chat.ErrInvalidUTF8
		}
		text := strings.TrimSuffix(string(data), "\n")
		for _, line := range strings.Split(text, "\n") {
			c.pending = append(c.pending, strings.TrimSuffix(line, "\r"))
		}
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

// WriteLine sends line as a single text frame.
func (c *WSConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// RemoteAddr returns the client address given at construction.
func (c *WSConn) RemoteAddr() string { return c.addr }

// Close sends a best-effort close frame and closes the socket.
func (c *WSConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(closeGracePeriod))
	return c.conn.Close()
}

func translateReadError(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}
