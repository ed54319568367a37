// Package testhelpers provides common utilities shared by the package tests
// of the line chat server.
//
// FakeConn is an in-memory framed connection for driving handlers without a
// socket. LineClient and the WebSocket helpers talk to real listeners.
package testhelpers

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every wait performed by these helpers.
const DefaultTimeout = 2 * time.Second

// FakeConn is an in-memory line connection. Lines pushed with Send are
// returned by ReadLine; lines written with WriteLine are collected and can be
// awaited with Expect.
type FakeConn struct {
	in     chan string
	out    chan string
	hangup chan struct{}
	once   sync.Once

	mu       sync.Mutex
	readErr  error
	writeErr error
}

// NewFakeConn returns a FakeConn that buffers up to 1024 outbound lines.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		in:     make(chan string, 64),
		out:    make(chan string, 1024),
		hangup: make(chan struct{}),
	}
}

// ReadLine returns the next line pushed with Send, io.EOF after Hangup, or
// the error set with FailReads.
func (c *FakeConn) ReadLine() (string, error) {
	select {
	case line := <-c.in:
		return line, nil
	case <-c.hangup:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.readErr != nil {
			return "", c.readErr
		}
		return "", io.EOF
	}
}

// WriteLine records line unless writes were made to fail.
func (c *FakeConn) WriteLine(line string) error {
	c.mu.Lock()
	err := c.writeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.out <- line
	return nil
}

// Send queues an inbound line.
func (c *FakeConn) Send(line string) { c.in <- line }

// Hangup ends the inbound stream. Lines already sent but not read may be
// dropped.
func (c *FakeConn) Hangup() { c.once.Do(func() { close(c.hangup) }) }

// FailReads ends the inbound stream with err instead of io.EOF.
func (c *FakeConn) FailReads(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
	c.Hangup()
}

// FailWrites makes every following WriteLine return err.
func (c *FakeConn) FailWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

// Next waits for the next outbound line.
func (c *FakeConn) Next(t *testing.T) string {
	t.Helper()
	select {
	case line := <-c.out:
		return line
	case <-time.After(DefaultTimeout):
		t.Fatalf("no outbound line within %s", DefaultTimeout)
		return ""
	}
}

// Expect waits for the next outbound line and checks it equals want.
func (c *FakeConn) Expect(t *testing.T, want string) {
	t.Helper()
	if got := c.Next(t); got != want {
		t.Fatalf("expected line %q, got %q", want, got)
	}
}

// ExpectNothing fails if any outbound line shows up within d.
func (c *FakeConn) ExpectNothing(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case line := <-c.out:
		t.Fatalf("expected no line, got %q", line)
	case <-time.After(d):
	}
}

// LineClient is a newline-framed TCP client.
type LineClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

// DialLine connects to a line chat listener at addr.
func DialLine(t *testing.T, addr string) *LineClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}
	return NewLineClient(conn)
}

// NewLineClient wraps an already connected socket.
func NewLineClient(conn net.Conn) *LineClient {
	return &LineClient{conn: conn, reader: bufio.NewReader(conn)}
}

// Send writes line followed by a newline.
func (c *LineClient) Send(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		t.Fatalf("Failed to send %q: %v", line, err)
	}
}

// ReadLine reads one line and strips its terminator.
func (c *LineClient) ReadLine(t *testing.T) string {
	t.Helper()
	line, err := c.readLine(DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to read line: %v", err)
	}
	return line
}

// Expect reads one line and checks it equals want.
func (c *LineClient) Expect(t *testing.T, want string) {
	t.Helper()
	if got := c.ReadLine(t); got != want {
		t.Fatalf("expected line %q, got %q", want, got)
	}
}

// ExpectNothing fails if a line arrives within d.
func (c *LineClient) ExpectNothing(t *testing.T, d time.Duration) {
	t.Helper()
	line, err := c.readLine(d)
	if err == nil {
		t.Fatalf("expected no line, got %q", line)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

// Join reads the username prompt and answers it.
func (c *LineClient) Join(t *testing.T, prompt, username string) {
	t.Helper()
	c.Expect(t, prompt)
	c.Send(t, username)
}

// Close closes the underlying connection.
func (c *LineClient) Close() error { return c.conn.Close() }

// LocalAddr returns the client side address, which is the server's view of
// the remote address.
func (c *LineClient) LocalAddr() string { return c.conn.LocalAddr().String() }

func (c *LineClient) readLine(d time.Duration) (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ConnectWebSocket dials url with the given Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultTimeout,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// ReceiveText reads one text frame with a deadline.
func ReceiveText(conn *websocket.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		return "", err
	}
	_, data, err := conn.ReadMessage()
	return string(data), err
}

// SendText writes one text frame.
func SendText(conn *websocket.Conn, text string) error {
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// CloseWebSocket sends a normal close frame and closes conn.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
