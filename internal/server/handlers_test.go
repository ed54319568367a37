package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/linechat/internal/chat"
	"github.com/Tyrowin/linechat/internal/testhelpers"
)

const (
	testOrigin         = "http://localhost:8080"
	testMaxMessageSize = 256
)

type httpStack struct {
	*chatStack
	gateway *Gateway
	server  *httptest.Server
	wsURL   string
}

func startHTTPServer(t *testing.T) *httpStack {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	stack := startTCPServer(t)
	gateway := NewGateway(stack.handler, []string{testOrigin}, testMaxMessageSize, log)
	ts := httptest.NewServer(SetupRoutes(gateway, stack.hub, log))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = gateway.Shutdown(ctx)
		ts.Close()
	})

	return &httpStack{
		chatStack: stack,
		gateway:   gateway,
		server:    ts,
		wsURL:     "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (s *httpStack) joinWS(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	before := s.hub.Len()
	conn, err := testhelpers.ConnectWebSocket(s.wsURL, testOrigin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	prompt, err := testhelpers.ReceiveText(conn)
	require.NoError(t, err)
	require.Equal(t, chat.UsernamePrompt, prompt)
	require.NoError(t, testhelpers.SendText(conn, username))
	require.Eventually(t, func() bool { return s.hub.Len() == before+1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func expectText(t *testing.T, conn *websocket.Conn, expected string) {
	t.Helper()
	text, err := testhelpers.ReceiveText(conn)
	require.NoError(t, err)
	require.Equal(t, expected, text)
}

func TestHealthHandler(t *testing.T) {
	req := require.New(t)
	stack := startHTTPServer(t)
	stack.join(t, "alice")

	resp, err := http.Get(stack.server.URL + "/healthz")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("text/plain", resp.Header.Get("Content-Type"))
	req.Equal("ok\npeers: 1\n", string(body))
}

func TestTestPageHandler(t *testing.T) {
	req := require.New(t)
	stack := startHTTPServer(t)

	resp, err := http.Get(stack.server.URL + "/test")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Equal("text/html", resp.Header.Get("Content-Type"))
	req.Contains(string(body), "/ws")
}

func TestGateway_RejectsNonGET(t *testing.T) {
	stack := startHTTPServer(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			r, err := http.NewRequest(method, stack.server.URL+"/ws", http.NoBody)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(r)
			require.NoError(t, err)
			_ = resp.Body.Close()
			require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	}
}

func TestGateway_RejectsPlainGET(t *testing.T) {
	stack := startHTTPServer(t)

	resp, err := http.Get(stack.server.URL + "/ws")
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_RejectsDisallowedOrigin(t *testing.T) {
	stack := startHTTPServer(t)

	_, err := testhelpers.ConnectWebSocket(stack.wsURL, "http://evil.example")

	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Zero(t, stack.hub.Len())
}

func TestGateway_SharesChatWithTCPClients(t *testing.T) {
	req := require.New(t)
	stack := startHTTPServer(t)

	// Given a TCP client and a WebSocket client in the same chat
	alice := stack.join(t, "alice")
	bob := stack.joinWS(t, "bob")
	alice.Expect(t, "[System]: bob has joined the chat")

	addrs := stack.hub.Addresses()
	req.Len(addrs, 2)
	req.Equal(tcpKeyPrefix+alice.LocalAddr(), addrs[0])
	req.True(strings.HasPrefix(addrs[1], wsKeyPrefix), addrs[1])

	// When each side talks
	req.NoError(testhelpers.SendText(bob, "from the browser"))
	alice.Expect(t, "[User (bob)]: from the browser")

	alice.Send(t, "from the terminal")
	expectText(t, bob, "[User (alice)]: from the terminal")

	// When the WebSocket client closes normally
	req.NoError(testhelpers.CloseWebSocket(bob))

	// Then the TCP client hears the leave once
	alice.Expect(t, "[System]: bob has left the chat")
	alice.ExpectNothing(t, 100*time.Millisecond)
}

func TestGateway_MultiLineFrame(t *testing.T) {
	stack := startHTTPServer(t)
	alice := stack.join(t, "alice")
	bob := stack.joinWS(t, "bob")
	alice.Expect(t, "[System]: bob has joined the chat")

	require.NoError(t, testhelpers.SendText(bob, "one\r\ntwo\n"))

	alice.Expect(t, "[User (bob)]: one")
	alice.Expect(t, "[User (bob)]: two")
}

func TestGateway_OversizedFrameEndsSession(t *testing.T) {
	req := require.New(t)
	stack := startHTTPServer(t)
	alice := stack.join(t, "alice")
	bob := stack.joinWS(t, "bob")
	alice.Expect(t, "[System]: bob has joined the chat")

	// When the WebSocket client sends a frame over the limit
	req.NoError(testhelpers.SendText(bob, strings.Repeat("x", testMaxMessageSize+1)))

	// Then the frame is not relayed and the client leaves
	alice.Expect(t, "[System]: bob has left the chat")
	req.Eventually(func() bool { return stack.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	_, err := testhelpers.ReceiveText(bob)
	req.Error(err)
}

func TestGateway_FrameAtLimitIsRelayed(t *testing.T) {
	stack := startHTTPServer(t)
	alice := stack.join(t, "alice")
	bob := stack.joinWS(t, "bob")
	alice.Expect(t, "[System]: bob has joined the chat")

	line := strings.Repeat("y", testMaxMessageSize)
	require.NoError(t, testhelpers.SendText(bob, line))

	alice.Expect(t, "[User (bob)]: "+line)
}

func TestGateway_Shutdown(t *testing.T) {
	req := require.New(t)
	stack := startHTTPServer(t)
	conn := stack.joinWS(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req.NoError(stack.gateway.Shutdown(ctx))

	req.Eventually(func() bool { return stack.hub.Len() == 0 }, time.Second, 5*time.Millisecond)
	_, err := testhelpers.ReceiveText(conn)
	req.Error(err)
}
