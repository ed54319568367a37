// Package server frames raw TCP sockets into newline-delimited UTF-8 lines.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Tyrowin/linechat/internal/chat"
)

// LineConn adapts a net.Conn to chat.Conn. Inbound lines lose their "\n" or
// "\r\n" terminator; outbound lines get a "\n" appended.
type LineConn struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex
	writer  *bufio.Writer
}

// NewLineConn wraps conn.
func NewLineConn(conn net.Conn) *LineConn {
	return &LineConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}
}

var _ chat.Conn = (*LineConn)(nil)

// ReadLine returns the next line. A trailing line without terminator is
// returned before io.EOF.
func (c *LineConn) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) || line == "" {
			return "", err
		}
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) {
		return "", chat.ErrInvalidUTF8
	}
	return line, nil
}

// WriteLine writes line and a newline and flushes.
func (c *LineConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.WriteString(line); err != nil {
		return err
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		return err
	}
	return c.writer.Flush()
}

// RemoteAddr returns the peer address used as the registry key.
func (c *LineConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Close closes the underlying socket.
func (c *LineConn) Close() error { return c.conn.Close() }
