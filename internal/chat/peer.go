package chat

import "errors"

var (
	// ErrDetached is returned when a message is sent to a delivery queue
	// whose worker has stopped or whose registration was dropped.
	ErrDetached = errors.New("chat: delivery queue detached")

	// ErrInvalidUTF8 is returned by line sources that receive a line which
	// is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("chat: line is not valid UTF-8")
)

// LineSource yields inbound lines without their terminator. It returns
// io.EOF once the remote side has finished sending.
type LineSource interface {
	ReadLine() (string, error)
}

// LineSink writes one outbound line. The implementation appends the
// terminator.
type LineSink interface {
	WriteLine(line string) error
}

// Conn is a framed, bidirectional client connection.
type Conn interface {
	LineSource
	LineSink
}

// Peer is the server-side handle of one registered client. It is owned by
// the Handler that registered it.
type Peer struct {
	Username string
	Inbound  LineSource
}
