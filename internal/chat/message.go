package chat

import "fmt"

// Kind identifies which event a Message carries.
type Kind int

const (
	KindJoined Kind = iota + 1
	KindLeft
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindJoined:
		return "joined"
	case KindLeft:
		return "left"
	case KindChat:
		return "chat"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is an immutable chat event. The zero value is not a valid message;
// build one with Joined, Left or Chat.
//
// Messages are passed by value and every field is a string, so a single
// Message can be handed to any number of delivery queues concurrently.
type Message struct {
	kind Kind
	// text holds the system notice for join and leave events.
	text    string
	sender  string
	content string
}

// Joined returns the system notice announcing that username entered the chat.
func Joined(username string) Message {
	return Message{kind: KindJoined, text: fmt.Sprintf("%s has joined the chat", username)}
}

// Left returns the system notice announcing that username left the chat.
func Left(username string) Message {
	return Message{kind: KindLeft, text: fmt.Sprintf("%s has left the chat", username)}
}

// Chat returns a line of chat content sent by sender. Content is not validated.
func Chat(sender, content string) Message {
	return Message{kind: KindChat, sender: sender, content: content}
}

func (m Message) Kind() Kind { return m.kind }

// Sender returns the author of a chat message and "" for system notices.
func (m Message) Sender() string { return m.sender }

// Render returns the exact text written to a client for this message.
func (m Message) Render() string {
	switch m.kind {
	case KindJoined, KindLeft:
		return "[System]: " + m.text
	case KindChat:
		return fmt.Sprintf("[User (%s)]: %s", m.sender, m.content)
	default:
		panic(fmt.Sprintf("chat: render of invalid message kind %d", int(m.kind)))
	}
}

func (m Message) String() string { return m.Render() }
