// Package protocol implements the line-oriented linechat wire format.
//
// Every frame is a single UTF-8 line of three space separated fields,
// "<kind> <sender> <payload>\n". The payload is everything after the second
// space, so it may contain further spaces but never a newline.
package protocol

import "strings"

// Kind identifies the meaning of a frame.
type Kind string

// Frame kinds understood by the server and the client.
const (
	KindMessage Kind = "msg"
	KindUsers   Kind = "users"
	KindWelcome Kind = "welcome"
	KindError   Kind = "error"
	KindName    Kind = "name"
)

// Known reports whether k is one of the kinds defined by the protocol.
func (k Kind) Known() bool {
	switch k {
	case KindMessage, KindUsers, KindWelcome, KindError, KindName:
		return true
	}
	return false
}

// Message is a single decoded frame. Server-originated frames carry an
// empty Sender.
type Message struct {
	Kind    Kind
	Sender  string
	Payload string
}

// Name builds the first frame a client sends to claim a username.
func Name(username string) Message {
	return Message{Kind: KindName, Payload: username}
}

// Welcome builds the frame accepting a handshake.
func Welcome() Message {
	return Message{Kind: KindWelcome}
}

// Error builds the frame rejecting a handshake with a readable reason.
func Error(reason string) Message {
	return Message{Kind: KindError, Payload: reason}
}

// Chat builds a chat message frame from sender.
func Chat(sender, text string) Message {
	return Message{Kind: KindMessage, Sender: sender, Payload: text}
}

// Announcement builds a chat message frame originated by the server.
func Announcement(text string) Message {
	return Message{Kind: KindMessage, Payload: text}
}

// Users builds the frame listing online usernames, space joined.
func Users(names []string) Message {
	return Message{Kind: KindUsers, Payload: strings.Join(names, " ")}
}

// UsersQuery builds the frame a client sends to ask who is online.
func UsersQuery() Message {
	return Message{Kind: KindUsers}
}

// UserList splits the payload of a users frame into usernames.
// An empty payload yields an empty list.
func (m Message) UserList() []string {
	return strings.Fields(m.Payload)
}

// Validate checks that m can be encoded as exactly one frame that parses
// back into the same value.
func (m Message) Validate() error {
	switch {
	case m.Kind == "":
		return errorf(ErrInvalidMessage, "empty kind")
	case strings.ContainsAny(string(m.Kind), " \n"):
		return errorf(ErrInvalidMessage, "kind %q contains a separator", m.Kind)
	case strings.ContainsAny(m.Sender, " \n"):
		return errorf(ErrInvalidMessage, "sender %q contains a separator", m.Sender)
	case strings.Contains(m.Payload, "\n"):
		return errorf(ErrInvalidMessage, "payload contains a newline")
	}
	return nil
}
