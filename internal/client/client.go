// Package client speaks the linechat protocol from the user's side: it dials
// the server, performs the name handshake, and turns incoming frames into
// typed events for a user interface.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/linechat/internal/protocol"
)

// ErrRejected is matched by the error Join returns when the server refuses
// the handshake.
var ErrRejected = errors.New("client: rejected by server")

// RejectionError carries the reason the server gave for refusing a
// handshake. It matches ErrRejected with errors.Is.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrRejected, e.Reason)
}

// Is reports whether target is ErrRejected.
func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// Event is delivered on Client.Events.
type Event interface {
	event()
}

// EventMessage is a chat message or, with an empty Sender, a server notice.
type EventMessage struct {
	Sender string
	Text   string
}

// EventUsers lists the other users online.
type EventUsers struct {
	Users []string
}

// EventClosed is the last event. Err is nil for an orderly close.
type EventClosed struct {
	Err error
}

func (EventMessage) event() {}
func (EventUsers) event()   {}
func (EventClosed) event()  {}

const eventBuffer = 64

// Client is one joined chat connection.
type Client struct {
	conn     net.Conn
	username string
	reader   *protocol.Reader
	logger   *slog.Logger

	writeMu sync.Mutex
	writer  *protocol.Writer

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	joinOnce  sync.Once
}

// NewClient wraps an established connection. Call Join before anything else.
func NewClient(conn net.Conn, username string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:     conn,
		username: username,
		reader:   protocol.NewReader(conn, protocol.DefaultMaxLineSize),
		writer:   protocol.NewWriter(conn),
		logger:   logger.With("user", username, "addr", conn.RemoteAddr().String()),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

// Dial connects to addr and joins as username.
func Dial(ctx context.Context, addr, username string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}

	c := NewClient(conn, username, slog.Default())
	if err := c.Join(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Username returns the name the client joined with.
func (c *Client) Username() string {
	return c.username
}

// Join sends the name frame and waits for the server's answer. On a
// welcome it starts delivering events. ctx bounds the wait.
func (c *Client) Join(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.write(protocol.Name(c.username)); err != nil {
		return joinError(ctx, err)
	}

	reply, err := c.reader.ReadMessage()
	if err != nil {
		return joinError(ctx, err)
	}

	if !stop() {
		return joinError(ctx, ctx.Err())
	}
	if reply.Kind != protocol.KindWelcome {
		reason := reply.Payload
		if reply.Kind != protocol.KindError || reason == "" {
			reason = fmt.Sprintf("unexpected %q frame", reply.Kind)
		}
		c.logger.Info("join rejected", "reason", reason)
		return &RejectionError{Reason: reason}
	}

	c.logger.Info("joined")
	c.joinOnce.Do(func() { go c.readLoop() })
	return nil
}

func joinError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("client: join: %w", ctxErr)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("client: join: server closed the connection: %w", io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("client: join: %w", err)
}

// Events returns the event channel. It is closed after EventClosed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Say sends text to the room.
func (c *Client) Say(text string) error {
	return c.write(protocol.Chat(c.username, text))
}

// RequestUsers asks the server for the users online. The answer arrives as
// an EventUsers.
func (c *Client) RequestUsers() error {
	return c.write(protocol.UsersQuery())
}

// Close leaves the room. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) write(m protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.writer.WriteMessage(m); err != nil {
		return fmt.Errorf("client: send %s: %w", m.Kind, err)
	}
	return nil
}

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		m, err := c.reader.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || c.closing() {
				err = nil
			} else {
				c.logger.Warn("connection lost", "error", err)
			}
			c.emit(EventClosed{Err: err})
			return
		}

		switch m.Kind {
		case protocol.KindMessage:
			c.emit(EventMessage{Sender: m.Sender, Text: m.Payload})
		case protocol.KindUsers:
			c.emit(EventUsers{Users: m.UserList()})
		default:
			c.logger.Debug("ignoring frame", "kind", m.Kind)
		}
	}
}

// emit delivers ev unless the client was closed locally.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
