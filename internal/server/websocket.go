// Package server adapts WebSocket connections to the chat Conn interface so
// browser clients join the same room as TCP clients.
package server

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linechat/internal/protocol"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsConn carries one frame per WebSocket text message. Outgoing frames are
// sent without their trailing newline.
type wsConn struct {
	conn           *websocket.Conn
	addr           string
	maxMessageSize int64
	writeTimeout   time.Duration
	logger         *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(conn *websocket.Conn, addr string, cfg Config, logger *slog.Logger) *wsConn {
	conn.SetReadLimit(cfg.MaxMessageSize)
	c := &wsConn{
		conn:           conn,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		writeTimeout:   cfg.WriteTimeout,
		logger:         logger,
		done:           make(chan struct{}),
	}
	c.setupReadConnection()
	go c.keepAlive()
	return c
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *wsConn) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("setting initial read deadline failed", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (c *wsConn) ReadMessage() (protocol.Message, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return protocol.Message{}, translateReadError(err)
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text websocket message", "type", messageType)
			continue
		}
		return protocol.Parse(string(data))
	}
}

// translateReadError maps WebSocket read failures onto the codec taxonomy:
// orderly closes become io.EOF and oversized messages ErrLineTooLong.
func translateReadError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		return protocol.ErrLineTooLong
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return io.EOF
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}

	return err
}

func (c *wsConn) WriteMessage(m protocol.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(protocol.Encode(m), []byte{'\n'}))
}

// Close sends a close frame, best effort, and releases the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteControl(websocket.CloseMessage, closing, deadline); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug("writing close message failed", "error", err)
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}

// keepAlive pings the peer until the connection closes. A failed ping closes
// the connection so the handler's read returns.
func (c *wsConn) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Warn("websocket ping failed", "error", err)
				}
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
