package server

import (
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/linechat/internal/protocol"
)

// Conn is a framed connection to one chat client. ReadMessage is called only
// by the connection's handler and WriteMessage only by one writer at a time.
// Close may be called concurrently with both and more than once; it must
// unblock a pending ReadMessage.
type Conn interface {
	ReadMessage() (protocol.Message, error)
	WriteMessage(protocol.Message) error
	Close() error
	RemoteAddr() string
}

// tcpConn carries frames as newline terminated lines over a stream socket.
type tcpConn struct {
	conn         net.Conn
	reader       *protocol.Reader
	writer       *protocol.Writer
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newTCPConn(conn net.Conn, maxMessageSize int64, writeTimeout time.Duration) *tcpConn {
	return &tcpConn{
		conn:         conn,
		reader:       protocol.NewReader(conn, int(maxMessageSize)),
		writer:       protocol.NewWriter(conn),
		writeTimeout: writeTimeout,
	}
}

func (c *tcpConn) ReadMessage() (protocol.Message, error) {
	return c.reader.ReadMessage()
}

func (c *tcpConn) WriteMessage(m protocol.Message) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.writer.WriteMessage(m)
}

func (c *tcpConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
