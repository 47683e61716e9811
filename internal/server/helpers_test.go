package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/linechat/internal/protocol"
)

const testTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestServer serves TCP on a loopback port and shuts down with the test.
func startTestServer(t *testing.T, configure func(*Config)) (*Server, string) {
	t.Helper()

	cfg := NewConfig()
	if configure != nil {
		configure(cfg)
	}
	srv := NewServer(cfg, discardLogger())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(listener) }()

	t.Cleanup(func() {
		if err := srv.Shutdown(testTimeout); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		if err := <-served; !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	})

	return srv, listener.Addr().String()
}

// testClient speaks the raw protocol over TCP.
type testClient struct {
	t      *testing.T
	name   string
	conn   net.Conn
	reader *protocol.Reader
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, reader: protocol.NewReader(conn, 0)}
}

// joinTestClient connects, completes the handshake, and consumes the users
// frame that follows the welcome.
func joinTestClient(t *testing.T, addr, name string) *testClient {
	t.Helper()
	c := dialTestClient(t, addr)
	c.name = name
	c.send(protocol.Name(name))
	c.expect(protocol.Welcome())
	if m := c.next(); m.Kind != protocol.KindUsers {
		t.Fatalf("%s: expected users frame after welcome, got %+v", name, m)
	}
	return c
}

func (c *testClient) send(m protocol.Message) {
	c.t.Helper()
	c.sendRaw(string(protocol.Encode(m)))
}

func (c *testClient) sendRaw(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.t.Fatalf("%s: write failed: %v", c.name, err)
	}
}

func (c *testClient) read(timeout time.Duration) (protocol.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.Message{}, err
	}
	return c.reader.ReadMessage()
}

func (c *testClient) next() protocol.Message {
	c.t.Helper()
	m, err := c.read(testTimeout)
	if err != nil {
		c.t.Fatalf("%s: expected a frame, got error: %v", c.name, err)
	}
	return m
}

func (c *testClient) expect(want protocol.Message) {
	c.t.Helper()
	if got := c.next(); got != want {
		c.t.Fatalf("%s: received %q, want %q", c.name, protocol.Encode(got), protocol.Encode(want))
	}
}

func (c *testClient) expectNothing(wait time.Duration) {
	c.t.Helper()
	m, err := c.read(wait)
	if err == nil {
		c.t.Fatalf("%s: expected no frame, received %q", c.name, protocol.Encode(m))
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		c.t.Fatalf("%s: expected read timeout, got %v", c.name, err)
	}
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	if m, err := c.read(testTimeout); err != io.EOF {
		c.t.Fatalf("%s: expected server to close the connection, got %q, %v", c.name, protocol.Encode(m), err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeConn is an in-memory Conn. Reads come from a channel; writes are
// recorded unless the conn is set to fail or to stall until closed.
type fakeConn struct {
	addr    string
	inbound chan protocol.Message

	mu       sync.Mutex
	written  []protocol.Message
	writeErr error
	stall    bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{
		addr:    addr,
		inbound: make(chan protocol.Message, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (protocol.Message, error) {
	select {
	case m := <-c.inbound:
		return m, nil
	case <-c.closed:
		return protocol.Message{}, io.EOF
	}
}

func (c *fakeConn) WriteMessage(m protocol.Message) error {
	c.mu.Lock()
	stall, err := c.stall, c.writeErr
	c.mu.Unlock()

	if stall {
		<-c.closed
		return net.ErrClosed
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, m)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string {
	return c.addr
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) messages() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.written...)
}

func (c *fakeConn) hasMessage(m protocol.Message) bool {
	for _, w := range c.messages() {
		if w == m {
			return true
		}
	}
	return false
}

func waitTimeout() <-chan time.Time {
	return time.After(testTimeout)
}
