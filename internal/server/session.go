package server

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/linechat/internal/protocol"
)

// Session is a registered, named client. Frames are delivered through a
// bounded queue drained by a single writer goroutine, so frames queued by one
// goroutine reach the client in the order they were queued.
type Session struct {
	id       string
	username string
	conn     Conn
	logger   *slog.Logger

	mu     sync.Mutex
	outbox chan protocol.Message
	closed bool

	failed atomic.Bool
	done   chan struct{}
}

func newSession(id, username string, conn Conn, queueSize int, logger *slog.Logger) *Session {
	return &Session{
		id:       id,
		username: username,
		conn:     conn,
		logger:   logger,
		outbox:   make(chan protocol.Message, queueSize),
		done:     make(chan struct{}),
	}
}

// ID returns the connection id the session was registered with.
func (s *Session) ID() string {
	return s.id
}

// Username returns the session's registered name.
func (s *Session) Username() string {
	return s.username
}

// Alive reports whether the session still accepts frames.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && !s.failed.Load()
}

// Send queues m without blocking. When the queue is full the peer is too
// slow to keep up with the room; its connection is closed and Send reports
// false. Its handler then observes the closed stream and cleans up.
func (s *Session) Send(m protocol.Message) bool {
	s.mu.Lock()
	if s.closed || s.failed.Load() {
		s.mu.Unlock()
		return false
	}
	select {
	case s.outbox <- m:
		s.mu.Unlock()
		return true
	default:
	}
	queued := len(s.outbox)
	s.mu.Unlock()

	s.logger.Warn("send queue full, dropping slow client", "queued", queued)
	s.fail()
	return false
}

// Done is closed after the writer has flushed the queue and exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// close stops accepting frames. The writer finishes what is queued.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbox)
}

// fail marks the session broken and closes its connection. Safe to call
// more than once.
func (s *Session) fail() {
	if s.failed.CompareAndSwap(false, true) {
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Debug("closing failed connection", "error", err)
		}
	}
}

// writePump drains the queue onto the connection. After a write error the
// rest of the queue is discarded.
func (s *Session) writePump() {
	defer close(s.done)

	for m := range s.outbox {
		if s.failed.Load() {
			continue
		}
		if err := s.conn.WriteMessage(m); err != nil {
			if !isExpectedCloseError(err) {
				s.logger.Warn("write failed", "kind", m.Kind, "error", err)
			}
			s.fail()
		}
	}
}
