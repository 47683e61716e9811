package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Tyrowin/linechat/internal/protocol"
)

type connState int

const (
	stateAwaitingName connState = iota
	stateActive
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitingName:
		return "awaiting-name"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// handler drives one connection through handshake, message loop, and
// cleanup. It runs on the connection's own goroutine.
type handler struct {
	conn     Conn
	id       string
	registry *Registry
	router   *Router
	limiter  *rateLimiter
	logger   *slog.Logger

	state   connState
	session *Session
}

func joinedNotice(name string) string {
	return fmt.Sprintf("User <%s> has joined the room", name)
}

func leftNotice(name string) string {
	return fmt.Sprintf("User <%s> has left the room", name)
}

func (h *handler) run() {
	defer h.close()

	if !h.handshake() {
		return
	}
	h.serve()
}

// handshake waits for the name frame and registers the session. It reports
// whether the connection moved to the active state.
func (h *handler) handshake() bool {
	m, err := h.conn.ReadMessage()
	if errors.Is(err, io.EOF) {
		h.logger.Debug("connection abandoned before handshake")
		return false
	}
	if err != nil {
		h.logger.Warn("handshake failed", "reason", readErrorKind(err), "error", err)
		return false
	}

	if m.Kind != protocol.KindName {
		h.logger.Warn("handshake failed", "reason", "unexpected frame", "kind", m.Kind)
		h.reject("expected name")
		return false
	}

	session, err := h.registry.register(h.id, m.Payload, h.conn, h.logger)
	if err != nil {
		h.logger.Info("username rejected", "user", m.Payload, "error", err)
		h.reject(rejectReason)
		return false
	}

	h.session = session
	h.state = stateActive
	h.logger = h.logger.With("user", session.Username())
	h.logger.Info("user joined", "online", h.registry.Len())

	h.router.Announce(joinedNotice(session.Username()), session.Username())
	session.Send(protocol.Users(h.registry.ListOthers(session.Username())))
	return true
}

// reject answers a refused handshake. No session exists yet, so the frame is
// written directly.
func (h *handler) reject(reason string) {
	if err := h.conn.WriteMessage(protocol.Error(reason)); err != nil && !isExpectedCloseError(err) {
		h.logger.Warn("writing error frame failed", "error", err)
	}
}

// serve is the active read loop. Any read error ends it.
func (h *handler) serve() {
	name := h.session.Username()
	for {
		m, err := h.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
				h.logger.Debug("read loop finished", "reason", readErrorKind(err))
			} else {
				h.logger.Warn("read loop failed", "reason", readErrorKind(err), "error", err)
			}
			return
		}

		switch m.Kind {
		case protocol.KindMessage:
			if !h.limiter.allow() {
				h.logger.Warn("rate limit exceeded; discarding message")
				continue
			}
			h.router.Broadcast(m.Payload, name)
		case protocol.KindUsers:
			h.session.Send(protocol.Users(h.registry.ListOthers(name)))
		default:
			h.logger.Debug("ignoring frame", "kind", m.Kind)
		}
	}
}

// close releases the connection. A registered session is removed, announced
// as gone, and flushed before the socket closes.
func (h *handler) close() {
	if h.state == stateClosed {
		return
	}

	if h.session != nil {
		name := h.session.Username()
		h.registry.Unregister(name)
		h.router.Announce(leftNotice(name), name)
		<-h.session.Done()
		h.logger.Info("user left", "online", h.registry.Len())
	}

	if err := h.conn.Close(); err != nil && !isExpectedCloseError(err) {
		h.logger.Debug("closing connection", "error", err)
	}
	h.state = stateClosed
}
