// Package server implements the TCP accept loop and connection lifecycle
// of the linechat server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server accepts chat connections and relays messages between them. Each
// Server owns its registry, so several can run in one process.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	registry *Registry
	router   *Router
	origins  originPolicy
	upgrader websocket.Upgrader

	mu        sync.Mutex
	closing   bool
	listeners map[net.Listener]struct{}
	conns     map[Conn]struct{}
	wg        sync.WaitGroup
}

// NewServer creates a server from cfg. A nil cfg selects the defaults and a
// nil logger selects slog.Default.
func NewServer(cfg *Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	sanitized := sanitize(*cfg)
	registry := NewRegistry(sanitized.SendQueueSize, logger)

	s := &Server{
		cfg:       sanitized,
		logger:    logger,
		registry:  registry,
		router:    NewRouter(registry, logger),
		origins:   newOriginPolicy(sanitized.AllowedOrigins, logger),
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}

// Registry returns the server's session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Router returns the server's broadcast router.
func (s *Server) Router() *Router {
	return s.router
}

// ListenAndServe listens on the configured TCP address and serves it.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown, and always returns
// a non-nil error. After Shutdown it returns ErrServerClosed.
func (s *Server) Serve(listener net.Listener) error {
	if !s.trackListener(listener, true) {
		listener.Close()
		return ErrServerClosed
	}
	defer s.trackListener(listener, false)

	s.logger.Info("chat server listening", "addr", listener.Addr().String())

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			backoff = nextBackoff(backoff)
			s.logger.Warn("accept failed; retrying", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		go s.ServeConn(newTCPConn(conn, s.cfg.MaxMessageSize, s.cfg.WriteTimeout))
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		return time.Second
	}
	return d
}

// ServeConn runs the chat protocol on conn and returns once the connection
// is closed. It may be used with any Conn transport.
func (s *Server) ServeConn(conn Conn) {
	if !s.trackConn(conn, true) {
		conn.Close()
		return
	}
	defer s.trackConn(conn, false)

	id := uuid.NewString()
	h := &handler{
		conn:     conn,
		id:       id,
		registry: s.registry,
		router:   s.router,
		limiter:  newRateLimiter(s.cfg.RateLimit.Burst, s.cfg.RateLimit.RefillInterval),
		logger:   s.logger.With("conn", id, "addr", conn.RemoteAddr()),
		state:    stateAwaitingName,
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("connection handler panicked", "panic", r, "state", h.state, "stack", string(debug.Stack()))
			h.close()
		}
	}()

	h.logger.Debug("connection accepted")
	h.run()
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) trackListener(l net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closing {
			return false
		}
		s.listeners[l] = struct{}{}
		return true
	}
	delete(s.listeners, l)
	return true
}

func (s *Server) trackConn(c Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closing {
			return false
		}
		s.conns[c] = struct{}{}
		s.wg.Add(1)
		return true
	}
	delete(s.conns, c)
	s.wg.Done()
	return true
}

// Shutdown stops accepting, closes every connection, and waits for their
// handlers to finish or the timeout to expire.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	listeners := make([]net.Listener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	conns := make([]Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.logger.Info("shutting down chat server", "connections", len(conns))

	for _, l := range listeners {
		if err := l.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Warn("closing listener", "error", err)
		}
	}
	for _, c := range conns {
		if err := c.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Warn("closing connection", "addr", c.RemoteAddr(), "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("chat server shutdown completed")
		return nil
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout reached, some connections may still be open")
		return context.DeadlineExceeded
	}
}
