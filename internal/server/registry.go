// Package server keeps the authoritative set of named sessions in the
// Registry, the only shared state every connection handler touches.
package server

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/linechat/internal/protocol"
)

// Registry maps usernames to active sessions. All methods are safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	queueSize int
	logger    *slog.Logger
}

// NewRegistry creates an empty registry whose sessions buffer up to
// queueSize outgoing frames.
func NewRegistry(queueSize int, logger *slog.Logger) *Registry {
	if queueSize <= 0 {
		queueSize = defaultSendQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		queueSize: queueSize,
		logger:    logger,
	}
}

// validUsername reports whether name can be used as a frame's sender field.
func validUsername(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \n")
}

// Register claims username for conn and returns the new session. The welcome
// frame is queued before the session becomes visible to broadcasts, so it is
// always the first frame the client receives.
func (r *Registry) Register(username string, conn Conn) (*Session, error) {
	return r.register(uuid.NewString(), username, conn, r.logger)
}

func (r *Registry) register(id, username string, conn Conn, logger *slog.Logger) (*Session, error) {
	if !validUsername(username) {
		return nil, ErrInvalidUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.sessions[username]; taken {
		return nil, ErrDuplicateUsername
	}

	session := newSession(id, username, conn, r.queueSize, logger.With("user", username))
	session.Send(protocol.Welcome())
	r.sessions[username] = session
	go session.writePump()

	return session, nil
}

// Unregister removes username and closes its session's queue. Removing an
// absent name is a no-op.
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	session, ok := r.sessions[username]
	if ok {
		delete(r.sessions, username)
	}
	r.mu.Unlock()

	if ok {
		session.close()
	}
}

// Lookup returns the session registered under username.
func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[username]
	return session, ok
}

// ListOthers returns every registered username except excluding, sorted.
func (r *Registry) ListOthers(excluding string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		if name != excluding {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshot returns a thread-safe snapshot of all current sessions
func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}
