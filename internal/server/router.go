package server

import (
	"log/slog"

	"github.com/Tyrowin/linechat/internal/protocol"
)

// Router fans frames out to the sessions of a Registry.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter creates a Router delivering to the sessions of registry.
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, logger: logger}
}

// Broadcast delivers a chat message from sender to every other session and
// returns how many sessions accepted it.
func (rt *Router) Broadcast(payload, sender string) int {
	return rt.deliver(protocol.Chat(sender, payload), sender)
}

// Announce delivers a server notice to every session except exclude.
func (rt *Router) Announce(text, exclude string) int {
	return rt.deliver(protocol.Announcement(text), exclude)
}

// deliver queues m on each target. A target that cannot take the frame is
// dropped by its own session; the others still receive it.
func (rt *Router) deliver(m protocol.Message, exclude string) int {
	targets, delivered := 0, 0

	for _, session := range rt.registry.snapshot() {
		if session.Username() == exclude {
			continue
		}
		targets++
		if session.Send(m) {
			delivered++
		}
	}

	if delivered < targets {
		rt.logger.Debug("broadcast partially delivered", "delivered", delivered, "targets", targets)
	}
	return delivered
}
