// Package server implements the linechat chat server.
//
// The implementation is organized into specialized files for configuration,
// the session registry, the broadcast router, the per-connection handler,
// and the TCP and WebSocket transports to keep the codebase maintainable and
// testable as the project grows.
package server
