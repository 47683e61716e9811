// Package server defines the registration errors and the connection error
// helpers shared by the handler, the sessions, and both transports.
package server

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/Tyrowin/linechat/internal/protocol"
)

var (
	// ErrDuplicateUsername is returned by Registry.Register when the
	// username belongs to an active session.
	ErrDuplicateUsername = errors.New("server: username already taken")

	// ErrInvalidUsername is returned by Registry.Register for an empty
	// username or one containing a space.
	ErrInvalidUsername = errors.New("server: invalid username")

	// ErrServerClosed is returned by Serve after Shutdown.
	ErrServerClosed = errors.New("server: closed")
)

// rejectReason is the error frame payload for a refused handshake.
const rejectReason = "invalid username"

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}

// readErrorKind names a read failure for logging.
func readErrorKind(err error) string {
	switch {
	case errors.Is(err, io.EOF):
		return "disconnected"
	case errors.Is(err, protocol.ErrLineTooLong):
		return "frame too large"
	case errors.Is(err, protocol.ErrMalformedMessage):
		return "malformed frame"
	case isExpectedCloseError(err):
		return "connection closed"
	default:
		return "read error"
	}
}
