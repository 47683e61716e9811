// Package server constructs and starts the linechat HTTP gateway with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified address and handler.
// Read and write timeouts stay unset because upgraded WebSocket connections are long lived;
// the WebSocket transport manages its own deadlines.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns nil after a graceful shutdown and the listen error otherwise.
func StartServer(server *http.Server, logger *slog.Logger) error {
	logger.Info("http gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server.
// Hijacked WebSocket connections are not tracked by net/http; close them
// through Server.Shutdown.
func ShutdownServer(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("shutting down http gateway")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http gateway shutdown error", "error", err)
		return err
	}

	logger.Info("http gateway shutdown completed")
	return nil
}
