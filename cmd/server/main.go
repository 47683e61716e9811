package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Tyrowin/linechat/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	config := server.NewConfigFromEnv()

	level := os.Getenv("LOG_LEVEL")
	flag.StringVar(&config.Addr, "addr", config.Addr, "TCP listen address of the chat protocol")
	flag.StringVar(&config.HTTPAddr, "http", config.HTTPAddr, "listen address of the WebSocket gateway, empty to disable")
	flag.StringVar(&level, "log-level", level, "log level: debug, info, warn or error")
	flag.Parse()

	logger, err := newLogger(level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	if err := run(config, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if level != "" {
		if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func run(config *server.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chat := server.NewServer(config, logger)
	errs := make(chan error, 2)

	go func() {
		if err := chat.ListenAndServe(); !errors.Is(err, server.ErrServerClosed) {
			errs <- fmt.Errorf("chat listener: %w", err)
		}
	}()

	gateway := chat.Config().HTTPAddr != ""
	httpServer := server.CreateServer(chat.Config().HTTPAddr, chat.SetupRoutes())
	if gateway {
		go func() {
			if err := server.StartServer(httpServer, logger); err != nil {
				errs <- fmt.Errorf("http gateway: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errs:
	}

	if gateway {
		_ = server.ShutdownServer(httpServer, shutdownTimeout, logger)
	}
	if err := chat.Shutdown(shutdownTimeout); err != nil && runErr == nil {
		runErr = fmt.Errorf("chat shutdown: %w", err)
	}
	return runErr
}
