package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mustafaguc/command-service/internal/config"
	"github.com/mustafaguc/command-service/internal/executor"
	"github.com/mustafaguc/command-service/internal/httpapi"
	"github.com/mustafaguc/command-service/internal/jobs"
	"github.com/mustafaguc/command-service/internal/validator"
	"github.com/mustafaguc/command-service/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	// Core components
	store := jobs.NewInMemoryStore()
	sender := webhook.NewHTTPSender(cfg.WebhookTimeout, cfg.WebhookMaxRetries)
	streamer := jobs.NewLogStreamer()
	runner := executor.NewExecRunner(executor.WithCommandTimeout(cfg.CommandTimeout))
	manager, err := jobs.NewManager(cfg.PoolSize, store, sender, runner, validator.New(), streamer)
	if err != nil {
		slog.Error("failed to initialize manager", "error", err)
		os.Exit(1)
	}
	defer manager.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(manager, streamer),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "INFO", "info":
		return slog.LevelInfo
	case "WARN", "warning", "warn":
		return slog.LevelWarn
	case "ERROR", "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
