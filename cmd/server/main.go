// Package main is the entry point for the claude-relay server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnphuc/claude-relay/internal/adapter"
	"github.com/tnphuc/claude-relay/internal/chat"
	"github.com/tnphuc/claude-relay/internal/config"
	"github.com/tnphuc/claude-relay/internal/domain"
	"github.com/tnphuc/claude-relay/internal/handler"
	"github.com/tnphuc/claude-relay/internal/security"
	"github.com/tnphuc/claude-relay/internal/ui"
)

func main() {
	start := time.Now()

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)

	logger.Info("starting claude-relay",
		slog.String("model", cfg.Anthropic.Model),
		slog.Int("modes", len(cfg.ChatModes)),
	)

	cooldown := time.Duration(cfg.Anthropic.KeyCooldownSeconds) * time.Second
	keys := domain.NewKeyRing(cfg.Anthropic.APIKeys, cooldown)
	if keys.Size() == 0 {
		logger.Error("no API keys configured, set ANTHROPIC_API_KEY or anthropic.api_keys")
		os.Exit(1)
	}

	logger.Info("key ring initialized",
		slog.Int("total_keys", keys.Size()),
		slog.Duration("cooldown", cooldown),
	)

	anthropic := adapter.NewAnthropicAdapter(keys,
		adapter.WithBaseURL(cfg.Anthropic.BaseURL),
		adapter.WithTimeout(time.Duration(cfg.Anthropic.RequestTimeoutSeconds)*time.Second),
	)

	client := chat.NewClient(anthropic, cfg, cfg.Anthropic.Model, chat.WithLogger(logger))

	chatHandler := handler.NewChatHandler(client, cfg, keys, handler.WithLogger(logger))

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(handler.RecoveryMiddleware(logger))
	router.Use(handler.CORSMiddleware())
	router.Use(handler.LoggingMiddleware(logger))

	router.POST("/v1/chat", chatHandler.HandleChat)
	router.POST("/v1/chat/stream", chatHandler.HandleChatStream)
	router.GET("/v1/modes", chatHandler.HandleModes)
	router.GET("/health", chatHandler.HandleHealth)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("address", addr))

		ui.PrintBanner()
		ui.PrintStartupInfo(cfg.Server.Host, cfg.Server.Port, cfg.Anthropic.Model, keys.ActiveCount(), cfg.ModeKeys())

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	ui.PrintShutdown()

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
	ui.PrintUptime(start)
	ui.PrintGoodbye()
}

// setupLogger builds the structured logger: JSON or text per config, wrapped
// so API keys never reach the log output.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if cfg.Format == "text" {
		inner = slog.NewTextHandler(os.Stdout, opts)
	} else {
		inner = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(security.NewRedactedHandler(inner))
	slog.SetDefault(logger)

	return logger
}
