package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"availability-dashboard/internal/app"
	"availability-dashboard/internal/config"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	// zap's production config writes to stderr; stdout carries the protocol.
	logger, err := app.NewLogger(cfg.LogLevel, false)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	server := newServer(&availabilityTools{agent: a.Agent, logger: logger.Named("mcp")})
	logger.Info("starting MCP server on stdin/stdout", zap.Strings("tools", []string{"ask_availability", "dataset_summary"}))
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil && ctx.Err() == nil {
		logger.Fatal("MCP server failed", zap.Error(err))
	}
}
