// Package app wires configuration into the components every entry point
// needs: logger, dataset, model client, query log and agent.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/config"
	"availability-dashboard/internal/dataset"
	"availability-dashboard/internal/llm"
	"availability-dashboard/internal/storage"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Dataset  *dataset.Dataset
	Recorder storage.Recorder
	Agent    *agent.Agent
}

// NewLogger builds a production zap logger at level. verbose forces debug.
func NewLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// New loads the dataset and builds the agent. An unusable query log path
// only disables query logging.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	data, err := dataset.Load(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded",
		zap.String("path", cfg.DataPath),
		zap.Int("rows", data.Summary().TotalRows),
		zap.String("from", data.Summary().DateRange.Start),
		zap.String("to", data.Summary().DateRange.End))

	client, err := llm.NewFactory(cfg).CreateClient(ctx, string(cfg.LLMProvider), cfg.LLMModel)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	var rec storage.Recorder = storage.Nop{}
	if cfg.QueryLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.QueryLogPath)
		if err != nil {
			logger.Warn("query log disabled", zap.String("path", cfg.QueryLogPath), zap.Error(err))
		} else {
			rec = fr
		}
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Dataset:  data,
		Recorder: rec,
		Agent:    agent.New(client, data, rec, logger),
	}, nil
}

// Close flushes and releases the query log.
func (a *App) Close() error {
	if c, ok := a.Recorder.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
