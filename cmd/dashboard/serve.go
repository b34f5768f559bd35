package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"availability-dashboard/internal/app"
	"availability-dashboard/internal/scheduler"
	"availability-dashboard/internal/server"
	"availability-dashboard/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, plus the Telegram bot and daily report when configured",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(a.Agent, a.Recorder, server.Options{
		Addr:         cfg.Addr(),
		QueryTimeout: cfg.LLMTimeout,
		QueryRate:    cfg.QueryRatePerSec,
		QueryBurst:   cfg.QueryBurst,
	}, logger)
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.TelegramBotToken == "" {
		logger.Info("TELEGRAM_BOT_TOKEN not set, bot disabled")
		return g.Wait()
	}

	bot, err := telegram.New(cfg.TelegramBotToken, a.Agent, a.Recorder, cfg.LLMTimeout, logger)
	if err != nil {
		stop()
		_ = g.Wait()
		return err
	}
	g.Go(func() error { return bot.Start(ctx) })

	if cfg.ReportChatID != 0 {
		sched := scheduler.New(cfg.ReportCron, logger)
		sched.SetReportFunction(bot.ReportFunc(cfg.ReportChatID))
		if err := sched.Start(); err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		logger.Info("daily report scheduled", zap.Int64("chat_id", cfg.ReportChatID), zap.Time("next", sched.Next()))
		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	}

	return g.Wait()
}
