// Package telegram is the chat front door: a question in, the explanation
// and a PNG preview of the chart out.
package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/history"
	"availability-dashboard/internal/storage"
)

const (
	startCmd   = "start"
	helpCmd    = "help"
	resetCmd   = "reset"
	summaryCmd = "summary"
	reportCmd  = "report"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	s        sender
	agent    *agent.Agent
	history  *history.Manager
	recorder storage.Recorder
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(botToken string, a *agent.Agent, recorder storage.Recorder, timeout time.Duration, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	b := newBot(botAPISender{api: api}, a, recorder, timeout, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, a *agent.Agent, recorder storage.Recorder, timeout time.Duration, logger *zap.Logger) *Bot {
	if recorder == nil {
		recorder = storage.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		s:        s,
		agent:    a,
		history:  history.NewManager(history.DefaultMaxTurns),
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.Named("telegram"),
		now:      time.Now,
	}
}

// Start polls for updates until ctx is cancelled. Messages are handled one
// at a time.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("bot started", zap.String("username", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
			}
		}
	}
}
