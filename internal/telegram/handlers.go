package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/analytics"
	"availability-dashboard/internal/chart"
)

// Telegram rejects longer text messages.
const maxMessageLen = 4096

const helpText = `Ask me anything about store availability, for example:
- What is the average availability by hour?
- Show the hourly trend for the last day
- When was availability at its peak?

/summary shows what the dataset contains.
/reset forgets this conversation.`

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if msg.Text == "" {
		return
	}

	chatID := msg.Chat.ID
	b.logger.Debug("incoming message", zap.Int64("chat_id", chatID), zap.String("text", msg.Text))

	askCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		askCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	res, err := b.agent.Ask(askCtx, agent.Request{
		Question: msg.Text,
		History:  b.history.Get(chatID),
		Source:   "telegram",
		ChatID:   chatID,
	})
	if errors.Is(err, agent.ErrEmptyQuestion) {
		b.sendMessage(chatID, helpText)
		return
	}
	if err != nil || res.Err != nil {
		b.sendMessage(chatID, "Sorry, I could not answer that. Please try again or rephrase the question.")
		return
	}

	b.history.AppendExchange(chatID, strings.TrimSpace(msg.Text), res.Explanation)
	answer := res.Explanation
	if answer == "" {
		answer = "Here is the chart."
	}
	if res.Chart == nil && res.ChartErr != nil {
		answer += "\n\n(The chart could not be built for this question.)"
	}
	b.sendMessage(chatID, answer)

	if res.Chart != nil {
		b.sendChart(chatID, res.Chart)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case startCmd, helpCmd:
		b.sendMessage(chatID, helpText)
	case resetCmd:
		b.history.Reset(chatID)
		b.sendMessage(chatID, "Conversation cleared.")
	case summaryCmd:
		b.sendMessage(chatID, b.agent.Dataset().SummaryText())
	case reportCmd:
		if err := b.SendDailyReport(ctx, chatID); err != nil {
			b.logger.Error("report command failed", zap.Error(err))
			b.sendMessage(chatID, "Could not build the usage report.")
		}
	default:
		b.sendMessage(chatID, "Unknown command. Try /help.")
	}
}

// SendDailyReport sends today's (UTC) usage report to chatID.
func (b *Bot) SendDailyReport(_ context.Context, chatID int64) error {
	stats, err := analytics.DailyReport(b.recorder, b.now().UTC())
	if err != nil {
		return err
	}
	if !b.sendMessage(chatID, stats.GenerateReportSummary()) {
		return fmt.Errorf("send report to chat %d failed", chatID)
	}
	return nil
}

func (b *Bot) sendChart(chatID int64, fig *chart.Figure) {
	img, err := chart.RenderPNG(fig)
	if err != nil {
		b.logger.Warn("chart preview failed", zap.Error(err))
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "chart.png", Bytes: img})
	photo.Caption = fig.Layout.Title.Text
	if _, err := b.s.Send(photo); err != nil {
		b.logger.Error("failed to send chart", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendMessage sends text, split into several messages when it is too long.
// It reports whether every part was delivered.
func (b *Bot) sendMessage(chatID int64, text string) bool {
	ok := true
	for _, part := range splitMessage(text, maxMessageLen) {
		if _, err := b.s.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			b.logger.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
			ok = false
		}
	}
	return ok
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks.
func splitMessage(text string, limit int) []string {
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		cut := len(text)
		n := 0
		for i := range text {
			if n == limit {
				cut = i
				break
			}
			n++
		}
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}

// ReportFunc adapts SendDailyReport for the scheduler.
func (b *Bot) ReportFunc(chatID int64) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := b.SendDailyReport(ctx, chatID); err != nil {
			return err
		}
		b.logger.Info("daily report sent", zap.Int64("chat_id", chatID))
		return nil
	}
}
