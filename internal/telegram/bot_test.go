package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/dataset/datasettest"
	"availability-dashboard/internal/llm"
	"availability-dashboard/internal/storage"
)

type fakeSender struct {
	texts  []string
	photos []tgbotapi.PhotoConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.texts = append(f.texts, m.Text)
	case tgbotapi.PhotoConfig:
		f.photos = append(f.photos, m)
	}
	return tgbotapi.Message{}, nil
}

type fakeLLM struct {
	resp  llm.Response
	err   error
	calls [][]llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.calls = append(f.calls, msgs)
	return f.resp, f.err
}

type memRecorder struct{ events []storage.Event }

func (r *memRecorder) AppendEvent(ev storage.Event) error {
	r.events = append(r.events, ev)
	return nil
}
func (r *memRecorder) LoadEvents() ([]storage.Event, error) { return r.events, nil }

const hourlyReply = `{"explanation": "Availability peaks at 23:00.", "chart_spec": {"chart_type": "bar",
 "title": "Average by hour", "data_code": "df.groupby('hour')['value'].mean().reset_index()", "x": "hour", "y": "value"}}`

func newTestBot(t *testing.T, reply string) (*Bot, *fakeSender, *fakeLLM, *memRecorder) {
	t.Helper()
	client := &fakeLLM{resp: llm.Response{Content: reply, Model: "test-model"}}
	rec := &memRecorder{}
	fs := &fakeSender{}
	a := agent.New(client, datasettest.New(t), rec, nil)
	b := newBot(fs, a, rec, time.Minute, nil)
	return b, fs, client, rec
}

func textMsg(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{From: &tgbotapi.User{ID: chatID}, Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func commandMsg(chatID int64, cmd string) *tgbotapi.Message {
	m := textMsg(chatID, "/"+cmd)
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}}
	return m
}

func TestHandleIncomingMessage_SendsExplanationAndChart(t *testing.T) {
	b, fs, _, rec := newTestBot(t, hourlyReply)
	b.handleIncomingMessage(context.Background(), textMsg(100, "average by hour?"))

	if len(fs.texts) != 1 || fs.texts[0] != "Availability peaks at 23:00." {
		t.Fatalf("unexpected texts: %+v", fs.texts)
	}
	if len(fs.photos) != 1 {
		t.Fatalf("expected chart photo, got %d", len(fs.photos))
	}
	if fs.photos[0].Caption != "Average by hour" {
		t.Fatalf("caption: %q", fs.photos[0].Caption)
	}
	file, ok := fs.photos[0].File.(tgbotapi.FileBytes)
	if !ok || len(file.Bytes) == 0 || !strings.HasPrefix(string(file.Bytes), "\x89PNG") {
		t.Fatalf("photo is not a PNG")
	}
	if len(rec.events) != 1 || rec.events[0].Source != "telegram" || rec.events[0].ChatID != 100 {
		t.Fatalf("query not recorded: %+v", rec.events)
	}
}

func TestHandleIncomingMessage_CarriesHistory(t *testing.T) {
	b, _, client, _ := newTestBot(t, hourlyReply)
	b.handleIncomingMessage(context.Background(), textMsg(5, "first"))
	b.handleIncomingMessage(context.Background(), textMsg(5, "second"))

	if len(client.calls) != 2 {
		t.Fatalf("want 2 model calls, got %d", len(client.calls))
	}
	// system + previous question + previous answer + new question
	second := client.calls[1]
	if len(second) != 4 || second[1].Content != "first" || second[2].Role != llm.RoleAssistant {
		t.Fatalf("history not replayed: %+v", second)
	}

	b.handleIncomingMessage(context.Background(), commandMsg(5, resetCmd))
	b.handleIncomingMessage(context.Background(), textMsg(5, "third"))
	if got := len(client.calls[2]); got != 2 {
		t.Fatalf("history should be cleared by /reset, got %d messages", got)
	}
}

func TestHandleIncomingMessage_Failure(t *testing.T) {
	b, fs, client, _ := newTestBot(t, "")
	client.err = errors.New("boom")
	b.handleIncomingMessage(context.Background(), textMsg(1, "hello"))

	if len(fs.texts) != 1 || !strings.HasPrefix(fs.texts[0], "Sorry") {
		t.Fatalf("unexpected texts: %+v", fs.texts)
	}
	if len(fs.photos) != 0 {
		t.Fatal("no chart expected on failure")
	}
	if len(b.history.Get(1)) != 0 {
		t.Fatal("failed exchanges must not enter history")
	}
}

func TestHandleIncomingMessage_ChartDropped(t *testing.T) {
	b, fs, _, _ := newTestBot(t, `{"explanation": "Sure.", "chart_spec": {"data_code": "df.nonexistent()"}}`)
	b.handleIncomingMessage(context.Background(), textMsg(1, "chart please"))

	if len(fs.texts) != 1 || !strings.Contains(fs.texts[0], "Sure.") || !strings.Contains(fs.texts[0], "could not be built") {
		t.Fatalf("unexpected texts: %+v", fs.texts)
	}
	if len(fs.photos) != 0 {
		t.Fatal("no chart expected")
	}
}

func TestHandleCommand_Summary(t *testing.T) {
	b, fs, client, _ := newTestBot(t, hourlyReply)
	b.handleIncomingMessage(context.Background(), commandMsg(1, summaryCmd))

	if len(fs.texts) == 0 || !strings.Contains(fs.texts[0], "DATASET SUMMARY") {
		t.Fatalf("unexpected texts: %+v", fs.texts)
	}
	if len(client.calls) != 0 {
		t.Fatal("commands must not call the model")
	}
}

func TestSendDailyReport(t *testing.T) {
	b, fs, _, _ := newTestBot(t, hourlyReply)
	b.handleIncomingMessage(context.Background(), textMsg(9, "hourly"))
	fs.texts = nil

	if err := b.ReportFunc(-100)(context.Background()); err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(fs.texts) != 1 || !strings.Contains(fs.texts[0], "Questions: 1 (1 answered)") {
		t.Fatalf("unexpected report: %+v", fs.texts)
	}
}

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	parts := splitMessage(text, 10)
	if len(parts) != 2 || parts[0] != "aaaaaa\n" || parts[1] != "bbbbbb" {
		t.Fatalf("unexpected parts: %q", parts)
	}
	if got := splitMessage("short", 10); len(got) != 1 {
		t.Fatalf("short text should not be split: %q", got)
	}
	long := strings.Repeat("я", 25)
	for _, p := range splitMessage(long, 10) {
		if n := len([]rune(p)); n > 10 {
			t.Fatalf("part too long: %d runes", n)
		}
	}
}
