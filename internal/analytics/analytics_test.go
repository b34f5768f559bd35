package analytics

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"availability-dashboard/internal/storage"
)

func TestAnalyzeDaily(t *testing.T) {
	// Тестовая дата
	testDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	events := []storage.Event{
		// События в целевой день
		{Timestamp: testDate.Add(2 * time.Hour), Source: "telegram", ChatID: 123, Question: "hourly?", HasChart: true, ChartType: "bar", TotalTokens: 100, DurationMS: 900},
		{Timestamp: testDate.Add(4 * time.Hour), Source: "telegram", ChatID: 123, Question: "trend?", HasChart: true, ChartType: "line", TotalTokens: 120, DurationMS: 1100},
		{Timestamp: testDate.Add(5 * time.Hour), Source: "http", Question: "peak?", ErrorKind: "DataShapingError", DurationMS: 700},
		{Timestamp: testDate.Add(6 * time.Hour), Source: "http", Question: "hello", ErrorKind: "MalformedResponse", DurationMS: 300},
		// События в другой день (не должны учитываться)
		{Timestamp: testDate.AddDate(0, 0, 1), Source: "http", Question: "tomorrow"},
		{Timestamp: testDate.Add(-time.Second), Source: "http", Question: "yesterday"},
		// Записи без вопроса не учитываются
		{Timestamp: testDate.Add(8 * time.Hour), Source: "http"},
	}

	stats := AnalyzeDaily(events, testDate)

	if stats.Date != "2024-01-15" {
		t.Errorf("Expected date '2024-01-15', got '%s'", stats.Date)
	}
	if stats.TotalQuestions != 4 {
		t.Errorf("Expected 4 questions, got %d", stats.TotalQuestions)
	}
	if stats.UniqueChats != 2 {
		t.Errorf("Expected 2 unique chats, got %d", stats.UniqueChats)
	}
	if stats.Answered != 3 {
		t.Errorf("Expected 3 answered, got %d", stats.Answered)
	}
	if stats.ChartsProduced != 2 || stats.ChartTypes["bar"] != 1 || stats.ChartTypes["line"] != 1 {
		t.Errorf("Unexpected chart stats: %d %v", stats.ChartsProduced, stats.ChartTypes)
	}
	if stats.ErrorsByKind["DataShapingError"] != 1 || stats.ErrorsByKind["MalformedResponse"] != 1 {
		t.Errorf("Unexpected errors: %v", stats.ErrorsByKind)
	}
	if stats.BySource["telegram"] != 2 || stats.BySource["http"] != 2 {
		t.Errorf("Unexpected sources: %v", stats.BySource)
	}
	if stats.TotalTokens != 220 || stats.AvgDurationMS != 750 {
		t.Errorf("Unexpected totals: tokens=%d avg=%d", stats.TotalTokens, stats.AvgDurationMS)
	}
}

func TestAnalyzeDailyEmptyData(t *testing.T) {
	testDate := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)
	stats := AnalyzeDaily(nil, testDate)

	if stats.Date != "2024-01-15" {
		t.Errorf("Expected date '2024-01-15', got '%s'", stats.Date)
	}
	if stats.TotalQuestions != 0 || stats.UniqueChats != 0 || stats.AvgDurationMS != 0 {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
	if strings.Contains(stats.GenerateReportSummary(), "Errors:") {
		t.Error("empty sections should be omitted")
	}
}

func TestGenerateReportSummary(t *testing.T) {
	stats := &DailyStats{
		Date:           "2024-01-15",
		TotalQuestions: 5,
		Answered:       4,
		UniqueChats:    2,
		ChartsProduced: 3,
		ChartTypes:     map[string]int{"line": 1, "bar": 2},
		ErrorsByKind:   map[string]int{"AgentFailure": 1},
		BySource:       map[string]int{"http": 5},
	}
	summary := stats.GenerateReportSummary()

	for _, want := range []string{
		"usage for 2024-01-15",
		"Questions: 5 (4 answered)",
		"Unique chats: 2",
		"Charts produced: 3",
		"- AgentFailure: 1",
		"- http: 5",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}
	if strings.Index(summary, "- bar: 2") > strings.Index(summary, "- line: 1") {
		t.Errorf("chart types should be sorted by count:\n%s", summary)
	}
}

func TestToJSON(t *testing.T) {
	stats := AnalyzeDaily(nil, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	raw, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var parsed DailyStats
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if parsed.Date != stats.Date {
		t.Errorf("Expected date %s, got %s", stats.Date, parsed.Date)
	}
}

func TestDailyReport(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	rec := recorderWith(storage.Event{Timestamp: day.Add(time.Hour), Source: "cli", Question: "q"})
	stats, err := DailyReport(rec, day)
	if err != nil {
		t.Fatalf("DailyReport: %v", err)
	}
	if stats.TotalQuestions != 1 {
		t.Errorf("Expected 1 question, got %d", stats.TotalQuestions)
	}
}

type staticRecorder []storage.Event

func recorderWith(events ...storage.Event) staticRecorder { return events }

func (r staticRecorder) AppendEvent(storage.Event) error      { return nil }
func (r staticRecorder) LoadEvents() ([]storage.Event, error) { return r, nil }
