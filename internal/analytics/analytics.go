package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"availability-dashboard/internal/storage"
)

// Ошибки этих видов заменяют ответ целиком; остальные только убирают график.
var surfacedKinds = map[string]bool{
	"MalformedResponse": true,
	"AgentFailure":      true,
}

// DailyStats содержит статистику запросов за день
type DailyStats struct {
	Date           string         `json:"date"`
	TotalQuestions int            `json:"total_questions"`
	UniqueChats    int            `json:"unique_chats"`
	Answered       int            `json:"answered"`
	ChartsProduced int            `json:"charts_produced"`
	ErrorsByKind   map[string]int `json:"errors_by_kind"`
	ChartTypes     map[string]int `json:"chart_types"`
	BySource       map[string]int `json:"by_source"`
	TotalTokens    int            `json:"total_tokens"`
	AvgDurationMS  int64          `json:"avg_duration_ms"`
}

type chatKey struct {
	source string
	chatID int64
}

// AnalyzeDaily считает статистику событий за календарный день targetDate
// (в его часовом поясе).
func AnalyzeDaily(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		ErrorsByKind: make(map[string]int),
		ChartTypes:   make(map[string]int),
		BySource:     make(map[string]int),
	}

	chats := make(map[chatKey]bool)
	var totalDuration int64
	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		if event.Question == "" {
			continue
		}

		stats.TotalQuestions++
		chats[chatKey{event.Source, event.ChatID}] = true
		stats.BySource[event.Source]++
		stats.TotalTokens += event.TotalTokens
		totalDuration += event.DurationMS

		if event.ErrorKind != "" {
			stats.ErrorsByKind[event.ErrorKind]++
		}
		if !surfacedKinds[event.ErrorKind] {
			stats.Answered++
		}
		if event.HasChart {
			stats.ChartsProduced++
			stats.ChartTypes[event.ChartType]++
		}
	}

	stats.UniqueChats = len(chats)
	if stats.TotalQuestions > 0 {
		stats.AvgDurationMS = totalDuration / int64(stats.TotalQuestions)
	}
	return stats
}

// GenerateReportSummary renders the stats as a short plain-text report.
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Availability assistant usage for %s\n\n", ds.Date)
	fmt.Fprintf(&b, "Questions: %d (%d answered)\n", ds.TotalQuestions, ds.Answered)
	fmt.Fprintf(&b, "Unique chats: %d\n", ds.UniqueChats)
	fmt.Fprintf(&b, "Charts produced: %d\n", ds.ChartsProduced)
	fmt.Fprintf(&b, "Average latency: %d ms\n", ds.AvgDurationMS)
	fmt.Fprintf(&b, "Tokens used: %d\n", ds.TotalTokens)

	writeCounts(&b, "By source", ds.BySource)
	writeCounts(&b, "Chart types", ds.ChartTypes)
	writeCounts(&b, "Errors", ds.ErrorsByKind)
	return b.String()
}

// writeCounts prints a section sorted by count, then name.
func writeCounts(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(b, "- %s: %d\n", name, counts[name])
	}
}

// ToJSON сериализует статистику в JSON для детального анализа
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DailyReport загружает журнал запросов и собирает отчет за день.
func DailyReport(rec storage.Recorder, day time.Time) (*DailyStats, error) {
	events, err := rec.LoadEvents()
	if err != nil {
		return nil, fmt.Errorf("load query log: %w", err)
	}
	return AnalyzeDaily(events, day), nil
}
