package storage

import "time"

// Event is one answered (or failed) question, whatever front door it came
// through. Events are appended in chronological order.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	Source      string    `json:"source"`
	ChatID      int64     `json:"chat_id,omitempty"`
	Question    string    `json:"question"`
	Explanation string    `json:"explanation,omitempty"`
	ChartType   string    `json:"chart_type,omitempty"`
	HasChart    bool      `json:"has_chart"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Model       string    `json:"model,omitempty"`
	TotalTokens int       `json:"total_tokens,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
}

// Recorder abstracts persistence of query events.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendEvent(event Event) error
	LoadEvents() ([]Event, error)
}

// Nop discards events. Used when no query log is configured.
type Nop struct{}

func (Nop) AppendEvent(Event) error      { return nil }
func (Nop) LoadEvents() ([]Event, error) { return nil, nil }
