// Package chart turns a model-authored chart spec and a shaped table into a
// Plotly figure document, plus a PNG preview for clients without Plotly.
package chart

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is a chart type tag.
type Kind string

const (
	Line      Kind = "line"
	Bar       Kind = "bar"
	Scatter   Kind = "scatter"
	Area      Kind = "area"
	Histogram Kind = "histogram"
	Box       Kind = "box"
)

// Kinds lists the supported chart types.
var Kinds = []Kind{Line, Bar, Scatter, Area, Histogram, Box}

// Resolve maps unknown or empty kinds to Line.
func (k Kind) Resolve() Kind {
	norm := Kind(strings.ToLower(strings.TrimSpace(string(k))))
	for _, known := range Kinds {
		if norm == known {
			return known
		}
	}
	return Line
}

// Defaults applied to fields the model leaves out.
const (
	DefaultKind     = Line
	DefaultTitle    = "Chart"
	DefaultDataCode = "df"
	DefaultX        = "timestamp"
	DefaultY        = "value"
)

// Spec describes what to plot. Every field has a default, so any JSON
// object decodes into a usable Spec.
type Spec struct {
	ChartType Kind              `json:"chart_type"`
	Title     string            `json:"title"`
	DataCode  string            `json:"data_code"`
	X         string            `json:"x"`
	Y         string            `json:"y"`
	Color     string            `json:"color,omitempty"`
	Labels    map[string]string `json:"labels"`
}

// UnmarshalJSON decodes leniently: missing, null or wrongly typed fields
// take their defaults, unknown fields are ignored. Only input that is not a
// JSON object fails.
func (s *Spec) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("chart spec: %w", err)
	}
	str := func(key string) string {
		var v string
		if m, ok := raw[key]; ok {
			_ = json.Unmarshal(m, &v)
		}
		return v
	}
	*s = Spec{
		ChartType: Kind(str("chart_type")),
		Title:     str("title"),
		DataCode:  str("data_code"),
		X:         str("x"),
		Y:         str("y"),
		Color:     str("color"),
	}
	if m, ok := raw["labels"]; ok {
		var labels map[string]any
		if json.Unmarshal(m, &labels) == nil {
			for col, label := range labels {
				if text, ok := label.(string); ok {
					if s.Labels == nil {
						s.Labels = make(map[string]string, len(labels))
					}
					s.Labels[col] = text
				}
			}
		}
	}
	s.applyDefaults()
	return nil
}

// WithDefaults returns a copy of s with every empty field defaulted.
func (s Spec) WithDefaults() Spec {
	s.applyDefaults()
	return s
}

func (s *Spec) applyDefaults() {
	if strings.TrimSpace(string(s.ChartType)) == "" {
		s.ChartType = DefaultKind
	}
	if s.Title == "" {
		s.Title = DefaultTitle
	}
	if strings.TrimSpace(s.DataCode) == "" {
		s.DataCode = DefaultDataCode
	}
	if s.X == "" {
		s.X = DefaultX
	}
	if s.Y == "" {
		s.Y = DefaultY
	}
	if s.Labels == nil {
		s.Labels = map[string]string{}
	}
}

// label returns the display label for a column.
func (s Spec) label(col string) string {
	if l, ok := s.Labels[col]; ok && l != "" {
		return l
	}
	return col
}
