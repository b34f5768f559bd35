// Package dataset holds the store-availability time series loaded at
// startup and the read-only views built on it.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"availability-dashboard/internal/frame"
)

// Dataset is immutable after New and safe for concurrent use.
type Dataset struct {
	frame   *frame.Frame
	summary Summary
	text    string
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ValueStats struct {
	Min  int64   `json:"min"`
	Max  int64   `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

type HourRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Summary is the structured description served by the summary endpoint and
// rendered into the model prompt.
type Summary struct {
	TotalRows      int               `json:"total_rows"`
	Columns        map[string]string `json:"columns"`
	ColumnOrder    []string          `json:"-"`
	DateRange      DateRange         `json:"date_range"`
	ValueStats     ValueStats        `json:"value_stats"`
	HourRange      HourRange         `json:"hour_range"`
	Description    string            `json:"description"`
	HourlyAverages map[int]int64     `json:"hourly_averages"`
}

// New validates f and precomputes the summary. timestamp and value must be
// present and non-null in every row and hour must lie in 0..23.
func New(f *frame.Frame) (*Dataset, error) {
	if f.Len() == 0 {
		return nil, fmt.Errorf("dataset has no rows")
	}
	ts, ok := f.Column(ColTimestamp)
	if !ok || ts.Kind != frame.Time {
		return nil, fmt.Errorf("dataset needs a datetime %q column", ColTimestamp)
	}
	vals, err := f.Numbers(ColValue)
	if err != nil {
		return nil, err
	}
	hours, err := f.Numbers(ColHour)
	if err != nil {
		return nil, err
	}
	for i := 0; i < f.Len(); i++ {
		if ts.IsNull(i) {
			return nil, fmt.Errorf("row %d: timestamp is null", i)
		}
		if math.IsNaN(vals[i]) {
			return nil, fmt.Errorf("row %d: value is null", i)
		}
		if h := hours[i]; h < 0 || h > 23 || h != math.Trunc(h) {
			return nil, fmt.Errorf("row %d: hour %v out of range 0-23", i, h)
		}
	}

	d := &Dataset{frame: f}
	d.summary, err = summarize(f)
	if err != nil {
		return nil, err
	}
	d.text = renderSummary(d.summary)
	return d, nil
}

// Frame is the full dataset. Callers must not rely on identity; every
// frame operation returns a new frame.
func (d *Dataset) Frame() *frame.Frame { return d.frame }

func (d *Dataset) Summary() Summary { return d.summary }

// SummaryText is the compact description included in the model prompt.
func (d *Dataset) SummaryText() string { return d.text }

func summarize(f *frame.Frame) (Summary, error) {
	ts, _ := f.Column(ColTimestamp)
	vals, _ := f.Numbers(ColValue)
	hours, _ := f.Numbers(ColHour)

	s := Summary{
		TotalRows:   f.Len(),
		Columns:     make(map[string]string, len(f.Names())),
		ColumnOrder: f.Names(),
	}
	for _, c := range f.Columns() {
		s.Columns[c.Name] = dtype(c)
	}

	first, last := ts.Times[0], ts.Times[0]
	for _, t := range ts.Times {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	s.DateRange = DateRange{Start: FormatTimestamp(first), End: FormatTimestamp(last)}

	s.ValueStats = ValueStats{
		Min:  int64(frame.Reduce(frame.Min, vals)),
		Max:  int64(frame.Reduce(frame.Max, vals)),
		Mean: round(frame.Reduce(frame.Mean, vals), 2),
		Std:  round(frame.Reduce(frame.Std, vals), 2),
	}
	s.HourRange = HourRange{
		Min: int(frame.Reduce(frame.Min, hours)),
		Max: int(frame.Reduce(frame.Max, hours)),
	}

	byHour, err := frame.GroupBy(f, []string{ColHour}, []string{ColValue}, frame.Mean)
	if err != nil {
		return Summary{}, fmt.Errorf("hourly averages: %w", err)
	}
	keys := byHour.Index()[0].Nums
	means, _ := byHour.Numbers(ColValue)
	s.HourlyAverages = make(map[int]int64, len(keys))
	for i, h := range keys {
		s.HourlyAverages[int(h)] = int64(math.RoundToEven(means[i]))
	}

	s.Description = fmt.Sprintf(
		"This dataset contains synthetic monitoring data for visible stores. "+
			"Each row is a measurement taken approximately every %s. "+
			"The 'value' column is the count of visible stores at that timestamp. "+
			"The 'hour' column is the hour of the day (0-23). "+
			"Data spans from %s to %s.%s",
		typicalInterval(ts.Times), first.Format("Jan 2, 2006"), last.Format("Jan 2, 2006"), constants(f))
	return s, nil
}

// constants describes descriptive columns that hold a single value.
func constants(f *frame.Frame) string {
	var parts []string
	for _, c := range f.Columns() {
		if c.Kind != frame.String || len(c.Strs) == 0 {
			continue
		}
		same := true
		for _, v := range c.Strs[1:] {
			if v != c.Strs[0] {
				same = false
				break
			}
		}
		if same {
			parts = append(parts, fmt.Sprintf("'%s' is always '%s'", c.Name, c.Strs[0]))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " The " + strings.Join(parts, " and the ") + "."
}

// typicalInterval is the median gap between consecutive timestamps.
func typicalInterval(times []time.Time) string {
	if len(times) < 2 {
		return "interval"
	}
	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		if g := times[i].Sub(times[i-1]); g > 0 {
			gaps = append(gaps, g.Seconds())
		}
	}
	if len(gaps) == 0 {
		return "interval"
	}
	med := time.Duration(frame.Reduce(frame.Median, gaps) * float64(time.Second)).Round(time.Second)
	switch {
	case med < time.Minute:
		return fmt.Sprintf("%d seconds", int(med.Seconds()))
	case med < time.Hour:
		return fmt.Sprintf("%d minutes", int(med.Minutes()))
	default:
		return med.String()
	}
}

func dtype(c *frame.Column) string {
	switch c.Kind {
	case frame.Number:
		if c.Integer {
			return "int64"
		}
		return "float64"
	case frame.Time:
		if len(c.Times) > 0 {
			return "datetime64[ns, " + zoneName(c.Times[0]) + "]"
		}
		return "datetime64[ns]"
	case frame.Date:
		return "object"
	case frame.Bool:
		return "bool"
	default:
		return "object"
	}
}

func zoneName(t time.Time) string {
	name, off := t.Zone()
	if name != "" {
		return name
	}
	sign := "+"
	if off < 0 {
		sign, off = "-", -off
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, off/3600, off%3600/60)
}

// FormatTimestamp renders t the way the summary and preview present it.
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05-07:00")
}

func renderSummary(s Summary) string {
	var b strings.Builder
	b.WriteString("DATASET SUMMARY\n===============\n")
	fmt.Fprintf(&b, "- Total rows: %s\n", thousands(int64(s.TotalRows)))
	fmt.Fprintf(&b, "- Columns: [%s]\n", quoted(s.ColumnOrder))
	types := make([]string, len(s.ColumnOrder))
	for i, name := range s.ColumnOrder {
		types[i] = fmt.Sprintf("'%s': '%s'", name, s.Columns[name])
	}
	fmt.Fprintf(&b, "- Column types: {%s}\n", strings.Join(types, ", "))
	fmt.Fprintf(&b, "- Date range: %s to %s\n", s.DateRange.Start, s.DateRange.End)
	fmt.Fprintf(&b, "- Value (visible stores count): min=%s, max=%s, mean=%s, std=%s\n",
		thousands(s.ValueStats.Min), thousands(s.ValueStats.Max),
		thousands(int64(math.RoundToEven(s.ValueStats.Mean))), thousands(int64(math.RoundToEven(s.ValueStats.Std))))
	fmt.Fprintf(&b, "- Hour range: %d to %d\n", s.HourRange.Min, s.HourRange.Max)
	b.WriteString("\nDESCRIPTION:\n")
	b.WriteString(s.Description)
	b.WriteString("\n\nHOURLY AVERAGES:\n")

	hours := make([]int, 0, len(s.HourlyAverages))
	for h := range s.HourlyAverages {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	for _, h := range hours {
		fmt.Fprintf(&b, "  Hour %d: avg %s visible stores\n", h, thousands(s.HourlyAverages[h]))
	}
	return b.String()
}

func quoted(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "'" + n + "'"
	}
	return strings.Join(out, ", ")
}

// thousands formats n with comma separators.
func thousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
