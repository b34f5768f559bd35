package dataset

import (
	"fmt"
	"math"
	"time"

	"availability-dashboard/internal/frame"
)

const maxPreviewRows = 100

// Preview returns the first n rows (at most 100) with timestamps as text.
func (d *Dataset) Preview(n int) []map[string]any {
	if n < 0 {
		n = 0
	}
	head := d.frame.Head(min(n, maxPreviewRows))
	recs := head.Records()
	ts, _ := head.Column(ColTimestamp)
	for i, rec := range recs {
		rec[ColTimestamp] = FormatTimestamp(ts.Times[i])
	}
	return recs
}

// FilterParams selects a slice of the dataset for the dashboard charts.
// Zero values mean "no bound"; DateEnd is inclusive.
type FilterParams struct {
	DateStart string
	DateEnd   string
	HourStart *int
	HourEnd   *int
	Resample  string
}

type KPIs struct {
	Current      int64   `json:"current"`
	Average      float64 `json:"average"`
	Peak         int64   `json:"peak"`
	UptimePct    float64 `json:"uptime_pct"`
	Threshold    float64 `json:"threshold"`
	TotalRecords int     `json:"total_records"`
}

type TimePoint struct {
	Timestamp string   `json:"timestamp"`
	Mean      *float64 `json:"mean"`
	Std       float64  `json:"std"`
	MA5Min    *float64 `json:"ma_5min"`
	Upper     *float64 `json:"upper"`
	Lower     *float64 `json:"lower"`
}

type HeatCell struct {
	Date  string `json:"date"`
	Hour  int    `json:"hour"`
	Value int64  `json:"value"`
}

type HourlyAvg struct {
	Hour  int   `json:"hour"`
	Value int64 `json:"value"`
}

// Filtered is the payload behind the dashboard's KPI cards and charts.
type Filtered struct {
	TimeSeries []TimePoint `json:"time_series"`
	KPIs       *KPIs       `json:"kpis"`
	Heatmap    []HeatCell  `json:"heatmap"`
	HourlyAvg  []HourlyAvg `json:"hourly_avg"`
}

const defaultResample = "10min"

// movingAverageSpan is the time covered by the moving-average column.
const movingAverageSpan = 5 * time.Minute

// Filter applies the date and hour bounds and computes KPIs, a resampled
// time series, a date×hour heatmap and hourly averages.
func (d *Dataset) Filter(p FilterParams) (*Filtered, error) {
	freqText := p.Resample
	if freqText == "" {
		freqText = defaultResample
	}
	freq, err := frame.ParseFreq(freqText)
	if err != nil {
		return nil, err
	}

	f := d.frame
	ts, _ := f.Column(ColTimestamp)
	loc := ts.Times[0].Location()
	hours, _ := f.Numbers(ColHour)

	var start, end time.Time
	if p.DateStart != "" {
		if start, err = parseDay(p.DateStart, loc); err != nil {
			return nil, fmt.Errorf("date_start: %w", err)
		}
	}
	if p.DateEnd != "" {
		if end, err = parseDay(p.DateEnd, loc); err != nil {
			return nil, fmt.Errorf("date_end: %w", err)
		}
		end = end.AddDate(0, 0, 1)
	}

	mask := make([]bool, f.Len())
	for i := range mask {
		t, h := ts.Times[i], int(hours[i])
		mask[i] = (start.IsZero() || !t.Before(start)) &&
			(end.IsZero() || t.Before(end)) &&
			(p.HourStart == nil || h >= *p.HourStart) &&
			(p.HourEnd == nil || h <= *p.HourEnd)
	}
	sel, err := f.Filter(mask)
	if err != nil {
		return nil, err
	}

	out := &Filtered{
		TimeSeries: []TimePoint{},
		Heatmap:    []HeatCell{},
		HourlyAvg:  []HourlyAvg{},
	}
	if sel.Len() == 0 {
		return out, nil
	}

	vals, _ := sel.Numbers(ColValue)
	out.KPIs = kpis(vals)

	if out.TimeSeries, err = timeSeries(sel, freq); err != nil {
		return nil, err
	}
	if out.Heatmap, err = heatmap(sel); err != nil {
		return nil, err
	}
	if out.HourlyAvg, err = hourly(sel); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func kpis(vals []float64) *KPIs {
	avg := round(frame.Reduce(frame.Mean, vals), 2)
	std := round(frame.Reduce(frame.Std, vals), 2)
	// uptime: share of samples above one standard deviation under the mean
	threshold := math.Max(0, avg-std)
	above := 0
	for _, v := range vals {
		if v > threshold {
			above++
		}
	}
	return &KPIs{
		Current:      int64(vals[len(vals)-1]),
		Average:      avg,
		Peak:         int64(frame.Reduce(frame.Max, vals)),
		UptimePct:    round(float64(above)/float64(len(vals))*100, 1),
		Threshold:    math.RoundToEven(threshold),
		TotalRecords: len(vals),
	}
}

func timeSeries(sel *frame.Frame, freq frame.Freq) ([]TimePoint, error) {
	means, err := frame.Resample(sel, ColTimestamp, freq, []string{ColValue}, frame.Mean)
	if err != nil {
		return nil, err
	}
	stds, err := frame.Resample(sel, ColTimestamp, freq, []string{ColValue}, frame.Std)
	if err != nil {
		return nil, err
	}
	starts := means.Index()[0].Times
	m, _ := means.Numbers(ColValue)
	s, _ := stds.Numbers(ColValue)

	window := max(1, int(movingAverageSpan/freq.Duration()))
	ma := frame.RollingMean(m, window, 1)

	out := make([]TimePoint, len(starts))
	for i, start := range starts {
		std := s[i]
		if math.IsNaN(std) {
			std = 0
		}
		p := TimePoint{
			Timestamp: FormatTimestamp(start),
			Mean:      optional(m[i]),
			Std:       std,
			MA5Min:    optional(ma[i]),
			Upper:     optional(m[i] + std),
			Lower:     optional(math.Max(0, m[i]-std)),
		}
		if math.IsNaN(m[i]) {
			p.Lower = nil
		}
		out[i] = p
	}
	return out, nil
}

func heatmap(sel *frame.Frame) ([]HeatCell, error) {
	ts, _ := sel.Column(ColTimestamp)
	days := make([]time.Time, len(ts.Times))
	for i, t := range ts.Times {
		y, m, d := t.Date()
		days[i] = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
	withDate, err := sel.WithColumn(frame.NewDates("date", days))
	if err != nil {
		return nil, err
	}
	g, err := frame.GroupBy(withDate, []string{"date", ColHour}, []string{ColValue}, frame.Mean)
	if err != nil {
		return nil, err
	}
	dates, hours := g.Index()[0], g.Index()[1]
	vals, _ := g.Numbers(ColValue)
	out := make([]HeatCell, len(vals))
	for i := range vals {
		out[i] = HeatCell{
			Date:  dates.Times[i].Format(frame.DateLayout),
			Hour:  int(hours.Nums[i]),
			Value: int64(math.RoundToEven(vals[i])),
		}
	}
	return out, nil
}

func hourly(sel *frame.Frame) ([]HourlyAvg, error) {
	g, err := frame.GroupBy(sel, []string{ColHour}, []string{ColValue}, frame.Mean)
	if err != nil {
		return nil, err
	}
	hours := g.Index()[0].Nums
	vals, _ := g.Numbers(ColValue)
	out := make([]HourlyAvg, len(vals))
	for i := range vals {
		out[i] = HourlyAvg{Hour: int(hours[i]), Value: int64(math.RoundToEven(vals[i]))}
	}
	return out, nil
}

func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
