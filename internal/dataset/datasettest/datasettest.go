// Package datasettest builds small deterministic datasets for tests.
package datasettest

import (
	"testing"
	"time"

	"availability-dashboard/internal/dataset"
	"availability-dashboard/internal/frame"
)

// Start is the first timestamp of the generated series.
var Start = time.Date(2026, 2, 1, 0, 0, 0, 0, time.FixedZone("", -5*3600))

// Frame returns days×24 hours of samples every 10 minutes. value is
// 1000 + 100*hour + 10*day + minute/10, so hourly means are easy to check.
func Frame(tb testing.TB, days int) *frame.Frame {
	tb.Helper()
	n := days * 24 * 6
	times := make([]time.Time, n)
	vals := make([]float64, n)
	hours := make([]float64, n)
	names := make([]string, n)
	metrics := make([]string, n)
	for i := 0; i < n; i++ {
		t := Start.Add(time.Duration(i) * 10 * time.Minute)
		day := i / (24 * 6)
		times[i] = t
		hours[i] = float64(t.Hour())
		vals[i] = float64(1000 + 100*t.Hour() + 10*day + t.Minute()/10)
		names[i] = "NOW"
		metrics[i] = "synthetic_monitoring_visible_stores"
	}
	f, err := frame.New(
		frame.NewStrings(dataset.ColPlotName, names),
		frame.NewStrings(dataset.ColMetric, metrics),
		frame.NewTimes(dataset.ColTimestamp, times),
		frame.NewIntegers(dataset.ColValue, vals),
		frame.NewIntegers(dataset.ColHour, hours),
	)
	if err != nil {
		tb.Fatalf("build frame: %v", err)
	}
	return f
}

// New returns a validated two-day dataset.
func New(tb testing.TB) *dataset.Dataset {
	tb.Helper()
	d, err := dataset.New(Frame(tb, 2))
	if err != nil {
		tb.Fatalf("build dataset: %v", err)
	}
	return d
}
