package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"

	"availability-dashboard/internal/frame"
)

const (
	pngWidth      = 1024
	pngHeight     = 512
	histogramBins = 20
	labelLayout   = "01-02 15:04"
)

// RenderPNG draws a static preview of fig for clients that cannot run
// Plotly. Line, area and scatter traces keep their x axis; bars and
// histograms become bar charts; box traces become min/median/max bars per
// category.
func RenderPNG(fig *Figure) ([]byte, error) {
	if fig == nil || len(fig.Data) == 0 {
		return nil, errors.New("render png: empty figure")
	}
	var (
		buf  bytes.Buffer
		err  error
		bars []gochart.Value
	)
	switch fig.Data[0].Type {
	case "scatter":
		if axisOf(fig.Data) == categoryAxis {
			bars = barValues(fig.Data)
			break
		}
		err = renderXY(fig, &buf)
	case "bar":
		bars = barValues(fig.Data)
	case "histogram":
		bars = histogramValues(fig.Data)
	case "box":
		bars = boxValues(fig.Data)
	default:
		err = fmt.Errorf("no preview for %q traces", fig.Data[0].Type)
	}
	if err == nil && buf.Len() == 0 {
		err = renderBars(fig, bars, &buf)
	}
	if err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return buf.Bytes(), nil
}

type axisKind int

const (
	numericAxis axisKind = iota
	timeAxis
	categoryAxis
)

func axisOf(traces []Trace) axisKind {
	kind, seen := numericAxis, false
	for _, t := range traces {
		for _, v := range t.X {
			if v == nil {
				continue
			}
			k := categoryAxis
			if _, ok := toFloat(v); ok {
				k = numericAxis
			} else if _, ok := toTime(v); ok {
				k = timeAxis
			}
			if seen && k != kind {
				return categoryAxis
			}
			kind, seen = k, true
		}
	}
	return kind
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case int64:
		return float64(v), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, frame.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func label(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.Format(labelLayout)
		}
		return v
	}
	return fmt.Sprint(v)
}

func renderXY(fig *Figure, buf *bytes.Buffer) error {
	timed := axisOf(fig.Data) == timeAxis
	var series []gochart.Series
	for i, t := range fig.Data {
		color := gochart.GetDefaultColor(i)
		style := gochart.Style{StrokeWidth: 2, StrokeColor: color}
		switch {
		case t.Mode == "markers":
			style = gochart.Style{StrokeWidth: gochart.Disabled, DotWidth: 3, DotColor: color}
		case t.StackGroup != "":
			style.FillColor = color.WithAlpha(64)
		}

		var times []time.Time
		var xs, ys []float64
		for j := range t.X {
			y, ok := toFloat(at(t.Y, j))
			if !ok {
				continue
			}
			if timed {
				ts, ok := toTime(t.X[j])
				if !ok {
					continue
				}
				times = append(times, ts)
			} else {
				x, ok := toFloat(t.X[j])
				if !ok {
					continue
				}
				xs = append(xs, x)
			}
			ys = append(ys, y)
		}
		if len(ys) == 0 {
			continue
		}
		// go-chart needs two x values to compute a range
		if len(ys) == 1 {
			ys = append(ys, ys[0])
			if timed {
				times = append(times, times[0].Add(time.Second))
			} else {
				xs = append(xs, xs[0]+1)
			}
		}
		if timed {
			series = append(series, gochart.TimeSeries{Name: t.Name, XValues: times, YValues: ys, Style: style})
		} else {
			series = append(series, gochart.ContinuousSeries{Name: t.Name, XValues: xs, YValues: ys, Style: style})
		}
	}
	if len(series) == 0 {
		return errors.New("no numeric points to draw")
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		var ys []float64
		switch s := s.(type) {
		case gochart.TimeSeries:
			ys = s.YValues
		case gochart.ContinuousSeries:
			ys = s.YValues
		}
		for _, y := range ys {
			lo, hi = math.Min(lo, y), math.Max(hi, y)
		}
	}

	xAxis := gochart.XAxis{Name: fig.Layout.XAxis.Title.Text}
	if timed {
		xAxis.ValueFormatter = gochart.TimeValueFormatterWithFormat(labelLayout)
	}
	ch := gochart.Chart{
		Title:      fig.Layout.Title.Text,
		Width:      pngWidth,
		Height:     pngHeight,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xAxis,
		YAxis:      gochart.YAxis{Name: fig.Layout.YAxis.Title.Text},
		Series:     series,
	}
	// a flat series has no y range of its own
	if lo == hi {
		ch.YAxis.Range = &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	if len(series) > 1 {
		ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	}
	return ch.Render(gochart.PNG, buf)
}

func renderBars(fig *Figure, bars []gochart.Value, buf *bytes.Buffer) error {
	if len(bars) == 0 {
		return errors.New("no numeric values to draw")
	}
	lo, hi := 0.0, math.Inf(-1)
	for _, b := range bars {
		lo, hi = math.Min(lo, b.Value), math.Max(hi, b.Value)
	}
	if hi <= lo {
		hi = lo + 1
	}
	slot := (pngWidth - 120) / len(bars)
	bc := gochart.BarChart{
		Title:      fig.Layout.Title.Text,
		Width:      pngWidth,
		Height:     pngHeight,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		BarWidth:   max(1, slot*2/3),
		BarSpacing: max(1, slot/3),
		YAxis: gochart.YAxis{
			Name:  fig.Layout.YAxis.Title.Text,
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
	return bc.Render(gochart.PNG, buf)
}

func at(vals []any, i int) any {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func barValues(traces []Trace) []gochart.Value {
	var bars []gochart.Value
	for _, t := range traces {
		for j, x := range t.X {
			y, ok := toFloat(at(t.Y, j))
			if !ok {
				continue
			}
			l := label(x)
			if len(traces) > 1 {
				l = t.Name + " " + l
			}
			bars = append(bars, gochart.Value{Label: l, Value: y})
		}
	}
	return bars
}

// histogramValues bins numeric x values into equal-width bins, or counts
// categories. With histfunc sum the y values are summed instead.
func histogramValues(traces []Trace) []gochart.Value {
	weight := func(t Trace, j int) (float64, bool) {
		if t.HistFunc != "sum" {
			return 1, true
		}
		return toFloat(at(t.Y, j))
	}

	if axisOf(traces) != numericAxis {
		var bars []gochart.Value
		slot := make(map[string]int)
		for _, t := range traces {
			for j, x := range t.X {
				w, ok := weight(t, j)
				if x == nil || !ok {
					continue
				}
				l := label(x)
				i, seen := slot[l]
				if !seen {
					i = len(bars)
					slot[l] = i
					bars = append(bars, gochart.Value{Label: l})
				}
				bars[i].Value += w
			}
		}
		return bars
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range traces {
		for _, x := range t.X {
			if v, ok := toFloat(x); ok {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	if math.IsInf(lo, 1) {
		return nil
	}
	width := (hi - lo) / histogramBins
	if width == 0 {
		width = 1
	}
	counts := make([]float64, histogramBins)
	for _, t := range traces {
		for j, x := range t.X {
			v, ok := toFloat(x)
			w, wok := weight(t, j)
			if !ok || !wok {
				continue
			}
			b := min(int((v-lo)/width), histogramBins-1)
			counts[b] += w
		}
	}
	bars := make([]gochart.Value, histogramBins)
	for b, c := range counts {
		bars[b] = gochart.Value{Label: strconv.FormatFloat(lo+float64(b)*width, 'f', 0, 64), Value: c}
	}
	return bars
}

func boxValues(traces []Trace) []gochart.Value {
	var bars []gochart.Value
	for _, t := range traces {
		var order []string
		groups := make(map[string][]float64)
		for j := range t.Y {
			y, ok := toFloat(t.Y[j])
			if !ok {
				continue
			}
			l := label(at(t.X, j))
			if t.Name != "" {
				l = t.Name + " " + l
			}
			if _, seen := groups[l]; !seen {
				order = append(order, l)
			}
			groups[l] = append(groups[l], y)
		}
		for _, l := range order {
			vals := groups[l]
			bars = append(bars,
				gochart.Value{Label: l + " min", Value: frame.Reduce(frame.Min, vals)},
				gochart.Value{Label: l + " median", Value: frame.Reduce(frame.Median, vals)},
				gochart.Value{Label: l + " max", Value: frame.Reduce(frame.Max, vals)},
			)
		}
	}
	return bars
}
