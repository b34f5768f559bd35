package frame

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type unit int

const (
	unitSecond unit = iota
	unitMinute
	unitHour
	unitDay
	unitWeek
)

// Freq is a time-bucket width such as "10min" or "1D".
type Freq struct {
	N    int
	unit unit
}

var freqPattern = regexp.MustCompile(`^\s*(\d*)\s*(s|S|sec|min|T|h|H|D|d|W|w)\s*$`)

// maxBuckets bounds resampling output so a tiny frequency over a long span
// cannot exhaust memory.
const maxBuckets = 1_000_000

// ParseFreq parses "<n><unit>" with unit s|S|sec|min|T|h|H|D|d|W; n
// defaults to 1.
func ParseFreq(s string) (Freq, error) {
	m := freqPattern.FindStringSubmatch(s)
	if m == nil {
		return Freq{}, fmt.Errorf("unsupported frequency %q", s)
	}
	n := 1
	if m[1] != "" {
		v, err := strconv.Atoi(m[1])
		if err != nil || v <= 0 {
			return Freq{}, fmt.Errorf("unsupported frequency %q", s)
		}
		n = v
	}
	f := Freq{N: n}
	switch m[2] {
	case "s", "S", "sec":
		f.unit = unitSecond
	case "min", "T":
		f.unit = unitMinute
	case "h", "H":
		f.unit = unitHour
	case "D", "d":
		f.unit = unitDay
	case "W", "w":
		f.unit = unitWeek
	}
	return f, nil
}

// Duration is the nominal bucket width.
func (f Freq) Duration() time.Duration {
	n := time.Duration(f.N)
	switch f.unit {
	case unitSecond:
		return n * time.Second
	case unitMinute:
		return n * time.Minute
	case unitHour:
		return n * time.Hour
	case unitDay:
		return n * 24 * time.Hour
	default:
		return n * 7 * 24 * time.Hour
	}
}

// Floor returns the start of the bucket containing t. Day and week
// buckets follow the calendar of t's location; weeks start on Monday.
func (f Freq) Floor(t time.Time) time.Time {
	switch f.unit {
	case unitDay, unitWeek:
		loc := t.Location()
		y, m, d := t.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		// days since 1970-01-05 (a Monday) in the local calendar
		epoch := time.Date(1970, 1, 5, 0, 0, 0, 0, loc)
		days := int(day.Sub(epoch).Round(24*time.Hour) / (24 * time.Hour))
		width := f.N
		if f.unit == unitWeek {
			width *= 7
		}
		off := days % width
		if off < 0 {
			off += width
		}
		return day.AddDate(0, 0, -off)
	default:
		return t.Truncate(f.Duration())
	}
}

// Next returns the start of the bucket following start.
func (f Freq) Next(start time.Time) time.Time {
	switch f.unit {
	case unitDay:
		return start.AddDate(0, 0, f.N)
	case unitWeek:
		return start.AddDate(0, 0, 7*f.N)
	default:
		return start.Add(f.Duration())
	}
}

// Resample buckets rows by the time column named on (or the frame's single
// time index when on is empty) and reduces each value column per bucket.
// Empty buckets between the first and last are kept with missing values.
func Resample(f *Frame, on string, freq Freq, values []string, agg Agg) (*Frame, error) {
	tc, err := timeKey(f, on)
	if err != nil {
		return nil, err
	}
	valCols, err := valueColumns(f, values, map[string]bool{tc.Name: true}, agg)
	if err != nil {
		return nil, err
	}

	var first, last time.Time
	floors := make([]time.Time, f.n)
	for r := 0; r < f.n; r++ {
		if tc.IsNull(r) {
			continue
		}
		b := freq.Floor(tc.Times[r])
		floors[r] = b
		if first.IsZero() || b.Before(first) {
			first = b
		}
		if last.IsZero() || b.After(last) {
			last = b
		}
	}

	var starts []time.Time
	slot := make(map[int64]int)
	if !first.IsZero() {
		for b := first; !b.After(last); b = freq.Next(b) {
			if len(starts) >= maxBuckets {
				return nil, fmt.Errorf("resample %s would produce more than %d buckets", on, maxBuckets)
			}
			slot[b.UnixNano()] = len(starts)
			starts = append(starts, b)
		}
	}
	groups := make([][]int, len(starts))
	for r, b := range floors {
		if b.IsZero() {
			continue
		}
		g, ok := slot[b.UnixNano()]
		if !ok {
			// DST shifts can move a calendar floor off the stepped grid
			g = len(starts)
			slot[b.UnixNano()] = g
			starts = append(starts, b)
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], r)
	}

	index := []*Column{NewTimes(tc.Name, starts)}
	if tc.Kind == Date {
		index[0].Kind = Date
	}
	cols := make([]*Column, len(valCols))
	for i, c := range valCols {
		if cols[i], err = reduceColumn(c, agg, groups); err != nil {
			return nil, err
		}
	}
	return build(index, cols, nil)
}

func timeKey(f *Frame, on string) (*Column, error) {
	var c *Column
	if on != "" {
		var ok bool
		if c, ok = f.lookup(on); !ok {
			return nil, fmt.Errorf("resample column %q not found (have %v)", on, f.Names())
		}
	} else {
		if len(f.index) != 1 {
			return nil, fmt.Errorf("resample needs a datetime index; use set_index('timestamp') or on=")
		}
		c = f.index[0]
	}
	if c.Kind != Time && c.Kind != Date {
		return nil, fmt.Errorf("resample column %q is %s, not datetime", c.Name, c.Kind)
	}
	return c, nil
}
