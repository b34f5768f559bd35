package shaping

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"availability-dashboard/internal/frame"
)

type kwval struct {
	name string
	val  any
}

// args are the evaluated arguments of one method call.
type args struct {
	method string
	pos    []any
	kw     []kwval
}

// check rejects extra positional arguments and unknown keywords.
func (a *args) check(maxPos int, names ...string) error {
	if len(a.pos) > maxPos {
		return fmt.Errorf("%s() takes at most %d positional arguments, got %d", a.method, maxPos, len(a.pos))
	}
	for _, kw := range a.kw {
		if !slices.Contains(names, kw.name) {
			return fmt.Errorf("%s() got an unexpected keyword argument %q", a.method, kw.name)
		}
	}
	return nil
}

// lookup finds the argument at position i or with the given keyword.
// A None argument counts as absent.
func (a *args) lookup(i int, name string) (any, bool) {
	if i >= 0 && i < len(a.pos) {
		return a.pos[i], a.pos[i] != nil
	}
	for _, kw := range a.kw {
		if kw.name == name {
			return kw.val, kw.val != nil
		}
	}
	return nil, false
}

func (a *args) int(i int, name string, def int) (int, error) {
	v, ok := a.lookup(i, name)
	if !ok {
		return def, nil
	}
	n, ok := asInt(v)
	if !ok {
		return 0, fmt.Errorf("%s(): %s must be an integer, got %s", a.method, name, typeName(v))
	}
	return n, nil
}

func (a *args) number(i int, name string) (float64, bool, error) {
	v, ok := a.lookup(i, name)
	if !ok {
		return 0, false, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false, fmt.Errorf("%s(): %s must be a number, got %s", a.method, name, typeName(v))
	}
	return f, true, nil
}

func (a *args) str(i int, name, def string) (string, error) {
	v, ok := a.lookup(i, name)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s(): %s must be a string, got %s", a.method, name, typeName(v))
	}
	return s, nil
}

func (a *args) boolean(i int, name string, def bool) (bool, error) {
	v, ok := a.lookup(i, name)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s(): %s must be True or False, got %s", a.method, name, typeName(v))
	}
	return b, nil
}

// names accepts a column name or a list of column names.
func (a *args) names(i int, name string) ([]string, error) {
	v, ok := a.lookup(i, name)
	if !ok {
		return nil, fmt.Errorf("%s() requires %s", a.method, name)
	}
	out, err := asNames(v)
	if err != nil {
		return nil, fmt.Errorf("%s(): %s %w", a.method, name, err)
	}
	return out, nil
}

func asNames(v any) ([]string, error) {
	switch v := v.(type) {
	case string:
		return []string{v}, nil
	case list:
		out := make([]string, len(v))
		for i, el := range v {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Errorf("must name columns, got %s", typeName(el))
			}
			out[i] = s
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("must name at least one column")
		}
		return out, nil
	}
	return nil, fmt.Errorf("must be a column name or list of names, got %s", typeName(v))
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<31 {
		return 0, false
	}
	return int(f), true
}

// list and dict are the evaluated forms of literal brackets and braces.
type (
	list  []any
	tuple []any
	dict  struct {
		keys []string
		vals []any
	}
)

// timestamp is a point in time from pd.Timestamp or a column reduction.
// A naive timestamp takes the location of whatever it is compared with.
type timestamp struct {
	t     time.Time
	naive bool
}

func (ts timestamp) in(loc *time.Location) time.Time {
	if !ts.naive {
		return ts.t
	}
	y, m, d := ts.t.Date()
	return time.Date(y, m, d, ts.t.Hour(), ts.t.Minute(), ts.t.Second(), ts.t.Nanosecond(), loc)
}

var (
	zonedLayouts = []string{
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02 15:04Z07:00",
		"2006-01-02T15:04Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

func parseTimestamp(s string) (timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timestamp{t: t}, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timestamp{t: t, naive: true}, nil
		}
	}
	return timestamp{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}

// asTime converts a scalar compared with a time column into a time in loc.
func asTime(v any, loc *time.Location) (time.Time, error) {
	switch v := v.(type) {
	case timestamp:
		return v.in(loc), nil
	case string:
		ts, err := parseTimestamp(v)
		if err != nil {
			return time.Time{}, err
		}
		return ts.in(loc), nil
	}
	return time.Time{}, fmt.Errorf("cannot compare a datetime with %s", typeName(v))
}

func typeName(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case *frame.Frame:
		return "DataFrame"
	case series:
		return "Series"
	case *grouped:
		if v.single {
			return "SeriesGroupBy"
		}
		return "DataFrameGroupBy"
	case *resampler:
		return "Resampler"
	case *rolling:
		return "Rolling"
	case dtAccessor:
		return "DatetimeAccessor"
	case locIndexer:
		return "loc"
	case pdModule:
		return "module pd"
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case timestamp:
		return "Timestamp"
	case time.Duration:
		return "Timedelta"
	case list, tuple:
		return "list"
	case dict:
		return "dict"
	}
	return fmt.Sprintf("%T", v)
}
