package shaping

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"availability-dashboard/internal/frame"
)

// series is a one-column frame; its index and row labels travel with it.
type series struct {
	f *frame.Frame
}

func (s series) col() *frame.Column { return s.f.Columns()[0] }

func (s series) with(c *frame.Column) (series, error) {
	f, err := s.f.WithData(c)
	return series{f: f}, err
}

func asSeries(f *frame.Frame, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return series{f: f}, nil
}

func frameMethod(f *frame.Frame, a *args) (any, error) {
	switch a.method {
	case "head", "tail":
		if err := a.check(1, "n"); err != nil {
			return nil, err
		}
		n, err := a.int(0, "n", 5)
		if err != nil {
			return nil, err
		}
		if a.method == "head" {
			return f.Head(n), nil
		}
		return f.Tail(n), nil
	case "sample":
		return sample(f, a)
	case "sort_values":
		if err := a.check(2, "by", "ascending"); err != nil {
			return nil, err
		}
		by, err := a.names(0, "by")
		if err != nil {
			return nil, err
		}
		asc, err := a.boolean(1, "ascending", true)
		if err != nil {
			return nil, err
		}
		return f.SortBy(by, asc)
	case "nlargest", "nsmallest":
		if err := a.check(2, "n", "columns"); err != nil {
			return nil, err
		}
		n, err := a.int(0, "n", 5)
		if err != nil {
			return nil, err
		}
		cols, err := a.names(1, "columns")
		if err != nil {
			return nil, err
		}
		sorted, err := f.SortBy(cols, a.method == "nsmallest")
		if err != nil {
			return nil, err
		}
		return sorted.Head(n), nil
	case "set_index":
		if err := a.check(1, "keys"); err != nil {
			return nil, err
		}
		key, err := a.str(0, "keys", "")
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, fmt.Errorf("set_index() requires a column name")
		}
		return f.SetIndex(key)
	case "reset_index":
		if err := a.check(0, "drop"); err != nil {
			return nil, err
		}
		drop, err := a.boolean(-1, "drop", false)
		if err != nil {
			return nil, err
		}
		if drop {
			return f.DropIndex(), nil
		}
		return f.ResetIndex()
	case "groupby":
		if err := a.check(1, "by", "as_index"); err != nil {
			return nil, err
		}
		keys, err := a.names(0, "by")
		if err != nil {
			return nil, err
		}
		asIndex, err := a.boolean(-1, "as_index", true)
		if err != nil {
			return nil, err
		}
		return &grouped{f: f, keys: keys, asIndex: asIndex}, nil
	case "resample":
		if err := a.check(1, "rule", "on"); err != nil {
			return nil, err
		}
		return newResampler(f, a)
	case "assign":
		if len(a.pos) > 0 {
			return nil, fmt.Errorf("assign() takes keyword arguments only")
		}
		out := f
		for _, kw := range a.kw {
			c, err := columnFor(kw.val, out.Len(), kw.name)
			if err != nil {
				return nil, fmt.Errorf("assign(%s=...): %w", kw.name, err)
			}
			if out, err = out.WithColumn(c); err != nil {
				return nil, err
			}
		}
		return out, nil
	case "rename":
		if err := a.check(0, "columns"); err != nil {
			return nil, err
		}
		v, ok := a.lookup(-1, "columns")
		d, isDict := v.(dict)
		if !ok || !isDict {
			return nil, fmt.Errorf("rename() requires columns={old: new}")
		}
		names := make(map[string]string, len(d.keys))
		for i, k := range d.keys {
			to, ok := d.vals[i].(string)
			if !ok {
				return nil, fmt.Errorf("rename(): new name for %q must be a string", k)
			}
			names[k] = to
		}
		return f.Rename(names)
	case "dropna":
		if err := a.check(0); err != nil {
			return nil, err
		}
		return f.DropNA(), nil
	case "copy":
		if err := a.check(0, "deep"); err != nil {
			return nil, err
		}
		return f, nil
	case "round":
		if err := a.check(1, "decimals"); err != nil {
			return nil, err
		}
		dec, err := a.int(0, "decimals", 0)
		if err != nil {
			return nil, err
		}
		cols := f.Columns()
		for i, c := range cols {
			if c.Kind == frame.Number && !c.Integer {
				cols[i] = roundColumn(c, dec)
			}
		}
		return f.WithData(cols...)
	}
	return nil, errNoMethod
}

// columnFor turns an assign() value into a column of n rows.
func columnFor(v any, n int, name string) (*frame.Column, error) {
	if s, ok := v.(series); ok {
		if s.f.Len() != n {
			return nil, fmt.Errorf("length %d does not match %d rows", s.f.Len(), n)
		}
		return s.col().Renamed(name), nil
	}
	if ts, ok := v.(timestamp); ok {
		out := make([]time.Time, n)
		for i := range out {
			out[i] = ts.t
		}
		return frame.NewTimes(name, out), nil
	}
	return broadcast(v, &frame.Column{Name: name, Kind: frame.String, Strs: make([]string, n)})
}

// maxSampleRows bounds sampling with replacement; a frame is never grown
// beyond max(rows, maxSampleRows).
const maxSampleRows = 1_000_000

func sample(f *frame.Frame, a *args) (*frame.Frame, error) {
	if err := a.check(1, "n", "frac", "replace", "random_state"); err != nil {
		return nil, err
	}
	_, hasN := a.lookup(0, "n")
	frac, hasFrac, err := a.number(-1, "frac")
	if err != nil {
		return nil, err
	}
	if hasN && hasFrac {
		return nil, fmt.Errorf("sample(): pass n or frac, not both")
	}
	k := 1
	switch {
	case hasFrac:
		if frac < 0 {
			return nil, fmt.Errorf("sample(): frac must be non-negative")
		}
		if frac*float64(f.Len()) > float64(max(f.Len(), maxSampleRows)) {
			return nil, fmt.Errorf("sample(): frac=%g exceeds the row limit", frac)
		}
		k = int(math.RoundToEven(frac * float64(f.Len())))
	case hasN:
		if k, err = a.int(0, "n", 1); err != nil {
			return nil, err
		}
		if k < 0 {
			return nil, fmt.Errorf("sample(): n must be non-negative")
		}
	}
	replace, err := a.boolean(-1, "replace", false)
	if err != nil {
		return nil, err
	}
	if limit := max(f.Len(), maxSampleRows); k > limit {
		return nil, fmt.Errorf("sample(): %d rows exceeds the limit of %d", k, limit)
	}
	if !replace && k > f.Len() {
		return nil, fmt.Errorf("sample(): cannot take %d rows from %d without replace=True", k, f.Len())
	}

	var rng *rand.Rand
	if v, ok := a.lookup(-1, "random_state"); ok {
		seed, ok := asInt(v)
		if !ok || seed < 0 {
			return nil, fmt.Errorf("sample(): random_state must be a non-negative integer")
		}
		rng = rand.New(rand.NewPCG(uint64(seed), 0))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var idx []int
	if replace {
		idx = make([]int, k)
		for i := range idx {
			idx[i] = rng.IntN(max(f.Len(), 1))
		}
		if f.Len() == 0 {
			idx = nil
		}
	} else {
		idx = rng.Perm(f.Len())[:k]
	}
	return f.Take(idx), nil
}

func roundColumn(c *frame.Column, decimals int) *frame.Column {
	p := math.Pow(10, float64(decimals))
	out := make([]float64, len(c.Nums))
	for i, v := range c.Nums {
		out[i] = math.RoundToEven(v*p) / p
	}
	return numbers(c.Name, out, c.Integer || decimals <= 0 && allWhole(out))
}

func allWhole(vals []float64) bool {
	for _, v := range vals {
		if !math.IsNaN(v) && v != math.Trunc(v) {
			return false
		}
	}
	return true
}

func seriesMethod(s series, a *args) (any, error) {
	c := s.col()
	switch a.method {
	case "head", "tail", "sample", "nlargest", "nsmallest", "dropna", "copy":
		return seriesRows(s, a)
	case "sort_values":
		if err := a.check(0, "ascending"); err != nil {
			return nil, err
		}
		asc, err := a.boolean(-1, "ascending", true)
		if err != nil {
			return nil, err
		}
		return asSeries(s.f.SortBy([]string{c.Name}, asc))
	case "reset_index":
		if err := a.check(0, "name", "drop"); err != nil {
			return nil, err
		}
		drop, err := a.boolean(-1, "drop", false)
		if err != nil {
			return nil, err
		}
		if drop {
			return series{f: s.f.DropIndex()}, nil
		}
		name, err := a.str(-1, "name", c.Name)
		if err != nil {
			return nil, err
		}
		f, err := s.f.WithData(c.Renamed(name))
		if err != nil {
			return nil, err
		}
		return f.ResetIndex()
	case "to_frame":
		if err := a.check(1, "name"); err != nil {
			return nil, err
		}
		name, err := a.str(0, "name", c.Name)
		if err != nil {
			return nil, err
		}
		return s.f.WithData(c.Renamed(name))
	case "rename":
		if err := a.check(1, "index"); err != nil {
			return nil, err
		}
		name, err := a.str(0, "index", c.Name)
		if err != nil {
			return nil, err
		}
		return s.with(c.Renamed(name))
	case "between":
		if err := a.check(3, "left", "right", "inclusive"); err != nil {
			return nil, err
		}
		return between(s, a)
	case "isin":
		if err := a.check(1, "values"); err != nil {
			return nil, err
		}
		v, _ := a.lookup(0, "values")
		vals, ok := v.(list)
		if !ok {
			return nil, fmt.Errorf("isin() requires a list, got %s", typeName(v))
		}
		return isin(s, vals)
	case "groupby":
		if err := a.check(1, "by"); err != nil {
			return nil, err
		}
		by, _ := a.lookup(0, "by")
		key, ok := by.(series)
		if !ok {
			return nil, fmt.Errorf("Series.groupby() requires a Series of keys, got %s", typeName(by))
		}
		if key.f.Len() != s.f.Len() {
			return nil, fmt.Errorf("groupby keys have %d rows, Series has %d", key.f.Len(), s.f.Len())
		}
		kc := key.col()
		if kc.Name == c.Name {
			return nil, fmt.Errorf("cannot group %q by itself", c.Name)
		}
		f, err := s.f.WithData(kc, c)
		if err != nil {
			return nil, err
		}
		return &grouped{f: f, keys: []string{kc.Name}, cols: []string{c.Name}, single: true, asIndex: true}, nil
	case "resample":
		if err := a.check(1, "rule"); err != nil {
			return nil, err
		}
		r, err := newResampler(s.f, a)
		if err != nil {
			return nil, err
		}
		r.cols, r.single = []string{c.Name}, true
		return r, nil
	case "rolling":
		if err := a.check(1, "window", "min_periods"); err != nil {
			return nil, err
		}
		if c.Kind != frame.Number {
			return nil, fmt.Errorf("rolling() needs a numeric column, %q is %s", c.Name, c.Kind)
		}
		w, err := a.int(0, "window", 0)
		if err != nil {
			return nil, err
		}
		if w <= 0 {
			return nil, fmt.Errorf("rolling() requires a positive integer window")
		}
		mp, err := a.int(-1, "min_periods", w)
		if err != nil {
			return nil, err
		}
		return &rolling{s: s, window: w, minPeriods: mp}, nil
	case "round":
		if err := a.check(1, "decimals"); err != nil {
			return nil, err
		}
		dec, err := a.int(0, "decimals", 0)
		if err != nil {
			return nil, err
		}
		if c.Kind != frame.Number {
			return nil, fmt.Errorf("round() needs a numeric column, %q is %s", c.Name, c.Kind)
		}
		return s.with(roundColumn(c, dec))
	case "abs":
		if err := a.check(0); err != nil {
			return nil, err
		}
		if c.Kind != frame.Number {
			return nil, fmt.Errorf("abs() needs a numeric column, %q is %s", c.Name, c.Kind)
		}
		out := make([]float64, len(c.Nums))
		for i, v := range c.Nums {
			out[i] = math.Abs(v)
		}
		return s.with(numbers(c.Name, out, c.Integer))
	}
	if agg, err := frame.ParseAgg(a.method); err == nil {
		if err := a.check(0); err != nil {
			return nil, err
		}
		return reduceSeries(c, agg)
	}
	return nil, errNoMethod
}

// seriesRows applies a row-selecting frame verb to the series.
func seriesRows(s series, a *args) (any, error) {
	if a.method == "nlargest" || a.method == "nsmallest" {
		if err := a.check(1, "n"); err != nil {
			return nil, err
		}
		a.kw = append(a.kw, kwval{name: "columns", val: s.col().Name})
	}
	v, err := frameMethod(s.f, a)
	if err != nil {
		return nil, err
	}
	return series{f: v.(*frame.Frame)}, nil
}

func reduceSeries(c *frame.Column, agg frame.Agg) (any, error) {
	switch {
	case c.Kind == frame.Number:
		return frame.Reduce(agg, c.Nums), nil
	case agg == frame.Count:
		n := 0
		for i := 0; i < c.Len(); i++ {
			if !c.IsNull(i) {
				n++
			}
		}
		return float64(n), nil
	case (c.Kind == frame.Time || c.Kind == frame.Date) && (agg == frame.Min || agg == frame.Max):
		var best time.Time
		for _, t := range c.Times {
			if t.IsZero() {
				continue
			}
			if best.IsZero() || (agg == frame.Min && t.Before(best)) || (agg == frame.Max && t.After(best)) {
				best = t
			}
		}
		if best.IsZero() {
			return nil, nil
		}
		return timestamp{t: best}, nil
	}
	return nil, fmt.Errorf("cannot take %s of %s column %q", agg, c.Kind, c.Name)
}

func between(s series, a *args) (any, error) {
	left, okL := a.lookup(0, "left")
	right, okR := a.lookup(1, "right")
	if !okL || !okR {
		return nil, fmt.Errorf("between() requires left and right")
	}
	inclusive, err := a.str(2, "inclusive", "both")
	if err != nil {
		return nil, err
	}
	lowOp, highOp := ">=", "<="
	switch inclusive {
	case "both":
	case "neither":
		lowOp, highOp = ">", "<"
	case "left":
		highOp = "<"
	case "right":
		lowOp = ">"
	default:
		return nil, fmt.Errorf("between(): inclusive must be both, neither, left or right")
	}
	lo, err := compare(lowOp, s, left)
	if err != nil {
		return nil, err
	}
	hi, err := compare(highOp, s, right)
	if err != nil {
		return nil, err
	}
	return logical("&", lo, hi)
}

func isin(s series, vals list) (any, error) {
	c := s.col()
	out := make([]bool, c.Len())
	for _, v := range vals {
		other, err := broadcast(v, c)
		if err != nil {
			return nil, fmt.Errorf("isin(): %w", err)
		}
		for i := range out {
			if out[i] {
				continue
			}
			cmp, null, err := cellCompare(c, other, i)
			if err != nil {
				return nil, fmt.Errorf("isin(): %w", err)
			}
			out[i] = !null && cmp == 0
		}
	}
	return s.with(frame.NewBools(c.Name, out))
}

// grouped is the pending result of groupby(); a reduction finishes it.
type grouped struct {
	f       *frame.Frame
	keys    []string
	cols    []string // nil means every numeric column
	single  bool     // one column selected with ['name']
	asIndex bool
}

func (g *grouped) method(a *args) (any, error) {
	agg, err := aggFor(a)
	if err != nil {
		return nil, err
	}
	out, err := frame.GroupBy(g.f, g.keys, g.cols, agg)
	if err != nil {
		return nil, err
	}
	if !g.asIndex {
		return out.ResetIndex()
	}
	if g.single {
		return series{f: out}, nil
	}
	return out, nil
}

// aggFor reads the reduction from mean()-style calls or agg('mean').
func aggFor(a *args) (frame.Agg, error) {
	if a.method == "agg" || a.method == "aggregate" {
		if err := a.check(1, "func"); err != nil {
			return "", err
		}
		name, err := a.str(0, "func", "")
		if err != nil {
			return "", err
		}
		return frame.ParseAgg(name)
	}
	agg, err := frame.ParseAgg(a.method)
	if err != nil {
		return "", errNoMethod
	}
	if err := a.check(0, "numeric_only"); err != nil {
		return "", err
	}
	return agg, nil
}

type resampler struct {
	f      *frame.Frame
	on     string
	freq   frame.Freq
	cols   []string
	single bool
}

func newResampler(f *frame.Frame, a *args) (*resampler, error) {
	rule, err := a.str(0, "rule", "")
	if err != nil {
		return nil, err
	}
	if rule == "" {
		return nil, fmt.Errorf("resample() requires a rule such as '1h'")
	}
	freq, err := frame.ParseFreq(rule)
	if err != nil {
		return nil, err
	}
	on, err := a.str(-1, "on", "")
	if err != nil {
		return nil, err
	}
	return &resampler{f: f, on: on, freq: freq}, nil
}

func (r *resampler) method(a *args) (any, error) {
	agg, err := aggFor(a)
	if err != nil {
		return nil, err
	}
	out, err := frame.Resample(r.f, r.on, r.freq, r.cols, agg)
	if err != nil {
		return nil, err
	}
	if r.single {
		return series{f: out}, nil
	}
	return out, nil
}

type rolling struct {
	s          series
	window     int
	minPeriods int
}

func (r *rolling) method(a *args) (any, error) {
	if a.method != "mean" {
		return nil, errNoMethod
	}
	if err := a.check(0); err != nil {
		return nil, err
	}
	c := r.s.col()
	return r.s.with(frame.NewNumbers(c.Name, frame.RollingMean(c.Nums, r.window, r.minPeriods)))
}

type dtAccessor struct {
	s series
}

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d dtAccessor) field(name string) (any, error) {
	c := d.s.col()
	if name == "date" {
		out := make([]time.Time, len(c.Times))
		for i, t := range c.Times {
			if !t.IsZero() {
				y, m, day := t.Date()
				out[i] = time.Date(y, m, day, 0, 0, 0, 0, t.Location())
			}
		}
		return d.s.with(frame.NewDates(c.Name, out))
	}
	var get func(time.Time) int
	switch name {
	case "hour":
		get = time.Time.Hour
	case "minute":
		get = time.Time.Minute
	case "second":
		get = time.Time.Second
	case "day":
		get = time.Time.Day
	case "month":
		get = func(t time.Time) int { return int(t.Month()) }
	case "year":
		get = time.Time.Year
	case "dayofweek", "weekday":
		get = func(t time.Time) int { return (int(t.Weekday()) + 6) % 7 }
	case "dayofyear":
		get = time.Time.YearDay
	default:
		return nil, fmt.Errorf(".dt has no attribute %q", name)
	}
	out := make([]float64, len(c.Times))
	for i, t := range c.Times {
		if t.IsZero() {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(get(t))
	}
	return d.s.with(frame.NewIntegers(c.Name, out))
}

func (d dtAccessor) method(a *args) (any, error) {
	c := d.s.col()
	switch a.method {
	case "day_name":
		if err := a.check(0); err != nil {
			return nil, err
		}
		out := make([]string, len(c.Times))
		for i, t := range c.Times {
			if !t.IsZero() {
				out[i] = dayNames[(int(t.Weekday())+6)%7]
			}
		}
		return d.s.with(frame.NewStrings(c.Name, out))
	case "floor":
		if err := a.check(1, "freq"); err != nil {
			return nil, err
		}
		rule, err := a.str(0, "freq", "")
		if err != nil {
			return nil, err
		}
		freq, err := frame.ParseFreq(rule)
		if err != nil {
			return nil, err
		}
		out := make([]time.Time, len(c.Times))
		for i, t := range c.Times {
			if !t.IsZero() {
				out[i] = freq.Floor(t)
			}
		}
		return d.s.with(&frame.Column{Name: c.Name, Kind: c.Kind, Times: out})
	}
	return nil, errNoMethod
}

func toDatetime(s series) (any, error) {
	c := s.col()
	switch c.Kind {
	case frame.Time:
		return s, nil
	case frame.Date:
		return s.with(frame.NewTimes(c.Name, c.Times))
	case frame.String:
		out := make([]time.Time, len(c.Strs))
		for i, v := range c.Strs {
			ts, err := parseTimestamp(v)
			if err != nil {
				return nil, err
			}
			out[i] = ts.in(time.UTC)
		}
		return s.with(frame.NewTimes(c.Name, out))
	}
	return nil, fmt.Errorf("to_datetime() cannot convert %s column %q", c.Kind, c.Name)
}

var timedeltaUnits = []struct {
	name string
	unit time.Duration
}{
	{"weeks", 7 * 24 * time.Hour},
	{"days", 24 * time.Hour},
	{"hours", time.Hour},
	{"minutes", time.Minute},
	{"seconds", time.Second},
}

func timedelta(a *args) (any, error) {
	names := make([]string, 0, len(timedeltaUnits)+1)
	names = append(names, "value")
	for _, u := range timedeltaUnits {
		names = append(names, u.name)
	}
	if err := a.check(1, names...); err != nil {
		return nil, err
	}
	if v, ok := a.lookup(0, "value"); ok {
		s, isStr := v.(string)
		if !isStr {
			return nil, fmt.Errorf("Timedelta() value must be a string such as '1h'")
		}
		f, err := frame.ParseFreq(s)
		if err != nil {
			return nil, err
		}
		return f.Duration(), nil
	}
	var d time.Duration
	for _, u := range timedeltaUnits {
		n, ok, err := a.number(-1, u.name)
		if err != nil {
			return nil, err
		}
		if ok {
			d += time.Duration(n * float64(u.unit))
		}
	}
	if d == 0 && !slices.ContainsFunc(a.kw, func(kw kwval) bool { return kw.val != nil }) {
		return nil, fmt.Errorf("Timedelta() requires a value")
	}
	return d, nil
}
