package frame

import (
	"fmt"
	"math"
	"sort"
)

// Agg names a reduction applied to each group or bucket.
type Agg string

const (
	Mean   Agg = "mean"
	Sum    Agg = "sum"
	Min    Agg = "min"
	Max    Agg = "max"
	Count  Agg = "count"
	Median Agg = "median"
	Std    Agg = "std"
)

// ParseAgg validates a reduction name.
func ParseAgg(name string) (Agg, error) {
	switch a := Agg(name); a {
	case Mean, Sum, Min, Max, Count, Median, Std:
		return a, nil
	}
	return "", fmt.Errorf("unsupported reduction %q", name)
}

// Reduce applies agg to vals, skipping missing values.
func Reduce(agg Agg, vals []float64) float64 {
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	n := float64(len(present))
	switch agg {
	case Count:
		return n
	case Sum:
		s := 0.0
		for _, v := range present {
			s += v
		}
		return s
	}
	if len(present) == 0 {
		return nan
	}
	switch agg {
	case Mean:
		s := 0.0
		for _, v := range present {
			s += v
		}
		return s / n
	case Min:
		m := present[0]
		for _, v := range present[1:] {
			m = math.Min(m, v)
		}
		return m
	case Max:
		m := present[0]
		for _, v := range present[1:] {
			m = math.Max(m, v)
		}
		return m
	case Median:
		sort.Float64s(present)
		mid := len(present) / 2
		if len(present)%2 == 1 {
			return present[mid]
		}
		return (present[mid-1] + present[mid]) / 2
	case Std:
		if len(present) < 2 {
			return nan
		}
		mean := Reduce(Mean, present)
		ss := 0.0
		for _, v := range present {
			ss += (v - mean) * (v - mean)
		}
		return math.Sqrt(ss / (n - 1))
	}
	return nan
}

// reduceColumn aggregates the rows of c selected by each group.
func reduceColumn(c *Column, agg Agg, groups [][]int) (*Column, error) {
	out := make([]float64, len(groups))
	if agg == Count {
		for g, rows := range groups {
			cnt := 0
			for _, r := range rows {
				if !c.IsNull(r) {
					cnt++
				}
			}
			out[g] = float64(cnt)
		}
		return NewIntegers(c.Name, out), nil
	}
	if !numeric(c) {
		return nil, fmt.Errorf("cannot take %s of %s column %q", agg, c.Kind, c.Name)
	}
	buf := make([]float64, 0)
	for g, rows := range groups {
		buf = buf[:0]
		for _, r := range rows {
			buf = append(buf, c.Nums[r])
		}
		out[g] = Reduce(agg, buf)
	}
	col := NewNumbers(c.Name, out)
	// min/max/sum of whole numbers stay whole
	if c.Integer && (agg == Min || agg == Max || agg == Sum) {
		col.Integer = allIntegers(out)
	}
	return col, nil
}

// valueColumns resolves the columns to aggregate. With no explicit
// selection every numeric data column except the keys is used (all
// columns for Count).
func valueColumns(f *Frame, values []string, exclude map[string]bool, agg Agg) ([]*Column, error) {
	if len(values) > 0 {
		out := make([]*Column, 0, len(values))
		for _, name := range values {
			c, err := f.MustColumn(name)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}
	var out []*Column
	for _, c := range f.cols {
		if exclude[c.Name] {
			continue
		}
		if agg == Count || numeric(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no numeric columns to %s", agg)
	}
	return out, nil
}

// RollingMean is a trailing moving average over window values that emits a
// value once at least minPeriods non-missing values are in the window.
func RollingMean(vals []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(vals))
	sum, n := 0.0, 0
	for i, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
		if j := i - window; j >= 0 && !math.IsNaN(vals[j]) {
			sum -= vals[j]
			n--
		}
		if n >= minPeriods && n > 0 {
			out[i] = sum / float64(n)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
