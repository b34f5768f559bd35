// Package frame is a small immutable columnar table used for the
// availability dataset and everything derived from it.
//
// A Frame has data columns and zero or more index levels. Operations never
// modify their receiver, so a Frame can be shared between goroutines.
package frame

import (
	"fmt"
	"math"
	"sort"
)

type Frame struct {
	index []*Column
	cols  []*Column
	// rowIDs are the original row labels when the index is positional;
	// nil means 0..n-1.
	rowIDs []int
	n      int
}

// New builds a frame from equally long columns with unique names.
func New(cols ...*Column) (*Frame, error) {
	return build(nil, cols, nil)
}

func build(index, cols []*Column, rowIDs []int) (*Frame, error) {
	n := -1
	seen := make(map[string]bool, len(cols))
	for _, c := range append(append([]*Column{}, index...), cols...) {
		if n == -1 {
			n = c.Len()
		} else if c.Len() != n {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), n)
		}
	}
	for _, c := range cols {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	if n < 0 {
		n = 0
	}
	return &Frame{index: index, cols: cols, rowIDs: rowIDs, n: n}, nil
}

func (f *Frame) Len() int { return f.n }

func (f *Frame) Columns() []*Column {
	return append([]*Column(nil), f.cols...)
}

func (f *Frame) Index() []*Column {
	return append([]*Column(nil), f.index...)
}

func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks a data column up by name.
func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.cols {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// lookup finds a data column or an index level by name.
func (f *Frame) lookup(name string) (*Column, bool) {
	if c, ok := f.Column(name); ok {
		return c, true
	}
	for _, c := range f.index {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// MustColumn is Column that reports a descriptive error.
func (f *Frame) MustColumn(name string) (*Column, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found (have %v)", name, f.Names())
	}
	return c, nil
}

// Select projects the named data columns, keeping the index.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, err := f.MustColumn(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return build(f.index, cols, f.rowIDs)
}

func (f *Frame) rowID(i int) int {
	if f.rowIDs == nil {
		return i
	}
	return f.rowIDs[i]
}

// Take returns rows at idx, in order.
func (f *Frame) Take(idx []int) *Frame {
	index := make([]*Column, len(f.index))
	for i, c := range f.index {
		index[i] = c.Take(idx)
	}
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Take(idx)
	}
	var ids []int
	if len(f.index) == 0 {
		ids = make([]int, len(idx))
		for i, j := range idx {
			ids[i] = f.rowID(j)
		}
	}
	return &Frame{index: index, cols: cols, rowIDs: ids, n: len(idx)}
}

// Filter keeps rows whose mask entry is true.
func (f *Frame) Filter(mask []bool) (*Frame, error) {
	if len(mask) != f.n {
		return nil, fmt.Errorf("mask has %d rows, frame has %d", len(mask), f.n)
	}
	idx := make([]int, 0, f.n)
	for i, keep := range mask {
		if keep {
			idx = append(idx, i)
		}
	}
	return f.Take(idx), nil
}

func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = max(f.n+n, 0)
	}
	return f.Take(seq(0, min(n, f.n)))
}

func (f *Frame) Tail(n int) *Frame {
	if n < 0 {
		n = max(f.n+n, 0)
	}
	return f.Take(seq(max(f.n-n, 0), f.n))
}

// SortBy stable-sorts rows by the named columns (data or index).
func (f *Frame) SortBy(names []string, ascending bool) (*Frame, error) {
	keys := make([]*Column, len(names))
	for i, name := range names {
		c, ok := f.lookup(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found (have %v)", name, f.Names())
		}
		keys[i] = c
	}
	idx := seq(0, f.n)
	sort.SliceStable(idx, func(a, b int) bool {
		for _, k := range keys {
			cmp := k.compare(idx[a], idx[b])
			if cmp == 0 {
				continue
			}
			// missing values stay last regardless of direction
			if k.IsNull(idx[a]) || k.IsNull(idx[b]) {
				return cmp < 0
			}
			if ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return f.Take(idx), nil
}

// SetIndex moves a data column into the index, replacing any existing index.
func (f *Frame) SetIndex(name string) (*Frame, error) {
	c, err := f.MustColumn(name)
	if err != nil {
		return nil, err
	}
	cols := make([]*Column, 0, len(f.cols)-1)
	for _, other := range f.cols {
		if other.Name != name {
			cols = append(cols, other)
		}
	}
	return build([]*Column{c}, cols, nil)
}

// ResetIndex turns the index levels back into leading data columns. A
// positional index becomes an "index" column of row labels.
func (f *Frame) ResetIndex() (*Frame, error) {
	lead := f.index
	if len(lead) == 0 {
		ids := make([]float64, f.n)
		for i := range ids {
			ids[i] = float64(f.rowID(i))
		}
		lead = []*Column{NewIntegers("index", ids)}
	}
	return build(nil, append(append([]*Column{}, lead...), f.cols...), nil)
}

// DropIndex discards the index levels.
func (f *Frame) DropIndex() *Frame {
	return &Frame{cols: f.cols, n: f.n}
}

// WithData keeps the index and row labels of f and replaces every data
// column with cols.
func (f *Frame) WithData(cols ...*Column) (*Frame, error) {
	return build(f.index, cols, f.rowIDs)
}

// WithColumn appends c or replaces the data column of the same name.
func (f *Frame) WithColumn(c *Column) (*Frame, error) {
	if c.Len() != f.n {
		return nil, fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.n)
	}
	cols := make([]*Column, 0, len(f.cols)+1)
	replaced := false
	for _, other := range f.cols {
		if other.Name == c.Name {
			cols = append(cols, c)
			replaced = true
			continue
		}
		cols = append(cols, other)
	}
	if !replaced {
		cols = append(cols, c)
	}
	return build(f.index, cols, f.rowIDs)
}

// Rename renames data columns and index levels; unknown names are ignored.
func (f *Frame) Rename(names map[string]string) (*Frame, error) {
	rename := func(cs []*Column) []*Column {
		out := make([]*Column, len(cs))
		for i, c := range cs {
			if to, ok := names[c.Name]; ok {
				out[i] = c.Renamed(to)
				continue
			}
			out[i] = c
		}
		return out
	}
	return build(rename(f.index), rename(f.cols), f.rowIDs)
}

// DropNA removes rows with a missing value in any data column.
func (f *Frame) DropNA() *Frame {
	idx := make([]int, 0, f.n)
rows:
	for i := 0; i < f.n; i++ {
		for _, c := range f.cols {
			if c.IsNull(i) {
				continue rows
			}
		}
		idx = append(idx, i)
	}
	return f.Take(idx)
}

// Records returns rows as maps of JSON-friendly values. Index levels are
// not included.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, f.n)
	for i := range out {
		rec := make(map[string]any, len(f.cols))
		for _, c := range f.cols {
			rec[c.Name] = c.Value(i)
		}
		out[i] = rec
	}
	return out
}

// Numbers returns the values of a Number column, or an error naming the
// column's actual kind.
func (f *Frame) Numbers(name string) ([]float64, error) {
	c, err := f.MustColumn(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Number {
		return nil, fmt.Errorf("column %q is %s, not numeric", name, c.Kind)
	}
	return c.Nums, nil
}

func seq(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, to-from)
	for i := range out {
		out[i] = from + i
	}
	return out
}

// numeric reports whether the column can be reduced arithmetically.
func numeric(c *Column) bool { return c.Kind == Number }

var nan = math.NaN()
