package frame

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the storage type of a column.
type Kind int

const (
	Number Kind = iota
	String
	Time
	Date
	Bool
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case String:
		return "string"
	case Time:
		return "datetime"
	case Date:
		return "date"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// DateLayout is used to render Date columns.
const DateLayout = "2006-01-02"

// Column is a named, typed vector. Columns are never mutated after
// construction; every operation returns a new column.
type Column struct {
	Name string
	Kind Kind
	// Integer marks a Number column whose values are whole numbers.
	Integer bool

	Nums  []float64 // Number, NaN is missing
	Strs  []string  // String
	Times []time.Time
	Bools []bool
}

func NewNumbers(name string, vals []float64) *Column {
	return &Column{Name: name, Kind: Number, Nums: vals}
}

func NewIntegers(name string, vals []float64) *Column {
	return &Column{Name: name, Kind: Number, Integer: true, Nums: vals}
}

func NewStrings(name string, vals []string) *Column {
	return &Column{Name: name, Kind: String, Strs: vals}
}

func NewTimes(name string, vals []time.Time) *Column {
	return &Column{Name: name, Kind: Time, Times: vals}
}

func NewDates(name string, vals []time.Time) *Column {
	return &Column{Name: name, Kind: Date, Times: vals}
}

func NewBools(name string, vals []bool) *Column {
	return &Column{Name: name, Kind: Bool, Bools: vals}
}

func (c *Column) Len() int {
	switch c.Kind {
	case Number:
		return len(c.Nums)
	case String:
		return len(c.Strs)
	case Time, Date:
		return len(c.Times)
	case Bool:
		return len(c.Bools)
	}
	return 0
}

// Renamed returns a shallow copy with a different name.
func (c *Column) Renamed(name string) *Column {
	cp := *c
	cp.Name = name
	return &cp
}

// Take returns the rows at idx, in order.
func (c *Column) Take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Integer: c.Integer}
	switch c.Kind {
	case Number:
		out.Nums = make([]float64, len(idx))
		for i, j := range idx {
			out.Nums[i] = c.Nums[j]
		}
	case String:
		out.Strs = make([]string, len(idx))
		for i, j := range idx {
			out.Strs[i] = c.Strs[j]
		}
	case Time, Date:
		out.Times = make([]time.Time, len(idx))
		for i, j := range idx {
			out.Times[i] = c.Times[j]
		}
	case Bool:
		out.Bools = make([]bool, len(idx))
		for i, j := range idx {
			out.Bools[i] = c.Bools[j]
		}
	}
	return out
}

// IsNull reports whether row i holds a missing value.
func (c *Column) IsNull(i int) bool {
	switch c.Kind {
	case Number:
		return math.IsNaN(c.Nums[i])
	case Time, Date:
		return c.Times[i].IsZero()
	}
	return false
}

// Value returns row i as a JSON-friendly value: nil for missing numbers,
// int64 for integer columns, formatted strings for times and dates.
func (c *Column) Value(i int) any {
	switch c.Kind {
	case Number:
		v := c.Nums[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		if c.Integer {
			return int64(v)
		}
		return v
	case String:
		return c.Strs[i]
	case Time:
		if c.Times[i].IsZero() {
			return nil
		}
		return c.Times[i].Format(time.RFC3339)
	case Date:
		if c.Times[i].IsZero() {
			return nil
		}
		return c.Times[i].Format(DateLayout)
	case Bool:
		return c.Bools[i]
	}
	return nil
}

// Format renders row i as display text.
func (c *Column) Format(i int) string {
	switch c.Kind {
	case Number:
		v := c.Nums[i]
		if math.IsNaN(v) {
			return "NaN"
		}
		if c.Integer {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(c.Bools[i])
	}
	if v := c.Value(i); v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// key is a grouping key for row i; equal keys mean equal values.
func (c *Column) key(i int) string {
	switch c.Kind {
	case Number:
		return strconv.FormatFloat(c.Nums[i], 'g', -1, 64)
	case String:
		return c.Strs[i]
	case Time, Date:
		return strconv.FormatInt(c.Times[i].UnixNano(), 10)
	case Bool:
		return strconv.FormatBool(c.Bools[i])
	}
	return ""
}

// compare orders rows i and j of the column. Missing values sort last.
func (c *Column) compare(i, j int) int {
	switch c.Kind {
	case Number:
		a, b := c.Nums[i], c.Nums[j]
		switch {
		case math.IsNaN(a) && math.IsNaN(b):
			return 0
		case math.IsNaN(a):
			return 1
		case math.IsNaN(b):
			return -1
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	case String:
		switch {
		case c.Strs[i] < c.Strs[j]:
			return -1
		case c.Strs[i] > c.Strs[j]:
			return 1
		}
		return 0
	case Time, Date:
		return c.Times[i].Compare(c.Times[j])
	case Bool:
		if c.Bools[i] == c.Bools[j] {
			return 0
		}
		if !c.Bools[i] {
			return -1
		}
		return 1
	}
	return 0
}

// Range returns 0..n-1 as an integer column.
func Range(name string, n int) *Column {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return NewIntegers(name, vals)
}

// allIntegers reports whether every non-missing value is whole.
func allIntegers(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if v != math.Trunc(v) {
			return false
		}
	}
	return true
}
