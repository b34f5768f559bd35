package shaping

import (
	"fmt"
	"math"
	"time"

	"availability-dashboard/internal/frame"
)

func unary(op string, x any) (any, error) {
	switch op {
	case "+":
		switch x.(type) {
		case float64, series:
			return x, nil
		}
	case "-":
		switch x := x.(type) {
		case float64:
			return -x, nil
		case time.Duration:
			return -x, nil
		case series:
			c := x.col()
			if c.Kind != frame.Number {
				break
			}
			out := make([]float64, len(c.Nums))
			for i, v := range c.Nums {
				out[i] = -v
			}
			return x.with(numbers(c.Name, out, c.Integer))
		}
	case "~":
		switch x := x.(type) {
		case bool:
			return !x, nil
		case series:
			c := x.col()
			if c.Kind != frame.Bool {
				break
			}
			out := make([]bool, len(c.Bools))
			for i, v := range c.Bools {
				out[i] = !v
			}
			return x.with(frame.NewBools(c.Name, out))
		}
	}
	return nil, fmt.Errorf("bad operand type for unary %s: %s", op, typeName(x))
}

func binary(op string, l, r any) (any, error) {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(op, l, r)
	case "&", "|":
		return logical(op, l, r)
	}
	return arith(op, l, r)
}

// operands lines up a binary operation on Series and scalars as two
// equally long columns. The returned series carries the row labels.
func operands(l, r any) (a, b *frame.Column, like series, ok bool, err error) {
	ls, lok := l.(series)
	rs, rok := r.(series)
	switch {
	case lok && rok:
		if ls.f.Len() != rs.f.Len() {
			return nil, nil, series{}, false, fmt.Errorf("cannot combine Series of length %d and %d", ls.f.Len(), rs.f.Len())
		}
		return ls.col(), rs.col(), ls, true, nil
	case lok:
		c, err := broadcast(r, ls.col())
		return ls.col(), c, ls, true, err
	case rok:
		c, err := broadcast(l, rs.col())
		return c, rs.col(), rs, true, err
	}
	return nil, nil, series{}, false, nil
}

// broadcast repeats scalar v to the length of like, coercing strings and
// timestamps to like's time zone when like holds times.
func broadcast(v any, like *frame.Column) (*frame.Column, error) {
	n := like.Len()
	switch like.Kind {
	case frame.Time, frame.Date:
		if _, isDur := v.(time.Duration); isDur {
			break
		}
		loc := time.UTC
		if n > 0 {
			loc = like.Times[0].Location()
		}
		t, err := asTime(v, loc)
		if err != nil {
			return nil, err
		}
		out := make([]time.Time, n)
		for i := range out {
			out[i] = t
		}
		return &frame.Column{Name: like.Name, Kind: like.Kind, Times: out}, nil
	}
	switch v := v.(type) {
	case float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return numbers(like.Name, out, v == math.Trunc(v)), nil
	case string:
		out := make([]string, n)
		for i := range out {
			out[i] = v
		}
		return frame.NewStrings(like.Name, out), nil
	case bool:
		out := make([]bool, n)
		for i := range out {
			out[i] = v
		}
		return frame.NewBools(like.Name, out), nil
	case nil:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.NaN()
		}
		return frame.NewNumbers(like.Name, out), nil
	}
	return nil, fmt.Errorf("cannot combine %s column %q with %s", like.Kind, like.Name, typeName(v))
}

func compare(op string, l, r any) (any, error) {
	a, b, like, ok, err := operands(l, r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return compareScalars(op, l, r)
	}
	out := make([]bool, a.Len())
	for i := range out {
		cmp, null, err := cellCompare(a, b, i)
		if err != nil {
			return nil, err
		}
		if null {
			// missing values compare unequal to everything
			out[i] = op == "!="
			continue
		}
		out[i] = holds(op, cmp)
	}
	return like.with(frame.NewBools(like.col().Name, out))
}

func holds(op string, cmp int) bool {
	switch op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	}
	return cmp >= 0
}

func cellCompare(a, b *frame.Column, i int) (int, bool, error) {
	if a.IsNull(i) || b.IsNull(i) {
		return 0, true, nil
	}
	timeLike := func(k frame.Kind) bool { return k == frame.Time || k == frame.Date }
	switch {
	case a.Kind == frame.Number && b.Kind == frame.Number:
		return cmpOrdered(a.Nums[i], b.Nums[i]), false, nil
	case a.Kind == frame.String && b.Kind == frame.String:
		return cmpOrdered(a.Strs[i], b.Strs[i]), false, nil
	case timeLike(a.Kind) && timeLike(b.Kind):
		return a.Times[i].Compare(b.Times[i]), false, nil
	case a.Kind == frame.Bool && b.Kind == frame.Bool:
		x, y := 0, 0
		if a.Bools[i] {
			x = 1
		}
		if b.Bools[i] {
			y = 1
		}
		return x - y, false, nil
	}
	return 0, false, fmt.Errorf("cannot compare %s column %q with %s", a.Kind, a.Name, b.Kind)
}

func cmpOrdered[T float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareScalars(op string, l, r any) (any, error) {
	switch l := l.(type) {
	case float64:
		if r, ok := r.(float64); ok {
			return holds(op, cmpOrdered(l, r)), nil
		}
	case string:
		if r, ok := r.(string); ok {
			return holds(op, cmpOrdered(l, r)), nil
		}
	case timestamp:
		if r, err := asTime(r, l.t.Location()); err == nil {
			return holds(op, l.t.Compare(r)), nil
		}
	}
	return nil, fmt.Errorf("cannot compare %s with %s", typeName(l), typeName(r))
}

func logical(op string, l, r any) (any, error) {
	if lb, ok := l.(bool); ok {
		if rb, ok := r.(bool); ok {
			if op == "&" {
				return lb && rb, nil
			}
			return lb || rb, nil
		}
	}
	a, b, like, ok, err := operands(l, r)
	if err != nil {
		return nil, err
	}
	if !ok || a.Kind != frame.Bool || b.Kind != frame.Bool {
		return nil, fmt.Errorf("operator %s needs boolean Series, got %s and %s", op, typeName(l), typeName(r))
	}
	out := make([]bool, a.Len())
	for i := range out {
		if op == "&" {
			out[i] = a.Bools[i] && b.Bools[i]
		} else {
			out[i] = a.Bools[i] || b.Bools[i]
		}
	}
	return like.with(frame.NewBools(like.col().Name, out))
}

func arith(op string, l, r any) (any, error) {
	// time shifts
	if d, ok := r.(time.Duration); ok && (op == "+" || op == "-") {
		if op == "-" {
			d = -d
		}
		switch l := l.(type) {
		case timestamp:
			return timestamp{t: l.t.Add(d), naive: l.naive}, nil
		case time.Duration:
			return l + d, nil
		case series:
			c := l.col()
			if c.Kind != frame.Time {
				break
			}
			out := make([]time.Time, len(c.Times))
			for i, t := range c.Times {
				if !t.IsZero() {
					out[i] = t.Add(d)
				}
			}
			return l.with(frame.NewTimes(c.Name, out))
		}
	}

	if x, ok := l.(float64); ok {
		if y, ok := r.(float64); ok {
			return apply(op, x, y), nil
		}
	}
	a, b, like, ok, err := operands(l, r)
	if err != nil {
		return nil, err
	}
	if !ok || a.Kind != frame.Number || b.Kind != frame.Number {
		return nil, fmt.Errorf("unsupported operand types for %s: %s and %s", op, typeName(l), typeName(r))
	}
	out := make([]float64, a.Len())
	for i := range out {
		out[i] = apply(op, a.Nums[i], b.Nums[i])
	}
	integer := a.Integer && b.Integer && op != "/"
	return like.with(numbers(like.col().Name, out, integer))
}

func apply(op string, x, y float64) float64 {
	switch op {
	case "+":
		return x + y
	case "-":
		return x - y
	case "*":
		return x * y
	}
	if y == 0 {
		return math.NaN()
	}
	return x / y
}

func numbers(name string, vals []float64, integer bool) *frame.Column {
	if integer {
		return frame.NewIntegers(name, vals)
	}
	return frame.NewNumbers(name, vals)
}
