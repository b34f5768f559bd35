// Package shaping evaluates the data_code expressions returned by the model.
//
// data_code is a single pandas-style expression over a DataFrame named df.
// It is parsed with a closed grammar and interpreted against the frame
// package; there are no statements, assignments, imports, lambdas or
// attribute access outside a fixed set of table verbs, so model output can
// never reach the filesystem, the network or the process.
package shaping

import (
	"errors"
	"fmt"
	"strings"

	"availability-dashboard/internal/frame"
)

// MaxCodeLength is the longest expression accepted.
const MaxCodeLength = 2000

// Eval evaluates code against df and returns the table to plot. A Series
// result becomes a one-column table; index levels of the result are turned
// back into leading columns. df is never modified.
func Eval(df *frame.Frame, code string) (out *frame.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &Error{Pos: -1, Msg: fmt.Sprintf("evaluation failed: %v", r)}
		}
	}()

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &Error{Pos: -1, Msg: "expression is empty"}
	}
	if len(code) > MaxCodeLength {
		return nil, &Error{Pos: -1, Msg: fmt.Sprintf("expression is longer than %d characters", MaxCodeLength)}
	}
	toks, err := lex(code)
	if err != nil {
		return nil, err
	}
	root, err := parse(toks)
	if err != nil {
		return nil, err
	}
	v, err := (&evaluator{df: df}).eval(root)
	if err != nil {
		return nil, err
	}

	switch v := v.(type) {
	case *frame.Frame:
		out = v
	case series:
		out = v.f
		if len(out.Index()) == 0 {
			out = out.DropIndex()
		}
	default:
		return nil, &Error{Pos: -1, Msg: fmt.Sprintf("expression must produce a table, got %s", typeName(v))}
	}
	if len(out.Index()) > 0 {
		if out, err = out.ResetIndex(); err != nil {
			return nil, &Error{Pos: -1, Msg: err.Error()}
		}
	}
	if out.Len() == 0 {
		return nil, &Error{Pos: -1, Msg: "expression produced no rows"}
	}
	return out, nil
}

type evaluator struct {
	df *frame.Frame
}

// errNoMethod marks a method name missing from a receiver's verb table.
var errNoMethod = errors.New("no such method")

func (e *evaluator) eval(n node) (any, error) {
	switch n := n.(type) {
	case *litNode:
		return n.val, nil
	case *nameNode:
		switch n.name {
		case "df":
			return e.df, nil
		case "pd":
			return pdModule{}, nil
		}
		return nil, errorf(n.pos, "name %q is not defined", n.name)
	case *listNode:
		vals := make([]any, len(n.elems))
		for i, el := range n.elems {
			v, err := e.eval(el)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		if n.tuple {
			return tuple(vals), nil
		}
		return list(vals), nil
	case *dictNode:
		d := dict{}
		for i := range n.keys {
			k, err := e.eval(n.keys[i])
			if err != nil {
				return nil, err
			}
			ks, ok := k.(string)
			if !ok {
				return nil, errorf(n.keys[i].position(), "dict keys must be strings, got %s", typeName(k))
			}
			v, err := e.eval(n.vals[i])
			if err != nil {
				return nil, err
			}
			d.keys = append(d.keys, ks)
			d.vals = append(d.vals, v)
		}
		return d, nil
	case *attrNode:
		x, err := e.eval(n.x)
		if err != nil {
			return nil, err
		}
		v, err := attribute(x, n.name)
		return v, at(n.pos, err)
	case *callNode:
		return e.call(n)
	case *indexNode:
		x, err := e.eval(n.x)
		if err != nil {
			return nil, err
		}
		key, err := e.eval(n.key)
		if err != nil {
			return nil, err
		}
		v, err := index(x, key)
		return v, at(n.pos, err)
	case *unaryNode:
		x, err := e.eval(n.x)
		if err != nil {
			return nil, err
		}
		v, err := unary(n.op, x)
		return v, at(n.pos, err)
	case *binaryNode:
		l, err := e.eval(n.l)
		if err != nil {
			return nil, err
		}
		r, err := e.eval(n.r)
		if err != nil {
			return nil, err
		}
		v, err := binary(n.op, l, r)
		return v, at(n.pos, err)
	}
	return nil, errorf(n.position(), "unsupported syntax")
}

func (e *evaluator) call(n *callNode) (any, error) {
	fn, ok := n.fn.(*attrNode)
	if !ok {
		if name, isName := n.fn.(*nameNode); isName {
			return nil, errorf(n.pos, "calling %q is not allowed", name.name)
		}
		return nil, errorf(n.pos, "only methods can be called")
	}
	recv, err := e.eval(fn.x)
	if err != nil {
		return nil, err
	}
	a := &args{method: fn.name}
	for _, arg := range n.args {
		v, err := e.eval(arg)
		if err != nil {
			return nil, err
		}
		a.pos = append(a.pos, v)
	}
	for _, kw := range n.kwargs {
		v, err := e.eval(kw.val)
		if err != nil {
			return nil, err
		}
		a.kw = append(a.kw, kwval{name: kw.name, val: v})
	}

	var v any
	switch r := recv.(type) {
	case *frame.Frame:
		v, err = frameMethod(r, a)
	case series:
		v, err = seriesMethod(r, a)
	case *grouped:
		v, err = r.method(a)
	case *resampler:
		v, err = r.method(a)
	case *rolling:
		v, err = r.method(a)
	case dtAccessor:
		v, err = r.method(a)
	case pdModule:
		v, err = r.method(a)
	default:
		err = errNoMethod
	}
	if errors.Is(err, errNoMethod) {
		return nil, errorf(fn.pos, "%s has no method %q", typeName(recv), fn.name)
	}
	return v, at(fn.pos, err)
}

// at attaches a source offset to errors from the verb implementations.
func at(pos int, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Pos: pos, Msg: err.Error()}
}

func attribute(x any, name string) (any, error) {
	switch x := x.(type) {
	case *frame.Frame:
		if name == "loc" {
			return locIndexer{f: x}, nil
		}
		if _, ok := x.Column(name); ok {
			s, err := x.Select(name)
			return series{f: s}, err
		}
	case series:
		if name == "dt" {
			if k := x.col().Kind; k != frame.Time && k != frame.Date {
				return nil, fmt.Errorf(".dt needs a datetime column, %q is %s", x.col().Name, k)
			}
			return dtAccessor{s: x}, nil
		}
	case dtAccessor:
		return x.field(name)
	}
	return nil, fmt.Errorf("%s has no attribute %q", typeName(x), name)
}

func index(x, key any) (any, error) {
	switch x := x.(type) {
	case *frame.Frame:
		switch k := key.(type) {
		case string:
			s, err := x.Select(k)
			if err != nil {
				return nil, err
			}
			return series{f: s}, nil
		case list:
			names, err := asNames(k)
			if err != nil {
				return nil, fmt.Errorf("column list %w", err)
			}
			return x.Select(names...)
		case series:
			return filterRows(x, k)
		}
	case locIndexer:
		return x.index(key)
	case series:
		if mask, ok := key.(series); ok {
			f, err := filterRows(x.f, mask)
			if err != nil {
				return nil, err
			}
			return series{f: f}, nil
		}
	case *grouped:
		names, err := asNames(key)
		if err != nil {
			return nil, fmt.Errorf("groupby selection %w", err)
		}
		g := *x
		g.cols, g.single = names, isString(key)
		return &g, nil
	case *resampler:
		names, err := asNames(key)
		if err != nil {
			return nil, fmt.Errorf("resample selection %w", err)
		}
		r := *x
		r.cols, r.single = names, isString(key)
		return &r, nil
	}
	return nil, fmt.Errorf("cannot index %s with %s", typeName(x), typeName(key))
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func filterRows(f *frame.Frame, mask series) (*frame.Frame, error) {
	c := mask.col()
	if c.Kind != frame.Bool {
		return nil, fmt.Errorf("row filter must be a boolean Series, %q is %s", c.Name, c.Kind)
	}
	return f.Filter(c.Bools)
}

// locIndexer supports df.loc[mask] and df.loc[mask, columns].
type locIndexer struct {
	f *frame.Frame
}

func (l locIndexer) index(key any) (any, error) {
	rows, cols := key, any(nil)
	if t, ok := key.(tuple); ok {
		if len(t) != 2 {
			return nil, fmt.Errorf("loc takes [rows] or [rows, columns]")
		}
		rows, cols = t[0], t[1]
	}
	mask, ok := rows.(series)
	if !ok {
		return nil, fmt.Errorf("loc rows must be a boolean Series, got %s", typeName(rows))
	}
	f, err := filterRows(l.f, mask)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return f, nil
	}
	return index(f, cols)
}

type pdModule struct{}

func (pdModule) method(a *args) (any, error) {
	switch a.method {
	case "Timestamp", "to_datetime":
		if err := a.check(1, "ts_input", "arg"); err != nil {
			return nil, err
		}
		v, ok := a.lookup(0, "ts_input")
		if !ok {
			v, ok = a.lookup(-1, "arg")
		}
		if !ok {
			return nil, fmt.Errorf("%s() requires a value", a.method)
		}
		switch v := v.(type) {
		case string:
			return parseTimestamp(v)
		case timestamp:
			return v, nil
		case series:
			return toDatetime(v)
		}
		return nil, fmt.Errorf("%s() cannot convert %s", a.method, typeName(v))
	case "Timedelta":
		return timedelta(a)
	}
	return nil, errNoMethod
}
