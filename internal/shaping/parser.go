package shaping

import "fmt"

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

type node interface{ position() int }

type (
	nameNode struct {
		pos  int
		name string
	}
	litNode struct {
		pos int
		val any // float64, string, bool or nil
	}
	listNode struct {
		pos   int
		elems []node
		tuple bool // a, b inside brackets
	}
	dictNode struct {
		pos        int
		keys, vals []node
	}
	attrNode struct {
		pos  int
		x    node
		name string
	}
	kwarg struct {
		name string
		val  node
	}
	callNode struct {
		pos    int
		fn     node
		args   []node
		kwargs []kwarg
	}
	indexNode struct {
		pos int
		x   node
		key node
	}
	unaryNode struct {
		pos int
		op  string
		x   node
	}
	binaryNode struct {
		pos  int
		op   string
		l, r node
	}
)

func (n *nameNode) position() int   { return n.pos }
func (n *litNode) position() int    { return n.pos }
func (n *listNode) position() int   { return n.pos }
func (n *dictNode) position() int   { return n.pos }
func (n *attrNode) position() int   { return n.pos }
func (n *callNode) position() int   { return n.pos }
func (n *indexNode) position() int  { return n.pos }
func (n *unaryNode) position() int  { return n.pos }
func (n *binaryNode) position() int { return n.pos }

type parser struct {
	toks  []token
	i     int
	depth int
}

func parse(toks []token) (node, error) {
	p := &parser{toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errorf(t.pos, "unexpected %q after expression", t.text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) expect(op string) (token, error) {
	t := p.next()
	if t.kind != tokOp || t.text != op {
		if t.kind == tokEOF {
			return t, errorf(t.pos, "expected %q, got end of input", op)
		}
		return t, errorf(t.pos, "expected %q, got %q", op, t.text)
	}
	return t, nil
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > maxDepth {
		return errorf(pos, "expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// Precedence, loosest first: comparison, |, &, + -, * /, unary, postfix.
func (p *parser) expr() (node, error) {
	if err := p.enter(p.peek().pos); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.comparison()
}

func (p *parser) comparison() (node, error) {
	l, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if p.isOp("==", "!=", "<", "<=", ">", ">=") {
		t := p.next()
		r, err := p.binary(0)
		if err != nil {
			return nil, err
		}
		if p.isOp("==", "!=", "<", "<=", ">", ">=") {
			return nil, errorf(p.peek().pos, "chained comparisons are not supported")
		}
		return &binaryNode{pos: t.pos, op: t.text, l: l, r: r}, nil
	}
	return l, nil
}

var binaryLevels = [][]string{{"|"}, {"&"}, {"+", "-"}, {"*", "/"}}

func (p *parser) binary(level int) (node, error) {
	if level == len(binaryLevels) {
		return p.unary()
	}
	l, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for p.isOp(binaryLevels[level]...) {
		t := p.next()
		r, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		l = &binaryNode{pos: t.pos, op: t.text, l: l, r: r}
	}
	return l, nil
}

func (p *parser) unary() (node, error) {
	if p.isOp("-", "+", "~") {
		t := p.next()
		if err := p.enter(t.pos); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{pos: t.pos, op: t.text, x: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			t := p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, errorf(name.pos, "expected attribute name after '.'")
			}
			x = &attrNode{pos: t.pos, x: x, name: name.text}
		case p.isOp("("):
			t := p.next()
			call := &callNode{pos: t.pos, fn: x}
			if err := p.callArgs(call); err != nil {
				return nil, err
			}
			x = call
		case p.isOp("["):
			t := p.next()
			key, err := p.expr()
			if err != nil {
				return nil, err
			}
			if p.isOp(",") {
				tup := &listNode{pos: key.position(), elems: []node{key}, tuple: true}
				for p.isOp(",") {
					p.next()
					el, err := p.expr()
					if err != nil {
						return nil, err
					}
					tup.elems = append(tup.elems, el)
				}
				key = tup
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &indexNode{pos: t.pos, x: x, key: key}
		default:
			return x, nil
		}
	}
}

func (p *parser) callArgs(call *callNode) error {
	for !p.isOp(")") {
		t := p.peek()
		if t.kind == tokIdent && p.toks[p.i+1].kind == tokOp && p.toks[p.i+1].text == "=" {
			p.next()
			p.next()
			v, err := p.expr()
			if err != nil {
				return err
			}
			for _, kw := range call.kwargs {
				if kw.name == t.text {
					return errorf(t.pos, "keyword argument %q repeated", t.text)
				}
			}
			call.kwargs = append(call.kwargs, kwarg{name: t.text, val: v})
		} else {
			if len(call.kwargs) > 0 {
				return errorf(t.pos, "positional argument follows keyword argument")
			}
			v, err := p.expr()
			if err != nil {
				return err
			}
			call.args = append(call.args, v)
		}
		if !p.isOp(",") {
			break
		}
		p.next()
	}
	_, err := p.expect(")")
	return err
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &litNode{pos: t.pos, val: t.num}, nil
	case tokString:
		return &litNode{pos: t.pos, val: t.text}, nil
	case tokIdent:
		switch t.text {
		case "True":
			return &litNode{pos: t.pos, val: true}, nil
		case "False":
			return &litNode{pos: t.pos, val: false}, nil
		case "None":
			return &litNode{pos: t.pos, val: nil}, nil
		}
		return &nameNode{pos: t.pos, name: t.text}, nil
	case tokEOF:
		return nil, errorf(t.pos, "unexpected end of input")
	}
	switch t.text {
	case "(":
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return x, nil
	case "[":
		list := &listNode{pos: t.pos}
		for !p.isOp("]") {
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			list.elems = append(list.elems, v)
			if !p.isOp(",") {
				break
			}
			p.next()
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		return list, nil
	case "{":
		dict := &dictNode{pos: t.pos}
		for !p.isOp("}") {
			k, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(":"); err != nil {
				return nil, err
			}
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			dict.keys = append(dict.keys, k)
			dict.vals = append(dict.vals, v)
			if !p.isOp(",") {
				break
			}
			p.next()
		}
		if _, err := p.expect("}"); err != nil {
			return nil, err
		}
		return dict, nil
	}
	return nil, errorf(t.pos, "unexpected %q", t.text)
}

// Error reports why data_code was rejected or failed to evaluate.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string {
	if e.Pos < 0 {
		return "data_code: " + e.Msg
	}
	return fmt.Sprintf("data_code: %s (at offset %d)", e.Msg, e.Pos)
}

func errorf(pos int, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
