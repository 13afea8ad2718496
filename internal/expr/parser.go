package expr

// Node kinds of the parsed expression tree.
type node interface{ isNode() }

type pathNode struct {
	segs []string
	col  int
}

type litKind int

const (
	litString litKind = iota
	litNumber
	litBool
	litNull
)

type litNode struct {
	kind litKind
	text string // number text verbatim, string value unquoted, "true"/"false"
	col  int
}

type unaryNode struct {
	op  tokenKind // tokNot or tokMinus
	x   node
	col int
}

type binaryNode struct {
	op   tokenKind
	x, y node
	col  int
}

func (pathNode) isNode()   {}
func (litNode) isNode()    {}
func (unaryNode) isNode()  {}
func (binaryNode) isNode() {}

type parser struct {
	toks []token
	pos  int
	mode Mode
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) calcAllowed() bool {
	return p.mode == Calculation || p.mode == Text
}

func parse(src string, mode Mode) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, mode: mode}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errAt(t.col, "unexpected %q", t.text)
	}
	return n, nil
}

func (p *parser) parseOr() (node, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		op := p.next()
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = binaryNode{op.kind, x, y, op.col}
	}
	return x, nil
}

func (p *parser) parseAnd() (node, error) {
	x, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		op := p.next()
		y, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		x = binaryNode{op.kind, x, y, op.col}
	}
	return x, nil
}

// Comparisons do not chain: a == b == c is a syntax error rather than a
// surprise boolean-to-value comparison.
func (p *parser) parseCompare() (node, error) {
	x, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	switch p.peek().kind {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte:
		op := p.next()
		y, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		x = binaryNode{op.kind, x, y, op.col}
	}
	if t := p.peek(); isCompareOp(t.kind) {
		return nil, errAt(t.col, "comparisons cannot be chained")
	}
	return x, nil
}

func isCompareOp(k tokenKind) bool {
	switch k {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte:
		return true
	}
	return false
}

func (p *parser) parseAdditive() (node, error) {
	x, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return x, nil
		}
		if !p.calcAllowed() {
			return nil, errAt(t.col, "arithmetic operator %q is only valid in a calculation", t.text)
		}
		op := p.next()
		y, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		x = binaryNode{op.kind, x, y, op.col}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash && t.kind != tokPercent {
			return x, nil
		}
		if !p.calcAllowed() {
			return nil, errAt(t.col, "arithmetic operator %q is only valid in a calculation", t.text)
		}
		op := p.next()
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = binaryNode{op.kind, x, y, op.col}
	}
}

func (p *parser) parseUnary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNot:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{tokNot, x, t.col}, nil
	case tokMinus:
		if !p.calcAllowed() {
			return nil, errAt(t.col, "arithmetic operator %q is only valid in a calculation", t.text)
		}
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{tokMinus, x, t.col}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, errAt(c.col, "expected closing parenthesis")
		}
		return x, nil
	case tokString:
		return litNode{litString, t.text, t.col}, nil
	case tokNumber:
		return litNode{litNumber, t.text, t.col}, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			return litNode{litBool, t.text, t.col}, nil
		case "null":
			return litNode{litNull, t.text, t.col}, nil
		}
		return p.parsePath(t)
	case tokEOF:
		return nil, errAt(t.col, "unexpected end of expression")
	default:
		return nil, errAt(t.col, "unexpected %q", t.text)
	}
}

// parsePath consumes the remainder of a dotted lookup path. Segments are
// identifiers or bare integer indexes (items.0.name).
func (p *parser) parsePath(first token) (node, error) {
	segs := []string{first.text}
	for p.peek().kind == tokDot {
		p.next()
		s := p.next()
		switch s.kind {
		case tokIdent:
			segs = append(segs, s.text)
		case tokNumber:
			for _, c := range s.text {
				if c == '.' {
					return nil, errAt(s.col, "invalid path segment %q", s.text)
				}
			}
			segs = append(segs, s.text)
		default:
			return nil, errAt(s.col, "expected path segment after '.'")
		}
	}
	return pathNode{segs, first.col}, nil
}
