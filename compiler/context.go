package compiler

import (
	"fmt"
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
	"github.com/dangdungcntt/go-grove/internal/expr"
)

// compile is the state of one compilation: the marker registry, the
// define blocks hoisted out for sections and fragments, and the per-node
// dispatch states.
type compile struct {
	name    string
	mode    Mode
	markers *dom.MarkerSet
	defines []define
	defSeq  int
	states  map[*dom.Node]nodeState
}

// define is a subtree extracted from the document, serialized after the
// main body as a {{define}} block.
type define struct {
	name string
	root *dom.Node
}

func newCompile(name string, opts Options) *compile {
	return &compile{
		name:    name,
		mode:    opts.Mode,
		markers: dom.NewMarkerSet(),
		states:  make(map[*dom.Node]nodeState),
	}
}

// newDefine reserves a unique define-block name. The hint keeps compiled
// output readable when debugging.
func (c *compile) newDefine(kind, hint string) string {
	c.defSeq++
	return fmt.Sprintf("grove:%s:%s:%d", kind, sanitizeHint(hint), c.defSeq)
}

func (c *compile) addDefine(name string, root *dom.Node) {
	c.defines = append(c.defines, define{name: name, root: root})
}

func sanitizeHint(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= 32 {
			break
		}
	}
	return b.String()
}

// codeComment registers code and returns the comment-shaped marker node
// carrying it.
func (c *compile) codeComment(code string) *dom.Node {
	return c.markers.Comment(code)
}

// attrToken registers code forming a whole attribute value and returns its
// token.
func (c *compile) attrToken(code string) string {
	return c.markers.New(dom.MarkerAttr, code)
}

// bareToken registers code emitted inside an open tag and returns its
// token. The payload carries its own spacing.
func (c *compile) bareToken(code string) string {
	return c.markers.New(dom.MarkerCode, code)
}

func (c *compile) errf(kind Kind, n *dom.Node, directive, expression, format string, args ...any) *Error {
	e := &Error{
		Kind:       kind,
		Template:   c.name,
		Directive:  directive,
		Expression: expression,
		Message:    fmt.Sprintf(format, args...),
	}
	if n != nil {
		e.Line = n.Line
	}
	return e
}

// exprErr wraps an expression compile failure, lifting the column out of
// the underlying syntax error.
func (c *compile) exprErr(n *dom.Node, directive, expression string, err error) *Error {
	e := c.errf(KindSyntax, n, directive, expression, "invalid expression")
	e.Cause = err
	if serr, ok := err.(*expr.SyntaxError); ok {
		e.Col = serr.Col
	}
	return e
}
