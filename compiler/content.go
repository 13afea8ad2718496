package compiler

import (
	"fmt"
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
	"github.com/dangdungcntt/go-grove/internal/expr"
)

// processWith wraps the element's children in local bindings. Bindings
// apply left to right, so a later binding can use an earlier one. A
// malformed binding list is a structural error in strict mode; permissive
// mode drops the directive whole.
func processWith(c *compile, n *dom.Node, raw string) error {
	bindings, err := parseBindings(raw, expr.Calculation, expr.IsIdent)
	if err != nil {
		if c.mode == Strict {
			e := c.errf(KindStructural, n, "with", raw, "malformed binding list")
			e.Cause = err
			return e
		}
		return nil
	}

	var opening, closing strings.Builder
	for _, b := range bindings {
		fmt.Fprintf(&opening, "{{with bind . %q %s}}", b.name, b.code)
		closing.WriteString("{{end}}")
	}
	n.PrependChild(c.codeComment(opening.String()))
	n.AppendChild(c.codeComment(closing.String()))
	return nil
}

// processAttr sets attributes from a binding list. Values compile in text
// mode, so they carry exactly the standard escaping and nothing more.
// Existing attributes are overwritten.
func processAttr(c *compile, n *dom.Node, raw string) error {
	bindings, err := parseBindings(raw, expr.Text, attrNameOK)
	if err != nil {
		if c.mode == Strict {
			e := c.errf(KindStructural, n, "attr", raw, "malformed binding list")
			e.Cause = err
			return e
		}
		return nil
	}

	for _, b := range bindings {
		n.SetAttr(b.name, c.attrToken("{{"+b.code+"}}"))
	}
	return nil
}

// bindAttrs applies :name="expression" bindings, the per-attribute form of
// attr: the value is one text-mode expression whose result becomes the
// named attribute. A static attribute of the same name is overwritten and
// the binding itself never reaches output.
func (c *compile) bindAttrs(n *dom.Node) error {
	attrs := append([]dom.Attr(nil), n.Attrs...)
	for _, a := range attrs {
		if !strings.HasPrefix(a.Key, ":") {
			continue
		}
		name := a.Key[1:]
		if !attrNameOK(name) {
			if c.mode == Strict {
				return c.errf(KindSyntax, n, a.Key, a.Val, "invalid attribute name %q", name)
			}
			n.RemoveAttr(a.Key)
			continue
		}
		code, err := expr.Compile(a.Val, expr.Text)
		if err != nil {
			if c.mode == Strict {
				return c.exprErr(n, a.Key, a.Val, err)
			}
			n.RemoveAttr(a.Key)
			continue
		}
		if n.HasAttr(name) {
			n.SetAttr(name, c.attrToken("{{"+code+"}}"))
			n.RemoveAttr(a.Key)
		} else {
			n.RenameAttr(a.Key, name)
			n.SetAttr(name, c.attrToken("{{"+code+"}}"))
		}
	}
	return nil
}

// processText replaces the element's content with the escaped expression
// value.
func processText(c *compile, n *dom.Node, raw string) error {
	code, err := expr.Compile(raw, expr.Text)
	if err != nil {
		return c.exprErr(n, "text", raw, err)
	}
	clearChildren(n)
	n.AppendChild(c.codeComment("{{" + code + "}}"))
	return nil
}

type binding struct {
	name string
	code string
}

// parseBindings splits a comma-separated name=expression list, compiling
// each value in the given mode. The split respects parentheses and quotes;
// nameOK validates the left-hand side.
func parseBindings(raw string, mode expr.Mode, nameOK func(string) bool) ([]binding, error) {
	var out []binding
	for _, part := range expr.SplitTop(raw, ',') {
		name, val, ok := expr.CutBinding(part)
		if !ok {
			return nil, fmt.Errorf("expected name=expression, got %q", strings.TrimSpace(part))
		}
		if !nameOK(name) {
			return nil, fmt.Errorf("invalid binding name %q", name)
		}
		code, err := expr.Compile(val, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, binding{name, code})
	}
	return out, nil
}

// attrNameOK accepts identifier-like names plus the dashes and colons
// attribute names use (data-id, xlink:href).
func attrNameOK(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case (r >= '0' && r <= '9' || r == '-' || r == ':') && i > 0:
		default:
			return false
		}
	}
	return true
}
