package compiler

import (
	"fmt"
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
	"github.com/dangdungcntt/go-grove/internal/expr"
)

// processCondition wraps an element in a conditional. if and unless on the
// same element combine into the conjunction "if and not unless".
func processCondition(c *compile, n *dom.Node, ifRaw string, hasIf bool, unlessRaw string, hasUnless bool) error {
	var ifCode, unlessCode string
	var err error
	if hasIf {
		ifCode, err = expr.Compile(ifRaw, expr.Conditional)
		if err != nil {
			return c.exprErr(n, "if", ifRaw, err)
		}
	}
	if hasUnless {
		unlessCode, err = expr.Compile(unlessRaw, expr.Conditional)
		if err != nil {
			return c.exprErr(n, "unless", unlessRaw, err)
		}
	}

	var cond string
	switch {
	case hasIf && hasUnless:
		cond = "(and " + ifCode + " (not " + unlessCode + "))"
	case hasIf:
		cond = ifCode
	default:
		cond = "(not " + unlessCode + ")"
	}

	n.InsertBefore(c.codeComment("{{if " + cond + "}}"))
	n.InsertAfter(c.codeComment("{{end}}"))
	return nil
}

// processRepeat wraps an element in an iteration. The expression is a
// variable spec followed by the source: "item src" or "key,item src". A
// malformed spec is a structural error in strict mode; in permissive mode
// the element is dropped and never renders.
func processRepeat(c *compile, n *dom.Node, raw string) error {
	key, item, srcExpr, perr := parseRepeat(raw)
	var srcCode string
	if perr == nil {
		srcCode, perr = expr.Compile(srcExpr, expr.Value)
	}
	if perr != nil {
		if c.mode == Strict {
			e := c.errf(KindStructural, n, "repeat", raw, "malformed repeat")
			e.Cause = perr
			return e
		}
		n.Detach()
		return nil
	}

	open := fmt.Sprintf("{{range iter . %q %q %s}}", key, item, srcCode)
	n.InsertBefore(c.codeComment(open))
	n.InsertAfter(c.codeComment("{{end}}"))
	return nil
}

// parseRepeat splits "key,item src" into its variable names and source
// expression. The variable spec may carry spaces after the comma.
func parseRepeat(raw string) (key, item, src string, err error) {
	fields := strings.Fields(raw)
	for k := 1; k < len(fields); k++ {
		varPart := strings.Join(fields[:k], "")
		rest := strings.Join(fields[k:], " ")
		names := strings.Split(varPart, ",")
		switch len(names) {
		case 1:
			if expr.IsIdent(names[0]) {
				return "", names[0], rest, nil
			}
		case 2:
			if expr.IsIdent(names[0]) && expr.IsIdent(names[1]) {
				return names[0], names[1], rest, nil
			}
		}
	}
	return "", "", "", fmt.Errorf("expected %q or %q, got %q", "item source", "key,item source", raw)
}

// processSwitch turns case/default children into a clause chain. The chain
// spans from the first to the last clause child; other nodes inside that
// span are dropped, nodes outside it are preserved. A default clause moves
// to the end of the chain regardless of where it appeared.
func processSwitch(c *compile, n *dom.Node, raw string) error {
	subject, err := expr.Compile(raw, expr.Value)
	if err != nil {
		return c.exprErr(n, "switch", raw, err)
	}

	type clause struct {
		node *dom.Node
		cond string
	}
	var clauses []clause
	var def *dom.Node
	inChain := make(map[*dom.Node]bool)

	for _, k := range n.Children {
		if k.Type != dom.ElementNode {
			continue
		}
		if v, ok := k.Attr("case"); ok {
			k.RemoveAttr("case")
			val, cerr := expr.CompileCaseValue(v)
			if cerr != nil {
				return c.exprErr(k, "case", v, cerr)
			}
			clauses = append(clauses, clause{k, fmt.Sprintf("(seq %s %s)", subject, val)})
			inChain[k] = true
		} else if k.HasAttr("default") {
			k.RemoveAttr("default")
			if def != nil {
				if c.mode == Strict {
					return c.errf(KindStructural, k, "default", "", "multiple default clauses in one switch")
				}
				inChain[k] = true // first default wins; extras drop with the span
				continue
			}
			def = k
			inChain[k] = true
		}
	}

	if len(clauses) == 0 && def == nil {
		if c.mode == Strict {
			return c.errf(KindStructural, n, "switch", raw, "switch has no case or default children")
		}
		clearChildren(n)
		return nil
	}

	old := n.Children
	first, last := -1, -1
	for i, k := range old {
		if inChain[k] {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	rebuilt := make([]*dom.Node, 0, len(old)+len(clauses)*2+3)
	rebuilt = append(rebuilt, old[:first]...)
	for i, cl := range clauses {
		word := "{{else if "
		if i == 0 {
			word = "{{if "
		}
		rebuilt = append(rebuilt, c.codeComment(word+cl.cond+"}}"), cl.node)
	}
	switch {
	case def != nil && len(clauses) == 0:
		// A lone default always renders; no conditional wrapper needed.
		rebuilt = append(rebuilt, def)
	case def != nil:
		rebuilt = append(rebuilt, c.codeComment("{{else}}"), def, c.codeComment("{{end}}"))
	default:
		rebuilt = append(rebuilt, c.codeComment("{{end}}"))
	}
	rebuilt = append(rebuilt, old[last+1:]...)

	kept := make(map[*dom.Node]bool, len(rebuilt))
	for _, k := range rebuilt {
		kept[k] = true
	}
	for _, k := range old {
		if !kept[k] {
			k.Parent = nil
		}
	}
	for _, k := range rebuilt {
		k.Parent = n
	}
	n.Children = rebuilt
	return nil
}

func clearChildren(n *dom.Node) {
	for _, k := range n.Children {
		k.Parent = nil
	}
	n.Children = nil
}
