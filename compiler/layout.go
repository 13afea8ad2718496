package compiler

import (
	"fmt"
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
	"github.com/dangdungcntt/go-grove/internal/expr"
)

// processExtend declares the layout this template renders inside. The
// element itself is only a carrier: its children hoist into its place
// behind the layout marker, and the element disappears. When several
// extends execute, the last one wins at render time.
func processExtend(c *compile, n *dom.Node, raw string) error {
	path := unquoteLiteral(raw)
	if path == "" {
		return c.errf(KindSyntax, n, "extend", raw, "extend needs a template path")
	}

	marker := c.codeComment(fmt.Sprintf("{{extend . %q}}", path))
	n.InsertBefore(marker)
	parent := n.Parent
	kids := append([]*dom.Node(nil), n.Children...)
	n.Unwrap()

	// The parent's child snapshot was taken before the hoist, so the
	// hoisted children are dispatched here.
	for _, k := range kids {
		switch k.Type {
		case dom.ElementNode:
			if err := c.dispatch(k); err != nil {
				return err
			}
		case dom.TextNode:
			if parent == nil || !rawTextTags[strings.ToLower(parent.Tag)] {
				if err := c.interpolateText(k); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// processSection extracts the element into a define block and leaves a
// registration marker in its place. The section body renders only when a
// layout yields it; registration happens where the marker sits, so a
// section inside a conditional registers conditionally.
func processSection(c *compile, n *dom.Node, raw string) error {
	name := unquoteLiteral(raw)
	if name == "" {
		return c.errf(KindSyntax, n, "section", raw, "section needs a name")
	}

	defName := c.newDefine("sec", name)
	n.ReplaceWith(c.codeComment(fmt.Sprintf("{{section . %q %q}}", name, defName)))
	c.addDefine(defName, n)
	return nil
}

// processYield replaces the element's content with a named section's
// captured output. An optional second argument is the default when no
// section registered under that name.
func processYield(c *compile, n *dom.Node, raw string) error {
	parts := expr.SplitTop(raw, ',')
	name := unquoteLiteral(parts[0])
	if name == "" {
		return c.errf(KindSyntax, n, "yield", raw, "yield needs a section name")
	}

	code := fmt.Sprintf("{{yieldSection . %q}}", name)
	switch {
	case len(parts) == 2:
		def, err := expr.Compile(parts[1], expr.Calculation)
		if err != nil {
			return c.exprErr(n, "yield", parts[1], err)
		}
		code = fmt.Sprintf("{{yieldSection . %q %s}}", name, def)
	case len(parts) > 2:
		return c.errf(KindSyntax, n, "yield", raw, "yield takes a name and at most one default")
	}

	clearChildren(n)
	n.AppendChild(c.codeComment(code))
	return nil
}

// unquoteLiteral trims a directive value and strips one level of matching
// quotes, so both extend="layouts/app" and extend="'layouts/app'" name the
// same template.
func unquoteLiteral(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
