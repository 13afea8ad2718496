package compiler

import (
	"fmt"
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
	"github.com/dangdungcntt/go-grove/internal/expr"
)

// processFragment extracts the element into a define block and leaves a
// registration marker behind. The fragment renders nothing where it is
// defined; include and replace invoke it. Redeclaring a name overwrites
// the earlier definition at render time.
func processFragment(c *compile, n *dom.Node, raw string) error {
	name, params, err := parseFragmentDecl(raw)
	if err != nil {
		return c.errf(KindSyntax, n, "fragment", raw, "%v", err)
	}

	defName := c.newDefine("frag", name)
	marker := fmt.Sprintf("{{fragdef . %q %q %q}}", name, strings.Join(params, ","), defName)
	n.ReplaceWith(c.codeComment(marker))
	c.addDefine(defName, n)
	return nil
}

// processInclude replaces the element's content with a fragment call; the
// element itself stays as the wrapper.
func processInclude(c *compile, n *dom.Node, raw string) error {
	code, err := compileFragmentRef(c, raw)
	if err != nil {
		return c.errf(KindSyntax, n, "include", raw, "%v", err)
	}
	clearChildren(n)
	n.AppendChild(c.codeComment(code))
	return nil
}

// processReplace swaps the whole element for a fragment call.
func processReplace(c *compile, n *dom.Node, raw string) error {
	code, err := compileFragmentRef(c, raw)
	if err != nil {
		return c.errf(KindSyntax, n, "replace", raw, "%v", err)
	}
	n.ReplaceWith(c.codeComment(code))
	return nil
}

// parseFragmentDecl parses a definition: name, or name(param, param).
func parseFragmentDecl(raw string) (name string, params []string, err error) {
	s := strings.TrimSpace(raw)
	open := strings.Index(s, "(")
	if open < 0 {
		if !expr.IsIdent(s) {
			return "", nil, fmt.Errorf("invalid fragment name %q", s)
		}
		return s, nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("unclosed parameter list in %q", raw)
	}
	name = strings.TrimSpace(s[:open])
	if !expr.IsIdent(name) {
		return "", nil, fmt.Errorf("invalid fragment name %q", name)
	}
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		return name, nil, nil
	}
	for _, p := range strings.Split(inner, ",") {
		p = strings.TrimSpace(p)
		if !expr.IsIdent(p) {
			return "", nil, fmt.Errorf("invalid fragment parameter %q", p)
		}
		params = append(params, p)
	}
	return name, params, nil
}

// compileFragmentRef parses and compiles an invocation per the reference
// grammar ["path" ::] name(args...) and returns the generated call.
// Arguments compile in calculation mode.
func compileFragmentRef(c *compile, raw string) (string, error) {
	s := strings.TrimSpace(raw)

	var path string
	if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
		quote := s[0]
		end := strings.IndexByte(s[1:], quote)
		if end < 0 {
			return "", fmt.Errorf("unterminated template path in %q", raw)
		}
		path = s[1 : end+1]
		rest := strings.TrimSpace(s[end+2:])
		if !strings.HasPrefix(rest, "::") {
			return "", fmt.Errorf("expected :: after template path in %q", raw)
		}
		s = strings.TrimSpace(rest[2:])
	}

	name := s
	var argCodes []string
	if open := strings.Index(s, "("); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return "", fmt.Errorf("unclosed argument list in %q", raw)
		}
		name = strings.TrimSpace(s[:open])
		inner := strings.TrimSpace(s[open+1 : len(s)-1])
		if inner != "" {
			for _, a := range expr.SplitTop(inner, ',') {
				code, err := expr.Compile(a, expr.Calculation)
				if err != nil {
					return "", err
				}
				argCodes = append(argCodes, code)
			}
		}
	}
	if !expr.IsIdent(name) {
		return "", fmt.Errorf("invalid fragment name %q", name)
	}

	call := fmt.Sprintf("{{frag . %q %q", path, name)
	for _, a := range argCodes {
		call += " " + a
	}
	return call + "}}", nil
}
