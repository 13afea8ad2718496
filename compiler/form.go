package compiler

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
	"github.com/dangdungcntt/go-grove/internal/expr"
)

// processField binds a form control to a dot path: name and id derive from
// the path when absent, and the control's value side follows its kind.
// Text-likes get a bound value attribute, checkboxes and radios a
// conditional checked, textareas bound content, and selects a conditional
// selected on the matching option.
func processField(c *compile, n *dom.Node, raw string) error {
	p := strings.TrimSpace(raw)
	if !expr.IsPath(p) {
		return c.errf(KindSyntax, n, "field", raw, "field expects a dot path")
	}
	pathQ := strconv.Quote(p)

	if !n.HasAttr("name") {
		n.SetAttr("name", p)
	}
	if !n.HasAttr("id") {
		n.SetAttr("id", strings.ReplaceAll(p, ".", "-"))
	}

	switch strings.ToLower(n.Tag) {
	case "input":
		typ, _ := n.Attr("type")
		switch strings.ToLower(typ) {
		case "checkbox", "radio":
			var code string
			if val, ok := n.Attr("value"); ok {
				code = fmt.Sprintf("{{if (fieldChecked . %s %s)}} checked{{end}}", pathQ, strconv.Quote(val))
			} else {
				code = fmt.Sprintf("{{if (fieldChecked . %s)}} checked{{end}}", pathQ)
			}
			n.AppendBareAttr(c.bareToken(code))
		default:
			n.SetAttr("value", c.attrToken(fmt.Sprintf("{{esc (path . %s)}}", pathQ)))
		}
	case "textarea":
		clearChildren(n)
		n.AppendChild(c.codeComment(fmt.Sprintf("{{esc (path . %s)}}", pathQ)))
	case "select":
		for _, opt := range collectOptions(n) {
			val, ok := optionValue(opt)
			if !ok {
				continue
			}
			code := fmt.Sprintf("{{if (fieldSel . %s %s)}} selected{{end}}",
				pathQ, strconv.Quote(val))
			opt.AppendBareAttr(c.bareToken(code))
		}
	}
	return nil
}

// collectOptions gathers option descendants, looking through optgroups.
func collectOptions(n *dom.Node) []*dom.Node {
	var opts []*dom.Node
	for _, k := range n.Children {
		if k.Type != dom.ElementNode {
			continue
		}
		if strings.EqualFold(k.Tag, "option") {
			opts = append(opts, k)
			continue
		}
		opts = append(opts, collectOptions(k)...)
	}
	return opts
}

// optionValue is what the option submits: its value attribute, or its text
// content when there is none. An option made dynamic by an earlier pass
// (its value or content is already a marker) has no compile-time value to
// compare against, so the selected conditional is skipped for it.
func optionValue(opt *dom.Node) (string, bool) {
	if v, ok := opt.Attr("value"); ok {
		if dom.ContainsMarker(v) {
			return "", false
		}
		return v, true
	}
	var b strings.Builder
	for _, k := range opt.Children {
		switch k.Type {
		case dom.TextNode:
			b.WriteString(k.Data)
		case dom.CommentNode:
			if dom.ContainsMarker(k.Data) {
				return "", false
			}
		}
	}
	return strings.TrimSpace(html.UnescapeString(b.String())), true
}

// processErrors wraps the element in a has-errors conditional. An empty
// element additionally receives the rendered message list. An empty
// expression covers every field.
func processErrors(c *compile, n *dom.Node, raw string) error {
	field := strings.TrimSpace(raw)
	fieldQ := strconv.Quote(field)

	n.InsertBefore(c.codeComment(fmt.Sprintf("{{if (hasErrors . %s)}}", fieldQ)))
	n.InsertAfter(c.codeComment("{{end}}"))
	if len(n.Children) == 0 {
		n.AppendChild(c.codeComment(fmt.Sprintf("{{errorList . %s}}", fieldQ)))
	}
	return nil
}

// processCsrf injects the hidden token field as the form's first child.
// The directive value is ignored; presence is the instruction.
func processCsrf(c *compile, n *dom.Node, _ string) error {
	n.PrependChild(c.codeComment("{{csrfField .}}"))
	return nil
}

// processMethod rewrites a form's submit verb. Literal put/patch/delete
// become method="POST" plus a hidden override input; get and post are set
// directly. An interpolated value defers the decision to render time.
func processMethod(c *compile, n *dom.Node, raw string) error {
	if !strings.EqualFold(n.Tag, "form") {
		if c.mode == Strict {
			return c.errf(KindStructural, n, "method", raw, "method only applies to form elements")
		}
		return nil
	}

	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
		code, err := expr.Compile(v[1:len(v)-1], expr.Value)
		if err != nil {
			return c.exprErr(n, "method", raw, err)
		}
		n.SetAttr("method", c.attrToken(fmt.Sprintf("{{methodVerb %s}}", code)))
		n.PrependChild(c.codeComment(fmt.Sprintf("{{methodSpoof %s}}", code)))
		return nil
	}

	switch verb := strings.ToUpper(v); verb {
	case "GET", "POST":
		n.SetAttr("method", verb)
	case "PUT", "PATCH", "DELETE":
		n.SetAttr("method", "POST")
		spoof := dom.NewElement("input",
			dom.Attr{Key: "type", Val: "hidden"},
			dom.Attr{Key: "name", Val: "_method"},
			dom.Attr{Key: "value", Val: verb},
		)
		// Synthesized after the dispatch walk passed this point; mark it
		// processed so the completeness check accepts it.
		c.states[spoof] = stateDone
		n.PrependChild(spoof)
	default:
		return c.errf(KindSyntax, n, "method", raw, "unknown method %q", v)
	}
	return nil
}
