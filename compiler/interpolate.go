package compiler

import (
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
	"github.com/dangdungcntt/go-grove/internal/expr"
)

// Inline interpolation: {expression} in text and attribute values, compiled
// in text mode. \{ renders a literal brace. An unmatched { is plain text.
// In permissive mode a span that does not parse stays literal too; strict
// mode reports it.

type interpSpan struct {
	text   string
	isExpr bool
}

// scanInterp splits s into static and expression spans. A span's closing
// brace is sought outside quotes, so string literals may contain }. The
// second result reports whether any \{ escape was consumed.
func scanInterp(s string) ([]interpSpan, bool) {
	var spans []interpSpan
	var static strings.Builder
	escaped := false
	flush := func() {
		if static.Len() > 0 {
			spans = append(spans, interpSpan{text: static.String()})
			static.Reset()
		}
	}

	for i := 0; i < len(s); {
		ch := s[i]
		if ch == '\\' && i+1 < len(s) && s[i+1] == '{' {
			static.WriteByte('{')
			escaped = true
			i += 2
			continue
		}
		if ch == '{' {
			if end := findSpanEnd(s, i+1); end >= 0 {
				flush()
				spans = append(spans, interpSpan{text: s[i+1 : end], isExpr: true})
				i = end + 1
				continue
			}
		}
		static.WriteByte(ch)
		i++
	}
	flush()
	return spans, escaped
}

// findSpanEnd returns the index of the closing brace, or -1 when the span
// never closes or another opening brace interrupts it.
func findSpanEnd(s string, from int) int {
	var quote byte
	for j := from; j < len(s); j++ {
		ch := s[j]
		if quote != 0 {
			if ch == '\\' {
				j++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '}':
			return j
		case '{':
			return -1
		}
	}
	return -1
}

// interpolateText rewrites a text node containing expression spans into a
// sequence of static text nodes and code markers. Untouched text keeps its
// raw bytes.
func (c *compile) interpolateText(n *dom.Node) error {
	if !strings.ContainsAny(n.Data, "{\\") {
		return nil
	}
	spans, escaped := scanInterp(n.Data)

	var nodes []*dom.Node
	var pending strings.Builder
	compiled := false
	flush := func() {
		if pending.Len() > 0 {
			nodes = append(nodes, dom.NewText(pending.String()))
			pending.Reset()
		}
	}

	for _, sp := range spans {
		if !sp.isExpr {
			pending.WriteString(sp.text)
			continue
		}
		code, err := expr.Compile(sp.text, expr.Text)
		if err != nil {
			if c.mode == Strict {
				return c.exprErr(n, "interpolation", sp.text, err)
			}
			pending.WriteString("{" + sp.text + "}")
			continue
		}
		compiled = true
		// A static brace right before the action would fuse with it into a
		// broken delimiter; emit it as its own literal action instead.
		if t := pending.String(); strings.HasSuffix(t, "{") {
			pending.Reset()
			pending.WriteString(t[:len(t)-1])
			flush()
			nodes = append(nodes, c.codeComment(`{{"{"}}`))
		} else {
			flush()
		}
		nodes = append(nodes, c.codeComment("{{"+code+"}}"))
	}
	flush()

	if !compiled && !escaped {
		return nil
	}
	for _, nn := range nodes {
		n.InsertBefore(nn)
	}
	n.Detach()
	return nil
}

// interpolateAttrs rewrites attribute values containing expression spans
// into attr-value markers. Attributes without a brace, bare attributes,
// and already-injected marker values stay untouched.
func (c *compile) interpolateAttrs(n *dom.Node) error {
	attrs := append([]dom.Attr(nil), n.Attrs...)
	for _, a := range attrs {
		if a.Bare || strings.HasPrefix(a.Val, "gv:attr:") || !strings.ContainsAny(a.Val, "{\\") {
			continue
		}
		spans, escaped := scanInterp(a.Val)

		var payload strings.Builder
		var pending strings.Builder
		compiled := false
		flushStatic := func(beforeAction bool) {
			esc := dom.EscapeActions(dom.EscapeAttr(pending.String()))
			pending.Reset()
			if beforeAction && strings.HasSuffix(esc, "{") {
				esc = esc[:len(esc)-1] + `{{"{"}}`
			}
			payload.WriteString(esc)
		}

		for _, sp := range spans {
			if !sp.isExpr {
				pending.WriteString(sp.text)
				continue
			}
			code, err := expr.Compile(sp.text, expr.Text)
			if err != nil {
				if c.mode == Strict {
					return c.exprErr(n, "interpolation", sp.text, err)
				}
				pending.WriteString("{" + sp.text + "}")
				continue
			}
			compiled = true
			flushStatic(true)
			payload.WriteString("{{" + code + "}}")
		}

		switch {
		case compiled:
			flushStatic(false)
			n.SetAttr(a.Key, c.attrToken(payload.String()))
		case escaped:
			// Only \{ escapes: the value is fully static once unescaped.
			var plain strings.Builder
			for _, sp := range spans {
				plain.WriteString(sp.text)
			}
			n.SetAttr(a.Key, plain.String())
		}
	}
	return nil
}
