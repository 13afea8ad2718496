package dom

import "strings"

// codeAttrPrefix marks bare attributes that are really injected code
// tokens; they serialize without a leading space so the payload controls
// its own spacing.
const codeAttrPrefix = "gv:code:"

// Serialize renders the tree back to template source. Nodes that were
// never mutated emit their original bytes, so directive-free markup
// round-trips byte for byte. Mutated elements emit a normalized form:
// attributes in order, double quotes, boolean attributes bare. Static
// text is escaped so the only live template actions in the output are the
// ones markers expand to.
func Serialize(n *Node) string {
	var b strings.Builder
	serialize(&b, n)
	return b.String()
}

func serialize(b *strings.Builder, n *Node) {
	switch n.Type {
	case TextNode:
		if n.rawAll != "" {
			b.WriteString(EscapeActions(n.rawAll))
			return
		}
		b.WriteString(EscapeActions(n.Data))

	case CommentNode:
		if n.rawAll != "" {
			b.WriteString(EscapeActions(n.rawAll))
			return
		}
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->")

	case ElementNode:
		if n.Tag == RootTag {
			for _, c := range n.Children {
				serialize(b, c)
			}
			return
		}
		if n.rawOpen != "" {
			b.WriteString(EscapeActions(n.rawOpen))
		} else {
			writeOpenTag(b, n)
		}
		for _, c := range n.Children {
			serialize(b, c)
		}
		if n.rawOpen != "" {
			b.WriteString(EscapeActions(n.rawClose))
			return
		}
		if n.SelfClosing || IsVoid(n.Tag) {
			return
		}
		b.WriteString("</")
		b.WriteString(n.Tag)
		b.WriteString(">")
	}
}

func writeOpenTag(b *strings.Builder, n *Node) {
	b.WriteString("<")
	b.WriteString(n.Tag)
	for _, a := range n.Attrs {
		if a.Bare && strings.HasPrefix(a.Key, codeAttrPrefix) {
			b.WriteString(a.Key)
			continue
		}
		b.WriteString(" ")
		b.WriteString(a.Key)
		if a.Bare || (a.Val == "" && booleanAttrs[a.Key]) {
			continue
		}
		b.WriteString(`="`)
		b.WriteString(EscapeActions(EscapeAttr(a.Val)))
		b.WriteString(`"`)
	}
	if n.SelfClosing && !IsVoid(n.Tag) && len(n.Children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
}

// EscapeActions neutralizes template action delimiters in static text so
// authored braces render literally. Marker payloads are spliced in after
// serialization and are therefore untouched.
func EscapeActions(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return strings.ReplaceAll(s, "{{", `{{"{{"}}`)
}

// EscapeAttr applies minimal attribute-value escaping for normalized
// serialization. Marker tokens contain none of these characters.
func EscapeAttr(s string) string {
	if !strings.ContainsAny(s, `&"<`) {
		return s
	}
	r := strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;")
	return r.Replace(s)
}
