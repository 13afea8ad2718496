package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// RootTag names the synthetic container element holding a parsed
// document's top-level nodes. It never serializes itself.
const RootTag = "#root"

// autoSiblings are tags where a repeated start tag closes the previous
// sibling instead of nesting, mirroring how authors write lists and
// tables without explicit end tags.
var autoSiblings = map[string]bool{
	"dd": true, "dt": true, "li": true, "option": true,
	"p": true, "td": true, "th": true, "tr": true,
}

// Parse reads template source into a document tree. The tokenizer does
// the lexing; tree construction here is deliberately simpler than a full
// HTML5 parser so the tree mirrors what the author wrote: no synthetic
// html/head/body, no content reparenting. Unmatched end tags are kept as
// raw text so static markup survives byte for byte.
func Parse(src string) (*Node, error) {
	root := &Node{Type: ElementNode, Tag: RootTag}
	stack := []*Node{root}
	z := html.NewTokenizer(strings.NewReader(src))
	line := 1

	for {
		tt := z.Next()
		raw := string(z.Raw())
		startLine := line
		line += strings.Count(raw, "\n")
		top := stack[len(stack)-1]

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("line %d: %w", startLine, err)
			}
			return root, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tt == html.StartTagToken && autoSiblings[tok.Data] && top.Tag == tok.Data {
				stack = stack[:len(stack)-1]
				top = stack[len(stack)-1]
			}
			el := &Node{
				Type:        ElementNode,
				Tag:         tok.Data,
				SelfClosing: tt == html.SelfClosingTagToken,
				Line:        startLine,
				rawOpen:     raw,
			}
			for _, a := range tok.Attr {
				// First occurrence of a duplicated attribute wins.
				if el.HasAttr(a.Key) {
					continue
				}
				el.Attrs = append(el.Attrs, Attr{Key: a.Key, Val: a.Val})
			}
			top.AppendChild(el)
			if tt == html.StartTagToken && !IsVoid(tok.Data) {
				stack = append(stack, el)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(bytes.ToLower(name))
			idx := -1
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Tag == tag {
					idx = i
					break
				}
			}
			if idx < 0 {
				// Stray end tag: keep it as literal text.
				top.AppendChild(&Node{Type: TextNode, Data: raw, Line: startLine, rawAll: raw})
				continue
			}
			stack[idx].rawClose = raw
			stack = stack[:idx]

		case html.TextToken:
			top.AppendChild(&Node{Type: TextNode, Data: raw, Line: startLine, rawAll: raw})

		case html.CommentToken:
			body := strings.TrimSuffix(strings.TrimPrefix(raw, "<!--"), "-->")
			top.AppendChild(&Node{Type: CommentNode, Data: body, Line: startLine, rawAll: raw})

		case html.DoctypeToken:
			top.AppendChild(&Node{Type: TextNode, Data: raw, Line: startLine, rawAll: raw})
		}
	}
}
