// Package compiler turns directive-annotated markup into executable
// text/template source. Directives are plain element attributes (if,
// repeat, section, include, field, ...) plus {expression} interpolation;
// the compiler parses the document, dispatches directive processors over
// the tree, serializes it back, and expands the generated code markers
// into the final template text.
//
// Compiled output keeps static markup verbatim, so a template without
// directives round-trips byte for byte. Dynamic regions are ordinary
// template actions over the runtime package's func map and render context.
package compiler

import (
	"fmt"
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
)

// Compile translates template source into text/template source. The name
// appears in diagnostics. The result executes against runtime.Funcs with a
// runtime.Ctx as dot; section and fragment bodies come along as define
// blocks after the main body.
func Compile(src, name string, opts Options) (string, error) {
	root, err := dom.Parse(src)
	if err != nil {
		return "", &Error{Kind: KindSyntax, Template: name, Message: "malformed document", Cause: err}
	}

	c := newCompile(name, opts)
	if err := c.dispatch(root); err != nil {
		return "", err
	}
	if err := c.assertDone(root); err != nil {
		return "", err
	}
	for _, d := range c.defines {
		if err := c.assertDone(d.root); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	b.WriteString(dom.Serialize(root))
	for _, d := range c.defines {
		fmt.Fprintf(&b, "{{define %q}}", d.name)
		b.WriteString(dom.Serialize(d.root))
		b.WriteString("{{end}}")
	}

	out, err := c.markers.Expand(b.String())
	if err != nil {
		return "", &Error{Kind: KindStructural, Template: name, Message: "marker expansion failed", Cause: err}
	}
	return out, nil
}
