package compiler

import (
	"strings"

	"github.com/dangdungcntt/go-grove/internal/dom"
)

// nodeState tracks each element through the dispatch phases. Serialization
// requires every element to have reached stateDone.
type nodeState int

const (
	stateUnvisited nodeState = iota
	stateStructuralApplied
	stateChildrenProcessed
	stateLeafApplied
	stateDone
)

type processorFunc func(c *compile, n *dom.Node, expression string) error

// directiveSpec is one row of a dispatch table. Order of application is the
// declared priority, highest first, never map iteration order.
type directiveSpec struct {
	name     string
	priority int
	apply    processorFunc
}

// structuralTable holds the directives that change the structure around an
// element and therefore run before its children are visited. At most one of
// switch/repeat/if-unless may appear on an element; if and unless together
// combine into a single conjunction. extend swallows the whole element and
// is handled ahead of the table.
var structuralTable = []directiveSpec{
	{"extend", 100, processExtend},
	{"switch", 90, processSwitch},
	{"repeat", 80, processRepeat},
	{"if", 70, nil},     // paired with unless in applyStructural
	{"unless", 60, nil}, // paired with if in applyStructural
}

// leafTable holds the directives applied on the way back up, after the
// element's children are processed. The ":" row is the :name attribute
// binding family and the empty name row is the attribute interpolation
// pass; both scan the whole attribute list. section and fragment extract
// the element out of the tree and therefore run last.
var leafTable = []directiveSpec{
	{"replace", 100, processReplace},
	{"include", 95, processInclude},
	{"yield", 93, processYield},
	{"text", 90, processText},
	{"field", 85, processField},
	{"errors", 80, processErrors},
	{"method", 75, processMethod},
	{"csrf", 70, processCsrf},
	{"with", 65, processWith},
	{"attr", 60, processAttr},
	{":", 55, nil}, // :name bindings, overwriting attr's values
	{"", 50, nil},  // attribute interpolation
	{"section", 20, processSection},
	{"fragment", 15, processFragment},
}

// Directives returns the directive vocabulary in application order:
// structural names first, then leaf names.
func Directives() []string {
	var names []string
	for _, s := range structuralTable {
		names = append(names, s.name)
	}
	names = append(names, "case", "default")
	for _, s := range leafTable {
		if s.name == "" || s.name == ":" {
			continue
		}
		names = append(names, s.name)
	}
	return names
}

// rawTextTags never receive text interpolation; their content is script or
// stylesheet source where braces are ordinary syntax.
var rawTextTags = map[string]bool{"script": true, "style": true}

// replacesContent reports whether a leaf directive on n discards the
// authored children. replace swaps out the whole element; include, yield,
// text, and field-on-textarea overwrite its content.
func replacesContent(n *dom.Node) bool {
	if n.HasAttr("replace") || n.HasAttr("include") || n.HasAttr("yield") || n.HasAttr("text") {
		return true
	}
	return n.HasAttr("field") && strings.EqualFold(n.Tag, "textarea")
}

// dispatch drives one element through the state machine: structural phase,
// children in document order, then leaf phase.
func (c *compile) dispatch(n *dom.Node) error {
	c.states[n] = stateUnvisited

	if err := c.applyStructural(n); err != nil {
		return err
	}
	if n.Tag != dom.RootTag && !n.Attached() {
		// extend hoisted the element away, or permissive mode dropped it;
		// either way it is out of the document and out of scope.
		c.states[n] = stateDone
		return nil
	}
	c.states[n] = stateStructuralApplied

	// Snapshot after the structural phase: switch and repeat rearrange the
	// child list, and leaf processors below may detach the child itself.
	// Children a leaf directive is about to discard are left untouched;
	// nothing in them can render, so nothing in them may allocate markers.
	if !replacesContent(n) {
		kids := append([]*dom.Node(nil), n.Children...)
		for _, k := range kids {
			switch k.Type {
			case dom.ElementNode:
				if err := c.dispatch(k); err != nil {
					return err
				}
			case dom.TextNode:
				if !rawTextTags[strings.ToLower(n.Tag)] {
					if err := c.interpolateText(k); err != nil {
						return err
					}
				}
			}
		}
	}
	c.states[n] = stateChildrenProcessed

	if err := c.applyLeaf(n); err != nil {
		return err
	}
	c.states[n] = stateDone
	return nil
}

func (c *compile) applyStructural(n *dom.Node) error {
	if n.Tag == dom.RootTag {
		return nil
	}

	if raw, ok := n.Attr("extend"); ok {
		n.RemoveAttr("extend")
		return processExtend(c, n, raw)
	}

	switchRaw, hasSwitch := n.Attr("switch")
	repeatRaw, hasRepeat := n.Attr("repeat")
	ifRaw, hasIf := n.Attr("if")
	unlessRaw, hasUnless := n.Attr("unless")

	slots := 0
	var names []string
	if hasSwitch {
		slots++
		names = append(names, "switch")
	}
	if hasRepeat {
		slots++
		names = append(names, "repeat")
	}
	if hasIf || hasUnless {
		slots++
		if hasIf {
			names = append(names, "if")
		}
		if hasUnless {
			names = append(names, "unless")
		}
	}
	if slots == 0 {
		return nil
	}
	if slots > 1 {
		if c.mode == Strict {
			return c.errf(KindStructural, n, strings.Join(names, "+"), "",
				"conflicting structural directives on one element")
		}
		// Permissive: the highest-priority directive wins, the rest are
		// stripped so they cannot leak into output.
		switch {
		case hasSwitch:
			hasRepeat, hasIf, hasUnless = false, false, false
			n.RemoveAttr("repeat")
			n.RemoveAttr("if")
			n.RemoveAttr("unless")
		case hasRepeat:
			hasIf, hasUnless = false, false
			n.RemoveAttr("if")
			n.RemoveAttr("unless")
		}
	}

	switch {
	case hasSwitch:
		n.RemoveAttr("switch")
		return processSwitch(c, n, switchRaw)
	case hasRepeat:
		n.RemoveAttr("repeat")
		return processRepeat(c, n, repeatRaw)
	default:
		n.RemoveAttr("if")
		n.RemoveAttr("unless")
		return processCondition(c, n, ifRaw, hasIf, unlessRaw, hasUnless)
	}
}

func (c *compile) applyLeaf(n *dom.Node) error {
	if n.Tag == dom.RootTag {
		return nil
	}

	if n.HasAttr("section") && n.HasAttr("fragment") {
		return c.errf(KindSyntax, n, "section+fragment", "",
			"an element cannot be both a section and a fragment definition")
	}

	// Two directives competing to fill the same element's content cannot
	// both apply. Strict reports it; permissive keeps the higher-priority
	// one. replace is exempt: it removes the element, so anything else on
	// it is moot.
	var fillers []string
	for _, name := range []string{"include", "yield", "text"} {
		if n.HasAttr(name) {
			fillers = append(fillers, name)
		}
	}
	if n.HasAttr("field") && strings.EqualFold(n.Tag, "textarea") {
		fillers = append(fillers, "field")
	}
	if len(fillers) > 1 {
		if c.mode == Strict {
			return c.errf(KindStructural, n, strings.Join(fillers, "+"), "",
				"conflicting content directives on one element")
		}
		for _, name := range fillers[1:] {
			n.RemoveAttr(name)
		}
	}

	for _, spec := range leafTable {
		switch spec.name {
		case ":":
			if err := c.bindAttrs(n); err != nil {
				return err
			}
			continue
		case "":
			if err := c.interpolateAttrs(n); err != nil {
				return err
			}
			continue
		}
		raw, ok := n.Attr(spec.name)
		if !ok {
			continue
		}
		n.RemoveAttr(spec.name)
		if err := spec.apply(c, n, raw); err != nil {
			return err
		}
		if !n.Attached() {
			// replace, section, and fragment take the element out of the
			// sibling flow; nothing further applies to it here.
			break
		}
	}
	c.states[n] = stateLeafApplied
	return nil
}

// assertDone walks the tree verifying every element completed the state
// machine. A miss is a dispatcher bug, not a user error.
func (c *compile) assertDone(n *dom.Node) error {
	if n.Type == dom.ElementNode && n.Tag != dom.RootTag {
		if c.states[n] != stateDone {
			return c.errf(KindStructural, n, "", "",
				"internal: element <%s> not fully processed (state %d)", n.Tag, c.states[n])
		}
	}
	for _, k := range n.Children {
		if err := c.assertDone(k); err != nil {
			return err
		}
	}
	return nil
}
