package dom

import "strings"

// NodeType discriminates the three node kinds a document tree can hold.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
	CommentNode
)

// Attr is a single element attribute. Order is significant and preserved.
// Bare attributes serialize as just their key (no ="..."); the serializer
// also uses the bare form for injected code tokens, which carry their own
// spacing in the expanded payload.
type Attr struct {
	Key  string
	Val  string
	Bare bool
}

// Node is one node of a parsed template document. Elements own their
// children exclusively; Parent is a non-owning back reference. Text and
// comment nodes keep the raw source bytes so untouched markup serializes
// back byte for byte.
type Node struct {
	Type NodeType

	// Element fields.
	Tag         string
	Attrs       []Attr
	SelfClosing bool

	// Text content (undecoded source bytes) or comment body.
	Data string

	Parent   *Node
	Children []*Node

	// Line is the 1-based source line the node started on.
	Line int

	// rawOpen/rawClose hold the original tag bytes. They are dropped when
	// the element is mutated, switching serialization to the normalized
	// form.
	rawOpen  string
	rawClose string
	// rawAll holds the full original token for text, comment and doctype
	// nodes.
	rawAll string
}

// NewElement returns a detached element node.
func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{Type: ElementNode, Tag: tag, Attrs: attrs}
}

// NewText returns a detached text node carrying raw template source text.
func NewText(data string) *Node {
	return &Node{Type: TextNode, Data: data}
}

// NewComment returns a detached comment node. Data is the comment body
// without the <!-- --> delimiters.
func NewComment(data string) *Node {
	return &Node{Type: CommentNode, Data: data}
}

// Attr returns the value of the named attribute and whether it is present.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(key string) bool {
	_, ok := n.Attr(key)
	return ok
}

// SetAttr sets or overwrites an attribute, keeping the position of an
// existing key and appending new keys at the end.
func (n *Node) SetAttr(key, val string) {
	n.touch()
	for i, a := range n.Attrs {
		if a.Key == key {
			n.Attrs[i].Val = val
			n.Attrs[i].Bare = false
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Val: val})
}

// AppendBareAttr appends a bare attribute token at the end of the
// attribute list.
func (n *Node) AppendBareAttr(key string) {
	n.touch()
	n.Attrs = append(n.Attrs, Attr{Key: key, Bare: true})
}

// RenameAttr changes the key of an existing attribute in place, keeping
// its position and value.
func (n *Node) RenameAttr(key, newKey string) {
	for i, a := range n.Attrs {
		if a.Key == key {
			n.touch()
			n.Attrs[i].Key = newKey
			return
		}
	}
}

// RemoveAttr deletes the named attribute if present.
func (n *Node) RemoveAttr(key string) {
	for i, a := range n.Attrs {
		if a.Key == key {
			n.touch()
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// touch drops the raw tag bytes, switching the element to normalized
// serialization after a mutation.
func (n *Node) touch() {
	n.rawOpen = ""
	n.rawClose = ""
	n.rawAll = ""
}

// AppendChild adds c as the last child of n.
func (n *Node) AppendChild(c *Node) {
	c.Detach()
	c.Parent = n
	n.Children = append(n.Children, c)
}

// PrependChild adds c as the first child of n.
func (n *Node) PrependChild(c *Node) {
	c.Detach()
	c.Parent = n
	n.Children = append([]*Node{c}, n.Children...)
}

// InsertBefore inserts c as a sibling immediately before n.
func (n *Node) InsertBefore(c *Node) {
	p := n.Parent
	if p == nil {
		return
	}
	c.Detach()
	idx := p.childIndex(n)
	c.Parent = p
	p.Children = append(p.Children, nil)
	copy(p.Children[idx+1:], p.Children[idx:])
	p.Children[idx] = c
}

// InsertAfter inserts c as a sibling immediately after n.
func (n *Node) InsertAfter(c *Node) {
	p := n.Parent
	if p == nil {
		return
	}
	c.Detach()
	idx := p.childIndex(n) + 1
	c.Parent = p
	p.Children = append(p.Children, nil)
	copy(p.Children[idx+1:], p.Children[idx:])
	p.Children[idx] = c
}

// ReplaceWith swaps n for c in n's parent. n is left detached.
func (n *Node) ReplaceWith(c *Node) {
	p := n.Parent
	if p == nil {
		return
	}
	idx := p.childIndex(n)
	c.Detach()
	c.Parent = p
	p.Children[idx] = c
	n.Parent = nil
}

// Unwrap replaces n with its own children, hoisting them into n's parent
// at n's position. n is left detached and childless.
func (n *Node) Unwrap() {
	p := n.Parent
	if p == nil {
		return
	}
	idx := p.childIndex(n)
	kids := n.Children
	n.Children = nil
	for _, k := range kids {
		k.Parent = p
	}
	rest := make([]*Node, 0, len(p.Children)-1+len(kids))
	rest = append(rest, p.Children[:idx]...)
	rest = append(rest, kids...)
	rest = append(rest, p.Children[idx+1:]...)
	p.Children = rest
	n.Parent = nil
}

// Detach removes n from its parent, if any.
func (n *Node) Detach() {
	p := n.Parent
	if p == nil {
		return
	}
	idx := p.childIndex(n)
	if idx >= 0 {
		p.Children = append(p.Children[:idx], p.Children[idx+1:]...)
	}
	n.Parent = nil
}

// Attached reports whether n still hangs off a parent node.
func (n *Node) Attached() bool {
	return n.Parent != nil
}

func (n *Node) childIndex(c *Node) int {
	for i, k := range n.Children {
		if k == c {
			return i
		}
	}
	return -1
}

// voidElements render without a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// booleanAttrs serialize bare when their value is empty.
var booleanAttrs = map[string]bool{
	"autofocus": true, "checked": true, "disabled": true, "multiple": true,
	"readonly": true, "required": true, "selected": true,
}

// IsVoid reports whether tag is an HTML void element.
func IsVoid(tag string) bool {
	return voidElements[strings.ToLower(tag)]
}
