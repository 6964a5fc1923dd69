// Package xml provides an order-preserving XML tree used to manipulate the parts of an OOXML
// package.
//
// A *Node is a handle onto a tree position. Handles returned by navigation and construction are
// permanent: they stay usable for as long as the caller keeps them. Handles passed to a Visit
// callback are leased; once the callback returns, every use of such a handle (and of any handle
// derived from it through navigation) panics with a *docerr.Error whose kind is
// docerr.KindUseAfterInvalidation. Call ShallowCopy inside the callback to keep a node.
package xml

import (
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
)

// Kind identifies the type of a node.
type Kind int

const (
	DocumentNode Kind = iota
	ElementNode
	TextNode
	CommentNode
	// ProcInstNode is a processing instruction such as <?mso-application progid="Word.Document"?>.
	// Name holds the target and Text the instruction.
	ProcInstNode
	// DirectiveNode is a <!...> directive; Text holds everything between the brackets.
	DirectiveNode
)

func (k Kind) String() string {
	switch k {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	case ProcInstNode:
		return "processing instruction"
	case DirectiveNode:
		return "directive"
	default:
		return "unknown"
	}
}

// Attr is a single attribute. Name keeps its namespace prefix, e.g. "w:val".
type Attr struct {
	Name  string
	Value string
}

type element struct {
	kind     Kind
	name     string
	attrs    []Attr
	children []*element
	parent   *element
	value    string
}

func (el *element) isLeaf() bool {
	switch el.kind {
	case TextNode, CommentNode, ProcInstNode, DirectiveNode:
		return true
	}
	return false
}

type lease struct {
	valid bool
}

// Node is a handle onto an element, text, comment or document node.
type Node struct {
	el    *element
	lease *lease
}

func wrap(el *element, l *lease) *Node {
	if el == nil {
		return nil
	}
	return &Node{el: el, lease: l}
}

func (n *Node) check(op string) {
	if n.lease != nil && !n.lease.valid {
		panic(docerr.New(docerr.KindUseAfterInvalidation, docerr.CodeUseAfterInvalidation,
			op, n.el.name, "node handle used after its traversal callback returned"))
	}
}

// NewDocument creates an empty document node. Serialized documents carry an XML declaration.
func NewDocument() *Node {
	return wrap(&element{kind: DocumentNode}, nil)
}

// NewElement creates a detached element.
func NewElement(name string) *Node {
	return wrap(&element{kind: ElementNode, name: name}, nil)
}

// NewText creates a detached text node.
func NewText(value string) *Node {
	return wrap(&element{kind: TextNode, value: value}, nil)
}

// NewComment creates a detached comment node.
func NewComment(value string) *Node {
	return wrap(&element{kind: CommentNode, value: value}, nil)
}

// NewProcInst creates a detached processing instruction.
func NewProcInst(target, inst string) *Node {
	return wrap(&element{kind: ProcInstNode, name: target, value: inst}, nil)
}

// NewDirective creates a detached directive.
func NewDirective(value string) *Node {
	return wrap(&element{kind: DirectiveNode, value: value}, nil)
}

// Build creates an element with attributes given as name/value pairs and the given children.
func Build(name string, attrs []Attr, children ...*Node) *Node {
	n := NewElement(name)
	for _, a := range attrs {
		n.SetAttr(a.Name, a.Value)
	}
	return n.Append(children...)
}

func (n *Node) Kind() Kind {
	n.check("Kind")
	return n.el.kind
}

// IsElement reports whether n is an element, optionally with one of the given names.
func (n *Node) IsElement(names ...string) bool {
	if n == nil {
		return false
	}
	n.check("IsElement")
	if n.el.kind != ElementNode {
		return false
	}
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if n.el.name == name {
			return true
		}
	}
	return false
}

// Name returns the qualified tag name of an element or the target of a processing instruction,
// and "" for other kinds.
func (n *Node) Name() string {
	if n == nil {
		return ""
	}
	n.check("Name")
	return n.el.name
}

func (n *Node) SetName(name string) *Node {
	n.check("SetName")
	n.el.name = name
	return n
}

// Attrs returns a copy of the attributes in document order.
func (n *Node) Attrs() []Attr {
	n.check("Attrs")
	out := make([]Attr, len(n.el.attrs))
	copy(out, n.el.attrs)
	return out
}

// Attr returns the value of the named attribute or "".
func (n *Node) Attr(name string) string {
	v, _ := n.LookupAttr(name)
	return v
}

func (n *Node) LookupAttr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	n.check("Attr")
	for _, a := range n.el.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, keeping its position if it already exists.
func (n *Node) SetAttr(name, value string) *Node {
	n.check("SetAttr")
	for i := range n.el.attrs {
		if n.el.attrs[i].Name == name {
			n.el.attrs[i].Value = value
			return n
		}
	}
	n.el.attrs = append(n.el.attrs, Attr{Name: name, Value: value})
	return n
}

func (n *Node) RemoveAttr(name string) *Node {
	n.check("RemoveAttr")
	for i := range n.el.attrs {
		if n.el.attrs[i].Name == name {
			n.el.attrs = append(n.el.attrs[:i], n.el.attrs[i+1:]...)
			break
		}
	}
	return n
}

// Text returns the value of a text, comment, processing instruction or directive node. For elements it returns the concatenation
// of the direct text children.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	n.check("Text")
	if n.el.isLeaf() {
		return n.el.value
	}
	var b strings.Builder
	for _, c := range n.el.children {
		if c.kind == TextNode {
			b.WriteString(c.value)
		}
	}
	return b.String()
}

// SetText sets the value of a leaf node. On an element it replaces all children with
// a single text node.
func (n *Node) SetText(value string) *Node {
	n.check("SetText")
	if n.el.isLeaf() {
		n.el.value = value
		return n
	}
	for _, c := range n.el.children {
		c.parent = nil
	}
	n.el.children = nil
	n.el.appendChild(&element{kind: TextNode, value: value})
	return n
}

// TextContent returns the concatenated text of all descendant text nodes.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	n.check("TextContent")
	var b strings.Builder
	var walk func(*element)
	walk = func(el *element) {
		if el.kind == TextNode {
			b.WriteString(el.value)
			return
		}
		for _, c := range el.children {
			walk(c)
		}
	}
	walk(n.el)
	return b.String()
}

// Same reports whether two handles point at the same node.
func (n *Node) Same(other *Node) bool {
	if n == nil || other == nil {
		return n == nil && other == nil
	}
	return n.el == other.el
}

// ShallowCopy returns a permanent handle sharing the receiver's node. Mutations through either
// handle are visible through both.
func (n *Node) ShallowCopy() *Node {
	if n == nil {
		return nil
	}
	n.check("ShallowCopy")
	return wrap(n.el, nil)
}

// DeepCopy returns a detached, fully independent clone of the subtree.
func (n *Node) DeepCopy() *Node {
	if n == nil {
		return nil
	}
	n.check("DeepCopy")
	return wrap(n.el.clone(), nil)
}

func (el *element) clone() *element {
	c := &element{kind: el.kind, name: el.name, value: el.value}
	if len(el.attrs) > 0 {
		c.attrs = make([]Attr, len(el.attrs))
		copy(c.attrs, el.attrs)
	}
	if len(el.children) > 0 {
		c.children = make([]*element, len(el.children))
		for i, child := range el.children {
			cc := child.clone()
			cc.parent = c
			c.children[i] = cc
		}
	}
	return c
}

// Equal reports whether two subtrees have the same structure, names, attributes and text.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == nil && other == nil
	}
	n.check("Equal")
	other.check("Equal")
	return n.el.equal(other.el)
}

func (el *element) equal(o *element) bool {
	if el.kind != o.kind || el.name != o.name || el.value != o.value {
		return false
	}
	if len(el.attrs) != len(o.attrs) || len(el.children) != len(o.children) {
		return false
	}
	for i := range el.attrs {
		if el.attrs[i] != o.attrs[i] {
			return false
		}
	}
	for i := range el.children {
		if !el.children[i].equal(o.children[i]) {
			return false
		}
	}
	return true
}
