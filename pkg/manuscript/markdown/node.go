// Package markdown turns a manuscript (YAML front matter followed by Markdown) into a small,
// JSON-serializable document tree that the rest of the pipeline numbers and renders.
package markdown

import (
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/meta"
)

// NodeType names the kind of a tree node.
type NodeType string

const (
	TypeRoot          NodeType = "root"
	TypeParagraph     NodeType = "paragraph"
	TypeHeading       NodeType = "heading"
	TypeText          NodeType = "text"
	TypeEmphasis      NodeType = "emphasis"
	TypeStrong        NodeType = "strong"
	TypeDelete        NodeType = "delete"
	TypeInlineCode    NodeType = "inlineCode"
	TypeCode          NodeType = "code"
	TypeLink          NodeType = "link"
	TypeImage         NodeType = "image"
	TypeList          NodeType = "list"
	TypeListItem      NodeType = "listItem"
	TypeBlockquote    NodeType = "blockquote"
	TypeTable         NodeType = "table"
	TypeTableRow      NodeType = "tableRow"
	TypeTableCell     NodeType = "tableCell"
	TypeThematicBreak NodeType = "thematicBreak"
	TypeBreak         NodeType = "break"
	TypeHTML          NodeType = "html"
	TypeCaption       NodeType = "caption"

	// TypeCite is a citation marker; Value holds the bibliography key.
	TypeCite NodeType = "cite"
	// TypeRef is a cross-reference marker; Value holds the label.
	TypeRef NodeType = "ref"
)

// Caption classes recognised on <div> blocks.
const (
	ImageCaption   = "img-caption"
	TableCaption   = "table-caption"
	ListingCaption = "listing-caption"
)

// Node is one element of the document tree.
type Node struct {
	Type     NodeType          `json:"type"`
	Value    string            `json:"value,omitempty"`
	Depth    int               `json:"depth,omitempty"`
	Ordered  bool              `json:"ordered,omitempty"`
	Start    int               `json:"start,omitempty"`
	Header   bool              `json:"header,omitempty"`
	Lang     string            `json:"lang,omitempty"`
	URL      string            `json:"url,omitempty"`
	Title    string            `json:"title,omitempty"`
	Alt      string            `json:"alt,omitempty"`
	ID       string            `json:"id,omitempty"`
	Class    string            `json:"class,omitempty"`
	Align    []string          `json:"align,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// Document is a parsed manuscript.
type Document struct {
	Meta meta.Section `json:"meta"`
	Body *Node        `json:"body"`
}

// Text returns a text node.
func Text(value string) *Node {
	return &Node{Type: TypeText, Value: value}
}

// Walk visits n and its descendants in pre-order. Returning false from fn skips the children of
// the node it was called with.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// TextContent concatenates the text of n and its descendants.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.Walk(func(c *Node) bool {
		switch c.Type {
		case TypeText, TypeInlineCode, TypeCode:
			b.WriteString(c.Value)
		case TypeBreak:
			b.WriteByte('\n')
		}
		return true
	})
	return b.String()
}

// Prepend inserts children before the existing ones.
func (n *Node) Prepend(children ...*Node) {
	n.Children = append(append([]*Node(nil), children...), n.Children...)
}
