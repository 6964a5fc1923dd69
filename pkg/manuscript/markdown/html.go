package markdown

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var captionClasses = []string{ImageCaption, TableCaption, ListingCaption}

// startTag tokenizes a single raw tag such as `<span class="cite">`.
func startTag(raw string) (html.Token, bool) {
	z := html.NewTokenizer(strings.NewReader(raw))
	switch z.Next() {
	case html.StartTagToken, html.SelfClosingTagToken:
		return z.Token(), true
	case html.EndTagToken:
		return z.Token(), false
	}
	return html.Token{}, false
}

func attrValue(attrs []html.Attribute, key string) string {
	for _, a := range attrs {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

// markerClass reports whether raw opens a citation or cross-reference span.
func markerClass(raw string) (NodeType, bool) {
	tok, open := startTag(raw)
	if !open || tok.DataAtom != atom.Span {
		return "", false
	}
	class := attrValue(tok.Attr, "class")
	switch {
	case hasClass(class, string(TypeCite)):
		return TypeCite, true
	case hasClass(class, string(TypeRef)):
		return TypeRef, true
	}
	return "", false
}

func isClosingSpan(raw string) bool {
	tok, open := startTag(raw)
	return !open && tok.Type == html.EndTagToken && tok.DataAtom == atom.Span
}

func isLineBreakTag(raw string) bool {
	tok, open := startTag(raw)
	return open && tok.DataAtom == atom.Br
}

// htmlBlock recognises caption <div>s; any other block is kept as raw HTML.
func htmlBlock(raw string) *Node {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), body)
	if err != nil {
		return &Node{Type: TypeHTML, Value: raw}
	}
	for _, n := range nodes {
		if n.Type != html.ElementNode || n.DataAtom != atom.Div {
			continue
		}
		class := attrValue(n.Attr, "class")
		for _, c := range captionClasses {
			if hasClass(class, c) {
				return &Node{Type: TypeCaption, Class: c, Children: trimEdges(mergeText(htmlInlines(n)))}
			}
		}
	}
	return &Node{Type: TypeHTML, Value: raw}
}

// htmlInlines converts the content of an HTML element into inline nodes.
func htmlInlines(parent *html.Node) []*Node {
	var out []*Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			out = append(out, Text(collapseSpace(c.Data)))
		case html.ElementNode:
			out = append(out, htmlElement(c)...)
		}
	}
	return out
}

func htmlElement(n *html.Node) []*Node {
	switch n.DataAtom {
	case atom.Span:
		class := attrValue(n.Attr, "class")
		for _, typ := range []NodeType{TypeCite, TypeRef} {
			if hasClass(class, string(typ)) {
				return []*Node{{Type: typ, Value: strings.TrimSpace(htmlText(n))}}
			}
		}
	case atom.Em, atom.I:
		return []*Node{{Type: TypeEmphasis, Children: mergeText(htmlInlines(n))}}
	case atom.Strong, atom.B:
		return []*Node{{Type: TypeStrong, Children: mergeText(htmlInlines(n))}}
	case atom.Code:
		return []*Node{{Type: TypeInlineCode, Value: htmlText(n)}}
	case atom.Br:
		return []*Node{{Type: TypeBreak}}
	case atom.A:
		return []*Node{{Type: TypeLink, URL: attrValue(n.Attr, "href"), Children: mergeText(htmlInlines(n))}}
	}
	return htmlInlines(n)
}

func htmlText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(htmlText(c))
	}
	return b.String()
}

func collapseSpace(s string) string {
	if s == "" {
		return s
	}
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if isSpace(s[0]) && out != "" {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// trimEdges strips leading space from the first and trailing space from the last text node.
func trimEdges(nodes []*Node) []*Node {
	if len(nodes) == 0 {
		return nodes
	}
	if first := nodes[0]; first.Type == TypeText {
		first.Value = strings.TrimLeft(first.Value, " ")
	}
	if last := nodes[len(nodes)-1]; last.Type == TypeText {
		last.Value = strings.TrimRight(last.Value, " ")
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n.Type == TypeText && n.Value == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}
