package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/meta"
)

// Parser converts manuscripts. The zero value is not usable; call NewParser.
type Parser struct {
	md goldmark.Markdown
}

// NewParser returns a parser for CommonMark with GFM tables and strikethrough.
func NewParser() *Parser {
	return &Parser{
		md: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

// Parse converts a manuscript with the default parser.
func Parse(src []byte) (*Document, error) {
	return NewParser().Parse(src)
}

// Parse splits off the front matter, parses the Markdown body and normalizes the tree: heading
// labels are moved into Node.ID, image attribute blocks into Node.Attrs, and tight list items
// become ordinary paragraphs.
func (p *Parser) Parse(src []byte) (*Document, error) {
	front, body, err := SplitFrontMatter(src)
	if err != nil {
		return nil, err
	}
	m, err := meta.FromYAML(front)
	if err != nil {
		return nil, err
	}

	c := converter{source: body}
	root := c.block(p.md.Parser().Parse(text.NewReader(body)))
	normalize(root)
	return &Document{Meta: m, Body: root}, nil
}

type converter struct {
	source []byte
}

func (c *converter) block(n ast.Node) *Node {
	switch n := n.(type) {
	case *ast.Document:
		return &Node{Type: TypeRoot, Children: c.blocks(n)}
	case *ast.Paragraph, *ast.TextBlock:
		return &Node{Type: TypeParagraph, Children: c.inlines(n)}
	case *ast.Heading:
		return &Node{Type: TypeHeading, Depth: n.Level, Children: c.inlines(n)}
	case *ast.ThematicBreak:
		return &Node{Type: TypeThematicBreak}
	case *ast.CodeBlock:
		return &Node{Type: TypeCode, Value: c.lines(n)}
	case *ast.FencedCodeBlock:
		return &Node{Type: TypeCode, Lang: string(n.Language(c.source)), Value: c.lines(n)}
	case *ast.Blockquote:
		return &Node{Type: TypeBlockquote, Children: c.blocks(n)}
	case *ast.List:
		list := &Node{Type: TypeList, Ordered: n.IsOrdered(), Children: c.blocks(n)}
		if list.Ordered {
			list.Start = n.Start
		}
		return list
	case *ast.ListItem:
		return &Node{Type: TypeListItem, Children: c.blocks(n)}
	case *ast.HTMLBlock:
		raw := string(n.Lines().Value(c.source))
		if n.HasClosure() {
			raw += string(n.ClosureLine.Value(c.source))
		}
		return htmlBlock(raw)
	case *east.Table:
		table := &Node{Type: TypeTable, Children: c.blocks(n)}
		for _, a := range n.Alignments {
			table.Align = append(table.Align, a.String())
		}
		return table
	case *east.TableHeader:
		return &Node{Type: TypeTableRow, Header: true, Children: c.blocks(n)}
	case *east.TableRow:
		return &Node{Type: TypeTableRow, Children: c.blocks(n)}
	case *east.TableCell:
		return &Node{Type: TypeTableCell, Children: c.inlines(n)}
	}
	return nil
}

func (c *converter) blocks(parent ast.Node) []*Node {
	var out []*Node
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		if n := c.block(child); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (c *converter) lines(n ast.Node) string {
	return strings.TrimSuffix(string(n.Lines().Value(c.source)), "\n")
}

// inlines converts the inline children of parent. Raw HTML spans that carry a cite or ref class
// collapse, together with the text up to the closing tag, into a single marker node.
func (c *converter) inlines(parent ast.Node) []*Node {
	var out []*Node
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		raw, ok := child.(*ast.RawHTML)
		if !ok {
			out = append(out, c.inline(child)...)
			continue
		}
		tag := c.rawHTML(raw)
		class, open := markerClass(tag)
		if !open {
			if isLineBreakTag(tag) {
				out = append(out, &Node{Type: TypeBreak})
			} else {
				out = append(out, &Node{Type: TypeHTML, Value: tag})
			}
			continue
		}
		var key strings.Builder
		next := child.NextSibling()
		for ; next != nil; next = next.NextSibling() {
			if r, ok := next.(*ast.RawHTML); ok && isClosingSpan(c.rawHTML(r)) {
				break
			}
			for _, n := range c.inline(next) {
				key.WriteString(n.TextContent())
			}
		}
		out = append(out, &Node{Type: class, Value: strings.TrimSpace(key.String())})
		if next == nil {
			break
		}
		child = next
	}
	return mergeText(out)
}

func (c *converter) inline(n ast.Node) []*Node {
	switch n := n.(type) {
	case *ast.Text:
		value := string(n.Value(c.source))
		if n.SoftLineBreak() {
			value += " "
		}
		out := []*Node{Text(value)}
		if n.HardLineBreak() {
			out = append(out, &Node{Type: TypeBreak})
		}
		return out
	case *ast.String:
		return []*Node{Text(string(n.Value))}
	case *ast.CodeSpan:
		var b strings.Builder
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			switch t := child.(type) {
			case *ast.Text:
				b.Write(t.Value(c.source))
			case *ast.String:
				b.Write(t.Value)
			}
		}
		return []*Node{{Type: TypeInlineCode, Value: b.String()}}
	case *ast.Emphasis:
		typ := TypeEmphasis
		if n.Level >= 2 {
			typ = TypeStrong
		}
		return []*Node{{Type: typ, Children: c.inlines(n)}}
	case *east.Strikethrough:
		return []*Node{{Type: TypeDelete, Children: c.inlines(n)}}
	case *ast.Link:
		return []*Node{{Type: TypeLink, URL: string(n.Destination), Title: string(n.Title), Children: c.inlines(n)}}
	case *ast.AutoLink:
		return []*Node{{Type: TypeLink, URL: string(n.URL(c.source)), Children: []*Node{Text(string(n.Label(c.source)))}}}
	case *ast.Image:
		img := &Node{Type: TypeImage, URL: string(n.Destination), Title: string(n.Title)}
		img.Alt = (&Node{Children: c.inlines(n)}).TextContent()
		return []*Node{img}
	case *ast.RawHTML:
		return []*Node{{Type: TypeHTML, Value: c.rawHTML(n)}}
	}
	return nil
}

func (c *converter) rawHTML(n *ast.RawHTML) string {
	var b strings.Builder
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		b.Write(seg.Value(c.source))
	}
	return b.String()
}

// mergeText joins adjacent text nodes.
func mergeText(nodes []*Node) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if last := len(out) - 1; last >= 0 && n.Type == TypeText && out[last].Type == TypeText {
			out[last] = Text(out[last].Value + n.Value)
			continue
		}
		out = append(out, n)
	}
	return out
}
