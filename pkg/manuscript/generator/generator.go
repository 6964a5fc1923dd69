// Package generator renders a parsed manuscript into a WordprocessingML content package.
//
// The package starts from a small embedded base document whose generic styles (BodyText,
// Heading1, SourceCode, ...) are later reconciled with the house template. List regions are
// bracketed with ListRegionMarker sentinels so the reconciler can bind them to house list
// numbering; the numbering ids written here only refer to the base package.
package generator

import (
	"embed"
	"io/fs"
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/markdown"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/reconcile"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

//go:embed all:base
var baseFiles embed.FS

// Style ids of the base package.
const (
	StyleBodyText       = "BodyText"
	StyleFirstParagraph = "FirstParagraph"
	StyleCompact        = "Compact"
	StyleBlockText      = "BlockText"
	StyleSourceCode     = "SourceCode"
	StyleVerbatimChar   = "VerbatimChar"
	StyleImageCaption   = "ImageCaption"
	StyleHyperlink      = "Hyperlink"
	StyleTable          = "Table"
)

const (
	DefaultMaxHeadingLevel = 9
	DefaultImageWidthCm    = 10.0

	orderedNumID = "1"
	bulletNumID  = "2"

	// text width of the base page in twentieths of a point
	textWidthTwips = 9355
)

// HeadingStyle returns the base style id of a heading level.
func HeadingStyle(level int) string {
	return "Heading" + strconv.Itoa(level)
}

// Options configures Generate.
type Options struct {
	// BaseDir resolves relative image paths.
	BaseDir string
	// MaxHeadingLevel renders deeper headings at this level (DefaultMaxHeadingLevel if 0).
	MaxHeadingLevel int
	// DefaultImageWidthCm is the width of images that carry neither width nor height.
	DefaultImageWidthCm float64
	// Marker brackets list regions (reconcile.CommentMarker if nil).
	Marker reconcile.ListRegionMarker
	Logger *logging.Logger
}

// Base returns a fresh copy of the embedded base package.
func Base() (*ooxml.Package, error) {
	sub, err := fs.Sub(baseFiles, "base")
	if err != nil {
		return nil, err
	}
	return ooxml.OpenFS(sub)
}

type generator struct {
	opts     Options
	log      *logging.Logger
	pkg      *ooxml.Package
	doc      *ooxml.Part
	rels     *ooxml.Relationships
	drawings int
}

// blockContext carries the formatting that enclosing blocks impose on their children.
type blockContext struct {
	quote     bool
	listDepth int
	// numID is set for the first block of a list item only.
	numID string
}

// Generate renders the children of root into a new content package.
func Generate(root *markdown.Node, opts Options) (*ooxml.Package, error) {
	if opts.MaxHeadingLevel <= 0 || opts.MaxHeadingLevel > 9 {
		opts.MaxHeadingLevel = DefaultMaxHeadingLevel
	}
	if opts.DefaultImageWidthCm <= 0 {
		opts.DefaultImageWidthCm = DefaultImageWidthCm
	}
	if opts.Marker == nil {
		opts.Marker = reconcile.CommentMarker{}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	pkg, err := Base()
	if err != nil {
		return nil, err
	}
	doc, err := pkg.Document()
	if err != nil {
		return nil, err
	}
	rels, err := doc.Rels()
	if err != nil {
		return nil, err
	}

	g := &generator{
		opts: opts,
		log:  log.WithField("stage", "generate"),
		pkg:  pkg,
		doc:  doc,
		rels: rels,
	}
	blocks, err := g.blocks(root.Children, blockContext{})
	if err != nil {
		return nil, err
	}

	body, err := doc.Body()
	if err != nil {
		return nil, err
	}
	if sectPr := body.First("w:sectPr"); sectPr != nil {
		body.InsertAt(sectPr.Index(), blocks...)
	} else {
		body.Append(blocks...)
	}
	g.log.WithFields(logging.Fields{"blocks": len(blocks), "images": g.drawings}).Debug("rendered document body")
	return pkg, nil
}

func (g *generator) blocks(nodes []*markdown.Node, ctx blockContext) ([]*xml.Node, error) {
	var out []*xml.Node
	afterHeading := false
	for _, n := range nodes {
		rendered, err := g.block(n, ctx, afterHeading)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered...)
		afterHeading = n.Type == markdown.TypeHeading
		ctx.numID = ""
	}
	return out, nil
}

func (g *generator) block(n *markdown.Node, ctx blockContext, afterHeading bool) ([]*xml.Node, error) {
	switch n.Type {
	case markdown.TypeParagraph:
		style := StyleBodyText
		switch {
		case ctx.listDepth > 0:
			style = StyleCompact
		case ctx.quote:
			style = StyleBlockText
		case afterHeading:
			style = StyleFirstParagraph
		}
		p := Paragraph(style)
		if ctx.numID != "" {
			p.First("w:pPr").Append(NumPr(ctx.listDepth-1, ctx.numID))
		}
		runs, err := g.inlines(n.Children, RunFormat{})
		if err != nil {
			return nil, err
		}
		return []*xml.Node{p.Append(runs...)}, nil

	case markdown.TypeHeading:
		level := n.Depth
		if level < 1 {
			level = 1
		}
		if level > g.opts.MaxHeadingLevel {
			level = g.opts.MaxHeadingLevel
		}
		runs, err := g.inlines(n.Children, RunFormat{})
		if err != nil {
			return nil, err
		}
		return []*xml.Node{Paragraph(HeadingStyle(level)).Append(runs...)}, nil

	case markdown.TypeCode:
		return []*xml.Node{codeBlock(n.Value)}, nil

	case markdown.TypeBlockquote:
		ctx.quote = true
		return g.blocks(n.Children, ctx)

	case markdown.TypeList:
		return g.list(n, ctx)

	case markdown.TypeTable:
		return g.table(n)

	case markdown.TypeThematicBreak:
		p := Paragraph(StyleBodyText)
		p.First("w:pPr").Append(xml.Build("w:pBdr", nil,
			xml.Build("w:bottom", []xml.Attr{
				{Name: "w:val", Value: "single"},
				{Name: "w:sz", Value: "6"},
				{Name: "w:space", Value: "1"},
				{Name: "w:color", Value: "auto"},
			})))
		return []*xml.Node{p}, nil

	case markdown.TypeCaption:
		return g.caption(n)

	case markdown.TypeHTML:
		g.log.Debug("skipping raw HTML block %q", n.Value)
		return nil, nil
	}

	g.log.WithField("type", n.Type).Debug("skipping unsupported block")
	return nil, nil
}

func (g *generator) list(n *markdown.Node, ctx blockContext) ([]*xml.Node, error) {
	kind, numID := reconcile.BulletList, bulletNumID
	if n.Ordered {
		kind, numID = reconcile.OrderedList, orderedNumID
	}

	out := []*xml.Node{g.opts.Marker.Mark(kind)}
	for _, item := range n.Children {
		itemCtx := ctx
		itemCtx.listDepth++
		itemCtx.numID = numID
		rendered, err := g.blocks(item.Children, itemCtx)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered...)
	}
	return append(out, g.opts.Marker.Mark(reconcile.NoList)), nil
}

func codeBlock(code string) *xml.Node {
	r := xml.NewElement("w:r")
	for i, line := range strings.Split(code, "\n") {
		if i > 0 {
			r.Append(xml.NewElement("w:br"))
		}
		r.Append(textElement(strings.TrimSuffix(line, "\r")))
	}
	return Paragraph(StyleSourceCode).Append(r)
}

func (g *generator) table(n *markdown.Node) ([]*xml.Node, error) {
	cols := 0
	for _, row := range n.Children {
		if len(row.Children) > cols {
			cols = len(row.Children)
		}
	}
	if cols == 0 {
		return nil, nil
	}
	colWidth := strconv.Itoa(textWidthTwips / cols)

	tbl := xml.Build("w:tbl", nil,
		xml.Build("w:tblPr", nil,
			xml.Build("w:tblStyle", val(StyleTable)),
			xml.Build("w:tblW", []xml.Attr{{Name: "w:w", Value: "0"}, {Name: "w:type", Value: "auto"}}),
			xml.Build("w:tblLook", []xml.Attr{
				{Name: "w:val", Value: "04A0"},
				{Name: "w:firstRow", Value: "1"},
				{Name: "w:lastRow", Value: "0"},
				{Name: "w:firstColumn", Value: "0"},
				{Name: "w:lastColumn", Value: "0"},
				{Name: "w:noHBand", Value: "0"},
				{Name: "w:noVBand", Value: "1"},
			})))
	grid := xml.NewElement("w:tblGrid")
	for i := 0; i < cols; i++ {
		grid.Append(xml.Build("w:gridCol", []xml.Attr{{Name: "w:w", Value: colWidth}}))
	}
	tbl.Append(grid)

	for _, row := range n.Children {
		tr := xml.NewElement("w:tr")
		if row.Header {
			tr.Append(xml.Build("w:trPr", nil, xml.NewElement("w:tblHeader")))
		}
		for i := 0; i < cols; i++ {
			p := Paragraph(StyleCompact)
			if i < len(n.Align) {
				if jc := alignment(n.Align[i]); jc != "" {
					p.First("w:pPr").Append(xml.Build("w:jc", val(jc)))
				}
			}
			if i < len(row.Children) {
				runs, err := g.inlines(row.Children[i].Children, RunFormat{})
				if err != nil {
					return nil, err
				}
				p.Append(runs...)
			}
			tr.Append(xml.Build("w:tc", nil,
				xml.Build("w:tcPr", nil,
					xml.Build("w:tcW", []xml.Attr{{Name: "w:w", Value: colWidth}, {Name: "w:type", Value: "dxa"}})),
				p))
		}
		tbl.Append(tr)
	}
	return []*xml.Node{tbl}, nil
}

func alignment(align string) string {
	switch align {
	case "left", "right", "center":
		return align
	}
	return ""
}

func (g *generator) caption(n *markdown.Node) ([]*xml.Node, error) {
	var (
		p      *xml.Node
		format RunFormat
	)
	switch n.Class {
	case markdown.ImageCaption:
		p = Paragraph(StyleImageCaption)
		p.First("w:pPr").Append(xml.Build("w:contextualSpacing", val("true")))
	case markdown.TableCaption, markdown.ListingCaption:
		p = Paragraph(StyleBodyText)
		p.First("w:pPr").Append(xml.Build("w:jc", val("left")))
		format = RunFormat{Italic: true, HalfPoints: 18}
	default:
		return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedMarkdown, "render caption", n.Class,
			"unknown caption class")
	}
	runs, err := g.inlines(n.Children, format)
	if err != nil {
		return nil, err
	}
	return []*xml.Node{p.Append(runs...)}, nil
}

func val(v string) []xml.Attr {
	return []xml.Attr{{Name: "w:val", Value: v}}
}

// Paragraph builds a w:p whose properties name a paragraph style, followed by content.
func Paragraph(styleID string, content ...*xml.Node) *xml.Node {
	pPr := xml.NewElement("w:pPr")
	if styleID != "" {
		pPr.Append(xml.Build("w:pStyle", val(styleID)))
	}
	return xml.Build("w:p", nil, pPr).Append(content...)
}

// NumPr builds the numbering properties of a list paragraph.
func NumPr(level int, numID string) *xml.Node {
	if level > ooxml.MaxListLevel {
		level = ooxml.MaxListLevel
	}
	return xml.Build("w:numPr", nil,
		xml.Build("w:ilvl", val(strconv.Itoa(level))),
		xml.Build("w:numId", val(numID)))
}
