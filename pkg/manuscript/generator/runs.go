package generator

import (
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/markdown"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// RunFormat describes the direct formatting of a run.
type RunFormat struct {
	Style       string
	Bold        bool
	Italic      bool
	Strike      bool
	Superscript bool
	// HalfPoints is the font size in half-points; 0 keeps the style's size.
	HalfPoints int
}

// Properties builds the w:rPr of the format, or nil when there is nothing to set.
func (f RunFormat) Properties() *xml.Node {
	rPr := xml.NewElement("w:rPr")
	if f.Style != "" {
		rPr.Append(xml.Build("w:rStyle", val(f.Style)))
	}
	if f.Bold {
		rPr.Append(xml.NewElement("w:b"), xml.NewElement("w:bCs"))
	}
	if f.Italic {
		rPr.Append(xml.NewElement("w:i"), xml.NewElement("w:iCs"))
	}
	if f.Strike {
		rPr.Append(xml.NewElement("w:strike"))
	}
	if f.HalfPoints > 0 {
		size := strconv.Itoa(f.HalfPoints)
		rPr.Append(xml.Build("w:sz", val(size)), xml.Build("w:szCs", val(size)))
	}
	if f.Superscript {
		rPr.Append(xml.Build("w:vertAlign", val("superscript")))
	}
	if rPr.Len() == 0 {
		return nil
	}
	return rPr
}

// TextRun builds a w:r holding text with the given format.
func TextRun(text string, f RunFormat) *xml.Node {
	r := xml.NewElement("w:r")
	if rPr := f.Properties(); rPr != nil {
		r.Append(rPr)
	}
	return r.Append(textElement(text))
}

func textElement(text string) *xml.Node {
	t := xml.NewElement("w:t").SetText(text)
	if text != strings.TrimSpace(text) {
		t.SetAttr("xml:space", "preserve")
	}
	return t
}

func (g *generator) inlines(nodes []*markdown.Node, f RunFormat) ([]*xml.Node, error) {
	var out []*xml.Node
	for _, n := range nodes {
		var (
			rendered []*xml.Node
			err      error
		)
		switch n.Type {
		case markdown.TypeText, markdown.TypeCite, markdown.TypeRef:
			if n.Value != "" {
				rendered = []*xml.Node{TextRun(n.Value, f)}
			}
		case markdown.TypeStrong:
			inner := f
			inner.Bold = true
			rendered, err = g.inlines(n.Children, inner)
		case markdown.TypeEmphasis:
			inner := f
			inner.Italic = true
			rendered, err = g.inlines(n.Children, inner)
		case markdown.TypeDelete:
			inner := f
			inner.Strike = true
			rendered, err = g.inlines(n.Children, inner)
		case markdown.TypeInlineCode:
			inner := f
			inner.Style = StyleVerbatimChar
			rendered = []*xml.Node{TextRun(n.Value, inner)}
		case markdown.TypeBreak:
			r := xml.NewElement("w:r")
			if rPr := f.Properties(); rPr != nil {
				r.Append(rPr)
			}
			rendered = []*xml.Node{r.Append(xml.NewElement("w:br"))}
		case markdown.TypeLink:
			var link *xml.Node
			link, err = g.hyperlink(n, f)
			rendered = []*xml.Node{link}
		case markdown.TypeImage:
			var run *xml.Node
			run, err = g.image(n)
			rendered = []*xml.Node{run}
		case markdown.TypeHTML:
			g.log.Debug("skipping inline HTML %q", n.Value)
		default:
			rendered, err = g.inlines(n.Children, f)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rendered...)
	}
	return out, nil
}

// hyperlink renders a link. Fragment URLs point at a bookmark of the document; everything else
// becomes an external relationship of the main part, shared between links to the same URL.
func (g *generator) hyperlink(n *markdown.Node, f RunFormat) (*xml.Node, error) {
	f.Style = StyleHyperlink
	runs, err := g.inlines(n.Children, f)
	if err != nil {
		return nil, err
	}

	h := xml.NewElement("w:hyperlink")
	if anchor, ok := strings.CutPrefix(n.URL, "#"); ok {
		h.SetAttr("w:anchor", anchor)
	} else {
		id, found := g.rels.Find(ooxml.RelHyperlink, n.URL, ooxml.TargetModeExternal)
		if !found {
			id = g.rels.Add(ooxml.RelHyperlink, n.URL, ooxml.TargetModeExternal)
		}
		h.SetAttr("r:id", id)
	}
	if n.Title != "" {
		h.SetAttr("w:tooltip", n.Title)
	}
	return h.Append(runs...), nil
}
