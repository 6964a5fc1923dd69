// Package substitute replaces placeholder markers of a template document with content.
//
// A paragraph placeholder is a paragraph whose text is exactly a marker such as {{{body}}}; it
// is replaced by a sequence of paragraphs. An inline placeholder may sit anywhere in running
// text and is replaced by a string, or removes its paragraph when the value is None.
package substitute

import (
	"fmt"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// ParagraphText returns the concatenated w:t text of a paragraph.
func ParagraphText(p *xml.Node) string {
	var b strings.Builder
	for _, t := range p.Descendants(xml.ByName("w:t")) {
		b.WriteString(t.Text())
	}
	return b.String()
}

// Paragraphs returns every w:p below root in document order.
func Paragraphs(root *xml.Node) []*xml.Node {
	return root.Descendants(xml.ByName("w:p"))
}

// FindParagraph returns the first paragraph whose text contains marker, or nil.
func FindParagraph(root *xml.Node, marker string) *xml.Node {
	for _, p := range Paragraphs(root) {
		if strings.Contains(ParagraphText(p), marker) {
			return p
		}
	}
	return nil
}

// Contains reports whether any paragraph below root contains marker.
func Contains(root *xml.Node, marker string) bool {
	return FindParagraph(root, marker) != nil
}

// FindParagraphStrict returns the paragraph whose whole text is marker. It fails with
// PlaceholderNotFound when no paragraph mentions the marker and with PlaceholderNotExclusive
// when the first paragraph that does carries other text as well.
func FindParagraphStrict(root *xml.Node, marker string) (*xml.Node, error) {
	p := FindParagraph(root, marker)
	if p == nil {
		return nil, docerr.New(docerr.KindMissingResource, docerr.CodePlaceholderNotFound, "find placeholder", marker,
			"no paragraph contains the marker")
	}
	if text := ParagraphText(p); text != marker {
		return nil, docerr.New(docerr.KindAmbiguousMatch, docerr.CodePlaceholderNotExclusive, "find placeholder", marker,
			fmt.Sprintf("paragraph text is %q", text))
	}
	return p, nil
}

// ReplaceParagraph removes the placeholder paragraph of marker and puts replacement (possibly
// empty) in its place.
func ReplaceParagraph(root *xml.Node, marker string, replacement []*xml.Node) error {
	p, err := FindParagraphStrict(root, marker)
	if err != nil {
		return err
	}
	p.ReplaceWith(replacement...)
	return nil
}

// ReplaceOptionalParagraph is ReplaceParagraph for placeholders a template may omit. It reports
// whether the marker was present.
func ReplaceOptionalParagraph(root *xml.Node, marker string, replacement []*xml.Node) (bool, error) {
	if !Contains(root, marker) {
		return false, nil
	}
	return true, ReplaceParagraph(root, marker, replacement)
}
