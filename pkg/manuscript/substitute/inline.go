package substitute

import (
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// None as an inline value deletes every paragraph that contains the marker.
const None = "@none"

// ReplaceInline replaces every occurrence of marker in the paragraphs below root with value and
// returns how many paragraphs changed. A marker may span several runs; the replacement text
// takes the formatting of the run where the marker starts.
func ReplaceInline(root *xml.Node, marker, value string) int {
	if marker == "" {
		return 0
	}
	changed := 0
	for _, p := range Paragraphs(root) {
		if !strings.Contains(ParagraphText(p), marker) {
			continue
		}
		changed++
		if value == None {
			p.Detach()
			continue
		}
		NormalizeRuns(p)
		replaceInParagraph(p, marker, value)
	}
	return changed
}

// ReplaceInlineInPackage runs ReplaceInline over the main document and every header and footer.
func ReplaceInlineInPackage(pkg *ooxml.Package, marker, value string) (int, error) {
	doc, err := pkg.Document()
	if err != nil {
		return 0, err
	}
	parts := []*ooxml.Part{doc}
	headers, err := pkg.Headers()
	if err != nil {
		return 0, err
	}
	footers, err := pkg.Footers()
	if err != nil {
		return 0, err
	}
	parts = append(append(parts, headers...), footers...)

	total := 0
	for _, part := range parts {
		total += ReplaceInline(part.Root(), marker, value)
	}
	return total, nil
}

type textSpan struct {
	node       *xml.Node
	start, end int
}

func replaceInParagraph(p *xml.Node, marker, value string) {
	var (
		spans []textSpan
		full  strings.Builder
	)
	for _, t := range p.Descendants(xml.ByName("w:t")) {
		text := t.Text()
		spans = append(spans, textSpan{node: t, start: full.Len(), end: full.Len() + len(text)})
		full.WriteString(text)
	}

	text := full.String()
	var hits []int
	for from := 0; ; {
		i := strings.Index(text[from:], marker)
		if i < 0 {
			break
		}
		hits = append(hits, from+i)
		from += i + len(marker)
	}

	// Later hits first so earlier offsets stay valid.
	for h := len(hits) - 1; h >= 0; h-- {
		start, end := hits[h], hits[h]+len(marker)
		for i := range spans {
			s := &spans[i]
			if s.end <= start || s.start >= end {
				continue
			}
			current := s.node.Text()
			lo := max(start-s.start, 0)
			hi := min(end-s.start, len(current))
			insert := ""
			if s.start <= start {
				insert = value
			}
			setRunText(s.node, current[:lo]+insert+current[hi:])
		}
	}
}

// setRunText sets the text of a w:t, keeping leading and trailing spaces significant.
func setRunText(t *xml.Node, text string) {
	t.SetText(text)
	if text != strings.TrimSpace(text) {
		t.SetAttr("xml:space", "preserve")
	}
}
