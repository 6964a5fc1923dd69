package substitute

import (
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// runPropertiesEquivalent checks if two run property blocks format text the same way.
// A missing block only matches another missing block.
func runPropertiesEquivalent(a, b *xml.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// textOnlyRun reports whether r holds nothing but optional w:rPr and w:t children, so its text
// can be joined with a neighbour's.
func textOnlyRun(r *xml.Node) bool {
	hasText := false
	for _, c := range r.Children() {
		switch {
		case c.IsElement("w:rPr"):
		case c.IsElement("w:t"):
			hasText = true
		default:
			return false
		}
	}
	return hasText
}

// NormalizeRuns merges consecutive text-only runs of a paragraph that share run properties.
// Word splits text into runs at arbitrary points (spell checking, revision ids), which would
// otherwise hide a marker typed in one go. Runs inside hyperlinks are merged among themselves
// but never across the hyperlink boundary.
func NormalizeRuns(p *xml.Node) {
	mergeRunsIn(p)
	for _, h := range p.All(xml.ByName("w:hyperlink", "w:smartTag", "w:ins")) {
		mergeRunsIn(h)
	}
}

func mergeRunsIn(container *xml.Node) {
	var current *xml.Node
	for _, c := range container.Children() {
		if !c.IsElement("w:r") || !textOnlyRun(c) {
			// Proofing marks and bookmarks carry no text and do not break a marker.
			if c.IsElement("w:proofErr", "w:bookmarkStart", "w:bookmarkEnd") {
				continue
			}
			current = nil
			continue
		}
		if current == nil || !runPropertiesEquivalent(current.First("w:rPr"), c.First("w:rPr")) {
			current = c
			continue
		}
		joinRunText(current, c)
		c.Detach()
	}
}

// joinRunText appends the text of src to the last w:t of dst.
func joinRunText(dst, src *xml.Node) {
	texts := dst.All(xml.ByName("w:t"))
	last := texts[len(texts)-1]
	merged := last.Text()
	for _, t := range src.All(xml.ByName("w:t")) {
		merged += t.Text()
	}
	setRunText(last, merged)
}
