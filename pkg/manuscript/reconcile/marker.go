package reconcile

import (
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// ListKind names the kind of list a generated region holds.
type ListKind string

const (
	// NoList ends the innermost list region.
	NoList      ListKind = "None"
	OrderedList ListKind = "OrderedList"
	BulletList  ListKind = "BulletList"
)

// ListRegionMarker is the side channel between the content generator and the reconciler:
// the generator brackets every list region with markers, the reconciler reads them back to
// bind the region to a house list style and a fresh numbering instance.
type ListRegionMarker interface {
	// Mark returns the node opening a region of kind, or closing the innermost one for NoList.
	Mark(kind ListKind) *xml.Node
	// Match reports whether n is a marker and which kind it carries.
	Match(n *xml.Node) (ListKind, bool)
}

// CommentMarker encodes regions as XML comments such as <!--ListMode OrderedList-->.
type CommentMarker struct{}

const commentMarkerPrefix = "ListMode "

func (CommentMarker) Mark(kind ListKind) *xml.Node {
	return xml.NewComment(commentMarkerPrefix + string(kind))
}

func (CommentMarker) Match(n *xml.Node) (ListKind, bool) {
	if n.Kind() != xml.CommentNode {
		return "", false
	}
	text := strings.TrimSpace(n.Text())
	if !strings.HasPrefix(text, commentMarkerPrefix) {
		return "", false
	}
	kind := ListKind(strings.TrimSpace(strings.TrimPrefix(text, commentMarkerPrefix)))
	if kind == "" {
		return "", false
	}
	return kind, true
}
