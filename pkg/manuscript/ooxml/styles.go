package ooxml

import (
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// Styles wraps the w:styles element of a style sheet part.
type Styles struct {
	part *Part
	root *xml.Node
}

// Style wraps one w:style element.
type Style struct {
	node *xml.Node
}

// StylesFromPart wraps the style sheet of a part.
func StylesFromPart(part *Part) (*Styles, error) {
	s, err := NewStyles(part.Root())
	if err != nil {
		return nil, err
	}
	s.part = part
	return s, nil
}

// NewStyles wraps a w:styles element.
func NewStyles(root *xml.Node) (*Styles, error) {
	if !root.IsElement("w:styles") {
		return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedXML, "read styles", root.Name(),
			"root element is not w:styles")
	}
	return &Styles{root: root}, nil
}

func (s *Styles) Part() *Part      { return s.part }
func (s *Styles) Node() *xml.Node  { return s.root }
func WrapStyle(n *xml.Node) *Style { return &Style{node: n} }

// All returns the style definitions in document order.
func (s *Styles) All() []*Style {
	var out []*Style
	for _, n := range s.root.All(xml.ByName("w:style")) {
		out = append(out, &Style{node: n})
	}
	return out
}

// ByID returns the style with the given id or nil.
func (s *Styles) ByID(id string) *Style {
	for _, st := range s.All() {
		if st.ID() == id {
			return st
		}
	}
	return nil
}

// ByName returns the last style with the given name or nil.
func (s *Styles) ByName(name string) *Style {
	var found *Style
	for _, st := range s.All() {
		if st.Name() == name {
			found = st
		}
	}
	return found
}

// IDsByName maps style names to ids. When names repeat the last definition wins.
func (s *Styles) IDsByName() map[string]string {
	return StyleIDsByName(s.All())
}

// StyleIDsByName maps the names of the given styles to their ids.
func StyleIDsByName(styles []*Style) map[string]string {
	table := make(map[string]string, len(styles))
	for _, st := range styles {
		table[st.Name()] = st.ID()
	}
	return table
}

// Add appends a style definition.
func (s *Styles) Add(st *Style) {
	s.root.Append(st.node)
}

// Remove detaches a style definition.
func (s *Styles) Remove(st *Style) {
	st.node.Detach()
}

// DocDefaults returns the w:docDefaults block or nil.
func (s *Styles) DocDefaults() *xml.Node {
	return s.root.First("w:docDefaults")
}

// LatentStyles returns the w:latentStyles block or nil.
func (s *Styles) LatentStyles() *xml.Node {
	return s.root.First("w:latentStyles")
}

// CopySingletonsFrom overwrites the receiver's w:docDefaults and w:latentStyles with copies of
// the source's blocks. Blocks missing in the receiver are inserted in schema order.
func (s *Styles) CopySingletonsFrom(src *Styles) {
	if d := src.DocDefaults(); d != nil {
		if mine := s.DocDefaults(); mine != nil {
			mine.Assign(d)
		} else {
			s.root.Prepend(d.DeepCopy())
		}
	}
	if l := src.LatentStyles(); l != nil {
		if mine := s.LatentStyles(); mine != nil {
			mine.Assign(l)
		} else {
			index := 0
			if s.DocDefaults() != nil {
				index = s.DocDefaults().Index() + 1
			}
			s.root.InsertAt(index, l.DeepCopy())
		}
	}
}

func (st *Style) Node() *xml.Node { return st.node }

func (st *Style) ID() string { return st.node.Attr("w:styleId") }

func (st *Style) SetID(id string) { st.node.SetAttr("w:styleId", id) }

// Type returns w:type (paragraph, character, table or numbering).
func (st *Style) Type() string { return st.node.Attr("w:type") }

func (st *Style) Name() string { return st.valChild("w:name") }

func (st *Style) BasedOn() string { return st.valChild("w:basedOn") }

func (st *Style) LinkedStyle() string { return st.valChild("w:link") }

// NextStyle returns the style applied to the paragraph that follows this one (w:next).
func (st *Style) NextStyle() string { return st.valChild("w:next") }

func (st *Style) SetBasedOn(id string) { st.setValChild("w:basedOn", id) }

func (st *Style) SetLinkedStyle(id string) { st.setValChild("w:link", id) }

func (st *Style) SetNextStyle(id string) { st.setValChild("w:next", id) }

// CrossReferences returns the w:basedOn, w:link and w:next elements of the style.
func (st *Style) CrossReferences() []*xml.Node {
	var out []*xml.Node
	for _, name := range []string{"w:basedOn", "w:link", "w:next"} {
		if n := st.node.First(name); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a detached deep copy of the style.
func (st *Style) Clone() *Style {
	return &Style{node: st.node.DeepCopy()}
}

func (st *Style) valChild(name string) string {
	if n := st.node.First(name); n != nil {
		return n.Attr("w:val")
	}
	return ""
}

func (st *Style) setValChild(name, value string) {
	if n := st.node.First(name); n != nil {
		n.SetAttr("w:val", value)
		return
	}
	st.node.Append(xml.NewElement(name).SetAttr("w:val", value))
}
