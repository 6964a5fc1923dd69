package ooxml

import (
	"strconv"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// MaxListLevel is the deepest list indentation level (levels run 0..MaxListLevel).
const MaxListLevel = 8

// Numbering wraps the w:numbering element of a numbering part.
type Numbering struct {
	part *Part
	root *xml.Node
}

// Num is a concrete numbering instance (w:num) referenced by paragraphs through w:numId.
type Num struct {
	node *xml.Node
}

// NumberingFromPart wraps the numbering table of a part.
func NumberingFromPart(part *Part) (*Numbering, error) {
	n, err := NewNumbering(part.Root())
	if err != nil {
		return nil, err
	}
	n.part = part
	return n, nil
}

// NewNumbering wraps a w:numbering element.
func NewNumbering(root *xml.Node) (*Numbering, error) {
	if !root.IsElement("w:numbering") {
		return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedXML, "read numbering", root.Name(),
			"root element is not w:numbering")
	}
	return &Numbering{root: root}, nil
}

// EmptyNumberingDocument returns a document holding an empty w:numbering element.
func EmptyNumberingDocument() *xml.Node {
	return xml.NewDocument().Append(
		xml.NewElement("w:numbering").SetAttr("xmlns:w", knownNamespaces["w"]),
	)
}

func (n *Numbering) Part() *Part     { return n.part }
func (n *Numbering) Node() *xml.Node { return n.root }

// AbstractNums returns the w:abstractNum definitions.
func (n *Numbering) AbstractNums() []*xml.Node {
	return n.root.All(xml.ByName("w:abstractNum"))
}

// AbstractNum returns the abstract definition with the given id or nil.
func (n *Numbering) AbstractNum(id string) *xml.Node {
	for _, a := range n.AbstractNums() {
		if a.Attr("w:abstractNumId") == id {
			return a
		}
	}
	return nil
}

// Nums returns the concrete numbering instances.
func (n *Numbering) Nums() []*Num {
	var out []*Num
	for _, node := range n.root.All(xml.ByName("w:num")) {
		out = append(out, &Num{node: node})
	}
	return out
}

// Num returns the instance with the given id or nil.
func (n *Numbering) Num(id string) *Num {
	for _, num := range n.Nums() {
		if num.ID() == id {
			return num
		}
	}
	return nil
}

// UnusedNumID returns the smallest numeric id at or above from that no w:num uses.
func (n *Numbering) UnusedNumID(from int) string {
	used := make(map[string]bool)
	for _, num := range n.Nums() {
		used[num.ID()] = true
	}
	for id := from; ; id++ {
		s := strconv.Itoa(id)
		if !used[s] {
			return s
		}
	}
}

// AddAbstractNum inserts an abstract definition before the first w:num, as the schema requires.
func (n *Numbering) AddAbstractNum(def *xml.Node) {
	if first := n.root.First("w:num"); first != nil {
		n.root.InsertAt(first.Index(), def)
		return
	}
	n.insertBeforeCleanup(def)
}

// AddNum appends a w:num bound to an abstract definition.
func (n *Numbering) AddNum(numID, abstractNumID string) *Num {
	node := xml.NewElement("w:num").SetAttr("w:numId", numID).Append(
		xml.NewElement("w:abstractNumId").SetAttr("w:val", abstractNumID),
	)
	n.insertBeforeCleanup(node)
	return &Num{node: node}
}

func (n *Numbering) insertBeforeCleanup(node *xml.Node) {
	if cleanup := n.root.First("w:numIdMacAtCleanup"); cleanup != nil {
		n.root.InsertAt(cleanup.Index(), node)
		return
	}
	n.root.Append(node)
}

func (num *Num) Node() *xml.Node { return num.node }

func (num *Num) ID() string { return num.node.Attr("w:numId") }

func (num *Num) AbstractNumID() string {
	if a := num.node.First("w:abstractNumId"); a != nil {
		return a.Attr("w:val")
	}
	return ""
}

// LevelOverride returns the w:lvlOverride for a level, creating it if needed.
func (num *Num) LevelOverride(level int) *xml.Node {
	ilvl := strconv.Itoa(level)
	for _, o := range num.node.All(xml.ByName("w:lvlOverride")) {
		if o.Attr("w:ilvl") == ilvl {
			return o
		}
	}
	o := xml.NewElement("w:lvlOverride").SetAttr("w:ilvl", ilvl)
	num.node.Append(o)
	return o
}

// RestartAt makes every level from 0 to MaxListLevel start at value.
func (num *Num) RestartAt(value int) {
	for level := 0; level <= MaxListLevel; level++ {
		o := num.LevelOverride(level)
		o.RemoveChildren(xml.ByName("w:startOverride"))
		o.Prepend(xml.NewElement("w:startOverride").SetAttr("w:val", strconv.Itoa(value)))
	}
}

// EnsureNumbering returns the numbering table, creating an empty numbering part linked from the
// main document when the package has none.
func (p *Package) EnsureNumbering() (*Numbering, error) {
	existing, err := p.Numbering()
	if err != nil || existing != nil {
		return existing, err
	}
	doc, err := p.Document()
	if err != nil {
		return nil, err
	}
	rels, err := doc.Rels()
	if err != nil {
		return nil, err
	}
	part := p.AddPart(PathForTarget(doc.Path(), "numbering.xml"), TypeNumbering, EmptyNumberingDocument())
	rels.Add(RelNumbering, "numbering.xml", "")
	return NumberingFromPart(part)
}
