package ooxml

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

const relationshipsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// Relationship types used by the engine.
const (
	RelOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	RelNumbering      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering"
	RelSettings       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings"
	RelWebSettings    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/webSettings"
	RelFontTable      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/fontTable"
	RelTheme          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	RelFootnotes      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footnotes"
	RelEndnotes       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/endnotes"
	RelHeader         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	RelFooter         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer"
	RelImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelHyperlink      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	RelComments       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
)

// TargetModeExternal marks relationships whose target lives outside the package.
const TargetModeExternal = "External"

// Relationship links a source part to a target by id.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// IsExternal reports whether the target is outside the package.
func (r Relationship) IsExternal() bool {
	return r.TargetMode == TargetModeExternal
}

// Relationships is the sidecar relationship list of one part (or of the package).
type Relationships struct {
	items []Relationship
}

// RelsPathFor returns the sidecar path for a part: "word/document.xml" has its relationships in
// "word/_rels/document.xml.rels"; the package itself ("") uses "_rels/.rels".
func RelsPathFor(partPath string) string {
	dir, base := path.Split(partPath)
	return dir + "_rels/" + base + ".rels"
}

// ParseRelationships reads a .rels document.
func ParseRelationships(data []byte) (*Relationships, error) {
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, docerr.WithContext(err, "read relationships", nil)
	}
	root := doc.DocumentElement()
	if !root.IsElement("Relationships") {
		return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedXML, "read relationships", "",
			"root element is not Relationships")
	}
	rels := &Relationships{}
	for _, c := range root.All(xml.ByName("Relationship")) {
		rels.items = append(rels.items, Relationship{
			ID:         c.Attr("Id"),
			Type:       c.Attr("Type"),
			Target:     c.Attr("Target"),
			TargetMode: c.Attr("TargetMode"),
		})
	}
	return rels, nil
}

// All returns the relationships in document order.
func (r *Relationships) All() []Relationship {
	out := make([]Relationship, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Relationships) Len() int {
	return len(r.items)
}

// Get returns the relationship with the given id.
func (r *Relationships) Get(id string) (Relationship, bool) {
	for _, rel := range r.items {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// ByType returns every relationship of the given type.
func (r *Relationships) ByType(relType string) []Relationship {
	var out []Relationship
	for _, rel := range r.items {
		if rel.Type == relType {
			out = append(out, rel)
		}
	}
	return out
}

// NextID returns the next rIdN after the highest numeric id in use.
func (r *Relationships) NextID() string {
	maxID := 0
	for _, rel := range r.items {
		if num, ok := relationshipNumber(rel.ID); ok && num > maxID {
			maxID = num
		}
	}
	return fmt.Sprintf("rId%d", maxID+1)
}

func relationshipNumber(id string) (int, bool) {
	if !strings.HasPrefix(id, "rId") {
		return 0, false
	}
	n, err := strconv.Atoi(id[3:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Add appends a relationship under a fresh id and returns that id.
func (r *Relationships) Add(relType, target, targetMode string) string {
	id := r.NextID()
	r.items = append(r.items, Relationship{ID: id, Type: relType, Target: target, TargetMode: targetMode})
	return id
}

// Put stores rel under its own id, replacing a relationship that already uses the id.
func (r *Relationships) Put(rel Relationship) {
	for i := range r.items {
		if r.items[i].ID == rel.ID {
			r.items[i] = rel
			return
		}
	}
	r.items = append(r.items, rel)
}

// Find returns the id of an existing relationship with the same type, target and mode.
func (r *Relationships) Find(relType, target, targetMode string) (string, bool) {
	for _, rel := range r.items {
		if rel.Type == relType && rel.Target == target && rel.TargetMode == targetMode {
			return rel.ID, true
		}
	}
	return "", false
}

// Remove deletes the relationship with the given id.
func (r *Relationships) Remove(id string) {
	for i, rel := range r.items {
		if rel.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return
		}
	}
}

// Join merges other into the receiver. Relationships with the same type, target and mode reuse
// the existing id; the others get fresh ids. The returned map translates other's ids into the
// receiver's ids.
func (r *Relationships) Join(other *Relationships) map[string]string {
	mapping := make(map[string]string, len(other.items))
	for _, rel := range other.items {
		if id, ok := r.Find(rel.Type, rel.Target, rel.TargetMode); ok {
			mapping[rel.ID] = id
			continue
		}
		mapping[rel.ID] = r.Add(rel.Type, rel.Target, rel.TargetMode)
	}
	return mapping
}

// relationshipAttrs are the attributes that hold relationship ids in part markup.
var relationshipAttrs = []string{"r:id", "r:embed", "r:link"}

// PatchIDs rewrites relationship id attributes in tree through mapping and returns how many
// attributes changed.
func PatchIDs(tree *xml.Node, mapping map[string]string) int {
	if len(mapping) == 0 {
		return 0
	}
	changed := 0
	tree.Visit(xml.OfKind(xml.ElementNode), func(n *xml.Node, _ []int) xml.VisitAction {
		for _, attr := range relationshipAttrs {
			id, ok := n.LookupAttr(attr)
			if !ok {
				continue
			}
			if newID, found := mapping[id]; found && newID != id {
				n.SetAttr(attr, newID)
				changed++
			}
		}
		return xml.VisitContinue
	})
	return changed
}

// Node builds the XML document for the relationship list.
func (r *Relationships) Node() *xml.Node {
	root := xml.NewElement("Relationships").SetAttr("xmlns", relationshipsNamespace)
	for _, rel := range r.items {
		el := xml.NewElement("Relationship").
			SetAttr("Id", rel.ID).
			SetAttr("Type", rel.Type).
			SetAttr("Target", rel.Target)
		if rel.TargetMode != "" {
			el.SetAttr("TargetMode", rel.TargetMode)
		}
		root.Append(el)
	}
	return xml.NewDocument().Append(root)
}
