package substitute

import (
	"fmt"
	"sort"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// StyleMap translates the styles of incoming content into house styles while it is copied into
// a template.
type StyleMap struct {
	// Source resolves the style ids used by the incoming content to names.
	Source *ooxml.Styles
	// Target resolves house style names to ids.
	Target *ooxml.Styles
	// Names maps incoming style names to house style names.
	Names map[string]string
	// PassThrough lists incoming style names that may be used as they are.
	PassThrough []string
}

// Remap returns deep copies of nodes with every w:pStyle and w:rStyle translated. Style names
// that are neither mapped nor passed through fail with UnrecognizedStyle; all offending names
// are reported together.
func (m StyleMap) Remap(nodes []*xml.Node) ([]*xml.Node, error) {
	pass := make(map[string]bool, len(m.PassThrough))
	for _, name := range m.PassThrough {
		pass[name] = true
	}
	var targetIDs map[string]string
	if m.Target != nil {
		targetIDs = m.Target.IDsByName()
	}

	unknown := make(map[string]bool)
	out := make([]*xml.Node, 0, len(nodes))
	for _, n := range nodes {
		c := n.DeepCopy()
		refs := c.Descendants(xml.ByName("w:pStyle", "w:rStyle"))
		if c.IsElement("w:pStyle", "w:rStyle") {
			refs = append(refs, c)
		}
		for _, ref := range refs {
			name := m.sourceName(ref.Attr("w:val"))
			house, mapped := m.Names[name]
			switch {
			case mapped:
			case pass[name]:
				house = name
			default:
				unknown[name] = true
				continue
			}
			id, ok := targetIDs[house]
			if !ok {
				return nil, docerr.New(docerr.KindMissingResource, docerr.CodeMissingNamedStyle, "remap styles", house,
					"house style sheet has no style with this name")
			}
			ref.SetAttr("w:val", id)
		}
		out = append(out, c)
	}

	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for name := range unknown {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeUnrecognizedStyle, "remap styles",
			names[0], fmt.Sprintf("styles not declared safe to migrate: %v", names))
	}
	return out, nil
}

func (m StyleMap) sourceName(id string) string {
	if m.Source != nil {
		if st := m.Source.ByID(id); st != nil {
			return st.Name()
		}
	}
	return id
}

// ReplaceParagraphStyled is ReplaceParagraph with the content remapped through m first.
func ReplaceParagraphStyled(root *xml.Node, marker string, content []*xml.Node, m StyleMap) error {
	remapped, err := m.Remap(content)
	if err != nil {
		return err
	}
	return ReplaceParagraph(root, marker, remapped)
}
