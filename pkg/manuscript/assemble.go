package manuscript

import (
	"fmt"
	"path"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/substitute"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// BodyPlaceholder is the template paragraph replaced by the generated body.
const BodyPlaceholder = "{{{body}}}"

// assembler moves the template document into the generated package. The generated package
// keeps its merged styles, numbering and media; the template contributes the main document
// markup and every other part its document relates to.
type assembler struct {
	tpl, out *ooxml.Package
	// copied maps template paths to their paths in the output.
	copied map[string]string
	log    *logging.Logger
}

func newAssembler(tpl, out *ooxml.Package, log *logging.Logger) *assembler {
	return &assembler{
		tpl:    tpl,
		out:    out,
		copied: make(map[string]string),
		log:    log.WithField("stage", "assemble"),
	}
}

// transferRelationships copies the parts related to the template document into the output and
// rewrites the relationship ids of the template document to the output's ids. It must run
// before generated content is spliced into the template document.
func (a *assembler) transferRelationships() error {
	tplDoc, err := a.tpl.Document()
	if err != nil {
		return err
	}
	outDoc, err := a.out.Document()
	if err != nil {
		return err
	}
	src, err := tplDoc.Rels()
	if err != nil {
		return err
	}
	dst, err := outDoc.Rels()
	if err != nil {
		return err
	}

	mapping := make(map[string]string, src.Len())
	for _, rel := range src.All() {
		switch {
		case rel.IsExternal():
			id, ok := dst.Find(rel.Type, rel.Target, rel.TargetMode)
			if !ok {
				id = dst.Add(rel.Type, rel.Target, rel.TargetMode)
			}
			mapping[rel.ID] = id

		case rel.Type == ooxml.RelStyles || rel.Type == ooxml.RelNumbering:
			existing := dst.ByType(rel.Type)
			if len(existing) == 0 {
				return docerr.New(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "assemble package", rel.Type,
					"generated document has no relationship of this type")
			}
			mapping[rel.ID] = existing[0].ID

		default:
			name, err := a.copyPart(ooxml.PathForTarget(tplDoc.Path(), rel.Target))
			if err != nil {
				return err
			}
			target := ooxml.TargetForPath(outDoc.Path(), name)
			id, ok := dst.Find(rel.Type, target, "")
			if !ok {
				id = dst.Add(rel.Type, target, "")
			}
			mapping[rel.ID] = id
		}
	}

	patched := ooxml.PatchIDs(tplDoc.Root(), mapping)
	a.log.WithFields(logging.Fields{"relationships": len(mapping), "parts": len(a.copied), "patched": patched}).
		Debug("transferred template relationships")
	return nil
}

// copyPart copies a template part and, recursively, the internal targets of its relationships.
// A path already taken in the output gets a numeric suffix.
func (a *assembler) copyPart(name string) (string, error) {
	if dst, ok := a.copied[name]; ok {
		return dst, nil
	}
	dst := a.freePath(name)
	a.copied[name] = dst
	if err := a.out.CopyFileAs(a.tpl, name, dst); err != nil {
		return "", docerr.WithContext(err, "assemble package", map[string]interface{}{"part": name})
	}

	src, err := a.tpl.Rels(name)
	if err != nil {
		return "", err
	}
	if src.Len() == 0 {
		return dst, nil
	}
	rels, err := a.out.Rels(dst)
	if err != nil {
		return "", err
	}
	for _, rel := range src.All() {
		if !rel.IsExternal() {
			target, err := a.copyPart(ooxml.PathForTarget(name, rel.Target))
			if err != nil {
				return "", err
			}
			rel.Target = ooxml.TargetForPath(dst, target)
		}
		rels.Put(rel)
	}
	return dst, nil
}

func (a *assembler) freePath(name string) string {
	if !a.out.Exists(name) {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !a.out.Exists(candidate) {
			return candidate
		}
	}
}

// generatedBody detaches the block content of the generated document, leaving its section
// properties behind.
func (a *assembler) generatedBody() ([]*xml.Node, error) {
	doc, err := a.out.Document()
	if err != nil {
		return nil, err
	}
	body, err := doc.Body()
	if err != nil {
		return nil, err
	}
	var content []*xml.Node
	for _, c := range body.Children() {
		if c.IsElement("w:sectPr") {
			continue
		}
		content = append(content, c)
	}
	for _, c := range content {
		c.Detach()
	}
	return content, nil
}

// splice replaces the body placeholder of the template document with the generated content.
// With a style map the content is checked and remapped on the way.
func (a *assembler) splice(styles *substitute.StyleMap) error {
	content, err := a.generatedBody()
	if err != nil {
		return err
	}
	tplDoc, err := a.tpl.Document()
	if err != nil {
		return err
	}
	if styles != nil {
		err = substitute.ReplaceParagraphStyled(tplDoc.Root(), BodyPlaceholder, content, *styles)
	} else {
		err = substitute.ReplaceParagraph(tplDoc.Root(), BodyPlaceholder, content)
	}
	if err != nil {
		return err
	}
	a.log.WithField("blocks", len(content)).Debug("spliced generated body")
	return nil
}

// finish installs the template document as the main document of the output.
func (a *assembler) finish() error {
	tplDoc, err := a.tpl.Document()
	if err != nil {
		return err
	}
	outDoc, err := a.out.Document()
	if err != nil {
		return err
	}
	outDoc.SetDoc(tplDoc.Doc())
	return nil
}
