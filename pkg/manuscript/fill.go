package manuscript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/generator"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/meta"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/reconcile"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/substitute"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// UseCitation as a page header or details value repeats the for_citation text of the language.
const UseCitation = "@use_citation"

// textKeys are filled inline, once per language.
var textKeys = []string{"header", "abstract", "keywords", "for_citation", "acknowledgements"}

// citedKeys are filled inline and accept UseCitation.
var citedKeys = []string{"page_header", "authors_detail"}

// Placeholder returns the template marker of a metadata key.
func Placeholder(key string) string {
	return "{{{" + key + "}}}"
}

// PaperMetadata selects the metadata section under key, or the whole front matter when the key
// is absent.
func PaperMetadata(front meta.Section, key string) meta.Section {
	if key != "" && front.Has(key) {
		return front.Get(key)
	}
	return front
}

// filler writes paper metadata into the placeholders of a template. A placeholder the template
// does not contain is skipped without reading its metadata.
type filler struct {
	pkg       *ooxml.Package
	doc       *ooxml.Part
	parts     []*ooxml.Part
	meta      meta.Section
	languages []string
	styles    StyleConfig
	result    *reconcile.Result
	log       *logging.Logger
}

func newFiller(pkg *ooxml.Package, md meta.Section, cfg *Config, result *reconcile.Result, log *logging.Logger) (*filler, error) {
	doc, err := pkg.Document()
	if err != nil {
		return nil, err
	}
	headers, err := pkg.Headers()
	if err != nil {
		return nil, err
	}
	footers, err := pkg.Footers()
	if err != nil {
		return nil, err
	}
	return &filler{
		pkg:       pkg,
		doc:       doc,
		parts:     append(append([]*ooxml.Part{doc}, headers...), footers...),
		meta:      md,
		languages: cfg.Languages,
		styles:    cfg.Styles,
		result:    result,
		log:       log.WithField("stage", "fill"),
	}, nil
}

func (f *filler) fill() error {
	for _, lang := range f.languages {
		for _, key := range textKeys {
			if err := f.inline(key, lang, false); err != nil {
				return err
			}
		}
		for _, key := range citedKeys {
			if err := f.inline(key, lang, true); err != nil {
				return err
			}
		}
		if err := f.paragraphs("authors_"+lang, func() ([]*xml.Node, error) { return f.authors(lang) }); err != nil {
			return err
		}
		if err := f.paragraphs("organizations_"+lang, func() ([]*xml.Node, error) { return f.organizations(lang) }); err != nil {
			return err
		}
	}
	if err := f.paragraphs("links", f.links); err != nil {
		return err
	}
	return f.paragraphs("authors_detail", f.authorsDetail)
}

func (f *filler) present(marker string) bool {
	for _, part := range f.parts {
		if substitute.Contains(part.Root(), marker) {
			return true
		}
	}
	return false
}

// inline replaces the marker of base_lang in the document, headers and footers.
func (f *filler) inline(base, lang string, cited bool) error {
	key := base + "_" + lang
	marker := Placeholder(key)
	if !f.present(marker) {
		f.log.Debug("template has no %s placeholder", marker)
		return nil
	}
	value, err := f.meta.String(key)
	if err != nil {
		return err
	}
	if cited && value == UseCitation {
		if value, err = f.meta.String("for_citation_" + lang); err != nil {
			return err
		}
	}
	n, err := substitute.ReplaceInlineInPackage(f.pkg, marker, value)
	if err != nil {
		return err
	}
	f.log.WithField("placeholder", key).Debug("filled %d paragraphs", n)
	return nil
}

// paragraphs replaces the exclusive placeholder paragraph of key in the main document.
func (f *filler) paragraphs(key string, build func() ([]*xml.Node, error)) error {
	marker := Placeholder(key)
	if !substitute.Contains(f.doc.Root(), marker) {
		f.log.Debug("template has no %s placeholder", marker)
		return nil
	}
	nodes, err := build()
	if err != nil {
		return err
	}
	if err := substitute.ReplaceParagraph(f.doc.Root(), marker, nodes); err != nil {
		return err
	}
	f.log.WithField("placeholder", key).Debug("inserted %d paragraphs", len(nodes))
	return nil
}

func (f *filler) styleID(name string) (string, error) {
	return f.result.StyleID(name)
}

// organizationIDs returns the ids of the organizations list in order; author lines refer to
// organizations by their position in it.
func (f *filler) organizationIDs() ([]string, error) {
	section := f.meta.Get("organizations")
	if !section.Exists() {
		return nil, nil
	}
	entries, err := section.AsArray()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, entry := range entries {
		if ids[i], err = entry.StringOr("id", ""); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// authorIndices renders the organization numbers of an author as "1,3".
func authorIndices(author meta.Section, orgIDs []string) (string, error) {
	section := author.Get("organizations")
	if !section.Exists() {
		return "", nil
	}
	refs, err := section.AsArray()
	if err != nil {
		return "", err
	}
	indices := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, err := ref.String("")
		if err != nil {
			return "", err
		}
		index := -1
		for i, known := range orgIDs {
			if known == id {
				index = i
				break
			}
		}
		if index < 0 {
			return "", docerr.New(docerr.KindMissingResource, docerr.CodeMetadataMissing, "fill authors", ref.Path(),
				fmt.Sprintf("organization %q is not listed under organizations", id))
		}
		indices = append(indices, strconv.Itoa(index+1))
	}
	return strings.Join(indices, ","), nil
}

// authors writes one paragraph per author: a superscript index and the contact line. The index
// lists the author's organizations, or is the author's own position when none are given.
func (f *filler) authors(lang string) ([]*xml.Node, error) {
	styleID, err := f.styleID(f.styles.Author)
	if err != nil {
		return nil, err
	}
	authors, err := f.meta.Get("authors").AsArray()
	if err != nil {
		return nil, err
	}
	orgIDs, err := f.organizationIDs()
	if err != nil {
		return nil, err
	}

	out := make([]*xml.Node, 0, len(authors))
	for i, author := range authors {
		name, err := author.String("name_" + lang)
		if err != nil {
			return nil, err
		}
		orcid, err := author.String("orcid")
		if err != nil {
			return nil, err
		}
		email, err := author.String("email")
		if err != nil {
			return nil, err
		}
		indices, err := authorIndices(author, orgIDs)
		if err != nil {
			return nil, err
		}
		if indices == "" {
			indices = strconv.Itoa(i + 1)
		}

		out = append(out, generator.Paragraph(styleID,
			generator.TextRun(indices, generator.RunFormat{Superscript: true}),
			generator.TextRun(fmt.Sprintf("%s, ORCID: %s, <%s>", name, orcid, email), generator.RunFormat{})))
	}
	return out, nil
}

// organizations lists the organizations with their numbers. Entries come from the shared
// organizations list (name_<lang> per entry) or, without one, from a plain organizations_<lang>
// list of names.
func (f *filler) organizations(lang string) ([]*xml.Node, error) {
	styleID, err := f.styleID(f.styles.Author)
	if err != nil {
		return nil, err
	}

	var names []string
	if shared := f.meta.Get("organizations"); shared.Exists() {
		entries, err := shared.AsArray()
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			name, err := entry.String("name_" + lang)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
	} else {
		entries, err := f.meta.Get("organizations_" + lang).AsArray()
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			name, err := entry.String("")
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
	}

	out := make([]*xml.Node, len(names))
	for i, name := range names {
		out[i] = generator.Paragraph(styleID,
			generator.TextRun(strconv.Itoa(i+1), generator.RunFormat{Superscript: true}),
			generator.TextRun(name, generator.RunFormat{}))
	}
	return out, nil
}

// links renders the bibliography as a numbered list. An entry is either the reference text or
// a mapping with a description.
func (f *filler) links() ([]*xml.Node, error) {
	bib := f.styles.Bibliography
	styleID, err := f.styleID(bib.Style)
	if err != nil {
		return nil, err
	}
	entries, err := f.meta.Get("links").AsArray()
	if err != nil {
		return nil, err
	}
	if numbering, err := f.pkg.Numbering(); err != nil {
		return nil, err
	} else if numbering == nil || numbering.Num(bib.Numbering) == nil {
		f.log.Warn("numbering %s of the bibliography is not defined by the template", bib.Numbering)
	}

	out := make([]*xml.Node, 0, len(entries))
	for _, entry := range entries {
		var description string
		if entry.IsMap() {
			description, err = entry.String("description")
		} else {
			description, err = entry.String("")
		}
		if err != nil {
			return nil, err
		}
		p := generator.Paragraph(styleID, generator.TextRun(description, generator.RunFormat{}))
		p.First("w:pPr").Append(generator.NumPr(0, bib.Numbering))
		out = append(out, p)
	}
	return out, nil
}

// authorsDetail writes one details paragraph per author and language. A details value of
// substitute.None leaves that paragraph out.
func (f *filler) authorsDetail() ([]*xml.Node, error) {
	styleID, err := f.styleID(f.styles.AuthorDetail)
	if err != nil {
		return nil, err
	}
	authors, err := f.meta.Get("authors").AsArray()
	if err != nil {
		return nil, err
	}

	var out []*xml.Node
	for _, author := range authors {
		for _, lang := range f.languages {
			line, err := author.String("details_" + lang)
			if err != nil {
				return nil, err
			}
			if line == substitute.None {
				continue
			}
			p := generator.Paragraph(styleID, generator.TextRun(line, generator.RunFormat{}))
			p.First("w:pPr").Append(xml.Build("w:spacing", []xml.Attr{
				{Name: "w:before", Value: "30"},
				{Name: "w:after", Value: "120"},
			}))
			out = append(out, p)
		}
	}
	return out, nil
}
