// Package ooxml models a WordprocessingML package: a ZIP archive of XML parts, its content-type
// registry, the relationship sidecars of each part, and typed accessors for the parts the
// conversion pipeline edits (main document, styles, numbering, headers and footers).
//
// Parts are parsed lazily on first access and re-serialized on Save; files that were never
// accessed are written back byte for byte.
package ooxml

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// Package is an in-memory OOXML package.
type Package struct {
	files        map[string][]byte
	order        []string
	parts        map[string]*Part
	rels         map[string]*Relationships
	contentTypes *ContentTypes
}

// Part is one XML part of a package.
type Part struct {
	pkg  *Package
	path string
	doc  *xml.Node
}

// New creates an empty package with the default rels/xml content types.
func New() *Package {
	ct := &ContentTypes{}
	ct.EnsureDefault("rels", TypeRelationships)
	ct.EnsureDefault("xml", TypeXML)
	return &Package{
		files:        make(map[string][]byte),
		parts:        make(map[string]*Part),
		rels:         make(map[string]*Relationships),
		contentTypes: ct,
	}
}

// Open reads a .docx file.
func Open(filename string) (*Package, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	pkg, err := Read(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, docerr.WithContext(err, "open package", map[string]interface{}{"file": filename})
	}
	return pkg, nil
}

// Read loads a package from a ZIP archive.
func Read(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, docerr.Wrap(docerr.KindMalformedInput, docerr.CodeMalformedXML, "read package", "", err)
	}

	pkg := New()
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file.Name, err)
		}
		pkg.putFile(file.Name, content)
	}
	if err := pkg.loadContentTypes(); err != nil {
		return nil, err
	}
	return pkg, nil
}

// OpenDir loads an unpacked package from a directory tree.
func OpenDir(dir string) (*Package, error) {
	pkg, err := OpenFS(os.DirFS(dir))
	if err != nil {
		return nil, docerr.WithContext(err, "open package directory", map[string]interface{}{"dir": dir})
	}
	return pkg, nil
}

// OpenFS loads an unpacked package from the root of a file system.
func OpenFS(fsys fs.FS) (*Package, error) {
	pkg := New()
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		pkg.putFile(p, content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read package files: %w", err)
	}
	if err := pkg.loadContentTypes(); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (p *Package) loadContentTypes() error {
	data, ok := p.files[contentTypesPath]
	if !ok {
		return docerr.New(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "read package", contentTypesPath, "")
	}
	ct, err := ParseContentTypes(data)
	if err != nil {
		return err
	}
	p.contentTypes = ct
	return nil
}

func (p *Package) putFile(name string, content []byte) {
	if _, exists := p.files[name]; !exists {
		p.order = append(p.order, name)
	}
	p.files[name] = content
}

// ContentTypes returns the package's content-type registry.
func (p *Package) ContentTypes() *ContentTypes {
	return p.contentTypes
}

// Files returns every file path in archive order.
func (p *Package) Files() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Exists reports whether the package contains a file.
func (p *Package) Exists(name string) bool {
	_, ok := p.files[name]
	return ok
}

// ReadFile returns the current content of a file. Loaded parts and relationship sidecars are
// serialized from their in-memory state.
func (p *Package) ReadFile(name string) ([]byte, error) {
	if part, ok := p.parts[name]; ok {
		return part.doc.Serialize()
	}
	if strings.HasSuffix(name, ".rels") {
		for source, rels := range p.rels {
			if RelsPathFor(source) == name {
				return rels.Node().Serialize()
			}
		}
	}
	if name == contentTypesPath {
		return p.contentTypes.Node().Serialize()
	}
	data, ok := p.files[name]
	if !ok {
		return nil, docerr.New(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "read file", name, "")
	}
	return data, nil
}

// WriteFile stores raw content, replacing any loaded state for that path.
func (p *Package) WriteFile(name string, content []byte) {
	delete(p.parts, name)
	for source := range p.rels {
		if RelsPathFor(source) == name {
			delete(p.rels, source)
		}
	}
	p.putFile(name, content)
}

// DeleteFile removes a file, its content-type override and its relationship sidecar.
func (p *Package) DeleteFile(name string) {
	if _, ok := p.files[name]; !ok {
		return
	}
	p.removeFile(name)
	delete(p.parts, name)
	p.contentTypes.RemoveOverride(name)

	delete(p.rels, name)
	p.removeFile(RelsPathFor(name))
}

func (p *Package) removeFile(name string) {
	if _, ok := p.files[name]; !ok {
		return
	}
	delete(p.files, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// CopyFileFrom copies a file from another package together with its content-type registration.
func (p *Package) CopyFileFrom(other *Package, name string) error {
	return p.CopyFileAs(other, name, name)
}

// CopyFileAs copies a file from another package to a different path, registering the content
// type the file had in the other package.
func (p *Package) CopyFileAs(other *Package, name, as string) error {
	data, err := other.ReadFile(name)
	if err != nil {
		return err
	}
	p.WriteFile(as, data)

	override := "/" + name
	for _, o := range other.contentTypes.Overrides {
		if strings.EqualFold(o.PartName, override) {
			p.contentTypes.AddOverride(as, o.ContentType)
			return nil
		}
	}
	if ext := strings.TrimPrefix(path.Ext(as), "."); ext != "" {
		p.contentTypes.EnsureDefault(ext, other.contentTypes.TypeOf(name))
	}
	return nil
}

// Part returns the parsed part at a package path.
func (p *Package) Part(name string) (*Part, error) {
	if part, ok := p.parts[name]; ok {
		return part, nil
	}
	data, ok := p.files[name]
	if !ok {
		return nil, docerr.New(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "load part", name, "")
	}
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, docerr.WithContext(err, "load part", map[string]interface{}{"part": name})
	}
	part := &Part{pkg: p, path: name, doc: doc}
	p.parts[name] = part
	return part, nil
}

// AddPart creates or replaces a part with the given document and registers its content type.
func (p *Package) AddPart(name, contentType string, doc *xml.Node) *Part {
	p.putFile(name, nil)
	part := &Part{pkg: p, path: name, doc: doc}
	p.parts[name] = part
	if contentType != "" {
		p.contentTypes.AddOverride(name, contentType)
	}
	return part
}

// Rels returns the relationship sidecar of a part ("" for the package relationships). A missing
// sidecar yields an empty list that is written on Save once something is added to it.
func (p *Package) Rels(partName string) (*Relationships, error) {
	if rels, ok := p.rels[partName]; ok {
		return rels, nil
	}
	relsPath := RelsPathFor(partName)
	rels := &Relationships{}
	if data, ok := p.files[relsPath]; ok {
		parsed, err := ParseRelationships(data)
		if err != nil {
			return nil, docerr.WithContext(err, "load relationships", map[string]interface{}{"part": relsPath})
		}
		rels = parsed
	}
	p.rels[partName] = rels
	return rels, nil
}

// PartsOfType returns every part whose content type is contentType, ordered by name with
// numeric suffixes in natural order (header2 before header10).
func (p *Package) PartsOfType(contentType string) ([]*Part, error) {
	var names []string
	for _, name := range p.order {
		if name == contentTypesPath || strings.HasSuffix(name, ".rels") {
			continue
		}
		if p.contentTypes.TypeOf(name) == contentType {
			names = append(names, name)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		di, bi := path.Split(names[i])
		dj, bj := path.Split(names[j])
		if di != dj {
			return di < dj
		}
		if len(bi) != len(bj) {
			return len(bi) < len(bj)
		}
		return bi < bj
	})

	parts := make([]*Part, 0, len(names))
	for _, name := range names {
		part, err := p.Part(name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// PartOfType returns the single part of a content type, nil if there is none, and an
// AmbiguousPart error if there are several.
func (p *Package) PartOfType(contentType string) (*Part, error) {
	parts, err := p.PartsOfType(contentType)
	if err != nil {
		return nil, err
	}
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return nil, docerr.New(docerr.KindAmbiguousMatch, docerr.CodeAmbiguousPart, "resolve part", contentType,
			fmt.Sprintf("%d parts share this content type", len(parts)))
	}
}

// Document returns the main document part.
func (p *Package) Document() (*Part, error) {
	for _, ct := range []string{TypeDocument, TypeDocumentMacro, TypeTemplate} {
		part, err := p.PartOfType(ct)
		if err != nil {
			return nil, err
		}
		if part != nil {
			return part, nil
		}
	}
	return nil, docerr.New(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "resolve part", "main document", "")
}

// Styles returns the style sheet, or nil if the package has none.
func (p *Package) Styles() (*Styles, error) {
	part, err := p.PartOfType(TypeStyles)
	if err != nil || part == nil {
		return nil, err
	}
	return StylesFromPart(part)
}

// Numbering returns the numbering table, or nil if the package has none.
func (p *Package) Numbering() (*Numbering, error) {
	part, err := p.PartOfType(TypeNumbering)
	if err != nil || part == nil {
		return nil, err
	}
	return NumberingFromPart(part)
}

func (p *Package) Settings() (*Part, error)  { return p.PartOfType(TypeSettings) }
func (p *Package) FontTable() (*Part, error) { return p.PartOfType(TypeFontTable) }
func (p *Package) Comments() (*Part, error)  { return p.PartOfType(TypeComments) }
func (p *Package) Footnotes() (*Part, error) { return p.PartOfType(TypeFootnotes) }

func (p *Package) Headers() ([]*Part, error) { return p.PartsOfType(TypeHeader) }
func (p *Package) Footers() ([]*Part, error) { return p.PartsOfType(TypeFooter) }

// UniqueMediaTarget returns an unused path under word/media/ for a file name, suffixing _1, _2,
// ... before the extension on collision.
func (p *Package) UniqueMediaTarget(name string) string {
	candidate := "word/media/" + name
	if !p.Exists(candidate) {
		return candidate
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = fmt.Sprintf("word/media/%s_%d%s", stem, i, ext)
		if !p.Exists(candidate) {
			return candidate
		}
	}
}

// PathForTarget resolves a relationship target of a source part to a package path.
func PathForTarget(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(sourcePart), target)
}

// TargetForPath expresses a package path as a relationship target of a source part.
func TargetForPath(sourcePart, name string) string {
	dir := path.Dir(sourcePart)
	if dir == "." {
		return name
	}
	if strings.HasPrefix(name, dir+"/") {
		return strings.TrimPrefix(name, dir+"/")
	}
	return "/" + name
}

// Save writes the package as a ZIP archive. Loaded parts with a known content type get their
// namespace declarations fixed up first.
func (p *Package) Save(w io.Writer) error {
	zw := zip.NewWriter(w)

	write := func(name string, content []byte) error {
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := fw.Write(content); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return nil
	}

	ct, err := p.contentTypes.Node().Serialize()
	if err != nil {
		return err
	}
	if err := write(contentTypesPath, ct); err != nil {
		return err
	}

	relsByPath := make(map[string]*Relationships, len(p.rels))
	for source, rels := range p.rels {
		relsByPath[RelsPathFor(source)] = rels
	}

	written := map[string]bool{contentTypesPath: true}
	for _, name := range p.order {
		if written[name] {
			continue
		}
		content, err := p.serialize(name, relsByPath)
		if err != nil {
			return docerr.WithContext(err, "save package", map[string]interface{}{"part": name})
		}
		if err := write(name, content); err != nil {
			return err
		}
		written[name] = true
	}

	var pending []string
	for relsPath, rels := range relsByPath {
		if !written[relsPath] && rels.Len() > 0 {
			pending = append(pending, relsPath)
		}
	}
	sort.Strings(pending)
	for _, relsPath := range pending {
		content, err := relsByPath[relsPath].Node().Serialize()
		if err != nil {
			return err
		}
		if err := write(relsPath, content); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	return nil
}

func (p *Package) serialize(name string, relsByPath map[string]*Relationships) ([]byte, error) {
	if part, ok := p.parts[name]; ok {
		if p.contentTypes.TypeOf(name) != "" {
			if root := part.Root(); root != nil {
				FixNamespaces(root)
			}
		}
		return part.doc.Serialize()
	}
	if rels, ok := relsByPath[name]; ok {
		return rels.Node().Serialize()
	}
	return p.files[name], nil
}

// SaveFile writes the package to a file. Nothing is written if serialization fails.
func (p *Package) SaveFile(filename string) error {
	var buf bytes.Buffer
	if err := p.Save(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

func (pt *Part) Package() *Package { return pt.pkg }
func (pt *Part) Path() string      { return pt.path }

// Doc returns the document node of the part.
func (pt *Part) Doc() *xml.Node { return pt.doc }

// Root returns the document element of the part.
func (pt *Part) Root() *xml.Node { return pt.doc.DocumentElement() }

// SetDoc replaces the part's content.
func (pt *Part) SetDoc(doc *xml.Node) { pt.doc = doc }

func (pt *Part) ContentType() string { return pt.pkg.contentTypes.TypeOf(pt.path) }

// Rels returns the part's relationship sidecar.
func (pt *Part) Rels() (*Relationships, error) { return pt.pkg.Rels(pt.path) }

// Body returns w:body of a main document part.
func (pt *Part) Body() (*xml.Node, error) {
	body := pt.Root().First("w:body")
	if body == nil {
		return nil, docerr.New(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "resolve body", pt.path, "no w:body element")
	}
	return body, nil
}
