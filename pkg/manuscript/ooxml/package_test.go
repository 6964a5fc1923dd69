package ooxml

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

const (
	testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
<Override PartName="/word/header1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>
<Override PartName="/word/header2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>
<Override PartName="/word/header10.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>
</Types>`

	testPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	testDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>
</Relationships>`

	testDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:x="urn:custom"><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p><w:sectPr/></w:body></w:document>`

	testStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:style w:type="paragraph" w:styleId="Normal"><w:name w:val="Normal"/></w:style></w:styles>`

	testHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:hdr>`
)

// buildDocx zips name/content pairs in order.
func buildDocx(t *testing.T, files ...string) []byte {
	t.Helper()
	if len(files)%2 != 0 {
		t.Fatal("buildDocx needs name/content pairs")
	}
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for i := 0; i < len(files); i += 2 {
		f, err := w.Create(files[i])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(files[i+1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func standardFiles() []string {
	return []string{
		"[Content_Types].xml", testContentTypes,
		"_rels/.rels", testPackageRels,
		"word/document.xml", testDocument,
		"word/_rels/document.xml.rels", testDocumentRels,
		"word/styles.xml", testStyles,
		"word/header10.xml", strings.Replace(testHeader, "%s", "ten", 1),
		"word/header2.xml", strings.Replace(testHeader, "%s", "two", 1),
		"word/header1.xml", strings.Replace(testHeader, "%s", "one", 1),
		"word/media/image1.png", "PNGDATA",
	}
}

func readPackage(t *testing.T, data []byte) *Package {
	t.Helper()
	pkg, err := Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return pkg
}

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		data     func(t *testing.T) []byte
		wantKind error
	}{
		{
			name: "valid package",
			data: func(t *testing.T) []byte { return buildDocx(t, standardFiles()...) },
		},
		{
			name:     "not a zip file",
			data:     func(t *testing.T) []byte { return []byte("not a zip file") },
			wantKind: docerr.ErrMalformedInput,
		},
		{
			name:     "missing content types",
			data:     func(t *testing.T) []byte { return buildDocx(t, "word/document.xml", testDocument) },
			wantKind: docerr.ErrMissingResource,
		},
		{
			name: "malformed content types",
			data: func(t *testing.T) []byte {
				return buildDocx(t, "[Content_Types].xml", "<Types><Default")
			},
			wantKind: docerr.ErrMalformedInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data(t)
			pkg, err := Read(bytes.NewReader(data), int64(len(data)))
			if tt.wantKind == nil {
				if err != nil {
					t.Fatalf("Read() error = %v", err)
				}
				if pkg == nil {
					t.Fatal("expected a package")
				}
				return
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("Read() error = %v, want %v", err, tt.wantKind)
			}
		})
	}
}

func TestTypedParts(t *testing.T) {
	pkg := readPackage(t, buildDocx(t, standardFiles()...))

	doc, err := pkg.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if got := doc.Root().TextContent(); got != "Hello" {
		t.Errorf("document text = %q", got)
	}

	styles, err := pkg.Styles()
	if err != nil || styles == nil {
		t.Fatalf("Styles() = %v, %v", styles, err)
	}
	if styles.ByID("Normal") == nil {
		t.Error("Normal style not found")
	}

	numbering, err := pkg.Numbering()
	if err != nil || numbering != nil {
		t.Errorf("Numbering() = %v, %v; want absent", numbering, err)
	}
	footnotes, err := pkg.Footnotes()
	if err != nil || footnotes != nil {
		t.Errorf("Footnotes() = %v, %v; want absent", footnotes, err)
	}

	headers, err := pkg.Headers()
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, h := range headers {
		texts = append(texts, h.Root().TextContent())
	}
	if got := strings.Join(texts, ","); got != "one,two,ten" {
		t.Errorf("headers in order = %s", got)
	}

	_, err = pkg.PartOfType(TypeHeader)
	if !docerr.HasCode(err, docerr.CodeAmbiguousPart) {
		t.Errorf("PartOfType(header) error = %v, want AmbiguousPart", err)
	}

	rels, err := doc.Rels()
	if err != nil {
		t.Fatal(err)
	}
	if rel, ok := rels.Get("rId2"); !ok || rel.Target != "header1.xml" {
		t.Errorf("rId2 = %+v, %v", rel, ok)
	}
}

func TestDocumentMissing(t *testing.T) {
	pkg := readPackage(t, buildDocx(t, "[Content_Types].xml", testContentTypes))
	_, err := pkg.Document()
	if !errors.Is(err, docerr.ErrMissingResource) || !docerr.HasCode(err, docerr.CodeMissingRequiredPart) {
		t.Errorf("Document() error = %v, want MissingRequiredPart", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	pkg := readPackage(t, buildDocx(t, standardFiles()...))

	doc, err := pkg.Document()
	if err != nil {
		t.Fatal(err)
	}
	body, _ := doc.Body()
	body.InsertAt(-2, xml.MustParse(`<w:p><w:r><w:t>World</w:t></w:r></w:p>`).DocumentElement().Detach())

	rels, _ := doc.Rels()
	id := rels.Add(RelImage, "media/image2.png", "")
	if id != "rId3" {
		t.Errorf("Add() id = %s, want rId3", id)
	}

	var buf bytes.Buffer
	if err := pkg.Save(&buf); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if zr.File[0].Name != "[Content_Types].xml" {
		t.Errorf("first entry = %s", zr.File[0].Name)
	}
	contents := make(map[string]string)
	for _, f := range zr.File {
		rc, _ := f.Open()
		b, _ := io.ReadAll(rc)
		rc.Close()
		contents[f.Name] = string(b)
	}

	if contents["word/media/image1.png"] != "PNGDATA" {
		t.Error("untouched media was not copied byte for byte")
	}
	if contents["word/header2.xml"] != strings.Replace(testHeader, "%s", "two", 1) {
		t.Error("unloaded header was rewritten")
	}

	saved := contents["word/document.xml"]
	if !strings.Contains(saved, "World") {
		t.Error("inserted paragraph missing from saved document")
	}
	if strings.Contains(saved, "xmlns:wp=") {
		t.Error("unused known namespace wp was kept")
	}
	if !strings.Contains(saved, `xmlns:x="urn:custom"`) {
		t.Error("unknown namespace declaration was dropped")
	}
	if !strings.Contains(contents["word/_rels/document.xml.rels"], `Id="rId3"`) {
		t.Error("added relationship missing from saved sidecar")
	}

	again := readPackage(t, buf.Bytes())
	doc2, err := again.Document()
	if err != nil {
		t.Fatal(err)
	}
	if got := doc2.Root().TextContent(); got != "HelloWorld" {
		t.Errorf("reloaded text = %q", got)
	}
}

func TestUniqueMediaTarget(t *testing.T) {
	pkg := readPackage(t, buildDocx(t, standardFiles()...))

	if got := pkg.UniqueMediaTarget("chart.png"); got != "word/media/chart.png" {
		t.Errorf("free name = %s", got)
	}
	if got := pkg.UniqueMediaTarget("image1.png"); got != "word/media/image1_1.png" {
		t.Errorf("first collision = %s", got)
	}
	pkg.WriteFile("word/media/image1_1.png", []byte("x"))
	if got := pkg.UniqueMediaTarget("image1.png"); got != "word/media/image1_2.png" {
		t.Errorf("second collision = %s", got)
	}
}

func TestPathForTarget(t *testing.T) {
	tests := []struct {
		source, target, want string
	}{
		{"word/document.xml", "styles.xml", "word/styles.xml"},
		{"word/document.xml", "media/a.png", "word/media/a.png"},
		{"word/document.xml", "/customXml/item1.xml", "customXml/item1.xml"},
		{"", "word/document.xml", "word/document.xml"},
		{"word/header1.xml", "../customXml/x.xml", "customXml/x.xml"},
	}
	for _, tt := range tests {
		if got := PathForTarget(tt.source, tt.target); got != tt.want {
			t.Errorf("PathForTarget(%q, %q) = %q, want %q", tt.source, tt.target, got, tt.want)
		}
	}

	if got := TargetForPath("word/document.xml", "word/media/a.png"); got != "media/a.png" {
		t.Errorf("TargetForPath() = %q", got)
	}
	if got := RelsPathFor("word/document.xml"); got != "word/_rels/document.xml.rels" {
		t.Errorf("RelsPathFor() = %q", got)
	}
	if got := RelsPathFor(""); got != "_rels/.rels" {
		t.Errorf("RelsPathFor(\"\") = %q", got)
	}
}

func TestCopyFileFrom(t *testing.T) {
	src := readPackage(t, buildDocx(t, standardFiles()...))
	dst := New()

	if err := dst.CopyFileFrom(src, "word/header1.xml"); err != nil {
		t.Fatal(err)
	}
	if got := dst.ContentTypes().TypeOf("word/header1.xml"); got != TypeHeader {
		t.Errorf("copied header content type = %q", got)
	}
	if err := dst.CopyFileFrom(src, "word/media/image1.png"); err != nil {
		t.Fatal(err)
	}
	if got := dst.ContentTypes().TypeOf("word/media/image1.png"); got != "image/png" {
		t.Errorf("copied media content type = %q", got)
	}
	if err := dst.CopyFileFrom(src, "word/missing.xml"); !errors.Is(err, docerr.ErrMissingResource) {
		t.Errorf("copy missing file error = %v", err)
	}

	if err := dst.CopyFileAs(src, "word/header1.xml", "word/header7.xml"); err != nil {
		t.Fatal(err)
	}
	if got := dst.ContentTypes().TypeOf("word/header7.xml"); got != TypeHeader {
		t.Errorf("renamed header content type = %q", got)
	}
	want, _ := src.ReadFile("word/header1.xml")
	if got, _ := dst.ReadFile("word/header7.xml"); string(got) != string(want) {
		t.Errorf("renamed header content differs")
	}
}

func TestDeleteFileRemovesRelationships(t *testing.T) {
	headerRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
</Relationships>`
	pkg := readPackage(t, buildDocx(t, append(standardFiles(), "word/_rels/header1.xml.rels", headerRels)...))

	rels, err := pkg.Rels("word/header1.xml")
	if err != nil {
		t.Fatal(err)
	}
	rels.Add(RelHyperlink, "https://example.org", TargetModeExternal)

	pkg.DeleteFile("word/header1.xml")

	for _, name := range []string{"word/header1.xml", "word/_rels/header1.xml.rels"} {
		if pkg.Exists(name) {
			t.Errorf("%s still exists", name)
		}
		if _, err := pkg.ReadFile(name); err == nil {
			t.Errorf("ReadFile(%s) succeeded after delete", name)
		}
	}
	if got := pkg.ContentTypes().TypeOf("word/header1.xml"); got == TypeHeader {
		t.Errorf("header override kept after delete")
	}
	if again, err := pkg.Rels("word/header1.xml"); err != nil || again.Len() != 0 {
		t.Errorf("Rels after delete = %v, %v, want an empty list", again, err)
	}

	var buf bytes.Buffer
	if err := pkg.Save(&buf); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if f.Name == "word/header1.xml" || f.Name == "word/_rels/header1.xml.rels" {
			t.Errorf("saved package still holds %s", f.Name)
		}
	}
}

func TestEnsureNumbering(t *testing.T) {
	pkg := readPackage(t, buildDocx(t, standardFiles()...))

	numbering, err := pkg.EnsureNumbering()
	if err != nil {
		t.Fatal(err)
	}
	if numbering == nil || numbering.Part().Path() != "word/numbering.xml" {
		t.Fatalf("EnsureNumbering() = %v", numbering)
	}
	doc, _ := pkg.Document()
	rels, _ := doc.Rels()
	if got := rels.ByType(RelNumbering); len(got) != 1 || got[0].Target != "numbering.xml" {
		t.Errorf("numbering relationships = %+v", got)
	}

	again, err := pkg.EnsureNumbering()
	if err != nil {
		t.Fatal(err)
	}
	if again.Part() != numbering.Part() {
		t.Error("second call created another numbering part")
	}
}
