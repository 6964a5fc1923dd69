package manuscript

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/housestyle"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/substitute"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

const paperFrontMatter = `---
ispras_templates:
  header_ru: Заголовок статьи
  header_en: Paper title
  abstract_ru: Аннотация.
  abstract_en: Abstract text.
  keywords_ru: слова
  keywords_en: words
  for_citation_ru: Иванов И. Статья.
  for_citation_en: Ivanov I. Paper.
  acknowledgements_ru: Спасибо.
  acknowledgements_en: "@none"
  page_header_ru: "@use_citation"
  page_header_en: Short title
  authors:
    - name_ru: Иван Иванов
      name_en: Ivan Ivanov
      orcid: 0000-0001-2345-6789
      email: ivan@example.org
      organizations: [isp]
      details_ru: Иванов Иван, аспирант.
      details_en: Ivan Ivanov, PhD student.
  organizations:
    - id: isp
      name_ru: ИСП РАН
      name_en: ISP RAS
  links:
    - id: knuth
      description: D. Knuth. The Art of Computer Programming.
    - Plain reference.
---
`

func quietConfig() *Config {
	return &Config{Logger: logging.Discard()}
}

// convertFile writes src into a temporary directory, converts it and reopens the result.
func convertFile(t *testing.T, src string, cfg *Config) (*ooxml.Package, string) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "paper.md")
	require.NoError(t, os.WriteFile(source, []byte(src), 0o644))
	return convertIn(t, dir, cfg), dir
}

func convertIn(t *testing.T, dir string, cfg *Config) *ooxml.Package {
	t.Helper()
	conv, err := NewConverter(cfg)
	require.NoError(t, err)
	target := filepath.Join(dir, "paper.docx")
	require.NoError(t, conv.Convert(context.Background(), filepath.Join(dir, "paper.md"), target))
	pkg, err := ooxml.Open(target)
	require.NoError(t, err)
	return pkg
}

func documentRoot(t *testing.T, pkg *ooxml.Package) *xml.Node {
	t.Helper()
	doc, err := pkg.Document()
	require.NoError(t, err)
	return doc.Root()
}

func paragraphTexts(root *xml.Node) []string {
	var out []string
	for _, p := range substitute.Paragraphs(root) {
		out = append(out, substitute.ParagraphText(p))
	}
	return out
}

func paragraphWithText(t *testing.T, root *xml.Node, text string) *xml.Node {
	t.Helper()
	var found []*xml.Node
	for _, p := range substitute.Paragraphs(root) {
		if substitute.ParagraphText(p) == text {
			found = append(found, p)
		}
	}
	require.Len(t, found, 1, "paragraphs with text %q", text)
	return found[0]
}

func styleID(t *testing.T, pkg *ooxml.Package, name string) string {
	t.Helper()
	styles, err := pkg.Styles()
	require.NoError(t, err)
	st := styles.ByName(name)
	require.NotNil(t, st, "style %q", name)
	return st.ID()
}

func pStyle(p *xml.Node) string {
	return p.First("w:pPr").First("w:pStyle").Attr("w:val")
}

func assertNoPlaceholders(t *testing.T, pkg *ooxml.Package) {
	t.Helper()
	for _, name := range pkg.Files() {
		if !strings.HasSuffix(name, ".xml") {
			continue
		}
		data, err := pkg.ReadFile(name)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "{{{", "residual placeholder in %s", name)
	}
}

// minimalTemplate unpacks the house template into a directory whose main document holds only
// the given paragraphs and whose document relates to nothing but styles and numbering.
func minimalTemplate(t *testing.T, paragraphs ...string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "template")
	require.NoError(t, os.CopyFS(dir, housestyle.FS()))
	for _, name := range []string{"header1.xml", "header2.xml", "footer1.xml"} {
		require.NoError(t, os.Remove(filepath.Join(dir, "word", name)))
	}

	var body strings.Builder
	for _, text := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>` +
		body.String() + `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="` + ooxml.RelNumbering + `" Target="numbering.xml"/>` +
		`<Relationship Id="rId2" Type="` + ooxml.RelStyles + `" Target="styles.xml"/>` +
		`</Relationships>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "word", "document.xml"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "word", "_rels", "document.xml.rels"), []byte(rels), 0o644))
	return dir
}

func TestConvertTwoParagraphsAndAuthor(t *testing.T) {
	src := `---
authors:
  - name_ru: Иван Иванов
    orcid: 0000-0001-2345-6789
    email: ivan@example.org
    organizations: [isp]
organizations:
  - id: isp
    name_ru: ИСП РАН
---
First paragraph.

Second paragraph.
`
	cfg := quietConfig()
	cfg.Languages = []string{"ru"}
	cfg.Template = minimalTemplate(t, "{{{authors_ru}}}", "{{{body}}}")

	pkg, _ := convertFile(t, src, cfg)
	root := documentRoot(t, pkg)

	assert.Equal(t, []string{
		"1Иван Иванов, ORCID: 0000-0001-2345-6789, <ivan@example.org>",
		"First paragraph.",
		"Second paragraph.",
	}, paragraphTexts(root))

	author := paragraphWithText(t, root, "1Иван Иванов, ORCID: 0000-0001-2345-6789, <ivan@example.org>")
	assert.Equal(t, styleID(t, pkg, "ispAuthor"), pStyle(author))
	runs := author.All(xml.ByName("w:r"))
	require.Len(t, runs, 2)
	assert.Equal(t, "superscript", runs[0].First("w:rPr").First("w:vertAlign").Attr("w:val"))
	assert.Equal(t, "1", runs[0].TextContent())

	mainText := styleID(t, pkg, "ispText_main")
	for _, text := range []string{"First paragraph.", "Second paragraph."} {
		assert.Equal(t, mainText, pStyle(paragraphWithText(t, root, text)))
	}

	body := root.First("w:body")
	assert.True(t, body.Child(-1).IsElement("w:sectPr"), "section properties stay last")
	assertNoPlaceholders(t, pkg)
}

func TestConvertAuthorsWithoutOrganizations(t *testing.T) {
	src := `---
authors:
  - name_ru: Иван Иванов
    orcid: 0000-0001-2345-6789
    email: ivan@example.org
  - name_ru: Пётр Петров
    orcid: 0000-0002-0000-0000
    email: petr@example.org
---
First paragraph.

Second paragraph.
`
	cfg := quietConfig()
	cfg.Languages = []string{"ru"}
	cfg.Template = minimalTemplate(t, "{{{authors_ru}}}", "{{{body}}}")

	pkg, _ := convertFile(t, src, cfg)
	root := documentRoot(t, pkg)

	assert.Equal(t, []string{
		"1Иван Иванов, ORCID: 0000-0001-2345-6789, <ivan@example.org>",
		"2Пётр Петров, ORCID: 0000-0002-0000-0000, <petr@example.org>",
		"First paragraph.",
		"Second paragraph.",
	}, paragraphTexts(root))

	for i, text := range []string{
		"1Иван Иванов, ORCID: 0000-0001-2345-6789, <ivan@example.org>",
		"2Пётр Петров, ORCID: 0000-0002-0000-0000, <petr@example.org>",
	} {
		runs := paragraphWithText(t, root, text).All(xml.ByName("w:r"))
		require.Len(t, runs, 2)
		assert.Equal(t, "superscript", runs[0].First("w:rPr").First("w:vertAlign").Attr("w:val"))
		assert.Equal(t, strconv.Itoa(i+1), runs[0].TextContent())
	}
	assertNoPlaceholders(t, pkg)
}

func TestConvertWithDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "paper.md")
	target := filepath.Join(dir, "paper.docx")
	require.NoError(t, os.WriteFile(source, []byte(paperFrontMatter+"\n# Introduction\n\nText.\n"), 0o644))

	conv, err := NewConverter(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, conv.Convert(context.Background(), source, target))

	pkg, err := ooxml.Open(target)
	require.NoError(t, err)
	texts := paragraphTexts(documentRoot(t, pkg))
	assert.Contains(t, texts, "1. Introduction")
	assert.Contains(t, texts, "Text.")
	assertNoPlaceholders(t, pkg)
	assert.FileExists(t, source+".json")
}

func TestConvertWithHouseTemplate(t *testing.T) {
	src := paperFrontMatter + `
# Introduction {#sec:intro}

First paragraph cites <span class="cite">knuth</span>.

Second paragraph refers to <span class="ref">sec:intro</span>.
`
	pkg, _ := convertFile(t, src, quietConfig())
	root := documentRoot(t, pkg)
	texts := paragraphTexts(root)

	assert.Contains(t, texts, "1. Introduction")
	assert.Contains(t, texts, "First paragraph cites [1].")
	assert.Contains(t, texts, "Second paragraph refers to 1.")
	assert.Contains(t, texts, "1Ivan Ivanov, ORCID: 0000-0001-2345-6789, <ivan@example.org>")
	assert.Contains(t, texts, "1ИСП РАН")
	assert.Contains(t, texts, "Иванов Иван, аспирант.")
	assert.Contains(t, texts, "Ivan Ivanov, PhD student.")
	assertNoPlaceholders(t, pkg)

	heading := paragraphWithText(t, root, "1. Introduction")
	assert.Equal(t, styleID(t, pkg, "ispSubHeader-1 level"), pStyle(heading))

	for _, text := range []string{"D. Knuth. The Art of Computer Programming.", "Plain reference."} {
		p := paragraphWithText(t, root, text)
		assert.Equal(t, styleID(t, pkg, "ispLitList"), pStyle(p))
		assert.Equal(t, "80", p.First("w:pPr").First("w:numPr").First("w:numId").Attr("w:val"))
	}

	for _, text := range texts {
		assert.NotContains(t, text, "@none")
		assert.NotContains(t, text, "@use_citation")
	}
}

func TestConvertTransfersTemplateParts(t *testing.T) {
	pkg, _ := convertFile(t, paperFrontMatter+"\nText.\n", quietConfig())
	root := documentRoot(t, pkg)
	doc, err := pkg.Document()
	require.NoError(t, err)
	rels, err := doc.Rels()
	require.NoError(t, err)

	refs := root.Descendants(xml.ByName("w:headerReference", "w:footerReference"))
	require.Len(t, refs, 3)
	for _, ref := range refs {
		rel, ok := rels.Get(ref.Attr("r:id"))
		require.True(t, ok, "relationship %s", ref.Attr("r:id"))
		part, err := pkg.Part(ooxml.PathForTarget(doc.Path(), rel.Target))
		require.NoError(t, err)
		if ref.IsElement("w:headerReference") {
			assert.Equal(t, ooxml.RelHeader, rel.Type)
			assert.Equal(t, ooxml.TypeHeader, part.ContentType())
		} else {
			assert.Equal(t, ooxml.RelFooter, rel.Type)
		}
	}

	headers, err := pkg.Headers()
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Contains(t, headers[0].Root().TextContent(), "Иванов И. Статья.")
	assert.Contains(t, headers[1].Root().TextContent(), "Short title")

	for _, relType := range []string{ooxml.RelStyles, ooxml.RelNumbering, ooxml.RelSettings, ooxml.RelTheme, ooxml.RelFontTable} {
		assert.Len(t, rels.ByType(relType), 1, relType)
	}
	assert.True(t, pkg.Exists("word/theme/theme1.xml"))
	assert.False(t, pkg.Exists("docProps/core.xml"))
}

func TestConvertLists(t *testing.T) {
	src := paperFrontMatter + "\n- apple\n- pear\n\n1. first\n2. second\n"
	pkg, _ := convertFile(t, src, quietConfig())
	root := documentRoot(t, pkg)
	numbering, err := pkg.Numbering()
	require.NoError(t, err)

	tests := []struct {
		text     string
		style    string
		abstract string
	}{
		{"apple", "ispList1", "43"},
		{"pear", "ispList1", "43"},
		{"first", "ispNumList", "33"},
		{"second", "ispNumList", "33"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p := paragraphWithText(t, root, tt.text)
			assert.Equal(t, styleID(t, pkg, tt.style), pStyle(p))
			numID := p.First("w:pPr").First("w:numPr").First("w:numId").Attr("w:val")
			num := numbering.Num(numID)
			require.NotNil(t, num, "numbering instance %s", numID)
			assert.Equal(t, tt.abstract, num.AbstractNumID())
		})
	}

	bullets := paragraphWithText(t, root, "apple").First("w:pPr").First("w:numPr").First("w:numId").Attr("w:val")
	ordered := paragraphWithText(t, root, "first").First("w:pPr").First("w:numPr").First("w:numId").Attr("w:val")
	assert.Equal(t, "10000", bullets)
	assert.Equal(t, "10001", ordered)
	assert.Empty(t, root.Descendants(xml.OfKind(xml.CommentNode)), "list markers are removed")
}

func TestConvertKeepsGeneratedRelationships(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 30, 10))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plot.png"), buf.Bytes(), 0o644))

	src := paperFrontMatter + "\n![Plot](plot.png){width=3cm}\n\nSee [site](https://example.org).\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.md"), []byte(src), 0o644))
	pkg := convertIn(t, dir, quietConfig())

	doc, err := pkg.Document()
	require.NoError(t, err)
	rels, err := doc.Rels()
	require.NoError(t, err)
	root := doc.Root()

	blips := root.Descendants(xml.ByName("a:blip"))
	require.Len(t, blips, 1)
	rel, ok := rels.Get(blips[0].Attr("r:embed"))
	require.True(t, ok)
	assert.Equal(t, ooxml.RelImage, rel.Type)
	assert.True(t, pkg.Exists(ooxml.PathForTarget(doc.Path(), rel.Target)))
	assert.Equal(t, "image/png", pkg.ContentTypes().TypeOf("word/media/plot.png"))

	links := root.Descendants(xml.ByName("w:hyperlink"))
	require.Len(t, links, 1)
	rel, ok = rels.Get(links[0].Attr("r:id"))
	require.True(t, ok)
	assert.Equal(t, ooxml.RelHyperlink, rel.Type)
	assert.Equal(t, "https://example.org", rel.Target)
	assert.True(t, rel.IsExternal())
}

func TestConvertWritesDebugJSON(t *testing.T) {
	cfg := quietConfig()
	cfg.DebugJSON = true
	_, dir := convertFile(t, paperFrontMatter+"\nText.\n", cfg)

	data, err := os.ReadFile(filepath.Join(dir, "paper.md.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"meta"`)
	assert.Contains(t, string(data), `"body"`)
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		template []string
		strict   bool
		passes   []string
		code     docerr.Code
		subject  string
	}{
		{
			name:    "missing metadata",
			src:     "Text.\n",
			code:    docerr.CodeMetadataMissing,
			subject: "header_ru",
		},
		{
			name:     "wrong metadata shape",
			src:      "---\nauthors: nobody\n---\nText.\n",
			template: []string{"{{{authors_ru}}}", "{{{body}}}"},
			code:     docerr.CodeMetadataWrongType,
			subject:  "authors",
		},
		{
			name:     "no body placeholder",
			src:      "Text.\n",
			template: []string{"Nothing here"},
			code:     docerr.CodePlaceholderNotFound,
			subject:  BodyPlaceholder,
		},
		{
			name:     "body placeholder shares its paragraph",
			src:      "Text.\n",
			template: []string{"Before {{{body}}}"},
			code:     docerr.CodePlaceholderNotExclusive,
			subject:  BodyPlaceholder,
		},
		{
			name:     "strict styles reject generic styles",
			src:      "| a | b |\n|---|---|\n| 1 | 2 |\n",
			template: []string{"{{{body}}}"},
			strict:   true,
			passes:   []string{},
			code:     docerr.CodeUnrecognizedStyle,
			subject:  "Compact",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			source := filepath.Join(dir, "paper.md")
			target := filepath.Join(dir, "paper.docx")
			require.NoError(t, os.WriteFile(source, []byte(tt.src), 0o644))

			cfg := quietConfig()
			cfg.StrictStyles = tt.strict
			cfg.Styles.PassThrough = tt.passes
			if tt.template != nil {
				cfg.Template = minimalTemplate(t, tt.template...)
			}
			conv, err := NewConverter(cfg)
			require.NoError(t, err)

			err = conv.Convert(context.Background(), source, target)
			require.Error(t, err)
			assert.True(t, docerr.HasCode(err, tt.code), "error %v has code %s", err, tt.code)
			assert.Contains(t, err.Error(), tt.subject)
			assert.NoFileExists(t, target)
		})
	}
}

func TestConvertStrictStylesAcceptsHouseContent(t *testing.T) {
	cfg := quietConfig()
	cfg.StrictStyles = true
	src := paperFrontMatter + "\n# Title\n\nText with `code` and a [link](https://example.org).\n\n| a |\n|---|\n| 1 |\n"
	pkg, _ := convertFile(t, src, cfg)
	root := documentRoot(t, pkg)
	assert.Equal(t, styleID(t, pkg, "ispText_main"), pStyle(paragraphWithText(t, root, "Text with code and a link.")))
}

func TestRenderHonoursCancellation(t *testing.T) {
	conv, err := NewConverter(quietConfig())
	require.NoError(t, err)

	dir := t.TempDir()
	source := filepath.Join(dir, "paper.md")
	target := filepath.Join(dir, "paper.docx")
	require.NoError(t, os.WriteFile(source, []byte(paperFrontMatter+"\nText.\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = conv.Convert(ctx, source, target)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, target)
}

func TestConvertReader(t *testing.T) {
	conv, err := NewConverter(quietConfig())
	require.NoError(t, err)

	var out bytes.Buffer
	err = conv.ConvertReader(context.Background(), strings.NewReader(paperFrontMatter+"\nText.\n"), &out, t.TempDir())
	require.NoError(t, err)

	pkg, err := ooxml.Read(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	assert.Contains(t, paragraphTexts(documentRoot(t, pkg)), "Text.")
}

func TestOpenTemplateFromFile(t *testing.T) {
	tpl, err := ooxml.OpenFS(housestyle.FS())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "house.docx")
	require.NoError(t, tpl.SaveFile(path))

	cfg := quietConfig()
	cfg.Template = path
	pkg, _ := convertFile(t, paperFrontMatter+"\nText.\n", cfg)
	assert.Contains(t, paragraphTexts(documentRoot(t, pkg)), "Text.")

	cfg.Template = filepath.Join(t.TempDir(), "absent.docx")
	conv, err := NewConverter(cfg)
	require.NoError(t, err)
	_, err = conv.openTemplate()
	assert.ErrorIs(t, err, docerr.ErrMissingResource)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
