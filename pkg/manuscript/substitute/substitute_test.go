package substitute

import (
	"errors"
	"strings"
	"testing"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

func body(t *testing.T, paragraphs ...string) *xml.Node {
	t.Helper()
	doc, err := xml.ParseString(`<w:document><w:body>` + strings.Join(paragraphs, "") + `</w:body></w:document>`)
	if err != nil {
		t.Fatal(err)
	}
	return doc.DocumentElement().First("w:body")
}

func p(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, r := range runs {
		b.WriteString(`<w:r><w:t xml:space="preserve">` + r + `</w:t></w:r>`)
	}
	b.WriteString("</w:p>")
	return b.String()
}

func texts(root *xml.Node) []string {
	var out []string
	for _, para := range Paragraphs(root) {
		out = append(out, ParagraphText(para))
	}
	return out
}

func newParagraph(text string) *xml.Node {
	return xml.NewElement("w:p").Append(
		xml.NewElement("w:r").Append(xml.NewElement("w:t").SetText(text)),
	)
}

func TestFindParagraphStrict(t *testing.T) {
	tests := []struct {
		name     string
		doc      []string
		want     string
		wantKind error
		wantCode docerr.Code
	}{
		{
			name: "exact paragraph",
			doc:  []string{p("intro"), p("{{{links}}}")},
			want: "{{{links}}}",
		},
		{
			name: "marker split across runs",
			doc:  []string{p("{{{li", "nks}}}")},
			want: "{{{links}}}",
		},
		{
			name:     "marker embedded in other text",
			doc:      []string{p("prefix {{{links}}} suffix")},
			wantKind: docerr.ErrAmbiguousMatch,
			wantCode: docerr.CodePlaceholderNotExclusive,
		},
		{
			name:     "marker absent",
			doc:      []string{p("nothing here")},
			wantKind: docerr.ErrMissingResource,
			wantCode: docerr.CodePlaceholderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindParagraphStrict(body(t, tt.doc...), "{{{links}}}")
			if tt.wantKind != nil {
				if !errors.Is(err, tt.wantKind) || !docerr.HasCode(err, tt.wantCode) {
					t.Fatalf("FindParagraphStrict() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindParagraphStrict() error = %v", err)
			}
			if ParagraphText(got) != tt.want {
				t.Errorf("found paragraph text = %q", ParagraphText(got))
			}
		})
	}
}

func TestReplaceParagraph(t *testing.T) {
	tests := []struct {
		name        string
		replacement []string
		want        []string
	}{
		{"several paragraphs", []string{"one", "two"}, []string{"before", "one", "two", "after"}},
		{"single paragraph", []string{"only"}, []string{"before", "only", "after"}},
		{"empty replacement", nil, []string{"before", "after"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := body(t, p("before"), p("{{{body}}}"), p("after"))
			var nodes []*xml.Node
			for _, s := range tt.replacement {
				nodes = append(nodes, newParagraph(s))
			}
			if err := ReplaceParagraph(root, "{{{body}}}", nodes); err != nil {
				t.Fatal(err)
			}
			if got := texts(root); strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("paragraphs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReplaceParagraphRejectsEmbeddedMarker(t *testing.T) {
	root := body(t, p("prefix {{{links}}} suffix"))
	err := ReplaceParagraph(root, "{{{links}}}", []*xml.Node{newParagraph("x")})
	if !docerr.HasCode(err, docerr.CodePlaceholderNotExclusive) {
		t.Fatalf("error = %v", err)
	}
	if got := texts(root); len(got) != 1 || got[0] != "prefix {{{links}}} suffix" {
		t.Errorf("document changed: %v", got)
	}
}

func TestReplaceOptionalParagraph(t *testing.T) {
	root := body(t, p("text"))
	found, err := ReplaceOptionalParagraph(root, "{{{authors_en}}}", nil)
	if err != nil || found {
		t.Errorf("absent marker: found=%v err=%v", found, err)
	}

	root = body(t, p("{{{authors_en}}}"))
	found, err = ReplaceOptionalParagraph(root, "{{{authors_en}}}", []*xml.Node{newParagraph("A")})
	if err != nil || !found {
		t.Fatalf("present marker: found=%v err=%v", found, err)
	}
	if got := texts(root); len(got) != 1 || got[0] != "A" {
		t.Errorf("paragraphs = %v", got)
	}
}

func TestReplaceInline(t *testing.T) {
	tests := []struct {
		name    string
		doc     []string
		marker  string
		value   string
		want    []string
		changed int
	}{
		{
			name:    "single run",
			doc:     []string{p("Title: {{{header_ru}}}!")},
			marker:  "{{{header_ru}}}",
			value:   "Заголовок",
			want:    []string{"Title: Заголовок!"},
			changed: 1,
		},
		{
			name:    "several occurrences",
			doc:     []string{p("{{{x}}} and {{{x}}}"), p("{{{x}}}")},
			marker:  "{{{x}}}",
			value:   "y",
			want:    []string{"y and y", "y"},
			changed: 2,
		},
		{
			name:    "marker split across runs",
			doc:     []string{p("A {{{head", "er_ru}}} B")},
			marker:  "{{{header_ru}}}",
			value:   "T",
			want:    []string{"A T B"},
			changed: 1,
		},
		{
			name:    "none removes paragraphs",
			doc:     []string{p("keep"), p("Благодарности: {{{x}}}"), p("also {{{x}}}")},
			marker:  "{{{x}}}",
			value:   None,
			want:    []string{"keep"},
			changed: 2,
		},
		{
			name:    "absent marker",
			doc:     []string{p("keep")},
			marker:  "{{{x}}}",
			value:   "v",
			want:    []string{"keep"},
			changed: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := body(t, tt.doc...)
			if got := ReplaceInline(root, tt.marker, tt.value); got != tt.changed {
				t.Errorf("ReplaceInline() = %d, want %d", got, tt.changed)
			}
			if got := texts(root); strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("paragraphs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReplaceInlineAcrossDifferentFormatting(t *testing.T) {
	root := body(t, `<w:p>`+
		`<w:r><w:rPr><w:b/></w:rPr><w:t>Key: {{{ke</w:t></w:r>`+
		`<w:r><w:t>ywords}}} end</w:t></w:r>`+
		`</w:p>`)
	ReplaceInline(root, "{{{keywords}}}", "graphs, trees")

	runs := root.Descendants(xml.ByName("w:r"))
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if got := runs[0].First("w:t").Text(); got != "Key: graphs, trees" {
		t.Errorf("first run = %q", got)
	}
	if got := runs[1].First("w:t").Text(); got != " end" {
		t.Errorf("second run = %q", got)
	}
	if runs[1].First("w:t").Attr("xml:space") != "preserve" {
		t.Error("leading space of the second run is not preserved")
	}
}

func TestNormalizeRuns(t *testing.T) {
	root := body(t, `<w:p>`+
		`<w:r><w:rPr><w:i/></w:rPr><w:t>a</w:t></w:r>`+
		`<w:proofErr w:type="spellStart"/>`+
		`<w:r><w:rPr><w:i/></w:rPr><w:t>b</w:t></w:r>`+
		`<w:r><w:t>c</w:t></w:r>`+
		`<w:r><w:t>d</w:t></w:r>`+
		`<w:r><w:br/></w:r>`+
		`<w:r><w:t>e</w:t></w:r>`+
		`<w:hyperlink r:id="rId1"><w:r><w:t>f</w:t></w:r><w:r><w:t>g</w:t></w:r></w:hyperlink>`+
		`</w:p>`)
	para := root.First("w:p")
	NormalizeRuns(para)

	var got []string
	for _, r := range para.Children() {
		switch {
		case r.IsElement("w:r"):
			got = append(got, r.TextContent())
		case r.IsElement("w:hyperlink"):
			got = append(got, "link("+r.TextContent()+")")
		}
	}
	want := "ab|cd||e|link(fg)"
	if strings.Join(got, "|") != want {
		t.Errorf("runs = %s, want %s", strings.Join(got, "|"), want)
	}
}

func TestReplaceInlineInPackage(t *testing.T) {
	pkg := ooxml.New()
	pkg.AddPart("word/document.xml", ooxml.TypeDocument, xml.MustParse(`<w:document><w:body>`+p("{{{page}}}")+`</w:body></w:document>`))
	pkg.AddPart("word/header1.xml", ooxml.TypeHeader, xml.MustParse(`<w:hdr>`+p("H {{{page}}}")+`</w:hdr>`))
	pkg.AddPart("word/footer1.xml", ooxml.TypeFooter, xml.MustParse(`<w:ftr>`+p("F {{{page}}}")+`</w:ftr>`))

	n, err := ReplaceInlineInPackage(pkg, "{{{page}}}", "7")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("changed = %d, want 3", n)
	}
	header, _ := pkg.Part("word/header1.xml")
	if got := header.Root().TextContent(); got != "H 7" {
		t.Errorf("header = %q", got)
	}
	footer, _ := pkg.Part("word/footer1.xml")
	if got := footer.Root().TextContent(); got != "F 7" {
		t.Errorf("footer = %q", got)
	}
}

func TestStyleMapRemap(t *testing.T) {
	source, _ := ooxml.NewStyles(xml.MustParse(`<w:styles>` +
		`<w:style w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>` +
		`<w:style w:styleId="BodyText"><w:name w:val="Body Text"/></w:style>` +
		`<w:style w:styleId="Hyperlink"><w:name w:val="Hyperlink"/></w:style>` +
		`<w:style w:styleId="Fancy"><w:name w:val="Fancy"/></w:style>` +
		`</w:styles>`).DocumentElement())
	target, _ := ooxml.NewStyles(xml.MustParse(`<w:styles>` +
		`<w:style w:styleId="template-1"><w:name w:val="ispSubHeader-1 level"/></w:style>` +
		`<w:style w:styleId="template-2"><w:name w:val="ispText_main"/></w:style>` +
		`<w:style w:styleId="Hyperlink"><w:name w:val="Hyperlink"/></w:style>` +
		`</w:styles>`).DocumentElement())

	m := StyleMap{
		Source:      source,
		Target:      target,
		Names:       map[string]string{"heading 1": "ispSubHeader-1 level", "Body Text": "ispText_main"},
		PassThrough: []string{"Hyperlink"},
	}

	content := []*xml.Node{
		xml.MustParse(`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr></w:p>`).DocumentElement(),
		xml.MustParse(`<w:p><w:pPr><w:pStyle w:val="BodyText"/></w:pPr><w:r><w:rPr><w:rStyle w:val="Hyperlink"/></w:rPr></w:r></w:p>`).DocumentElement(),
	}
	out, err := m.Remap(content)
	if err != nil {
		t.Fatalf("Remap() error = %v", err)
	}
	if got := out[0].Child(0, 0).Attr("w:val"); got != "template-1" {
		t.Errorf("heading style = %s", got)
	}
	if got := out[1].Child(0, 0).Attr("w:val"); got != "template-2" {
		t.Errorf("body style = %s", got)
	}
	if got := out[1].Child(1, 0, 0).Attr("w:val"); got != "Hyperlink" {
		t.Errorf("pass-through style = %s", got)
	}
	if got := content[0].Child(0, 0).Attr("w:val"); got != "Heading1" {
		t.Error("Remap modified its input")
	}

	_, err = m.Remap([]*xml.Node{
		xml.MustParse(`<w:p><w:pPr><w:pStyle w:val="Fancy"/></w:pPr></w:p>`).DocumentElement(),
	})
	if !errors.Is(err, docerr.ErrMalformedInput) || !docerr.HasCode(err, docerr.CodeUnrecognizedStyle) {
		t.Fatalf("Remap(Fancy) error = %v", err)
	}
	if !strings.Contains(err.Error(), "Fancy") {
		t.Errorf("error does not name the style: %v", err)
	}
}

func TestReplaceParagraphStyled(t *testing.T) {
	target, _ := ooxml.NewStyles(xml.MustParse(`<w:styles><w:style w:styleId="t0"><w:name w:val="House"/></w:style></w:styles>`).DocumentElement())
	root := body(t, p("{{{body}}}"))
	content := []*xml.Node{xml.MustParse(`<w:p><w:pPr><w:pStyle w:val="Generic"/></w:pPr></w:p>`).DocumentElement()}

	err := ReplaceParagraphStyled(root, "{{{body}}}", content, StyleMap{Target: target, Names: map[string]string{"Generic": "House"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := root.Child(0, 0, 0).Attr("w:val"); got != "t0" {
		t.Errorf("spliced style = %s", got)
	}
}
