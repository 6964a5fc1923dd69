// Package manuscript converts annotated Markdown manuscripts into Word documents (DOCX) in a
// house style.
//
// A conversion merges generated content into a reference template. Section numbers and
// cross-references are resolved first, the body is rendered with generic styles, and the style
// sheet and list numbering of the template are then reconciled with the generated ones so the
// result looks exactly like the house style guide.
//
// # Quick Start
//
//	conv, err := manuscript.NewConverter(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := conv.Convert(context.Background(), "paper.md", "paper.docx"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Manuscript Format
//
// The manuscript starts with YAML front matter. Paper metadata lives under the ispras_templates
// key (Config.MetaKey) or at the top level:
//
//	---
//	ispras_templates:
//	  header_ru: Заголовок
//	  header_en: Title
//	  page_header_ru: "@use_citation"
//	  authors:
//	    - name_ru: Иван Иванов
//	      name_en: Ivan Ivanov
//	      orcid: 0000-0000-0000-0000
//	      email: ivan@example.org
//	      organizations: [isp]
//	      details_ru: ...
//	      details_en: ...
//	  organizations:
//	    - id: isp
//	      name_ru: ИСП РАН
//	      name_en: ISP RAS
//	  links:
//	    - id: knuth
//	      description: D. Knuth. The Art of Computer Programming.
//	---
//
// The body is CommonMark with GFM tables. Headings take a {#label} suffix, citations and
// cross-references are written as <span class="cite">knuth</span> and
// <span class="ref">sec:intro</span>, images accept {width=5cm} and captions are
// <div class="img-caption|table-caption|listing-caption"> blocks.
//
// # Template Placeholders
//
// The template marks insertion points with triple braces:
//
//	{{{body}}}                     - the generated body (required, own paragraph)
//	{{{header_ru}}}, {{{abstract_en}}}, ... - text replaced inline
//	{{{page_header_ru}}}           - inline; "@use_citation" repeats for_citation_ru
//	{{{authors_ru}}}, {{{organizations_en}}} - replaced by one paragraph per entry
//	{{{links}}}                    - the numbered bibliography
//	{{{authors_detail}}}           - details of every author in every language
//
// An inline value of "@none" removes every paragraph that holds the placeholder. Placeholders
// missing from the template are skipped.
//
// # Architecture
//
// The sub-packages follow the conversion:
//
//   - markdown: front matter and Markdown into an intermediate tree
//   - meta: front matter values and dotted-path lookups
//   - refs: section numbering and reference resolution
//   - generator: intermediate tree into a content package
//   - reconcile: style sheet and numbering merge
//   - substitute: placeholder search and replacement
//   - ooxml, xml: the package and tree model underneath
//   - housestyle: the built-in template
//
// All failures are *docerr.Error values classified by kind and code.
package manuscript
