package ooxml

import (
	"path"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

const (
	contentTypesPath      = "[Content_Types].xml"
	contentTypesNamespace = "http://schemas.openxmlformats.org/package/2006/content-types"
)

// Well-known content types of WordprocessingML parts.
const (
	TypeDocument      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	TypeDocumentMacro = "application/vnd.ms-word.document.macroEnabled.main+xml"
	TypeTemplate      = "application/vnd.openxmlformats-officedocument.wordprocessingml.template.main+xml"
	TypeStyles        = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
	TypeNumbering     = "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"
	TypeSettings      = "application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"
	TypeWebSettings   = "application/vnd.openxmlformats-officedocument.wordprocessingml.webSettings+xml"
	TypeFontTable     = "application/vnd.openxmlformats-officedocument.wordprocessingml.fontTable+xml"
	TypeComments      = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"
	TypeFootnotes     = "application/vnd.openxmlformats-officedocument.wordprocessingml.footnotes+xml"
	TypeEndnotes      = "application/vnd.openxmlformats-officedocument.wordprocessingml.endnotes+xml"
	TypeHeader        = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"
	TypeFooter        = "application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"
	TypeTheme         = "application/vnd.openxmlformats-officedocument.theme+xml"
	TypeCoreProps     = "application/vnd.openxmlformats-package.core-properties+xml"
	TypeAppProps      = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
	TypeRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	TypeXML           = "application/xml"
)

// extensionContentTypes holds the defaults registered for media copied into a package.
var extensionContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
	"rels": TypeRelationships,
	"xml":  TypeXML,
}

// ContentTypeForExtension returns the default content type for a file extension.
func ContentTypeForExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Default maps a file extension to a content type.
type Default struct {
	Extension   string
	ContentType string
}

// Override maps a single part to a content type. PartName is absolute ("/word/document.xml").
type Override struct {
	PartName    string
	ContentType string
}

// ContentTypes is the package-wide content-type registry.
type ContentTypes struct {
	Defaults  []Default
	Overrides []Override
}

// ParseContentTypes reads a [Content_Types].xml document.
func ParseContentTypes(data []byte) (*ContentTypes, error) {
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, docerr.WithContext(err, "read content types", nil)
	}
	root := doc.DocumentElement()
	if !root.IsElement("Types") {
		return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedXML, "read content types",
			contentTypesPath, "root element is not Types")
	}

	ct := &ContentTypes{}
	for _, c := range root.Children() {
		switch c.Name() {
		case "Default":
			ct.Defaults = append(ct.Defaults, Default{Extension: c.Attr("Extension"), ContentType: c.Attr("ContentType")})
		case "Override":
			ct.Overrides = append(ct.Overrides, Override{PartName: c.Attr("PartName"), ContentType: c.Attr("ContentType")})
		}
	}
	return ct, nil
}

// TypeOf resolves the content type of a package path: an override wins over an extension default.
// It returns "" when neither applies.
func (ct *ContentTypes) TypeOf(partPath string) string {
	name := "/" + strings.TrimPrefix(partPath, "/")
	for _, o := range ct.Overrides {
		if strings.EqualFold(o.PartName, name) {
			return o.ContentType
		}
	}
	ext := strings.TrimPrefix(path.Ext(name), ".")
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return d.ContentType
		}
	}
	return ""
}

// AddOverride registers or replaces the override for a part.
func (ct *ContentTypes) AddOverride(partPath, contentType string) {
	name := "/" + strings.TrimPrefix(partPath, "/")
	for i := range ct.Overrides {
		if strings.EqualFold(ct.Overrides[i].PartName, name) {
			ct.Overrides[i].ContentType = contentType
			return
		}
	}
	ct.Overrides = append(ct.Overrides, Override{PartName: name, ContentType: contentType})
}

// RemoveOverride drops the override for a part if there is one.
func (ct *ContentTypes) RemoveOverride(partPath string) {
	name := "/" + strings.TrimPrefix(partPath, "/")
	for i := range ct.Overrides {
		if strings.EqualFold(ct.Overrides[i].PartName, name) {
			ct.Overrides = append(ct.Overrides[:i], ct.Overrides[i+1:]...)
			return
		}
	}
}

// EnsureDefault registers an extension default unless one already exists. An empty contentType
// selects the built-in default for the extension.
func (ct *ContentTypes) EnsureDefault(ext, contentType string) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return
	}
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return
		}
	}
	if contentType == "" {
		contentType = ContentTypeForExtension(ext)
	}
	ct.Defaults = append(ct.Defaults, Default{Extension: ext, ContentType: contentType})
}

// Join adds the defaults and overrides of other that the receiver does not define yet.
func (ct *ContentTypes) Join(other *ContentTypes) {
	for _, d := range other.Defaults {
		ct.EnsureDefault(d.Extension, d.ContentType)
	}
	for _, o := range other.Overrides {
		exists := false
		for _, mine := range ct.Overrides {
			if strings.EqualFold(mine.PartName, o.PartName) {
				exists = true
				break
			}
		}
		if !exists {
			ct.Overrides = append(ct.Overrides, o)
		}
	}
}

// Node builds the XML document for the registry.
func (ct *ContentTypes) Node() *xml.Node {
	root := xml.NewElement("Types").SetAttr("xmlns", contentTypesNamespace)
	for _, d := range ct.Defaults {
		root.Append(xml.NewElement("Default").SetAttr("Extension", d.Extension).SetAttr("ContentType", d.ContentType))
	}
	for _, o := range ct.Overrides {
		root.Append(xml.NewElement("Override").SetAttr("PartName", o.PartName).SetAttr("ContentType", o.ContentType))
	}
	return xml.NewDocument().Append(root)
}
