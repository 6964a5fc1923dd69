package ooxml

import (
	"sort"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// knownNamespaces maps the prefixes Word uses to their namespace URIs.
var knownNamespaces = map[string]string{
	"w":        "http://schemas.openxmlformats.org/wordprocessingml/2006/main",
	"wp":       "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing",
	"a":        "http://schemas.openxmlformats.org/drawingml/2006/main",
	"pic":      "http://schemas.openxmlformats.org/drawingml/2006/picture",
	"wp14":     "http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing",
	"a14":      "http://schemas.microsoft.com/office/drawing/2010/main",
	"r":        "http://schemas.openxmlformats.org/officeDocument/2006/relationships",
	"mc":       "http://schemas.openxmlformats.org/markup-compatibility/2006",
	"wpc":      "http://schemas.microsoft.com/office/word/2010/wordprocessingCanvas",
	"cx":       "http://schemas.microsoft.com/office/drawing/2014/chartex",
	"cx1":      "http://schemas.microsoft.com/office/drawing/2015/9/8/chartex",
	"cx2":      "http://schemas.microsoft.com/office/drawing/2015/10/21/chartex",
	"cx3":      "http://schemas.microsoft.com/office/drawing/2016/5/9/chartex",
	"cx4":      "http://schemas.microsoft.com/office/drawing/2016/5/10/chartex",
	"cx5":      "http://schemas.microsoft.com/office/drawing/2016/5/11/chartex",
	"cx6":      "http://schemas.microsoft.com/office/drawing/2016/5/12/chartex",
	"cx7":      "http://schemas.microsoft.com/office/drawing/2016/5/13/chartex",
	"cx8":      "http://schemas.microsoft.com/office/drawing/2016/5/14/chartex",
	"aink":     "http://schemas.microsoft.com/office/drawing/2016/ink",
	"am3d":     "http://schemas.microsoft.com/office/drawing/2017/model3d",
	"o":        "urn:schemas-microsoft-com:office:office",
	"oel":      "http://schemas.microsoft.com/office/2019/extlst",
	"m":        "http://schemas.openxmlformats.org/officeDocument/2006/math",
	"v":        "urn:schemas-microsoft-com:vml",
	"w10":      "urn:schemas-microsoft-com:office:word",
	"w14":      "http://schemas.microsoft.com/office/word/2010/wordml",
	"w15":      "http://schemas.microsoft.com/office/word/2012/wordml",
	"w16cex":   "http://schemas.microsoft.com/office/word/2018/wordml/cex",
	"w16cid":   "http://schemas.microsoft.com/office/word/2016/wordml/cid",
	"w16":      "http://schemas.microsoft.com/office/word/2018/wordml",
	"w16du":    "http://schemas.microsoft.com/office/word/2023/wordml/word16du",
	"w16sdtdh": "http://schemas.microsoft.com/office/word/2020/wordml/sdtdatahash",
	"w16sdtfl": "http://schemas.microsoft.com/office/word/2024/wordml/sdtformatlock",
	"w16se":    "http://schemas.microsoft.com/office/word/2015/wordml/symex",
	"wpg":      "http://schemas.microsoft.com/office/word/2010/wordprocessingGroup",
	"wpi":      "http://schemas.microsoft.com/office/word/2010/wordprocessingInk",
	"wne":      "http://schemas.microsoft.com/office/word/2006/wordml",
	"wps":      "http://schemas.microsoft.com/office/word/2010/wordprocessingShape",
}

// ignorablePrefixes are the forward-compatibility namespaces listed in mc:Ignorable when used,
// in the order Word writes them.
var ignorablePrefixes = []string{"w14", "w15", "w16se", "w16cid", "w16", "w16cex", "w16sdtdh", "w16sdtfl", "w16du", "wp14"}

// NamespaceURI returns the URI of a known prefix.
func NamespaceURI(prefix string) (string, bool) {
	uri, ok := knownNamespaces[prefix]
	return uri, ok
}

// UsedPrefixes collects the namespace prefixes occurring in element and attribute names below
// and including root. Prefixes named in mc:Choice/@Requires count as used.
func UsedPrefixes(root *xml.Node) map[string]bool {
	used := make(map[string]bool)
	note := func(n *xml.Node) {
		if p := prefixOf(n.Name()); p != "" {
			used[p] = true
		}
		for _, a := range n.Attrs() {
			if a.Name == "xmlns" || strings.HasPrefix(a.Name, "xmlns:") || a.Name == "mc:Ignorable" {
				continue
			}
			if p := prefixOf(a.Name); p != "" && p != "xml" {
				used[p] = true
			}
			if a.Name == "Requires" && n.Name() == "mc:Choice" {
				for _, req := range strings.Fields(a.Value) {
					used[req] = true
				}
			}
		}
	}
	note(root)
	root.Visit(xml.OfKind(xml.ElementNode), func(n *xml.Node, _ []int) xml.VisitAction {
		note(n)
		return xml.VisitContinue
	})
	return used
}

func prefixOf(name string) string {
	if i := strings.IndexByte(name, ':'); i > 0 {
		return name[:i]
	}
	return ""
}

// FixNamespaces rewrites the namespace declarations on a part's root element: known namespaces
// are declared exactly when used, declarations of unknown prefixes are kept, and mc:Ignorable
// lists the forward-compatibility namespaces that occur.
func FixNamespaces(root *xml.Node) {
	used := UsedPrefixes(root)

	var ignorable []string
	for _, p := range ignorablePrefixes {
		if used[p] {
			ignorable = append(ignorable, p)
		}
	}
	if len(ignorable) > 0 {
		used["mc"] = true
	}

	declared := make(map[string]bool)
	for _, a := range root.Attrs() {
		if !strings.HasPrefix(a.Name, "xmlns:") {
			continue
		}
		prefix := strings.TrimPrefix(a.Name, "xmlns:")
		if _, known := knownNamespaces[prefix]; known && !used[prefix] {
			root.RemoveAttr(a.Name)
			continue
		}
		declared[prefix] = true
	}

	var missing []string
	for p := range used {
		if _, known := knownNamespaces[p]; known && !declared[p] {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	for _, p := range missing {
		root.SetAttr("xmlns:"+p, knownNamespaces[p])
	}

	root.RemoveAttr("mc:Ignorable")
	if len(ignorable) > 0 {
		root.SetAttr("mc:Ignorable", strings.Join(ignorable, " "))
	}
}
