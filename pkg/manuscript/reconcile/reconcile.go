// Package reconcile merges the style sheet and list numbering of a house template into a
// generated document.
//
// The template (source) contributes every style its content uses, transitively through
// w:basedOn, w:link and w:next, renamed to collision-proof "template-N" ids. Styles of the
// generated document (target) that share a name with a template style, or that a rename rule
// maps to a house style, are removed and every reference to them is redirected. List regions
// that the generator bracketed with ListRegionMarker sentinels are bound to house list styles
// and to freshly allocated numbering instances.
//
// Run edits both packages in place.
package reconcile

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// AliasPrefix starts every id given to an imported template style.
const AliasPrefix = "template-"

// DefaultNumberingBase is the first numbering id handed to list regions.
const DefaultNumberingBase = 10000

// ListRule binds a kind of list region to a house paragraph style and an abstract numbering
// definition of the template.
type ListRule struct {
	Style         string
	AbstractNumID string
}

// Options configures a reconciliation.
type Options struct {
	// RequiredStyles are template style names carried over even if no content uses them yet.
	// Rename targets and list rule styles are always required.
	RequiredStyles []string
	// Renames maps style ids of the generated document to template style names.
	Renames map[string]string
	// AlwaysRemove lists generated style ids dropped from the merged style sheet.
	AlwaysRemove []string
	// Lists maps region kinds to house list styles.
	Lists map[ListKind]ListRule
	// NumberingBase is the first numbering id allocated to list regions (DefaultNumberingBase if 0).
	NumberingBase int
	// Marker recognizes list region sentinels (CommentMarker if nil).
	Marker ListRegionMarker
	Logger *logging.Logger
}

// Result describes what a reconciliation did.
type Result struct {
	// Aliases maps template style ids to the ids they carry in the merged style sheet.
	Aliases map[string]string
	// Patches maps removed or renamed generated style ids to their replacements.
	Patches map[string]string
	// Removed lists the generated style ids dropped from the merged sheet.
	Removed []string
	// NumIDs lists the numbering instances allocated to list regions, in document order.
	NumIDs []string

	styleIDs map[string]string
}

// StyleID returns the id of a style name in the merged style sheet.
func (r *Result) StyleID(name string) (string, error) {
	if id, ok := r.styleIDs[name]; ok {
		return id, nil
	}
	return "", docerr.New(docerr.KindMissingResource, docerr.CodeMissingNamedStyle, "resolve style", name,
		"no style with this name in the merged style sheet")
}

// StyleIDs returns a copy of the merged name-to-id table.
func (r *Result) StyleIDs() map[string]string {
	out := make(map[string]string, len(r.styleIDs))
	for k, v := range r.styleIDs {
		out[k] = v
	}
	return out
}

type reconciler struct {
	source, target *ooxml.Package
	opts           Options
	log            *logging.Logger

	srcStyles, tgtStyles *ooxml.Styles
	result               *Result
}

// Run merges the styles and numbering of source (the house template) into target (the
// generated document).
func Run(source, target *ooxml.Package, opts Options) (*Result, error) {
	if opts.NumberingBase <= 0 {
		opts.NumberingBase = DefaultNumberingBase
	}
	if opts.Marker == nil {
		opts.Marker = CommentMarker{}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	r := &reconciler{
		source: source,
		target: target,
		opts:   opts,
		log:    log.WithField("stage", "reconcile"),
		result: &Result{
			Aliases: make(map[string]string),
			Patches: make(map[string]string),
		},
	}

	var err error
	if r.srcStyles, err = requireStyles(source, "template"); err != nil {
		return nil, err
	}
	if r.tgtStyles, err = requireStyles(target, "generated document"); err != nil {
		return nil, err
	}

	if err := r.mergeStyles(); err != nil {
		return nil, err
	}
	if err := r.mergeNumbering(); err != nil {
		return nil, err
	}
	return r.result, nil
}

func requireStyles(pkg *ooxml.Package, which string) (*ooxml.Styles, error) {
	styles, err := pkg.Styles()
	if err != nil {
		return nil, err
	}
	if styles == nil {
		return nil, docerr.New(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "reconcile styles", which,
			"package has no style sheet")
	}
	return styles, nil
}

// requiredNames collects the template style names the merge must carry over.
func (r *reconciler) requiredNames() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range r.opts.RequiredStyles {
		add(name)
	}
	renamed := make([]string, 0, len(r.opts.Renames))
	for id := range r.opts.Renames {
		renamed = append(renamed, id)
	}
	sort.Strings(renamed)
	for _, id := range renamed {
		add(r.opts.Renames[id])
	}
	for _, kind := range sortedKinds(r.opts.Lists) {
		add(r.opts.Lists[kind].Style)
	}
	return names
}

func (r *reconciler) mergeStyles() error {
	srcByName := r.srcStyles.IDsByName()

	missing := docerr.NewMultiError()
	var roots []string
	for _, name := range r.requiredNames() {
		id, ok := srcByName[name]
		if !ok {
			missing.Add(docerr.New(docerr.KindMissingResource, docerr.CodeMissingNamedStyle, "reconcile styles", name,
				"template has no style with this name"))
			continue
		}
		roots = append(roots, id)
	}
	if err := missing.Err(); err != nil {
		return err
	}

	srcParts, err := contentParts(r.source)
	if err != nil {
		return err
	}
	for _, part := range srcParts {
		roots = append(roots, styleReferences(part.Root())...)
	}

	closure, err := r.closure(roots)
	if err != nil {
		return err
	}

	// Aliases follow style sheet order so repeated runs produce the same ids.
	var imported []*ooxml.Style
	for _, st := range r.srcStyles.All() {
		if !closure[st.ID()] {
			continue
		}
		if _, done := r.result.Aliases[st.ID()]; done {
			continue
		}
		r.result.Aliases[st.ID()] = AliasPrefix + strconv.Itoa(len(r.result.Aliases))
		imported = append(imported, st)
	}

	for _, st := range imported {
		st.SetID(r.result.Aliases[st.ID()])
		for _, ref := range st.CrossReferences() {
			if alias, ok := r.result.Aliases[ref.Attr("w:val")]; ok {
				ref.SetAttr("w:val", alias)
			}
		}
	}
	for _, part := range srcParts {
		patchStyleReferences(part.Root(), r.result.Aliases)
	}
	if numbering, err := r.source.Numbering(); err != nil {
		return err
	} else if numbering != nil {
		patchStyleReferences(numbering.Node(), r.result.Aliases)
	}

	aliasByName := ooxml.StyleIDsByName(imported)

	// Explicit renames win over name collisions.
	remove := make(map[string]bool)
	for id, name := range r.opts.Renames {
		r.result.Patches[id] = aliasByName[name]
		if r.tgtStyles.ByID(id) != nil {
			remove[id] = true
		}
	}
	for _, st := range r.tgtStyles.All() {
		alias, collides := aliasByName[st.Name()]
		if !collides {
			continue
		}
		remove[st.ID()] = true
		if _, patched := r.result.Patches[st.ID()]; !patched {
			r.result.Patches[st.ID()] = alias
		}
	}
	for _, id := range r.opts.AlwaysRemove {
		if r.tgtStyles.ByID(id) != nil {
			remove[id] = true
		}
	}

	for _, st := range r.tgtStyles.All() {
		if remove[st.ID()] {
			r.result.Removed = append(r.result.Removed, st.ID())
			r.tgtStyles.Remove(st)
		}
	}
	for _, st := range imported {
		r.tgtStyles.Add(st.Clone())
	}
	r.tgtStyles.CopySingletonsFrom(r.srcStyles)

	for _, st := range r.tgtStyles.All() {
		for _, ref := range st.CrossReferences() {
			if id, ok := r.result.Patches[ref.Attr("w:val")]; ok {
				ref.SetAttr("w:val", id)
			}
		}
	}
	tgtParts, err := contentParts(r.target)
	if err != nil {
		return err
	}
	for _, part := range tgtParts {
		patchStyleReferences(part.Root(), r.result.Patches)
	}

	r.result.styleIDs = r.tgtStyles.IDsByName()
	r.log.WithFields(logging.Fields{
		"imported": len(imported),
		"removed":  len(r.result.Removed),
		"patched":  len(r.result.Patches),
	}).Debug("merged style sheets")
	return nil
}

// closure returns the fixed point of roots under w:basedOn, w:link and w:next.
func (r *reconciler) closure(roots []string) (map[string]bool, error) {
	used := make(map[string]bool)
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if used[id] {
			continue
		}
		st := r.srcStyles.ByID(id)
		if st == nil {
			return nil, docerr.New(docerr.KindMissingResource, docerr.CodeUnknownStyleID, "reconcile styles", id,
				fmt.Sprintf("style id %s not found", id))
		}
		used[id] = true
		for _, ref := range []string{st.BasedOn(), st.LinkedStyle(), st.NextStyle()} {
			if ref != "" && !used[ref] {
				queue = append(queue, ref)
			}
		}
	}
	return used, nil
}

// contentParts returns the parts whose markup references styles: the main document, headers,
// footers and footnotes.
func contentParts(pkg *ooxml.Package) ([]*ooxml.Part, error) {
	doc, err := pkg.Document()
	if err != nil {
		return nil, err
	}
	parts := []*ooxml.Part{doc}
	headers, err := pkg.Headers()
	if err != nil {
		return nil, err
	}
	footers, err := pkg.Footers()
	if err != nil {
		return nil, err
	}
	parts = append(append(parts, headers...), footers...)
	footnotes, err := pkg.Footnotes()
	if err != nil {
		return nil, err
	}
	if footnotes != nil {
		parts = append(parts, footnotes)
	}
	return parts, nil
}

// styleReferenceElements carry a style id in w:val.
var styleReferenceElements = []string{"w:pStyle", "w:rStyle", "w:tblStyle"}

func styleReferences(root *xml.Node) []string {
	var ids []string
	for _, n := range root.Descendants(xml.ByName(styleReferenceElements...)) {
		if v := n.Attr("w:val"); v != "" {
			ids = append(ids, v)
		}
	}
	return ids
}

func patchStyleReferences(root *xml.Node, mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}
	root.Visit(xml.ByName(styleReferenceElements...), func(n *xml.Node, _ []int) xml.VisitAction {
		if id, ok := mapping[n.Attr("w:val")]; ok {
			n.SetAttr("w:val", id)
		}
		return xml.VisitSkip
	})
}

func sortedKinds(rules map[ListKind]ListRule) []ListKind {
	kinds := make([]ListKind, 0, len(rules))
	for k := range rules {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
