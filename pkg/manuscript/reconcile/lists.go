package reconcile

import (
	"strconv"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

// listContext is one open list region.
type listContext struct {
	kind    ListKind
	styleID string
	numID   string
	active  bool
}

// mergeNumbering replaces the target's numbering table with the template's, then binds each
// marked list region of the target document to a house list style and a new numbering
// instance that restarts at 1 on every level.
func (r *reconciler) mergeNumbering() error {
	target, err := r.target.EnsureNumbering()
	if err != nil {
		return err
	}
	source, err := r.source.Numbering()
	if err != nil {
		return err
	}
	if source != nil {
		target.Node().Assign(source.Node())
	}

	doc, err := r.target.Document()
	if err != nil {
		return err
	}

	var (
		stack   []listContext
		numIDs  []string
		markers []*xml.Node
		next    = r.opts.NumberingBase
		failure error
	)
	current := func() *listContext {
		if len(stack) == 0 {
			return nil
		}
		return &stack[len(stack)-1]
	}

	doc.Root().Visit(nil, func(n *xml.Node, _ []int) xml.VisitAction {
		if kind, ok := r.opts.Marker.Match(n); ok {
			markers = append(markers, n.ShallowCopy())
			if kind == NoList {
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				return xml.VisitSkip
			}
			rule, known := r.opts.Lists[kind]
			if !known {
				r.log.Warn("no list style configured for %s regions, leaving them unnumbered", kind)
				stack = append(stack, listContext{kind: kind})
				return xml.VisitSkip
			}
			styleID, err := r.result.StyleID(rule.Style)
			if err != nil {
				failure = err
				return xml.VisitStop
			}
			if target.AbstractNum(rule.AbstractNumID) == nil {
				failure = docerr.New(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "reconcile numbering",
					"abstractNum "+rule.AbstractNumID, "template numbering has no such abstract definition")
				return xml.VisitStop
			}
			numID := target.UnusedNumID(next)
			if v, err := strconv.Atoi(numID); err == nil {
				next = v + 1
			}
			numIDs = append(numIDs, numID)
			stack = append(stack, listContext{kind: kind, styleID: styleID, numID: numID, active: true})
			// Reserve the id so nested regions get a different one.
			target.AddNum(numID, rule.AbstractNumID)
			return xml.VisitSkip
		}

		ctx := current()
		if ctx == nil || !ctx.active || n.Kind() != xml.ElementNode {
			return xml.VisitContinue
		}
		switch n.Name() {
		case "w:pPr":
			n.RemoveChildren(xml.ByName("w:pStyle"))
			n.Prepend(xml.NewElement("w:pStyle").SetAttr("w:val", ctx.styleID))
		case "w:numId":
			n.SetAttr("w:val", ctx.numID)
		}
		return xml.VisitContinue
	})
	if failure != nil {
		return failure
	}

	for _, m := range markers {
		m.Detach()
	}
	for _, id := range numIDs {
		target.Num(id).RestartAt(1)
	}
	r.result.NumIDs = numIDs
	if len(stack) > 0 {
		r.log.Warn("%d list regions were not closed", len(stack))
	}
	r.log.WithField("lists", len(numIDs)).Debug("bound list regions to numbering")
	return nil
}
