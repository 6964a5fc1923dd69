package xml

// VisitAction tells Visit how to continue after a callback.
type VisitAction int

const (
	// VisitContinue descends into the node's children.
	VisitContinue VisitAction = iota
	// VisitSkip does not descend into the node's children.
	VisitSkip
	// VisitStop ends the traversal.
	VisitStop
)

// VisitFunc receives a leased handle and its path relative to the traversal root.
type VisitFunc func(n *Node, path []int) VisitAction

// Visit walks the descendants of the node at start (the receiver when start is empty) in
// pre-order and calls fn for every node matching filter. Nodes that do not match are still
// descended into.
//
// Each level iterates a snapshot of its children taken when the level is entered. A node that
// the callback detaches or moves before the walk reaches it is skipped; siblings inserted by the
// callback are not visited. The children of the current node are read after its callback
// returns, so children it adds are visited.
func (n *Node) Visit(filter Filter, fn VisitFunc, start ...int) {
	n.check("Visit")
	root := n.Child(start...)
	if root == nil {
		return
	}
	visitLevel(root.el, filter, fn, nil)
}

func visitLevel(parent *element, filter Filter, fn VisitFunc, path []int) bool {
	snapshot := make([]*element, len(parent.children))
	copy(snapshot, parent.children)

	for _, el := range snapshot {
		if el.parent != parent {
			continue
		}
		index := parent.indexOf(el)
		childPath := make([]int, len(path)+1)
		copy(childPath, path)
		childPath[len(path)] = index

		action := VisitContinue
		l := &lease{valid: true}
		h := &Node{el: el, lease: l}
		if filter.match(h) {
			action = fn(h, childPath)
		}
		l.valid = false

		switch action {
		case VisitStop:
			return true
		case VisitSkip:
			continue
		}
		if el.parent != parent || len(el.children) == 0 {
			continue
		}
		if visitLevel(el, filter, fn, childPath) {
			return true
		}
	}
	return false
}
