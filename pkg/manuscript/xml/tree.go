package xml

import (
	"fmt"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
)

// Filter selects nodes. A nil Filter matches every node.
type Filter func(*Node) bool

// ByName matches elements with any of the given qualified names.
func ByName(names ...string) Filter {
	return func(n *Node) bool {
		return n.IsElement(names...)
	}
}

// OfKind matches nodes of the given kind.
func OfKind(kind Kind) Filter {
	return func(n *Node) bool {
		return n.el.kind == kind
	}
}

func (f Filter) match(n *Node) bool {
	return f == nil || f(n)
}

// Len returns the number of children.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	n.check("Len")
	return len(n.el.children)
}

// Children returns handles for the direct children in order.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}
	n.check("Children")
	out := make([]*Node, len(n.el.children))
	for i, c := range n.el.children {
		out[i] = wrap(c, n.lease)
	}
	return out
}

// Child follows a path of child indices. Negative indices count from the end. It returns nil
// if any step is out of range. Child() returns the receiver.
func (n *Node) Child(path ...int) *Node {
	if n == nil {
		return nil
	}
	n.check("Child")
	el := n.el
	for _, i := range path {
		if i < 0 {
			i += len(el.children)
		}
		if i < 0 || i >= len(el.children) {
			return nil
		}
		el = el.children[i]
	}
	return wrap(el, n.lease)
}

// Parent returns the parent node or nil for a detached or root node.
func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	n.check("Parent")
	return wrap(n.el.parent, n.lease)
}

// Index returns the position of n within its parent, or -1.
func (n *Node) Index() int {
	n.check("Index")
	if n.el.parent == nil {
		return -1
	}
	return n.el.parent.indexOf(n.el)
}

// Root returns the topmost ancestor.
func (n *Node) Root() *Node {
	n.check("Root")
	el := n.el
	for el.parent != nil {
		el = el.parent
	}
	return wrap(el, n.lease)
}

// First returns the first direct child element with the given name.
func (n *Node) First(name string) *Node {
	if n == nil {
		return nil
	}
	n.check("First")
	for _, c := range n.el.children {
		if c.kind == ElementNode && c.name == name {
			return wrap(c, n.lease)
		}
	}
	return nil
}

// All returns the direct children matching f.
func (n *Node) All(f Filter) []*Node {
	if n == nil {
		return nil
	}
	n.check("All")
	var out []*Node
	for _, c := range n.el.children {
		h := wrap(c, n.lease)
		if f.match(h) {
			out = append(out, h)
		}
	}
	return out
}

// Find returns the single direct child matching f, nil if none does, and an AmbiguousChild
// error if several do.
func (n *Node) Find(f Filter) (*Node, error) {
	matches := n.All(f)
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, docerr.New(docerr.KindAmbiguousMatch, docerr.CodeAmbiguousChild, "find child", n.el.name,
			fmt.Sprintf("%d children match", len(matches)))
	}
}

// FindName is Find(ByName(name)).
func (n *Node) FindName(name string) (*Node, error) {
	return n.Find(ByName(name))
}

// Descendants returns every descendant matching f in document order.
func (n *Node) Descendants(f Filter) []*Node {
	var out []*Node
	n.Visit(f, func(c *Node, _ []int) VisitAction {
		out = append(out, c.ShallowCopy())
		return VisitContinue
	})
	return out
}

// Append adds nodes at the end of the children. Nodes already attached elsewhere are moved.
func (n *Node) Append(nodes ...*Node) *Node {
	n.check("Append")
	return n.InsertAt(len(n.el.children), nodes...)
}

// Prepend adds nodes at the start of the children.
func (n *Node) Prepend(nodes ...*Node) *Node {
	n.check("Prepend")
	return n.InsertAt(0, nodes...)
}

// InsertAt splices nodes in before index. Negative indices count from the end so that -1
// appends. Out-of-range indices are clamped.
func (n *Node) InsertAt(index int, nodes ...*Node) *Node {
	n.check("InsertAt")
	if index < 0 {
		index += len(n.el.children) + 1
	}
	if index < 0 {
		index = 0
	}

	els := make([]*element, 0, len(nodes))
	for _, c := range nodes {
		if c == nil {
			continue
		}
		c.check("InsertAt")
		if c.el.kind == DocumentNode {
			panic("xml: a document node cannot be inserted into a tree")
		}
		for p := n.el; p != nil; p = p.parent {
			if p == c.el {
				panic("xml: cannot insert a node into its own subtree")
			}
		}
		if c.el.parent != nil {
			old := c.el.parent
			oldIndex := old.indexOf(c.el)
			old.removeAt(oldIndex)
			if old == n.el && oldIndex < index {
				index--
			}
		}
		els = append(els, c.el)
	}

	if index > len(n.el.children) {
		index = len(n.el.children)
	}
	for _, el := range els {
		el.parent = n.el
	}
	tail := append([]*element(nil), n.el.children[index:]...)
	n.el.children = append(append(n.el.children[:index], els...), tail...)
	return n
}

// InsertPath inserts nodes at the position addressed by path: every index but the last selects
// the parent, the last one is the insertion index. It reports whether the parent exists.
func (n *Node) InsertPath(path []int, nodes ...*Node) bool {
	n.check("InsertPath")
	if len(path) == 0 {
		return false
	}
	parent := n.Child(path[:len(path)-1]...)
	if parent == nil {
		return false
	}
	parent.InsertAt(path[len(path)-1], nodes...)
	return true
}

// RemoveAt detaches and returns the child at index (negative counts from the end).
func (n *Node) RemoveAt(index int) *Node {
	n.check("RemoveAt")
	if index < 0 {
		index += len(n.el.children)
	}
	if index < 0 || index >= len(n.el.children) {
		return nil
	}
	el := n.el.children[index]
	n.el.removeAt(index)
	return wrap(el, nil)
}

// RemovePath detaches and returns the node addressed by path.
func (n *Node) RemovePath(path ...int) *Node {
	n.check("RemovePath")
	if len(path) == 0 {
		return nil
	}
	parent := n.Child(path[:len(path)-1]...)
	if parent == nil {
		return nil
	}
	return parent.RemoveAt(path[len(path)-1])
}

// RemoveChildren detaches every direct child matching f and returns how many were removed.
func (n *Node) RemoveChildren(f Filter) int {
	n.check("RemoveChildren")
	kept := n.el.children[:0]
	removed := 0
	for _, c := range n.el.children {
		if f.match(wrap(c, n.lease)) {
			c.parent = nil
			removed++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(n.el.children); i++ {
		n.el.children[i] = nil
	}
	n.el.children = kept
	return removed
}

// Clear removes all children.
func (n *Node) Clear() *Node {
	n.RemoveChildren(nil)
	return n
}

// Detach removes n from its parent. The returned handle is permanent.
func (n *Node) Detach() *Node {
	n.check("Detach")
	if p := n.el.parent; p != nil {
		p.removeAt(p.indexOf(n.el))
	}
	return wrap(n.el, nil)
}

// ReplaceWith puts nodes where n is and detaches n. A detached n is left untouched.
func (n *Node) ReplaceWith(nodes ...*Node) {
	n.check("ReplaceWith")
	p := n.el.parent
	if p == nil {
		return
	}
	index := p.indexOf(n.el)
	parent := wrap(p, nil)
	parent.RemoveAt(index)
	parent.InsertAt(index, nodes...)
}

// Assign overwrites n's name, attributes, value and children with a deep copy of src.
// n keeps its position in its own tree.
func (n *Node) Assign(src *Node) *Node {
	n.check("Assign")
	src.check("Assign")
	c := src.el.clone()
	for _, old := range n.el.children {
		old.parent = nil
	}
	n.el.kind = c.kind
	n.el.name = c.name
	n.el.value = c.value
	n.el.attrs = c.attrs
	n.el.children = c.children
	for _, child := range n.el.children {
		child.parent = n.el
	}
	return n
}

func (el *element) indexOf(child *element) int {
	for i, c := range el.children {
		if c == child {
			return i
		}
	}
	return -1
}

func (el *element) removeAt(index int) {
	if index < 0 || index >= len(el.children) {
		return
	}
	el.children[index].parent = nil
	copy(el.children[index:], el.children[index+1:])
	el.children[len(el.children)-1] = nil
	el.children = el.children[:len(el.children)-1]
}

func (el *element) appendChild(child *element) {
	child.parent = el
	el.children = append(el.children, child)
}
