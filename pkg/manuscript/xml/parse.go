package xml

import (
	"bytes"
	stdxml "encoding/xml"
	"io"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
)

const declaration = `version="1.0" encoding="UTF-8" standalone="yes"`

// Parse reads an XML document. Comments, processing instructions and text are kept verbatim;
// the XML declaration is dropped and written afresh by Serialize. Whitespace-only text between
// sibling elements is dropped; text inside leaf elements such as w:t is never touched.
func Parse(data []byte) (*Node, error) {
	if err := wellFormed(data); err != nil {
		return nil, docerr.Wrap(docerr.KindMalformedInput, docerr.CodeMalformedXML, "parse", "", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, docerr.Wrap(docerr.KindMalformedInput, docerr.CodeMalformedXML, "parse", "", err)
	}
	if doc.Root() == nil {
		return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedXML, "parse", "", "no root element")
	}

	root := &element{kind: DocumentNode}
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			root.appendChild(fromEtree(t))
		case *etree.Comment:
			root.appendChild(&element{kind: CommentNode, value: t.Data})
		case *etree.ProcInst:
			if t.Target != "xml" {
				root.appendChild(&element{kind: ProcInstNode, name: t.Target, value: t.Inst})
			}
		case *etree.Directive:
			root.appendChild(&element{kind: DirectiveNode, value: t.Data})
		}
	}
	return wrap(root, nil), nil
}

// wellFormed runs the input through a strict token pass: tags must balance and every element
// must be closed. Whitespace, comments and processing instructions may follow the root.
func wellFormed(data []byte) error {
	dec := stdxml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	for {
		if _, err := dec.Token(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// ParseString is Parse for string input.
func ParseString(s string) (*Node, error) {
	return Parse([]byte(s))
}

// MustParse is Parse that panics on error. Use it for markup known at compile time.
func MustParse(s string) *Node {
	n, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return n
}

// ParseFragment parses markup with a single top-level element and returns that element detached.
func ParseFragment(s string) (*Node, error) {
	doc, err := Parse([]byte(s))
	if err != nil {
		return nil, err
	}
	root := doc.DocumentElement()
	return root.Detach(), nil
}

func fromEtree(src *etree.Element) *element {
	el := &element{kind: ElementNode, name: src.FullTag()}
	if len(src.Attr) > 0 {
		el.attrs = make([]Attr, 0, len(src.Attr))
		for _, a := range src.Attr {
			el.attrs = append(el.attrs, Attr{Name: a.FullKey(), Value: a.Value})
		}
	}

	hasElements := false
	for _, tok := range src.Child {
		if _, ok := tok.(*etree.Element); ok {
			hasElements = true
			break
		}
	}

	for _, tok := range src.Child {
		switch t := tok.(type) {
		case *etree.Element:
			el.appendChild(fromEtree(t))
		case *etree.CharData:
			if hasElements && t.IsWhitespace() {
				continue
			}
			el.appendChild(&element{kind: TextNode, value: t.Data})
		case *etree.Comment:
			el.appendChild(&element{kind: CommentNode, value: t.Data})
		case *etree.ProcInst:
			el.appendChild(&element{kind: ProcInstNode, name: t.Target, value: t.Inst})
		case *etree.Directive:
			el.appendChild(&element{kind: DirectiveNode, value: t.Data})
		}
	}
	return el
}

// DocumentElement returns the first element child of a document node.
func (n *Node) DocumentElement() *Node {
	n.check("DocumentElement")
	for _, c := range n.el.children {
		if c.kind == ElementNode {
			return wrap(c, n.lease)
		}
	}
	return nil
}

// Serialize writes the subtree as XML without indentation. Document nodes get a standalone
// UTF-8 declaration.
func (n *Node) Serialize() ([]byte, error) {
	n.check("Serialize")
	doc := etree.NewDocument()
	if n.el.kind == DocumentNode {
		doc.CreateProcInst("xml", declaration)
		for _, c := range n.el.children {
			toEtree(&doc.Element, c)
		}
	} else {
		toEtree(&doc.Element, n.el)
	}
	return doc.WriteToBytes()
}

// String returns the serialized subtree, or "" if it cannot be serialized.
func (n *Node) String() string {
	b, err := n.Serialize()
	if err != nil {
		return ""
	}
	return string(b)
}

func toEtree(parent *etree.Element, el *element) {
	switch el.kind {
	case ElementNode:
		out := parent.CreateElement(el.name)
		for _, a := range el.attrs {
			out.CreateAttr(a.Name, a.Value)
		}
		for _, c := range el.children {
			toEtree(out, c)
		}
	case TextNode:
		parent.AddChild(etree.NewText(el.value))
	case CommentNode:
		parent.AddChild(etree.NewComment(el.value))
	case ProcInstNode:
		parent.AddChild(etree.NewProcInst(el.name, el.value))
	case DirectiveNode:
		parent.AddChild(etree.NewDirective(el.value))
	case DocumentNode:
		for _, c := range el.children {
			toEtree(parent, c)
		}
	}
}
