// Package meta models the front matter of a manuscript as a closed union of scalars,
// sequences and ordered mappings, and navigates it by dotted paths such as
// "authors.0.name_ru".
//
// Navigation never fails half way: a missing step yields an absent Section. Only the terminal
// accessors (String, AsArray, Keys) return errors, and those name the full dotted path together
// with the expected and the actual kind.
package meta

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
)

// Kind is the shape of a metadata value.
type Kind int

const (
	Absent Kind = iota
	ScalarKind
	SequenceKind
	MappingKind
)

func (k Kind) String() string {
	switch k {
	case ScalarKind:
		return "string"
	case SequenceKind:
		return "array"
	case MappingKind:
		return "object"
	default:
		return "nothing"
	}
}

// Value is a Scalar, a Sequence or a *Mapping.
type Value interface {
	Kind() Kind
	isValue()
}

// Scalar is a leaf value. Numbers and booleans keep their source spelling.
type Scalar string

// Sequence is an ordered list of values.
type Sequence []Value

// Mapping is an ordered string-keyed map. Lookups only see keys that were stored.
type Mapping struct {
	keys   []string
	values map[string]Value
}

func (Scalar) Kind() Kind   { return ScalarKind }
func (Sequence) Kind() Kind { return SequenceKind }
func (*Mapping) Kind() Kind { return MappingKind }
func (Scalar) isValue()     {}
func (Sequence) isValue()   {}
func (*Mapping) isValue()   {}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]Value)}
}

// Set stores a value. A key that is set again keeps its original position.
func (m *Mapping) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get looks a key up.
func (m *Mapping) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Mapping) Len() int { return len(m.keys) }

// MarshalJSON writes the mapping with its keys in order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FromYAML decodes a YAML document. An empty document yields an absent root.
func FromYAML(data []byte) (Section, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Section{}, docerr.Wrap(docerr.KindMalformedInput, docerr.CodeMalformedMetadata, "parse front matter", "", err)
	}
	if doc.Kind == 0 {
		return Section{}, nil
	}
	v, err := fromNode(&doc, "")
	if err != nil {
		return Section{}, err
	}
	return Root(v), nil
}

func fromNode(n *yaml.Node, path string) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0], path)
	case yaml.AliasNode:
		return fromNode(n.Alias, path)
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		return Scalar(n.Value), nil
	case yaml.SequenceNode:
		seq := make(Sequence, 0, len(n.Content))
		for i, c := range n.Content {
			v, err := fromNode(c, join(path, fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	case yaml.MappingNode:
		m := NewMapping()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, c := n.Content[i], n.Content[i+1]
			if k.Kind == yaml.AliasNode {
				k = k.Alias
			}
			if k.Tag == "!!merge" {
				merged, err := fromNode(c, path)
				if err != nil {
					return nil, err
				}
				mergeInto(m, merged)
				continue
			}
			if k.Kind != yaml.ScalarNode {
				return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedMetadata, "parse front matter", path,
					fmt.Sprintf("line %d: mapping keys must be scalars", k.Line))
			}
			v, err := fromNode(c, join(path, k.Value))
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, v)
		}
		return m, nil
	}
	return nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedMetadata, "parse front matter", path,
		fmt.Sprintf("line %d: unsupported YAML node", n.Line))
}

func mergeInto(m *Mapping, v Value) {
	switch src := v.(type) {
	case *Mapping:
		for _, k := range src.keys {
			if _, exists := m.values[k]; !exists {
				m.Set(k, src.values[k])
			}
		}
	case Sequence:
		for _, item := range src {
			mergeInto(m, item)
		}
	}
}
