package meta

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
)

// protoKey is never resolved as a path component.
const protoKey = "__proto__"

// Section is a position in the metadata tree: a value (possibly absent) and the dotted path
// that leads to it.
type Section struct {
	value Value
	path  string
}

// Root wraps a value as the top of a metadata tree.
func Root(v Value) Section {
	return Section{value: v}
}

// Value returns the wrapped value, nil when absent.
func (s Section) Value() Value { return s.value }

// Path returns the dotted path of the section ("" for the root).
func (s Section) Path() string { return s.path }

// Kind returns the kind of the value, Absent when there is none.
func (s Section) Kind() Kind {
	if s.value == nil {
		return Absent
	}
	return s.value.Kind()
}

func (s Section) Exists() bool   { return s.Kind() != Absent }
func (s Section) IsMap() bool    { return s.Kind() == MappingKind }
func (s Section) IsArray() bool  { return s.Kind() == SequenceKind }
func (s Section) IsScalar() bool { return s.Kind() == ScalarKind }

// Get follows a dotted path. Sequence steps are decimal indices. Any step that cannot be
// followed, including a "__proto__" component, yields an absent section whose path is still
// the full requested path.
func (s Section) Get(path string) Section {
	if path == "" {
		return s
	}
	out := Section{path: join(s.path, path)}
	cur := s.value
	for _, component := range strings.Split(path, ".") {
		if component == protoKey || cur == nil {
			return out
		}
		switch v := cur.(type) {
		case *Mapping:
			cur, _ = v.Get(component)
		case Sequence:
			i, err := strconv.Atoi(component)
			if err != nil || i < 0 || i >= len(v) {
				return out
			}
			cur = v[i]
		default:
			return out
		}
	}
	out.value = cur
	return out
}

// Has reports whether a dotted path leads to a value.
func (s Section) Has(path string) bool {
	return s.Get(path).Exists()
}

// String returns the scalar at path ("" for the section itself).
func (s Section) String(path string) (string, error) {
	target := s.Get(path)
	v, ok := target.value.(Scalar)
	if !ok {
		return "", target.kindError(ScalarKind)
	}
	return string(v), nil
}

// StringOr returns the scalar at path, or def when the path is absent. A value of another kind
// is still an error.
func (s Section) StringOr(path, def string) (string, error) {
	target := s.Get(path)
	if !target.Exists() {
		return def, nil
	}
	return s.String(path)
}

// AsArray returns the elements of a sequence.
func (s Section) AsArray() ([]Section, error) {
	seq, ok := s.value.(Sequence)
	if !ok {
		return nil, s.kindError(SequenceKind)
	}
	out := make([]Section, len(seq))
	for i, v := range seq {
		out[i] = Section{value: v, path: join(s.path, strconv.Itoa(i))}
	}
	return out, nil
}

// Keys returns the keys of a mapping in document order.
func (s Section) Keys() ([]string, error) {
	m, ok := s.value.(*Mapping)
	if !ok {
		return nil, s.kindError(MappingKind)
	}
	return m.Keys(), nil
}

// MarshalJSON writes the wrapped value; an absent section is null.
func (s Section) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

func (s Section) kindError(expected Kind) error {
	subject := s.path
	if subject == "" {
		subject = "(root)"
	}
	if s.value == nil {
		return docerr.New(docerr.KindMissingResource, docerr.CodeMetadataMissing, "read metadata", subject,
			fmt.Sprintf("expected to have %s at path %s", expected, subject))
	}
	return docerr.New(docerr.KindMalformedInput, docerr.CodeMetadataWrongType, "read metadata", subject,
		fmt.Sprintf("expected %s at path %s, got %s instead", expected, subject, s.value.Kind()))
}

func join(base, rel string) string {
	switch {
	case base == "":
		return rel
	case rel == "":
		return base
	}
	return base + "." + rel
}
