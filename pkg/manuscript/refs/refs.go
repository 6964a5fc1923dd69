// Package refs numbers headings and resolves cross-references and citations in a parsed
// manuscript.
//
// Heading numbers come from a stack of counters, one per active level. Labels are grouped by
// the text before their first colon ("fig" for "fig:plot"); a label that is requested before it
// is defined receives the next free number of its group, and keeps it.
package refs

import (
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/markdown"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/meta"
)

// DefaultDepthThreshold makes level-1 headings the top numbering level.
const DefaultDepthThreshold = 1

// Unresolved is printed for a citation key that is not in the bibliography.
const Unresolved = "[?]"

// References holds the numbering state of one document.
type References struct {
	threshold int
	stack     []int
	groups    map[string]*group
	citations map[string]int
	log       *logging.Logger
}

type group struct {
	labels map[string]string
}

// Option configures References.
type Option func(*References)

// WithDepthThreshold sets the heading depth that maps to the first counter level. Headings
// shallower than the threshold are not numbered.
func WithDepthThreshold(depth int) Option {
	return func(r *References) { r.threshold = depth }
}

// WithLogger sets the logger that receives duplicate-label and unresolved-citation warnings.
func WithLogger(l *logging.Logger) Option {
	return func(r *References) { r.log = l }
}

// New creates the state for one document. links is the bibliography: a sequence whose mapping
// entries with an "id" can be cited. An absent section means an empty bibliography.
func New(links meta.Section, opts ...Option) (*References, error) {
	r := &References{
		threshold: DefaultDepthThreshold,
		groups:    make(map[string]*group),
		citations: make(map[string]int),
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if links.Exists() {
		entries, err := links.AsArray()
		if err != nil {
			return nil, err
		}
		for i, entry := range entries {
			if !entry.IsMap() {
				continue
			}
			id, err := entry.StringOr("id", "")
			if err != nil {
				return nil, err
			}
			if _, seen := r.citations[id]; id != "" && !seen {
				r.citations[id] = i + 1
			}
		}
	}
	return r, nil
}

// Section numbers a heading at depth and, when id is set, records the number under that label.
// It returns "" for headings above the threshold.
func (r *References) Section(depth int, id string) string {
	level := depth - r.threshold
	if level < 0 {
		return ""
	}

	if len(r.stack) > level+1 {
		r.stack = r.stack[:level+1]
	}
	if len(r.stack) == level+1 {
		r.stack[level]++
	} else {
		for len(r.stack) < level+1 {
			r.stack = append(r.stack, 1)
		}
	}

	parts := make([]string, len(r.stack))
	for i, c := range r.stack {
		parts[i] = strconv.Itoa(c)
	}
	number := strings.Join(parts, ".")

	if id != "" {
		g := r.group(id)
		if _, dup := g.labels[id]; dup {
			r.log.WithField("label", id).Warn("multiple definitions of section %s", id)
		}
		g.labels[id] = number
	}

	if len(r.stack) == 1 {
		number += "."
	}
	return number
}

// Reference returns the number of a label, assigning the next number of its group on first use.
func (r *References) Reference(label string) string {
	g := r.group(label)
	if v, ok := g.labels[label]; ok {
		return v
	}
	v := strconv.Itoa(len(g.labels) + 1)
	g.labels[label] = v
	return v
}

// Cite returns "[n]" for the bibliography entry with the given id, or Unresolved.
func (r *References) Cite(key string) string {
	if i, ok := r.citations[key]; ok {
		return "[" + strconv.Itoa(i) + "]"
	}
	r.log.WithField("key", key).Warn("undefined citation: %s", key)
	return Unresolved
}

func (r *References) group(label string) *group {
	prefix, _, _ := strings.Cut(label, ":")
	g, ok := r.groups[prefix]
	if !ok {
		g = &group{labels: make(map[string]string)}
		r.groups[prefix] = g
	}
	return g
}

// Apply runs the numbering pass over a document tree in document order: every numbered heading
// gets its number and a space prepended to its text, and every cite and ref marker is replaced
// by the text it resolves to.
func (r *References) Apply(root *markdown.Node) {
	root.Walk(func(n *markdown.Node) bool {
		switch n.Type {
		case markdown.TypeHeading:
			if number := r.Section(n.Depth, n.ID); number != "" {
				n.Prepend(markdown.Text(number + " "))
			}
		case markdown.TypeCite:
			resolveMarker(n, r.Cite(n.Value))
		case markdown.TypeRef:
			resolveMarker(n, r.Reference(n.Value))
		}
		return true
	})
}

func resolveMarker(n *markdown.Node, text string) {
	*n = markdown.Node{Type: markdown.TypeText, Value: text}
}
