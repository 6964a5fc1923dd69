package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	headingLabel = regexp.MustCompile(`\s*\{#(.*)\}`)
	attribute    = regexp.MustCompile(`(\w[\w-]*)=(?:"((?:\\.|[^"\\])*)"|'((?:\\.|[^'\\])*)'|([^'"\s]\S*)?)`)
)

func normalize(root *Node) {
	root.Walk(func(n *Node) bool {
		if n.Type == TypeHeading {
			extractHeadingLabel(n)
		}
		n.Children = attachImageAttrs(n.Children)
		return true
	})
}

// extractHeadingLabel moves a trailing "{#label}" from the heading text into n.ID.
func extractHeadingLabel(n *Node) {
	if len(n.Children) == 0 {
		return
	}
	last := n.Children[len(n.Children)-1]
	if last.Type != TypeText {
		return
	}
	m := headingLabel.FindStringSubmatch(last.Value)
	if m == nil {
		return
	}
	n.ID = m[1]
	last.Value = strings.TrimRight(headingLabel.ReplaceAllString(last.Value, ""), " \t")
	if last.Value == "" {
		n.Children = n.Children[:len(n.Children)-1]
	}
}

// attachImageAttrs moves an attribute block such as {width=5cm} that directly follows an image
// into the image's Attrs.
func attachImageAttrs(children []*Node) []*Node {
	for i := 1; i < len(children); i++ {
		img, text := children[i-1], children[i]
		if img.Type != TypeImage || text.Type != TypeText {
			continue
		}
		attrs, rest, ok := ParseAttributes(text.Value)
		if !ok {
			continue
		}
		img.Attrs = attrs
		if rest == "" {
			children = append(children[:i], children[i+1:]...)
			i--
		} else {
			text.Value = rest
		}
	}
	return children
}

// ParseAttributes reads a leading {key=value key="quoted value"} block. It returns the
// attributes and the text after the closing brace.
func ParseAttributes(s string) (map[string]string, string, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, s, false
	}
	end := closingBrace(s)
	if end < 0 {
		return nil, s, false
	}
	attrs := make(map[string]string)
	for _, m := range attribute.FindAllStringSubmatch(s[1:end], -1) {
		switch {
		case strings.HasPrefix(m[0], m[1]+`="`):
			attrs[m[1]] = m[2]
		case strings.HasPrefix(m[0], m[1]+`='`):
			attrs[m[1]] = m[3]
		default:
			attrs[m[1]] = unescape(m[4])
		}
	}
	return attrs, s[end+1:], true
}

func closingBrace(s string) int {
	var quote byte
	for i := 1; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
		case c == '"' || c == '\'':
			quote = c
		case c == '}':
			return i
		}
	}
	return -1
}

func unescape(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	if u, err := strconv.Unquote(`"` + v + `"`); err == nil {
		return u
	}
	return v
}
