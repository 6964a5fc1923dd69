package markdown

import (
	"bytes"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
)

// SplitFrontMatter separates a leading YAML block delimited by "---" lines from the Markdown
// that follows it. The block may be closed by "---" or "...". Input without a leading
// delimiter has no front matter; an opening delimiter that is never closed is an error.
func SplitFrontMatter(src []byte) (front, body []byte, err error) {
	src = bytes.TrimPrefix(src, []byte("\ufeff"))
	first, rest, ok := cutLine(src)
	if !ok && len(first) == 0 {
		return nil, src, nil
	}
	if string(trimEOL(first)) != "---" {
		return nil, src, nil
	}

	start := len(src) - len(rest)
	offset := start
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = cutLine(rest)
		switch string(bytes.TrimRight(trimEOL(line), " \t")) {
		case "---", "...":
			return src[start:offset], rest, nil
		}
		offset += len(line)
	}
	return nil, nil, docerr.New(docerr.KindMalformedInput, docerr.CodeMalformedMarkdown, "split front matter", "",
		"front matter block is not closed")
}

// cutLine returns the first line of b including its line ending.
func cutLine(b []byte) (line, rest []byte, found bool) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i+1], b[i+1:], true
	}
	return b, nil, false
}

func trimEOL(line []byte) []byte {
	return bytes.TrimRight(line, "\r\n")
}
