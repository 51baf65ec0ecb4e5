package snippet

import (
	"strings"
	"unicode/utf8"

	"github.com/sokinpui/snipsync/model"
)

// Span is a located region of file content, in byte offsets.
type Span struct {
	Start int
	End   int
	// Text is the original content covered by the span at locate time.
	Text string
}

// Locate finds the single occurrence of snippet in content.
//
// An exact match is tried first. When there is none, both sides are
// compared with CRLF folded to LF and trailing spaces and tabs removed
// from every line; the returned span still points into the unmodified
// content. More than one non-overlapping match in either pass is an
// AmbiguousSnippet error.
func Locate(content, snippet string) (Span, error) {
	if snippet == "" {
		return Span{}, model.NewError(model.EmptySnippet, "", nil)
	}
	if !utf8.ValidString(content) {
		return Span{}, model.NewError(model.EncodingError, "", nil)
	}

	starts := findAll(content, snippet, 2)
	switch len(starts) {
	case 0:
		return locateNormalized(content, snippet)
	case 1:
		return newSpan(content, starts[0], starts[0]+len(snippet)), nil
	default:
		return Span{}, model.NewError(model.AmbiguousSnippet, "", nil)
	}
}

func locateNormalized(content, snippet string) (Span, error) {
	needle := normalize(snippet).text
	if needle == "" {
		return Span{}, model.NewError(model.SnippetNotFound, "", nil)
	}
	haystack := normalize(content)

	// Blanks stripped from the snippet's last line stood for the end of a
	// line, so the match must end there too.
	endsAtLine := func(int) bool { return true }
	if last := snippet[len(snippet)-1]; last == ' ' || last == '\t' {
		endsAtLine = func(start int) bool {
			end := start + len(needle)
			return end == len(haystack.text) || haystack.text[end] == '\n'
		}
	}

	starts := findAllFunc(haystack.text, needle, 2, endsAtLine)
	switch len(starts) {
	case 0:
		return Span{}, model.NewError(model.SnippetNotFound, "", nil)
	case 1:
		first := starts[0]
		last := first + len(needle) - 1
		return newSpan(content, haystack.start[first], haystack.end[last]), nil
	default:
		return Span{}, model.NewError(model.AmbiguousSnippet, "", nil)
	}
}

func newSpan(content string, start, end int) Span {
	return Span{Start: start, End: end, Text: content[start:end]}
}

// findAll returns up to limit non-overlapping start offsets of needle.
func findAll(haystack, needle string, limit int) []int {
	return findAllFunc(haystack, needle, limit, func(int) bool { return true })
}

// findAllFunc is findAll counting only occurrences accepted by accept.
func findAllFunc(haystack, needle string, limit int, accept func(start int) bool) []int {
	var starts []int
	offset := 0
	for len(starts) < limit {
		i := strings.Index(haystack[offset:], needle)
		if i < 0 {
			break
		}
		start := offset + i
		if !accept(start) {
			offset = start + 1
			continue
		}
		starts = append(starts, start)
		offset = start + len(needle)
	}
	return starts
}

// normalized is text with CRLF folded and trailing blanks removed. For
// every byte of text, start and end hold the original region it stands
// for.
type normalized struct {
	text  string
	start []int
	end   []int
}

func normalize(s string) normalized {
	var b strings.Builder
	b.Grow(len(s))
	n := normalized{
		start: make([]int, 0, len(s)),
		end:   make([]int, 0, len(s)),
	}

	for lineStart := 0; lineStart <= len(s); {
		lineEnd, next := len(s), len(s)+1
		if i := strings.IndexByte(s[lineStart:], '\n'); i >= 0 {
			lineEnd = lineStart + i
			next = lineEnd + 1
		}
		hasNewline := next <= len(s)

		body := lineEnd
		if hasNewline && body > lineStart && s[body-1] == '\r' {
			body--
		}
		for body > lineStart && (s[body-1] == ' ' || s[body-1] == '\t') {
			body--
		}

		for i := lineStart; i < body; i++ {
			b.WriteByte(s[i])
			n.start = append(n.start, i)
			n.end = append(n.end, i+1)
		}
		// The newline stands for the stripped blanks, the CR and itself.
		if hasNewline {
			b.WriteByte('\n')
			n.start = append(n.start, body)
			n.end = append(n.end, next)
		}
		lineStart = next
	}

	n.text = b.String()
	return n
}
