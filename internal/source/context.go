package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
)

// TextReader reads the text of a file by path.
type TextReader interface {
	ReadText(path string) (string, error)
}

// FormatContext renders files as path-hinted fenced blocks, the same shape
// the markdown reply parser reads back, so they can be pasted into a prompt.
func FormatContext(r TextReader, paths []string) (string, error) {
	var b strings.Builder
	for i, path := range paths {
		content, err := r.ReadText(path)
		if err != nil {
			return "", fmt.Errorf("failed to add '%s' to context: %w", path, err)
		}
		if i > 0 {
			b.WriteString("\n")
		}

		fence := fenceFor(content)
		lang := strings.TrimPrefix(filepath.Ext(path), ".")
		fmt.Fprintf(&b, "`%s`\n%s%s\n%s", filepath.ToSlash(path), fence, lang, content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString(fence + "\n")
	}
	return b.String(), nil
}

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write to clipboard: %w", err)
	}
	return nil
}

// fenceFor returns a backtick fence longer than any backtick run in content.
func fenceFor(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}
