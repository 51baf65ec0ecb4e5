package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

// SourceProvider determines and retrieves the reply text.
type SourceProvider struct {
	inputPath     string
	stdin         *os.File
	readClipboard func() (string, error)
}

// New creates a SourceProvider. A non-empty inputPath ("-" for stdin)
// takes precedence over stdin detection and the clipboard.
func New(inputPath string) *SourceProvider {
	return &SourceProvider{
		inputPath:     inputPath,
		stdin:         os.Stdin,
		readClipboard: clipboard.ReadAll,
	}
}

// GetContent retrieves content from the input file, stdin (if piped) or
// the clipboard, in that order. Empty content is not an error.
func (sp *SourceProvider) GetContent() (string, error) {
	switch {
	case sp.inputPath == "-":
		return readAll(sp.stdin, "stdin")
	case sp.inputPath != "":
		data, err := os.ReadFile(sp.inputPath)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	case sp.isPiped():
		return readAll(sp.stdin, "stdin")
	}

	content, err := sp.readClipboard()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	return content, nil
}

// Describe names where content will be read from, for display.
func (sp *SourceProvider) Describe() string {
	switch {
	case sp.inputPath == "-":
		return "stdin"
	case sp.inputPath != "":
		return sp.inputPath
	case sp.isPiped():
		return "stdin"
	default:
		return "clipboard"
	}
}

func (sp *SourceProvider) isPiped() bool {
	if sp.stdin == nil {
		return false
	}
	stat, err := sp.stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func readAll(r io.Reader, name string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read from %s: %w", name, err)
	}
	return string(content), nil
}
