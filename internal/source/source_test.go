package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGetContentFromInputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.md")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	sp := New(path)
	got, err := sp.GetContent()
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("content = %q", got)
	}
	if sp.Describe() != path {
		t.Errorf("Describe() = %q", sp.Describe())
	}
}

func TestGetContentMissingInputFile(t *testing.T) {
	sp := New(filepath.Join(t.TempDir(), "nope.md"))
	if _, err := sp.GetContent(); err == nil {
		t.Fatal("expected error for missing input file")
	}
}

func TestGetContentFromPipedStdin(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteString("piped reply"); err != nil {
		t.Fatal(err)
	}
	w.Close()
	defer r.Close()

	sp := &SourceProvider{stdin: r, readClipboard: func() (string, error) {
		t.Fatal("clipboard must not be read when stdin is piped")
		return "", nil
	}}
	got, err := sp.GetContent()
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if got != "piped reply" {
		t.Errorf("content = %q", got)
	}
}

func TestGetContentFromClipboard(t *testing.T) {
	t.Run("content", func(t *testing.T) {
		sp := &SourceProvider{readClipboard: func() (string, error) { return "from clipboard", nil }}
		got, err := sp.GetContent()
		if err != nil || got != "from clipboard" {
			t.Fatalf("GetContent = %q, %v", got, err)
		}
		if sp.Describe() != "clipboard" {
			t.Errorf("Describe() = %q", sp.Describe())
		}
	})

	t.Run("blank clipboard", func(t *testing.T) {
		sp := &SourceProvider{readClipboard: func() (string, error) { return "  \n", nil }}
		got, err := sp.GetContent()
		if err != nil || got != "" {
			t.Fatalf("GetContent = %q, %v", got, err)
		}
	})

	t.Run("clipboard error", func(t *testing.T) {
		sp := &SourceProvider{readClipboard: func() (string, error) { return "", errors.New("no display") }}
		if _, err := sp.GetContent(); err == nil {
			t.Fatal("expected error")
		}
	})
}

type mapReader map[string]string

func (m mapReader) ReadText(path string) (string, error) {
	content, ok := m[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return content, nil
}

func TestFormatContext(t *testing.T) {
	r := mapReader{
		"main.go":   "package main\n",
		"README.md": "use ```go blocks```",
	}

	got, err := FormatContext(r, []string{"main.go", "README.md"})
	if err != nil {
		t.Fatalf("FormatContext failed: %v", err)
	}
	want := "`main.go`\n```go\npackage main\n```\n" +
		"\n`README.md`\n````md\nuse ```go blocks```\n````\n"
	if got != want {
		t.Errorf("FormatContext =\n%q\nwant\n%q", got, want)
	}

	if _, err := FormatContext(r, []string{"missing.go"}); err == nil {
		t.Error("expected error for missing file")
	}
}
