package fs

import (
	"errors"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/sokinpui/snipsync/internal/snippet"
	"github.com/sokinpui/snipsync/model"
)

const (
	defaultFileMode os.FileMode = 0o644
	defaultDirMode  os.FileMode = 0o755
)

// Writer creates and edits files under a Root. Every write goes through a
// temporary file in the target directory followed by a rename, so a target
// either holds its old content or the full new content.
type Writer struct {
	root *Root
}

// NewWriter creates a Writer confined to root.
func NewWriter(root *Root) *Writer {
	return &Writer{root: root}
}

// Root returns the root the writer is confined to.
func (w *Writer) Root() *Root { return w.root }

// Create writes content to path, creating parent directories and
// replacing any existing file.
func (w *Writer) Create(path, content string) error {
	return w.Write(path, []byte(content))
}

// Write is Create for raw bytes.
func (w *Writer) Write(path string, data []byte) error {
	abs, err := w.root.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), defaultDirMode); err != nil {
		return classify(path, err)
	}
	return writeAtomic(path, abs, data)
}

// Read returns the raw content of an existing file.
func (w *Writer) Read(path string) ([]byte, error) {
	abs, err := w.root.Resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, classify(path, err)
	}
	return data, nil
}

// Hash returns the hex SHA-256 of the file at path.
func (w *Writer) Hash(path string) (string, error) {
	abs, err := w.root.Resolve(path)
	if err != nil {
		return "", err
	}
	sum, err := GetFileSHA256(abs)
	if err != nil {
		return "", classify(path, err)
	}
	return sum, nil
}

// ReadText returns the UTF-8 content of an existing file.
func (w *Writer) ReadText(path string) (string, error) {
	abs, err := w.root.Resolve(path)
	if err != nil {
		return "", err
	}
	return readText(path, abs)
}

// Replace substitutes replacement for span in the file at path. The span
// must still cover the same text it did when it was located, otherwise the
// file is left alone and a StaleSpan error is returned.
func (w *Writer) Replace(path string, span snippet.Span, replacement string) error {
	abs, err := w.root.Resolve(path)
	if err != nil {
		return err
	}
	content, err := readText(path, abs)
	if err != nil {
		return err
	}

	if span.Start < 0 || span.End < span.Start || span.End > len(content) || content[span.Start:span.End] != span.Text {
		return model.NewError(model.StaleSpan, path, nil)
	}

	updated := content[:span.Start] + replacement + content[span.End:]
	return writeAtomic(path, abs, []byte(updated))
}

// Remove deletes the file at path.
func (w *Writer) Remove(path string) error {
	abs, err := w.root.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return classify(path, err)
	}
	return nil
}

func readText(path, abs string) (string, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", classify(path, err)
	}
	if !utf8.Valid(data) {
		return "", model.NewError(model.EncodingError, path, nil)
	}
	return string(data), nil
}

// writeAtomic writes data to a temp file next to abs, syncs it and renames
// it over abs. An existing file keeps its permission bits.
func writeAtomic(path, abs string, data []byte) (err error) {
	perm := defaultFileMode
	if info, statErr := os.Stat(abs); statErr == nil {
		if info.IsDir() {
			return model.NewError(model.IoError, path, errors.New("is a directory"))
		}
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(abs)
	f, err := os.CreateTemp(dir, "."+filepath.Base(abs)+".snipsync-*")
	if err != nil {
		return classify(path, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return classify(path, err)
	}
	if err = f.Sync(); err != nil {
		return classify(path, err)
	}
	if err = f.Close(); err != nil {
		return classify(path, err)
	}
	if err = os.Chmod(tmp, perm); err != nil {
		return classify(path, err)
	}
	if err = os.Rename(tmp, abs); err != nil {
		return classify(path, err)
	}
	return nil
}
