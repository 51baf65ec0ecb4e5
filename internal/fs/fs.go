package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sokinpui/snipsync/model"
)

// Root confines file operations to one directory tree.
type Root struct {
	dir string
}

// NewRoot creates a Root for dir, or for the current working directory
// when dir is empty. The directory must exist.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid root directory '%s': %w", dir, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("invalid root directory '%s': %w", dir, err)
	}

	r := &Root{dir: real}
	if err := r.Check(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the absolute, symlink-free root directory.
func (r *Root) Dir() string { return r.dir }

// Check reports whether the root is still an accessible directory.
func (r *Root) Check() error {
	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("root directory is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root '%s' is not a directory", r.dir)
	}
	f, err := os.Open(r.dir)
	if err != nil {
		return fmt.Errorf("root directory is not readable: %w", err)
	}
	return f.Close()
}

// Resolve maps a relative or absolute path to an absolute path inside the
// root. Symlinks of existing ancestors are followed before the containment
// check, so a link pointing out of the tree is rejected too.
func (r *Root) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", model.NewError(model.IoError, path, errors.New("empty path"))
	}

	p := filepath.FromSlash(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.dir, p)
	}
	p = filepath.Clean(p)

	real, err := resolveExisting(p)
	if err != nil {
		return "", classify(path, err)
	}
	if !isWithin(r.dir, real) {
		return "", model.NewError(model.PathEscapesRoot, path, nil)
	}
	return real, nil
}

// Rel returns path relative to the root for display, or path itself when
// that is not possible.
func (r *Root) Rel(path string) string {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil || !isWithin(r.dir, path) {
		return path
	}
	return rel
}

// resolveExisting evaluates symlinks on the longest existing prefix of p
// and re-appends the missing tail.
func resolveExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{real}, tail...)...), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// classify wraps an os error into a *model.Error.
func classify(path string, err error) error {
	var e *model.Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return model.NewError(model.FileNotFound, path, err)
	case errors.Is(err, os.ErrPermission):
		return model.NewError(model.PermissionDenied, path, err)
	default:
		return model.NewError(model.IoError, path, err)
	}
}

// GetFileSHA256 returns the hex SHA-256 of a file's content.
func GetFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256 returns the hex SHA-256 of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsEmpty reports whether a directory has no entries.
func IsEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
