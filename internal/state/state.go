package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sokinpui/snipsync/internal/fs"
	"github.com/sokinpui/snipsync/model"
)

const (
	// DirName is the per-root directory holding history and logs.
	DirName         = ".snipsync"
	historyFileName = "history.yaml"
	objectsDirName  = "objects"
)

// Operation actions.
const (
	ActionCreate = "create"
	ActionModify = "modify"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")

	errChanged = errors.New("file changed since it was recorded")
)

// Operation records one file changed by an apply. Before and After are
// SHA-256 hashes of the content, which is kept in the object store.
// Before is empty for a creation.
type Operation struct {
	Path   string `yaml:"path"`
	Action string `yaml:"action"`
	Before string `yaml:"before,omitempty"`
	After  string `yaml:"after"`
}

// HistoryEntry represents one applied reply.
type HistoryEntry struct {
	ID         string      `yaml:"id"`
	Timestamp  int64       `yaml:"timestamp"`
	Operations []Operation `yaml:"operations"`
}

// State represents the entire history file.
type State struct {
	CurrentIndex int            `yaml:"current_index"`
	History      []HistoryEntry `yaml:"history"`
}

// Manager handles the lifecycle of the history file.
type Manager struct {
	writer *fs.Writer
	logger *zap.Logger
	state  *State
}

// Snapshot holds file contents captured before an apply.
type Snapshot struct {
	images map[string]image
}

type image struct {
	data   []byte
	exists bool
}

// New creates and loads a history manager for the writer's root.
func New(w *fs.Writer, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{writer: w, logger: logger}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func historyPath() string { return filepath.Join(DirName, historyFileName) }

func objectPath(hash string) string { return filepath.Join(DirName, objectsDirName, hash) }

func (m *Manager) load() error {
	m.state = &State{CurrentIndex: -1}

	data, err := m.writer.Read(historyPath())
	if err != nil {
		if model.KindOf(err) == model.FileNotFound {
			return nil
		}
		return fmt.Errorf("could not read history: %w", err)
	}

	st := &State{CurrentIndex: -1}
	if err := yaml.Unmarshal(data, st); err != nil {
		return fmt.Errorf("invalid history file: %w", err)
	}
	if st.CurrentIndex < -1 || st.CurrentIndex >= len(st.History) {
		return fmt.Errorf("invalid history file: current index %d out of range", st.CurrentIndex)
	}
	m.state = st
	return nil
}

func (m *Manager) save() error {
	data, err := yaml.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("could not encode history: %w", err)
	}
	if err := m.writer.Write(historyPath(), data); err != nil {
		return fmt.Errorf("could not write history: %w", err)
	}
	return nil
}

// Entries returns the recorded history and the index of the entry the
// next undo would revert (-1 if none).
func (m *Manager) Entries() ([]HistoryEntry, int) {
	return m.state.History, m.state.CurrentIndex
}

// Snapshot captures the current content of paths. Paths outside the root
// or that cannot be read are left out and will not be recorded.
func (m *Manager) Snapshot(paths []string) *Snapshot {
	snap := &Snapshot{images: make(map[string]image)}
	for _, p := range paths {
		rel, ok := m.rel(p)
		if !ok {
			continue
		}
		if _, seen := snap.images[rel]; seen {
			continue
		}
		data, err := m.writer.Read(rel)
		switch {
		case err == nil:
			snap.images[rel] = image{data: data, exists: true}
		case model.KindOf(err) == model.FileNotFound:
			snap.images[rel] = image{}
		}
	}
	return snap
}

// Record adds an entry for the files successfully changed in outcomes,
// dropping any undone entries after the current one. Nothing is written
// when no file changed.
func (m *Manager) Record(snap *Snapshot, outcomes []model.EditOutcome) error {
	var ops []Operation
	seen := make(map[string]bool)
	for _, o := range outcomes {
		if o.Kind != model.Created && o.Kind != model.Edited {
			continue
		}
		rel, ok := m.rel(o.Path)
		if !ok || seen[rel] {
			continue
		}
		before, ok := snap.images[rel]
		if !ok {
			continue
		}
		seen[rel] = true

		op, err := m.operation(rel, before)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil
	}

	m.state.History = append(m.state.History[:m.state.CurrentIndex+1], HistoryEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC().Unix(),
		Operations: ops,
	})
	m.state.CurrentIndex = len(m.state.History) - 1
	m.logger.Info("recorded history entry",
		zap.String("id", m.state.History[m.state.CurrentIndex].ID),
		zap.Int("files", len(ops)))
	return m.save()
}

func (m *Manager) operation(rel string, before image) (Operation, error) {
	after, err := m.writer.Read(rel)
	if err != nil {
		return Operation{}, fmt.Errorf("could not record '%s': %w", rel, err)
	}

	op := Operation{Path: filepath.ToSlash(rel), Action: ActionCreate}
	if before.exists {
		op.Action = ActionModify
		if op.Before, err = m.store(before.data); err != nil {
			return Operation{}, err
		}
	}
	if op.After, err = m.store(after); err != nil {
		return Operation{}, err
	}
	return op, nil
}

// Undo reverts the current entry and moves the history pointer back.
// Files whose content no longer matches what was recorded are left alone
// and reported as failed.
func (m *Manager) Undo() ([]model.EditOutcome, error) {
	if m.state.CurrentIndex < 0 {
		return nil, ErrNothingToUndo
	}
	ops := m.state.History[m.state.CurrentIndex].Operations

	outcomes := make([]model.EditOutcome, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		outcomes = append(outcomes, m.undoOperation(ops[i]))
	}

	m.state.CurrentIndex--
	if err := m.save(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (m *Manager) undoOperation(op Operation) model.EditOutcome {
	current, err := m.currentHash(op.Path)
	if err != nil {
		return m.failure(op.Path, err)
	}
	if current != op.After {
		return m.failure(op.Path, model.NewError(model.StaleSpan, op.Path, errChanged))
	}

	if op.Action == ActionCreate {
		abs, err := m.writer.Root().Resolve(op.Path)
		if err != nil {
			return m.failure(op.Path, err)
		}
		if err := m.writer.Remove(op.Path); err != nil {
			return m.failure(op.Path, err)
		}
		m.removeEmptyParents(abs)
		return model.EditOutcome{Path: op.Path, Kind: model.Removed}
	}

	if err := m.restore(op.Path, op.Before); err != nil {
		return m.failure(op.Path, err)
	}
	return model.EditOutcome{Path: op.Path, Kind: model.Edited}
}

// Redo re-applies the entry after the current one and moves the history
// pointer forward.
func (m *Manager) Redo() ([]model.EditOutcome, error) {
	next := m.state.CurrentIndex + 1
	if next >= len(m.state.History) {
		return nil, ErrNothingToRedo
	}
	ops := m.state.History[next].Operations

	outcomes := make([]model.EditOutcome, 0, len(ops))
	for _, op := range ops {
		outcomes = append(outcomes, m.redoOperation(op))
	}

	m.state.CurrentIndex = next
	if err := m.save(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (m *Manager) redoOperation(op Operation) model.EditOutcome {
	current, err := m.currentHash(op.Path)
	if err != nil {
		return m.failure(op.Path, err)
	}
	// Before is empty for a creation, which matches an absent file.
	if current != op.Before {
		return m.failure(op.Path, model.NewError(model.StaleSpan, op.Path, errChanged))
	}

	if err := m.restore(op.Path, op.After); err != nil {
		return m.failure(op.Path, err)
	}
	if op.Action == ActionCreate {
		return model.EditOutcome{Path: op.Path, Kind: model.Created}
	}
	return model.EditOutcome{Path: op.Path, Kind: model.Edited}
}

func (m *Manager) failure(path string, err error) model.EditOutcome {
	kind := model.KindOf(err)
	m.logger.Warn("history operation failed",
		zap.String("path", path),
		zap.String("kind", string(kind)),
		zap.Error(err))

	detail := kind.Describe()
	var e *model.Error
	if errors.As(err, &e) && e.Err != nil {
		detail = e.Err.Error()
	}
	return model.EditOutcome{Path: path, Kind: model.Failed, Err: kind, Detail: detail}
}

// currentHash returns the hash of the file at path, or "" if it is absent.
func (m *Manager) currentHash(path string) (string, error) {
	sum, err := m.writer.Hash(path)
	if model.KindOf(err) == model.FileNotFound {
		return "", nil
	}
	return sum, err
}

func (m *Manager) store(data []byte) (string, error) {
	hash := fs.SHA256(data)
	p := objectPath(hash)
	if _, err := m.writer.Hash(p); err == nil {
		return hash, nil
	}
	if err := m.writer.Write(p, data); err != nil {
		return "", fmt.Errorf("could not store object: %w", err)
	}
	return hash, nil
}

func (m *Manager) restore(path, hash string) error {
	data, err := m.writer.Read(objectPath(hash))
	if err != nil {
		return fmt.Errorf("missing history object %s: %w", hash, err)
	}
	if fs.SHA256(data) != hash {
		return model.NewError(model.IoError, path, fmt.Errorf("history object %s is corrupt", hash))
	}
	return m.writer.Write(path, data)
}

// removeEmptyParents deletes directories left empty by removing abs, up to
// but not including the root.
func (m *Manager) removeEmptyParents(abs string) {
	root := m.writer.Root().Dir()
	for dir := filepath.Dir(abs); dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if empty, err := fs.IsEmpty(dir); err != nil || !empty {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		m.logger.Debug("removed empty directory", zap.String("dir", dir))
	}
}

// rel maps a reply path to its root-relative form.
func (m *Manager) rel(path string) (string, bool) {
	abs, err := m.writer.Root().Resolve(path)
	if err != nil {
		return "", false
	}
	return m.writer.Root().Rel(abs), true
}
