package applier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sokinpui/snipsync/internal/fs"
	"github.com/sokinpui/snipsync/internal/snippet"
	"github.com/sokinpui/snipsync/model"
)

// Applier turns a structured reply into file mutations. It holds no state
// between calls.
type Applier struct {
	writer     *fs.Writer
	extensions []string
	logger     *zap.Logger
}

// Option configures an Applier.
type Option func(*Applier)

// WithExtensions restricts processing to paths with one of the given
// extensions (".go", ".py"). An empty list means no filter.
func WithExtensions(extensions []string) Option {
	return func(a *Applier) { a.extensions = extensions }
}

// WithLogger sets the logger used for per-item events.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Applier writing through w.
func New(w *fs.Writer, opts ...Option) *Applier {
	a := &Applier{writer: w, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply processes all creations, then all edits, in order. Per-item
// failures are reported in the returned outcomes; the error is non-nil only
// when the root itself cannot be used. ctx is checked between items, never
// during a write; items not started after cancellation are reported as
// Cancelled.
func (a *Applier) Apply(ctx context.Context, reply model.StructuredReply) ([]model.EditOutcome, error) {
	if err := a.writer.Root().Check(); err != nil {
		return nil, err
	}

	creations := filterByExtension(reply.FilesToCreate, func(c model.FileCreation) string { return c.Path }, a.extensions)
	edits := filterByExtension(reply.FilesToEdit, func(e model.FileEdit) string { return e.Path }, a.extensions)

	outcomes := make([]model.EditOutcome, 0, len(creations)+len(edits))
	outcomes = append(outcomes, processSequentially(ctx, creations,
		func(c model.FileCreation) string { return c.Path },
		a.create)...)
	outcomes = append(outcomes, processSequentially(ctx, edits,
		func(e model.FileEdit) string { return e.Path },
		a.edit)...)
	return outcomes, nil
}

func (a *Applier) create(c model.FileCreation) model.EditOutcome {
	if err := a.writer.Create(c.Path, c.Content); err != nil {
		return a.failure(c.Path, err)
	}
	a.logger.Info("created file", zap.String("path", c.Path), zap.Int("bytes", len(c.Content)))
	return model.EditOutcome{Path: c.Path, Kind: model.Created}
}

func (a *Applier) edit(e model.FileEdit) model.EditOutcome {
	if e.OriginalSnippet == "" {
		return a.failure(e.Path, model.NewError(model.EmptySnippet, e.Path, nil))
	}

	content, err := a.writer.ReadText(e.Path)
	if err != nil {
		return a.failure(e.Path, err)
	}

	span, err := snippet.Locate(content, e.OriginalSnippet)
	if err != nil {
		return a.failure(e.Path, err)
	}

	if err := a.writer.Replace(e.Path, span, e.NewSnippet); err != nil {
		return a.failure(e.Path, err)
	}
	a.logger.Info("edited file",
		zap.String("path", e.Path),
		zap.Int("start", span.Start),
		zap.Int("end", span.End))
	return model.EditOutcome{Path: e.Path, Kind: model.Edited}
}

func (a *Applier) failure(path string, err error) model.EditOutcome {
	kind := model.KindOf(err)
	a.logger.Warn("instruction failed",
		zap.String("path", path),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return model.EditOutcome{Path: path, Kind: model.Failed, Err: kind, Detail: describe(kind, err)}
}

func describe(kind model.ErrorKind, err error) string {
	var e *model.Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("%s: %v", kind.Describe(), err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", kind.Describe(), e.Err)
	}
	return kind.Describe()
}

// processSequentially runs fn over items in order. Once ctx is done the
// remaining items are reported as cancelled without being touched.
func processSequentially[T any](
	ctx context.Context,
	items []T,
	pathOf func(T) string,
	fn func(T) model.EditOutcome,
) []model.EditOutcome {
	outcomes := make([]model.EditOutcome, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			kind := model.Cancelled
			outcomes = append(outcomes, model.EditOutcome{
				Path:   pathOf(item),
				Kind:   model.Failed,
				Err:    kind,
				Detail: kind.Describe(),
			})
			continue
		}
		outcomes = append(outcomes, fn(item))
	}
	return outcomes
}

func filterByExtension[T any](items []T, pathOf func(T) string, extensions []string) []T {
	if len(extensions) == 0 {
		return items
	}
	var kept []T
	for _, item := range items {
		if hasAllowedExtension(pathOf(item), extensions) {
			kept = append(kept, item)
		}
	}
	return kept
}

func hasAllowedExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, allowedExt := range extensions {
		if ext == allowedExt {
			return true
		}
	}
	return false
}
