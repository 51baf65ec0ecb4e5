package snipsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/sokinpui/snipsync/cli"
	"github.com/sokinpui/snipsync/internal/applier"
	"github.com/sokinpui/snipsync/internal/fs"
	"github.com/sokinpui/snipsync/internal/nvim"
	"github.com/sokinpui/snipsync/internal/parser"
	"github.com/sokinpui/snipsync/internal/source"
	"github.com/sokinpui/snipsync/internal/state"
	"github.com/sokinpui/snipsync/model"
)

// App orchestrates the entire application logic.
type App struct {
	cfg            *cli.Config
	format         parser.Format
	root           *fs.Root
	writer         *fs.Writer
	applier        *applier.Applier
	stateManager   *state.Manager
	reloader       *nvim.Reloader
	sourceProvider *source.SourceProvider
	logger         *zap.Logger
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error { return e.Err }

// New creates a new App instance. logger may be nil.
func New(cfg *cli.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	format, err := parser.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	root, err := fs.NewRoot(cfg.Root)
	if err != nil {
		return nil, err
	}
	writer := fs.NewWriter(root)

	var stateManager *state.Manager
	if cfg.History {
		stateManager, err = state.New(writer, logger.Named("history"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize state manager: %w", err)
		}
	}

	return &App{
		cfg:            cfg,
		format:         format,
		root:           root,
		writer:         writer,
		applier:        applier.New(writer, applier.WithExtensions(cfg.Extensions), applier.WithLogger(logger.Named("applier"))),
		stateManager:   stateManager,
		reloader:       nvim.New(cfg.NvimAddress, logger.Named("nvim")),
		sourceProvider: source.New(cfg.Input),
		logger:         logger,
	}, nil
}

// Root returns the directory all writes are confined to.
func (a *App) Root() string { return a.root.Dir() }

// Parse decodes reply content in the configured format.
func (a *App) Parse(content string) (model.StructuredReply, error) {
	reply, err := parser.ParseReply(content, a.format)
	if err != nil {
		return model.StructuredReply{}, fmt.Errorf("failed to parse reply: %w", err)
	}
	return reply, nil
}

// Apply applies a structured reply, records it in the history and asks
// Neovim to reload the changed files. Outcome paths are the paths given in
// the reply. The error is non-nil only when nothing could be attempted.
func (a *App) Apply(ctx context.Context, reply model.StructuredReply) (model.Summary, error) {
	var snap *state.Snapshot
	if a.stateManager != nil {
		snap = a.stateManager.Snapshot(replyPaths(reply))
	}

	outcomes, err := a.applier.Apply(ctx, reply)
	if err != nil {
		return model.Summary{}, err
	}

	if a.stateManager != nil {
		if err := a.stateManager.Record(snap, outcomes); err != nil {
			a.logger.Error("failed to record history", zap.Error(err))
		}
	}
	a.reload(outcomes)

	return model.Summary{
		Operation: model.OpApply,
		Message:   reply.AssistantReply,
		Outcomes:  outcomes,
	}, nil
}

// ExportContext renders files as path-hinted code blocks for a prompt.
func (a *App) ExportContext(paths []string) (string, error) {
	return source.FormatContext(a.writer, paths)
}

// SourceName describes where Execute reads the reply from.
func (a *App) SourceName() string { return a.sourceProvider.Describe() }

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.Undo:
		summary, err = a.undoLastOperation()
	case a.cfg.Redo:
		summary, err = a.redoLastOperation()
	default:
		summary, err = a.processContent(ctx)
	}
	if err != nil {
		return model.Summary{}, err
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// processContent handles the core logic of reading, parsing and applying
// a reply.
func (a *App) processContent(ctx context.Context) (model.Summary, error) {
	content, err := a.sourceProvider.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if content == "" {
		return model.Summary{Operation: model.OpApply, Message: "Source is empty. Nothing to process."}, nil
	}

	reply, err := a.Parse(content)
	if err != nil {
		return model.Summary{}, err
	}
	if len(reply.FilesToCreate) == 0 && len(reply.FilesToEdit) == 0 && reply.AssistantReply == "" {
		return model.Summary{Operation: model.OpApply, Message: "No valid changes were generated. Nothing to do."}, nil
	}

	a.logger.Info("applying reply",
		zap.String("source", a.SourceName()),
		zap.Int("creations", len(reply.FilesToCreate)),
		zap.Int("edits", len(reply.FilesToEdit)))
	return a.Apply(ctx, reply)
}

// undoLastOperation handles the undo logic.
func (a *App) undoLastOperation() (model.Summary, error) {
	if a.stateManager == nil {
		return model.Summary{}, errors.New("history is disabled")
	}
	outcomes, err := a.stateManager.Undo()
	if errors.Is(err, state.ErrNothingToUndo) {
		return model.Summary{Operation: model.OpUndo, Message: "No operation to undo."}, nil
	}
	if err != nil {
		return model.Summary{}, err
	}
	a.reload(outcomes)
	return model.Summary{Operation: model.OpUndo, Message: "Undid last operation.", Outcomes: outcomes}, nil
}

// redoLastOperation handles the redo logic.
func (a *App) redoLastOperation() (model.Summary, error) {
	if a.stateManager == nil {
		return model.Summary{}, errors.New("history is disabled")
	}
	outcomes, err := a.stateManager.Redo()
	if errors.Is(err, state.ErrNothingToRedo) {
		return model.Summary{Operation: model.OpRedo, Message: "No operation to redo."}, nil
	}
	if err != nil {
		return model.Summary{}, err
	}
	a.reload(outcomes)
	return model.Summary{Operation: model.OpRedo, Message: "Redid last undone operation.", Outcomes: outcomes}, nil
}

// reload asks Neovim to re-read every file that now has new content.
func (a *App) reload(outcomes []model.EditOutcome) {
	if !a.reloader.Enabled() {
		return
	}
	var paths []string
	for _, o := range outcomes {
		if o.Kind != model.Created && o.Kind != model.Edited {
			continue
		}
		if abs, err := a.root.Resolve(o.Path); err == nil {
			paths = append(paths, abs)
		}
	}
	a.reloader.Reload(paths)
}

// relativizeSummaryPaths converts file paths in a summary to be relative
// to the current working directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	if real, err := filepath.EvalSymlinks(wd); err == nil {
		wd = real
	}

	for i, o := range summary.Outcomes {
		abs, err := a.root.Resolve(o.Path)
		if err != nil {
			continue
		}
		if rel, err := filepath.Rel(wd, abs); err == nil {
			summary.Outcomes[i].Path = rel
		}
	}
}

func replyPaths(reply model.StructuredReply) []string {
	paths := make([]string, 0, len(reply.FilesToCreate)+len(reply.FilesToEdit))
	for _, c := range reply.FilesToCreate {
		paths = append(paths, c.Path)
	}
	for _, e := range reply.FilesToEdit {
		paths = append(paths, e.Path)
	}
	return paths
}
