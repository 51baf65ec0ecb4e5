package snipsync

import (
	"context"
	"fmt"

	"github.com/sokinpui/snipsync/cli"
	"github.com/sokinpui/snipsync/internal/config"
	"github.com/sokinpui/snipsync/model"
)

// Config for using snipsync as a library.
type Config struct {
	// Directory all writes are confined to. Defaults to the working directory.
	Root string
	// Only apply files with these extensions (e.g., 'py', '.go').
	Extensions []string
	// Reply format: "auto", "json" or "markdown". Defaults to "auto".
	Format string
	// Record the change so it can be undone from the command line.
	History bool
}

// Apply parses the given reply content and applies it under config.Root.
func Apply(ctx context.Context, content string, cfg Config) (model.Summary, error) {
	app, err := New(&cli.Config{Config: config.Config{
		Root:       cfg.Root,
		Extensions: config.NormalizeExtensions(cfg.Extensions),
		Format:     cfg.Format,
		History:    cfg.History,
	}}, nil)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize snipsync app: %w", err)
	}

	reply, err := app.Parse(content)
	if err != nil {
		return model.Summary{}, err
	}
	return app.Apply(ctx, reply)
}
