package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/sokinpui/snipsync/cli"
	"github.com/sokinpui/snipsync/internal/logging"
	"github.com/sokinpui/snipsync/internal/source"
	"github.com/sokinpui/snipsync/internal/state"
	"github.com/sokinpui/snipsync/internal/tui"
	"github.com/sokinpui/snipsync/internal/ui"
	"github.com/sokinpui/snipsync/model"
	"github.com/sokinpui/snipsync/snipsync"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := cli.ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, cli.ErrHelp) {
		return 0
	}
	if err != nil {
		ui.Error("Error: %v", err)
		return 2
	}

	// The TUI owns the terminal, so its logs go to a file.
	interactive := !cfg.Plain && !cfg.JSON && len(cfg.Add) == 0 && isatty.IsTerminal(os.Stdout.Fd())
	logPath := ""
	if interactive {
		logPath = tuiLogPath(cfg)
	}
	logger, closeLog, err := logging.New(cfg.LogLevel, logPath)
	if err != nil {
		ui.Error("Failed to initialize logging: %v", err)
		return 1
	}
	defer closeLog()
	if interactive && logPath == "" {
		logger = zap.NewNop()
	}

	app, err := snipsync.New(cfg, logger)
	if err != nil {
		ui.Error("Failed to initialize application: %v", err)
		return 1
	}

	// Flags that print to stdout and should not run the TUI.
	if len(cfg.Add) > 0 {
		return exportContext(app, cfg)
	}

	var summary model.Summary
	if interactive {
		p := tea.NewProgram(tui.New(app))
		final, err := p.Run()
		if err != nil {
			ui.Error("Error running program: %v", err)
			return 1
		}
		m := final.(tui.Model)
		if code, done := tuiExitCode(m); !done {
			return code
		}
		summary = m.Summary()
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		summary, err = app.Execute(ctx)
		if err != nil {
			var de *snipsync.DetailedError
			if errors.As(err, &de) {
				fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", de.Stack)
			}
			ui.Error("Error: %v", err)
			return 1
		}
		if cfg.JSON {
			if err := ui.PrintJSON(os.Stdout, summary); err != nil {
				ui.Error("Error: %v", err)
				return 1
			}
		} else {
			ui.PrintSummary(os.Stdout, summary)
		}
	}

	if len(summary.Failed()) > 0 {
		return 1
	}
	return 0
}

// tuiLogPath keeps logs next to the history when it is enabled, and in the
// user cache directory otherwise, so a run without history leaves the root
// untouched. It returns "" when no log location is available.
func tuiLogPath(cfg *cli.Config) string {
	if cfg.History {
		root := cfg.Root
		if root == "" {
			root = "."
		}
		return filepath.Join(root, state.DirName, "snipsync.log")
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cache, "snipsync", "snipsync.log")
}

// tuiExitCode reports whether the TUI produced a summary. When it did not,
// code is the status to exit with.
func tuiExitCode(m tui.Model) (code int, done bool) {
	if m.Err() != nil {
		return 1, false
	}
	if !m.Finished() {
		ui.Warning("Quit before the run finished; some items may not have been applied.")
		return 1, false
	}
	return 0, true
}

func exportContext(app *snipsync.App, cfg *cli.Config) int {
	text, err := app.ExportContext(cfg.Add)
	if err != nil {
		ui.Error("Error: %v", err)
		return 1
	}
	if !cfg.Copy {
		fmt.Print(text)
		return 0
	}
	if err := source.CopyToClipboard(text); err != nil {
		ui.Error("Error: %v", err)
		return 1
	}
	ui.Info("Copied %d file(s) to the clipboard.", len(cfg.Add))
	return 0
}
