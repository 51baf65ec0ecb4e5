package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/sokinpui/snipsync/internal/config"
)

// ErrHelp is returned when usage was requested and printed.
var ErrHelp = pflag.ErrHelp

// Config holds all the command-line flag values, layered over the config
// file and environment.
type Config struct {
	config.Config

	Input string
	Add   []string
	Copy  bool
	Plain bool
	JSON  bool
	Undo  bool
	Redo  bool
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags(args []string, output io.Writer) (*Config, error) {
	cfg := &Config{}
	fs := pflag.NewFlagSet("snipsync", pflag.ContinueOnError)
	fs.SetOutput(output)

	fs.String("root", "", "Project root; every path in a reply must resolve inside it (default: current directory).")
	fs.StringSliceP("extension", "e", nil, "Only apply files with these extensions (e.g., 'py', 'go').")
	fs.String("format", "auto", "Reply format: auto, json or markdown.")
	fs.Bool("history", true, "Record applied changes so they can be undone.")
	fs.String("nvim", "", "Address of a running Neovim to reload changed buffers in (default: $NVIM_LISTEN_ADDRESS).")
	fs.String("log-level", "warn", "Log level: debug, info, warn or error.")

	fs.StringVarP(&cfg.Input, "input", "i", "", "Read the reply from a file ('-' for stdin) instead of stdin or the clipboard.")
	fs.StringSliceVarP(&cfg.Add, "add", "a", nil, "Print files as path-hinted code blocks for use as prompt context.")
	fs.BoolVarP(&cfg.Copy, "copy", "c", false, "With --add, copy the context to the clipboard instead of printing it.")
	fs.BoolVar(&cfg.Plain, "plain", false, "Disable the spinner and print a plain summary.")
	fs.BoolVar(&cfg.JSON, "json", false, "Print the outcomes as JSON.")

	// Mutually exclusive history group
	fs.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last operation.")
	fs.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone operation.")

	fs.Usage = func() {
		fmt.Fprintln(output, "Usage: snipsync [flags]")
		fmt.Fprintln(output, "\nApply the file creations and snippet edits in an assistant reply, read from stdin (pipe) or the clipboard.")
		fmt.Fprintln(output, "\nExample: pbpaste | snipsync -e py")
		fmt.Fprintln(output, "\nFlags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Validate mutually exclusive flags
	if cfg.Undo && cfg.Redo {
		return nil, errors.New("--undo and --redo are mutually exclusive")
	}
	if cfg.Copy && len(cfg.Add) == 0 {
		return nil, errors.New("--copy requires --add")
	}

	loaded, err := config.Load(fs)
	if err != nil {
		return nil, err
	}
	cfg.Config = *loaded
	return cfg, nil
}
