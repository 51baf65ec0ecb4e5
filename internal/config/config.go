package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// FileName is the config file name, searched for in the root and in
	// $HOME/.config/snipsync.
	FileName  = ".snipsync"
	envPrefix = "SNIPSYNC"
)

// Config holds the settings shared by every run.
type Config struct {
	Root        string   `mapstructure:"root"`
	Extensions  []string `mapstructure:"extensions"`
	Format      string   `mapstructure:"format"`
	History     bool     `mapstructure:"history"`
	NvimAddress string   `mapstructure:"nvim_address"`
	LogLevel    string   `mapstructure:"log_level"`
}

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"root":         "root",
	"extensions":   "extension",
	"format":       "format",
	"history":      "history",
	"nvim_address": "nvim",
	"log_level":    "log-level",
}

// Load layers defaults, the config file, SNIPSYNC_* environment variables
// and any flags that were set, in increasing precedence. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("root", "")
	v.SetDefault("extensions", []string{})
	v.SetDefault("format", "auto")
	v.SetDefault("history", true)
	v.SetDefault("nvim_address", "")
	v.SetDefault("log_level", "warn")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	// NVIM_LISTEN_ADDRESS is set inside :terminal buffers.
	if err := v.BindEnv("nvim_address", envPrefix+"_NVIM_ADDRESS", "NVIM_LISTEN_ADDRESS"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag '%s': %w", name, err)
				}
			}
		}
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if root := v.GetString("root"); root != "" {
		v.AddConfigPath(root)
	} else {
		v.AddConfigPath(".")
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "snipsync"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Extensions = NormalizeExtensions(cfg.Extensions)
	return cfg, nil
}

// NormalizeExtensions lower-cases extensions and gives each a leading dot.
// Blank entries are dropped.
func NormalizeExtensions(exts []string) []string {
	var out []string
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
