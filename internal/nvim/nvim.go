package nvim

import (
	"fmt"
	"path/filepath"

	"github.com/neovim/go-client/nvim"
	"go.uber.org/zap"
)

// client is the part of *nvim.Nvim the reloader uses.
type client interface {
	Call(fname string, result any, args ...any) error
	Command(cmd string) error
	Close() error
}

// Reloader asks a running Neovim instance to re-read buffers of files
// changed on disk. It never starts an instance of its own.
type Reloader struct {
	address string
	logger  *zap.Logger
	dial    func(address string) (client, error)
}

// New creates a Reloader for the Neovim listening on address. An empty
// address makes every call a no-op.
func New(address string, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		address: address,
		logger:  logger,
		dial: func(address string) (client, error) {
			v, err := nvim.Dial(address)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// Enabled reports whether an address was configured.
func (r *Reloader) Enabled() bool { return r.address != "" }

// Reload runs :checktime on the buffer of each path that is loaded in
// Neovim and returns the paths that were reloaded. Failures are logged and
// otherwise ignored.
func (r *Reloader) Reload(paths []string) []string {
	if !r.Enabled() || len(paths) == 0 {
		return nil
	}

	v, err := r.dial(r.address)
	if err != nil {
		r.logger.Warn("could not connect to neovim", zap.String("address", r.address), zap.Error(err))
		return nil
	}
	defer v.Close()

	reloaded, failed := processSequentially(paths, func(path string) (string, bool) {
		ok, err := reloadBuffer(v, path)
		if err != nil {
			r.logger.Warn("could not reload buffer", zap.String("path", path), zap.Error(err))
		}
		return path, ok
	})
	r.logger.Debug("reloaded neovim buffers",
		zap.Strings("reloaded", reloaded),
		zap.Int("skipped", len(failed)))
	return reloaded
}

// reloadBuffer returns false without error when path has no buffer.
func reloadBuffer(v client, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	var bufnr int
	if err := v.Call("bufnr", &bufnr, absPath); err != nil {
		return false, err
	}
	if bufnr < 0 {
		return false, nil
	}
	if err := v.Command(fmt.Sprintf("checktime %d", bufnr)); err != nil {
		return false, err
	}
	return true, nil
}

// processSequentially is a generic helper function to run a set of jobs sequentially.
func processSequentially[T any](items []T, processFn func(item T) (path string, success bool)) (succeeded, failed []string) {
	for _, item := range items {
		path, success := processFn(item)
		if success {
			succeeded = append(succeeded, path)
		} else {
			failed = append(failed, path)
		}
	}
	return succeeded, failed
}
