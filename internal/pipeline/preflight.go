package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/backmassage/vid2audio/internal/check"
	"github.com/backmassage/vid2audio/internal/config"
)

var (
	// ErrOutputNotWritable means the output directory cannot be created or
	// written to.
	ErrOutputNotWritable = errors.New("output directory not writable")

	// ErrOutputLocked means another run holds the output directory lock.
	ErrOutputLocked = errors.New("output directory is in use by another run")
)

// LockFileName is created in the output directory while a run holds it.
const LockFileName = ".vid2audio.lock"

// preflight fails fast before any task starts: the engine and prober must
// resolve and the output directory must be writable.
func (c *Converter) preflight() error {
	if err := check.CheckDeps(c.cfg); err != nil {
		return err
	}
	if c.cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputNotWritable, c.cfg.OutputDir, err)
	}
	if err := writable(c.cfg.OutputDir); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputNotWritable, c.cfg.OutputDir, err)
	}
	return nil
}

// AcquireOutputLock takes an exclusive, non-blocking lock on dir so two runs
// never write the same tree. The returned func releases it; the lock file
// itself stays behind.
func AcquireOutputLock(dir string) (func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOutputNotWritable, dir, err)
	}
	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire lock: %v", ErrOutputNotWritable, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, dir)
	}
	return lock.Unlock, nil
}

// lockDir is the directory whose tree a run writes: the output directory,
// or the input (its parent for a file input) when targets go next to sources.
func lockDir(cfg *config.Config) string {
	if cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	if info, err := os.Stat(cfg.InputPath); err == nil && !info.IsDir() {
		return filepath.Dir(cfg.InputPath)
	}
	return cfg.InputPath
}
