// Package statelock guards the data directory against concurrent runs. The
// detection cache and bundle files are read at start and rewritten at the
// end, so two overlapping runs would silently drop each other's writes.
package statelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("state directory is locked by another process")

// FileName is the lock file created inside the guarded directory.
const FileName = ".catalog.lock"

// Lock is an exclusive, non-blocking lock on a directory.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New prepares a lock for dir without acquiring it.
func New(dir string) *Lock {
	p := filepath.Join(dir, FileName)
	return &Lock{path: p, flock: flock.New(p)}
}

// Acquire takes the lock or fails fast with ErrLocked.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", l.path, ErrLocked)
	}
	l.locked = true
	return nil
}

// Release drops the lock. Calling it on an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }
