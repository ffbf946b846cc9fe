package toolserver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by AcquireLock when another tool server holds the lock.
var ErrLocked = errors.New("another tool server is already serving this dataset")

// Lock marks a dataset as served by this process.
type Lock struct {
	flock *flock.Flock
}

// AcquireLock takes the lock file beside datasetPath without blocking.
func AcquireLock(datasetPath string) (*Lock, error) {
	lockPath := datasetPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("try lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, lockPath)
	}
	return &Lock{flock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.flock.Path()
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}
