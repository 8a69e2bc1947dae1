package daemon

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"lbfeed/internal/config"
)

// ErrLocked reports that another process owns the release store.
var ErrLocked = errors.New("another lbfeed process holds the release store lock")

// AcquireLock takes the data-directory lock without blocking. Callers must
// Unlock the returned lock when done.
func AcquireLock(cfg *config.Config) (*flock.Flock, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", cfg.LockPath(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, cfg.LockPath())
	}
	return lock, nil
}
