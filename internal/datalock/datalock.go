// Package datalock coordinates processes sharing one data directory.
//
// Importers and curation commands hold the lock shared, so any number of
// them run side by side. The hash migration rewrites every store at once
// and takes the lock exclusively; it refuses to start while any shared
// holder exists, and shared acquisition fails while it runs.
package datalock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"atelier/internal/services"
)

// Release drops a held lock. It is safe to call more than once.
type Release func()

// Shared takes the lock at path in shared mode without waiting.
func Shared(path string) (Release, error) {
	return acquire(path, false)
}

// Exclusive takes the lock at path in exclusive mode without waiting.
func Exclusive(path string) (Release, error) {
	return acquire(path, true)
}

func acquire(path string, exclusive bool) (Release, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrIOFailure, "datalock", "acquire", path, err)
	}
	lock := flock.New(path)
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = lock.TryLock()
	} else {
		ok, err = lock.TryRLock()
	}
	if err != nil {
		return nil, services.Wrap(services.ErrIOFailure, "datalock", "acquire", path, err)
	}
	if !ok {
		msg := "a hash migration is running on this data directory"
		if exclusive {
			msg = "the data directory is in use by another atelier process"
		}
		return nil, services.Wrap(services.ErrLocked, "datalock", "acquire", msg, nil)
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		_ = lock.Unlock()
	}, nil
}

// Free reports whether an exclusive lock could be taken right now, which
// means no other process holds the data directory.
func Free(path string) (bool, error) {
	release, err := Exclusive(path)
	if err != nil {
		if errors.Is(err, services.ErrLocked) {
			return false, nil
		}
		return false, fmt.Errorf("test data lock: %w", err)
	}
	release()
	return true, nil
}
