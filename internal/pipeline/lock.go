package pipeline

import (
	"fmt"
	"os"
	"time"

	"ckg/internal/errors"
)

// staleAfter is how old an abandoned lock file may be before a new
// writer claims it. Index passes are expected to finish well inside
// this window.
const staleAfter = 10 * time.Minute

// Lock is the single-writer index lock, an atomically created file.
// Readers never take it; only rebuild pipelines do.
type Lock struct {
	path string
}

// AcquireLock claims the index lock at path. A live lock held by
// another process fails immediately; a stale one is broken.
func AcquireLock(path string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create index lock: %w", err)
		}
		info, statErr := os.Stat(path)
		if statErr == nil && time.Since(info.ModTime()) > staleAfter {
			os.Remove(path)
			continue
		}
		return nil, errors.New(errors.Internal, "another index pass holds the lock")
	}
	return nil, errors.New(errors.Internal, "failed to break stale index lock")
}

// Release removes the lock file.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}
