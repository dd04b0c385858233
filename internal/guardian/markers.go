package guardian

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Markers is the contended marker store. Each marker is a file named
// by the content hash it certifies; creation uses O_CREATE|O_EXCL so
// concurrent hook stages racing on the same key resolve to exactly one
// writer, the rest being no-ops.
type Markers struct {
	dir string
}

// NewMarkers creates the marker store rooted at dir.
func NewMarkers(dir string) (*Markers, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create marker directory: %w", err)
	}
	return &Markers{dir: dir}, nil
}

// Write atomically creates the marker for key. Returns false when the
// marker already exists; a lost race is a no-op, not an overwrite.
func (m *Markers) Write(key string) (created bool, err error) {
	f, err := os.OpenFile(m.path(key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to write marker: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(time.Now().UTC().Format(time.RFC3339Nano) + "\n"); err != nil {
		return false, fmt.Errorf("failed to write marker: %w", err)
	}
	return true, nil
}

// Consume checks for the marker and removes it in one pass. Returns
// whether the marker existed. A concurrent consumer removing it first
// counts as absent.
func (m *Markers) Consume(key string) (found bool, err error) {
	err = os.Remove(m.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume marker: %w", err)
	}
	return true, nil
}

// Exists reports whether a marker is present without consuming it.
func (m *Markers) Exists(key string) bool {
	_, err := os.Stat(m.path(key))
	return err == nil
}

func (m *Markers) path(key string) string {
	// Keys are hex digests; no path characters to sanitize.
	return filepath.Join(m.dir, key+".marker")
}
