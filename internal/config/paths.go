package config

import "path/filepath"

// State-file layout under <repoRoot>/.ckg/. Each durable store is a
// separate file so partial loss of one never invalidates the others.

// StateDir returns the state directory for a repo root.
func StateDir(repoRoot string) string {
	return filepath.Join(repoRoot, Dir)
}

// GraphDBPath returns the graph store location.
func GraphDBPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, "graph.db")
}

// LessonsDBPath returns the lesson store location.
func LessonsDBPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, "lessons.db")
}

// AuditDBPath returns the commit-record store location.
func AuditDBPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, "audit.db")
}

// BypassLogPath returns the append-only bypass log location.
func BypassLogPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, "bypass.log")
}

// MarkersDir returns the gate marker directory.
func MarkersDir(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, "markers")
}

// LockPath returns the single-writer index lock location.
func LockPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, "index.lock")
}
