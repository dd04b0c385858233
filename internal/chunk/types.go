// Package chunk splits source files into semantically coherent units
// and attaches embedding vectors and lightweight metadata. Units are
// immutable: a changed source hash replaces the unit wholesale.
package chunk

import (
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Unit is an indexed code fragment.
type Unit struct {
	// ID is the stable identifier: path#startLine-endLine.
	ID string `json:"id"`
	// Path is the file path relative to the repo root.
	Path string `json:"path"`
	// StartLine and EndLine are 1-indexed and inclusive.
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
	// Symbol is the enclosing function/class name when splitting found
	// a syntactic boundary, empty for window fragments.
	Symbol string `json:"symbol,omitempty"`
	// Language is the detected language tag.
	Language Language `json:"language"`
	// Hash is the blake2b content hash of the fragment source.
	Hash string `json:"hash"`
	// Vector is the embedding. Zero-valued when Degraded.
	Vector []float32 `json:"-"`
	// Degraded marks a unit whose embedding call failed. Degraded units
	// are kept so graph size stays consistent, but never win semantic
	// ranking ties.
	Degraded bool `json:"degraded,omitempty"`
	// Source is the fragment text.
	Source string `json:"-"`
	// ModTime is the source file's last modification time.
	ModTime time.Time `json:"modTime"`
}

// Tokens returns the estimated token count of the fragment.
func (u *Unit) Tokens() int {
	return EstimateTokens(len(u.Source))
}

// File is one input file: path, content and mtime.
type File struct {
	Path    string
	Content []byte
	ModTime time.Time
}

// Fragment is a pre-embedding split of a file.
type Fragment struct {
	Path      string
	StartLine int
	EndLine   int
	Symbol    string
	Text      string
	// Part numbers byte-window pieces of a line span too large to
	// split by lines, so their identifiers stay distinct. Zero for
	// ordinary fragments.
	Part int
}

// ID returns the fragment's stable unit identifier.
func (f *Fragment) ID() string {
	if f.Part > 0 {
		return fmt.Sprintf("%s#%d-%d.%d", f.Path, f.StartLine, f.EndLine, f.Part)
	}
	return fmt.Sprintf("%s#%d-%d", f.Path, f.StartLine, f.EndLine)
}

// HashText returns the blake2b-256 hex digest of fragment text.
func HashText(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum[:])
}

// EstimateTokens provides a rough token count from byte size.
// Approximation: 1 token per 4 bytes of text.
func EstimateTokens(byteLen int) int {
	return (byteLen + 3) / 4
}

// Stats tracks what an indexing pass did.
type Stats struct {
	Files      int
	Units      int
	EmbedCalls int
	CacheHits  int
	Degraded   int
	Duration   time.Duration
}
