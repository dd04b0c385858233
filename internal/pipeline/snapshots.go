package pipeline

import (
	"sync/atomic"

	"ckg/internal/fusion"
)

// Snapshots holds the last-published graph. Readers load the pointer
// and work against an immutable snapshot; a rebuild in progress is
// invisible until Publish swaps it in whole.
type Snapshots struct {
	ptr atomic.Pointer[fusion.Graph]
}

// Graph returns the current snapshot, never nil.
func (s *Snapshots) Graph() *fusion.Graph {
	if g := s.ptr.Load(); g != nil {
		return g
	}
	return fusion.Empty()
}

// Publish atomically swaps in a new snapshot.
func (s *Snapshots) Publish(g *fusion.Graph) {
	s.ptr.Store(g)
}
