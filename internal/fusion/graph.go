// Package fusion merges the four signal sources into one weighted
// graph over the unit set. The fused graph is immutable once built;
// rebuilds publish a fresh snapshot instead of mutating in place.
package fusion

import (
	"time"

	"ckg/internal/chunk"
	"ckg/internal/signal"
)

// Edge is a fused edge over an unordered unit pair (A < B). The
// per-kind weights are retained alongside the combined weight for
// explainability and re-tuning.
type Edge struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Combined float64 `json:"combined"`

	Semantic   float64 `json:"semantic,omitempty"`
	Structural float64 `json:"structural,omitempty"`
	Temporal   float64 `json:"temporal,omitempty"`
	CoMod      float64 `json:"comod,omitempty"`
}

// Neighbor is one adjacency entry.
type Neighbor struct {
	ID     string
	Weight float64
}

// Graph is an immutable fused-graph snapshot.
type Graph struct {
	units   map[string]*chunk.Unit
	ordered []string // unit IDs in lexicographic order
	edges   []Edge   // deterministic order, strongest first
	adj     map[string][]Neighbor

	// Signals lists the kinds that contributed at least one edge.
	Signals []signal.Kind
	BuiltAt time.Time
}

// Unit returns the unit with the given ID.
func (g *Graph) Unit(id string) (*chunk.Unit, bool) {
	u, ok := g.units[id]
	return u, ok
}

// Units returns all unit IDs in lexicographic order.
func (g *Graph) Units() []string {
	return g.ordered
}

// Each calls fn for every unit.
func (g *Graph) Each(fn func(*chunk.Unit)) {
	for _, id := range g.ordered {
		fn(g.units[id])
	}
}

// Edges returns the fused edges, strongest first.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Neighbors returns the adjacency of a unit, strongest first.
func (g *Graph) Neighbors(id string) []Neighbor {
	return g.adj[id]
}

// NumUnits returns the unit count.
func (g *Graph) NumUnits() int { return len(g.units) }

// NumEdges returns the fused edge count.
func (g *Graph) NumEdges() int { return len(g.edges) }

// HasSignal reports whether the given signal contributed any edges.
func (g *Graph) HasSignal(kind signal.Kind) bool {
	for _, s := range g.Signals {
		if s == kind {
			return true
		}
	}
	return false
}

// Empty returns an empty snapshot, used before the first index pass.
func Empty() *Graph {
	return &Graph{
		units:   map[string]*chunk.Unit{},
		adj:     map[string][]Neighbor{},
		BuiltAt: time.Now().UTC(),
	}
}
