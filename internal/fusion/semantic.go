package fusion

import (
	"sort"

	"ckg/internal/chunk"
	"ckg/internal/embed"
	"ckg/internal/signal"
)

// SemanticEdges builds a k-nearest-neighbor edge set from unit
// embeddings. Degraded units carry zero vectors; Cosine returns 0 for
// them, so they produce no semantic edges and never win ranking ties.
func SemanticEdges(units []chunk.Unit, k int) []signal.Edge {
	if k <= 0 {
		k = 5
	}

	type scored struct {
		id  string
		sim float64
	}

	best := make(map[string]float64) // pair key -> similarity
	for i := range units {
		if units[i].Degraded {
			continue
		}
		var nn []scored
		for j := range units {
			if i == j || units[j].Degraded {
				continue
			}
			sim := embed.Cosine(units[i].Vector, units[j].Vector)
			if sim > 0 {
				nn = append(nn, scored{id: units[j].ID, sim: sim})
			}
		}
		sort.Slice(nn, func(a, b int) bool {
			if nn[a].sim != nn[b].sim {
				return nn[a].sim > nn[b].sim
			}
			return nn[a].id < nn[b].id
		})
		if len(nn) > k {
			nn = nn[:k]
		}
		for _, n := range nn {
			key := signal.PairKey(units[i].ID, n.id)
			if n.sim > best[key] {
				best[key] = n.sim
			}
		}
	}

	edges := make([]signal.Edge, 0, len(best))
	for key, sim := range best {
		a, b := splitKey(key)
		edges = append(edges, signal.Edge{From: a, To: b, Kind: signal.Semantic, Weight: sim})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
