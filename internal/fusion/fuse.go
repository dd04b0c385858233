package fusion

import (
	"sort"
	"time"

	"ckg/internal/chunk"
	"ckg/internal/config"
	"ckg/internal/errors"
	"ckg/internal/logging"
	"ckg/internal/signal"
)

// Fuse combines the four per-kind edge sets into one graph. Every
// unordered unit pair with at least one signal gets a single fused
// edge; each signal is normalized to [0,1] by its own maximum before
// the weighted sum, so no one signal's scale dominates. Edges that
// reference units missing from the index are dropped with a warning.
//
// Ties in combined weight are broken by higher structural weight, then
// higher semantic weight, then lexicographic pair order, so identical
// inputs always fuse to an identical graph.
func Fuse(units []chunk.Unit, semantic, structural, temporal, comod []signal.Edge,
	weights config.FusionConfig, logger *logging.Logger) *Graph {

	if logger == nil {
		logger = logging.Discard()
	}

	g := &Graph{
		units:   make(map[string]*chunk.Unit, len(units)),
		adj:     make(map[string][]Neighbor),
		BuiltAt: time.Now().UTC(),
	}
	for i := range units {
		u := units[i]
		g.units[u.ID] = &u
		g.ordered = append(g.ordered, u.ID)
	}
	sort.Strings(g.ordered)

	merged := make(map[[2]string]*Edge)
	dropped := 0
	accumulate := func(edges []signal.Edge, kind signal.Kind) {
		max := maxWeight(edges)
		for _, e := range edges {
			if _, ok := g.units[e.From]; !ok {
				dropped++
				continue
			}
			if _, ok := g.units[e.To]; !ok {
				dropped++
				continue
			}
			a, b := signal.OrderPair(e.From, e.To)
			key := [2]string{a, b}
			fe := merged[key]
			if fe == nil {
				fe = &Edge{A: a, B: b}
				merged[key] = fe
			}
			w := e.Weight
			if max > 0 {
				w /= max
			}
			switch kind {
			case signal.Semantic:
				if w > fe.Semantic {
					fe.Semantic = w
				}
			case signal.Structural:
				if w > fe.Structural {
					fe.Structural = w
				}
			case signal.Temporal:
				if w > fe.Temporal {
					fe.Temporal = w
				}
			case signal.CoMod:
				if w > fe.CoMod {
					fe.CoMod = w
				}
			}
		}
		if len(edges) > 0 {
			g.Signals = append(g.Signals, kind)
		}
	}

	accumulate(semantic, signal.Semantic)
	accumulate(structural, signal.Structural)
	accumulate(temporal, signal.Temporal)
	accumulate(comod, signal.CoMod)

	if dropped > 0 {
		logger.Warn("dropped edges referencing missing units", map[string]interface{}{
			"count": dropped,
			"code":  string(errors.GraphInconsistency),
		})
	}

	g.edges = make([]Edge, 0, len(merged))
	for _, fe := range merged {
		fe.Combined = weights.Semantic*fe.Semantic +
			weights.Structural*fe.Structural +
			weights.Temporal*fe.Temporal +
			weights.CoMod*fe.CoMod
		g.edges = append(g.edges, *fe)
	}
	sort.Slice(g.edges, func(i, j int) bool {
		a, b := g.edges[i], g.edges[j]
		if a.Combined != b.Combined {
			return a.Combined > b.Combined
		}
		if a.Structural != b.Structural {
			return a.Structural > b.Structural
		}
		if a.Semantic != b.Semantic {
			return a.Semantic > b.Semantic
		}
		if a.A != b.A {
			return a.A < b.A
		}
		return a.B < b.B
	})

	for _, e := range g.edges {
		g.adj[e.A] = append(g.adj[e.A], Neighbor{ID: e.B, Weight: e.Combined})
		g.adj[e.B] = append(g.adj[e.B], Neighbor{ID: e.A, Weight: e.Combined})
	}

	logger.Debug("fused graph built", map[string]interface{}{
		"units":   len(g.units),
		"edges":   len(g.edges),
		"signals": len(g.Signals),
	})
	return g
}

func maxWeight(edges []signal.Edge) float64 {
	var max float64
	for _, e := range edges {
		if e.Weight > max {
			max = e.Weight
		}
	}
	return max
}
