package fusion

import (
	"math"
	"reflect"
	"testing"

	"ckg/internal/chunk"
	"ckg/internal/config"
	"ckg/internal/signal"
)

func equalWeights() config.FusionConfig {
	return config.FusionConfig{Semantic: 0.25, Structural: 0.25, Temporal: 0.25, CoMod: 0.25}
}

func fuseUnits(ids ...string) []chunk.Unit {
	units := make([]chunk.Unit, len(ids))
	for i, id := range ids {
		units[i] = chunk.Unit{ID: id}
	}
	return units
}

func edge(from, to string, kind signal.Kind, w float64) signal.Edge {
	return signal.Edge{From: from, To: to, Kind: kind, Weight: w}
}

func TestFuseCombinesSignals(t *testing.T) {
	units := fuseUnits("a", "b")
	g := Fuse(units,
		[]signal.Edge{edge("a", "b", signal.Semantic, 0.8)},
		[]signal.Edge{edge("a", "b", signal.Structural, 0.4)},
		nil, nil, equalWeights(), nil)

	if g.NumEdges() != 1 {
		t.Fatalf("expected 1 fused edge, got %d", g.NumEdges())
	}
	e := g.Edges()[0]
	// Each signal normalizes by its own maximum, so both reach 1.0 here.
	if e.Semantic != 1.0 || e.Structural != 1.0 {
		t.Errorf("per-kind weights %f/%f, want 1.0/1.0 after normalization", e.Semantic, e.Structural)
	}
	if math.Abs(e.Combined-0.5) > 1e-9 {
		t.Errorf("combined = %f, want 0.5", e.Combined)
	}
}

func TestFuseRetainsPerKindWeights(t *testing.T) {
	units := fuseUnits("a", "b", "c")
	g := Fuse(units,
		[]signal.Edge{edge("a", "b", signal.Semantic, 0.9), edge("a", "c", signal.Semantic, 0.3)},
		[]signal.Edge{edge("a", "b", signal.Structural, 0.5)},
		[]signal.Edge{edge("a", "b", signal.Temporal, 0.2)},
		[]signal.Edge{edge("a", "b", signal.CoMod, 0.7)},
		equalWeights(), nil)

	var ab *Edge
	for i := range g.Edges() {
		if g.Edges()[i].A == "a" && g.Edges()[i].B == "b" {
			ab = &g.Edges()[i]
		}
	}
	if ab == nil {
		t.Fatal("a-b edge missing")
	}
	for name, w := range map[string]float64{
		"semantic": ab.Semantic, "structural": ab.Structural,
		"temporal": ab.Temporal, "comod": ab.CoMod,
	} {
		if w <= 0 {
			t.Errorf("%s weight lost in fusion", name)
		}
	}
}

func TestFuseDeterministic(t *testing.T) {
	units := fuseUnits("a", "b", "c", "d")
	semantic := []signal.Edge{
		edge("a", "b", signal.Semantic, 0.5),
		edge("c", "d", signal.Semantic, 0.5),
		edge("a", "c", signal.Semantic, 0.5),
	}
	structural := []signal.Edge{edge("b", "a", signal.Structural, 0.4)}

	first := Fuse(units, semantic, structural, nil, nil, equalWeights(), nil)
	for i := 0; i < 5; i++ {
		again := Fuse(units, semantic, structural, nil, nil, equalWeights(), nil)
		if !reflect.DeepEqual(first.Edges(), again.Edges()) {
			t.Fatalf("run %d fused to a different edge order", i)
		}
	}
}

func TestFuseTieOrder(t *testing.T) {
	units := fuseUnits("a", "b", "c", "d", "e", "f")
	// Three pairs with equal combined weight: one from structural, one
	// from semantic, one from temporal+comod.
	g := Fuse(units,
		[]signal.Edge{edge("c", "d", signal.Semantic, 1.0)},
		[]signal.Edge{edge("a", "b", signal.Structural, 1.0)},
		[]signal.Edge{edge("e", "f", signal.Temporal, 1.0)},
		nil,
		config.FusionConfig{Semantic: 0.25, Structural: 0.25, Temporal: 0.25, CoMod: 0.25},
		nil)

	edges := g.Edges()
	if len(edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(edges))
	}
	// Equal combined weight: structural wins, then semantic, then the rest.
	if edges[0].A != "a" || edges[0].B != "b" {
		t.Errorf("first edge %s-%s, want structural a-b", edges[0].A, edges[0].B)
	}
	if edges[1].A != "c" || edges[1].B != "d" {
		t.Errorf("second edge %s-%s, want semantic c-d", edges[1].A, edges[1].B)
	}
	if edges[2].A != "e" || edges[2].B != "f" {
		t.Errorf("third edge %s-%s, want temporal e-f", edges[2].A, edges[2].B)
	}
}

func TestFuseMonotonicity(t *testing.T) {
	units := fuseUnits("a", "b", "c")
	semantic := []signal.Edge{edge("a", "b", signal.Semantic, 0.6)}
	structuralLow := []signal.Edge{
		edge("a", "b", signal.Structural, 0.3),
		edge("a", "c", signal.Structural, 1.0),
	}
	structuralHigh := []signal.Edge{
		edge("a", "b", signal.Structural, 0.8),
		edge("a", "c", signal.Structural, 1.0),
	}

	combined := func(g *Graph) float64 {
		for _, e := range g.Edges() {
			if e.A == "a" && e.B == "b" {
				return e.Combined
			}
		}
		t.Fatal("a-b edge missing")
		return 0
	}

	low := combined(Fuse(units, semantic, structuralLow, nil, nil, equalWeights(), nil))
	high := combined(Fuse(units, semantic, structuralHigh, nil, nil, equalWeights(), nil))
	if high < low {
		t.Errorf("raising structural weight lowered combined: %f -> %f", low, high)
	}
}

func TestFuseDropsEdgesToMissingUnits(t *testing.T) {
	units := fuseUnits("a")
	g := Fuse(units,
		[]signal.Edge{edge("a", "ghost", signal.Semantic, 0.9)},
		nil, nil, nil, equalWeights(), nil)
	if g.NumEdges() != 0 {
		t.Errorf("edge to missing unit survived fusion: %v", g.Edges())
	}
}

func TestFuseAdjacencySorted(t *testing.T) {
	units := fuseUnits("a", "b", "c")
	g := Fuse(units,
		[]signal.Edge{
			edge("a", "b", signal.Semantic, 0.2),
			edge("a", "c", signal.Semantic, 0.9),
		},
		nil, nil, nil, equalWeights(), nil)

	nbrs := g.Neighbors("a")
	if len(nbrs) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(nbrs))
	}
	if nbrs[0].ID != "c" {
		t.Errorf("strongest neighbor %s, want c", nbrs[0].ID)
	}
	if nbrs[0].Weight < nbrs[1].Weight {
		t.Error("adjacency not sorted strongest first")
	}
}

func TestEmptyGraph(t *testing.T) {
	g := Empty()
	if g.NumUnits() != 0 || g.NumEdges() != 0 {
		t.Error("empty snapshot is not empty")
	}
	if g.Neighbors("anything") != nil {
		t.Error("empty snapshot has adjacency")
	}
}
