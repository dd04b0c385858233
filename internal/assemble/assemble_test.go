package assemble

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"ckg/internal/chunk"
	"ckg/internal/config"
	"ckg/internal/embed"
	"ckg/internal/fusion"
	"ckg/internal/lessons"
	"ckg/internal/signal"
)

type fixedSnapshots struct {
	g *fusion.Graph
}

func (f fixedSnapshots) Graph() *fusion.Graph { return f.g }

// buildGraph indexes the given id->text map with the hash embedder and
// fuses semantic edges over it.
func buildGraph(t *testing.T, e embed.Embedder, texts map[string]string, extra []signal.Edge) *fusion.Graph {
	t.Helper()
	var units []chunk.Unit
	for id, text := range texts {
		vec, err := e.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("embed failed: %v", err)
		}
		units = append(units, chunk.Unit{ID: id, Path: id, Source: text, Vector: vec})
	}
	semantic := fusion.SemanticEdges(units, 5)
	weights := config.FusionConfig{Semantic: 0.25, Structural: 0.25, Temporal: 0.25, CoMod: 0.25}
	var structural []signal.Edge
	for _, e := range extra {
		if e.Kind == signal.Structural {
			structural = append(structural, e)
		}
	}
	return fusion.Fuse(units, semantic, structural, nil, nil, weights, nil)
}

func corpus() map[string]string {
	return map[string]string{
		"auth.go#1-20":    "func validateToken(token string) error { check signature and expiry }",
		"auth.go#22-40":   "func refreshToken(token string) string { issue a new signed token }",
		"render.go#1-20":  "func drawFrame(buf *Buffer) { rasterize polygons into pixels }",
		"metrics.go#1-20": "func recordLatency(d time.Duration) { histogram observe latency }",
	}
}

func newAssembler(t *testing.T, g *fusion.Graph, store *lessons.Store) *Assembler {
	t.Helper()
	return New(fixedSnapshots{g: g}, embed.NewHashEmbedder(128), store, Options{SeedK: 3, MaxHops: 2}, nil)
}

func TestAssembleRanksRelevantFirst(t *testing.T) {
	e := embed.NewHashEmbedder(128)
	g := buildGraph(t, e, corpus(), nil)
	a := newAssembler(t, g, nil)

	res, err := a.Assemble(context.Background(), "validate token signature", 4000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(res.Items) == 0 {
		t.Fatal("no items returned")
	}
	if !strings.HasPrefix(res.Items[0].UnitID, "auth.go") {
		t.Errorf("top item %s, want an auth unit", res.Items[0].UnitID)
	}
}

func TestAssemblePullsInStructuralNeighbor(t *testing.T) {
	e := embed.NewHashEmbedder(128)
	texts := map[string]string{
		"caller.go#1-10": "func handleLogin(w ResponseWriter, r *Request) { newSession(r) }",
		"callee.go#1-10": "func newSession(r *Request) *Session { persist cookie state }",
	}
	g := buildGraph(t, e, texts, []signal.Edge{
		{From: "caller.go#1-10", To: "callee.go#1-10", Kind: signal.Structural, Weight: 1.0},
	})
	a := newAssembler(t, g, nil)

	res, err := a.Assemble(context.Background(), "handle login request", 4000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	var caller, callee *Item
	for i := range res.Items {
		switch res.Items[i].UnitID {
		case "caller.go#1-10":
			caller = &res.Items[i]
		case "callee.go#1-10":
			callee = &res.Items[i]
		}
	}
	if caller == nil {
		t.Fatal("caller not returned for its own query")
	}
	if callee == nil {
		t.Fatal("structurally linked callee not pulled into the bundle")
	}
	if callee.Score >= caller.Score {
		t.Errorf("callee score %f >= caller score %f", callee.Score, caller.Score)
	}
}

func TestAssembleBudgetRespected(t *testing.T) {
	e := embed.NewHashEmbedder(128)
	g := buildGraph(t, e, corpus(), nil)
	a := newAssembler(t, g, nil)

	for _, budget := range []int{10, 25, 50, 4000} {
		res, err := a.Assemble(context.Background(), "token", budget)
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		total := 0
		for _, item := range res.Items {
			total += item.Tokens
		}
		if total > budget {
			t.Errorf("budget %d exceeded: used %d", budget, total)
		}
		if total != res.TokensUsed {
			t.Errorf("TokensUsed %d != sum %d", res.TokensUsed, total)
		}
	}
}

func TestAssembleSkipsOversizedNotTruncates(t *testing.T) {
	e := embed.NewHashEmbedder(128)
	texts := map[string]string{
		"small.go#1-2": "token helper",
		"big.go#1-99":  "token " + strings.Repeat("very long token content ", 50),
	}
	g := buildGraph(t, e, texts, nil)
	a := newAssembler(t, g, nil)

	// Budget fits the small unit only.
	res, err := a.Assemble(context.Background(), "token", 10)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	for _, item := range res.Items {
		u, _ := g.Unit(item.UnitID)
		if item.Excerpt != u.Source {
			t.Errorf("unit %s was truncated", item.UnitID)
		}
		if item.UnitID == "big.go#1-99" {
			t.Error("oversized unit included instead of skipped")
		}
	}
}

func TestAssembleNoDuplicates(t *testing.T) {
	e := embed.NewHashEmbedder(128)
	extra := []signal.Edge{
		{From: "auth.go#1-20", To: "auth.go#22-40", Kind: signal.Structural, Weight: 1.0},
		{From: "auth.go#22-40", To: "auth.go#1-20", Kind: signal.Structural, Weight: 0.9},
	}
	g := buildGraph(t, e, corpus(), extra)
	a := newAssembler(t, g, nil)

	res, err := a.Assemble(context.Background(), "token refresh", 4000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, item := range res.Items {
		if seen[item.UnitID] {
			t.Errorf("duplicate unit %s", item.UnitID)
		}
		seen[item.UnitID] = true
	}
}

func TestAssembleDeterministic(t *testing.T) {
	e := embed.NewHashEmbedder(128)
	g := buildGraph(t, e, corpus(), nil)
	a := newAssembler(t, g, nil)

	first, err := a.Assemble(context.Background(), "latency histogram", 500)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := a.Assemble(context.Background(), "latency histogram", 500)
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		if !reflect.DeepEqual(first.Items, again.Items) {
			t.Fatalf("run %d returned different items", i)
		}
	}
}

func TestAssembleEdgelessGraphFallsBackToSemantic(t *testing.T) {
	e := embed.NewHashEmbedder(128)
	var units []chunk.Unit
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("file%02d.go#1-5", i)
		text := fmt.Sprintf("query phrase variant number %d", i)
		if i == 7 {
			text = "the query phrase lives here"
		}
		vec, err := e.Embed(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		units = append(units, chunk.Unit{ID: id, Path: id, Source: text, Vector: vec})
	}
	weights := config.FusionConfig{Semantic: 0.25, Structural: 0.25, Temporal: 0.25, CoMod: 0.25}
	g := fusion.Fuse(units, nil, nil, nil, nil, weights, nil)
	if g.NumEdges() != 0 {
		t.Fatal("expected an edgeless graph")
	}

	a := newAssembler(t, g, nil)
	res, err := a.Assemble(context.Background(), "the query phrase lives here", 4000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(res.Items) == 0 {
		t.Fatal("edgeless graph returned nothing")
	}
	if res.Items[0].UnitID != "file07.go#1-5" {
		t.Errorf("top item %s, want file07.go#1-5", res.Items[0].UnitID)
	}
	// SeedK no longer caps the candidate set in pure semantic mode.
	if len(res.Items) <= 3 {
		t.Errorf("semantic fallback returned only %d items", len(res.Items))
	}
}

func TestAssembleQualityFlags(t *testing.T) {
	e := embed.NewHashEmbedder(128)
	g := buildGraph(t, e, corpus(), nil) // semantic signal only
	a := newAssembler(t, g, nil)

	res, err := a.Assemble(context.Background(), "token", 4000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !res.Quality.Semantic {
		t.Error("semantic signal not flagged present")
	}
	if res.Quality.Structural || res.Quality.Temporal || res.Quality.CoMod {
		t.Error("absent signals flagged present")
	}
	if res.Quality.Complete() {
		t.Error("incomplete graph reported complete")
	}
}

func TestAssembleInjectsMatchingLessons(t *testing.T) {
	dir := t.TempDir()
	store, err := lessons.OpenStore(filepath.Join(dir, "lessons.db"), nil)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer store.Close()

	engine := lessons.NewEngine(store, lessons.Options{}, nil)
	if _, err := engine.ExtractFromCommit("c1", "fix: always validate token expiry", []string{"auth.go"}); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if _, err := engine.ExtractFromCommit("c2", "fix: never block the render loop", []string{"render.go"}); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	e := embed.NewHashEmbedder(128)
	g := buildGraph(t, e, corpus(), nil)
	a := newAssembler(t, g, store)

	res, err := a.Assemble(context.Background(), "token validate expiry", 4000)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(res.Lessons) != 1 {
		t.Fatalf("expected 1 injected lesson, got %d", len(res.Lessons))
	}
	if !strings.Contains(res.Lessons[0].Text, "validate token expiry") {
		t.Errorf("wrong lesson injected: %s", res.Lessons[0].Text)
	}
}
