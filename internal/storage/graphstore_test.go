package storage

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"ckg/internal/chunk"
	"ckg/internal/signal"
)

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 0, 3.75, 1e-8}
	got, err := DecodeVector(EncodeVector(vec))
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	if !reflect.DeepEqual(vec, got) {
		t.Errorf("round trip changed vector: %v -> %v", vec, got)
	}
}

func TestVectorEmpty(t *testing.T) {
	got, err := DecodeVector(EncodeVector(nil))
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty vector round trip produced %v", got)
	}
}

func testUnits() []chunk.Unit {
	mod := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return []chunk.Unit{
		{
			ID: "a.go#1-10", Path: "a.go", StartLine: 1, EndLine: 10,
			Symbol: "alpha", Language: "go", Hash: "hash-a",
			Vector: []float32{1, 0, 0}, Source: "func alpha() {}", ModTime: mod,
		},
		{
			ID: "b.go#1-5", Path: "b.go", StartLine: 1, EndLine: 5,
			Language: "go", Hash: "hash-b",
			Vector: make([]float32, 3), Degraded: true,
			Source: "func beta() {}", ModTime: mod,
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store, err := OpenGraphStore(filepath.Join(t.TempDir(), "graph.db"), nil)
	if err != nil {
		t.Fatalf("OpenGraphStore failed: %v", err)
	}
	defer store.Close()

	units := testUnits()
	edges := []signal.Edge{
		{From: "a.go#1-10", To: "b.go#1-5", Kind: signal.Structural, Weight: 0.5},
		{From: "a.go#1-10", To: "b.go#1-5", Kind: signal.Semantic, Weight: 0.8},
	}
	if err := store.SaveSnapshot(units, edges); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	gotUnits, err := store.LoadUnits()
	if err != nil {
		t.Fatalf("LoadUnits failed: %v", err)
	}
	if !reflect.DeepEqual(units, gotUnits) {
		t.Errorf("units round trip mismatch:\nsaved:  %+v\nloaded: %+v", units, gotUnits)
	}

	byKind, err := store.LoadEdges()
	if err != nil {
		t.Fatalf("LoadEdges failed: %v", err)
	}
	if len(byKind[signal.Structural]) != 1 || len(byKind[signal.Semantic]) != 1 {
		t.Errorf("edges round trip mismatch: %v", byKind)
	}
}

func TestSaveSnapshotReplaces(t *testing.T) {
	store, err := OpenGraphStore(filepath.Join(t.TempDir(), "graph.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveSnapshot(testUnits(), nil); err != nil {
		t.Fatal(err)
	}
	// A second snapshot with one unit replaces, not appends.
	if err := store.SaveSnapshot(testUnits()[:1], nil); err != nil {
		t.Fatal(err)
	}
	units, err := store.LoadUnits()
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Errorf("expected 1 unit after replace, got %d", len(units))
	}
}

func TestVectorCacheSkipsDegraded(t *testing.T) {
	store, err := OpenGraphStore(filepath.Join(t.TempDir(), "graph.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveSnapshot(testUnits(), nil); err != nil {
		t.Fatal(err)
	}
	cache, err := store.VectorCache()
	if err != nil {
		t.Fatalf("VectorCache failed: %v", err)
	}
	if _, ok := cache["hash-a"]; !ok {
		t.Error("healthy unit missing from vector cache")
	}
	if _, ok := cache["hash-b"]; ok {
		t.Error("degraded unit's zero vector leaked into the cache")
	}
}

func TestOpenExistingStoreKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.db")

	store, err := OpenGraphStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSnapshot(testUnits(), nil); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := OpenGraphStore(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	units, err := reopened.LoadUnits()
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 {
		t.Errorf("reopened store lost data: %d units", len(units))
	}
}
