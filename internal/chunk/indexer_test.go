package chunk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

// countingEmbedder is deterministic and counts calls, so tests can
// assert the cache is doing its job.
type countingEmbedder struct {
	calls atomic.Int64
	fail  bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, fmt.Errorf("backend unavailable")
	}
	vec := make([]float32, 4)
	for i, b := range []byte(text) {
		vec[i%4] += float32(b)
	}
	return vec, nil
}

func (c *countingEmbedder) Dimensions() int { return 4 }

func testFiles() []File {
	mod := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []File{
		{Path: "docs/guide.md", Content: []byte("setup\ninstall\nconfigure\n"), ModTime: mod},
		{Path: "notes.txt", Content: []byte("first note\nsecond note\n"), ModTime: mod},
	}
}

func TestIndexProducesUnits(t *testing.T) {
	e := &countingEmbedder{}
	ix := NewIndexer(e, nil, IndexerOptions{Workers: 2})

	units, stats, err := ix.Index(context.Background(), testFiles())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if len(units) == 0 {
		t.Fatal("no units produced")
	}
	if stats.Files != 2 {
		t.Errorf("stats.Files = %d, want 2", stats.Files)
	}
	seen := make(map[string]bool)
	for _, u := range units {
		if u.ID == "" || seen[u.ID] {
			t.Errorf("unit ID %q missing or duplicated", u.ID)
		}
		seen[u.ID] = true
		if len(u.Vector) != 4 {
			t.Errorf("unit %s has vector of %d dims", u.ID, len(u.Vector))
		}
		if u.Hash == "" {
			t.Errorf("unit %s has no content hash", u.ID)
		}
	}
}

func TestReindexUnchangedIsZeroEmbedCalls(t *testing.T) {
	files := testFiles()

	first := &countingEmbedder{}
	ix1 := NewIndexer(first, nil, IndexerOptions{})
	units1, _, err := ix1.Index(context.Background(), files)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.calls.Load() == 0 {
		t.Fatal("first pass made no embedding calls")
	}

	second := &countingEmbedder{}
	ix2 := NewIndexer(second, nil, IndexerOptions{})
	ix2.Seed(units1)
	units2, stats, err := ix2.Index(context.Background(), files)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	if got := second.calls.Load(); got != 0 {
		t.Errorf("second pass made %d embedding calls, want 0", got)
	}
	if stats.CacheHits != stats.Units {
		t.Errorf("cache hits = %d, units = %d", stats.CacheHits, stats.Units)
	}
	if !reflect.DeepEqual(units1, units2) {
		t.Error("re-indexing unchanged files changed the unit set")
	}
}

func TestFailedEmbeddingDegradesUnit(t *testing.T) {
	e := &countingEmbedder{fail: true}
	ix := NewIndexer(e, nil, IndexerOptions{})

	units, stats, err := ix.Index(context.Background(), testFiles())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if stats.Degraded != len(units) {
		t.Errorf("degraded = %d, units = %d", stats.Degraded, len(units))
	}
	for _, u := range units {
		if !u.Degraded {
			t.Errorf("unit %s not marked degraded", u.ID)
		}
		if len(u.Vector) != 4 {
			t.Errorf("degraded unit %s vector dims = %d, want 4", u.ID, len(u.Vector))
		}
		for _, v := range u.Vector {
			if v != 0 {
				t.Errorf("degraded unit %s has non-zero vector", u.ID)
			}
		}
	}
}

func TestSeedVectors(t *testing.T) {
	files := testFiles()

	warm := &countingEmbedder{}
	ixWarm := NewIndexer(warm, nil, IndexerOptions{})
	units, _, err := ixWarm.Index(context.Background(), files)
	if err != nil {
		t.Fatalf("warm pass failed: %v", err)
	}
	cache := make(map[string][]float32)
	for _, u := range units {
		cache[u.Hash] = u.Vector
	}

	cold := &countingEmbedder{}
	ix := NewIndexer(cold, nil, IndexerOptions{})
	ix.SeedVectors(cache)
	if _, _, err := ix.Index(context.Background(), files); err != nil {
		t.Fatalf("seeded pass failed: %v", err)
	}
	if got := cold.calls.Load(); got != 0 {
		t.Errorf("seeded pass made %d embedding calls, want 0", got)
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("main.go", "package main\n")
	write("README.md", "# readme\n")
	write("vendor/dep.go", "package dep\n")
	write("image.png", "\x89PNG")
	write(".hidden/secret.go", "package secret\n")

	files, err := CollectFiles(dir, []string{"vendor/**"})
	if err != nil {
		t.Fatalf("CollectFiles failed: %v", err)
	}

	got := make(map[string]bool)
	for _, f := range files {
		got[f.Path] = true
	}
	for _, want := range []string{"main.go", "README.md"} {
		if !got[want] {
			t.Errorf("expected %s to be collected", want)
		}
	}
	for _, skip := range []string{"vendor/dep.go", "image.png", ".hidden/secret.go"} {
		if got[skip] {
			t.Errorf("expected %s to be skipped", skip)
		}
	}
}
