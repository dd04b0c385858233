package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ckg/internal/config"
	"ckg/internal/embed"
	"ckg/internal/fusion"
	"ckg/internal/storage"
)

func TestLockSingleWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := AcquireLock(path); err == nil {
		t.Fatal("second acquire succeeded while lock held")
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	lock2, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("reacquire after release failed: %v", err)
	}
	lock2.Release()
}

func TestLockBreaksStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")
	if err := os.WriteFile(path, []byte("12345 old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("stale lock not broken: %v", err)
	}
	lock.Release()
}

func TestSnapshotsNeverNil(t *testing.T) {
	var s Snapshots
	if g := s.Graph(); g == nil {
		t.Fatal("unpublished snapshots returned nil graph")
	}
	g := fusion.Empty()
	s.Publish(g)
	if s.Graph() != g {
		t.Error("published snapshot not returned")
	}
}

// stage records its execution order.
type recordingStage struct {
	name  string
	order *[]string
	fail  bool
}

func (s recordingStage) Name() string { return s.name }

func (s recordingStage) Run(ctx context.Context, st *State) error {
	*s.order = append(*s.order, s.name)
	if s.fail {
		return fmt.Errorf("stage %s failed", s.name)
	}
	return nil
}

func TestDriverRunsStagesInOrder(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(config.StateDir(root), 0755); err != nil {
		t.Fatal(err)
	}

	var order []string
	driver := NewDriver(root, []Stage{
		recordingStage{name: "one", order: &order},
		recordingStage{name: "two", order: &order},
		recordingStage{name: "three", order: &order},
	}, nil)

	if err := driver.Run(context.Background(), &State{Config: config.Default()}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []string{"one", "two", "three"}
	for i, name := range want {
		if i >= len(order) || order[i] != name {
			t.Fatalf("stage order = %v, want %v", order, want)
		}
	}

	// The lock is released after the run.
	if _, err := os.Stat(config.LockPath(root)); !os.IsNotExist(err) {
		t.Error("lock file left behind")
	}
}

func TestDriverStopsOnFailure(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(config.StateDir(root), 0755); err != nil {
		t.Fatal(err)
	}

	var order []string
	driver := NewDriver(root, []Stage{
		recordingStage{name: "first", order: &order},
		recordingStage{name: "boom", order: &order, fail: true},
		recordingStage{name: "never", order: &order},
	}, nil)

	if err := driver.Run(context.Background(), &State{Config: config.Default()}); err == nil {
		t.Fatal("failing stage did not abort the run")
	}
	for _, name := range order {
		if name == "never" {
			t.Error("stage after failure still ran")
		}
	}
	// The lock is released even on failure.
	if _, err := os.Stat(config.LockPath(root)); !os.IsNotExist(err) {
		t.Error("lock file left behind after failure")
	}
}

// TestFullRebuild runs the real stages end to end over a small tree
// and checks the published snapshot and persisted state agree.
func TestFullRebuild(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(config.StateDir(root), 0755); err != nil {
		t.Fatal(err)
	}
	write := func(rel, content string) {
		if err := os.WriteFile(filepath.Join(root, rel), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("readme.md", "indexing pipeline overview\n")
	write("notes.txt", "fusion stage combines signals\n")

	cfg := config.Default()
	cfg.RepoRoot = root

	store, err := storage.OpenGraphStore(config.GraphDBPath(root), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	snapshots := &Snapshots{}
	embedder := embed.NewHashEmbedder(64)
	driver := NewDriver(root, []Stage{
		CollectStage{Root: root},
		IndexStage{Embedder: embedder, Store: store},
		SignalStage{Root: root},
		FuseStage{},
		PersistStage{Store: store},
		PublishStage{Snapshots: snapshots},
	}, nil)

	st := &State{Config: cfg}
	if err := driver.Run(context.Background(), st); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	g := snapshots.Graph()
	if g.NumUnits() != 2 {
		t.Errorf("snapshot has %d units, want 2", g.NumUnits())
	}

	// Restore from the persisted state matches the published snapshot.
	restored := &Snapshots{}
	if err := Restore(store, cfg, restored, nil); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	rg := restored.Graph()
	if rg.NumUnits() != g.NumUnits() || rg.NumEdges() != g.NumEdges() {
		t.Errorf("restored graph %d/%d differs from published %d/%d",
			rg.NumUnits(), rg.NumEdges(), g.NumUnits(), g.NumEdges())
	}

	if len(st.Units) != 2 {
		t.Errorf("state has %d units", len(st.Units))
	}
}
