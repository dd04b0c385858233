// Package pipeline drives the index-to-snapshot rebuild: collect
// files, index units, derive signals, fuse, persist, publish. One
// writer at a time; queries keep reading the previous snapshot until
// the new one is published.
package pipeline

import (
	"context"
	"time"

	"ckg/internal/chunk"
	"ckg/internal/config"
	"ckg/internal/embed"
	"ckg/internal/fusion"
	"ckg/internal/history"
	"ckg/internal/logging"
	"ckg/internal/signal"
	"ckg/internal/storage"
	"ckg/internal/structural"
)

// State is the shared working set threaded through the stages.
type State struct {
	Config *config.Config

	Files   []chunk.File
	Units   []chunk.Unit
	Commits []history.Commit

	Semantic   []signal.Edge
	Structural []signal.Edge
	Temporal   []signal.Edge
	CoMod      []signal.Edge

	Graph *fusion.Graph
	Stats chunk.Stats
}

// Stage is one pipeline step.
type Stage interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

// Driver runs stages in order under the index lock.
type Driver struct {
	repoRoot string
	stages   []Stage
	logger   *logging.Logger
}

// NewDriver creates a Driver.
func NewDriver(repoRoot string, stages []Stage, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{repoRoot: repoRoot, stages: stages, logger: logger}
}

// Run executes the pipeline. Any stage error aborts the run; the
// previously published snapshot stays servable.
func (d *Driver) Run(ctx context.Context, st *State) error {
	lock, err := AcquireLock(config.LockPath(d.repoRoot))
	if err != nil {
		return err
	}
	defer lock.Release()

	for _, stage := range d.stages {
		start := time.Now()
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stage.Run(ctx, st); err != nil {
			d.logger.Error("stage failed", map[string]interface{}{
				"stage": stage.Name(),
				"error": err.Error(),
			})
			return err
		}
		d.logger.Debug("stage complete", map[string]interface{}{
			"stage":    stage.Name(),
			"duration": time.Since(start).String(),
		})
	}
	return nil
}

// CollectStage walks the repo and loads indexable files.
type CollectStage struct {
	Root string
}

func (CollectStage) Name() string { return "collect" }

func (s CollectStage) Run(ctx context.Context, st *State) error {
	files, err := chunk.CollectFiles(s.Root, st.Config.Index.Excludes)
	if err != nil {
		return err
	}
	st.Files = files
	return nil
}

// IndexStage splits and embeds the collected files, seeding the
// embedding cache from the persisted snapshot so unchanged fragments
// cost no embedding calls.
type IndexStage struct {
	Embedder embed.Embedder
	Store    *storage.GraphStore
	Logger   *logging.Logger
	// Full skips the cache seed, forcing every fragment to re-embed.
	Full bool
}

func (IndexStage) Name() string { return "index" }

func (s IndexStage) Run(ctx context.Context, st *State) error {
	ix := chunk.NewIndexer(s.Embedder, s.Logger, chunk.IndexerOptions{
		Split: chunk.SplitOptions{
			MaxTokens:   st.Config.Index.MaxFragmentTokens,
			WindowLines: st.Config.Index.WindowLines,
		},
		Excludes: st.Config.Index.Excludes,
		Workers:  st.Config.Index.Workers,
	})
	if s.Store != nil && !s.Full {
		cache, err := s.Store.VectorCache()
		if err != nil {
			return err
		}
		ix.SeedVectors(cache)
	}
	units, stats, err := ix.Index(ctx, st.Files)
	if err != nil {
		return err
	}
	st.Units = units
	st.Stats = stats
	return nil
}

// SignalStage derives all four raw signals from the indexed units and
// the repository history.
type SignalStage struct {
	Root   string
	Logger *logging.Logger
	// SemanticK caps semantic neighbors per unit.
	SemanticK int
}

func (SignalStage) Name() string { return "signals" }

func (s SignalStage) Run(ctx context.Context, st *State) error {
	st.Structural = structural.Build(st.Units, s.Logger)
	st.Semantic = fusion.SemanticEdges(st.Units, s.SemanticK)

	commits, err := history.ReadLog(s.Root, st.Config.History.CommitWindow)
	if err != nil {
		// History is best effort; an unreadable log yields no edges.
		if s.Logger != nil {
			s.Logger.Warn("history unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
		commits = nil
	}
	st.Commits = commits

	miner := history.NewMiner(history.Options{
		CommitWindow: st.Config.History.CommitWindow,
		HalfLifeDays: st.Config.History.HalfLifeDays,
	}, s.Logger)
	st.Temporal, st.CoMod = miner.Mine(commits, st.Units)
	return nil
}

// FuseStage combines the raw signals into the fused graph.
type FuseStage struct {
	Logger *logging.Logger
}

func (FuseStage) Name() string { return "fuse" }

func (s FuseStage) Run(ctx context.Context, st *State) error {
	st.Graph = fusion.Fuse(st.Units, st.Semantic, st.Structural, st.Temporal, st.CoMod,
		st.Config.Fusion, s.Logger)
	return nil
}

// PersistStage writes the unit set and raw edges to the graph store.
type PersistStage struct {
	Store *storage.GraphStore
}

func (PersistStage) Name() string { return "persist" }

func (s PersistStage) Run(ctx context.Context, st *State) error {
	if s.Store == nil {
		return nil
	}
	var edges []signal.Edge
	edges = append(edges, st.Semantic...)
	edges = append(edges, st.Structural...)
	edges = append(edges, st.Temporal...)
	edges = append(edges, st.CoMod...)
	return s.Store.SaveSnapshot(st.Units, edges)
}

// PublishStage swaps the new snapshot in for readers.
type PublishStage struct {
	Snapshots *Snapshots
}

func (PublishStage) Name() string { return "publish" }

func (s PublishStage) Run(ctx context.Context, st *State) error {
	s.Snapshots.Publish(st.Graph)
	return nil
}

// Restore rebuilds the fused graph from the persisted snapshot and
// publishes it, so queries work without a fresh index pass. Fusion is
// deterministic, so the restored graph matches the one persisted.
func Restore(store *storage.GraphStore, cfg *config.Config, snapshots *Snapshots,
	logger *logging.Logger) error {
	units, err := store.LoadUnits()
	if err != nil {
		return err
	}
	byKind, err := store.LoadEdges()
	if err != nil {
		return err
	}
	g := fusion.Fuse(units,
		byKind[signal.Semantic], byKind[signal.Structural],
		byKind[signal.Temporal], byKind[signal.CoMod],
		cfg.Fusion, logger)
	snapshots.Publish(g)
	return nil
}
