package main

import (
	"path/filepath"
	"time"

	"ckg/internal/assemble"
	"ckg/internal/config"
	"ckg/internal/embed"
	"ckg/internal/guardian"
	"ckg/internal/lessons"
	"ckg/internal/logging"
	"ckg/internal/pipeline"
	"ckg/internal/storage"
)

// engine bundles the stores and snapshot registry a command needs.
type engine struct {
	root      string
	cfg       *config.Config
	logger    *logging.Logger
	embedder  embed.Embedder
	store     *storage.GraphStore
	lessons   *lessons.Store
	snapshots *pipeline.Snapshots
}

// openEngine opens the graph and lesson stores and restores the last
// persisted snapshot when restore is set.
func openEngine(cfg *config.Config, logger *logging.Logger, root string, restore bool) (*engine, error) {
	store, err := storage.OpenGraphStore(config.GraphDBPath(root), logger)
	if err != nil {
		return nil, err
	}
	lessonStore, err := lessons.OpenStore(config.LessonsDBPath(root), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	e := &engine{
		root:      root,
		cfg:       cfg,
		logger:    logger,
		store:     store,
		lessons:   lessonStore,
		snapshots: &pipeline.Snapshots{},
	}
	e.embedder = embed.WithTimeout(
		embed.NewHashEmbedder(0),
		time.Duration(cfg.Index.EmbedTimeoutMs)*time.Millisecond,
	)

	if restore {
		if err := pipeline.Restore(store, cfg, e.snapshots, logger); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// Close releases the stores.
func (e *engine) Close() {
	if e.lessons != nil {
		e.lessons.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
}

// assembler builds the query assembler over the current snapshot.
func (e *engine) assembler() *assemble.Assembler {
	return assemble.New(e.snapshots, e.embedder, e.lessons, assemble.Options{
		SeedK:         e.cfg.Assemble.SeedK,
		MaxHops:       e.cfg.Assemble.MaxHops,
		DefaultBudget: e.cfg.Assemble.DefaultBudget,
		LessonCount:   e.cfg.Assemble.LessonCount,
	}, e.logger)
}

// newGuardian wires the commit gate audit for the repo.
func newGuardian(cfg *config.Config, logger *logging.Logger, root string) (*guardian.Guardian, *guardian.AuditStore, error) {
	markers, err := guardian.NewMarkers(config.MarkersDir(root))
	if err != nil {
		return nil, nil, err
	}
	store, err := guardian.OpenAuditStore(config.AuditDBPath(root), config.BypassLogPath(root), logger)
	if err != nil {
		return nil, nil, err
	}
	checksPath := cfg.Guardian.ChecksFile
	if !filepath.IsAbs(checksPath) {
		checksPath = filepath.Join(root, checksPath)
	}
	checks, err := guardian.LoadChecks(checksPath)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	g := guardian.New(root, config.Dir, markers, store, checks, nil, logger)
	return g, store, nil
}
