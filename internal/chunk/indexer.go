package chunk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"ckg/internal/embed"
	"ckg/internal/errors"
	"ckg/internal/logging"
)

// IndexerOptions configures an indexing pass.
type IndexerOptions struct {
	Split    SplitOptions
	Excludes []string
	Workers  int
}

// Indexer turns a file set into Units, reusing embeddings for
// fragments whose content hash is unchanged.
type Indexer struct {
	embedder embed.Embedder
	logger   *logging.Logger
	opts     IndexerOptions

	mu    sync.Mutex
	cache map[string][]float32 // content hash -> embedding
}

// NewIndexer creates an Indexer with an empty embedding cache.
func NewIndexer(embedder embed.Embedder, logger *logging.Logger, opts IndexerOptions) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Indexer{
		embedder: embedder,
		logger:   logger,
		opts:     opts,
		cache:    make(map[string][]float32),
	}
}

// Seed preloads the embedding cache from previously indexed units, so
// re-indexing an unchanged file set performs zero embedding calls.
func (ix *Indexer) Seed(units []Unit) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, u := range units {
		if !u.Degraded && len(u.Vector) > 0 {
			ix.cache[u.Hash] = u.Vector
		}
	}
}

// SeedVectors preloads the embedding cache from a persisted
// hash-to-vector map.
func (ix *Indexer) SeedVectors(vectors map[string][]float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for hash, vec := range vectors {
		if len(vec) > 0 {
			ix.cache[hash] = vec
		}
	}
}

// Index splits every file into fragments and embeds each one, reusing
// cached vectors on hash hits. A failed embedding call marks the unit
// degraded (zero vector) rather than dropping it. The returned slice is
// sorted by unit ID and deterministic for a fixed input and cache.
func (ix *Indexer) Index(ctx context.Context, files []File) ([]Unit, Stats, error) {
	start := time.Now()
	stats := Stats{Files: len(files)}

	type job struct {
		frag    Fragment
		modTime time.Time
	}
	var jobs []job
	for _, f := range files {
		for _, frag := range Split(f.Path, f.Content, ix.opts.Split) {
			jobs = append(jobs, job{frag: frag, modTime: f.ModTime})
		}
	}

	units := make([]Unit, len(jobs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, ix.opts.Workers)
	var statsMu sync.Mutex

	for i, j := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, j job) {
			defer wg.Done()
			defer func() { <-sem }()

			hash := HashText(j.frag.Text)
			unit := Unit{
				ID:        j.frag.ID(),
				Path:      j.frag.Path,
				StartLine: j.frag.StartLine,
				EndLine:   j.frag.EndLine,
				Symbol:    j.frag.Symbol,
				Language:  DetectLanguage(j.frag.Path),
				Hash:      hash,
				Source:    j.frag.Text,
				ModTime:   j.modTime,
			}

			if vec, ok := ix.cachedVector(hash); ok {
				unit.Vector = vec
				statsMu.Lock()
				stats.CacheHits++
				statsMu.Unlock()
			} else {
				vec, err := ix.embedder.Embed(ctx, j.frag.Text)
				statsMu.Lock()
				stats.EmbedCalls++
				statsMu.Unlock()
				if err != nil || len(vec) == 0 {
					// Keep the unit with a zero vector so downstream
					// graph size stays consistent.
					unit.Vector = make([]float32, ix.embedder.Dimensions())
					unit.Degraded = true
					statsMu.Lock()
					stats.Degraded++
					statsMu.Unlock()
					if err != nil {
						ix.logger.Warn("embedding failed, unit degraded", map[string]interface{}{
							"unit":  unit.ID,
							"error": err.Error(),
							"code":  string(errors.DegradedInput),
						})
					}
				} else {
					unit.Vector = vec
					ix.storeVector(hash, vec)
				}
			}
			units[i] = unit
		}(i, j)
	}
	wg.Wait()

	sort.Slice(units, func(a, b int) bool { return units[a].ID < units[b].ID })
	stats.Units = len(units)
	stats.Duration = time.Since(start)

	ix.logger.Debug("indexing pass complete", map[string]interface{}{
		"files":      stats.Files,
		"units":      stats.Units,
		"embedCalls": stats.EmbedCalls,
		"cacheHits":  stats.CacheHits,
		"degraded":   stats.Degraded,
	})
	return units, stats, nil
}

func (ix *Indexer) cachedVector(hash string) ([]float32, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	vec, ok := ix.cache[hash]
	return vec, ok
}

func (ix *Indexer) storeVector(hash string, vec []float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.cache[hash] = vec
}

// CollectFiles walks the repo root and returns the files to index,
// skipping excluded paths and binary-looking content.
func CollectFiles(root string, excludes []string) ([]File, error) {
	var files []File
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible entries, keep walking
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && (isExcluded(rel, excludes) || filepath.Base(path)[0] == '.') {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcluded(rel, excludes) || !indexable(rel) {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		files = append(files, File{Path: rel, Content: content, ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// textExts are non-code files still worth indexing; they take the
// window fallback since there is no parser for them.
var textExts = map[string]bool{
	".md": true, ".txt": true, ".yaml": true, ".yml": true,
	".json": true, ".toml": true,
}

func indexable(rel string) bool {
	if DetectLanguage(rel) != LangUnknown {
		return true
	}
	return textExts[filepath.Ext(rel)]
}

func isExcluded(rel string, excludes []string) bool {
	for _, pattern := range excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
