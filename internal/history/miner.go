// Package history derives temporal and co-modification signals from
// version-control history. Both signals are best effort: an empty or
// missing history yields zero edges, never an error.
package history

import (
	"math"
	"sort"
	"time"

	"ckg/internal/chunk"
	"ckg/internal/logging"
	"ckg/internal/signal"
)

// Commit is the slice of commit metadata the miner consumes.
type Commit struct {
	Hash    string
	When    time.Time
	Message string
	Files   []string
}

// Options tunes the mining windows.
type Options struct {
	// CommitWindow is the sliding window of commits considered for
	// co-modification (most recent first).
	CommitWindow int
	// HalfLifeDays controls the exponential decay of temporal weights.
	HalfLifeDays float64
}

// DefaultOptions returns the default mining windows.
func DefaultOptions() Options {
	return Options{CommitWindow: 100, HalfLifeDays: 7}
}

// Miner computes history edges over a unit set.
type Miner struct {
	opts   Options
	logger *logging.Logger

	// Now is injectable for deterministic decay in tests.
	Now func() time.Time
}

// NewMiner creates a Miner.
func NewMiner(opts Options, logger *logging.Logger) *Miner {
	if opts.CommitWindow <= 0 {
		opts.CommitWindow = DefaultOptions().CommitWindow
	}
	if opts.HalfLifeDays <= 0 {
		opts.HalfLifeDays = DefaultOptions().HalfLifeDays
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Miner{opts: opts, logger: logger, Now: time.Now}
}

// Mine derives temporal and co-modification edges from the commit log.
// History is file-granular; each file is represented in the unit graph
// by its anchor unit (lowest start line), and the rest of the file is
// reachable through same-file structural and semantic edges.
func (m *Miner) Mine(commits []Commit, units []chunk.Unit) (temporal, comod []signal.Edge) {
	anchors := anchorUnits(units)
	if len(anchors) == 0 || len(commits) == 0 {
		return nil, nil
	}

	// Most recent first, bounded by the commit window.
	sorted := make([]Commit, len(commits))
	copy(sorted, commits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].When.After(sorted[j].When) })
	if len(sorted) > m.opts.CommitWindow {
		sorted = sorted[:m.opts.CommitWindow]
	}

	comod = m.mineCoModification(sorted, anchors)
	temporal = m.mineTemporal(sorted, anchors)
	return temporal, comod
}

// mineCoModification weights each file pair by the fraction of commits
// touching either file that touch both, over the commit window.
// Symmetric by construction: the denominator is the larger of the two
// per-file counts, so weight(A,B) == weight(B,A) and stays in [0,1].
func (m *Miner) mineCoModification(commits []Commit, anchors map[string]string) []signal.Edge {
	fileCount := make(map[string]int)
	pairCount := make(map[string]int)

	for _, c := range commits {
		tracked := trackedFiles(c.Files, anchors)
		for _, f := range tracked {
			fileCount[f]++
		}
		for i := 0; i < len(tracked); i++ {
			for j := i + 1; j < len(tracked); j++ {
				pairCount[signal.PairKey(tracked[i], tracked[j])]++
			}
		}
	}

	edges := make([]signal.Edge, 0, len(pairCount))
	for key, n := range pairCount {
		a, b := splitPairKey(key)
		denom := fileCount[a]
		if fileCount[b] > denom {
			denom = fileCount[b]
		}
		if denom == 0 {
			continue
		}
		from, to := signal.OrderPair(anchors[a], anchors[b])
		edges = append(edges, signal.Edge{
			From:   from,
			To:     to,
			Kind:   signal.CoMod,
			Weight: float64(n) / float64(denom),
		})
	}
	sortEdges(edges)
	return edges
}

// mineTemporal treats commits on the same UTC calendar day as one
// working session; files touched in the same session are co-accessed.
// The weight decays exponentially with the age of the most recent
// co-access.
func (m *Miner) mineTemporal(commits []Commit, anchors map[string]string) []signal.Edge {
	sessions := make(map[string][]Commit)
	for _, c := range commits {
		day := c.When.UTC().Format("2006-01-02")
		sessions[day] = append(sessions[day], c)
	}

	lastCoAccess := make(map[string]time.Time)
	for _, cs := range sessions {
		seen := make(map[string]time.Time)
		for _, c := range cs {
			for _, f := range trackedFiles(c.Files, anchors) {
				if c.When.After(seen[f]) {
					seen[f] = c.When
				}
			}
		}
		files := make([]string, 0, len(seen))
		for f := range seen {
			files = append(files, f)
		}
		sort.Strings(files)
		for i := 0; i < len(files); i++ {
			for j := i + 1; j < len(files); j++ {
				key := signal.PairKey(files[i], files[j])
				// The pair's co-access time is the later of the two.
				when := seen[files[i]]
				if seen[files[j]].After(when) {
					when = seen[files[j]]
				}
				if when.After(lastCoAccess[key]) {
					lastCoAccess[key] = when
				}
			}
		}
	}

	now := m.Now()
	halfLife := m.opts.HalfLifeDays * 24 * float64(time.Hour)
	edges := make([]signal.Edge, 0, len(lastCoAccess))
	for key, when := range lastCoAccess {
		a, b := splitPairKey(key)
		age := float64(now.Sub(when))
		if age < 0 {
			age = 0
		}
		from, to := signal.OrderPair(anchors[a], anchors[b])
		edges = append(edges, signal.Edge{
			From:   from,
			To:     to,
			Kind:   signal.Temporal,
			Weight: math.Pow(0.5, age/halfLife),
		})
	}
	sortEdges(edges)
	return edges
}

// anchorUnits maps each file path to its anchor unit ID.
func anchorUnits(units []chunk.Unit) map[string]string {
	anchors := make(map[string]string)
	starts := make(map[string]int)
	for _, u := range units {
		if cur, ok := starts[u.Path]; !ok || u.StartLine < cur {
			starts[u.Path] = u.StartLine
			anchors[u.Path] = u.ID
		}
	}
	return anchors
}

func trackedFiles(files []string, anchors map[string]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range files {
		if _, ok := anchors[f]; ok && !seen[f] {
			out = append(out, f)
			seen[f] = true
		}
	}
	sort.Strings(out)
	return out
}

func splitPairKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func sortEdges(edges []signal.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
}
