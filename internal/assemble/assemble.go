// Package assemble answers task queries by hybrid search over the
// fused graph: semantic seeding, bounded graph traversal, greedy
// token-budget packing, and lesson injection.
package assemble

import (
	"context"
	"sort"

	"ckg/internal/chunk"
	"ckg/internal/embed"
	"ckg/internal/errors"
	"ckg/internal/fusion"
	"ckg/internal/lessons"
	"ckg/internal/logging"
	"ckg/internal/signal"
)

// Options tunes the assembler.
type Options struct {
	// SeedK is how many top semantic matches seed the traversal.
	SeedK int
	// MaxHops bounds the breadth-first walk from each seed.
	MaxHops int
	// DefaultBudget is used when a query passes no token budget.
	DefaultBudget int
	// LessonCount is how many active lessons are injected.
	LessonCount int
}

// DefaultOptions returns the default assembler tuning.
func DefaultOptions() Options {
	return Options{SeedK: 10, MaxHops: 2, DefaultBudget: 4000, LessonCount: 3}
}

// Item is one ranked result unit.
type Item struct {
	UnitID  string  `json:"unitId"`
	Path    string  `json:"path"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
	Tokens  int     `json:"tokens"`
}

// Quality flags which signals the answering graph actually contained,
// so callers can tell a full hybrid answer from a degraded one.
type Quality struct {
	Semantic   bool `json:"semantic"`
	Structural bool `json:"structural"`
	Temporal   bool `json:"temporal"`
	CoMod      bool `json:"comod"`
	// QueryDegraded is set when the query embedding failed and ranking
	// fell back to lexical overlap.
	QueryDegraded bool `json:"queryDegraded,omitempty"`
}

// Complete reports whether all four signals were present.
func (q Quality) Complete() bool {
	return q.Semantic && q.Structural && q.Temporal && q.CoMod
}

// Result is an assembled context bundle.
type Result struct {
	Items      []Item          `json:"items"`
	Lessons    []lessons.Lesson `json:"lessons,omitempty"`
	TokensUsed int             `json:"tokensUsed"`
	Budget     int             `json:"budget"`
	Quality    Quality         `json:"quality"`
}

// Snapshots provides the last-published graph snapshot. Queries always
// read a complete snapshot, never a rebuild in progress.
type Snapshots interface {
	Graph() *fusion.Graph
}

// Assembler runs hybrid search queries.
type Assembler struct {
	snapshots Snapshots
	embedder  embed.Embedder
	store     *lessons.Store
	opts      Options
	logger    *logging.Logger
}

// New creates an Assembler. The lesson store may be nil, in which case
// no lessons are injected.
func New(snapshots Snapshots, embedder embed.Embedder, store *lessons.Store,
	opts Options, logger *logging.Logger) *Assembler {
	if opts.SeedK <= 0 {
		opts.SeedK = DefaultOptions().SeedK
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultOptions().MaxHops
	}
	if opts.DefaultBudget <= 0 {
		opts.DefaultBudget = DefaultOptions().DefaultBudget
	}
	if opts.LessonCount <= 0 {
		opts.LessonCount = DefaultOptions().LessonCount
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Assembler{
		snapshots: snapshots,
		embedder:  embedder,
		store:     store,
		opts:      opts,
		logger:    logger,
	}
}

// Assemble ranks and bundles units for the query within tokenBudget.
// The result is deterministic for a fixed snapshot and query, contains
// no duplicate units, and never exceeds the budget; a unit that would
// overflow is skipped whole, not truncated.
func (a *Assembler) Assemble(ctx context.Context, query string, tokenBudget int) (*Result, error) {
	if tokenBudget <= 0 {
		tokenBudget = a.opts.DefaultBudget
	}
	g := a.snapshots.Graph()
	if g == nil {
		return nil, errors.New(errors.Internal, "no graph snapshot published")
	}

	res := &Result{
		Budget: tokenBudget,
		Quality: Quality{
			Semantic:   g.HasSignal(signal.Semantic),
			Structural: g.HasSignal(signal.Structural),
			Temporal:   g.HasSignal(signal.Temporal),
			CoMod:      g.HasSignal(signal.CoMod),
		},
	}

	sims := a.similarities(ctx, g, query, &res.Quality)
	scores := a.traverse(g, sims)

	// Rank by accumulated score, ties by unit ID for determinism, then
	// pack greedily against the budget.
	ranked := make([]string, 0, len(scores))
	for id := range scores {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	for _, id := range ranked {
		if scores[id] <= 0 {
			break
		}
		u, ok := g.Unit(id)
		if !ok {
			continue
		}
		tokens := u.Tokens()
		if res.TokensUsed+tokens > tokenBudget {
			continue
		}
		res.Items = append(res.Items, Item{
			UnitID:  id,
			Path:    u.Path,
			Excerpt: u.Source,
			Score:   scores[id],
			Tokens:  tokens,
		})
		res.TokensUsed += tokens
	}

	if a.store != nil {
		if err := a.injectLessons(query, res); err != nil {
			// Lesson injection is best effort; the unit answer stands.
			a.logger.Warn("lesson injection failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	a.logger.Debug("assembled context", map[string]interface{}{
		"query":  query,
		"items":  len(res.Items),
		"tokens": res.TokensUsed,
		"budget": tokenBudget,
	})
	return res, nil
}

// similarities scores every unit against the query. Degraded units
// carry zero vectors and always score 0, so they never win ties. When
// the embedding backend fails the ranking falls back to lexical token
// overlap and the result is flagged.
func (a *Assembler) similarities(ctx context.Context, g *fusion.Graph, query string, q *Quality) map[string]float64 {
	sims := make(map[string]float64, g.NumUnits())

	qvec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		q.QueryDegraded = true
		a.logger.Warn("query embedding failed, using lexical fallback", map[string]interface{}{
			"error": err.Error(),
		})
		qtoks := tokenSet(query)
		g.Each(func(u *chunk.Unit) {
			sims[u.ID] = lexicalSimilarity(qtoks, tokenSet(u.Source))
		})
		return sims
	}

	g.Each(func(u *chunk.Unit) {
		sims[u.ID] = embed.Cosine(qvec, u.Vector)
	})
	return sims
}

// traverse walks the graph breadth-first from the top-K seeds. Each
// reached unit accumulates seedSim multiplied by the edge weights along
// the path; the best score over all paths and seeds is kept. A graph
// with no edges degrades to pure semantic ranking over all units.
func (a *Assembler) traverse(g *fusion.Graph, sims map[string]float64) map[string]float64 {
	if g.NumEdges() == 0 {
		scores := make(map[string]float64, len(sims))
		for id, sim := range sims {
			scores[id] = sim
		}
		return scores
	}

	seeds := topSeeds(sims, a.opts.SeedK)
	scores := make(map[string]float64)
	for _, seed := range seeds {
		seedSim := sims[seed]
		if seedSim <= 0 {
			continue
		}
		type visit struct {
			id    string
			score float64
			hops  int
		}
		queue := []visit{{id: seed, score: seedSim}}
		bestHere := map[string]float64{seed: seedSim}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur.score > scores[cur.id] {
				scores[cur.id] = cur.score
			}
			if cur.hops >= a.opts.MaxHops {
				continue
			}
			for _, n := range g.Neighbors(cur.id) {
				next := cur.score * n.Weight
				if next <= bestHere[n.ID] {
					continue
				}
				bestHere[n.ID] = next
				queue = append(queue, visit{id: n.ID, score: next, hops: cur.hops + 1})
			}
		}
	}
	return scores
}

// injectLessons prepends the top-N active lessons whose tags overlap
// the query's inferred topic.
func (a *Assembler) injectLessons(query string, res *Result) error {
	active, err := a.store.Active()
	if err != nil {
		return err
	}
	topic := make(map[string]bool)
	for _, t := range lessons.InferTags(query) {
		topic[t] = true
	}
	for i := range active {
		if len(res.Lessons) >= a.opts.LessonCount {
			break
		}
		if active[i].TagsOverlap(topic) {
			res.Lessons = append(res.Lessons, active[i])
		}
	}
	return nil
}

func topSeeds(sims map[string]float64, k int) []string {
	ids := make([]string, 0, len(sims))
	for id := range sims {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if sims[ids[i]] != sims[ids[j]] {
			return sims[ids[i]] > sims[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range embed.Tokenize(text) {
		set[t] = true
	}
	return set
}

func lexicalSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for t := range a {
		if b[t] {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	return float64(overlap) / float64(len(a)+len(b)-overlap)
}
