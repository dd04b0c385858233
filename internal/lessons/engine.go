package lessons

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"ckg/internal/logging"
)

// extraction heuristics over commit messages. The first matching
// pattern wins; a message matching none produces no lesson.
var lessonPatterns = []struct {
	re       *regexp.Regexp
	template string
}{
	{regexp.MustCompile(`fix[:\s]+use\s+(\w+)\s+instead\s+of\s+(\w+)`), "Use %s instead of %s"},
	{regexp.MustCompile(`fix[:\s]+(?:don'?t|do\s+not)\s+(.+)`), "Do not %s"},
	{regexp.MustCompile(`fix[:\s]+always\s+(.+)`), "Always %s"},
	{regexp.MustCompile(`fix[:\s]+never\s+(.+)`), "Never %s"},
	{regexp.MustCompile(`should\s+have\s+(.+)`), "Should have %s"},
	{regexp.MustCompile(`because\s+(.+)`), "Note: %s"},
}

// Options tunes the scoring heuristic.
type Options struct {
	// ScoreStep is the per-event nudge applied to overlapping lessons.
	ScoreStep float64
	// ScoreFloor deactivates a lesson once its score falls below it.
	ScoreFloor float64
}

// DefaultOptions returns the default scoring parameters.
func DefaultOptions() Options {
	return Options{ScoreStep: 0.1, ScoreFloor: 0.1}
}

// Engine extracts lessons and maintains their effectiveness scores.
type Engine struct {
	store  *Store
	opts   Options
	logger *logging.Logger

	// Now is injectable for deterministic timestamps in tests.
	Now func() time.Time
}

// NewEngine creates an Engine over the given store.
func NewEngine(store *Store, opts Options, logger *logging.Logger) *Engine {
	if opts.ScoreStep <= 0 {
		opts.ScoreStep = DefaultOptions().ScoreStep
	}
	if opts.ScoreFloor <= 0 {
		opts.ScoreFloor = DefaultOptions().ScoreFloor
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{store: store, opts: opts, logger: logger, Now: time.Now}
}

// ExtractFromCommit pattern-matches a commit message against the
// heuristics and persists a new lesson on a match. A commit that was
// already mined, or matches nothing, returns nil.
func (e *Engine) ExtractFromCommit(hash, message string, files []string) (*Lesson, error) {
	if hash != "" {
		existing, err := e.store.ByCommit(hash)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, nil
		}
	}

	text := extractText(message)
	if text == "" {
		return nil, nil
	}

	now := e.Now().UTC()
	l := &Lesson{
		ID:         uuid.NewString(),
		Text:       text,
		Tags:       InferTags(text),
		Files:      files,
		Score:      InitialScore,
		Active:     true,
		Source:     "commit",
		CommitHash: hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.Save(l); err != nil {
		return nil, err
	}
	e.logger.Info("extracted lesson", map[string]interface{}{
		"id":     l.ID,
		"commit": hash,
		"text":   text,
	})
	return l, nil
}

// bypassLessonText is stored whenever a commit skips the gate. Every
// bypass reinforces the same lesson shape, so retrieval surfaces it
// near guardian-related queries.
const bypassLessonText = "Always run the full pre-commit gate checks; bypassed commits lose verification"

// RecordBypass stores a lesson for a commit that skipped the gate. The
// commit hash dedupes: a bypass already mined returns nil.
func (e *Engine) RecordBypass(commitHash, message string) error {
	if commitHash != "" {
		existing, err := e.store.ByCommit(commitHash)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	}

	now := e.Now().UTC()
	l := &Lesson{
		ID:         uuid.NewString(),
		Text:       bypassLessonText,
		Tags:       InferTags(bypassLessonText),
		Score:      InitialScore,
		Active:     true,
		Source:     "guardian",
		CommitHash: commitHash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.Save(l); err != nil {
		return err
	}
	e.logger.Info("recorded bypass lesson", map[string]interface{}{
		"id":      l.ID,
		"commit":  commitHash,
		"message": message,
	})
	return nil
}

// RecordTestResult records a pass/fail outcome for a changed-file set
// and nudges the score of every lesson whose provenance area overlaps:
// up on pass, down on fail, by the configured step, clamped to [0,1].
// A lesson falling below the floor is deactivated but retained.
func (e *Engine) RecordTestResult(passed bool, files []string) error {
	now := e.Now().UTC()
	if err := e.store.RecordTestRun(uuid.NewString(), passed, files, now); err != nil {
		return err
	}

	all, err := e.store.List()
	if err != nil {
		return err
	}
	step := e.opts.ScoreStep
	if !passed {
		step = -step
	}
	updated := 0
	for i := range all {
		l := &all[i]
		if !l.AreaOverlaps(files) {
			continue
		}
		l.Score = clamp01(l.Score + step)
		l.UpdatedAt = now
		if l.Score < e.opts.ScoreFloor {
			if l.Active {
				e.logger.Info("lesson deactivated below score floor", map[string]interface{}{
					"id":    l.ID,
					"score": fmt.Sprintf("%.2f", l.Score),
				})
			}
			l.Active = false
		} else if passed {
			// A recovering score reactivates the lesson.
			l.Active = true
		}
		if err := e.store.Save(l); err != nil {
			return err
		}
		updated++
	}
	e.logger.Debug("score update applied", map[string]interface{}{
		"passed":  passed,
		"files":   len(files),
		"updated": updated,
	})
	return nil
}

func extractText(message string) string {
	msg := strings.ToLower(strings.TrimSpace(message))
	for _, p := range lessonPatterns {
		m := p.re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		args := make([]interface{}, len(m)-1)
		for i, g := range m[1:] {
			args[i] = strings.TrimSpace(g)
		}
		return fmt.Sprintf(p.template, args...)
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
