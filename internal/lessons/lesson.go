// Package lessons implements the auto-learning engine: lessons are
// extracted from commit messages and test outcomes, and carry an
// effectiveness score that is nudged by later events. The scoring is
// an online heuristic, not a statistically rigorous estimator; scores
// rank lessons for injection, nothing more.
package lessons

import (
	"sort"
	"strings"
	"time"
)

// Lesson is one learned guidance item.
type Lesson struct {
	ID   string   `json:"id"`
	Text string   `json:"text"`
	// Tags are lowercase topic tokens inferred from the lesson text,
	// matched against a query's inferred topic at injection time.
	Tags []string `json:"tags"`
	// Files is the provenance area: the files changed by the event the
	// lesson was extracted from. Later events touching the same area
	// move the score.
	Files []string `json:"files"`
	// Score is the effectiveness score in [0,1]. New lessons start at
	// 0.5.
	Score float64 `json:"score"`
	// Active is false once the score falls below the floor. Inactive
	// lessons are never injected but are retained for audit.
	Active bool `json:"active"`
	// Source records what produced the lesson: "commit" or "test".
	Source     string    `json:"source"`
	CommitHash string    `json:"commitHash,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// InitialScore is the score assigned to a freshly extracted lesson.
const InitialScore = 0.5

// TagsOverlap reports whether any lesson tag appears in the given
// topic token set.
func (l *Lesson) TagsOverlap(topic map[string]bool) bool {
	for _, t := range l.Tags {
		if topic[t] {
			return true
		}
	}
	return false
}

// AreaOverlaps reports whether the lesson's provenance area intersects
// the given changed-file list.
func (l *Lesson) AreaOverlaps(files []string) bool {
	for _, f := range files {
		for _, own := range l.Files {
			if f == own {
				return true
			}
		}
	}
	return false
}

// InferTags derives topic tokens from free text: lowercase identifier
// tokens of three or more runes, deduplicated and sorted.
func InferTags(text string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	}) {
		if len(tok) >= 3 && !stopwords[tok] && !seen[tok] {
			seen[tok] = true
			tags = append(tags, tok)
		}
	}
	sort.Strings(tags)
	return tags
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "not": true, "with": true,
	"this": true, "that": true, "from": true, "into": true, "use": true,
	"instead": true, "always": true, "never": true, "should": true,
	"have": true, "was": true, "are": true, "has": true, "when": true,
}
