// Package structural derives call/import/reference edges between units
// by resolving identifier references against the index's own symbol
// table. Unresolved references are expected, not errors; they are
// counted and reported at debug level.
package structural

import (
	"sort"
	"strings"
	"unicode"

	"ckg/internal/chunk"
	"ckg/internal/errors"
	"ckg/internal/logging"
	"ckg/internal/signal"
)

// Build extracts references from every unit's fragment and produces one
// structural edge per resolved reference. Weight is the inverse of
// reference distance: same-file references weigh 1.0, cross-directory
// references 1/(1+dirDistance). Rebuilding from identical input yields
// an identical, duplicate-free edge set.
func Build(units []chunk.Unit, logger *logging.Logger) []signal.Edge {
	if logger == nil {
		logger = logging.Discard()
	}

	// Symbol table: declared name -> defining units. Names shorter than
	// three runes are too ambiguous to resolve.
	symbols := make(map[string][]int)
	for i, u := range units {
		if len(u.Symbol) >= 3 {
			symbols[u.Symbol] = append(symbols[u.Symbol], i)
		}
	}
	if len(symbols) == 0 {
		return nil
	}

	// Per pair keep the strongest reference.
	unresolved := 0
	best := make(map[[2]string]float64)
	for i, u := range units {
		for ident := range referencedIdents(u.Source) {
			defs, ok := symbols[ident]
			if !ok {
				unresolved++
				continue
			}
			if ident == u.Symbol {
				continue
			}
			for _, j := range defs {
				if i == j {
					continue
				}
				target := units[j]
				w := referenceWeight(u.Path, target.Path)
				key := [2]string{u.ID, target.ID}
				if w > best[key] {
					best[key] = w
				}
			}
		}
	}

	edges := make([]signal.Edge, 0, len(best))
	for key, w := range best {
		edges = append(edges, signal.Edge{
			From:   key[0],
			To:     key[1],
			Kind:   signal.Structural,
			Weight: w,
		})
	}

	// Sorted output keeps rebuilds byte-identical.
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].From != edges[b].From {
			return edges[a].From < edges[b].From
		}
		return edges[a].To < edges[b].To
	})

	if unresolved > 0 {
		logger.Debug("references left unresolved", map[string]interface{}{
			"count": unresolved,
			"code":  string(errors.UnresolvedReference),
		})
	}
	return edges
}

// referenceWeight maps the path distance between two files to (0,1].
// Same file: 1.0. Same directory: 0.5. Each directory level between
// them lowers the weight further.
func referenceWeight(fromPath, toPath string) float64 {
	if fromPath == toPath {
		return 1.0
	}
	return 1.0 / float64(1+dirDistance(fromPath, toPath))
}

// dirDistance counts the directory hops between two slash-separated
// paths: levels up from one to the common ancestor plus levels down to
// the other.
func dirDistance(a, b string) int {
	da := strings.Split(a, "/")
	db := strings.Split(b, "/")
	da = da[:len(da)-1] // drop file names
	db = db[:len(db)-1]

	common := 0
	for common < len(da) && common < len(db) && da[common] == db[common] {
		common++
	}
	return (len(da) - common) + (len(db) - common) + 1
}

// referencedIdents scans fragment text for identifier tokens that look
// like references: a word followed by '(' (call site) or appearing in
// an import/use line. This is a lexical approximation; resolution
// against the symbol table does the filtering.
func referencedIdents(source string) map[string]bool {
	idents := make(map[string]bool)
	runes := []rune(source)

	for i := 0; i < len(runes); {
		if !isIdentStart(runes[i]) {
			i++
			continue
		}
		start := i
		for i < len(runes) && isIdentPart(runes[i]) {
			i++
		}
		word := string(runes[start:i])

		// Skip whitespace to see what follows.
		j := i
		for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t') {
			j++
		}
		if j < len(runes) && runes[j] == '(' {
			idents[word] = true
			continue
		}
		// Dotted selector base.Member records the member too.
		if j < len(runes) && runes[j] == '.' {
			idents[word] = true
		}
	}

	// Import-style lines reference modules by name.
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") ||
			strings.HasPrefix(trimmed, "use ") {
			for _, tok := range strings.FieldsFunc(trimmed, func(r rune) bool {
				return !isIdentPart(r)
			}) {
				if len(tok) >= 3 {
					idents[tok] = true
				}
			}
		}
	}
	return idents
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
