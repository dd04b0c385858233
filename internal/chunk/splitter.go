package chunk

import (
	"strings"
	"unicode/utf8"
)

// SplitOptions bounds fragment sizes.
type SplitOptions struct {
	// MaxTokens bounds the estimated token size of one fragment.
	// Oversized syntactic fragments are re-split into windows.
	MaxTokens int
	// WindowLines is the window size for non-parseable content.
	WindowLines int
}

// DefaultSplitOptions returns the default splitting bounds.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{MaxTokens: 800, WindowLines: 60}
}

// Split breaks file content into fragments. Supported languages split
// along function/class boundaries via tree-sitter; everything else
// falls back to fixed-size line windows. No fragment exceeds
// opts.MaxTokens.
func Split(path string, content []byte, opts SplitOptions) []Fragment {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultSplitOptions().MaxTokens
	}
	if opts.WindowLines <= 0 {
		opts.WindowLines = DefaultSplitOptions().WindowLines
	}

	lang := DetectLanguage(path)
	lines := splitLines(string(content))
	if len(lines) == 0 {
		return nil
	}

	var frags []Fragment
	if bounds := syntacticBoundaries(path, content, lang); len(bounds) > 0 {
		frags = fragmentsFromBoundaries(path, lines, bounds)
	} else {
		frags = windowFragments(path, lines, 1, opts.WindowLines)
	}

	// Enforce the token budget: oversized fragments are re-split into
	// ever smaller line windows, and a single line that alone exceeds
	// the budget is cut into byte windows on rune boundaries.
	out := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		out = appendBudgeted(out, f, path, lines, opts)
	}
	return out
}

// appendBudgeted appends f, splitting it first if it exceeds the token
// budget. Multi-line fragments halve their window until single lines
// remain; an oversized single line falls back to byte windows.
func appendBudgeted(dst []Fragment, f Fragment, path string, lines []string, opts SplitOptions) []Fragment {
	if EstimateTokens(len(f.Text)) <= opts.MaxTokens {
		return append(dst, f)
	}

	if f.EndLine > f.StartLine {
		span := f.EndLine - f.StartLine + 1
		window := opts.WindowLines
		if window >= span {
			window = (span + 1) / 2
		}
		for _, sub := range windowFragments(path, lines[f.StartLine-1:f.EndLine], f.StartLine, window) {
			sub.Symbol = f.Symbol
			dst = appendBudgeted(dst, sub, path, lines, opts)
		}
		return dst
	}

	// One line over budget, e.g. minified output. EstimateTokens is
	// bytes/4, so MaxTokens*4 bytes per piece lands exactly on budget.
	for i, text := range chunkRunes(f.Text, opts.MaxTokens*4) {
		sub := f
		sub.Text = text
		sub.Part = i + 1
		dst = append(dst, sub)
	}
	return dst
}

// chunkRunes cuts s into pieces of at most maxBytes, never splitting a
// rune.
func chunkRunes(s string, maxBytes int) []string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return []string{s}
	}
	var chunks []string
	for len(s) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxBytes
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}

// boundary is a syntactic split point: a named declaration's line span.
type boundary struct {
	startLine int // 1-indexed
	endLine   int // inclusive
	symbol    string
}

// fragmentsFromBoundaries covers the whole file: declared spans become
// fragments, and the gaps between them become filler fragments so no
// source line is lost.
func fragmentsFromBoundaries(path string, lines []string, bounds []boundary) []Fragment {
	var frags []Fragment
	next := 1

	for _, b := range bounds {
		if b.startLine > next {
			frags = append(frags, makeFragment(path, lines, next, b.startLine-1, ""))
		}
		if b.endLine >= b.startLine {
			frags = append(frags, makeFragment(path, lines, b.startLine, b.endLine, b.symbol))
		}
		if b.endLine+1 > next {
			next = b.endLine + 1
		}
	}
	if next <= len(lines) {
		frags = append(frags, makeFragment(path, lines, next, len(lines), ""))
	}
	return frags
}

func windowFragments(path string, lines []string, firstLine, window int) []Fragment {
	var frags []Fragment
	for off := 0; off < len(lines); off += window {
		end := off + window
		if end > len(lines) {
			end = len(lines)
		}
		frags = append(frags, Fragment{
			Path:      path,
			StartLine: firstLine + off,
			EndLine:   firstLine + end - 1,
			Text:      strings.Join(lines[off:end], "\n"),
		})
	}
	return frags
}

func makeFragment(path string, lines []string, start, end int, symbol string) Fragment {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	return Fragment{
		Path:      path,
		StartLine: start,
		EndLine:   end,
		Symbol:    symbol,
		Text:      strings.Join(lines[start-1:end], "\n"),
	}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	// Drop a trailing empty line from a final newline so windows don't
	// produce an empty fragment.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
