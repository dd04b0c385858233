package chunk

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitWindowFallback(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 130; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}

	frags := Split("notes.txt", []byte(sb.String()), SplitOptions{WindowLines: 60})
	if len(frags) != 3 {
		t.Fatalf("expected 3 window fragments, got %d", len(frags))
	}
	if frags[0].StartLine != 1 || frags[0].EndLine != 60 {
		t.Errorf("first window = %d-%d, want 1-60", frags[0].StartLine, frags[0].EndLine)
	}
	if frags[2].StartLine != 121 || frags[2].EndLine != 130 {
		t.Errorf("last window = %d-%d, want 121-130", frags[2].StartLine, frags[2].EndLine)
	}
}

func TestSplitCoversEveryLine(t *testing.T) {
	content := []byte("alpha\nbeta\ngamma\ndelta\n")
	frags := Split("doc.md", content, SplitOptions{WindowLines: 2})

	covered := make(map[int]bool)
	for _, f := range frags {
		for line := f.StartLine; line <= f.EndLine; line++ {
			covered[line] = true
		}
	}
	for line := 1; line <= 4; line++ {
		if !covered[line] {
			t.Errorf("line %d lost by splitting", line)
		}
	}
}

func TestSplitRespectsTokenBudget(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("some reasonably long line of content here\n")
	}

	frags := Split("big.txt", []byte(sb.String()), SplitOptions{MaxTokens: 100, WindowLines: 5})
	for _, f := range frags {
		if got := EstimateTokens(len(f.Text)); got > 100 {
			t.Errorf("fragment %s has %d tokens, budget 100", f.ID(), got)
		}
	}
}

func TestSplitSingleLongLineStaysWithinBudget(t *testing.T) {
	// One 40KB line, the minified-bundle shape: line windows cannot
	// subdivide it, so it must fall back to byte windows.
	content := []byte(strings.Repeat("x", 40*1024))

	frags := Split("bundle.min.js", content, SplitOptions{MaxTokens: 800, WindowLines: 60})
	if len(frags) < 2 {
		t.Fatalf("long line not subdivided: %d fragments", len(frags))
	}

	var rejoined strings.Builder
	seen := make(map[string]bool)
	for _, f := range frags {
		if got := EstimateTokens(len(f.Text)); got > 800 {
			t.Errorf("fragment %s has %d tokens, budget 800", f.ID(), got)
		}
		if f.StartLine != 1 || f.EndLine != 1 {
			t.Errorf("fragment %s lost its line span", f.ID())
		}
		if seen[f.ID()] {
			t.Errorf("duplicate fragment ID %s", f.ID())
		}
		seen[f.ID()] = true
		rejoined.WriteString(f.Text)
	}
	if rejoined.String() != string(content) {
		t.Error("byte windows do not reassemble to the original line")
	}
}

func TestSplitLongLinesInsideWindows(t *testing.T) {
	// Multi-line file where each line alone is over budget: the line
	// windows must keep shrinking and then cut each line by bytes.
	line := strings.Repeat("y", 2000)
	content := []byte(line + "\n" + line + "\n" + line + "\n")

	frags := Split("data.txt", content, SplitOptions{MaxTokens: 100, WindowLines: 60})
	covered := make(map[int]bool)
	for _, f := range frags {
		if got := EstimateTokens(len(f.Text)); got > 100 {
			t.Errorf("fragment %s has %d tokens, budget 100", f.ID(), got)
		}
		for l := f.StartLine; l <= f.EndLine; l++ {
			covered[l] = true
		}
	}
	for l := 1; l <= 3; l++ {
		if !covered[l] {
			t.Errorf("line %d lost by splitting", l)
		}
	}
}

func TestChunkRunesKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("héllo", 100) // multi-byte runes
	chunks := chunkRunes(s, 7)
	var rejoined strings.Builder
	for _, c := range chunks {
		if len(c) > 7 {
			t.Errorf("chunk %q exceeds 7 bytes", c)
		}
		for _, r := range c {
			if r == '�' {
				t.Fatalf("chunk %q split a rune", c)
			}
		}
		rejoined.WriteString(c)
	}
	if rejoined.String() != s {
		t.Error("chunks do not reassemble to the input")
	}
}

func TestSplitEmptyFile(t *testing.T) {
	if frags := Split("empty.txt", nil, SplitOptions{}); frags != nil {
		t.Errorf("expected nil fragments for empty file, got %d", len(frags))
	}
}

func TestFragmentID(t *testing.T) {
	f := Fragment{Path: "pkg/a.go", StartLine: 10, EndLine: 25}
	if got := f.ID(); got != "pkg/a.go#10-25" {
		t.Errorf("ID = %q", got)
	}
	f.Part = 2
	if got := f.ID(); got != "pkg/a.go#10-25.2" {
		t.Errorf("part ID = %q", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		bytes int
		want  int
	}{
		{0, 0}, {1, 1}, {4, 1}, {5, 2}, {400, 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.bytes); got != tt.want {
			t.Errorf("EstimateTokens(%d) = %d, want %d", tt.bytes, got, tt.want)
		}
	}
}
