package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: HumanFormat, Level: WarnLevel, Output: &buf})

	logger.Debug("too quiet", nil)
	logger.Info("still too quiet", nil)
	logger.Warn("loud enough", nil)
	logger.Error("definitely", nil)

	out := buf.String()
	if strings.Contains(out, "too quiet") {
		t.Error("debug/info leaked through a warn-level logger")
	}
	if !strings.Contains(out, "loud enough") || !strings.Contains(out, "definitely") {
		t.Errorf("warn/error suppressed: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"verbose", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})

	logger.Info("snapshot published", map[string]interface{}{"units": 42})

	var e struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("output is not one JSON object: %v (%q)", err, buf.String())
	}
	if e.Level != "info" || e.Message != "snapshot published" {
		t.Errorf("entry = %+v", e)
	}
	if e.Fields["units"] != float64(42) {
		t.Errorf("fields = %v", e.Fields)
	}
}

func TestHumanFormatSortedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: HumanFormat, Level: InfoLevel, Output: &buf})

	logger.Info("stage complete", map[string]interface{}{
		"zeta":  1,
		"alpha": 2,
	})

	out := buf.String()
	ia, iz := strings.Index(out, "alpha="), strings.Index(out, "zeta=")
	if ia < 0 || iz < 0 || ia > iz {
		t.Errorf("fields not sorted in %q", out)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})
	child := base.With(map[string]interface{}{"component": "pipeline"})

	child.Info("running", map[string]interface{}{"stage": "fuse"})

	out := buf.String()
	if !strings.Contains(out, `"component":"pipeline"`) {
		t.Errorf("bound field missing from %q", out)
	}
	if !strings.Contains(out, `"stage":"fuse"`) {
		t.Errorf("call field missing from %q", out)
	}

	// The parent is unaffected.
	buf.Reset()
	base.Info("plain", nil)
	if strings.Contains(buf.String(), "component") {
		t.Error("With mutated the parent logger")
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic and must stay silent.
	Discard().Error("nobody hears this", map[string]interface{}{"k": "v"})
}
