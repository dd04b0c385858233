package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *Server) registerTools() {
	if s.assembler != nil {
		s.register(ToolDef{
			Name:        "search",
			Description: "Hybrid search over the code knowledge graph; returns a token-bounded ordered context bundle with lesson annotations",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query":       map[string]interface{}{"type": "string"},
					"tokenBudget": map[string]interface{}{"type": "integer"},
				},
				"required": []string{"query"},
			},
		}, s.toolSearch)
	}
	if s.lessons != nil {
		s.register(ToolDef{
			Name:        "lessons",
			Description: "List learned lessons with effectiveness scores, active first",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"activeOnly": map[string]interface{}{"type": "boolean"},
				},
			},
		}, s.toolLessons)
	}
	if s.guard != nil {
		s.register(ToolDef{
			Name:        "guardian_status",
			Description: "Commit gate audit summary with per-commit records and bypass findings",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		}, s.toolGuardianStatus)
	}
}

func (s *Server) toolSearch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		Query       string `json:"query"`
		TokenBudget int    `json:"tokenBudget"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid search arguments: %w", err)
	}
	if in.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	return s.assembler.Assemble(ctx, in.Query, in.TokenBudget)
}

func (s *Server) toolLessons(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		ActiveOnly bool `json:"activeOnly"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid lessons arguments: %w", err)
		}
	}
	if in.ActiveOnly {
		return s.lessons.Active()
	}
	return s.lessons.List()
}

func (s *Server) toolGuardianStatus(ctx context.Context, args json.RawMessage) (interface{}, error) {
	summary, records, err := s.guard.Status()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"summary": summary,
		"records": records,
	}, nil
}
