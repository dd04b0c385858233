// Package mcp exposes the engine over line-delimited JSON-RPC on
// stdio, so editor integrations can query context, lessons, and the
// commit audit without linking the engine in-process.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"ckg/internal/assemble"
	"ckg/internal/guardian"
	"ckg/internal/lessons"
	"ckg/internal/logging"
)

// ToolHandler executes one tool call.
type ToolHandler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Server is the stdio JSON-RPC server.
type Server struct {
	stdin   io.Reader
	stdout  io.Writer
	scanner *bufio.Scanner
	logger  *logging.Logger
	version string

	assembler *assemble.Assembler
	lessons   *lessons.Store
	guard     *guardian.Guardian

	tools map[string]ToolHandler
	defs  []ToolDef
}

// NewServer creates a Server over stdin/stdout. Any collaborator may
// be nil; its tools are simply not registered.
func NewServer(version string, stdin io.Reader, stdout io.Writer,
	assembler *assemble.Assembler, lessonStore *lessons.Store,
	guard *guardian.Guardian, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		stdin:     stdin,
		stdout:    stdout,
		logger:    logger,
		version:   version,
		assembler: assembler,
		lessons:   lessonStore,
		guard:     guard,
		tools:     make(map[string]ToolHandler),
	}
	s.registerTools()
	return s
}

// Serve reads requests until EOF or context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	s.scanner = bufio.NewScanner(s.stdin)
	s.scanner.Buffer(make([]byte, MaxMessageSize), MaxMessageSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return fmt.Errorf("error reading from stdin: %w", err)
			}
			return nil
		}
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.write(errorMessage(nil, codeParseError, "invalid JSON-RPC message"))
			continue
		}
		if resp := s.dispatch(ctx, &msg); resp != nil {
			s.write(resp)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, msg *Message) *Message {
	switch msg.Method {
	case "initialize":
		return resultMessage(msg.ID, map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo": map[string]interface{}{
				"name":    "ckg",
				"version": s.version,
			},
		})
	case "notifications/initialized":
		return nil // Notification, no response
	case "ping":
		return resultMessage(msg.ID, map[string]interface{}{})
	case "tools/list":
		return resultMessage(msg.ID, map[string]interface{}{"tools": s.defs})
	case "tools/call":
		return s.handleCall(ctx, msg)
	default:
		if msg.ID == nil {
			return nil // Unknown notification
		}
		return errorMessage(msg.ID, codeMethodNotFound, "method not found: "+msg.Method)
	}
}

func (s *Server) handleCall(ctx context.Context, msg *Message) *Message {
	var params callParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return errorMessage(msg.ID, codeInvalidParams, "invalid tool call params")
	}
	handler, ok := s.tools[params.Name]
	if !ok {
		return errorMessage(msg.ID, codeMethodNotFound, "unknown tool: "+params.Name)
	}

	payload, err := handler(ctx, params.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed", map[string]interface{}{
			"tool":  params.Name,
			"error": err.Error(),
		})
		return resultMessage(msg.ID, &toolContent{
			Content: []contentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	}
	result, err := textResult(payload)
	if err != nil {
		return errorMessage(msg.ID, codeInternalError, err.Error())
	}
	return resultMessage(msg.ID, result)
}

func (s *Server) write(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal response", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	fmt.Fprintf(s.stdout, "%s\n", data)
}

func (s *Server) register(def ToolDef, handler ToolHandler) {
	s.tools[def.Name] = handler
	s.defs = append(s.defs, def)
}
