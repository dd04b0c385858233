package mcp

import "encoding/json"

const protocolVersion = "2024-11-05"

// MaxMessageSize bounds a single line-delimited JSON-RPC message.
const MaxMessageSize = 1024 * 1024

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Message is a JSON-RPC 2.0 request or response.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is a JSON-RPC 2.0 error.
type ErrorObject struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func resultMessage(id, result interface{}) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Result: result}
}

func errorMessage(id interface{}, code int, message string) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Error: &ErrorObject{Code: code, Message: message}}
}

// ToolDef describes one callable tool for tools/list.
type ToolDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// toolContent wraps a tool result the way MCP clients expect it.
type toolContent struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textResult(payload interface{}) (*toolContent, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return &toolContent{Content: []contentBlock{{Type: "text", Text: string(data)}}}, nil
}
