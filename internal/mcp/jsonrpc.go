// Package mcp serves the prompt library to Model Context Protocol clients over
// JSON-RPC 2.0.
package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// Version is the JSON-RPC version string.
	Version = "2.0"

	ProtocolVersion = "2024-11-05"
	ServerName      = "prompt-management-mcp"
	ServerVersion   = "1.0.0"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

func NewError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Request is an incoming JSON-RPC message. A missing or null ID marks a
// notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the sender expects no response.
func (r *Request) IsNotification() bool {
	return isAbsent(r.ID)
}

// Response is an outgoing JSON-RPC message. A nil ID is written as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func newResult(id json.RawMessage, result json.RawMessage) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

func newErrorResponse(id json.RawMessage, err *Error) *Response {
	if isAbsent(id) {
		id = nil
	}
	return &Response{JSONRPC: Version, ID: id, Error: err}
}

// isAbsent reports whether a raw member was missing or null.
func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// splitBatch decodes a POST body into its messages. The second result
// reports whether the body was a JSON array.
func splitBatch(body []byte) ([]json.RawMessage, bool, *Error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, NewError(CodeParseError, "Parse error")
	}
	if trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, true, NewError(CodeParseError, "Parse error")
		}
		return batch, true, nil
	}
	if !json.Valid(trimmed) {
		return nil, false, NewError(CodeParseError, "Parse error")
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, false, nil
}

// decodeRequest parses one message of a batch. A nil request means the
// message was not an object. On other failures the returned request still
// carries the message ID when one could be read.
func decodeRequest(raw json.RawMessage) (*Request, *Error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, NewError(CodeInvalidRequest, "Invalid Request: message must be an object")
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		var probe struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.Unmarshal(trimmed, &probe)
		return &Request{ID: probe.ID}, NewError(CodeInvalidRequest, "Invalid Request: malformed message")
	}
	if req.JSONRPC != Version {
		return &req, NewError(CodeInvalidRequest, "Invalid Request: missing or invalid jsonrpc field")
	}
	if req.Method == "" {
		return &req, NewError(CodeInvalidRequest, "Invalid Request: missing method field")
	}
	return &req, nil
}
