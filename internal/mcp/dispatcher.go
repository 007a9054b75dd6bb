package mcp

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ClientInfo identifies the client in initialize params.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	ServerInfo      serverInfo             `json:"serverInfo"`
	Capabilities    map[string]interface{} `json:"capabilities"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Dispatcher routes decoded JSON-RPC messages to the MCP methods.
type Dispatcher struct {
	router *Router
	tools  *ToolCatalog
	log    *zap.Logger
}

func NewDispatcher(source PromptSource, log *zap.Logger) (*Dispatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tools, err := NewToolCatalog(source, log)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		router: NewRouter(log),
		tools:  tools,
		log:    log,
	}
	routes := []struct {
		method  string
		handler Handler
	}{
		{"initialize", d.initialize},
		{"notifications/initialized", d.initialized},
		{"initialized", d.initialized},
		{"ping", d.ping},
		{"shutdown", d.shutdown},
		{"tools/list", d.listTools},
		{"tools/call", d.callTool},
	}
	for _, r := range routes {
		if err := d.router.AddRoute(r.method, r.handler); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dispatcher) Tools() *ToolCatalog {
	return d.tools
}

// Handle processes one message. The response is nil for notifications,
// whatever their outcome. The request is nil when the message was not a JSON
// object.
func (d *Dispatcher) Handle(ctx context.Context, raw json.RawMessage) (*Request, *Response) {
	req, rpcErr := decodeRequest(raw)
	if req == nil {
		return nil, newErrorResponse(nil, rpcErr)
	}
	if rpcErr != nil {
		if req.IsNotification() {
			d.log.Debug("Dropped invalid MCP notification", zap.String("error", rpcErr.Message))
			return req, nil
		}
		return req, newErrorResponse(req.ID, rpcErr)
	}

	result, err := d.router.Route(ctx, req.Method, req.Params)
	if req.IsNotification() {
		if err != nil {
			d.log.Warn("MCP notification failed", zap.String("method", req.Method), zap.Error(err))
		}
		return req, nil
	}
	if err != nil {
		return req, newErrorResponse(req.ID, d.toRPCError(req.Method, err))
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return req, newErrorResponse(req.ID, d.toRPCError(req.Method, err))
	}
	return req, newResult(req.ID, payload)
}

func (d *Dispatcher) toRPCError(method string, err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	d.log.Error("MCP method failed", zap.String("method", method), zap.Error(err))
	return NewError(CodeInternalError, "Internal error: %s", err.Error())
}

func (d *Dispatcher) initialize(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p initializeParams
	if !isAbsent(params) {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, NewError(CodeInvalidParams, "Invalid params: %s", err.Error())
		}
	}
	name := p.ClientInfo.Name
	if name == "" {
		name = "unknown"
	}
	d.log.Info("Initializing MCP client",
		zap.String("client", name),
		zap.String("client_protocol", p.ProtocolVersion),
	)

	return initializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      serverInfo{Name: ServerName, Version: ServerVersion},
		Capabilities:    map[string]interface{}{"tools": map[string]interface{}{}},
	}, nil
}

func (d *Dispatcher) initialized(context.Context, json.RawMessage) (interface{}, error) {
	d.log.Info("MCP client initialized")
	return struct{}{}, nil
}

func (d *Dispatcher) ping(context.Context, json.RawMessage) (interface{}, error) {
	return struct{}{}, nil
}

func (d *Dispatcher) shutdown(context.Context, json.RawMessage) (interface{}, error) {
	d.log.Info("MCP shutdown requested")
	return struct{}{}, nil
}

func (d *Dispatcher) listTools(context.Context, json.RawMessage) (interface{}, error) {
	return map[string]interface{}{"tools": d.tools.List()}, nil
}

func (d *Dispatcher) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p callToolParams
	if isAbsent(params) {
		return nil, NewError(CodeInvalidParams, "Invalid params: missing tool name")
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, "Invalid params: %s", err.Error())
	}
	if p.Name == "" {
		return nil, NewError(CodeInvalidParams, "Invalid params: missing tool name")
	}
	d.log.Info("MCP tool call", zap.String("tool", p.Name))
	return d.tools.Call(ctx, p.Name, p.Arguments), nil
}
