// ABOUTME: JSON-RPC request dispatcher with method routing and validation.
// ABOUTME: Routes decoded requests to built-in handlers or the tool registry.

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/relay-mcp/internal/jsonrpc"
	"github.com/2389/relay-mcp/internal/tool"
)

// ServerInfo identifies this server in initialize responses.
type ServerInfo struct {
	Name    string
	Version string
}

// Config holds configuration for the dispatcher.
type Config struct {
	Tools  *tool.Registry
	Info   ServerInfo
	Logger *slog.Logger
}

// Dispatcher validates and routes JSON-RPC requests. Dispatch is stateless
// per call; the only side effects are whatever an invoked tool performs.
type Dispatcher struct {
	tools  *tool.Registry
	info   ServerInfo
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher backed by the given tool registry.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Tools == nil {
		return nil, errors.New("tool registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		tools:  cfg.Tools,
		info:   cfg.Info,
		logger: logger.With("component", "dispatch"),
	}, nil
}

// toolInfo is the tools/list entry shape.
type toolInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// Dispatch validates the request and routes it by exact method match.
// Any failure is returned as a *jsonrpc.Error; handler failures that are
// not already protocol errors are wrapped as internal errors here, so no
// unnormalized failure leaves the dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, req *jsonrpc.Request) (any, error) {
	result, err := d.route(ctx, req)
	if err == nil {
		return result, nil
	}

	var perr *jsonrpc.Error
	if !errors.As(err, &perr) {
		d.logger.Error("dispatch failed", "method", methodOf(req), "error", err)
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, jsonrpc.InternalErrorMessage)
	}
	return nil, perr
}

func (d *Dispatcher) route(ctx context.Context, req *jsonrpc.Request) (any, error) {
	if req == nil || strings.TrimSpace(req.Method) == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "Missing method in request")
	}
	if req.JSONRPC != jsonrpc.Version {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "Only JSON-RPC 2.0 is supported")
	}

	d.logger.Debug("dispatching request",
		"method", req.Method,
		"is_notification", req.IsNotification(),
	)

	switch req.Method {
	case "initialize":
		return d.handleInitialize(), nil
	case "ping":
		return map[string]any{}, nil
	case "notifications/initialized", "initialized":
		return map[string]any{}, nil
	case "tools/list":
		return d.handleToolsList(), nil
	case "tools/call":
		return d.handleToolsCall(ctx, req.Params)
	default:
		return nil, jsonrpc.Errorf(jsonrpc.CodeMethodNotFound, "Method not found: %s", req.Method)
	}
}

// handleInitialize returns the fixed capability descriptor. This server
// never emits tool-list-changed notifications, so listChanged is false.
func (d *Dispatcher) handleInitialize() map[string]any {
	return map[string]any{
		"protocolVersion": jsonrpc.ProtocolRevision,
		"serverInfo": map[string]any{
			"name":    d.info.Name,
			"version": d.info.Version,
		},
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
	}
}

func (d *Dispatcher) handleToolsList() map[string]any {
	all := d.tools.List()
	tools := make([]toolInfo, len(all))
	for i, t := range all {
		tools[i] = toolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	return map[string]any{"tools": tools}
}

// handleToolsCall resolves and invokes exactly one tool. The tool's result
// or protocol error propagates verbatim; the dispatcher does not interpret
// tool output.
func (d *Dispatcher) handleToolsCall(ctx context.Context, params map[string]any) (any, error) {
	if params == nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "tools/call requires params")
	}

	name, ok := params["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "tools/call requires non-empty name")
	}

	args := map[string]any{}
	if raw, present := params["arguments"]; present {
		args, ok = raw.(map[string]any)
		if !ok {
			return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "tools/call arguments must be object")
		}
	}

	t, ok := d.tools.Find(name)
	if !ok {
		return nil, jsonrpc.Errorf(jsonrpc.CodeToolNotFound, "Tool not found: %s", name)
	}

	d.logger.Debug("tools/call", "tool_name", name)
	return t.Invoke(ctx, args)
}

func methodOf(req *jsonrpc.Request) string {
	if req == nil {
		return ""
	}
	return req.Method
}
