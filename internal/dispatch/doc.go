// Package dispatch implements the JSON-RPC method dispatcher for the MCP
// tool-invocation protocol.
//
// # Routing
//
// Requests are validated (method present, JSON-RPC 2.0) and routed by exact
// method match:
//
//   - initialize - fixed capability descriptor
//   - ping - liveness probe, empty result
//   - notifications/initialized, initialized - lifecycle acknowledgement
//   - tools/list - registered tools sorted case-insensitively by name
//   - tools/call - resolve and invoke one tool from the registry
//
// Anything else fails with method-not-found.
//
// # Error normalization
//
// Every failure leaving Dispatch is a *jsonrpc.Error. Tool and handler
// failures that are not already protocol errors are wrapped as internal
// errors with a generic message; the underlying error is logged, never
// returned to the caller.
package dispatch
