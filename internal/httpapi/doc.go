// Package httpapi exposes the protocol dispatcher over HTTP: an SSE push
// transport (GET /mcp, GET /mcp/sse), an asynchronous submit endpoint
// whose responses travel over the push channel (POST /mcp/messages), and
// a synchronous request/response endpoint (POST /mcp).
//
// The package is the single error-normalization boundary: protocol
// failures are returned inside the JSON-RPC envelope on a success-class
// HTTP status and broadcast to live sessions as mcp-error events.
package httpapi
