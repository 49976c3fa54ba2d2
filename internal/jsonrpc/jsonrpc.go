// ABOUTME: JSON-RPC 2.0 envelope types shared by all transports.
// ABOUTME: Defines request/response wire shapes, error codes, and the typed protocol error.

package jsonrpc

import (
	"errors"
	"fmt"
)

// Version is the only JSON-RPC version this server speaks.
const Version = "2.0"

// ProtocolRevision is the MCP revision advertised in initialize responses.
const ProtocolRevision = "2025-06-18"

// Standard JSON-RPC error codes, plus the server-specific tool lookup code.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeToolNotFound   = -32001
)

// InternalErrorMessage is the only text internal failures expose on the wire.
// The underlying error may be logged or broadcast internally, never returned.
const InternalErrorMessage = "Internal server error"

// Request is a decoded JSON-RPC 2.0 request. An absent ID marks a
// notification: it is dispatched for side effects but never answered.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no correlation id.
func (r *Request) IsNotification() bool {
	return r == nil || r.ID == nil
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is
// set; unset optional fields are omitted from the encoding, never null.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// Success builds a response carrying a result, correlated to the given id.
func Success(id, result any) *Response {
	return &Response{
		JSONRPC: Version,
		Result:  result,
		ID:      id,
	}
}

// Failure builds a response carrying an error, correlated to the given id.
func Failure(id any, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		Error:   &Error{Code: code, Message: message, Data: data},
		ID:      id,
	}
}

// Error is the typed protocol error that crosses the dispatcher boundary.
// Immutable once constructed.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates a protocol error without attached data.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithData creates a protocol error carrying structured data.
func NewErrorWithData(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Errorf creates a protocol error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError normalizes any failure into a protocol error. Typed protocol
// errors pass through unchanged; everything else becomes an internal error
// with the generic message so internal text never reaches the wire.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return NewError(CodeInternalError, InternalErrorMessage)
}
