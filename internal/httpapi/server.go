// ABOUTME: HTTP transport adapter exposing the dispatcher over SSE and plain request/response.
// ABOUTME: Owns the error-normalization boundary; protocol failures never surface as HTTP errors.

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/2389/relay-mcp/internal/dispatch"
	"github.com/2389/relay-mcp/internal/jsonrpc"
	"github.com/2389/relay-mcp/internal/session"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// clientIDHeader carries the client identifier; it wins over the query param.
const clientIDHeader = "X-Client-Id"

// Config holds configuration for the HTTP server.
type Config struct {
	Dispatcher *dispatch.Dispatcher
	Sessions   *session.Registry
	Logger     *slog.Logger
	// BaseURL prefixes the message-submission URL pushed in the endpoint event.
	BaseURL string
}

// Server adapts HTTP and SSE transports onto the protocol dispatcher.
type Server struct {
	dispatcher *dispatch.Dispatcher
	sessions   *session.Registry
	logger     *slog.Logger
	baseURL    string
}

// NewServer creates the transport adapter.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: cfg.Dispatcher,
		sessions:   cfg.Sessions,
		logger:     logger.With("component", "httpapi"),
		baseURL:    cfg.BaseURL,
	}, nil
}

// RegisterRoutes registers the MCP endpoints on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/messages", s.handleMessages)
	mux.HandleFunc("/mcp/sse", s.handleBareSSE)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleConnect(w, r)
	case http.MethodPost:
		s.handleSync(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleConnect opens a push channel and immediately announces the
// message-submission URL for the resolved client id as an endpoint event.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	clientID := s.resolveClientID(r)
	sess := s.sessions.Connect(clientID)

	endpoint := fmt.Sprintf("%s/mcp/messages?clientId=%s", s.baseURL, url.QueryEscape(sess.ClientID))
	s.sessions.SendToClient(sess.ClientID, "endpoint", endpoint)

	s.streamSession(w, r, sess)
}

// handleBareSSE opens a push channel with no initial event.
func (s *Server) handleBareSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	sess := s.sessions.Connect(r.Header.Get(clientIDHeader))
	s.streamSession(w, r, sess)
}

// handleMessages accepts a request for a named client, dispatches it, and
// pushes the response over that client's session. The HTTP reply is always
// an immediate accept; the real answer travels over the push channel.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		s.writeProtocolFailure(w, nil, jsonrpc.CodeInvalidRequest, "clientId is required")
		return
	}

	req, perr := s.decodeRequest(r)
	if perr != nil {
		s.writeProtocolFailure(w, nil, perr.Code, perr.Message)
		return
	}

	if req.IsNotification() {
		if _, err := s.dispatcher.Dispatch(r.Context(), req); err != nil {
			s.logger.Debug("notification dispatch failed", "method", req.Method, "error", err)
		}
		s.writeAccepted(w)
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), req)
	var resp *jsonrpc.Response
	if err != nil {
		e := jsonrpc.AsError(err)
		resp = jsonrpc.Failure(req.ID, e.Code, e.Message, e.Data)
	} else {
		resp = jsonrpc.Success(req.ID, result)
	}

	s.sessions.SendToClient(clientID, "message", resp)
	s.writeAccepted(w)
}

// handleSync dispatches a request and returns the response envelope
// directly as the HTTP body.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(clientIDHeader)

	req, perr := s.decodeRequest(r)
	if perr != nil {
		s.writeProtocolFailure(w, nil, perr.Code, perr.Message)
		return
	}

	if req.IsNotification() {
		if _, err := s.dispatcher.Dispatch(r.Context(), req); err != nil {
			s.logger.Debug("notification dispatch failed", "method", req.Method, "error", err)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		e := jsonrpc.AsError(err)
		s.sessions.Broadcast("mcp-error", map[string]any{"message": e.Message, "code": e.Code})
		s.writeJSON(w, http.StatusOK, jsonrpc.Failure(req.ID, e.Code, e.Message, e.Data))
		return
	}

	if clientID != "" {
		s.sessions.SendToClient(clientID, "mcp-response", map[string]any{
			"method": req.Method,
			"id":     req.ID,
			"status": "ok",
		})
	}
	s.writeJSON(w, http.StatusOK, jsonrpc.Success(req.ID, result))
}

// resolveClientID prefers the header, then the query parameter, and
// generates a random identifier when both are absent.
func (s *Server) resolveClientID(r *http.Request) string {
	if id := r.Header.Get(clientIDHeader); id != "" {
		return id
	}
	if id := r.URL.Query().Get("clientId"); id != "" {
		return id
	}
	return uuid.New().String()
}

// decodeRequest reads and parses the JSON-RPC body. Failures map to the
// protocol taxonomy, never to transport errors.
func (s *Server) decodeRequest(r *http.Request) (*jsonrpc.Request, *jsonrpc.Error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeParseError, "failed to read request body")
	}
	if int64(len(body)) > MaxRequestBodySize {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "request body too large")
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeParseError, "Invalid JSON payload")
	}
	return &req, nil
}

// streamSession forwards session events to the client as SSE frames until
// the session ends or the client goes away.
func (s *Server) streamSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sessions.Complete(sess)
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.sessions.Complete(sess)
			return
		case ev, open := <-sess.Events():
			if !open {
				return
			}
			s.writeSSEEvent(w, ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

// writeProtocolFailure replies with a failure envelope on a success-class
// HTTP status and broadcasts the error to all live sessions.
func (s *Server) writeProtocolFailure(w http.ResponseWriter, id any, code int, message string) {
	s.sessions.Broadcast("mcp-error", map[string]any{"message": message, "code": code})
	s.writeJSON(w, http.StatusOK, jsonrpc.Failure(id, code, message, nil))
}

func (s *Server) writeAccepted(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSSEEvent writes a single SSE frame to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
