// ABOUTME: Tests for the HTTP transport covering sync dispatch, message push, and SSE.
// ABOUTME: Validates that protocol failures ride success-class HTTP statuses.

package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/relay-mcp/internal/dispatch"
	"github.com/2389/relay-mcp/internal/jsonrpc"
	"github.com/2389/relay-mcp/internal/session"
	"github.com/2389/relay-mcp/internal/tool"
)

type echoTool struct{}

func (echoTool) Name() string                    { return "echo" }
func (echoTool) Description() string             { return "echoes its arguments" }
func (echoTool) InputSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "object"} }
func (echoTool) Invoke(_ context.Context, args map[string]any) (any, error) {
	return map[string]any{"echo": args}, nil
}

type fixture struct {
	server   *Server
	sessions *session.Registry
	mux      *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry := tool.NewRegistry(nil)
	require.NoError(t, registry.Register(echoTool{}))

	dispatcher, err := dispatch.NewDispatcher(dispatch.Config{
		Tools: registry,
		Info:  dispatch.ServerInfo{Name: "relay-mcp", Version: "test"},
	})
	require.NoError(t, err)

	sessions := session.NewRegistry(session.Config{IdleTimeout: time.Minute})
	t.Cleanup(sessions.Close)

	srv, err := NewServer(Config{
		Dispatcher: dispatcher,
		Sessions:   sessions,
		BaseURL:    "http://localhost:8080",
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return &fixture{server: srv, sessions: sessions, mux: mux}
}

func (f *fixture) post(t *testing.T, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "2.0", envelope["jsonrpc"])
	return envelope
}

func nextEvent(t *testing.T, sess *session.Session) session.Event {
	t.Helper()
	select {
	case ev, open := <-sess.Events():
		require.True(t, open, "session channel closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event pushed within deadline")
		return session.Event{}
	}
}

func TestSyncInitialize(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/mcp", `{"jsonrpc":"2.0","method":"initialize","id":1}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(1), envelope["id"])

	result, ok := envelope["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, jsonrpc.ProtocolRevision, result["protocolVersion"])
}

func TestSyncToolCall(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/mcp",
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo","arguments":{"k":"v"}},"id":"call-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "call-1", envelope["id"])
	result := envelope["result"].(map[string]any)
	assert.Equal(t, map[string]any{"k": "v"}, result["echo"])
}

func TestSyncUnknownTool(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/mcp",
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"missing"},"id":4}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, float64(jsonrpc.CodeToolNotFound), errObj["code"])
	assert.Contains(t, errObj["message"], "missing")
}

func TestSyncInvalidJSON(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/mcp", `{not json`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.NotContains(t, envelope, "id")
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, float64(jsonrpc.CodeParseError), errObj["code"])
	assert.Equal(t, "Invalid JSON payload", errObj["message"])
}

func TestSyncNotificationAcceptedSilently(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/mcp", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestSyncNotificationErrorIsDropped(t *testing.T) {
	f := newFixture(t)
	watcher := f.sessions.Connect("watcher")

	rec := f.post(t, "/mcp", `{"jsonrpc":"2.0","method":"no/such/method"}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	// No error broadcast for notification failures.
	f.sessions.Disconnect("watcher")
	assert.Empty(t, drainEvents(watcher))
}

func TestSyncPushesResponseNotification(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Connect("client-7")

	rec := f.post(t, "/mcp", `{"jsonrpc":"2.0","method":"ping","id":9}`,
		map[string]string{"X-Client-Id": "client-7"})
	require.Equal(t, http.StatusOK, rec.Code)

	ev := nextEvent(t, sess)
	assert.Equal(t, "mcp-response", ev.Name)
	payload := ev.Data.(map[string]any)
	assert.Equal(t, "ping", payload["method"])
	assert.Equal(t, "ok", payload["status"])
}

func TestSyncErrorBroadcastsToSessions(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Connect("observer")

	rec := f.post(t, "/mcp", `{"jsonrpc":"2.0","method":"resources/list","id":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(2), envelope["id"])

	ev := nextEvent(t, sess)
	assert.Equal(t, "mcp-error", ev.Name)
	payload := ev.Data.(map[string]any)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, payload["code"])
}

func TestSyncBodyTooLarge(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/mcp", strings.Repeat("x", MaxRequestBodySize+1), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, float64(jsonrpc.CodeInvalidRequest), errObj["code"])
	assert.Equal(t, "request body too large", errObj["message"])
}

func TestMCPMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestMessagesRequiresClientID(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/mcp/messages", `{"jsonrpc":"2.0","method":"ping","id":1}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	errObj := envelope["error"].(map[string]any)
	assert.Equal(t, float64(jsonrpc.CodeInvalidRequest), errObj["code"])
	assert.Equal(t, "clientId is required", errObj["message"])
}

func TestMessagesPushesResponseOverSession(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Connect("push-client")

	rec := f.post(t, "/mcp/messages?clientId=push-client",
		`{"jsonrpc":"2.0","method":"tools/list","id":11}`, nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, "accepted", accepted["status"])

	ev := nextEvent(t, sess)
	assert.Equal(t, "message", ev.Name)
	resp, ok := ev.Data.(*jsonrpc.Response)
	require.True(t, ok)
	assert.Equal(t, float64(11), resp.ID)
	assert.Nil(t, resp.Error)
}

func TestMessagesPushesFailureEnvelope(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Connect("push-client")

	rec := f.post(t, "/mcp/messages?clientId=push-client",
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"missing"},"id":12}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	ev := nextEvent(t, sess)
	assert.Equal(t, "message", ev.Name)
	resp := ev.Data.(*jsonrpc.Response)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeToolNotFound, resp.Error.Code)
	assert.Equal(t, float64(12), resp.ID)
}

func TestMessagesNotificationDoesNotPush(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Connect("quiet")

	rec := f.post(t, "/mcp/messages?clientId=quiet",
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	f.sessions.Disconnect("quiet")
	assert.Empty(t, drainEvents(sess))
}

func TestConnectStreamsEndpointEvent(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("X-Client-Id", "sse-client")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	eventLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: endpoint\n", eventLine)

	dataLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, dataLine, "/mcp/messages?clientId=sse-client")
}

func TestBareSSEStreamsPushedEvents(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/mcp/sse", nil)
	require.NoError(t, err)
	req.Header.Set("X-Client-Id", "stream-client")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The session registers asynchronously with the handler goroutine.
	require.Eventually(t, func() bool {
		return f.sessions.Len() == 1
	}, time.Second, 10*time.Millisecond)

	f.sessions.SendToClient("stream-client", "message", map[string]any{"hello": "world"})

	reader := bufio.NewReader(resp.Body)
	eventLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: message\n", eventLine)

	dataLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, dataLine, `"hello":"world"`)
}

func drainEvents(sess *session.Session) []session.Event {
	events := make([]session.Event, 0)
	for ev := range sess.Events() {
		events = append(events, ev)
	}
	return events
}
