package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*gin.Engine, SessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d, _ := newTestDispatcher(t)
	sessions := NewMemorySessionStore(time.Hour, 10)
	srv := NewServer(d, sessions, ServerOptions{PingInterval: time.Hour}, zap.NewNop())

	r := gin.New()
	srv.RegisterRoutes(r)
	return r, sessions
}

func post(r http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// sseEvents parses a replayed event stream into its events.
func sseEvents(body string) []map[string]string {
	var events []map[string]string
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		ev := map[string]string{}
		for _, line := range strings.Split(block, "\n") {
			if key, value, ok := strings.Cut(line, ":"); ok {
				ev[key] = value
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestPostSingleRequest(t *testing.T) {
	r, sessions := newTestServer(t)

	w := post(r, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":{"name":"cli"}}}`,
		map[string]string{"Accept": "application/json, text/event-stream"})
	require.Equal(t, http.StatusOK, w.Code)

	sessionID := w.Header().Get(HeaderSessionID)
	require.NotEmpty(t, sessionID)
	ok, err := sessions.Exists(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, ok)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, Version, resp.JSONRPC)
	assert.Nil(t, resp.Error)

	// A client that already holds a session keeps it.
	w = post(r, `{"jsonrpc":"2.0","id":2,"method":"initialize"}`, map[string]string{HeaderSessionID: sessionID})
	assert.Equal(t, sessionID, w.Header().Get(HeaderSessionID))
	n, err := sessions.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostBatch(t *testing.T) {
	r, _ := newTestServer(t)

	body := `[
		{"jsonrpc":"2.0","id":1,"method":"ping"},
		{"jsonrpc":"2.0","method":"notifications/initialized"},
		7,
		{"jsonrpc":"2.0","id":2,"method":"nope"}
	]`
	w := post(r, body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var responses []Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responses))
	require.Len(t, responses, 3)
	assert.Nil(t, responses[0].Error)
	assert.Equal(t, CodeInvalidRequest, responses[1].Error.Code)
	assert.Equal(t, "null", string(responses[1].ID))
	assert.Equal(t, CodeMethodNotFound, responses[2].Error.Code)
}

func TestPostStatusCodes(t *testing.T) {
	r, _ := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		headers  map[string]string
		wantCode int
		wantBody string
	}{
		{
			name:     "forbidden origin",
			body:     `{"jsonrpc":"2.0","id":1,"method":"ping"}`,
			headers:  map[string]string{"Origin": "https://evil.example"},
			wantCode: http.StatusForbidden,
			wantBody: `{"error":"Forbidden origin"}`,
		},
		{
			name:     "unsupported accept",
			body:     `{"jsonrpc":"2.0","id":1,"method":"ping"}`,
			headers:  map[string]string{"Accept": "text/html"},
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Accept header must include application/json or text/event-stream"}`,
		},
		{
			name:     "parse error",
			body:     `{"jsonrpc":`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`,
		},
		{
			name:     "only notifications",
			body:     `[{"jsonrpc":"2.0","method":"initialized"},{"jsonrpc":"2.0","method":"tools/call","params":{"name":"nope"}}]`,
			wantCode: http.StatusAccepted,
		},
		{
			name:     "empty batch",
			body:     `[]`,
			wantCode: http.StatusAccepted,
		},
		{
			name:     "allowed origin",
			body:     `{"jsonrpc":"2.0","id":1,"method":"ping"}`,
			headers:  map[string]string{"Origin": "http://localhost:3000", "Accept": "*/*"},
			wantCode: http.StatusOK,
			wantBody: `{"jsonrpc":"2.0","id":1,"result":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, tt.body, tt.headers)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			} else {
				assert.Empty(t, w.Body.String())
			}
		})
	}
}

func TestPostEventStreamReplay(t *testing.T) {
	r, _ := newTestServer(t)

	w := post(r, `[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","id":2,"method":"tools/list"}]`,
		map[string]string{"Accept": "text/event-stream, application/json"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := sseEvents(w.Body.String())
	require.Len(t, events, 2)
	for i, ev := range events {
		assert.Equal(t, "message", ev["event"])
		assert.NotEmpty(t, ev["id"])

		var resp Response
		require.NoError(t, json.Unmarshal([]byte(ev["data"]), &resp))
		assert.JSONEq(t, []string{"1", "2"}[i], string(resp.ID))
	}
}

func TestStream(t *testing.T) {
	r, sessions := newTestServer(t)
	require.NoError(t, sessions.Create(context.Background(), Session{ID: "live"}))

	t.Run("requires event-stream accept", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mcp", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set(HeaderSessionID, "gone")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ping ids continue from last event id", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil).WithContext(ctx)
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set(HeaderSessionID, "live")
		req.Header.Set("Last-Event-ID", "41")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		events := sseEvents(w.Body.String())
		require.Len(t, events, 1)
		assert.Equal(t, "ping", events[0]["event"])
		assert.Equal(t, "42", events[0]["id"])
		assert.Contains(t, events[0]["data"], `"type":"ping"`)
	})
}

func TestDeleteSession(t *testing.T) {
	r, sessions := newTestServer(t)
	require.NoError(t, sessions.Create(context.Background(), Session{ID: "s1"}))

	del := func(id string) int {
		req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
		if id != "" {
			req.Header.Set(HeaderSessionID, id)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, del(""))
	assert.Equal(t, http.StatusNoContent, del("s1"))
	assert.Equal(t, http.StatusNotFound, del("s1"))
}

func TestInfoAndHealth(t *testing.T) {
	r, sessions := newTestServer(t)
	require.NoError(t, sessions.Create(context.Background(), Session{ID: "s1"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, ProtocolVersion, info["protocol_version"])
	assert.EqualValues(t, 4, info["tools_count"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","transport":"streamable-http","sessions":1}`, w.Body.String())
}

func TestPrefersEventStream(t *testing.T) {
	assert.True(t, prefersEventStream("text/event-stream"))
	assert.True(t, prefersEventStream("text/event-stream, application/json"))
	assert.False(t, prefersEventStream("application/json, text/event-stream"))
	assert.False(t, prefersEventStream("*/*"))
	assert.False(t, prefersEventStream(""))
}

func TestOriginAllowed(t *testing.T) {
	srv := NewServer(nil, nil, ServerOptions{}, zap.NewNop())

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost", true},
		{"http://localhost:3000", true},
		{"https://127.0.0.1:8443", true},
		{"app://obsidian.md", true},
		{"http://localhost.evil.com", false},
		{"http://127.0.0.1.nip.io", false},
		{"https://evil.example", false},
		{"ftp://localhost", false},
		{"null", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, srv.originAllowed(tt.origin))
		})
	}

	pinned := NewServer(nil, nil, ServerOptions{AllowedOrigins: []string{"https://tools.example.com:8443"}}, zap.NewNop())
	assert.True(t, pinned.originAllowed("https://tools.example.com:8443"))
	assert.False(t, pinned.originAllowed("https://tools.example.com"))
	assert.False(t, pinned.originAllowed("http://tools.example.com:8443"))
}

func TestPostBodyTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d, _ := newTestDispatcher(t)
	srv := NewServer(d, NewMemorySessionStore(time.Hour, 10), ServerOptions{PingInterval: time.Hour, MaxBodyBytes: 64}, zap.NewNop())
	r := gin.New()
	srv.RegisterRoutes(r)

	body := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{"pad":"` + strings.Repeat("x", 128) + `"}}`
	w := post(r, body, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "exceeds 64 bytes")

	assert.Equal(t, http.StatusOK, post(r, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, nil).Code)
}
