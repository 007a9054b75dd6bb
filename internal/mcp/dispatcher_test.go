package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitialize(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := handle(t, d, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":{"name":"cli"}}}`)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `1`, string(resp.ID))

	var result initializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, ServerName, result.ServerInfo.Name)
	assert.Equal(t, ServerVersion, result.ServerInfo.Version)
	assert.Contains(t, result.Capabilities, "tools")
}

func TestHandleErrors(t *testing.T) {
	d, _ := newTestDispatcher(t)

	tests := []struct {
		name     string
		raw      string
		wantCode int
		wantID   string
	}{
		{
			name:     "missing jsonrpc",
			raw:      `{"id":7,"method":"ping"}`,
			wantCode: CodeInvalidRequest,
			wantID:   `7`,
		},
		{
			name:     "wrong jsonrpc version",
			raw:      `{"jsonrpc":"1.0","id":"a","method":"ping"}`,
			wantCode: CodeInvalidRequest,
			wantID:   `"a"`,
		},
		{
			name:     "missing method",
			raw:      `{"jsonrpc":"2.0","id":2}`,
			wantCode: CodeInvalidRequest,
			wantID:   `2`,
		},
		{
			name:     "method of wrong type",
			raw:      `{"jsonrpc":"2.0","id":3,"method":5}`,
			wantCode: CodeInvalidRequest,
			wantID:   `3`,
		},
		{
			name:     "not an object",
			raw:      `42`,
			wantCode: CodeInvalidRequest,
			wantID:   `null`,
		},
		{
			name:     "unknown method",
			raw:      `{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
			wantCode: CodeMethodNotFound,
			wantID:   `4`,
		},
		{
			name:     "tools/call without name",
			raw:      `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{}}`,
			wantCode: CodeInvalidParams,
			wantID:   `5`,
		},
		{
			name:     "tools/call with non-object params",
			raw:      `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":[1]}`,
			wantCode: CodeInvalidParams,
			wantID:   `6`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handle(t, d, tt.raw)
			require.NotNil(t, resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)

			encoded, err := json.Marshal(resp)
			require.NoError(t, err)
			var envelope struct {
				ID json.RawMessage `json:"id"`
			}
			require.NoError(t, json.Unmarshal(encoded, &envelope))
			assert.JSONEq(t, tt.wantID, string(envelope.ID))
		})
	}
}

func TestHandlerErrorBecomesInternalError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	require.NoError(t, d.router.AddRoute("boom", func(context.Context, json.RawMessage) (interface{}, error) {
		return nil, errors.New("kaboom")
	}))

	resp := handle(t, d, `{"jsonrpc":"2.0","id":7,"method":"boom"}`)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Equal(t, "Internal error: kaboom", resp.Error.Message)
	assert.JSONEq(t, `7`, string(resp.ID))
	assert.Nil(t, resp.Result)

	assert.Nil(t, handle(t, d, `{"jsonrpc":"2.0","method":"boom"}`))
}

func TestNotificationsAreNeverAnswered(t *testing.T) {
	d, _ := newTestDispatcher(t)

	for _, raw := range []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"initialized","id":null}`,
		`{"jsonrpc":"2.0","method":"no/such/method"}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{}}`,
		`{"method":"ping"}`,
	} {
		req, resp := d.Handle(context.Background(), json.RawMessage(raw))
		require.NotNil(t, req, raw)
		assert.True(t, req.IsNotification(), raw)
		assert.Nil(t, resp, raw)
	}
}

func TestPingAndShutdown(t *testing.T) {
	d, _ := newTestDispatcher(t)

	for _, method := range []string{"ping", "shutdown"} {
		resp := handle(t, d, `{"jsonrpc":"2.0","id":1,"method":"`+method+`"}`)
		require.NotNil(t, resp)
		assert.Nil(t, resp.Error)
		assert.JSONEq(t, `{}`, string(resp.Result))
	}
}

func TestToolsList(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := handle(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var result struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.True(t, json.Valid(tool.InputSchema))
	}
	assert.Equal(t, []string{"search_prompts", "get_prompt_names", "get_prompt_by_title", "list_prompts_by_tag"}, names)
}

func TestRouter(t *testing.T) {
	r := NewRouter(zap.NewNop())
	noop := func(context.Context, json.RawMessage) (interface{}, error) { return nil, nil }

	require.NoError(t, r.AddRoute("b", noop))
	require.NoError(t, r.AddRoute("a", noop))
	assert.Error(t, r.AddRoute("a", noop))
	assert.Error(t, r.AddRoute("", noop))
	assert.Error(t, r.AddRoute("c", nil))
	assert.Equal(t, []string{"a", "b"}, r.Methods())

	_, err := r.Route(context.Background(), "missing", nil)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func TestSplitBatch(t *testing.T) {
	msgs, batch, err := splitBatch([]byte(` [{"a":1}, 2] `))
	require.Nil(t, err)
	assert.True(t, batch)
	assert.Len(t, msgs, 2)

	msgs, batch, err = splitBatch([]byte(`{"a":1}`))
	require.Nil(t, err)
	assert.False(t, batch)
	assert.Len(t, msgs, 1)

	for _, bad := range []string{``, `{`, `[1,`, `not json`} {
		_, _, err = splitBatch([]byte(bad))
		require.NotNil(t, err, bad)
		assert.Equal(t, CodeParseError, err.Code)
	}
}
