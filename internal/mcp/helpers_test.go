package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/services"
	"github.com/qianh/prompt-tower/internal/storage"
)

// newTestService returns a prompt service over a temporary file store holding
// two enabled prompts and one disabled prompt.
func newTestService(t *testing.T) *services.PromptService {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(root, "prompts"), filepath.Join(root, "data"), zap.NewNop())
	require.NoError(t, err)

	svc := services.NewPromptService(store, services.NewTagRegistry(store, zap.NewNop()), zap.NewNop())
	ctx := context.Background()
	seed := []services.PromptInput{
		{Title: "Go Review", Content: "Review this code carefully", Tags: []string{"golang", "review"}, Remark: "daily"},
		{Title: "Writer", Content: "Help me go through this essay", Tags: []string{"writing"}},
		{Title: "Go Hidden", Content: "Never listed", Tags: []string{"golang"}, Status: models.PromptStatusDisabled},
	}
	for _, in := range seed {
		_, _, err := svc.Create(ctx, in, "alice")
		require.NoError(t, err)
	}
	return svc
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *services.PromptService) {
	t.Helper()
	svc := newTestService(t)
	d, err := NewDispatcher(svc, zap.NewNop())
	require.NoError(t, err)
	return d, svc
}

func handle(t *testing.T, d *Dispatcher, raw string) *Response {
	t.Helper()
	_, resp := d.Handle(context.Background(), json.RawMessage(raw))
	return resp
}

// callTool runs tools/call and decodes the tool result.
func callTool(t *testing.T, d *Dispatcher, name string, args interface{}) CallToolResult {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  json.RawMessage(params),
	})
	require.NoError(t, err)

	resp := handle(t, d, string(raw))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var result CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Content, 1)
	return result
}
