package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/notion-assistant/internal/tools"
)

func TestAnthropicRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "You manage Notion.", req.System)
		assert.Equal(t, defaultMaxOutput, req.MaxTokens)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "object", req.Tools[0].InputSchema.Type)

		require.Len(t, req.Messages, 3)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		assert.Equal(t, "tool_use", req.Messages[1].Content[0].Type)
		assert.JSONEq(t, `{"query":"x"}`, string(req.Messages[1].Content[0].Input))
		assert.Equal(t, "user", req.Messages[2].Role)
		require.Len(t, req.Messages[2].Content, 2, "tool results merged into one user message")
		assert.Equal(t, "toolu_1", req.Messages[2].Content[0].ToolUseID)
		assert.False(t, req.Messages[2].Content[0].IsError)
		assert.True(t, req.Messages[2].Content[1].IsError)

		_, _ = w.Write([]byte(`{
			"content":[{"type":"text","text":"Let me look."},{"type":"tool_use","id":"toolu_3","name":"get_page","input":{"page_id":"p1"}}],
			"stop_reason":"tool_use",
			"usage":{"input_tokens":30,"output_tokens":12}
		}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient("sk-ant", srv.URL+"/v1", time.Second)
	require.NoError(t, err)

	res, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "You manage Notion."},
		{Role: RoleUser, Content: "find x"},
		{Role: RoleAssistant, ToolCalls: []*tools.ToolCall{
			{ID: "toolu_1", Function: tools.ToolCallFunction{Name: "search", Arguments: `{"query":"x"}`}},
			{ID: "toolu_2", Function: tools.ToolCallFunction{Name: "search", Arguments: `not json`}},
		}},
		{Role: RoleTool, Name: "search", ToolCallID: "toolu_1", Content: `{"success":true,"result":[]}`},
		{Role: RoleTool, Name: "search", ToolCallID: "toolu_2", Content: `{"success":false,"error":"bad"}`},
	}, &GenerationConfig{Model: "claude-3-5-haiku-latest"}, []tools.Tool{
		tools.NewFunctionTool("search", "Search", tools.JSONSchema{Type: "object"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "Let me look.", res.Content)
	require.True(t, res.WantsTools())
	assert.Equal(t, "toolu_3", res.ToolCalls[0].ID)
	assert.JSONEq(t, `{"page_id":"p1"}`, res.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 42, res.Usage.TotalTokens)
}
