package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/notion-assistant/internal/api"
	"github.com/dileep-u-k/notion-assistant/internal/llm"
	"github.com/dileep-u-k/notion-assistant/internal/memory"
	"github.com/dileep-u-k/notion-assistant/internal/notion"
	"github.com/dileep-u-k/notion-assistant/internal/notion/notiontest"
	"github.com/dileep-u-k/notion-assistant/internal/tools"
)

// scriptedModel answers each Generate call with the next step of its script. The last
// step repeats once the script is exhausted.
type scriptedModel struct {
	mu    sync.Mutex
	steps []func(messages []llm.Message) (*llm.GenerationResult, error)
	calls int
	seen  [][]llm.Message
}

func (m *scriptedModel) Generate(ctx context.Context, messages []llm.Message, _ *llm.GenerationConfig, _ []tools.Tool) (*llm.GenerationResult, error) {
	m.mu.Lock()
	step := m.steps[min(m.calls, len(m.steps)-1)]
	m.calls++
	m.seen = append(m.seen, append([]llm.Message(nil), messages...))
	m.mu.Unlock()
	return step(messages)
}

func reply(text string) func([]llm.Message) (*llm.GenerationResult, error) {
	return func([]llm.Message) (*llm.GenerationResult, error) {
		return &llm.GenerationResult{Content: text, Usage: api.Usage{TotalTokens: 10}}, nil
	}
}

func callTools(calls ...*tools.ToolCall) func([]llm.Message) (*llm.GenerationResult, error) {
	return func([]llm.Message) (*llm.GenerationResult, error) {
		return &llm.GenerationResult{ToolCalls: calls, Usage: api.Usage{TotalTokens: 5}}, nil
	}
}

func toolCall(id, name, args string) *tools.ToolCall {
	return &tools.ToolCall{
		ID:       id,
		Type:     tools.ToolTypeFunction,
		Function: tools.ToolCallFunction{Name: name, Arguments: args},
	}
}

// recordingMemory is an in-process Memory.
type recordingMemory struct {
	mu       sync.Mutex
	recalled []memory.Turn
	stored   []memory.Turn
}

func (m *recordingMemory) Retrieve(context.Context, string, string) []memory.Turn {
	return m.recalled
}

func (m *recordingMemory) Store(_ context.Context, _ string, t memory.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, t)
	return nil
}

func (m *recordingMemory) roles() []memory.Role {
	var roles []memory.Role
	for _, t := range m.stored {
		roles = append(roles, t.Role)
	}
	return roles
}

// funcTool is a tool backed by a function.
type funcTool struct {
	name string
	fn   func(ctx context.Context, args tools.Arguments) (any, error)
}

func (f *funcTool) Definition() tools.Tool {
	return tools.NewFunctionTool(f.name, "test tool", tools.JSONSchema{
		Type:       "object",
		Properties: map[string]*tools.JSONSchema{"query": {Type: "string"}},
	})
}

func (f *funcTool) Execute(ctx context.Context, args tools.Arguments) (any, error) {
	return f.fn(ctx, args)
}

func newRegistry(t *testing.T, ts ...tools.ToolExecutor) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, tool := range ts {
		require.NoError(t, r.Register(tool))
	}
	return r
}

func newNotionRegistry(t *testing.T, token string) (*tools.Registry, *notiontest.Server, *notion.Client) {
	t.Helper()
	srv := notiontest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddDatabase("abc123", "Tasks", map[string]string{"Name": "title", "Done": "checkbox"})

	client, err := notion.NewClient(token, notion.WithBaseURL(srv.URL), notion.WithRetry(1, time.Millisecond, time.Millisecond))
	require.NoError(t, err)
	r := tools.NewRegistry()
	require.NoError(t, tools.RegisterNotionTools(r, client))
	return r, srv, client
}

func newOrchestrator(model llm.LLMClient, d Dispatcher, mem Memory, opts Options) *Orchestrator {
	return New(model, d, mem, zerolog.Nop(), opts)
}

func TestAlwaysToolModelFailsAfterExactlyMaxRounds(t *testing.T) {
	var executed int
	var mu sync.Mutex
	reg := newRegistry(t, &funcTool{name: "search", fn: func(context.Context, tools.Arguments) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		executed++
		return []string{}, nil
	}})
	model := &scriptedModel{steps: []func([]llm.Message) (*llm.GenerationResult, error){
		callTools(toolCall("call", "search", `{"query":"groceries"}`)),
	}}
	mem := &recordingMemory{}

	out := newOrchestrator(model, reg, mem, Options{MaxRounds: 5}).Handle(context.Background(), "user_ada", "find my groceries")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, MsgBudgetExceeded, out.Reply)
	var budget *BudgetExceededError
	require.ErrorAs(t, out.Err, &budget)
	assert.Equal(t, 5, budget.MaxRounds)
	assert.Equal(t, 5, out.Rounds)
	assert.Equal(t, 5, out.ModelCalls)
	assert.Equal(t, 5, model.calls)
	assert.Equal(t, 5, executed)
	assert.Equal(t, 25, out.Usage.TotalTokens)

	roles := mem.roles()
	require.Len(t, roles, 6, "user turn plus five tool turns are still offered to memory")
	assert.Equal(t, memory.RoleUser, roles[0])
	for _, r := range roles[1:] {
		assert.Equal(t, memory.RoleTool, r)
	}
}

func TestBuyMilkEndToEnd(t *testing.T) {
	reg, srv, client := newNotionRegistry(t, notiontest.Token)
	mem := &recordingMemory{}

	model := &scriptedModel{steps: []func([]llm.Message) (*llm.GenerationResult, error){
		callTools(toolCall("call_1", "create_page", `{"database_id":"abc123","properties":{"Name":"Buy milk"}}`)),
		func(messages []llm.Message) (*llm.GenerationResult, error) {
			last := messages[len(messages)-1]
			if last.Role != llm.RoleTool || last.ToolCallID != "call_1" {
				return nil, fmt.Errorf("expected the tool result last, got %+v", last)
			}
			var res struct {
				Success bool `json:"success"`
				Result  struct {
					PageID string `json:"page_id"`
					Title  string `json:"title"`
				} `json:"result"`
			}
			if err := json.Unmarshal([]byte(last.Content), &res); err != nil || !res.Success || res.Result.PageID == "" {
				return nil, fmt.Errorf("unexpected tool result %s", last.Content)
			}
			return &llm.GenerationResult{Content: "I've added 'Buy milk' to your tasks."}, nil
		},
	}}

	out := newOrchestrator(model, reg, mem, Options{}).Handle(context.Background(), "user_ada", "Add a task called 'Buy milk' to my tasks database")

	require.Equal(t, StateDone, out.State, out.Err)
	assert.Equal(t, "I've added 'Buy milk' to your tasks.", out.Reply)
	assert.Equal(t, 1, out.Rounds)
	assert.Equal(t, 2, out.ModelCalls)
	assert.Equal(t, []string{"create_page"}, out.ToolCalls)

	pages, err := client.QueryDatabase(context.Background(), "abc123", notion.QueryParams{})
	require.NoError(t, err)
	require.Len(t, pages.Results, 1)
	assert.Equal(t, "Buy milk", pages.Results[0].GetTitle())
	_, ok := srv.Page(pages.Results[0].ID)
	assert.True(t, ok)

	assert.Equal(t, []memory.Role{memory.RoleUser, memory.RoleTool, memory.RoleAssistant}, mem.roles())
	assert.Equal(t, "Add a task called 'Buy milk' to my tasks database", mem.stored[0].Content)
	assert.Equal(t, "create_page", mem.stored[1].ToolName)
	assert.Equal(t, "call_1", mem.stored[1].ToolCallID)
	assert.Equal(t, out.Reply, mem.stored[2].Content)
}

func TestInvalidNotionCredentialGivesFixedMessage(t *testing.T) {
	reg, srv, _ := newNotionRegistry(t, "secret_wrong")
	mem := &recordingMemory{}
	model := &scriptedModel{steps: []func([]llm.Message) (*llm.GenerationResult, error){
		callTools(toolCall("call_1", "search", `{"query":"tasks"}`)),
		reply("should not be asked again"),
	}}

	out := newOrchestrator(model, reg, mem, Options{}).Handle(context.Background(), "user_ada", "what is in my tasks?")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, MsgNotionAuth, out.Reply)
	var auth *notion.AuthError
	assert.ErrorAs(t, out.Err, &auth)
	assert.EqualValues(t, 1, srv.Hits(), "auth failures are not retried")
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, []memory.Role{memory.RoleUser, memory.RoleTool}, mem.roles())
}

func TestLocalToolErrorsAreReportedToTheModel(t *testing.T) {
	reg, srv, _ := newNotionRegistry(t, notiontest.Token)
	model := &scriptedModel{steps: []func([]llm.Message) (*llm.GenerationResult, error){
		callTools(
			toolCall("call_1", "delete_everything", `{}`),
			toolCall("call_2", "create_page", `{"database_id":"abc123"}`),
			toolCall("call_3", "search", `{"query":`),
		),
		reply("Sorry, I need the task name."),
	}}

	out := newOrchestrator(model, reg, &recordingMemory{}, Options{}).Handle(context.Background(), "user_ada", "add a task")

	require.Equal(t, StateDone, out.State)
	assert.EqualValues(t, 0, srv.Hits())

	second := model.seen[1]
	toolMsgs := second[len(second)-3:]
	kinds := make([]string, 0, 3)
	for i, m := range toolMsgs {
		assert.Equal(t, llm.RoleTool, m.Role)
		assert.Equal(t, fmt.Sprintf("call_%d", i+1), m.ToolCallID, "results keep request order")
		var res tools.Result
		require.NoError(t, json.Unmarshal([]byte(m.Content), &res))
		assert.False(t, res.Success)
		kinds = append(kinds, string(res.Kind))
	}
	assert.Equal(t, []string{"unknown_tool", "invalid_arguments", "invalid_arguments"}, kinds)
}

func TestNotFoundIsRecoverable(t *testing.T) {
	reg, _, _ := newNotionRegistry(t, notiontest.Token)
	model := &scriptedModel{steps: []func([]llm.Message) (*llm.GenerationResult, error){
		callTools(toolCall("call_1", "get_page", `{"page_id":"missing"}`)),
		func(messages []llm.Message) (*llm.GenerationResult, error) {
			last := messages[len(messages)-1]
			if !strings.Contains(last.Content, `"error_kind":"not_found"`) {
				return nil, errors.New("expected a not_found tool result")
			}
			return &llm.GenerationResult{Content: "I couldn't find that page."}, nil
		},
	}}

	out := newOrchestrator(model, reg, &recordingMemory{}, Options{}).Handle(context.Background(), "user_ada", "read page missing")
	require.Equal(t, StateDone, out.State, out.Err)
	assert.Equal(t, "I couldn't find that page.", out.Reply)
}

func TestCancellationLetsInFlightToolsFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var finished bool
	reg := newRegistry(t, &funcTool{name: "search", fn: func(toolCtx context.Context, _ tools.Arguments) (any, error) {
		cancel()
		select {
		case <-toolCtx.Done():
			return nil, toolCtx.Err()
		case <-time.After(10 * time.Millisecond):
		}
		finished = true
		return "ok", nil
	}})
	model := &scriptedModel{steps: []func([]llm.Message) (*llm.GenerationResult, error){
		callTools(toolCall("call_1", "search", `{}`)),
		reply("never"),
	}}
	mem := &recordingMemory{}

	out := newOrchestrator(model, reg, mem, Options{}).Handle(ctx, "user_ada", "search")

	assert.True(t, finished)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, MsgCancelled, out.Reply)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, 1, model.calls, "no round starts after cancellation")
	assert.Equal(t, []memory.Role{memory.RoleUser, memory.RoleTool}, mem.roles())
}

func TestModelTimeout(t *testing.T) {
	blocking := llmFunc(func(ctx context.Context) (*llm.GenerationResult, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("groq request aborted: %w", ctx.Err())
	})

	out := newOrchestrator(blocking, newRegistry(t), &recordingMemory{}, Options{ModelTimeout: 20 * time.Millisecond}).
		Handle(context.Background(), "user_ada", "hello")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, MsgModelTimeout, out.Reply)
}

func TestModelUnreachable(t *testing.T) {
	failing := llmFunc(func(context.Context) (*llm.GenerationResult, error) {
		return nil, fmt.Errorf("%w: dial tcp: connection refused", llm.ErrUnavailable)
	})
	mem := &recordingMemory{}

	out := newOrchestrator(failing, newRegistry(t), mem, Options{}).Handle(context.Background(), "user_ada", "hello")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, MsgModelUnreachable, out.Reply)
	assert.NotContains(t, out.Reply, "dial tcp")
	assert.Equal(t, []memory.Role{memory.RoleUser}, mem.roles())
}

func TestMemoriesAndInstructionsReachTheSystemPrompt(t *testing.T) {
	mem := &recordingMemory{recalled: []memory.Turn{
		memory.NewTurn(memory.RoleUser, "My tasks database is abc123"),
		memory.NewToolTurn("search", "c", `{"success":true}`),
	}}
	model := &scriptedModel{steps: []func([]llm.Message) (*llm.GenerationResult, error){reply("Hi Ada")}}

	out := newOrchestrator(model, newRegistry(t), mem, Options{Instructions: []string{"Always answer in English."}}).
		Handle(context.Background(), "user_ada", "hello")

	require.Equal(t, StateDone, out.State)
	system := model.seen[0][0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "- Always answer in English.")
	assert.Contains(t, system.Content, "- [user] My tasks database is abc123")
	assert.Contains(t, system.Content, "- [tool search]")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hello"}, model.seen[0][1])
}

func TestEmptyReplyIsReplaced(t *testing.T) {
	model := &scriptedModel{steps: []func([]llm.Message) (*llm.GenerationResult, error){reply("")}}
	out := newOrchestrator(model, newRegistry(t), &recordingMemory{}, Options{}).Handle(context.Background(), "user_ada", "hmm")
	assert.Equal(t, StateDone, out.State)
	assert.NotEmpty(t, out.Reply)
}

// llmFunc adapts a function to llm.LLMClient.
type llmFunc func(ctx context.Context) (*llm.GenerationResult, error)

func (f llmFunc) Generate(ctx context.Context, _ []llm.Message, _ *llm.GenerationConfig, _ []tools.Tool) (*llm.GenerationResult, error) {
	return f(ctx)
}
