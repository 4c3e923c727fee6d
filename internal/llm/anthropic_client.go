// In file: internal/llm/anthropic_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dileep-u-k/notion-assistant/internal/api"
	"github.com/dileep-u-k/notion-assistant/internal/tools"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// --- API Data Structures ---

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	TopP        *float32           `json:"top_p,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema tools.JSONSchema `json:"input_schema"`
}

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

// --- Main Client ---

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	poster
	apiKey  string
	baseURL string
}

var _ LLMClient = (*AnthropicClient)(nil)

func NewAnthropicClient(apiKey, baseURL string, timeout time.Duration) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key cannot be empty")
	}
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	c := &AnthropicClient{
		poster:  newPoster("anthropic"),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c, nil
}

func (c *AnthropicClient) Generate(ctx context.Context, messages []Message, config *GenerationConfig, availableTools []tools.Tool) (*GenerationResult, error) {
	payload, err := buildAnthropicPayload(messages, config, availableTools)
	if err != nil {
		return nil, fmt.Errorf("failed to build anthropic request payload: %w", err)
	}
	respBody, err := c.post(ctx, c.baseURL+"/messages", map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}, payload)
	if err != nil {
		return nil, err
	}
	return parseAnthropicResponse(respBody)
}

// --- Helper Functions ---

func buildAnthropicPayload(messages []Message, config *GenerationConfig, availableTools []tools.Tool) ([]byte, error) {
	if config == nil {
		config = &GenerationConfig{}
	}
	systemPrompt, anthropicMsgs := toAnthropicMessages(messages)
	req := anthropicRequest{
		Model:       config.Model,
		Messages:    anthropicMsgs,
		System:      systemPrompt,
		Tools:       toAnthropicTools(availableTools),
		MaxTokens:   defaultMaxOutput,
		Temperature: config.Temperature,
		TopP:        config.TopP,
	}
	if config.MaxTokens > 0 {
		req.MaxTokens = config.MaxTokens
	}
	return json.Marshal(req)
}

// toAnthropicMessages splits off the system prompt and converts the rest to content
// blocks. Tool results travel as tool_result blocks in a user message; consecutive
// messages of the same role are merged, since the API requires alternating roles.
func toAnthropicMessages(messages []Message) (string, []anthropicMessage) {
	var system []string
	var out []anthropicMessage
	for _, msg := range messages {
		role := "user"
		var blocks []anthropicContentBlock

		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
			continue
		case RoleTool:
			blocks = append(blocks, anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
				IsError:   strings.Contains(msg.Content, `"success":false`),
			})
		case RoleAssistant:
			role = "assistant"
			if msg.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: input,
				})
			}
		default:
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: msg.Content})
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, anthropicMessage{Role: role, Content: blocks})
	}
	return strings.Join(system, "\n\n"), out
}

func toAnthropicTools(toolsToConvert []tools.Tool) []anthropicTool {
	if len(toolsToConvert) == 0 {
		return nil
	}
	anthropicTools := make([]anthropicTool, 0, len(toolsToConvert))
	for _, t := range toolsToConvert {
		anthropicTools = append(anthropicTools, anthropicTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	return anthropicTools
}

func parseAnthropicResponse(body []byte) (*GenerationResult, error) {
	var anthropicResp anthropicResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anthropic response: %w", err)
	}
	if len(anthropicResp.Content) == 0 {
		return nil, errors.New("no content returned from Anthropic")
	}
	var contentBuilder strings.Builder
	var toolCalls []*tools.ToolCall
	for _, block := range anthropicResp.Content {
		switch block.Type {
		case "text":
			contentBuilder.WriteString(block.Text)
		case "tool_use":
			toolCalls = append(toolCalls, &tools.ToolCall{
				ID:   block.ID,
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		}
	}
	usage := api.Usage{
		PromptTokens:     anthropicResp.Usage.InputTokens,
		CompletionTokens: anthropicResp.Usage.OutputTokens,
		TotalTokens:      anthropicResp.Usage.InputTokens + anthropicResp.Usage.OutputTokens,
	}

	return &GenerationResult{
		Content:   strings.TrimSpace(contentBuilder.String()),
		ToolCalls: toolCalls,
		Usage:     usage,
	}, nil
}
