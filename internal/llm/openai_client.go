// In file: internal/llm/openai_client.go
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

// openAIRequest defines the top-level structure of a chat completions call.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float32        `json:"temperature,omitempty"`
	TopP        *float32        `json:"top_p,omitempty"`
}

// openAIMessage represents a single message in a conversation.
type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []tools.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

// openAITool defines the structure for a tool that the API can use.
type openAITool struct {
	Type     string         `json:"type"`
	Function tools.Function `json:"function"`
}

// openAIResponse is the structure of a successful response from the API.
type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage api.Usage `json:"usage"`
}

// OpenAIClient talks to any OpenAI-compatible chat completions API. Groq, OpenAI and
// Mistral differ only in base URL and key.
type OpenAIClient struct {
	poster
	apiKey  string
	baseURL string
}

// Statically verify that OpenAIClient implements the LLMClient interface.
var _ LLMClient = (*OpenAIClient)(nil)

// OpenAIOption customizes an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithProvider sets the provider name used in errors and metrics.
func WithProvider(name string) OpenAIOption {
	return func(c *OpenAIClient) { c.provider = name }
}

// WithBaseURL points the client at a different OpenAI-compatible API.
func WithBaseURL(u string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPTimeout bounds every HTTP attempt.
func WithHTTPTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetryDelay sets the initial backoff between attempts.
func WithRetryDelay(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) { c.retryDelay = d }
}

// NewOpenAIClient creates a client. Without options it targets Groq.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("LLM API key cannot be empty")
	}
	c := &OpenAIClient{
		poster:  newPoster("groq"),
		apiKey:  apiKey,
		baseURL: groqBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate performs a blocking chat completions request.
func (c *OpenAIClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	payload, err := c.buildRequestPayload(messages, config, availableTools)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request payload: %w", c.provider, err)
	}

	respBody, err := c.post(ctx, c.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, payload)
	if err != nil {
		return nil, err
	}

	return parseOpenAIResponse(respBody)
}

// buildRequestPayload constructs the JSON body for the API call.
func (c *OpenAIClient) buildRequestPayload(messages []Message, config *GenerationConfig, availableTools []tools.Tool) ([]byte, error) {
	if config == nil {
		config = &GenerationConfig{}
	}
	req := openAIRequest{
		Model:    config.Model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(availableTools),
	}

	if config.MaxTokens > 0 {
		req.MaxTokens = config.MaxTokens
	}
	if config.Temperature != nil {
		req.Temperature = config.Temperature
	}
	if config.TopP != nil {
		req.TopP = config.TopP
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	return json.Marshal(req)
}

// toOpenAIMessages converts our internal message slice to the API format.
func toOpenAIMessages(messages []Message) []openAIMessage {
	openAIMsgs := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		m := openAIMessage{Role: string(msg.Role), Content: msg.Content}

		switch msg.Role {
		case RoleTool:
			m.ToolCallID = msg.ToolCallID
			m.Name = msg.Name
		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				m.ToolCalls = make([]tools.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					m.ToolCalls[i] = *tc
				}
			}
		}
		openAIMsgs = append(openAIMsgs, m)
	}
	return openAIMsgs
}

// toOpenAITools converts our internal tool slice to the API format.
func toOpenAITools(availableTools []tools.Tool) []openAITool {
	if len(availableTools) == 0 {
		return nil
	}
	openAITools := make([]openAITool, 0, len(availableTools))
	for _, tool := range availableTools {
		openAITools = append(openAITools, openAITool{
			Type:     tools.ToolTypeFunction,
			Function: tool.Function,
		})
	}
	return openAITools
}

// parseOpenAIResponse converts an API response to our internal GenerationResult.
func parseOpenAIResponse(body []byte) (*GenerationResult, error) {
	var openAIResp openAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat completion response: %w", err)
	}
	if len(openAIResp.Choices) == 0 {
		return nil, errors.New("no choices returned from the model")
	}

	choice := openAIResp.Choices[0]
	result := &GenerationResult{
		Content: strings.TrimSpace(choice.Message.Content),
		Usage:   openAIResp.Usage,
	}

	if len(choice.Message.ToolCalls) > 0 {
		result.ToolCalls = make([]*tools.ToolCall, 0, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			id := tc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			result.ToolCalls = append(result.ToolCalls, &tools.ToolCall{
				ID:   id,
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
	}

	return result, nil
}
