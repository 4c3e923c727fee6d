// In file: internal/llm/client.go
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dileep-u-k/notion-assistant/internal/api"
	"github.com/dileep-u-k/notion-assistant/internal/config"
	"github.com/dileep-u-k/notion-assistant/internal/tools"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name is the tool that produced a RoleTool message. Gemini matches results by name.
	Name       string            `json:"name,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolCalls  []*tools.ToolCall `json:"tool_calls,omitempty"`
}

// GenerationConfig holds the parameters that control the model's generation behavior.
type GenerationConfig struct {
	// The model to use (e.g., "llama3-8b-8192", "gemini-1.5-flash").
	Model string
	// Controls randomness. A pointer distinguishes 0.0 from unset.
	Temperature *float32
	// The maximum number of tokens to generate in the response.
	MaxTokens int
	// Nucleus sampling, an alternative to temperature.
	TopP *float32
}

// GenerationResult holds the complete output of one model call.
type GenerationResult struct {
	// The generated text content from the model.
	Content string
	// Tool calls requested by the model. A model may request several in one response.
	ToolCalls []*tools.ToolCall
	// Token usage statistics for the generation request.
	Usage api.Usage
}

// WantsTools reports whether the model asked for at least one tool call.
func (r *GenerationResult) WantsTools() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// =================================================================================
// LLM Client Interface
// =================================================================================

// LLMClient is the interface every provider client implements.
type LLMClient interface {
	// Generate sends the full conversation and the tool descriptors and returns either
	// a reply or the tool calls the model wants executed.
	Generate(
		ctx context.Context,
		messages []Message,
		config *GenerationConfig,
		availableTools []tools.Tool,
	) (*GenerationResult, error)
}

// ErrUnavailable marks failures to reach the model endpoint at all (network errors or
// repeated 5xx responses) as opposed to requests the provider rejected.
var ErrUnavailable = errors.New("language model endpoint unavailable")

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d, body: %s", e.Provider, e.StatusCode, e.Body)
}

// NewClient builds the client for the configured provider.
func NewClient(cfg *config.Config, log zerolog.Logger) (LLMClient, error) {
	switch cfg.LLMProvider {
	case config.ProviderGroq, config.ProviderOpenAI, config.ProviderMistral:
		baseURL := cfg.LLMBaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL(cfg.LLMProvider)
		}
		return NewOpenAIClient(cfg.ProviderAPIKey(),
			WithProvider(cfg.LLMProvider),
			WithBaseURL(baseURL),
			WithHTTPTimeout(cfg.LLMTimeout),
		)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.LLMBaseURL, cfg.LLMTimeout)
	case config.ProviderGemini:
		return NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.LLMModel, log)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case config.ProviderOpenAI:
		return openAIBaseURL
	case config.ProviderMistral:
		return mistralBaseURL
	default:
		return groqBaseURL
	}
}

// ConfigFrom derives the per-request generation settings from the configuration.
func ConfigFrom(cfg *config.Config) *GenerationConfig {
	temp := cfg.Temperature
	return &GenerationConfig{
		Model:       cfg.LLMModel,
		Temperature: &temp,
		MaxTokens:   cfg.MaxTokens,
	}
}
