// In file: internal/llm/gemini_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/dileep-u-k/notion-assistant/internal/tools"
)

// GeminiClient is the client for Google's Gemini models.
type GeminiClient struct {
	client  *genai.Client
	modelID string
	log     zerolog.Logger
}

var _ LLMClient = (*GeminiClient)(nil)

// NewGeminiClient creates a client for one model. Extra client options (endpoint,
// HTTP client) are passed through to the SDK.
func NewGeminiClient(ctx context.Context, apiKey, modelID string, log zerolog.Logger, opts ...option.ClientOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelID: modelID, log: log.With().Str("provider", "gemini").Logger()}, nil
}

// Close releases the SDK's connections.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Generate performs a blocking request to the Gemini API. A fresh model handle is used
// per call so concurrent conversations do not share generation settings.
func (c *GeminiClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	modelID := c.modelID
	if config != nil && config.Model != "" {
		modelID = config.Model
	}
	model := c.client.GenerativeModel(modelID)
	configureModel(model, config, availableTools)

	system, contents := toGeminiContents(messages)
	if system != nil {
		model.SystemInstruction = system
	}
	if len(contents) == 0 {
		return nil, errors.New("gemini request needs at least one user message")
	}

	chat := model.StartChat()
	chat.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("gemini request aborted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: gemini API call failed: %w", ErrUnavailable, err)
	}
	return parseGeminiResponse(ctx, c.log, model, resp)
}

// configureModel applies generation settings using the SDK's setters.
func configureModel(model *genai.GenerativeModel, config *GenerationConfig, availableTools []tools.Tool) {
	model.SetMaxOutputTokens(defaultMaxOutput)
	if config != nil {
		if config.Temperature != nil {
			model.SetTemperature(*config.Temperature)
		}
		if config.TopP != nil {
			model.SetTopP(*config.TopP)
		}
		if config.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(config.MaxTokens))
		}
	}

	if len(availableTools) > 0 {
		model.Tools = toGeminiTools(availableTools)
	}
}

// toGeminiTools converts the tool descriptors to the SDK's format. All declarations go
// into one genai.Tool.
func toGeminiTools(toolsToConvert []tools.Tool) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(toolsToConvert))
	for _, t := range toolsToConvert {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertSchema converts our JSONSchema to the SDK's schema type.
func convertSchema(s tools.JSONSchema) *genai.Schema {
	genaiSchema := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	switch s.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	}
	if s.Properties != nil {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			genaiSchema.Properties[k] = convertSchema(*v)
		}
	}
	if s.Items != nil {
		genaiSchema.Items = convertSchema(*s.Items)
	}
	return genaiSchema
}

// toGeminiContents converts the conversation to Gemini contents. System messages become
// the system instruction; consecutive messages with the same Gemini role are merged, so
// the results of one round of tool calls travel as a single content.
func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, msg := range messages {
		var role string
		var parts []genai.Part

		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
			continue
		case RoleAssistant:
			role = "model"
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{
					Name: tc.Function.Name,
					Args: decodeObject(tc.Function.Arguments, "arguments"),
				})
			}
		case RoleTool:
			role = "user"
			parts = append(parts, genai.FunctionResponse{
				Name:     msg.Name,
				Response: decodeObject(msg.Content, "result"),
			})
		default:
			role = "user"
			parts = append(parts, genai.Text(msg.Content))
		}
		if len(parts) == 0 {
			continue
		}

		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	if len(system) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}, contents
}

// decodeObject parses a JSON object, wrapping anything else under key.
func decodeObject(raw, key string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{key: raw}
}

// parseGeminiResponse converts a Gemini API response into our internal GenerationResult.
func parseGeminiResponse(
	ctx context.Context,
	log zerolog.Logger,
	model *genai.GenerativeModel,
	resp *genai.GenerateContentResponse,
) (*GenerationResult, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content returned from Gemini")
	}

	candidate := resp.Candidates[0]
	var contentBuilder strings.Builder
	var toolCalls []*tools.ToolCall

	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			contentBuilder.WriteString(string(v))
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				log.Warn().Err(err).Str("tool", v.Name).Msg("could not marshal tool call args")
				continue
			}
			toolCalls = append(toolCalls, &tools.ToolCall{
				ID:   "call_" + uuid.NewString(),
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      v.Name,
					Arguments: string(args),
				},
			})
		}
	}

	result := &GenerationResult{
		Content:   strings.TrimSpace(contentBuilder.String()),
		ToolCalls: toolCalls,
	}

	if resp.UsageMetadata != nil {
		result.Usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.Usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	// Some responses omit completion tokens; count them manually.
	if result.Usage.CompletionTokens == 0 && result.Content != "" {
		countResp, err := model.CountTokens(ctx, genai.Text(result.Content))
		if err != nil {
			log.Warn().Err(err).Msg("failed to count completion tokens")
		} else {
			result.Usage.CompletionTokens = int(countResp.TotalTokens)
			result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
		}
	}

	return result, nil
}
