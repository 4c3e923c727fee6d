// In file: internal/api/types.go

// Package api holds the request and response types shared between the HTTP surface
// and the internal packages.
package api

// Usage is the token accounting reported by a language model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	// UserName identifies the conversation; it is normalized into a memory key.
	UserName string `json:"user_name"`
	Message  string `json:"message" binding:"required"`
}

// ChatResponse is what the chat endpoint returns. Reply is always user-presentable,
// including when State is FAILED.
type ChatResponse struct {
	Reply          string   `json:"reply"`
	State          string   `json:"state"`
	Rounds         int      `json:"rounds"`
	ToolCalls      []string `json:"tool_calls,omitempty"`
	ConversationID string   `json:"conversation_id"`
	Usage          Usage    `json:"usage"`
	LatencyMS      int64    `json:"latency_ms"`
}
