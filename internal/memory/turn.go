// In file: internal/memory/turn.go

// Package memory stores and retrieves conversation turns in mem0 so the assistant can
// personalise replies across sessions. The service is an optional dependency: retrieval
// degrades to "no memories" and storage failures never fail a conversation.
package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	// RoleSystem marks reference material loaded from Notion rather than said by anyone.
	RoleSystem Role = "system"
)

// Turn is one entry of a conversation. ID is the turn's identity for deduplication.
type Turn struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	// Score is the relevance assigned by the memory service on retrieval.
	Score float64 `json:"score,omitempty"`
}

// NewTurn creates a turn with a fresh identity.
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolTurn creates a tool-result turn answering the given call.
func NewToolTurn(toolName, callID, content string) Turn {
	t := NewTurn(RoleTool, content)
	t.ToolName = toolName
	t.ToolCallID = callID
	return t
}

// ConversationID derives the memory namespace for a user's display name, e.g.
// "Ada Lovelace" becomes "user_ada_lovelace".
func ConversationID(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "user_anonymous"
	}
	return "user_" + strings.Join(strings.Fields(name), "_")
}
