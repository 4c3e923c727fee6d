// In file: cmd/assistant/handler.go
package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dileep-u-k/notion-assistant/internal/api"
	"github.com/dileep-u-k/notion-assistant/internal/memory"
	"github.com/dileep-u-k/notion-assistant/internal/metrics"
	"github.com/dileep-u-k/notion-assistant/internal/orchestrator"
)

// Chatter runs one user turn.
type Chatter interface {
	Handle(ctx context.Context, conversationID, userMessage string) *orchestrator.Outcome
}

// MemoryStore lists and clears a conversation's stored turns.
type MemoryStore interface {
	All(ctx context.Context, conversationID string) ([]memory.Turn, error)
	Clear(ctx context.Context, conversationID string) error
}

// ChatHandler serves the HTTP chat API.
type ChatHandler struct {
	chat   Chatter
	memory MemoryStore
	log    zerolog.Logger
}

func NewChatHandler(chat Chatter, mem MemoryStore, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, memory: mem, log: log}
}

// Routes registers every endpoint on engine.
func (h *ChatHandler) Routes(engine *gin.Engine) {
	engine.GET("/healthz", h.HandleHealth)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/chat", h.HandleChat)
		v1.GET("/memories/:user", h.HandleListMemories)
		v1.DELETE("/memories/:user", h.HandleClearMemories)
	}
}

// HandleChat runs one user turn. A FAILED turn is still a 200: its reply is the
// user-facing explanation, and State tells API clients what happened.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	start := time.Now()
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: message is empty"})
		return
	}

	conversationID := memory.ConversationID(req.UserName)
	out := h.chat.Handle(c.Request.Context(), conversationID, req.Message)

	c.JSON(http.StatusOK, api.ChatResponse{
		Reply:          out.Reply,
		State:          string(out.State),
		Rounds:         out.Rounds,
		ToolCalls:      out.ToolCalls,
		ConversationID: conversationID,
		Usage:          out.Usage,
		LatencyMS:      time.Since(start).Milliseconds(),
	})
}

func (h *ChatHandler) HandleListMemories(c *gin.Context) {
	conversationID := memory.ConversationID(c.Param("user"))
	turns, err := h.memory.All(c.Request.Context(), conversationID)
	if err != nil {
		h.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("listing memories failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "memory service unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID, "memories": turns})
}

func (h *ChatHandler) HandleClearMemories(c *gin.Context) {
	conversationID := memory.ConversationID(c.Param("user"))
	if err := h.memory.Clear(c.Request.Context(), conversationID); err != nil {
		h.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("clearing memories failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "memory service unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) HandleHealth(c *gin.Context) {
	info := GetBuildInfo()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": info.Version, "commit": info.GitCommit})
}
