// In file: internal/memory/mem0.go
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/dileep-u-k/notion-assistant/internal/logger"
)

const defaultMem0BaseURL = "https://api.mem0.ai"

// Service is the memory backend the Adapter talks to.
type Service interface {
	Add(ctx context.Context, req AddRequest) error
	Search(ctx context.Context, req SearchRequest) ([]Memory, error)
	GetAll(ctx context.Context, userID string) ([]Memory, error)
	DeleteAll(ctx context.Context, userID string) error
}

// Message is one chat message in an add request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AddRequest stores messages for a user.
type AddRequest struct {
	Messages []Message      `json:"messages"`
	UserID   string         `json:"user_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Infer    bool           `json:"infer"` // false stores messages verbatim
	Version  string         `json:"version,omitempty"`
}

// SearchRequest finds memories relevant to a query.
type SearchRequest struct {
	Query   string         `json:"query"`
	Filters map[string]any `json:"filters"`
	TopK    int            `json:"top_k,omitempty"`
}

// Memory is a stored memory as returned by mem0.
type Memory struct {
	ID        string         `json:"id"`
	Memory    string         `json:"memory"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Score     float64        `json:"score,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}

// Mem0Client is a REST client for the hosted mem0 platform.
type Mem0Client struct {
	http *resty.Client
}

var _ Service = (*Mem0Client)(nil)

// NewMem0Client creates a client. An empty baseURL selects the hosted platform.
func NewMem0Client(apiKey, baseURL string, timeout time.Duration, log zerolog.Logger) (*Mem0Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("mem0 api key is empty")
	}
	if baseURL == "" {
		baseURL = defaultMem0BaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Authorization", "Token "+apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Notion-Assistant/1.0").
		SetTimeout(timeout).
		SetLogger(logger.Resty(log))
	return &Mem0Client{http: rc}, nil
}

func (c *Mem0Client) Add(ctx context.Context, req AddRequest) error {
	if req.Version == "" {
		req.Version = "v2"
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(req).Post("/v1/memories/")
	if err != nil {
		return fmt.Errorf("mem0 add request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mem0 add error (%d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *Mem0Client) Search(ctx context.Context, req SearchRequest) ([]Memory, error) {
	resp, err := c.http.R().SetContext(ctx).SetBody(req).Post("/v2/memories/search/")
	if err != nil {
		return nil, fmt.Errorf("mem0 search request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mem0 search error (%d): %s", resp.StatusCode(), resp.String())
	}
	return decodeMemories(resp.Body())
}

func (c *Mem0Client) GetAll(ctx context.Context, userID string) ([]Memory, error) {
	resp, err := c.http.R().SetContext(ctx).SetQueryParam("user_id", userID).Get("/v1/memories/")
	if err != nil {
		return nil, fmt.Errorf("mem0 list request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mem0 list error (%d): %s", resp.StatusCode(), resp.String())
	}
	return decodeMemories(resp.Body())
}

func (c *Mem0Client) DeleteAll(ctx context.Context, userID string) error {
	resp, err := c.http.R().SetContext(ctx).SetQueryParam("user_id", userID).Delete("/v1/memories/")
	if err != nil {
		return fmt.Errorf("mem0 delete request failed: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("mem0 delete error (%d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// decodeMemories accepts both a bare array and a {"results": [...]} envelope; mem0 has
// returned each shape depending on endpoint version.
func decodeMemories(body []byte) ([]Memory, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []Memory
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode mem0 memories: %w", err)
		}
		return list, nil
	}
	var env struct {
		Results []Memory `json:"results"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode mem0 memories: %w", err)
	}
	return env.Results, nil
}
