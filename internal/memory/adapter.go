// In file: internal/memory/adapter.go
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dileep-u-k/notion-assistant/internal/metrics"
)

const defaultMaxResults = 5

// Adapter stores conversation turns in the memory service and retrieves relevant ones.
//
// Turns are stored exactly once per turn ID for as long as the ledger remembers the
// claim: a second Store of the same turn is a no-op, and a failed write releases its
// claim so a retry can succeed. If the ledger itself is unavailable the write goes ahead
// and delivery becomes at-least-once; Retrieve collapses any duplicates by turn ID.
type Adapter struct {
	svc        Service
	ledger     Ledger
	log        zerolog.Logger
	maxResults int
}

// NewAdapter creates an adapter. A nil ledger gets an in-process one; maxResults <= 0
// selects the default of 5.
func NewAdapter(svc Service, ledger Ledger, log zerolog.Logger, maxResults int) *Adapter {
	if ledger == nil {
		ledger = NewLocalLedger(0)
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Adapter{
		svc:        svc,
		ledger:     ledger,
		log:        log.With().Str("component", "memory").Logger(),
		maxResults: maxResults,
	}
}

// Retrieve returns up to maxResults prior turns relevant to query, most relevant first.
// Any service failure is logged and yields an empty slice.
func (a *Adapter) Retrieve(ctx context.Context, conversationID, query string) []Turn {
	mems, err := a.svc.Search(ctx, SearchRequest{
		Query:   query,
		Filters: map[string]any{"user_id": conversationID},
		TopK:    a.maxResults * 2,
	})
	if err != nil {
		metrics.RecordMemory("retrieve", "error")
		a.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("memory retrieval failed, continuing without memories")
		return []Turn{}
	}
	metrics.RecordMemory("retrieve", "success")

	turns := dedupe(a.toTurns(conversationID, mems))
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Score > turns[j].Score })
	if len(turns) > a.maxResults {
		turns = turns[:a.maxResults]
	}
	return turns
}

// Store persists one turn verbatim. Errors are returned for logging; callers must not
// fail the conversation because of them.
func (a *Adapter) Store(ctx context.Context, conversationID string, turn Turn) error {
	if turn.ID == "" {
		turn.ID = contentID(turn)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	key := ledgerKey(conversationID, turn.ID)

	claimed, err := a.ledger.Claim(ctx, key)
	switch {
	case err != nil:
		a.log.Warn().Err(err).Str("turn_id", turn.ID).Msg("dedup ledger unavailable, storing without a claim")
	case !claimed:
		metrics.RecordMemory("store", "duplicate")
		a.log.Debug().Str("turn_id", turn.ID).Msg("turn already stored, skipping")
		return nil
	}

	req := AddRequest{
		Messages: []Message{{Role: serviceRole(turn.Role), Content: turn.Content}},
		UserID:   conversationID,
		Metadata: map[string]any{
			"turn_id":         turn.ID,
			"role":            string(turn.Role),
			"conversation_id": conversationID,
			"timestamp":       turn.Timestamp.Format(time.RFC3339Nano),
		},
		Infer: false,
	}
	if turn.ToolName != "" {
		req.Metadata["tool_name"] = turn.ToolName
	}
	if turn.ToolCallID != "" {
		req.Metadata["tool_call_id"] = turn.ToolCallID
	}

	if err := a.svc.Add(ctx, req); err != nil {
		metrics.RecordMemory("store", "error")
		if claimed {
			if relErr := a.ledger.Release(context.WithoutCancel(ctx), key); relErr != nil {
				a.log.Warn().Err(relErr).Str("turn_id", turn.ID).Msg("failed to release dedup claim")
			}
		}
		a.log.Warn().Err(err).Str("turn_id", turn.ID).Str("role", string(turn.Role)).Msg("failed to store turn in memory")
		return fmt.Errorf("store turn %s: %w", turn.ID, err)
	}
	metrics.RecordMemory("store", "success")
	return nil
}

// All lists every stored turn of a conversation, oldest first.
func (a *Adapter) All(ctx context.Context, conversationID string) ([]Turn, error) {
	mems, err := a.svc.GetAll(ctx, conversationID)
	if err != nil {
		metrics.RecordMemory("list", "error")
		return nil, fmt.Errorf("list memories: %w", err)
	}
	metrics.RecordMemory("list", "success")
	turns := dedupe(a.toTurns(conversationID, mems))
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Timestamp.Before(turns[j].Timestamp) })
	return turns, nil
}

// Clear deletes every stored turn of a conversation.
func (a *Adapter) Clear(ctx context.Context, conversationID string) error {
	if err := a.svc.DeleteAll(ctx, conversationID); err != nil {
		metrics.RecordMemory("clear", "error")
		return fmt.Errorf("clear memories: %w", err)
	}
	metrics.RecordMemory("clear", "success")
	return nil
}

func (a *Adapter) toTurns(conversationID string, mems []Memory) []Turn {
	turns := make([]Turn, 0, len(mems))
	for _, m := range mems {
		if m.UserID != "" && m.UserID != conversationID {
			continue
		}
		if m.Memory == "" {
			continue
		}
		turns = append(turns, toTurn(m))
	}
	return turns
}

func toTurn(m Memory) Turn {
	t := Turn{
		ID:         metaString(m.Metadata, "turn_id"),
		Role:       Role(metaString(m.Metadata, "role")),
		Content:    m.Memory,
		ToolName:   metaString(m.Metadata, "tool_name"),
		ToolCallID: metaString(m.Metadata, "tool_call_id"),
		Score:      m.Score,
	}
	if t.ID == "" {
		t.ID = m.ID
	}
	if t.Role == "" {
		t.Role = RoleUser
	}
	if ts, err := time.Parse(time.RFC3339Nano, metaString(m.Metadata, "timestamp")); err == nil {
		t.Timestamp = ts
	} else if ts, err := time.Parse(time.RFC3339Nano, m.CreatedAt); err == nil {
		t.Timestamp = ts
	}
	return t
}

// dedupe keeps the first occurrence of each turn ID, upgrading its score if a later
// duplicate scored higher.
func dedupe(turns []Turn) []Turn {
	seen := make(map[string]int, len(turns))
	out := turns[:0]
	for _, t := range turns {
		if i, ok := seen[t.ID]; ok {
			if t.Score > out[i].Score {
				out[i].Score = t.Score
			}
			continue
		}
		seen[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// serviceRole maps turn roles onto the two roles the memory service accepts.
func serviceRole(r Role) string {
	if r == RoleUser {
		return "user"
	}
	return "assistant"
}

// contentID derives a stable identity for turns created without one.
func contentID(t Turn) string {
	h := sha256.New()
	h.Write([]byte(string(t.Role)))
	h.Write([]byte{0})
	h.Write([]byte(t.ToolCallID))
	h.Write([]byte{0})
	h.Write([]byte(t.Content))
	h.Write([]byte{0})
	h.Write([]byte(t.Timestamp.UTC().Format(time.RFC3339Nano)))
	return "h-" + hex.EncodeToString(h.Sum(nil))[:32]
}
