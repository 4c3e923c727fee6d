// In file: cmd/assistant/app.go
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dileep-u-k/notion-assistant/internal/config"
	"github.com/dileep-u-k/notion-assistant/internal/knowledge"
	"github.com/dileep-u-k/notion-assistant/internal/llm"
	"github.com/dileep-u-k/notion-assistant/internal/logger"
	"github.com/dileep-u-k/notion-assistant/internal/memory"
	"github.com/dileep-u-k/notion-assistant/internal/notion"
	"github.com/dileep-u-k/notion-assistant/internal/orchestrator"
	"github.com/dileep-u-k/notion-assistant/internal/tools"
)

const ledgerPrefix = "notion-assistant:memledger"

// app is the composition root: every component is built here from the loaded config
// and handed its dependencies explicitly.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	orch      *orchestrator.Orchestrator
	memory    *memory.Adapter
	registry  *tools.Registry
	knowledge *knowledge.Loader
	closers   []io.Closer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	notionOpts := []notion.Option{
		notion.WithLogger(logger.Resty(log)),
		notion.WithTimeout(cfg.NotionTimeout),
		notion.WithRetryCount(cfg.NotionRetryCount),
	}
	if cfg.NotionBaseURL != "" {
		notionOpts = append(notionOpts, notion.WithBaseURL(cfg.NotionBaseURL))
	}
	notionClient, err := notion.NewClient(cfg.NotionAPIKey, notionOpts...)
	if err != nil {
		return nil, fmt.Errorf("notion client: %w", err)
	}

	a.registry = tools.NewRegistry()
	if err := tools.RegisterNotionTools(a.registry, notionClient); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	log.Info().Int("tools", a.registry.ToolCount()).Msg("tool registry initialized")

	mem0, err := memory.NewMem0Client(cfg.Mem0APIKey, cfg.Mem0BaseURL, cfg.Mem0Timeout, log)
	if err != nil {
		return nil, fmt.Errorf("mem0 client: %w", err)
	}
	a.memory = memory.NewAdapter(mem0, a.newLedger(ctx), log, cfg.MemoryMaxResults)
	a.knowledge = knowledge.NewLoader(notionClient, a.memory, log)

	model, err := llm.NewClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	if c, ok := model.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	log.Info().Str("provider", cfg.LLMProvider).Str("model", cfg.LLMModel).Msg("language model client initialized")

	a.orch = orchestrator.New(model, a.registry, a.memory, log, orchestrator.Options{
		Provider:     cfg.LLMProvider,
		Generation:   llm.ConfigFrom(cfg),
		MaxRounds:    cfg.MaxRounds,
		ModelTimeout: cfg.LLMTimeout,
		ToolTimeout:  cfg.ToolTimeout,
		Instructions: cfg.Instructions,
	})
	return a, nil
}

// newLedger uses Redis for turn dedup when configured and reachable, otherwise an
// in-process ledger.
func (a *app) newLedger(ctx context.Context) memory.Ledger {
	if a.cfg.RedisAddr == "" {
		return memory.NewLocalLedger(a.cfg.MemoryDedupTTL)
	}
	rdb := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.log.Warn().Err(err).Str("addr", a.cfg.RedisAddr).Msg("redis unreachable, using in-process dedup ledger")
		_ = rdb.Close()
		return memory.NewLocalLedger(a.cfg.MemoryDedupTTL)
	}
	a.closers = append(a.closers, rdb)
	a.log.Info().Str("addr", a.cfg.RedisAddr).Msg("redis dedup ledger connected")
	return memory.NewRedisLedger(rdb, ledgerPrefix, a.cfg.MemoryDedupTTL)
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
}
