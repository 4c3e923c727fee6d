// In file: internal/orchestrator/orchestrator.go

// Package orchestrator runs one user turn: it asks the language model for the next action,
// executes the tools it requests and feeds the results back, until the model replies or
// the round budget runs out.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dileep-u-k/notion-assistant/internal/api"
	"github.com/dileep-u-k/notion-assistant/internal/llm"
	"github.com/dileep-u-k/notion-assistant/internal/memory"
	"github.com/dileep-u-k/notion-assistant/internal/metrics"
	"github.com/dileep-u-k/notion-assistant/internal/notion"
	"github.com/dileep-u-k/notion-assistant/internal/tools"
)

const (
	defaultMaxRounds    = 5
	defaultModelTimeout = 60 * time.Second
	defaultToolTimeout  = 30 * time.Second
	maxParallelTools    = 4
)

// Dispatcher is the part of the tool registry the loop needs.
type Dispatcher interface {
	ListDescriptors() []tools.Tool
	Dispatch(ctx context.Context, inv tools.Invocation) (*tools.Result, error)
}

// Memory is the part of the memory adapter the loop needs.
type Memory interface {
	Retrieve(ctx context.Context, conversationID, query string) []memory.Turn
	Store(ctx context.Context, conversationID string, turn memory.Turn) error
}

// Options tune the loop. Zero values select the defaults.
type Options struct {
	// Provider labels model metrics.
	Provider     string
	Generation   *llm.GenerationConfig
	MaxRounds    int
	ModelTimeout time.Duration
	ToolTimeout  time.Duration
	// Instructions are appended to the system prompt.
	Instructions []string
}

// Orchestrator is safe for concurrent use; every Handle call owns its own conversation.
type Orchestrator struct {
	model  llm.LLMClient
	tools  Dispatcher
	memory Memory
	log    zerolog.Logger
	opts   Options
}

func New(model llm.LLMClient, dispatcher Dispatcher, mem Memory, log zerolog.Logger, opts Options) *Orchestrator {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaultMaxRounds
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = defaultModelTimeout
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = defaultToolTimeout
	}
	if opts.Generation == nil {
		opts.Generation = &llm.GenerationConfig{}
	}
	return &Orchestrator{
		model:  model,
		tools:  dispatcher,
		memory: mem,
		log:    log.With().Str("component", "orchestrator").Logger(),
		opts:   opts,
	}
}

// Outcome is the result of one user turn. Reply is always safe to show the user.
type Outcome struct {
	State      State
	Reply      string
	Rounds     int
	ModelCalls int
	// ToolCalls lists the dispatched tool names in order.
	ToolCalls []string
	// Turns are the conversation turns this user turn produced, as offered to memory.
	Turns []memory.Turn
	Usage api.Usage
	// Err is the cause of a FAILED outcome.
	Err error
}

// Handle processes one user message to completion.
func (o *Orchestrator) Handle(ctx context.Context, conversationID, userMessage string) *Outcome {
	start := time.Now()
	log := o.log.With().Str("conversation_id", conversationID).Logger()

	out := &Outcome{State: StateAwaitingModel}
	out.Turns = append(out.Turns, memory.NewTurn(memory.RoleUser, userMessage))

	memories := o.memory.Retrieve(ctx, conversationID, userMessage)
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: buildSystemPrompt(o.opts.Instructions, memories)},
		{Role: llm.RoleUser, Content: userMessage},
	}
	descriptors := o.tools.ListDescriptors()

	var pending []*tools.ToolCall
	for !out.State.Terminal() {
		switch out.State {
		case StateAwaitingModel:
			if err := ctx.Err(); err != nil {
				out.fail(err, MsgCancelled)
				break
			}
			if out.Rounds >= o.opts.MaxRounds {
				out.fail(&BudgetExceededError{MaxRounds: o.opts.MaxRounds}, MsgBudgetExceeded)
				break
			}

			res, err := o.callModel(ctx, messages, descriptors)
			out.ModelCalls++
			if err != nil {
				out.fail(err, modelFailureMessage(ctx, err))
				break
			}
			out.Usage.Add(res.Usage)

			if !res.WantsTools() {
				out.Reply = res.Content
				if out.Reply == "" {
					out.Reply = msgEmptyReply
				}
				out.Turns = append(out.Turns, memory.NewTurn(memory.RoleAssistant, out.Reply))
				out.State = StateDone
				break
			}
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: res.Content, ToolCalls: res.ToolCalls})
			pending = res.ToolCalls
			out.State = StateExecutingTool

		case StateExecutingTool:
			results := o.executeTools(ctx, log, pending)
			pending = nil
			out.Rounds++

			var authErr error
			for _, r := range results {
				content := r.result.JSON()
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Name:       r.call.Function.Name,
					ToolCallID: r.call.ID,
					Content:    content,
				})
				out.Turns = append(out.Turns, memory.NewToolTurn(r.call.Function.Name, r.call.ID, content))
				out.ToolCalls = append(out.ToolCalls, r.call.Function.Name)
				if authErr == nil && isAuthError(r.err) {
					authErr = r.err
				}
			}
			if authErr != nil {
				out.fail(authErr, MsgNotionAuth)
				break
			}
			out.State = StateAwaitingModel
		}
	}

	o.remember(ctx, log, conversationID, out.Turns)

	ev := log.Info()
	if out.State == StateFailed {
		ev = log.Warn().Err(out.Err)
	}
	ev.Str("state", string(out.State)).
		Int("rounds", out.Rounds).
		Int("model_calls", out.ModelCalls).
		Strs("tools", out.ToolCalls).
		Int("total_tokens", out.Usage.TotalTokens).
		Dur("duration", time.Since(start)).
		Msg("turn finished")
	metrics.RecordTurn(string(out.State), failureReason(out.Err), out.Rounds)
	return out
}

func (out *Outcome) fail(err error, userMessage string) {
	out.State = StateFailed
	out.Err = err
	out.Reply = userMessage
}

func (o *Orchestrator) callModel(ctx context.Context, messages []llm.Message, descriptors []tools.Tool) (*llm.GenerationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.ModelTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.model.Generate(callCtx, messages, o.opts.Generation, descriptors)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordModelCall(o.opts.Provider, status, time.Since(start).Seconds())
	if err == nil && res == nil {
		err = errors.New("model returned no result")
	}
	return res, err
}

type toolOutcome struct {
	call   *tools.ToolCall
	result *tools.Result
	err    error
}

// executeTools dispatches one round of tool calls, concurrently when there are several,
// and returns the outcomes in request order. Calls run on a context detached from the
// caller's cancellation so a started Notion write is never abandoned halfway.
func (o *Orchestrator) executeTools(ctx context.Context, log zerolog.Logger, calls []*tools.ToolCall) []toolOutcome {
	results := make([]toolOutcome, len(calls))
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = o.executeTool(detached, log, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) executeTool(ctx context.Context, log zerolog.Logger, call *tools.ToolCall) toolOutcome {
	ctx, cancel := context.WithTimeout(ctx, o.opts.ToolTimeout)
	defer cancel()

	start := time.Now()
	name := call.Function.Name
	res, err := func() (*tools.Result, error) {
		inv, err := tools.ParseInvocation(call.ID, name, call.Function.Arguments)
		if err != nil {
			return tools.Failure(err), err
		}
		res, err := o.tools.Dispatch(ctx, inv)
		if res == nil {
			res = tools.Failure(err)
		}
		return res, err
	}()

	outcome := "success"
	if !res.Success {
		outcome = string(res.Kind)
		log.Warn().Err(err).Str("tool", name).Str("call_id", call.ID).Str("kind", outcome).Msg("tool call failed")
	} else {
		log.Debug().Str("tool", name).Str("call_id", call.ID).Msg("tool call succeeded")
	}
	metrics.RecordToolCall(name, outcome, time.Since(start).Seconds())
	return toolOutcome{call: call, result: res, err: err}
}

// remember offers the turn's conversation to memory. Failures are logged by the adapter
// and never reach the user.
func (o *Orchestrator) remember(ctx context.Context, log zerolog.Logger, conversationID string, turns []memory.Turn) {
	storeCtx := context.WithoutCancel(ctx)
	for _, t := range turns {
		if err := o.memory.Store(storeCtx, conversationID, t); err != nil {
			log.Debug().Err(err).Str("turn_id", t.ID).Msg("turn not stored")
		}
	}
}

func isAuthError(err error) bool {
	var auth *notion.AuthError
	return errors.As(err, &auth)
}

// modelFailureMessage picks the user message for a failed model call.
func modelFailureMessage(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return MsgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return MsgModelTimeout
	default:
		return MsgModelUnreachable
	}
}

func failureReason(err error) string {
	var budget *BudgetExceededError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &budget):
		return "budget_exceeded"
	case isAuthError(err):
		return "notion_auth"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "model_error"
	}
}
