// In file: internal/orchestrator/state.go
package orchestrator

import "fmt"

// State is a state of the per-turn loop.
type State string

const (
	StateAwaitingModel State = "AWAITING_MODEL"
	StateExecutingTool State = "EXECUTING_TOOL"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Messages shown to the user when a turn fails. They never contain error details.
const (
	MsgBudgetExceeded   = "I wasn't able to finish that request within the allowed number of steps. Could you try breaking it into smaller requests?"
	MsgNotionAuth       = "I couldn't connect to Notion. Please check the integration setup."
	MsgModelTimeout     = "The assistant took too long to respond. Please try again."
	MsgModelUnreachable = "I couldn't reach the language model right now. Please try again in a moment."
	MsgCancelled        = "The request was cancelled."
	msgEmptyReply       = "I'm not sure how to help with that. Could you rephrase?"
)

// BudgetExceededError is the failure cause when the model keeps requesting tools after
// MaxRounds rounds.
type BudgetExceededError struct {
	MaxRounds int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("tool round budget of %d exhausted", e.MaxRounds)
}
