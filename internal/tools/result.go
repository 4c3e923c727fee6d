// In file: internal/tools/result.go
package tools

import (
	"encoding/json"
	"errors"

	"github.com/dileep-u-k/notion-assistant/internal/notion"
)

// ErrorKind classifies a failed tool result so the model (and metrics) can tell a typo in
// an ID from an outage.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindUnknownTool   ErrorKind = "unknown_tool"
	KindInvalidArgs   ErrorKind = "invalid_arguments"
	KindAuth          ErrorKind = "auth"
	KindNotFound      ErrorKind = "not_found"
	KindRemoteInvalid ErrorKind = "validation"
	KindTransient     ErrorKind = "transient"
	KindInternal      ErrorKind = "internal"
)

// Result is the outcome of one tool invocation.
type Result struct {
	Success bool      `json:"success"`
	Payload any       `json:"result,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
}

// Failure builds a failed Result from any error, classifying it.
func Failure(err error) *Result {
	return &Result{Success: false, Error: err.Error(), Kind: Classify(err)}
}

// Classify maps an error onto an ErrorKind.
func Classify(err error) ErrorKind {
	var (
		unknown  *UnknownToolError
		badArgs  *ArgumentValidationError
		auth     *notion.AuthError
		notFound *notion.NotFoundError
		invalid  *notion.RemoteValidationError
		trans    *notion.TransientError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &unknown):
		return KindUnknownTool
	case errors.As(err, &badArgs):
		return KindInvalidArgs
	case errors.As(err, &auth):
		return KindAuth
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &invalid):
		return KindRemoteInvalid
	case errors.As(err, &trans):
		return KindTransient
	default:
		return KindInternal
	}
}

// hint is extra guidance appended for the model on recoverable failures.
func (r *Result) hint() string {
	switch r.Kind {
	case KindNotFound:
		return "The page or database does not exist or has not been shared with the integration. Use search to find the right id, or ask the user to share it."
	case KindTransient:
		return "Notion is temporarily unavailable. Tell the user to try again shortly."
	case KindUnknownTool:
		return "Only call the tools you were given."
	}
	return ""
}

// JSON renders the result as the content of a tool turn.
func (r *Result) JSON() string {
	out := struct {
		*Result
		Hint string `json:"hint,omitempty"`
	}{Result: r, Hint: r.hint()}

	b, err := json.Marshal(out)
	if err != nil {
		fallback, _ := json.Marshal(Result{Success: false, Error: "result could not be encoded: " + err.Error(), Kind: KindInternal})
		return string(fallback)
	}
	return string(b)
}
