// In file: internal/notion/errors.go
package notion

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingToken is returned when a client is constructed without an integration token.
var ErrMissingToken = errors.New("notion integration token is empty")

// AuthError means the integration credential is missing or was rejected by Notion.
// It is never retried: a bad token stays bad.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("notion auth error: %s", e.Message)
	}
	return fmt.Sprintf("notion auth error (%d): %s", e.Status, e.Message)
}

// NotFoundError means the target does not exist or has not been shared with the integration.
// Notion deliberately reports both cases the same way.
type NotFoundError struct {
	Status  int
	Code    string
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("notion object not found (%d %s): %s", e.Status, e.Code, e.Message)
}

// RemoteValidationError carries Notion's own validation message verbatim so it can be
// relayed to the model, which is usually able to fix its arguments and try again.
type RemoteValidationError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteValidationError) Error() string {
	return fmt.Sprintf("notion rejected the request (%d %s): %s", e.Status, e.Code, e.Message)
}

// TransientError is what remains of a network failure, timeout, rate limit or 5xx after
// the client's bounded retries have been used up.
type TransientError struct {
	Status   int
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("notion temporarily unavailable after %d attempt(s): status %d: %v", e.Attempts, e.Status, e.Err)
	}
	return fmt.Sprintf("notion temporarily unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ErrorResponse is the JSON error body returned by the Notion API.
type ErrorResponse struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classifyStatus maps a non-2xx Notion response onto the error taxonomy.
func classifyStatus(status int, body ErrorResponse, attempts int) error {
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized:
		return &AuthError{Status: status, Message: msg}
	case status == http.StatusNotFound,
		status == http.StatusForbidden:
		return &NotFoundError{Status: status, Code: body.Code, Message: msg}
	case isRetryableStatus(status):
		return &TransientError{Status: status, Attempts: attempts, Err: errors.New(msg)}
	default:
		return &RemoteValidationError{Status: status, Code: body.Code, Message: msg}
	}
}

func isRetryableStatus(status int) bool {
	return status == http.StatusConflict ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}
