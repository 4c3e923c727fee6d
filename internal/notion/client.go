// In file: internal/notion/client.go

// Package notion is a thin, typed client for the subset of the Notion REST API the assistant
// exposes to the language model: database queries, page creation and updates, block appends
// and search. Every operation returns one of the typed errors in errors.go so callers can
// decide what is worth relaying to the model and what must stop the conversation.
package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/dileep-u-k/notion-assistant/internal/logger"
)

const (
	defaultBaseURL      = "https://api.notion.com/v1"
	notionVersion       = "2022-06-28"
	defaultTimeout      = 30 * time.Second
	defaultRetryCount   = 2
	defaultRetryWait    = 500 * time.Millisecond
	defaultRetryMaxWait = 4 * time.Second
	defaultPageSize     = 100
	maxRichTextLength   = 2000
	maxBlocksPerAppend  = 100
)

// Client is an authenticated Notion API client.
type Client struct {
	http       *resty.Client
	retryCount int
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	baseURL      string
	timeout      time.Duration
	retryCount   int
	retryWait    time.Duration
	retryMaxWait time.Duration
	logger       resty.Logger
}

// WithBaseURL points the client at a different API root (used by tests).
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = strings.TrimRight(u, "/") } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithRetry sets how many extra attempts a transient failure gets and the backoff window.
func WithRetry(count int, wait, maxWait time.Duration) Option {
	return func(o *options) {
		o.retryCount = count
		o.retryWait = wait
		o.retryMaxWait = maxWait
	}
}

// WithRetryCount changes only the number of extra attempts.
func WithRetryCount(count int) Option { return func(o *options) { o.retryCount = count } }

// WithLogger routes the HTTP client's own messages to l.
func WithLogger(l resty.Logger) Option { return func(o *options) { o.logger = l } }

// NewClient creates a client for the given integration token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &AuthError{Message: ErrMissingToken.Error()}
	}

	o := options{
		baseURL:      defaultBaseURL,
		timeout:      defaultTimeout,
		retryCount:   defaultRetryCount,
		retryWait:    defaultRetryWait,
		retryMaxWait: defaultRetryMaxWait,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = logger.Resty(zerolog.Nop())
	}

	rc := resty.New()
	rc.SetLogger(o.logger)
	rc.SetBaseURL(o.baseURL).
		SetAuthToken(token).
		SetHeader("Notion-Version", notionVersion).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Notion-Assistant/1.0").
		SetTimeout(o.timeout).
		SetRetryCount(o.retryCount).
		SetRetryWaitTime(o.retryWait).
		SetRetryMaxWaitTime(o.retryMaxWait).
		AddRetryCondition(shouldRetry)

	return &Client{http: rc, retryCount: o.retryCount}, nil
}

// shouldRetry retries network failures and transient statuses only. Per-attempt client
// timeouts are retried; a cancelled or expired caller context is not.
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		if resp != nil && resp.Request != nil && resp.Request.Context().Err() != nil {
			return false
		}
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return false
	}
	return isRetryableStatus(resp.StatusCode())
}

// do executes one API call and decodes the JSON response into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	attempts := c.retryCount + 1
	if resp != nil && resp.Request != nil && resp.Request.Attempt > 0 {
		attempts = resp.Request.Attempt
	}
	if err != nil {
		return &TransientError{Attempts: attempts, Err: fmt.Errorf("%s %s: %w", method, path, err)}
	}

	if resp.IsError() {
		var errBody ErrorResponse
		if jsonErr := json.Unmarshal(resp.Body(), &errBody); jsonErr != nil {
			errBody.Message = strings.TrimSpace(string(resp.Body()))
		}
		return classifyStatus(resp.StatusCode(), errBody, attempts)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode notion response for %s %s: %w", method, path, err)
	}
	return nil
}
