// In file: internal/llm/transport.go
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// poster sends JSON requests to a provider, retrying network failures and 5xx/429
// responses with exponential backoff. Other 4xx responses are returned immediately.
type poster struct {
	provider   string
	httpClient *http.Client
	retryDelay time.Duration
}

func newPoster(provider string) poster {
	return poster{
		provider:   provider,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryDelay: initialRetryDelay,
	}
}

func (p *poster) post(ctx context.Context, url string, headers map[string]string, payload []byte) ([]byte, error) {
	var lastErr error
	delay := p.retryDelay

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%s request aborted: %w", p.provider, err)
			}
			delay *= 2
		}

		// A fresh reader per attempt so the body can be re-sent.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s request aborted: %w", p.provider, ctx.Err())
			}
			lastErr = fmt.Errorf("%w: %s request failed (attempt %d/%d): %w", ErrUnavailable, p.provider, i+1, maxRetries, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %s response body: %w", p.provider, readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		apiErr := &APIError{Provider: p.provider, StatusCode: resp.StatusCode, Body: string(body)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, apiErr
		}
		lastErr = fmt.Errorf("%w: %w", ErrUnavailable, apiErr)
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
