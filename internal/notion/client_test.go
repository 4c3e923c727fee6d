package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("secret_test", WithBaseURL(srv.URL), WithRetry(2, time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)
	return c, &hits
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Object: "error", Status: status, Code: code, Message: msg})
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("  ")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestClientSendsHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret_test", r.Header.Get("Authorization"))
		assert.Equal(t, notionVersion, r.Header.Get("Notion-Version"))
		assert.Equal(t, "/search", r.URL.Path)

		var body SearchParams
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "groceries", body.Query)
		assert.Equal(t, defaultPageSize, body.PageSize)

		_, _ = w.Write([]byte(`{"object":"list","results":[{"object":"page","id":"p1","properties":{"Name":{"type":"title","title":[{"plain_text":"Groceries"}]}}}],"has_more":false}`))
	})

	res, err := c.Search(context.Background(), SearchParams{Query: "groceries"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Groceries", res.Results[0].GetTitle())
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		wantHits int32
		check    func(t *testing.T, err error)
	}{
		{
			name: "unauthorized is auth error and never retried", status: 401, code: "unauthorized", wantHits: 1,
			check: func(t *testing.T, err error) {
				var e *AuthError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 401, e.Status)
			},
		},
		{
			name: "not found", status: 404, code: "object_not_found", wantHits: 1,
			check: func(t *testing.T, err error) {
				var e *NotFoundError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "restricted resource reads as not found", status: 403, code: "restricted_resource", wantHits: 1,
			check: func(t *testing.T, err error) {
				var e *NotFoundError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "validation message kept verbatim", status: 400, code: "validation_error", wantHits: 1,
			check: func(t *testing.T, err error) {
				var e *RemoteValidationError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "body failed validation: body.query should be a string", e.Message)
				assert.Equal(t, "validation_error", e.Code)
			},
		},
		{
			name: "rate limit retried then transient", status: 429, code: "rate_limited", wantHits: 3,
			check: func(t *testing.T, err error) {
				var e *TransientError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 429, e.Status)
				assert.Equal(t, 3, e.Attempts)
			},
		},
		{
			name: "server error retried then transient", status: 503, code: "service_unavailable", wantHits: 3,
			check: func(t *testing.T, err error) {
				var e *TransientError
				require.ErrorAs(t, err, &e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.status, tt.code, "body failed validation: body.query should be a string")
			})
			_, err := c.Search(context.Background(), SearchParams{Query: "x"})
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, tt.wantHits, atomic.LoadInt32(hits))
		})
	}
}

func TestClientRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeError(w, 502, "bad_gateway", "upstream")
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","results":[],"has_more":false}`))
	})

	res, err := c.QueryDatabase(context.Background(), "db1", QueryParams{})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient("secret_test", WithBaseURL(url), WithRetry(1, time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	_, err = c.GetPage(context.Background(), "p1")
	var e *TransientError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 2, e.Attempts)
}

func TestClientRetriesAttemptTimeouts(t *testing.T) {
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewClient("secret_test",
		WithBaseURL(srv.URL),
		WithTimeout(50*time.Millisecond),
		WithRetry(2, time.Millisecond, 5*time.Millisecond),
	)
	require.NoError(t, err)

	_, err = c.GetPage(context.Background(), "p1")
	var e *TransientError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 3, e.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClientDoesNotRetryCancelledCaller(t *testing.T) {
	release := make(chan struct{})
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.GetPage(ctx, "p1")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestCreatePageEncodesAgainstSchema(t *testing.T) {
	var created map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/databases/db1":
			_, _ = w.Write([]byte(`{"object":"database","id":"db1","properties":{
				"Name":{"type":"title"},"Done":{"type":"checkbox"},"Tags":{"type":"multi_select"}}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/pages":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_, _ = w.Write([]byte(`{"object":"page","id":"new-page","url":"https://notion.so/new-page"}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	page, err := c.CreatePage(context.Background(), CreatePageParams{
		DatabaseID: "db1",
		Properties: map[string]any{"name": "Buy milk", "Done": false, "Tags": []any{"home", "errand"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-page", page.ID)

	props := created["properties"].(map[string]any)
	require.Contains(t, props, "Name")
	title := props["Name"].(map[string]any)["title"].([]any)[0].(map[string]any)
	assert.Equal(t, "Buy milk", title["text"].(map[string]any)["content"])
	assert.Equal(t, false, props["Done"].(map[string]any)["checkbox"])
	assert.Len(t, props["Tags"].(map[string]any)["multi_select"], 2)
	assert.Equal(t, "db1", created["parent"].(map[string]any)["database_id"])
}

func TestCreatePageUnknownPropertyWritesNothing(t *testing.T) {
	var posts int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&posts, 1)
		}
		_, _ = w.Write([]byte(`{"object":"database","id":"db1","properties":{"Name":{"type":"title"}}}`))
	})

	_, err := c.CreatePage(context.Background(), CreatePageParams{
		DatabaseID: "db1",
		Properties: map[string]any{"Priority": "High"},
	})
	var e *RemoteValidationError
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Message, "Priority")
	assert.Zero(t, atomic.LoadInt32(&posts))
}

func TestAppendBlocksBatches(t *testing.T) {
	var batches []int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/blocks/page1/children", r.URL.Path)
		var body struct {
			Children []Block `json:"children"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		batches = append(batches, len(body.Children))
		resp := List[Block]{Object: "list", Results: body.Children}
		_ = json.NewEncoder(w).Encode(resp)
	})

	blocks := make([]Block, 0, 150)
	for i := 0; i < 150; i++ {
		blocks = append(blocks, Block{Type: "paragraph", Paragraph: textBlock("line")})
	}
	created, err := c.AppendBlocks(context.Background(), "page1", blocks)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 50}, batches)
	assert.Len(t, created, 150)
}

func TestGetPageContent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pages/p1":
			_, _ = w.Write([]byte(`{"object":"page","id":"p1","properties":{"Name":{"type":"title","title":[{"plain_text":"Groceries"}]},"Status":{"type":"status","status":{"name":"Open"}}}}`))
		case "/blocks/p1/children":
			_, _ = w.Write([]byte(`{"object":"list","has_more":false,"results":[
				{"type":"heading_2","heading_2":{"rich_text":[{"plain_text":"Today"}]}},
				{"type":"to_do","to_do":{"rich_text":[{"plain_text":"Buy milk"}],"checked":false}},
				{"type":"to_do","to_do":{"rich_text":[{"plain_text":"Bread"}],"checked":true}},
				{"type":"image","image":{}}]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	content, err := c.GetPageContent(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", content.Title)
	assert.Equal(t, "Open", content.Properties["Status"])
	assert.Equal(t, "## Today\n☐ Buy milk\n☑ Bread", content.Text)
}

func TestNormalizeID(t *testing.T) {
	id, err := normalizeID("https://www.notion.so/workspace/Groceries-0123456789abcdef0123456789abcdef?pvs=4")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", id)

	_, err = normalizeID("")
	var e *RemoteValidationError
	assert.True(t, errors.As(err, &e))

	_, err = normalizeID("../users")
	assert.True(t, errors.As(err, &e))
}
