// In file: internal/notion/operations.go
package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// SearchParams for the search endpoint.
type SearchParams struct {
	Query       string        `json:"query,omitempty"`
	Filter      *SearchFilter `json:"filter,omitempty"`
	Sort        *SearchSort   `json:"sort,omitempty"`
	StartCursor string        `json:"start_cursor,omitempty"`
	PageSize    int           `json:"page_size,omitempty"`
}

// SearchFilter restricts search to one object kind.
type SearchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"` // "page" or "database"
}

// SearchSort orders search results by a timestamp.
type SearchSort struct {
	Direction string `json:"direction"` // "ascending" or "descending"
	Timestamp string `json:"timestamp"` // "last_edited_time"
}

// QueryParams for querying a database.
type QueryParams struct {
	Filter      any    `json:"filter,omitempty"`
	Sorts       []Sort `json:"sorts,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// Sort is one database query sort criterion.
type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"` // "created_time" or "last_edited_time"
	Direction string `json:"direction"`           // "ascending" or "descending"
}

// SearchResult is the response from search.
type SearchResult = List[Object]

// QueryResult is the response from querying a database.
type QueryResult = List[Object]

// CreatePageParams describes a page to create inside a database.
type CreatePageParams struct {
	DatabaseID string
	// Properties maps property names to simple values or raw Notion payloads.
	Properties map[string]any
	// Children is optional initial page content.
	Children []Block
}

// Search finds pages and databases shared with the integration.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.PageSize == 0 {
		params.PageSize = defaultPageSize
	}
	var result SearchResult
	if err := c.do(ctx, http.MethodPost, "/search", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPage retrieves a page by ID.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Object, error) {
	id, err := normalizeID(pageID)
	if err != nil {
		return nil, err
	}
	var page Object
	if err := c.do(ctx, http.MethodGet, "/pages/"+id, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetDatabase retrieves a database and its property schema.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (*Database, error) {
	id, err := normalizeID(databaseID)
	if err != nil {
		return nil, err
	}
	var db Database
	if err := c.do(ctx, http.MethodGet, "/databases/"+id, nil, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

// QueryDatabase queries a database with optional filter and sort.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, params QueryParams) (*QueryResult, error) {
	id, err := normalizeID(databaseID)
	if err != nil {
		return nil, err
	}
	if params.PageSize == 0 {
		params.PageSize = defaultPageSize
	}
	var result QueryResult
	if err := c.do(ctx, http.MethodPost, "/databases/"+id+"/query", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreatePage creates a page in a database. The database schema is fetched first so that
// simple values can be encoded; an unknown property name fails before anything is written.
func (c *Client) CreatePage(ctx context.Context, params CreatePageParams) (*Object, error) {
	db, err := c.GetDatabase(ctx, params.DatabaseID)
	if err != nil {
		return nil, err
	}
	props, err := EncodeProperties(db.Properties, params.Properties)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"parent":     map[string]any{"database_id": db.ID},
		"properties": props,
	}
	if len(params.Children) > 0 {
		first := params.Children
		if len(first) > maxBlocksPerAppend {
			first = first[:maxBlocksPerAppend]
		}
		body["children"] = first
	}

	var page Object
	if err := c.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return nil, err
	}
	if len(params.Children) > maxBlocksPerAppend {
		if _, err := c.AppendBlocks(ctx, page.ID, params.Children[maxBlocksPerAppend:]); err != nil {
			return &page, fmt.Errorf("page %s created but appending remaining content failed: %w", page.ID, err)
		}
	}
	return &page, nil
}

// UpdatePage changes properties of an existing page. The page is fetched first to learn the
// type of each property it has.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) (*Object, error) {
	if len(properties) == 0 {
		return nil, &RemoteValidationError{Code: "validation_error", Message: "no properties to update"}
	}
	current, err := c.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	props, err := EncodeProperties(SchemaFromPage(current), properties)
	if err != nil {
		return nil, err
	}

	var page Object
	if err := c.do(ctx, http.MethodPatch, "/pages/"+current.ID, map[string]any{"properties": props}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AppendBlocks adds blocks to the end of a page or block, in batches of at most 100.
// It returns the blocks Notion created.
func (c *Client) AppendBlocks(ctx context.Context, blockID string, blocks []Block) ([]Block, error) {
	id, err := normalizeID(blockID)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, &RemoteValidationError{Code: "validation_error", Message: "no blocks to append"}
	}

	var created []Block
	for start := 0; start < len(blocks); start += maxBlocksPerAppend {
		end := min(start+maxBlocksPerAppend, len(blocks))
		var result List[Block]
		body := map[string]any{"children": blocks[start:end]}
		if err := c.do(ctx, http.MethodPatch, "/blocks/"+id+"/children", body, &result); err != nil {
			return created, err
		}
		created = append(created, result.Results...)
	}
	return created, nil
}

// ListBlockChildren returns every direct child of a block, following pagination.
func (c *Client) ListBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	id, err := normalizeID(blockID)
	if err != nil {
		return nil, err
	}

	var blocks []Block
	cursor := ""
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(defaultPageSize))
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}
		var result List[Block]
		if err := c.do(ctx, http.MethodGet, "/blocks/"+id+"/children?"+q.Encode(), nil, &result); err != nil {
			return nil, err
		}
		blocks = append(blocks, result.Results...)
		if !result.HasMore || result.NextCursor == "" {
			return blocks, nil
		}
		cursor = result.NextCursor
	}
}

// PageContent is a page's title, flattened properties and body text.
type PageContent struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	URL        string            `json:"url,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Text       string            `json:"text"`
}

// GetPageContent reads a page and renders its top-level blocks as plain text.
func (c *Client) GetPageContent(ctx context.Context, pageID string) (*PageContent, error) {
	page, err := c.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	blocks, err := c.ListBlockChildren(ctx, page.ID)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if line := BlockText(b); line != "" {
			lines = append(lines, line)
		}
	}
	return &PageContent{
		ID:         page.ID,
		Title:      page.GetTitle(),
		URL:        page.URL,
		Properties: page.Flatten(),
		Text:       strings.Join(lines, "\n"),
	}, nil
}

// normalizeID accepts bare IDs as well as notion.so URLs ending in the 32-hex-char ID.
func normalizeID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", &RemoteValidationError{Code: "validation_error", Message: "id is empty"}
	}
	if strings.Contains(id, "notion.so/") || strings.Contains(id, "notion.site/") {
		id = id[strings.LastIndex(id, "/")+1:]
		if q := strings.IndexAny(id, "?#"); q >= 0 {
			id = id[:q]
		}
		if dash := strings.LastIndex(id, "-"); dash >= 0 && len(id)-dash-1 == 32 {
			id = id[dash+1:]
		}
	}
	if strings.ContainsAny(id, "/?#") {
		return "", &RemoteValidationError{Code: "validation_error", Message: fmt.Sprintf("%q is not a valid Notion id", raw)}
	}
	return id, nil
}
