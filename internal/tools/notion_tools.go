// In file: internal/tools/notion_tools.go
package tools

import (
	"context"
	"fmt"

	"github.com/dileep-u-k/notion-assistant/internal/notion"
)

// NotionAPI is the subset of *notion.Client the tools depend on.
type NotionAPI interface {
	Search(ctx context.Context, params notion.SearchParams) (*notion.SearchResult, error)
	QueryDatabase(ctx context.Context, databaseID string, params notion.QueryParams) (*notion.QueryResult, error)
	CreatePage(ctx context.Context, params notion.CreatePageParams) (*notion.Object, error)
	UpdatePage(ctx context.Context, pageID string, properties map[string]any) (*notion.Object, error)
	AppendBlocks(ctx context.Context, blockID string, blocks []notion.Block) ([]notion.Block, error)
	GetPageContent(ctx context.Context, pageID string) (*notion.PageContent, error)
}

var _ NotionAPI = (*notion.Client)(nil)

// RegisterNotionTools registers every Notion tool against the given client.
func RegisterNotionTools(r *Registry, api NotionAPI) error {
	for _, t := range []ToolExecutor{
		&SearchTool{api: api},
		&QueryDatabaseTool{api: api},
		&CreatePageTool{api: api},
		&UpdatePageTool{api: api},
		&AppendBlocksTool{api: api},
		&GetPageTool{api: api},
	} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// ObjectSummary is the compact view of a page or database returned to the model. Pages
// also carry their id as page_id, the argument name the page tools expect.
type ObjectSummary struct {
	ID         string            `json:"id"`
	PageID     string            `json:"page_id,omitempty"`
	Object     string            `json:"object"`
	Title      string            `json:"title"`
	URL        string            `json:"url,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

func summarize(o notion.Object) ObjectSummary {
	s := ObjectSummary{ID: o.ID, Object: o.Object, Title: o.GetTitle(), URL: o.URL}
	if o.Object == "database" {
		return s
	}
	s.PageID = o.ID
	if len(o.Properties) > 0 {
		s.Properties = o.Flatten()
	}
	return s
}

func summarizeAll(objs []notion.Object) []ObjectSummary {
	out := make([]ObjectSummary, 0, len(objs))
	for _, o := range objs {
		out = append(out, summarize(o))
	}
	return out
}

// --- search ---

// SearchTool finds pages and databases by title.
type SearchTool struct{ api NotionAPI }

func (t *SearchTool) Definition() Tool {
	return NewFunctionTool(
		"search",
		"Search the Notion workspace for pages and databases whose title matches the query. Use this to find the id of a page or database before reading or changing it.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"query":  {Type: "string", Description: "Text to look for in titles. Empty returns everything shared with the integration."},
				"filter": {Type: "string", Description: "Restrict results to one kind of object.", Enum: []string{"page", "database"}},
			},
		},
	)
}

func (t *SearchTool) Execute(ctx context.Context, args Arguments) (any, error) {
	params := notion.SearchParams{Query: args.Text("query")}
	if f := args.Text("filter"); f != "" {
		params.Filter = &notion.SearchFilter{Property: "object", Value: f}
	}
	res, err := t.api.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": summarizeAll(res.Results), "has_more": res.HasMore}, nil
}

// --- query_database ---

// QueryDatabaseTool lists the rows of a database.
type QueryDatabaseTool struct{ api NotionAPI }

func (t *QueryDatabaseTool) Definition() Tool {
	return NewFunctionTool(
		"query_database",
		"List entries of a Notion database, optionally filtered and sorted using Notion's filter and sort objects.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"database_id": {Type: "string", Description: "The id of the database to query."},
				"filter":      {Type: "object", Description: "A Notion database filter object, e.g. {\"property\":\"Done\",\"checkbox\":{\"equals\":false}}."},
				"sorts": {
					Type:        "array",
					Description: "Notion sort objects, e.g. [{\"property\":\"Due\",\"direction\":\"ascending\"}].",
					Items:       &JSONSchema{Type: "object"},
				},
				"page_size": {Type: "integer", Description: "Maximum number of entries to return (1-100)."},
			},
			Required: []string{"database_id"},
		},
	)
}

func (t *QueryDatabaseTool) Execute(ctx context.Context, args Arguments) (any, error) {
	params := notion.QueryParams{}
	if args.Has("filter") {
		params.Filter = args.Plain("filter")
	}
	if sorts, ok := args["sorts"].Array(); ok {
		for _, s := range sorts {
			m, _ := s.Interface().(map[string]any)
			params.Sorts = append(params.Sorts, notion.Sort{
				Property:  fmt.Sprint(orEmpty(m["property"])),
				Timestamp: fmt.Sprint(orEmpty(m["timestamp"])),
				Direction: fmt.Sprint(orDefault(m["direction"], "ascending")),
			})
		}
	}
	if n, ok := args.Number("page_size"); ok {
		params.PageSize = min(max(int(n), 1), 100)
	}

	res, err := t.api.QueryDatabase(ctx, args.Text("database_id"), params)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": summarizeAll(res.Results), "has_more": res.HasMore}, nil
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func orDefault(v any, def string) any {
	if v == nil || v == "" {
		return def
	}
	return v
}

// --- create_page ---

// CreatePageTool adds an entry to a database.
type CreatePageTool struct{ api NotionAPI }

func (t *CreatePageTool) Definition() Tool {
	return NewFunctionTool(
		"create_page",
		"Create a new entry in a Notion database. Property values may be plain values (text, numbers, true/false, dates as YYYY-MM-DD, lists for multi-select); they are converted using the database schema.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"database_id": {Type: "string", Description: "The id of the database to add the entry to."},
				"properties":  {Type: "object", Description: "Property name to value, e.g. {\"Name\":\"Buy milk\",\"Done\":false}."},
				"content":     {Type: "string", Description: "Optional page body as simple markdown (headings, bullets, [ ] to-dos, quotes)."},
			},
			Required: []string{"database_id", "properties"},
		},
	)
}

func (t *CreatePageTool) Execute(ctx context.Context, args Arguments) (any, error) {
	params := notion.CreatePageParams{
		DatabaseID: args.Text("database_id"),
		Properties: args.PlainMap("properties"),
	}
	if content := args.Text("content"); content != "" {
		params.Children = notion.BlocksFromMarkdown(content)
	}
	page, err := t.api.CreatePage(ctx, params)
	if err != nil {
		return nil, err
	}
	return summarize(*page), nil
}

// --- update_page ---

// UpdatePageTool changes properties of an existing page.
type UpdatePageTool struct{ api NotionAPI }

func (t *UpdatePageTool) Definition() Tool {
	return NewFunctionTool(
		"update_page",
		"Update properties of an existing Notion page, for example marking a task done or changing its status.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"page_id":    {Type: "string", Description: "The id of the page to update."},
				"properties": {Type: "object", Description: "Property name to new value, e.g. {\"Done\":true}."},
			},
			Required: []string{"page_id", "properties"},
		},
	)
}

func (t *UpdatePageTool) Execute(ctx context.Context, args Arguments) (any, error) {
	page, err := t.api.UpdatePage(ctx, args.Text("page_id"), args.PlainMap("properties"))
	if err != nil {
		return nil, err
	}
	return summarize(*page), nil
}

// --- append_blocks ---

// AppendBlocksTool adds content to the end of a page.
type AppendBlocksTool struct{ api NotionAPI }

func (t *AppendBlocksTool) Definition() Tool {
	return NewFunctionTool(
		"append_blocks",
		"Append content to the end of a Notion page. Content is simple markdown: '# ' headings, '- ' bullets, '1. ' numbered items, '[ ] ' or '[x] ' to-dos, '> ' quotes, '---' dividers; other lines become paragraphs.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"page_id": {Type: "string", Description: "The id of the page (or block) to append to."},
				"content": {Type: "string", Description: "The content to append."},
			},
			Required: []string{"page_id", "content"},
		},
	)
}

func (t *AppendBlocksTool) Execute(ctx context.Context, args Arguments) (any, error) {
	blocks := notion.BlocksFromMarkdown(args.Text("content"))
	if len(blocks) == 0 {
		return nil, &ArgumentValidationError{Tool: "append_blocks", Argument: "content", Reason: "contains no text"}
	}
	created, err := t.api.AppendBlocks(ctx, args.Text("page_id"), blocks)
	if err != nil {
		return nil, err
	}
	return map[string]any{"appended_blocks": len(created)}, nil
}

// --- get_page ---

// GetPageTool reads a page's properties and text content.
type GetPageTool struct{ api NotionAPI }

func (t *GetPageTool) Definition() Tool {
	return NewFunctionTool(
		"get_page",
		"Read a Notion page: its title, properties and text content.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"page_id": {Type: "string", Description: "The id of the page to read."},
			},
			Required: []string{"page_id"},
		},
	)
}

func (t *GetPageTool) Execute(ctx context.Context, args Arguments) (any, error) {
	return t.api.GetPageContent(ctx, args.Text("page_id"))
}
