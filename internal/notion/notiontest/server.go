// In file: internal/notion/notiontest/server.go

// Package notiontest provides an in-memory Notion API server for tests. It implements the
// endpoints used by package notion closely enough for round-trip tests: databases with a
// schema, pages created in them, property updates, block children and title search.
// Database query filters and sorts are accepted but ignored.
package notiontest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dileep-u-k/notion-assistant/internal/notion"
)

// Token is the integration token the server accepts.
const Token = "secret_notiontest"

// Server is an in-memory Notion API.
type Server struct {
	*httptest.Server

	hits atomic.Int64

	mu        sync.Mutex
	databases map[string]*notion.Database
	pages     map[string]*notion.Object
	children  map[string][]notion.Block
	order     []string
}

// NewServer starts a server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		databases: make(map[string]*notion.Database),
		pages:     make(map[string]*notion.Object),
		children:  make(map[string][]notion.Block),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /databases/{id}", s.getDatabase)
	mux.HandleFunc("POST /databases/{id}/query", s.queryDatabase)
	mux.HandleFunc("POST /pages", s.createPage)
	mux.HandleFunc("GET /pages/{id}", s.getPage)
	mux.HandleFunc("PATCH /pages/{id}", s.updatePage)
	mux.HandleFunc("PATCH /blocks/{id}/children", s.appendChildren)
	mux.HandleFunc("GET /blocks/{id}/children", s.listChildren)
	mux.HandleFunc("POST /search", s.search)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "API token is invalid.")
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return s
}

// Hits is the number of requests received so far, including rejected ones.
func (s *Server) Hits() int64 { return s.hits.Load() }

// AddDatabase registers a database with the given title and schema (property name → type).
func (s *Server) AddDatabase(id, title string, schema map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	props := make(map[string]notion.PropertySchema, len(schema))
	for name, typ := range schema {
		props[name] = notion.PropertySchema{ID: name, Name: name, Type: typ}
	}
	s.databases[id] = &notion.Database{
		Object:     "database",
		ID:         id,
		Title:      []notion.RichText{{Type: "text", PlainText: title}},
		Properties: props,
	}
}

// AddPage registers a standalone page (workspace parent) whose body is the given
// markdown-ish text. It returns the page ID.
func (s *Server) AddPage(title, body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	s.pages[id] = &notion.Object{
		Object:         "page",
		ID:             id,
		CreatedTime:    now,
		LastEditedTime: now,
		Properties: map[string]notion.Property{
			"title": {ID: "title", Type: "title", Title: []notion.RichText{{Type: "text", PlainText: title}}},
		},
		URL:    "https://www.notion.so/" + strings.ReplaceAll(id, "-", ""),
		Parent: notion.Parent{Type: "workspace", Workspace: true},
	}
	s.order = append(s.order, id)
	s.children[id] = withIDs(notion.BlocksFromMarkdown(body))
	return id
}

// Page returns a copy of a stored page.
func (s *Server) Page(id string) (notion.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return notion.Object{}, false
	}
	return *p, true
}

// Children returns the blocks appended to a page.
func (s *Server) Children(id string) []notion.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notion.Block(nil), s.children[id]...)
}

func (s *Server) getDatabase(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	db, ok := s.databases[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeNotFound(w, r.PathValue("id"))
		return
	}
	writeJSON(w, db)
}

func (s *Server) queryDatabase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.databases[id]; !ok {
		writeNotFound(w, id)
		return
	}
	results := []notion.Object{}
	for _, pid := range s.order {
		if p := s.pages[pid]; p.Parent.DatabaseID == id && !p.Archived {
			results = append(results, *p)
		}
	}
	writeJSON(w, notion.QueryResult{Object: "list", Results: results})
}

type createBody struct {
	Parent     notion.Parent              `json:"parent"`
	Properties map[string]json.RawMessage `json:"properties"`
	Children   []notion.Block             `json:"children"`
}

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.databases[body.Parent.DatabaseID]
	if !ok {
		writeNotFound(w, body.Parent.DatabaseID)
		return
	}
	props, msg := decodeProperties(db.Properties, body.Properties)
	if msg != "" {
		writeError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}

	// Notion returns every schema property on a page, set or not.
	for name, def := range db.Properties {
		if _, set := props[name]; !set {
			props[name] = notion.Property{ID: def.ID, Type: def.Type}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	page := &notion.Object{
		Object:         "page",
		ID:             id,
		CreatedTime:    now,
		LastEditedTime: now,
		Properties:     props,
		URL:            "https://www.notion.so/" + strings.ReplaceAll(id, "-", ""),
		Parent:         notion.Parent{Type: "database_id", DatabaseID: db.ID},
	}
	s.pages[id] = page
	s.order = append(s.order, id)
	s.children[id] = withIDs(body.Children)
	writeJSON(w, page)
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.pages[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeNotFound(w, r.PathValue("id"))
		return
	}
	writeJSON(w, p)
}

func (s *Server) updatePage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[r.PathValue("id")]
	if !ok {
		writeNotFound(w, r.PathValue("id"))
		return
	}
	schema := make(map[string]notion.PropertySchema, len(p.Properties))
	for name, prop := range p.Properties {
		schema[name] = notion.PropertySchema{Name: name, Type: prop.Type}
	}
	props, msg := decodeProperties(schema, body.Properties)
	if msg != "" {
		writeError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}
	for name, prop := range props {
		p.Properties[name] = prop
	}
	p.LastEditedTime = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, p)
}

func (s *Server) appendChildren(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Children []notion.Block `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if len(body.Children) > 100 {
		writeError(w, http.StatusBadRequest, "validation_error", "body.children.length should be ≤ 100")
		return
	}

	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[id]; !ok {
		writeNotFound(w, id)
		return
	}
	added := withIDs(body.Children)
	s.children[id] = append(s.children[id], added...)
	writeJSON(w, notion.List[notion.Block]{Object: "list", Results: added})
}

func (s *Server) listChildren(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[id]; !ok {
		writeNotFound(w, id)
		return
	}
	blocks := append([]notion.Block{}, s.children[id]...)
	writeJSON(w, notion.List[notion.Block]{Object: "list", Results: blocks})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var params notion.SearchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	query := strings.ToLower(params.Query)
	want := ""
	if params.Filter != nil {
		want = params.Filter.Value
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Databases are listed with their schema, as the real API does.
	results := []any{}
	if want == "" || want == "database" {
		ids := make([]string, 0, len(s.databases))
		for id := range s.databases {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			db := s.databases[id]
			obj := notion.Object{Title: db.Title}
			if strings.Contains(strings.ToLower(obj.GetTitle()), query) {
				results = append(results, db)
			}
		}
	}
	if want == "" || want == "page" {
		for _, pid := range s.order {
			p := s.pages[pid]
			if strings.Contains(strings.ToLower(p.GetTitle()), query) {
				results = append(results, p)
			}
		}
	}
	writeJSON(w, map[string]any{"object": "list", "results": results, "has_more": false})
}

// decodeProperties checks each payload against the schema and fills plain_text the way
// Notion does in its responses.
func decodeProperties(schema map[string]notion.PropertySchema, raw map[string]json.RawMessage) (map[string]notion.Property, string) {
	out := make(map[string]notion.Property, len(raw))
	for name, payload := range raw {
		def, ok := schema[name]
		if !ok {
			return nil, name + " is not a property that exists."
		}
		var prop notion.Property
		if err := json.Unmarshal(payload, &prop); err != nil {
			return nil, "body.properties." + name + " is invalid: " + err.Error()
		}
		prop.Type = def.Type
		prop.ID = def.ID
		fillPlainText(prop.Title)
		fillPlainText(prop.RichText)
		out[name] = prop
	}
	return out, ""
}

func fillPlainText(parts []notion.RichText) {
	for i := range parts {
		if parts[i].PlainText == "" && parts[i].Text != nil {
			parts[i].PlainText = parts[i].Text.Content
		}
	}
}

func withIDs(blocks []notion.Block) []notion.Block {
	out := make([]notion.Block, len(blocks))
	for i, b := range blocks {
		b.Object = "block"
		b.ID = uuid.NewString()
		if tb := textOf(&b); tb != nil {
			fillPlainText(tb.RichText)
		}
		out[i] = b
	}
	return out
}

func textOf(b *notion.Block) *notion.TextBlock {
	for _, tb := range []*notion.TextBlock{
		b.Paragraph, b.Heading1, b.Heading2, b.Heading3, b.BulletedListItem,
		b.NumberedListItem, b.ToDo, b.Quote, b.Code,
	} {
		if tb != nil {
			return tb
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter, id string) {
	writeError(w, http.StatusNotFound, "object_not_found",
		"Could not find object with ID: "+id+". Make sure the relevant pages and databases are shared with your integration.")
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(notion.ErrorResponse{Object: "error", Status: status, Code: code, Message: msg})
}
