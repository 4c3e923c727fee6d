// In file: internal/knowledge/loader.go

// Package knowledge loads Notion pages chosen by the user, and every database shared with
// the integration, into memory as reference material. Questions about that content can
// then be answered from retrieved memories without a tool round.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dileep-u-k/notion-assistant/internal/memory"
	"github.com/dileep-u-k/notion-assistant/internal/notion"
)

const (
	maxListed       = 100
	maxRows         = 100
	loadConcurrency = 4
	untitled        = "Untitled"

	// ContentHeader prefixes every stored knowledge entry.
	ContentHeader = "Notion Knowledge Base Content:\n"
)

var rule = strings.Repeat("=", 60)

// Notion is the subset of *notion.Client the loader reads with.
type Notion interface {
	Search(ctx context.Context, params notion.SearchParams) (*notion.SearchResult, error)
	QueryDatabase(ctx context.Context, databaseID string, params notion.QueryParams) (*notion.QueryResult, error)
	GetPageContent(ctx context.Context, pageID string) (*notion.PageContent, error)
}

var _ Notion = (*notion.Client)(nil)

// Memory stores loaded content.
type Memory interface {
	Store(ctx context.Context, conversationID string, turn memory.Turn) error
}

// PageRef is a page the user can choose to load.
type PageRef struct {
	ID    string
	Title string
	URL   string
}

// Kind is the type of a loaded source.
type Kind string

const (
	KindDatabase Kind = "database"
	KindPage     Kind = "page"
)

// Source is one database or page read during a load. Err is set when it could not be read.
type Source struct {
	Kind  Kind
	ID    string
	Title string
	Text  string
	Err   error
}

// Snapshot is the result of one load.
type Snapshot struct {
	Sources  []Source
	Stored   int
	LoadedAt time.Time
}

// Loaded returns the sources of the given kind that were read successfully.
func (s *Snapshot) Loaded(kind Kind) []Source {
	var out []Source
	for _, src := range s.Sources {
		if src.Kind == kind && src.Err == nil {
			out = append(out, src)
		}
	}
	return out
}

// Failed returns the sources that could not be read.
func (s *Snapshot) Failed() []Source {
	var out []Source
	for _, src := range s.Sources {
		if src.Err != nil {
			out = append(out, src)
		}
	}
	return out
}

// Empty reports whether nothing was loaded.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Loaded(KindDatabase))+len(s.Loaded(KindPage)) == 0
}

// Content renders everything loaded as one document, databases first.
func (s *Snapshot) Content() string {
	var sb strings.Builder
	for _, section := range []struct {
		kind  Kind
		title string
	}{{KindDatabase, "NOTION DATABASES:"}, {KindPage, "NOTION PAGES:"}} {
		loaded := s.Loaded(section.kind)
		if len(loaded) == 0 {
			continue
		}
		sb.WriteString(section.title + "\n" + rule + "\n")
		for _, src := range loaded {
			sb.WriteString(src.Text)
			sb.WriteString("\n\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Loader reads Notion content and stores it in memory.
type Loader struct {
	notion Notion
	mem    Memory
	log    zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader(n Notion, mem Memory, log zerolog.Logger) *Loader {
	return &Loader{notion: n, mem: mem, log: log.With().Str("component", "knowledge").Logger()}
}

// Pages lists the pages shared with the integration, as search returns them.
func (l *Loader) Pages(ctx context.Context) ([]PageRef, error) {
	objs, err := l.list(ctx, "page")
	if err != nil {
		return nil, err
	}
	pages := make([]PageRef, 0, len(objs))
	for _, o := range objs {
		pages = append(pages, PageRef{ID: o.ID, Title: titleOf(o.GetTitle()), URL: o.URL})
	}
	return pages, nil
}

// Load reads the given pages, and every shared database when includeDatabases is set,
// then stores each source as a separate memory entry for the conversation. Sources that
// cannot be read are reported in the snapshot; an invalid Notion credential fails the
// whole load and nothing is stored.
func (l *Loader) Load(ctx context.Context, conversationID string, pages []PageRef, includeDatabases bool) (*Snapshot, error) {
	snap := &Snapshot{LoadedAt: time.Now().UTC()}

	if includeDatabases {
		dbs, err := l.list(ctx, "database")
		var authErr *notion.AuthError
		switch {
		case errors.As(err, &authErr):
			return nil, err
		case err != nil:
			l.log.Warn().Err(err).Msg("could not list databases")
			snap.Sources = append(snap.Sources, Source{Kind: KindDatabase, Title: "database list", Err: err})
		}
		start := len(snap.Sources)
		for _, db := range dbs {
			snap.Sources = append(snap.Sources, Source{Kind: KindDatabase, ID: db.ID, Title: titleOf(db.GetTitle())})
		}
		l.readDatabases(ctx, snap.Sources[start:], dbs)
	}

	start := len(snap.Sources)
	for _, p := range pages {
		snap.Sources = append(snap.Sources, Source{Kind: KindPage, ID: p.ID, Title: titleOf(p.Title)})
	}
	l.readPages(ctx, snap.Sources[start:])

	for _, src := range snap.Sources {
		var authErr *notion.AuthError
		if errors.As(src.Err, &authErr) {
			return nil, src.Err
		}
	}

	for _, src := range snap.Sources {
		if src.Err != nil {
			continue
		}
		// No ID: the adapter derives one from the content, so reloading unchanged content
		// stores nothing new.
		turn := memory.Turn{Role: memory.RoleSystem, Content: ContentHeader + src.Text, Timestamp: snap.LoadedAt}
		if err := l.mem.Store(ctx, conversationID, turn); err != nil {
			l.log.Warn().Err(err).Str("source", src.Title).Msg("could not store loaded content")
			continue
		}
		snap.Stored++
	}
	l.log.Info().
		Int("databases", len(snap.Loaded(KindDatabase))).
		Int("pages", len(snap.Loaded(KindPage))).
		Int("failed", len(snap.Failed())).
		Int("stored", snap.Stored).
		Msg("notion content loaded")
	return snap, nil
}

// readDatabases fills in sources[i] from dbs[i].
func (l *Loader) readDatabases(ctx context.Context, sources []Source, dbs []notion.Object) {
	var g errgroup.Group
	g.SetLimit(loadConcurrency)
	for i := range dbs {
		g.Go(func() error {
			sources[i].Text, sources[i].Err = l.readDatabase(ctx, dbs[i])
			return nil
		})
	}
	_ = g.Wait()
}

func (l *Loader) readPages(ctx context.Context, sources []Source) {
	var g errgroup.Group
	g.SetLimit(loadConcurrency)
	for i := range sources {
		g.Go(func() error {
			sources[i].Text, sources[i].Err = l.readPage(ctx, sources[i].ID)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *Loader) readDatabase(ctx context.Context, db notion.Object) (string, error) {
	rows, err := l.notion.QueryDatabase(ctx, db.ID, notion.QueryParams{PageSize: maxRows})
	if err != nil {
		return "", fmt.Errorf("query database %s: %w", db.ID, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Database: %s\n", titleOf(db.GetTitle()))
	if len(db.Schema) > 0 {
		sb.WriteString("Properties:\n")
		for _, name := range sortedKeys(db.Schema) {
			fmt.Fprintf(&sb, "- %s (%s)\n", name, db.Schema[name].Type)
		}
	}
	fmt.Fprintf(&sb, "Entries (%d):\n", len(rows.Results))
	for _, row := range rows.Results {
		sb.WriteString(strings.Repeat("-", 40) + "\n")
		values := row.Flatten()
		for _, name := range sortedKeys(values) {
			if values[name] != "" {
				fmt.Fprintf(&sb, "%s: %s\n", name, values[name])
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (l *Loader) readPage(ctx context.Context, id string) (string, error) {
	page, err := l.notion.GetPageContent(ctx, id)
	if err != nil {
		return "", fmt.Errorf("read page %s: %w", id, err)
	}

	var sb strings.Builder
	title := titleOf(page.Title)
	fmt.Fprintf(&sb, "PAGE: %s\n", title)
	if page.URL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", page.URL)
	}
	for _, name := range sortedKeys(page.Properties) {
		if v := page.Properties[name]; v != "" && v != page.Title {
			fmt.Fprintf(&sb, "%s: %s\n", name, v)
		}
	}
	if page.Text != "" {
		sb.WriteString("\n" + page.Text)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// list returns up to maxListed search results of one object kind, following pagination.
func (l *Loader) list(ctx context.Context, kind string) ([]notion.Object, error) {
	var out []notion.Object
	params := notion.SearchParams{
		Filter:   &notion.SearchFilter{Property: "object", Value: kind},
		PageSize: maxListed,
	}
	for {
		res, err := l.notion.Search(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list %ss: %w", kind, err)
		}
		for _, o := range res.Results {
			if o.Object == kind {
				out = append(out, o)
			}
		}
		if !res.HasMore || res.NextCursor == "" || len(out) >= maxListed {
			break
		}
		params.StartCursor = res.NextCursor
	}
	if len(out) > maxListed {
		out = out[:maxListed]
	}
	return out, nil
}

func titleOf(t string) string {
	if strings.TrimSpace(t) == "" {
		return untitled
	}
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
