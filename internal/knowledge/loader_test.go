package knowledge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/notion-assistant/internal/memory"
	"github.com/dileep-u-k/notion-assistant/internal/notion"
	"github.com/dileep-u-k/notion-assistant/internal/notion/notiontest"
)

type recordingMemory struct {
	mu      sync.Mutex
	stored  []memory.Turn
	ids     []string
	failAll bool
}

func (m *recordingMemory) Store(_ context.Context, conversationID string, turn memory.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("mem0 unavailable")
	}
	m.stored = append(m.stored, turn)
	m.ids = append(m.ids, conversationID)
	return nil
}

func newTestLoader(t *testing.T, token string) (*Loader, *recordingMemory, *notiontest.Server, *notion.Client) {
	t.Helper()
	srv := notiontest.NewServer()
	t.Cleanup(srv.Close)

	client, err := notion.NewClient(token, notion.WithBaseURL(srv.URL), notion.WithRetry(1, time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	mem := &recordingMemory{}
	return NewLoader(client, mem, zerolog.Nop()), mem, srv, client
}

func seedWorkspace(t *testing.T, srv *notiontest.Server, client *notion.Client) {
	t.Helper()
	srv.AddDatabase("tasks", "Tasks", map[string]string{"Name": "title", "Done": "checkbox"})
	_, err := client.CreatePage(context.Background(), notion.CreatePageParams{
		DatabaseID: "tasks",
		Properties: map[string]any{"Name": "Buy milk", "Done": true},
	})
	require.NoError(t, err)
	srv.AddPage("Trip notes", "# Lisbon\n- book flights")
	srv.AddPage("", "scratch")
}

func TestPagesListsSharedPages(t *testing.T) {
	l, _, srv, client := newTestLoader(t, notiontest.Token)
	seedWorkspace(t, srv, client)

	pages, err := l.Pages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "Buy milk", pages[0].Title)
	assert.Equal(t, "Trip notes", pages[1].Title)
	assert.Equal(t, "Untitled", pages[2].Title)
	assert.NotEmpty(t, pages[1].ID)
}

func TestLoadStoresDatabasesAndSelectedPages(t *testing.T) {
	l, mem, srv, client := newTestLoader(t, notiontest.Token)
	seedWorkspace(t, srv, client)
	ctx := context.Background()

	pages, err := l.Pages(ctx)
	require.NoError(t, err)
	picked, err := ParseSelection("2", len(pages))
	require.NoError(t, err)

	snap, err := l.Load(ctx, "user_ada", []PageRef{pages[picked[0]]}, true)
	require.NoError(t, err)
	assert.False(t, snap.Empty())
	assert.Empty(t, snap.Failed())
	assert.Equal(t, 2, snap.Stored)

	dbs := snap.Loaded(KindDatabase)
	require.Len(t, dbs, 1)
	assert.Equal(t, "Tasks", dbs[0].Title)
	assert.Contains(t, dbs[0].Text, "Database: Tasks")
	assert.Contains(t, dbs[0].Text, "- Done (checkbox)")
	assert.Contains(t, dbs[0].Text, "Name: Buy milk")
	assert.Contains(t, dbs[0].Text, "Done: true")

	loadedPages := snap.Loaded(KindPage)
	require.Len(t, loadedPages, 1)
	assert.Contains(t, loadedPages[0].Text, "PAGE: Trip notes")
	assert.Contains(t, loadedPages[0].Text, "# Lisbon\n• book flights")

	content := snap.Content()
	assert.True(t, strings.HasPrefix(content, "NOTION DATABASES:"))
	assert.Less(t, strings.Index(content, "Database: Tasks"), strings.Index(content, "NOTION PAGES:"))

	require.Len(t, mem.stored, 2)
	for i, turn := range mem.stored {
		assert.Equal(t, "user_ada", mem.ids[i])
		assert.Equal(t, memory.RoleSystem, turn.Role)
		assert.True(t, strings.HasPrefix(turn.Content, ContentHeader))
		assert.Empty(t, turn.ID)
	}
}

func TestLoadReportsUnreadablePages(t *testing.T) {
	l, mem, srv, client := newTestLoader(t, notiontest.Token)
	seedWorkspace(t, srv, client)

	snap, err := l.Load(context.Background(), "user_ada", []PageRef{
		{ID: "0123456789abcdef0123456789abcdef", Title: "Deleted page"},
		{ID: srv.AddPage("Reading list", "Dune"), Title: "Reading list"},
	}, false)
	require.NoError(t, err)

	failed := snap.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "Deleted page", failed[0].Title)
	var nf *notion.NotFoundError
	assert.ErrorAs(t, failed[0].Err, &nf)

	require.Len(t, snap.Loaded(KindPage), 1)
	assert.Empty(t, snap.Loaded(KindDatabase))
	assert.Len(t, mem.stored, 1)
}

func TestLoadWithInvalidCredentialStoresNothing(t *testing.T) {
	l, mem, _, _ := newTestLoader(t, "secret_wrong")

	_, err := l.Load(context.Background(), "user_ada", []PageRef{{ID: "p1", Title: "Anything"}}, true)
	var authErr *notion.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Empty(t, mem.stored)
}

func TestLoadSurvivesMemoryOutage(t *testing.T) {
	l, mem, srv, client := newTestLoader(t, notiontest.Token)
	seedWorkspace(t, srv, client)
	mem.failAll = true

	snap, err := l.Load(context.Background(), "user_ada", nil, true)
	require.NoError(t, err)
	assert.False(t, snap.Empty())
	assert.Zero(t, snap.Stored)
}
