package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentx/internal/models"
	"agentx/internal/selection"
)

func TestSelectionStore_RoundTrip(t *testing.T) {
	db, err := openAt(filepath.Join(t.TempDir(), "agentx.db"))
	require.NoError(t, err)
	defer db.Close()

	store := NewSelectionStore(db)

	// Fresh database: nothing stored yet.
	saved, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, saved.Tools)
	assert.Empty(t, saved.Model)

	want := selection.Saved{
		Tools:   []string{"web_search", "calculator"},
		Servers: []models.MCPServer{{ID: "m1", Name: "files", URL: "https://mcp.example.com"}},
		Model:   "gemini-2.5-flash",
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Saving again overwrites in place.
	want.Model = "gpt-4o"
	require.NoError(t, store.Save(want))
	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
}

func TestSelectionStore_CorruptValueTreatedAsEmpty(t *testing.T) {
	db, err := openAt(filepath.Join(t.TempDir(), "agentx.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("INSERT INTO selection(key, value) VALUES(?, ?)", selectionKey, "{broken")
	require.NoError(t, err)

	saved, err := NewSelectionStore(db).Load()
	require.NoError(t, err)
	assert.Empty(t, saved.Tools)
}

func TestReplaceConversations_SwapsCache(t *testing.T) {
	db, err := openAt(filepath.Join(t.TempDir(), "agentx.db"))
	require.NoError(t, err)
	defer db.Close()

	first := []models.Conversation{
		{ID: "c1", Title: "old one", CreatedAt: time.Unix(1000, 0)},
		{ID: "c2", Title: "older one", CreatedAt: time.Unix(500, 0)},
	}
	require.NoError(t, ReplaceConversations(db, first))

	cached, err := CachedConversations(db)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, "c1", cached[0].ID)

	second := []models.Conversation{
		{ID: "c3", Title: "fresh", CreatedAt: time.Unix(2000, 0)},
	}
	require.NoError(t, ReplaceConversations(db, second))

	cached, err = CachedConversations(db)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "c3", cached[0].ID)
}
