package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentx/internal/models"
)

type memPersister struct {
	saved   Saved
	loadErr error
	saves   int
}

func (m *memPersister) Load() (Saved, error) { return m.saved, m.loadErr }

func (m *memPersister) Save(s Saved) error {
	m.saved = s
	m.saves++
	return nil
}

type recordingConnector struct {
	connected    []string
	disconnected []string
	err          error
}

func (c *recordingConnector) Connect(_ context.Context, url string) error {
	c.connected = append(c.connected, url)
	return c.err
}

func (c *recordingConnector) Disconnect(_ context.Context, url string) error {
	c.disconnected = append(c.disconnected, url)
	return c.err
}

func TestNew_FiltersStoredToolIDs(t *testing.T) {
	p := &memPersister{saved: Saved{
		Tools: []string{"web_search", "mcp:filesystem", "Has Space", "UPPER", "calculator"},
		Model: "gpt-4o",
	}}
	s, err := New(p, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"web_search", "calculator"}, s.EnabledTools())
	assert.Equal(t, "gpt-4o", s.Model())
}

func TestNew_DefaultsModelWhenUnset(t *testing.T) {
	s, err := New(&memPersister{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, s.Model())
}

func TestApplyDefaults_SeedsFromRegistry(t *testing.T) {
	registry := []models.Tool{
		{ID: "web_search", Category: "search", RequiresAuth: false},
		{ID: "drive_list", Category: "google_drive", RequiresAuth: true},
		{ID: "gmail_send", Category: "gmail", RequiresAuth: true},
	}

	p := &memPersister{}
	s, err := New(p, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.ApplyDefaults(registry, false))
	assert.Equal(t, []string{"web_search"}, s.EnabledTools())

	// Linked Drive pulls in the google_drive category but nothing else
	// auth-gated.
	p2 := &memPersister{}
	s2, err := New(p2, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s2.ApplyDefaults(registry, true))
	assert.Equal(t, []string{"web_search", "drive_list"}, s2.EnabledTools())
}

func TestApplyDefaults_LeavesExistingSelectionAlone(t *testing.T) {
	p := &memPersister{saved: Saved{Tools: []string{"calculator"}}}
	s, err := New(p, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.ApplyDefaults([]models.Tool{{ID: "web_search"}}, false))
	assert.Equal(t, []string{"calculator"}, s.EnabledTools())
	assert.Zero(t, p.saves)
}

func TestToggleTool_PersistsEachFlip(t *testing.T) {
	p := &memPersister{}
	s, err := New(p, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.ToggleTool("web_search"))
	assert.True(t, s.ToolEnabled("web_search"))
	assert.Equal(t, []string{"web_search"}, p.saved.Tools)

	require.NoError(t, s.ToggleTool("web_search"))
	assert.False(t, s.ToolEnabled("web_search"))
	assert.Empty(t, p.saved.Tools)
	assert.Equal(t, 2, p.saves)
}

func TestToggleServer_ConnectsAndDisconnects(t *testing.T) {
	conn := &recordingConnector{}
	s, err := New(&memPersister{}, conn, nil)
	require.NoError(t, err)

	srv := models.MCPServer{ID: "m1", Name: "files", URL: "https://mcp.example.com"}
	ctx := context.Background()

	require.NoError(t, s.ToggleServer(ctx, srv))
	assert.True(t, s.ServerSelected("m1"))
	assert.Equal(t, []string{"https://mcp.example.com"}, s.ServerURLs())
	assert.Equal(t, []string{"https://mcp.example.com"}, conn.connected)

	require.NoError(t, s.ToggleServer(ctx, srv))
	assert.False(t, s.ServerSelected("m1"))
	assert.Empty(t, s.ServerURLs())
	assert.Equal(t, []string{"https://mcp.example.com"}, conn.disconnected)
}

func TestToggleServer_ConnectorFailureDoesNotUndoToggle(t *testing.T) {
	conn := &recordingConnector{err: errors.New("unreachable")}
	p := &memPersister{}
	s, err := New(p, conn, nil)
	require.NoError(t, err)

	srv := models.MCPServer{ID: "m1", URL: "https://mcp.example.com"}
	require.NoError(t, s.ToggleServer(context.Background(), srv))
	assert.True(t, s.ServerSelected("m1"))
	require.Len(t, p.saved.Servers, 1)
}

func TestSetModel_Persists(t *testing.T) {
	p := &memPersister{}
	s, err := New(p, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetModel("claude-sonnet-4"))
	assert.Equal(t, "claude-sonnet-4", s.Model())
	assert.Equal(t, "claude-sonnet-4", p.saved.Model)
}
