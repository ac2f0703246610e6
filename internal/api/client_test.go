package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, nil)
	require.NoError(t, err)
	return c
}

func TestLogin_StoresSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cr3t", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil || cookie.Value != "s3cr3t" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id": "u1", "name": "Ada", "email": "ada@example.com"}`))
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "ada@example.com", "pw"))

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
}

func TestConversations_AcceptsBothIDSpellings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"_id": "abc123", "title": "Mongo style", "created_at": "2025-06-01T10:00:00Z"},
			{"id": "def456", "title": "Plain style", "created_at": "2025-06-02T10:00:00Z"}
		]`))
	})

	c := newTestClient(t, mux)
	convs, err := c.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "abc123", convs[0].ID)
	assert.Equal(t, "def456", convs[1].ID)
}

func TestMessages_RehydratesToolSteps(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations/c1/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"role": "user", "content": "weather in oslo?", "timestamp": "2025-06-01T10:00:00Z"},
			{"role": "assistant", "content": "Rainy.", "timestamp": "2025-06-01T10:00:05Z",
			 "tool_steps": [{"name": "get_weather", "args": {"city": "oslo"}, "result": "rain"}]}
		]`))
	})

	c := newTestClient(t, mux)
	entries, err := c.Messages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "user", entries[0].Role)
	assert.False(t, entries[0].Streaming)

	require.Len(t, entries[1].Invocations, 1)
	inv := entries[1].Invocations[0]
	assert.Equal(t, "get_weather", inv.Name)
	assert.Equal(t, "completed", inv.Status)
	assert.JSONEq(t, `"rain"`, string(inv.Result))
}

func TestTools_UnwrapsEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tools", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tools": [
			{"tool_id": "web_search", "name": "Web Search", "category": "search", "requires_auth": false},
			{"tool_id": "drive_list", "name": "Drive List", "category": "google_drive", "requires_auth": true}
		]}`))
	})

	c := newTestClient(t, mux)
	tools, err := c.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "web_search", tools[0].ID)
	assert.True(t, tools[1].RequiresAuth)
}

func TestServerLifecycle(t *testing.T) {
	var (
		updatedBody  string
		connectedURL string
		deleted      bool
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp-servers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "srv1", "name": "notes", "url": "http://localhost:9000/mcp"}`))
	})
	mux.HandleFunc("PUT /mcp-servers/srv1", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		updatedBody = string(body)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /mcp-servers/srv1/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /mcp/connect", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			URL string `json:"mcp_server_url"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		connectedURL = payload.URL
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("DELETE /mcp-servers/srv1", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		w.WriteHeader(http.StatusOK)
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	srv, err := c.AddServer(ctx, "notes", "http://localhost:9000/mcp")
	require.NoError(t, err)
	assert.Equal(t, "srv1", srv.ID)

	srv.Name = "notes v2"
	require.NoError(t, c.UpdateServer(ctx, srv))
	assert.JSONEq(t, `{"name": "notes v2", "url": "http://localhost:9000/mcp"}`, updatedBody)

	require.NoError(t, c.TestServer(ctx, srv.ID))
	require.NoError(t, c.Connect(ctx, srv.URL))
	assert.Equal(t, srv.URL, connectedURL)

	require.NoError(t, c.DeleteServer(ctx, srv.ID))
	assert.True(t, deleted)
}

func TestDo_SurfacesErrorBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("not logged in"))
	})

	c := newTestClient(t, mux)
	_, err := c.Conversations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "not logged in")
}
