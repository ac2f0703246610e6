// Package api is the HTTP client for the AgentX backend: cookie-based
// auth, conversation CRUD, the tool registry, MCP server management and
// the streaming chat endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"agentx/internal/models"
	"agentx/internal/transcript"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for the backend at baseURL. Sessions are cookie
// based, so the client carries a cookie jar; Login populates it.
func New(baseURL string, logger *slog.Logger) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// User is the authenticated account as reported by the backend.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *Client) Signup(ctx context.Context, name, email, password string) error {
	return c.postJSON(ctx, "/auth/signup", map[string]string{
		"name": name, "email": email, "password": password,
	}, nil)
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.postJSON(ctx, "/auth/login", map[string]string{
		"email": email, "password": password,
	}, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.postJSON(ctx, "/auth/logout", nil, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var u User
	if err := c.getJSON(ctx, "/auth/me", &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// wireConversation tolerates both id spellings the backend has used.
type wireConversation struct {
	MongoID   string    `json:"_id"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func (w wireConversation) toModel() models.Conversation {
	id := w.MongoID
	if id == "" {
		id = w.ID
	}
	return models.Conversation{ID: id, Title: w.Title, CreatedAt: w.CreatedAt}
}

func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var wire []wireConversation
	if err := c.getJSON(ctx, "/conversations", &wire); err != nil {
		return nil, err
	}
	convs := make([]models.Conversation, 0, len(wire))
	for _, w := range wire {
		convs = append(convs, w.toModel())
	}
	return convs, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// wireMessage is one persisted turn as returned by the history fetch.
type wireMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	HasImages bool      `json:"has_images"`
	ToolSteps []struct {
		Name   string          `json:"name"`
		Args   json.RawMessage `json:"args"`
		Result json.RawMessage `json:"result"`
		Status string          `json:"status"`
	} `json:"tool_steps"`
}

// Messages fetches the full history for a conversation and rehydrates
// it into transcript entries. Persisted turns are never streaming.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]transcript.Entry, error) {
	var wire []wireMessage
	if err := c.getJSON(ctx, "/conversations/"+url.PathEscape(conversationID)+"/messages", &wire); err != nil {
		return nil, err
	}

	entries := make([]transcript.Entry, 0, len(wire))
	for _, w := range wire {
		e := transcript.Entry{
			Role:           w.Role,
			Content:        w.Content,
			CreatedAt:      w.Timestamp,
			HasAttachments: w.HasImages,
		}
		for _, step := range w.ToolSteps {
			status := step.Status
			if status == "" {
				status = transcript.StatusCompleted
			}
			e.Invocations = append(e.Invocations, transcript.Invocation{
				Name:      step.Name,
				Arguments: step.Args,
				Status:    status,
				Result:    step.Result,
			})
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *Client) Tools(ctx context.Context) ([]models.Tool, error) {
	var out struct {
		Tools []models.Tool `json:"tools"`
	}
	if err := c.getJSON(ctx, "/api/tools", &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// DriveAuthStatus reports whether the user's Google Drive account is
// linked; auth-gated tools are only enabled by default when it is.
func (c *Client) DriveAuthStatus(ctx context.Context) (bool, error) {
	var out struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := c.getJSON(ctx, "/api/auth/google-drive/status", &out); err != nil {
		return false, err
	}
	return out.Authenticated, nil
}

func (c *Client) Servers(ctx context.Context) ([]models.MCPServer, error) {
	var wire []struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
		Name    string `json:"name"`
		URL     string `json:"url"`
	}
	if err := c.getJSON(ctx, "/mcp-servers", &wire); err != nil {
		return nil, err
	}
	servers := make([]models.MCPServer, 0, len(wire))
	for _, w := range wire {
		id := w.MongoID
		if id == "" {
			id = w.ID
		}
		servers = append(servers, models.MCPServer{ID: id, Name: w.Name, URL: w.URL})
	}
	return servers, nil
}

func (c *Client) AddServer(ctx context.Context, name, serverURL string) (models.MCPServer, error) {
	var srv models.MCPServer
	err := c.postJSON(ctx, "/mcp-servers", map[string]any{
		"name": name, "url": serverURL, "auth_type": "none",
	}, &srv)
	return srv, err
}

func (c *Client) UpdateServer(ctx context.Context, srv models.MCPServer) error {
	data, err := json.Marshal(map[string]string{"name": srv.Name, "url": srv.URL})
	if err != nil {
		return fmt.Errorf("encoding server update: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPut, "/mcp-servers/"+url.PathEscape(srv.ID), bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) DeleteServer(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/mcp-servers/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) TestServer(ctx context.Context, id string) error {
	return c.postJSON(ctx, "/mcp-servers/"+url.PathEscape(id)+"/test", nil, nil)
}

// Connect warms a server connection so its tool listing is ready before
// first use. Best effort; the caller logs and moves on.
func (c *Client) Connect(ctx context.Context, serverURL string) error {
	return c.postJSON(ctx, "/mcp/connect", map[string]string{"mcp_server_url": serverURL}, nil)
}

func (c *Client) Disconnect(ctx context.Context, serverURL string) error {
	return c.postJSON(ctx, "/mcp/disconnect", map[string]string{"mcp_server_url": serverURL}, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: unexpected status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		r = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, r, "application/json")
	if err != nil {
		return err
	}
	return c.do(req, out)
}
