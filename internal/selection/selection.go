// Package selection stores which tools, MCP servers and model the user
// has picked, persisting every change so the choices survive restarts.
package selection

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"agentx/internal/models"
)

// DefaultModel answers chats when the user has never picked a model.
const DefaultModel = "gemini-2.5-flash"

// Saved is the persisted shape of a selection.
type Saved struct {
	Tools   []string           `json:"tools"`
	Servers []models.MCPServer `json:"servers"`
	Model   string             `json:"model"`
}

// Persister stores a selection durably. Load returns a zero Saved when
// nothing has been stored yet.
type Persister interface {
	Load() (Saved, error)
	Save(Saved) error
}

// Connector warms and releases MCP server connections as servers are
// toggled. Both calls are best effort.
type Connector interface {
	Connect(ctx context.Context, serverURL string) error
	Disconnect(ctx context.Context, serverURL string) error
}

// Store holds the live selection. All reads and writes go through the
// mutex; persistence and connection warm-up happen inside the toggle
// calls so the stored state never drifts from the visible one.
type Store struct {
	persister Persister
	connector Connector
	logger    *slog.Logger

	mu      sync.Mutex
	tools   []string
	servers []models.MCPServer
	model   string
}

// New loads the persisted selection. Stored tool ids that no longer
// pass validation are dropped on the way in, which retires ids from
// older versions without a migration.
func New(persister Persister, connector Connector, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{persister: persister, connector: connector, logger: logger}

	saved, err := persister.Load()
	if err != nil {
		return nil, err
	}
	s.tools = FilterToolIDs(saved.Tools)
	s.servers = saved.Servers
	s.model = saved.Model
	if s.model == "" {
		s.model = DefaultModel
	}
	return s, nil
}

// FilterToolIDs drops ids that cannot be real tool ids: anything with
// an mcp: prefix (server-scoped, not selectable on its own), spaces,
// or uppercase letters.
func FilterToolIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if strings.HasPrefix(id, "mcp:") {
			continue
		}
		if strings.Contains(id, " ") {
			continue
		}
		if id != strings.ToLower(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// ApplyDefaults seeds the tool selection from the registry when the
// user has never chosen: every tool that needs no auth, plus the
// google_drive category once Drive is linked. A non-empty selection is
// left alone.
func (s *Store) ApplyDefaults(registry []models.Tool, driveAuthed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tools) > 0 {
		return nil
	}
	for _, tool := range registry {
		if !tool.RequiresAuth || (driveAuthed && tool.Category == "google_drive") {
			s.tools = append(s.tools, tool.ID)
		}
	}
	return s.persistLocked()
}

// ToggleTool flips one tool and persists the result.
func (s *Store) ToggleTool(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tools {
		if t == id {
			s.tools = append(s.tools[:i], s.tools[i+1:]...)
			return s.persistLocked()
		}
	}
	s.tools = append(s.tools, id)
	return s.persistLocked()
}

// ToggleServer flips one server, persists, and then warms or releases
// the connection. Connection failures are logged and swallowed; the
// toggle itself already succeeded.
func (s *Store) ToggleServer(ctx context.Context, server models.MCPServer) error {
	s.mu.Lock()
	removed := false
	for i, sv := range s.servers {
		if sv.ID == server.ID {
			s.servers = append(s.servers[:i], s.servers[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		s.servers = append(s.servers, server)
	}
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.connector == nil {
		return nil
	}
	if removed {
		if err := s.connector.Disconnect(ctx, server.URL); err != nil {
			s.logger.Warn("disconnecting mcp server", "url", server.URL, "error", err)
		}
	} else {
		if err := s.connector.Connect(ctx, server.URL); err != nil {
			s.logger.Warn("connecting mcp server", "url", server.URL, "error", err)
		}
	}
	return nil
}

func (s *Store) SetModel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = id
	return s.persistLocked()
}

func (s *Store) EnabledTools() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *Store) Servers() []models.MCPServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MCPServer, len(s.servers))
	copy(out, s.servers)
	return out
}

func (s *Store) ServerURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := make([]string, 0, len(s.servers))
	for _, sv := range s.servers {
		urls = append(urls, sv.URL)
	}
	return urls
}

func (s *Store) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *Store) ToolEnabled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tools {
		if t == id {
			return true
		}
	}
	return false
}

func (s *Store) ServerSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sv := range s.servers {
		if sv.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) persistLocked() error {
	return s.persister.Save(Saved{
		Tools:   s.tools,
		Servers: s.servers,
		Model:   s.model,
	})
}
