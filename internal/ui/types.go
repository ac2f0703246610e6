package ui

import (
	"database/sql"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"agentx/internal/api"
	"agentx/internal/chat"
	"agentx/internal/config"
	"agentx/internal/models"
	"agentx/internal/selection"
	"agentx/internal/transcript"
)

const (
	MaxChatWidth = 100

	HistoryPageSize = 10
)

var ModalWidth = 60

var AvailableModels = []models.AIModel{
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: "Google", Description: "Fast multimodal model"},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: "Google", Description: "Strong reasoning model"},
	{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", Description: "General purpose model"},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "OpenAI", Description: "Cheap fast model"},
	{ID: "claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "Anthropic", Description: "Balanced coding model"},
}

type ErrMsg error

// TranscriptMsg carries a fresh transcript snapshot from the streaming
// goroutine. One arrives per applied event.
type TranscriptMsg struct {
	Entries []transcript.Entry
}

// SendDoneMsg closes out a successful exchange.
type SendDoneMsg struct {
	ConversationID string
}

// SendFailedMsg closes out a failed exchange. The transcript already
// shows the failure notice; Err is for the log line and status bar.
type SendFailedMsg struct {
	Err error
}

// BootMsg fires once the startup login attempt has finished; the data
// fetches that depend on the session cookie hang off it.
type BootMsg struct{}

// NavDoneMsg reports that a conversation switch finished loading.
type NavDoneMsg struct {
	Err error
}

type ConversationsMsg struct {
	Conversations []models.Conversation
	FromCache     bool
	Err           error
}

type ConversationDeletedMsg struct {
	ID  string
	Err error
}

type ToolsMsg struct {
	Tools       []models.Tool
	DriveAuthed bool
	Err         error
}

type ServersMsg struct {
	Servers []models.MCPServer
	Err     error
}

// toolRow is one line of the tools modal: a category header, a tool, a
// section divider or an MCP server.
type toolRow struct {
	Header string
	Tool   *models.Tool
	Server *models.MCPServer
}

func (r toolRow) selectable() bool { return r.Tool != nil || r.Server != nil }

type Model struct {
	Viewport  viewport.Model
	TextInput textarea.Model
	Spinner   spinner.Model

	Config       config.Config
	Client       *api.Client
	Session      *chat.Session
	Orchestrator *chat.Orchestrator
	Selection    *selection.Store
	DB           *sql.DB
	Logger       *slog.Logger
	Program      *tea.Program
	Renderer     *glamour.TermRenderer

	Entries       []transcript.Entry
	Conversations []models.Conversation
	Registry      []models.Tool
	Servers       []models.MCPServer

	Err          error
	Loading      bool
	WindowWidth  int
	WindowHeight int

	HistoryOpen        bool
	HistorySelectedIdx int
	HistoryErr         error
	HistoryFromCache   bool

	ModelSelectorOpen  bool
	SelectedModelIndex int

	ToolsOpen        bool
	ToolsSelectedIdx int
	ToolRows         []toolRow
	ToolsErr         error

	ShortcutsOpen bool

	// File mention autocomplete
	FileSuggestOpen   bool
	FileSuggestions   []string
	FileSuggestIdx    int
	FileSuggestPrefix string   // The partial text after @ being completed
	AttachedFiles     []string // Files attached via @mention for current message
	PendingFiles      []string // Files detected in current input (for display)
}
