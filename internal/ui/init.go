package ui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentx/internal/api"
	"agentx/internal/chat"
	"agentx/internal/config"
	"agentx/internal/db"
	"agentx/internal/selection"
	"agentx/internal/transcript"
)

func InitialModel(cfg config.Config, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := api.New(cfg.BaseURL, logger)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.OpenAgentXDB()
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}

	sel, err := selection.New(db.NewSelectionStore(dbConn), client, logger)
	if err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("loading selection: %w", err)
	}
	if cfg.Model != "" {
		if err := sel.SetModel(cfg.Model); err != nil {
			dbConn.Close()
			return nil, err
		}
	}

	session := chat.NewSession(client, logger)

	ti := textarea.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB")).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB")).Bold(true)
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB"))

	vp := viewport.New(60, 15)

	m := &Model{
		TextInput:          ti,
		Viewport:           vp,
		Spinner:            sp,
		Config:             cfg,
		Client:             client,
		Session:            session,
		Selection:          sel,
		DB:                 dbConn,
		Logger:             logger,
		SelectedModelIndex: modelIndexFor(sel.Model()),
	}
	return m, nil
}

func modelIndexFor(id string) int {
	for i, mdl := range AvailableModels {
		if mdl.ID == id {
			return i
		}
	}
	return 0
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
		m.BootstrapCmd(),
	)
}

// BootstrapCmd logs in with the configured credentials, if any, before
// the initial fetches run; they need the session cookie. Login failure
// is logged and the client continues unauthenticated.
func (m *Model) BootstrapCmd() tea.Cmd {
	email, password := m.Config.Email, m.Config.Password
	return func() tea.Msg {
		if email != "" && password != "" {
			if err := m.Client.Login(context.Background(), email, password); err != nil {
				m.Logger.Warn("startup login failed", "email", email, "error", err)
			}
		}
		return BootMsg{}
	}
}

// clientOpener adapts *api.Client's concrete *api.EventStream return
// type to the chat.EventStream interface chat.Opener expects.
type clientOpener struct{ c *api.Client }

func (o clientOpener) OpenStream(ctx context.Context, req api.StreamRequest) (chat.EventStream, error) {
	return o.c.OpenStream(ctx, req)
}

func NewProgram(cfg config.Config, logger *slog.Logger) (*tea.Program, error) {
	m, err := InitialModel(cfg, logger)
	if err != nil {
		return nil, err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.Program = p

	// Snapshots from the streaming goroutine reach Update through the
	// program's own queue.
	m.Orchestrator = chat.NewOrchestrator(m.Session, clientOpener{m.Client}, m.Selection, func(entries []transcript.Entry) {
		p.Send(TranscriptMsg{Entries: entries})
	}, logger)

	return p, nil
}
