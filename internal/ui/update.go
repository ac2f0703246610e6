package ui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"agentx/internal/db"
	"agentx/internal/models"
	"agentx/internal/styles"
	"agentx/internal/tools"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Loading {
			m.UpdateViewport()
		}
		return m, spCmd

	case tea.KeyMsg:
		if m.HistoryOpen {
			return m.updateHistoryModal(msg)
		}
		if m.ModelSelectorOpen {
			return m.updateModelSelector(msg)
		}
		if m.ToolsOpen {
			return m.updateToolsModal(msg)
		}
		if m.ShortcutsOpen {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc", "enter", "?", "ctrl+s":
				m.ShortcutsOpen = false
				return m, nil
			}
			return m, nil
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.FileSuggestOpen = false
			m.updateInputLayout()
			return m, nil
		}

		// File suggestion popup handling
		if m.FileSuggestOpen {
			switch msg.String() {
			case "esc":
				m.FileSuggestOpen = false
				return m, nil
			case "up", "ctrl+p":
				if len(m.FileSuggestions) > 0 {
					m.FileSuggestIdx--
					if m.FileSuggestIdx < 0 {
						m.FileSuggestIdx = len(m.FileSuggestions) - 1
					}
				}
				return m, nil
			case "down", "ctrl+n":
				if len(m.FileSuggestions) > 0 {
					m.FileSuggestIdx++
					if m.FileSuggestIdx >= len(m.FileSuggestions) {
						m.FileSuggestIdx = 0
					}
				}
				return m, nil
			case "tab", "enter":
				m.insertSelectedSuggestion()
				return m, nil
			}
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.FileSuggestOpen {
				m.FileSuggestOpen = false
				return m, nil
			}
			return m, tea.Quit

		case tea.KeyCtrlN:
			m.StartNewConversation()
			return m, nil

		case tea.KeyCtrlB:
			m.ModelSelectorOpen = true
			m.HistoryOpen = false
			m.ToolsOpen = false
			m.ShortcutsOpen = false
			return m, nil

		case tea.KeyCtrlT:
			m.ToolsOpen = true
			m.ModelSelectorOpen = false
			m.HistoryOpen = false
			m.ShortcutsOpen = false
			m.rebuildToolRows()
			return m, nil

		case tea.KeyCtrlS:
			m.ShortcutsOpen = true
			m.ModelSelectorOpen = false
			m.HistoryOpen = false
			m.ToolsOpen = false
			return m, nil

		case tea.KeyCtrlH:
			m.ModelSelectorOpen = false
			m.ToolsOpen = false
			m.ShortcutsOpen = false
			m.HistoryOpen = true
			m.HistorySelectedIdx = 0
			m.HistoryErr = nil
			return m, m.FetchConversationsCmd()

		case tea.KeyEnter:
			if m.FileSuggestOpen && len(m.FileSuggestions) > 0 {
				m.insertSelectedSuggestion()
				return m, nil
			}

			if m.Loading {
				return m, nil
			}
			input := m.TextInput.Value()
			if strings.TrimSpace(input) == "" {
				return m, nil
			}

			if input == "/clear" || input == "/new" {
				m.StartNewConversation()
				return m, nil
			}

			m.TextInput.Reset()
			m.updateInputLayout()
			m.FileSuggestOpen = false
			m.Loading = true
			m.Err = nil

			return m, tea.Batch(m.SendMessage(input), m.Spinner.Tick)
		}

	case BootMsg:
		return m, tea.Batch(
			m.FetchConversationsCmd(),
			m.FetchToolsCmd(),
			m.FetchServersCmd(),
		)

	case TranscriptMsg:
		m.Entries = msg.Entries
		m.UpdateViewport()
		return m, nil

	case SendDoneMsg:
		m.Loading = false
		m.AttachedFiles = nil
		m.UpdateViewport()
		// A fresh conversation now exists server-side; refresh the list
		// so it shows up in history.
		return m, m.FetchConversationsCmd()

	case SendFailedMsg:
		m.Loading = false
		m.Err = msg.Err
		// Attachments stay put so the user can retry without re-mentioning.
		m.UpdateViewport()
		return m, nil

	case NavDoneMsg:
		m.Loading = false
		m.Entries = m.Session.Snapshot()
		if msg.Err != nil {
			m.Err = msg.Err
		}
		m.UpdateViewport()
		return m, nil

	case ConversationsMsg:
		if msg.Err != nil {
			m.HistoryErr = msg.Err
			return m, nil
		}
		m.Conversations = msg.Conversations
		m.HistoryFromCache = msg.FromCache
		if m.HistorySelectedIdx >= len(m.Conversations) {
			m.HistorySelectedIdx = 0
		}
		return m, nil

	case ConversationDeletedMsg:
		if msg.Err != nil {
			m.HistoryErr = msg.Err
			return m, nil
		}
		if m.Session.ConversationID() == msg.ID {
			m.StartNewConversation()
		}
		return m, m.FetchConversationsCmd()

	case ToolsMsg:
		if msg.Err != nil {
			m.ToolsErr = msg.Err
			return m, nil
		}
		m.Registry = msg.Tools
		if err := m.Selection.ApplyDefaults(msg.Tools, msg.DriveAuthed); err != nil {
			m.Logger.Error("seeding default tools", "error", err)
		}
		m.rebuildToolRows()
		return m, nil

	case ServersMsg:
		if msg.Err != nil {
			m.ToolsErr = msg.Err
			return m, nil
		}
		m.Servers = msg.Servers
		m.rebuildToolRows()
		return m, nil

	case ErrMsg:
		m.Loading = false
		m.Err = msg
		m.UpdateViewport()
		return m, nil

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		ModalWidth = msg.Width - 10
		if ModalWidth > 60 {
			ModalWidth = 60
		}
		if ModalWidth < 30 {
			ModalWidth = 30
		}
		styles.ContentWidth = ModalWidth - 6

		chatWidth := msg.Width - 2
		m.Viewport.Width = chatWidth - 2

		m.updateInputLayout()
		glamourStyle := "dark"
		if !lipgloss.HasDarkBackground() {
			glamourStyle = "light"
		}
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(glamourStyle),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.UpdateViewport()
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Filter out terminal background color queries and cursor reference codes that leak into the input
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}

	// Check for @ file mention trigger
	val = m.TextInput.Value()
	cursorPos := TextareaCursorIndex(m.TextInput)
	if prefix, _, found := GetAtPosition(val, cursorPos); found {
		suggestions := GetFileSuggestions(prefix)
		if len(suggestions) > 0 {
			m.FileSuggestions = suggestions
			m.FileSuggestOpen = true
			m.FileSuggestIdx = 0
			m.FileSuggestPrefix = prefix
		} else {
			m.FileSuggestOpen = false
		}
	} else {
		m.FileSuggestOpen = false
	}

	// Update pending files display (files currently mentioned in input)
	_, m.PendingFiles = ExtractFileMentions(val)

	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) updateHistoryModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+h":
		m.HistoryOpen = false
		m.HistoryErr = nil
		return m, nil
	case "up", "k":
		if len(m.Conversations) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx--
		if m.HistorySelectedIdx < 0 {
			m.HistorySelectedIdx = len(m.Conversations) - 1
		}
		return m, nil
	case "down", "j":
		if len(m.Conversations) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx++
		if m.HistorySelectedIdx >= len(m.Conversations) {
			m.HistorySelectedIdx = 0
		}
		return m, nil
	case "d":
		if len(m.Conversations) == 0 {
			return m, nil
		}
		conv := m.Conversations[m.HistorySelectedIdx]
		return m, m.DeleteConversationCmd(conv.ID)
	case "enter":
		if len(m.Conversations) == 0 {
			return m, nil
		}
		conv := m.Conversations[m.HistorySelectedIdx]
		m.HistoryOpen = false
		m.HistoryErr = nil
		m.Loading = true
		return m, tea.Batch(m.OpenConversationCmd(conv.ID), m.Spinner.Tick)
	}
	return m, nil
}

func (m *Model) updateModelSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+b":
		m.ModelSelectorOpen = false
		return m, nil
	case "up", "k":
		m.SelectedModelIndex--
		if m.SelectedModelIndex < 0 {
			m.SelectedModelIndex = len(AvailableModels) - 1
		}
		return m, nil
	case "down", "j":
		m.SelectedModelIndex++
		if m.SelectedModelIndex >= len(AvailableModels) {
			m.SelectedModelIndex = 0
		}
		return m, nil
	case "enter":
		mdl := AvailableModels[m.SelectedModelIndex]
		if err := m.Selection.SetModel(mdl.ID); err != nil {
			m.Err = err
		}
		m.ModelSelectorOpen = false
		return m, nil
	}
	return m, nil
}

func (m *Model) updateToolsModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+t":
		m.ToolsOpen = false
		m.ToolsErr = nil
		return m, nil
	case "up", "k":
		m.moveToolCursor(-1)
		return m, nil
	case "down", "j":
		m.moveToolCursor(1)
		return m, nil
	case "enter", " ":
		if m.ToolsSelectedIdx >= len(m.ToolRows) {
			return m, nil
		}
		row := m.ToolRows[m.ToolsSelectedIdx]
		switch {
		case row.Tool != nil:
			if err := m.Selection.ToggleTool(row.Tool.ID); err != nil {
				m.ToolsErr = err
			}
		case row.Server != nil:
			return m, m.ToggleServerCmd(*row.Server)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) moveToolCursor(delta int) {
	if len(m.ToolRows) == 0 {
		return
	}
	i := m.ToolsSelectedIdx
	for range m.ToolRows {
		i += delta
		if i < 0 {
			i = len(m.ToolRows) - 1
		}
		if i >= len(m.ToolRows) {
			i = 0
		}
		if m.ToolRows[i].selectable() {
			m.ToolsSelectedIdx = i
			return
		}
	}
}

func (m *Model) rebuildToolRows() {
	var rows []toolRow
	categories, grouped := tools.GroupByCategory(m.Registry)
	for _, category := range categories {
		rows = append(rows, toolRow{Header: tools.CategoryTitle(category)})
		for i := range grouped[category] {
			rows = append(rows, toolRow{Tool: &grouped[category][i]})
		}
	}
	if len(m.Servers) > 0 {
		rows = append(rows, toolRow{Header: "MCP Servers"})
		for i := range m.Servers {
			rows = append(rows, toolRow{Server: &m.Servers[i]})
		}
	}
	m.ToolRows = rows

	if m.ToolsSelectedIdx >= len(rows) {
		m.ToolsSelectedIdx = 0
	}
	if len(rows) > 0 && !rows[m.ToolsSelectedIdx].selectable() {
		m.moveToolCursor(1)
	}
}

func (m *Model) insertSelectedSuggestion() {
	if len(m.FileSuggestions) == 0 || m.FileSuggestIdx >= len(m.FileSuggestions) {
		m.FileSuggestOpen = false
		return
	}
	selected := m.FileSuggestions[m.FileSuggestIdx]
	val := m.TextInput.Value()
	cursorPos := TextareaCursorIndex(m.TextInput)
	prefix, startPos, found := GetAtPosition(val, cursorPos)
	if found {
		newVal := val[:startPos] + "@" + selected + " " + val[startPos+1+len(prefix):]
		newCursorIndex := startPos + len(selected) + 2
		m.TextInput.SetValue(newVal)
		row, col := TextareaCursorFromIndex(newVal, newCursorIndex)
		SetTextareaCursor(&m.TextInput, row, col)
	}
	m.FileSuggestOpen = false
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 5
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}

// StartNewConversation drops the open conversation. Any stream still
// running is invalidated by the session reset and its remaining events
// get discarded.
func (m *Model) StartNewConversation() {
	m.Session.Clear()
	m.Entries = nil
	m.Loading = false
	m.Err = nil
	m.HistoryOpen = false
	m.HistoryErr = nil
	m.AttachedFiles = nil
	m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
	m.Viewport.GotoTop()
	m.TextInput.Reset()
	m.updateInputLayout()
}

// SendMessage runs a full exchange in a tea.Cmd goroutine. Transcript
// progress arrives separately as TranscriptMsg via the orchestrator's
// flusher; the returned message only closes the exchange out.
func (m *Model) SendMessage(input string) tea.Cmd {
	orch := m.Orchestrator
	logger := m.Logger

	cleanInput, files := ExtractFileMentions(input)
	m.AttachedFiles = files

	return func() tea.Msg {
		attachments, err := LoadAttachments(files)
		if err != nil {
			return SendFailedMsg{Err: err}
		}

		res, err := orch.Send(context.Background(), cleanInput, attachments)
		if err != nil {
			logger.Error("sending message", "error", err)
			return SendFailedMsg{Err: err}
		}
		return SendDoneMsg{ConversationID: res.ConversationID}
	}
}

func (m *Model) OpenConversationCmd(id string) tea.Cmd {
	session := m.Session
	return func() tea.Msg {
		err := session.Navigate(context.Background(), id)
		return NavDoneMsg{Err: err}
	}
}

func (m *Model) FetchConversationsCmd() tea.Cmd {
	client := m.Client
	dbConn := m.DB
	logger := m.Logger
	return func() tea.Msg {
		convs, err := client.Conversations(context.Background())
		if err != nil {
			// Offline: fall back to the cached list.
			cached, cacheErr := db.CachedConversations(dbConn)
			if cacheErr != nil || len(cached) == 0 {
				return ConversationsMsg{Err: err}
			}
			logger.Warn("conversation fetch failed, using cache", "error", err)
			return ConversationsMsg{Conversations: cached, FromCache: true}
		}
		if err := db.ReplaceConversations(dbConn, convs); err != nil {
			logger.Warn("caching conversations", "error", err)
		}
		return ConversationsMsg{Conversations: convs}
	}
}

func (m *Model) DeleteConversationCmd(id string) tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		err := client.DeleteConversation(context.Background(), id)
		return ConversationDeletedMsg{ID: id, Err: err}
	}
}

func (m *Model) FetchToolsCmd() tea.Cmd {
	client := m.Client
	logger := m.Logger
	return func() tea.Msg {
		ctx := context.Background()
		registry, err := client.Tools(ctx)
		if err != nil {
			return ToolsMsg{Err: err}
		}
		driveAuthed, err := client.DriveAuthStatus(ctx)
		if err != nil {
			// Treat an unknown auth state as unlinked.
			logger.Warn("checking drive auth status", "error", err)
			driveAuthed = false
		}
		return ToolsMsg{Tools: registry, DriveAuthed: driveAuthed}
	}
}

func (m *Model) FetchServersCmd() tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		servers, err := client.Servers(context.Background())
		return ServersMsg{Servers: servers, Err: err}
	}
}

func (m *Model) ToggleServerCmd(server models.MCPServer) tea.Cmd {
	sel := m.Selection
	return func() tea.Msg {
		if err := sel.ToggleServer(context.Background(), server); err != nil {
			return ErrMsg(fmt.Errorf("toggling server %s: %w", server.Name, err))
		}
		return nil
	}
}

// LoadAttachments reads mentioned files into memory for the multipart
// upload.
func LoadAttachments(files []string) ([]models.Attachment, error) {
	var attachments []models.Attachment
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading attachment %s: %w", file, err)
		}
		attachments = append(attachments, models.Attachment{Name: file, Data: data})
	}
	return attachments, nil
}
