package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agentx/internal/styles"
	"agentx/internal/tools"
	"agentx/internal/transcript"
)

func (m *Model) RenderModelSelector() string {
	title := styles.ModalTitleStyle.Render("Select Model")

	current := m.Selection.Model()
	var items []string
	var lastProvider string
	for i, mdl := range AvailableModels {
		if mdl.Provider != lastProvider {
			if lastProvider != "" {
				items = append(items, "")
			}
			header := styles.ModalHeaderStyle.
				Foreground(styles.GetProviderColor(mdl.Provider)).
				Render(mdl.Provider)
			items = append(items, header)
			lastProvider = mdl.Provider
		}

		displayName := mdl.Name
		if mdl.ID == current {
			displayName = "● " + displayName
		} else {
			displayName = "  " + displayName
		}

		if i == m.SelectedModelIndex {
			items = append(items, styles.ModalSelectedStyle.Width(styles.ContentWidth).Render(displayName))
		} else {
			style := styles.ModalItemStyle.Width(styles.ContentWidth)
			if mdl.ID == current {
				style = style.Foreground(lipgloss.Color("#90CAF9"))
			}
			items = append(items, style.Render(displayName))
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left, items...)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • Enter: select • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, title, body, hint)
}

func (m *Model) RenderHistorySelector() string {
	heading := fmt.Sprintf("Conversations (%d)", len(m.Conversations))
	if m.HistoryFromCache {
		heading += " (offline, cached)"
	}
	title := styles.ModalTitleStyle.Render(heading)

	var body string
	if m.HistoryErr != nil {
		body = lipgloss.NewStyle().Width(styles.ContentWidth).Render(styles.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.HistoryErr)))
	} else if len(m.Conversations) == 0 {
		body = styles.ModalItemStyle.Render(lipgloss.NewStyle().Foreground(styles.HintColor).Render("No conversations yet"))
	} else {
		currentID := m.Session.ConversationID()
		items := make([]string, 0, len(m.Conversations))
		for i, conv := range m.Conversations {
			cursor := "  "
			if i == m.HistorySelectedIdx {
				cursor = "> "
			}
			label := conv.Title
			if label == "" {
				label = "(untitled)"
			}
			if conv.ID == currentID {
				label = "● " + label
			}
			timeStr := RelativeTime(conv.CreatedAt)
			availableWidth := styles.ContentWidth - 2 - len(cursor) - 1 - len(timeStr)
			label = TruncateRunes(label, availableWidth)

			itemContent := fmt.Sprintf("%s%s %s", cursor, label, lipgloss.NewStyle().Foreground(styles.HintColor).Render(timeStr))
			if i == m.HistorySelectedIdx {
				items = append(items, styles.ModalSelectedStyle.Render(itemContent))
			} else {
				items = append(items, styles.ModalItemStyle.Render(itemContent))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • Enter: open • d: delete • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, title, body, hint)
}

func (m *Model) RenderToolsSelector() string {
	title := styles.ModalTitleStyle.Render("Tools & Servers")

	var body string
	if m.ToolsErr != nil {
		body = lipgloss.NewStyle().Width(styles.ContentWidth).Render(styles.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.ToolsErr)))
	} else if len(m.ToolRows) == 0 {
		body = styles.ModalItemStyle.Render(lipgloss.NewStyle().Foreground(styles.HintColor).Render("No tools available"))
	} else {
		items := make([]string, 0, len(m.ToolRows))
		for i, row := range m.ToolRows {
			if row.Header != "" {
				if i > 0 {
					items = append(items, "")
				}
				items = append(items, styles.ModalHeaderStyle.Render(row.Header))
				continue
			}

			var name string
			var enabled bool
			switch {
			case row.Tool != nil:
				name = row.Tool.Name
				enabled = m.Selection.ToolEnabled(row.Tool.ID)
				if row.Tool.RequiresAuth {
					name += " 🔒"
				}
			case row.Server != nil:
				name = row.Server.Name
				enabled = m.Selection.ServerSelected(row.Server.ID)
			}

			check := "[ ]"
			if enabled {
				check = "[x]"
			}
			line := fmt.Sprintf("%s %s", check, name)
			if i == m.ToolsSelectedIdx {
				items = append(items, styles.ModalSelectedStyle.Render(line))
			} else {
				items = append(items, styles.ModalItemStyle.Render(line))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • Enter: toggle • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, title, body, hint)
}

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Quit Application"},
		{"Ctrl+N", "New Conversation"},
		{"Ctrl+H", "Conversation History"},
		{"Ctrl+B", "Select Model"},
		{"Ctrl+T", "Tools & MCP Servers"},
		{"Ctrl+S", "View Shortcuts (this menu)"},
		{"@", "Attach File (in input)"},
	}

	var items []string
	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFCC80")).
		Bold(true).
		Width(12)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E0E0E0"))

	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", keyStyle.Render(s.key), descStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Render(line))
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, items...)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Esc/Enter: close")

	return lipgloss.JoinVertical(lipgloss.Left, title, listContent, hint)
}

func (m *Model) RenderBottomBar() string {
	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#81D4FA")).
		Padding(0, 1).
		Render("CHAT")

	convID := m.Session.ConversationID()
	if convID == "" {
		convID = "new conversation"
	}
	conv := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(TruncateRunes(convID, 30))

	modelName := m.Selection.Model()
	if mdl, ok := FindModelByID(modelName); ok {
		modelName = mdl.Name
	}
	model := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#B39DDB")).
		Render(TruncateRunes(modelName, 25))

	counts := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666")).
		Render(fmt.Sprintf("Tools:%d Servers:%d", len(m.Selection.EnabledTools()), len(m.Selection.ServerURLs())))

	var status string
	if m.Err != nil {
		status = styles.ErrorStyle.Render(TruncateRunes(m.Err.Error(), 40))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#555555")).
		Render("Help: ^S")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, badge, "  ", conv, "  ", model)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, counts, "  ", status, "  ", help)

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}
	spacer := strings.Repeat(" ", availableWidth)

	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, spacer, rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		Padding(0, 1).
		Render(bar)
}

func (m *Model) RenderPendingFiles() string {
	if len(m.PendingFiles) == 0 {
		return ""
	}

	chipStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7C4DFF")).
		Padding(0, 1).
		MarginRight(1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888"))

	var chips []string
	for _, file := range m.PendingFiles {
		chips = append(chips, chipStyle.Render("📎 "+file))
	}

	return labelStyle.Render("Attached: ") + strings.Join(chips, " ")
}

func (m *Model) RenderFileSuggestions() string {
	if !m.FileSuggestOpen || len(m.FileSuggestions) == 0 {
		return ""
	}

	suggestionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E0E0E0")).
		Padding(0, 1)

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7C4DFF")).
		Padding(0, 1)

	var lines []string
	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Italic(true).
		Render("  Files (↑↓ to select, Tab/Enter to insert)")
	lines = append(lines, header)

	for i, suggestion := range m.FileSuggestions {
		if i == m.FileSuggestIdx {
			lines = append(lines, selectedStyle.Render("▸ "+suggestion))
		} else {
			lines = append(lines, suggestionStyle.Render("  "+suggestion))
		}
	}

	popupStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7C4DFF")).
		Padding(0, 1)

	return popupStyle.Render(strings.Join(lines, "\n"))
}

func GetWelcomeScreen(width, height int) string {
	art := `
 ╭───────────────────────────────────────────────────╮
 │                                                   │
 │     ▄▄▄    ▄████  ▓█████  ███▄    █ ▄▄▄█████▓     │
 │    ▒████▄  ██▒ ▀█▒▓█   ▀  ██ ▀█   █ ▓  ██▒ ▓▒     │
 │    ▒██  ▀█▄▒██░▄▄▄░▒███  ▓██  ▀█ ██▒▒ ▓██░ ▒░     │
 │    ░██▄▄▄▄██░▓█  ██▓▒▓█  ▄▓██▒  ▐▌██▒░ ▓██▓ ░     │
 │     ▓█   ▓██▒▓███▀▒░▒████▒██░   ▓██░  ▒██▒ ░  ██╗ │
 │     ▒▒   ▓▒█░░▒   ▒ ░░ ▒░ ░ ▒░   ▒ ▒   ▒ ░░    ╚═╝│
 │                                                   │
 ╰───────────────────────────────────────────────────╯
`
	subtitle := "Your tools, your servers, one conversation."

	styledArt := styles.WelcomeArtStyle.Render(art)
	styledSubtitle := styles.WelcomeSubtitleStyle.Italic(true).Render(subtitle)

	content := lipgloss.JoinVertical(lipgloss.Center, styledArt, "", styledSubtitle)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

// RenderEntry turns one transcript entry into its display block.
func (m *Model) RenderEntry(e transcript.Entry, isFirst bool) string {
	if e.Role == transcript.RoleUser {
		content := e.Content
		if e.HasAttachments {
			content += "\n📎 (with attachments)"
		}
		return FormatUserMessage(content, m.Viewport.Width, isFirst)
	}

	var invLines []string
	for _, inv := range e.Invocations {
		icon := styles.ToolIconStyle.Render("→")
		name := styles.ToolNameStyle.Render(tools.Summarize(inv))
		invLines = append(invLines, styles.ToolActionStyle.Render(fmt.Sprintf("%s %s", icon, name)))
	}

	content := e.Content
	if content == "" && e.Streaming {
		content = m.Spinner.View() + " Thinking..."
	} else if m.Renderer != nil && !e.Streaming {
		if rendered, err := m.Renderer.Render(e.Content); err == nil {
			content = strings.TrimSpace(rendered)
		}
	}

	if len(invLines) > 0 {
		return FormatAIMessageWithTools(strings.Join(invLines, "\n"), content)
	}
	return FormatAIMessage(content)
}

func (m *Model) UpdateViewport() {
	if len(m.Entries) == 0 && !m.Loading {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
		return
	}

	blocks := make([]string, 0, len(m.Entries))
	for i, e := range m.Entries {
		blocks = append(blocks, m.RenderEntry(e, i == 0))
	}

	m.Viewport.SetContent(strings.Join(blocks, "\n\n"))
	m.Viewport.GotoBottom()
}

func (m *Model) View() string {
	fileSuggestPopup := m.RenderFileSuggestions()
	pendingFilesDisplay := m.RenderPendingFiles()

	inputWidth := m.WindowWidth - 4
	inputBox := styles.InputBoxStyle.Width(inputWidth).Render(m.TextInput.View())

	var inputParts []string
	if pendingFilesDisplay != "" {
		inputParts = append(inputParts, pendingFilesDisplay)
	}
	if fileSuggestPopup != "" {
		inputParts = append(inputParts, fileSuggestPopup)
	}
	inputParts = append(inputParts, inputBox)
	inputSection := lipgloss.JoinVertical(lipgloss.Left, inputParts...)

	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		styles.TitleStyle.Render("AGENTX"),
		"",
		m.Viewport.View(),
		"",
		inputSection,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)
	bottomBar := m.RenderBottomBar()

	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, bottomBar)

	var modal string
	switch {
	case m.HistoryOpen:
		modal = m.RenderHistorySelector()
	case m.ModelSelectorOpen:
		modal = m.RenderModelSelector()
	case m.ToolsOpen:
		modal = m.RenderToolsSelector()
	case m.ShortcutsOpen:
		modal = m.RenderShortcutsModal()
	default:
		return content
	}

	modal = styles.ModalStyle.Width(ModalWidth).Render(modal)
	return lipgloss.Place(
		m.WindowWidth,
		m.WindowHeight,
		lipgloss.Center,
		lipgloss.Center,
		modal,
	)
}
