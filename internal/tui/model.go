// Package tui is the terminal front end. It renders the session sidebar,
// the chat pane and a status bar, and drives the chat controller from
// bubbletea's single event loop. Completion calls run as tea commands and
// come back as replyMsg values, so the store is only ever touched from
// the loop.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/minho5235/jammin/internal/chat"
	"github.com/minho5235/jammin/internal/models"
	"go.uber.org/zap"
)

// ---------- messages delivered back onto the event loop ----------

type replyMsg struct {
	reply chat.Reply
}

// ---------- input modes ----------

type inputMode int

const (
	modeChat inputMode = iota
	modeSearch
	modeConfirmDelete
)

// ---------- styles ----------

const sidebarWidth = 28

var (
	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color("238")).
			Width(sidebarWidth).
			Padding(0, 1)

	sessionRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	sessionActiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	greetingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true).
			Padding(1, 2)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	confirmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)
)

const greeting = "Hello, this is Jammin. Type a message to start a conversation."

// Model holds the full TUI state.
type Model struct {
	ctl    *chat.Controller
	logger *zap.Logger

	textinput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model

	width  int
	height int
	ready  bool

	mode       inputMode
	transcript []models.Message
	pending    int
	status     string
	quitting   bool

	mdRenderer      *glamour.TermRenderer
	mdRendererWidth int
}

// NewModel builds the initial model and restores the most recent session,
// mirroring what the program shows right after startup.
func NewModel(ctl *chat.Controller, logger *zap.Logger) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		ctl:       ctl,
		logger:    logger,
		textinput: ti,
		spinner:   sp,
		status:    "Ready",
	}

	if sessions := ctl.ListSessions(""); len(sessions) > 0 {
		m.transcript = ctl.SelectSession(sessions[0].ID)
		m.status = fmt.Sprintf("Loaded conversation %d", sessions[0].ID)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textinput.Width = m.width - sidebarWidth - 6
		chatWidth := m.width - sidebarWidth - 2
		chatHeight := m.height - 3
		if !m.ready {
			m.viewport = viewport.New(chatWidth, chatHeight)
			m.ready = true
		} else {
			m.viewport.Width = chatWidth
			m.viewport.Height = chatHeight
		}
		m.refreshViewport()

	case spinner.TickMsg:
		if m.pending > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case replyMsg:
		m.pending--
		m.ctl.AcceptReply(msg.reply)
		if msg.reply.SessionID == m.ctl.ActiveSession() {
			m.transcript = append(m.transcript, models.Message{
				SessionID: msg.reply.SessionID,
				Sender:    models.SenderAssistant,
				Content:   msg.reply.Content,
			})
			m.refreshViewport()
			m.viewport.GotoBottom()
		}
		if m.pending == 0 {
			m.status = "Ready"
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeConfirmDelete {
		switch msg.String() {
		case "y", "Y", "enter":
			m.mode = modeChat
			return m.deleteActive()
		default:
			m.mode = modeChat
			m.status = "Delete cancelled"
			return m, nil
		}
	}

	switch msg.String() {

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.mode == modeSearch {
			m.leaveSearch()
			m.ctl.ListSessions("")
			m.status = "Ready"
		}
		return m, nil

	case "ctrl+f":
		if m.mode == modeChat {
			m.mode = modeSearch
			m.textinput.SetValue(m.ctl.Keyword())
			m.textinput.Prompt = "search ❯ "
		}
		return m, nil

	case "ctrl+n":
		m.leaveSearch()
		m.ctl.NewSession()
		m.transcript = nil
		m.refreshViewport()
		m.status = "New conversation"
		return m, nil

	case "ctrl+d":
		if m.ctl.ActiveSession() == 0 {
			m.status = "Nothing to delete"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.status = ""
		return m, nil

	case "ctrl+k", "ctrl+j":
		m.moveSelection(msg.String() == "ctrl+j")
		return m, nil

	case "enter":
		if m.mode == modeSearch {
			m.runSearch()
			return m, nil
		}
		return m.send()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	return m, cmd
}

func (m *Model) runSearch() {
	keyword := strings.TrimSpace(m.textinput.Value())
	m.leaveSearch()
	sessions := m.ctl.ListSessions(keyword)
	switch {
	case keyword == "":
		m.status = "Ready"
	case len(sessions) == 0:
		m.status = fmt.Sprintf("No results for %q", keyword)
	default:
		m.status = fmt.Sprintf("%d results for %q", len(sessions), keyword)
	}
}

func (m *Model) leaveSearch() {
	m.mode = modeChat
	m.textinput.SetValue("")
	m.textinput.Prompt = "❯ "
}

func (m *Model) moveSelection(down bool) {
	listing := m.ctl.Listing()
	if len(listing) == 0 {
		return
	}
	idx := m.ctl.ActiveIndex()
	if down {
		idx++
	} else {
		idx--
	}
	if idx < 0 || idx >= len(listing) {
		return
	}
	m.transcript = m.ctl.SelectSession(listing[idx].ID)
	m.refreshViewport()
	m.viewport.GotoBottom()
	m.status = fmt.Sprintf("Loaded conversation %d", listing[idx].ID)
}

func (m Model) send() (tea.Model, tea.Cmd) {
	text := m.textinput.Value()
	send, err := m.ctl.SendMessage(text)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyInput) {
			return m, nil
		}
		m.logger.Warn("send failed", zap.Error(err))
		return m, nil
	}

	m.textinput.SetValue("")
	m.transcript = append(m.transcript, send.Message)
	m.refreshViewport()
	m.viewport.GotoBottom()
	m.pending++
	m.status = "Thinking..."

	complete := func() tea.Msg {
		return replyMsg{reply: send.Complete(context.Background())}
	}
	return m, tea.Batch(complete, m.spinner.Tick)
}

func (m Model) deleteActive() (tea.Model, tea.Cmd) {
	deletion, ok := m.ctl.DeleteSession(m.ctl.ActiveSession())
	if !ok {
		m.status = "Delete failed"
		return m, nil
	}
	if deletion.Next != nil {
		m.transcript = deletion.Messages
		m.status = fmt.Sprintf("Deleted; showing %q", displayTitle(deletion.Next.Title))
	} else {
		m.transcript = nil
		m.status = "Conversation deleted"
	}
	m.refreshViewport()
	return m, nil
}

// ---------- rendering ----------

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting..."
	}

	sidebar := m.renderSidebar()
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.renderInput(),
		m.renderStatus(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (m Model) renderSidebar() string {
	listing := m.ctl.Listing()
	active := m.ctl.ActiveIndex()

	var b strings.Builder
	b.WriteString(sessionRowStyle.Render("Conversations"))
	b.WriteString("\n\n")
	for i, sess := range listing {
		row := sessionRow(sess.Title, i == active, sidebarWidth-4)
		b.WriteString(row)
		b.WriteString("\n")
	}
	if len(listing) == 0 {
		b.WriteString(greetingStyle.Render("no conversations"))
	}
	return sidebarStyle.Height(m.height - 1).Render(b.String())
}

func (m Model) renderInput() string {
	if m.mode == modeConfirmDelete {
		return confirmStyle.Render("Delete this conversation permanently? (y/n)")
	}
	return m.textinput.View()
}

func (m Model) renderStatus() string {
	status := m.status
	if m.pending > 0 {
		status = m.spinner.View() + " " + status
	}
	return statusBarStyle.Width(m.width - sidebarWidth - 2).Render(status)
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	if len(m.transcript) == 0 {
		m.viewport.SetContent(greetingStyle.Render(greeting))
		return
	}

	var b strings.Builder
	for _, msg := range m.transcript {
		if msg.Sender == models.SenderUser {
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(assistantStyle.Render("Jammin"))
		b.WriteString("\n")
		b.WriteString(m.renderMarkdown(msg.Content))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

// renderMarkdown converts assistant markdown to terminal markup, falling
// back to the raw text when rendering fails.
func (m *Model) renderMarkdown(content string) string {
	r := m.markdownRenderer()
	if r == nil {
		return content + "\n"
	}
	out, err := r.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

func (m *Model) markdownRenderer() *glamour.TermRenderer {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	wrapWidth := width - 2
	if m.mdRenderer != nil && m.mdRendererWidth == wrapWidth {
		return m.mdRenderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return nil
	}
	m.mdRenderer = r
	m.mdRendererWidth = wrapWidth
	return r
}

// sessionRow formats a sidebar entry, truncating long titles to fit.
func sessionRow(title string, active bool, width int) string {
	title = displayTitle(title)
	runes := []rune(title)
	if width > 1 && len(runes) > width {
		title = string(runes[:width-1]) + "…"
	}
	if active {
		return sessionActiveStyle.Render("▌ " + title)
	}
	return sessionRowStyle.Render("  " + title)
}

func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return models.DefaultTitle
	}
	return title
}

// Run starts the TUI and blocks until exit.
func Run(ctl *chat.Controller, logger *zap.Logger) error {
	p := tea.NewProgram(NewModel(ctl, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
