// Package watch implements the read-only session dashboard behind
// 'klaude watch'. It renders the project's sessions in tree order as a
// table and reloads whenever the shared database changes.
package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/klaude/internal/format"
	"github.com/zjrosen/klaude/internal/store"
)

// refreshInterval is the fallback reload cadence when no database change
// notification arrives. It also keeps the AGE column fresh.
const refreshInterval = 5 * time.Second

// chromeHeight is the number of view lines outside the table: title,
// status summary, one blank line, and the footer.
const chromeHeight = 4

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(format.TextPrimaryColor)

	selectedStyle = lipgloss.NewStyle().Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "254", Dark: "237"})
)

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

type (
	// sessionsLoadedMsg carries the result of a store read.
	sessionsLoadedMsg struct {
		sessions []*store.Session
		err      error
	}

	// dbChangedMsg fires when the watcher reports a database write.
	dbChangedMsg struct{}

	// tickMsg drives the fallback refresh cadence.
	tickMsg struct{}
)

// Config holds the dependencies for a dashboard Model.
type Config struct {
	Store   *store.Store
	Project *store.Project
	// Changes delivers database change notifications. Nil disables
	// change-driven refresh; the periodic tick still reloads.
	Changes <-chan struct{}
}

// Model is the dashboard state.
type Model struct {
	st      *store.Store
	project *store.Project
	changes <-chan struct{}

	sessions  []*store.Session
	table     table.Model
	keys      keyMap
	err       error
	refreshed time.Time
	width     int
	height    int
}

// New creates a dashboard model for the given project.
func New(cfg Config) Model {
	t := table.New(
		table.WithColumns(sessionColumns(80)),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).Foreground(format.TextMutedColor)
	s.Selected = selectedStyle
	t.SetStyles(s)

	return Model{
		st:      cfg.Store,
		project: cfg.Project,
		changes: cfg.Changes,
		table:   t,
		keys:    defaultKeyMap(),
	}
}

// Init loads the session list and starts the refresh sources.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadSessions(), m.waitForChange(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// waitForChange blocks on the watcher channel. The command is reissued
// after every delivery so the subscription stays live.
func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return dbChangedMsg{}
	}
}

func (m Model) loadSessions() tea.Cmd {
	st, projectID := m.st, m.project.ID
	return func() tea.Msg {
		sessions, err := st.ListProjectSessions(projectID)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(sessionColumns(msg.Width))
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(msg.Height-chromeHeight, 3))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.loadSessions()
		}

	case dbChangedMsg:
		return m, tea.Batch(m.loadSessions(), m.waitForChange())

	case tickMsg:
		return m, tea.Batch(m.loadSessions(), m.tick())

	case sessionsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.sessions = msg.sessions
			m.refreshed = time.Now()
			m.table.SetRows(sessionRows(msg.sessions))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the dashboard. Empty until the first window size arrives.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("klaude"))
	b.WriteString(" ")
	b.WriteString(format.MutedStyle.Render(m.project.RootPath))
	b.WriteString("\n")
	b.WriteString(m.statusSummary())
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

var summaryOrder = []store.SessionStatus{
	store.StatusActive,
	store.StatusRunning,
	store.StatusDone,
	store.StatusFailed,
	store.StatusInterrupted,
	store.StatusOrphaned,
}

func (m Model) statusSummary() string {
	if len(m.sessions) == 0 {
		return format.MutedStyle.Render("no sessions yet")
	}
	counts := make(map[store.SessionStatus]int)
	for _, s := range m.sessions {
		counts[s.Status]++
	}
	parts := make([]string, 0, len(summaryOrder))
	for _, status := range summaryOrder {
		n := counts[status]
		if n == 0 {
			continue
		}
		style := lipgloss.NewStyle().Foreground(format.StatusColor(status))
		parts = append(parts, style.Render(fmt.Sprintf("%d %s", n, status)))
	}
	return strings.Join(parts, "  ")
}

func (m Model) footer() string {
	if m.err != nil {
		return format.ErrorStyle.Render("load failed: " + m.err.Error())
	}
	help := "j/k move   r refresh   q quit"
	if !m.refreshed.IsZero() {
		help += "   updated " + m.refreshed.Format("15:04:05")
	}
	return format.MutedStyle.Render(help)
}

// sessionColumns sizes the table columns for the given terminal width.
// The TITLE column absorbs the remainder.
func sessionColumns(width int) []table.Column {
	const idW, agentW, statusW, ageW = 8, 18, 13, 5
	// Each column carries one cell of padding on both sides.
	fixed := idW + agentW + statusW + ageW + 2*5
	titleW := max(width-fixed, 10)
	return []table.Column{
		{Title: "ID", Width: idW},
		{Title: "AGENT", Width: agentW},
		{Title: "STATUS", Width: statusW},
		{Title: "AGE", Width: ageW},
		{Title: "TITLE", Width: titleW},
	}
}

// sessionRows flattens the session tree into table rows, children
// indented under their parents in creation order.
func sessionRows(sessions []*store.Session) []table.Row {
	roots := format.BuildSessionTree(sessions)
	rows := make([]table.Row, 0, len(sessions))
	var walk func(n *format.SessionNode, depth int)
	walk = func(n *format.SessionNode, depth int) {
		s := n.Session
		agent := s.AgentType
		if depth > 0 {
			agent = strings.Repeat("  ", depth-1) + "└ " + agent
		}
		rows = append(rows, table.Row{
			store.ShortID(s.ID),
			agent,
			format.StatusGlyph(s.Status) + " " + string(s.Status),
			shortAge(time.Since(s.CreatedAt)),
			format.FirstLine(s.Title),
		})
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return rows
}

func shortAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", max(int(d.Seconds()), 0))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
