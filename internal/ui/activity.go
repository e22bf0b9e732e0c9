package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jsarenik/btcpos/internal/logging"
)

const activityLimit = 200

// activityState is the in-terminal view of the log file.
type activityState struct {
	open     bool
	entries  []logging.Entry
	err      error
	viewport viewport.Model
}

type activityMsg struct {
	entries []logging.Entry
	err     error
}

type activityTickMsg time.Time

func fetchActivityCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logging.Tail(path, activityLimit)
		return activityMsg{entries: entries, err: err}
	}
}

func activityTick() tea.Cmd {
	return tea.Tick(activityRefresh, func(t time.Time) tea.Msg {
		return activityTickMsg(t)
	})
}

func (m *Model) openActivity() tea.Cmd {
	m.activity.open = true
	m.resizeActivity()
	return tea.Batch(fetchActivityCmd(m.logFile), activityTick())
}

func (m *Model) resizeActivity() {
	w, h := m.width-4, m.height-6
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	if m.activity.viewport.Width == 0 {
		m.activity.viewport = viewport.New(w, h)
	}
	m.activity.viewport.Width = w
	m.activity.viewport.Height = h
}

func (m *Model) handleActivity(msg activityMsg) {
	atBottom := m.activity.viewport.AtBottom() || len(m.activity.entries) == 0
	m.activity.entries = msg.entries
	m.activity.err = msg.err
	m.activity.viewport.SetContent(m.renderActivityLines())
	if atBottom {
		m.activity.viewport.GotoBottom()
	}
}

func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Activity):
		m.activity.open = false
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.activity.viewport.ScrollUp(1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.activity.viewport.ScrollDown(1)
		return m, nil
	}
	var cmd tea.Cmd
	m.activity.viewport, cmd = m.activity.viewport.Update(msg)
	return m, cmd
}

func (m Model) renderActivityLines() string {
	styles := m.theme.Styles()
	if m.activity.err != nil {
		return styles.DangerText.Render(m.activity.err.Error())
	}
	if len(m.activity.entries) == 0 {
		return styles.FaintText.Render("No activity yet.")
	}
	lines := make([]string, 0, len(m.activity.entries))
	for _, e := range m.activity.entries {
		lines = append(lines, levelStyle(e.Level, styles).Render(e.String()))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderActivity() string {
	styles := m.theme.Styles()
	title := styles.AccentText.Bold(true).Render("Activity") + " " +
		styles.FaintText.Render(truncateMiddle(m.logFile, 60))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus))
	return title + "\n" + box.Render(m.activity.viewport.View())
}

func levelStyle(level string, styles Styles) lipgloss.Style {
	switch strings.ToLower(level) {
	case "info":
		return styles.SuccessText.UnsetBold()
	case "warn":
		return styles.WarningText
	case "error", "fatal", "panic":
		return styles.DangerText
	case "debug", "trace":
		return styles.InfoText
	default:
		return styles.Text
	}
}
