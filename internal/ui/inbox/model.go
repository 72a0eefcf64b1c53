// Package inbox renders the notification list.
package inbox

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edusuite/edusync/internal/keys"
	"github.com/edusuite/edusync/internal/store"
	"github.com/edusuite/edusync/internal/theme"
)

// MarkedMsg reports the outcome of marking a notification as read.
type MarkedMsg struct {
	ID  string
	Err error
}

// Model is the notification inbox view.
type Model struct {
	notifications *store.NotificationStore
	keys          *keys.KeyMap
	cursor        int
	width         int
	height        int
}

// New creates a new inbox view model.
func New(notifications *store.NotificationStore, keys *keys.KeyMap, width, height int) Model {
	return Model{
		notifications: notifications,
		keys:          keys,
		width:         width,
		height:        height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		m.clampCursor()
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		m.cursor++
	case key.Matches(keyMsg, m.keys.MarkRead), key.Matches(keyMsg, m.keys.Select):
		return m, m.markSelected()
	}

	m.clampCursor()
	return m, nil
}

func (m *Model) clampCursor() {
	n := len(m.notifications.Notifications())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) markSelected() tea.Cmd {
	list := m.notifications.Notifications()
	if m.cursor < 0 || m.cursor >= len(list) {
		return nil
	}
	n := list[m.cursor]
	if n.IsRead {
		return nil
	}
	notifications := m.notifications
	return func() tea.Msg {
		err := notifications.MarkAsRead(context.Background(), n.ID)
		return MarkedMsg{ID: n.ID, Err: err}
	}
}

// View renders the notification list, newest first.
func (m Model) View() string {
	list := m.notifications.Notifications()
	if len(list) == 0 {
		return theme.HelpStyle.Render("No notifications.")
	}

	rows := make([]string, 0, len(list))
	for i, n := range list {
		badge := theme.SeverityStyle(n.Severity).Render(string(n.Category))
		title := n.Title
		if title == "" {
			title = n.Message
		}
		line := fmt.Sprintf("%s %s", badge, truncate(title, m.width-12))

		switch {
		case i == m.cursor:
			line = theme.SelectedItemStyle.Render(line)
		case n.IsRead:
			line = theme.ListItemStyle.Render(theme.ReadStyle.Render(line))
		default:
			line = theme.ListItemStyle.Render(theme.UnreadStyle.Render(line))
		}
		rows = append(rows, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func truncate(s string, max int) string {
	if max < 1 || len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

// SetSize updates the inbox view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
