// Package chat renders the unread direct messages view and the reply
// composer.
package chat

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edusuite/edusync/internal/keys"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/store"
	"github.com/edusuite/edusync/internal/theme"
)

// MarkedMsg reports the outcome of marking a message as read.
type MarkedMsg struct {
	ID  string
	Err error
}

// SentMsg reports a message sent from the composer.
type SentMsg struct {
	Message model.Message
}

// Model is the direct messages view. The top half lists messages newest
// first; pressing enter opens a composer replying to the selected sender.
type Model struct {
	messages  *store.MessageStore
	keys      *keys.KeyMap
	input     textinput.Model
	cursor    int
	composing bool
	replyTo   string
	width     int
	height    int
}

// New creates a new chat view model.
func New(messages *store.MessageStore, keys *keys.KeyMap, width, height int) Model {
	input := textinput.New()
	input.Placeholder = "Reply…"
	input.CharLimit = 500
	return Model{
		messages: messages,
		keys:     keys,
		input:    input,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the chat view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		m.clampCursor()
		return m, nil
	}

	if m.composing {
		return m.updateComposer(keyMsg)
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		m.cursor++
	case key.Matches(keyMsg, m.keys.MarkRead):
		return m, m.markSelected()
	case key.Matches(keyMsg, m.keys.Select):
		if msg, ok := m.selected(); ok {
			m.composing = true
			m.replyTo = msg.SenderID
			m.input.Focus()
			return m, textinput.Blink
		}
	}

	m.clampCursor()
	return m, nil
}

func (m Model) updateComposer(keyMsg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(keyMsg, m.keys.Back):
		m.messages.Typing(m.replyTo, true)
		m.composing = false
		m.input.Reset()
		return m, nil
	case key.Matches(keyMsg, m.keys.Select):
		body := m.input.Value()
		if body == "" {
			return m, nil
		}
		m.messages.Typing(m.replyTo, true)
		sent := m.messages.Send(m.replyTo, body)
		m.composing = false
		m.input.Reset()
		return m, func() tea.Msg { return SentMsg{Message: sent} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(keyMsg)
	// Every edit keystroke refreshes the peer's typing indicator.
	m.messages.Typing(m.replyTo, false)
	return m, cmd
}

// Composing reports whether the reply input currently owns the keyboard.
func (m Model) Composing() bool {
	return m.composing
}

func (m Model) selected() (model.Message, bool) {
	list := m.messages.Messages()
	if m.cursor < 0 || m.cursor >= len(list) {
		return model.Message{}, false
	}
	return list[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.messages.Messages())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) markSelected() tea.Cmd {
	msg, ok := m.selected()
	if !ok || msg.Read {
		return nil
	}
	messages := m.messages
	return func() tea.Msg {
		err := messages.MarkRead(context.Background(), msg.ID)
		return MarkedMsg{ID: msg.ID, Err: err}
	}
}

// View renders the message list and, when composing, the reply input.
func (m Model) View() string {
	list := m.messages.Messages()

	var rows []string
	if len(list) == 0 {
		rows = append(rows, theme.HelpStyle.Render("No messages."))
	}
	for i, msg := range list {
		line := fmt.Sprintf("%s: %s", msg.SenderID, truncate(msg.Body, m.width-16))

		switch {
		case i == m.cursor && !m.composing:
			line = theme.SelectedItemStyle.Render(line)
		case msg.Read:
			line = theme.ListItemStyle.Render(theme.ReadStyle.Render(line))
		default:
			line = theme.ListItemStyle.Render(theme.UnreadStyle.Render(line))
		}
		rows = append(rows, line)
	}

	if m.composing {
		prompt := theme.HelpStyle.Render(fmt.Sprintf("Replying to %s (esc to cancel)", m.replyTo))
		rows = append(rows, "", prompt, m.input.View())
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

// SetSize updates the chat view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 4
}
