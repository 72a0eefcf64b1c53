// Package board renders the kanban-style task board and drives the
// optimistic task mutations behind it.
package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edusuite/edusync/internal/keys"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/store"
	"github.com/edusuite/edusync/internal/theme"
)

// OpDoneMsg reports the outcome of a board mutation issued from this view.
type OpDoneMsg struct {
	// Op names the mutation, e.g. "advance status".
	Op string
	// Err is nil when the server confirmed the change.
	Err error
}

// Model is the task board view. Task state lives in the board store; the
// view only tracks the cursor and reads fresh buckets on every render.
type Model struct {
	board  *store.BoardStore
	keys   *keys.KeyMap
	col    int
	row    int
	width  int
	height int
}

// New creates a new board view model.
func New(board *store.BoardStore, keys *keys.KeyMap, width, height int) Model {
	return Model{
		board:  board,
		keys:   keys,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the board view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		m.clampCursor()
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(keyMsg, m.keys.Down):
		m.row++
	case key.Matches(keyMsg, m.keys.Left):
		if m.col > 0 {
			m.col--
			m.row = 0
		}
	case key.Matches(keyMsg, m.keys.Right):
		if m.col < len(model.Statuses)-1 {
			m.col++
			m.row = 0
		}
	case key.Matches(keyMsg, m.keys.AdvanceStatus):
		return m, m.advanceStatus()
	case key.Matches(keyMsg, m.keys.CyclePriority):
		return m, m.cyclePriority()
	case key.Matches(keyMsg, m.keys.DeleteTask):
		return m, m.deleteTask()
	}

	m.clampCursor()
	return m, nil
}

// Selected returns the task under the cursor, if any.
func (m Model) Selected() (model.Task, bool) {
	tasks := m.board.Bucket(model.Statuses[m.col])
	if m.row < 0 || m.row >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[m.row], true
}

func (m *Model) clampCursor() {
	tasks := m.board.Bucket(model.Statuses[m.col])
	if m.row >= len(tasks) {
		m.row = len(tasks) - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func (m Model) advanceStatus() tea.Cmd {
	task, ok := m.Selected()
	if !ok {
		return nil
	}
	next := nextStatus(task.Status)
	board := m.board
	return func() tea.Msg {
		err := board.UpdateStatus(context.Background(), task.ID, next)
		if errors.Is(err, store.ErrUpdateInFlight) {
			err = fmt.Errorf("task %q: %w", task.Title, err)
		}
		return OpDoneMsg{Op: "advance status", Err: err}
	}
}

func (m Model) cyclePriority() tea.Cmd {
	task, ok := m.Selected()
	if !ok {
		return nil
	}
	next := nextPriority(task.Priority)
	board := m.board
	return func() tea.Msg {
		err := board.UpdatePriority(context.Background(), task.ID, next)
		return OpDoneMsg{Op: "cycle priority", Err: err}
	}
}

func (m Model) deleteTask() tea.Cmd {
	task, ok := m.Selected()
	if !ok {
		return nil
	}
	board := m.board
	return func() tea.Msg {
		err := board.DeleteTask(context.Background(), task.ID)
		return OpDoneMsg{Op: "delete task", Err: err}
	}
}

// nextStatus returns the status a task moves to when advanced from the
// board. Terminal statuses wrap back to Pending so a key press is never
// a dead end.
func nextStatus(s model.Status) model.Status {
	for i, status := range model.Statuses {
		if status == s {
			return model.Statuses[(i+1)%len(model.Statuses)]
		}
	}
	return model.StatusPending
}

func nextPriority(p model.Priority) model.Priority {
	switch p {
	case model.PriorityLow:
		return model.PriorityMedium
	case model.PriorityMedium:
		return model.PriorityHigh
	case model.PriorityHigh:
		return model.PriorityUrgent
	default:
		return model.PriorityLow
	}
}

// View renders the board as one column per status.
func (m Model) View() string {
	colWidth := m.width/len(model.Statuses) - 3
	if colWidth < 12 {
		colWidth = 12
	}

	columns := make([]string, 0, len(model.Statuses))
	for i, status := range model.Statuses {
		columns = append(columns, m.renderColumn(i, status, colWidth))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func (m Model) renderColumn(index int, status model.Status, width int) string {
	tasks := m.board.Bucket(status)

	header := theme.StatusStyle(status).
		Render(fmt.Sprintf("%s (%d)", status, len(tasks)))

	rows := make([]string, 0, len(tasks)+1)
	rows = append(rows, header)
	for i, task := range tasks {
		line := truncate(task.Title, width-2)
		marker := theme.PriorityStyle(task.Priority).Render("•")
		rendered := theme.ListItemStyle.Render(marker + " " + line)
		if index == m.col && i == m.row {
			rendered = theme.SelectedItemStyle.Render(marker + " " + line)
		}
		rows = append(rows, rendered)
	}

	style := theme.ColumnStyle
	if index == m.col {
		style = theme.FocusedColumnStyle
	}
	return style.
		Width(width).
		Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
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

// SetSize updates the board view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
