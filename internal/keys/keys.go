// Package keys defines the global keybindings for the dashboard.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every keybinding the dashboard responds to. A single map is
// shared by all views so the help overlay can describe the whole application.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Select key.Binding
	Back   key.Binding
	Quit   key.Binding
	Help   key.Binding

	Refresh key.Binding

	ViewBoard    key.Binding
	ViewInbox    key.Binding
	ViewMessages key.Binding

	AdvanceStatus key.Binding
	CyclePriority key.Binding
	DeleteTask    key.Binding
	MarkRead      key.Binding
	ToggleSound   key.Binding
	Logout        key.Binding
}

// Default returns the standard keybindings.
func Default() *KeyMap {
	return &KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev column"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next column"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ViewBoard: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "board"),
		),
		ViewInbox: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "inbox"),
		),
		ViewMessages: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "messages"),
		),
		AdvanceStatus: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "advance status"),
		),
		CyclePriority: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "cycle priority"),
		),
		DeleteTask: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete task"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark read"),
		),
		ToggleSound: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "toggle sound"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "log out"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Refresh,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Select, k.Back},
		{k.ViewBoard, k.ViewInbox, k.ViewMessages, k.Help, k.Quit},
		{k.AdvanceStatus, k.CyclePriority, k.DeleteTask, k.Refresh},
		{k.MarkRead, k.ToggleSound, k.Logout},
	}
}
