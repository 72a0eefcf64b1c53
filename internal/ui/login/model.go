// Package login renders the credential form shown before a session exists.
package login

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/edusuite/edusync/internal/api"
	"github.com/edusuite/edusync/internal/theme"
)

// ResultMsg carries the outcome of a login attempt. Result is non-nil
// exactly when Err is nil.
type ResultMsg struct {
	Result *api.LoginResult
	Err    error
}

// Model is the login form view.
type Model struct {
	client   *api.Client
	form     *huh.Form
	email    string
	password string
	errText  string
	busy     bool
	width    int
	height   int
}

// New creates a new login view model.
func New(client *api.Client, width, height int) Model {
	m := Model{
		client: client,
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@institute.edu").
				Value(&m.email).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("email is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	)
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the login view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if result, ok := msg.(ResultMsg); ok {
		m.busy = false
		if result.Err != nil {
			m.errText = result.Err.Error()
			m.password = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, nil
	}

	if m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		m.errText = ""
		return m, m.submit()
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	client := m.client
	email, password := m.email, m.password
	return func() tea.Msg {
		result, err := client.Login(context.Background(), email, password)
		return ResultMsg{Result: result, Err: err}
	}
}

// View renders the login form.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Sign in to EduSync")

	parts := []string{title}
	if m.busy {
		parts = append(parts, theme.HelpStyle.Render("Signing in…"))
	} else {
		parts = append(parts, m.form.View())
	}
	if m.errText != "" {
		errStyle := lipgloss.NewStyle().Foreground(theme.ColorRed)
		parts = append(parts, errStyle.Render(m.errText))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the login view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
