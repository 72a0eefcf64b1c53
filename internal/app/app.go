// Package app wires the stores, the realtime connection, and the views
// into the root terminal program.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edusuite/edusync/internal/api"
	"github.com/edusuite/edusync/internal/credential"
	"github.com/edusuite/edusync/internal/keys"
	"github.com/edusuite/edusync/internal/logger"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/prefs"
	"github.com/edusuite/edusync/internal/realtime"
	"github.com/edusuite/edusync/internal/store"
	appsync "github.com/edusuite/edusync/internal/sync"
	"github.com/edusuite/edusync/internal/ui"
	"github.com/edusuite/edusync/internal/ui/board"
	"github.com/edusuite/edusync/internal/ui/chat"
	"github.com/edusuite/edusync/internal/ui/help"
	"github.com/edusuite/edusync/internal/ui/inbox"
	"github.com/edusuite/edusync/internal/ui/login"
)

type view int

const (
	viewLogin view = iota
	viewBoard
	viewInbox
	viewChat
	viewHelp
)

// Deps carries everything the root model needs. All fields are required
// except Token, which is empty when no stored session exists.
type Deps struct {
	Client        *api.Client
	Conn          *realtime.Manager
	Notifications *store.NotificationStore
	Messages      *store.MessageStore
	Board         *store.BoardStore
	Reconciler    *appsync.Reconciler
	Prefs         *prefs.Store
	Log           *logger.Logger

	// Token is the credential recovered from the keyring, if any.
	Token string
}

// bootMsg starts a session from a stored credential.
type bootMsg struct{ token string }

// pushMsg reports that a realtime event mutated a store, forcing a
// re-render.
type pushMsg struct{ event string }

// soundToggledMsg reports the new global sound flag.
type soundToggledMsg struct {
	enabled bool
	err     error
}

// Model is the root bubbletea model.
type Model struct {
	deps Deps
	keys *keys.KeyMap
	log  *logger.Logger

	layout   ui.Layout
	view     view
	prevView view

	login login.Model
	board board.Model
	inbox inbox.Model
	chat  chat.Model
	help  help.Model

	user    model.User
	session bool
	toast   string

	pushCh chan string
}

// New creates the root model. When deps.Token is non-empty the stored
// session is resumed on startup; otherwise the login form is shown.
func New(deps Deps) Model {
	km := keys.Default()
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	m := Model{
		deps:   deps,
		keys:   km,
		log:    log,
		layout: ui.NewLayout(80, 24),
		view:   viewLogin,
		login:  login.New(deps.Client, 80, 24),
		board:  board.New(deps.Board, km, 80, 24),
		inbox:  inbox.New(deps.Notifications, km, 80, 24),
		chat:   chat.New(deps.Messages, km, 80, 24),
		help:   help.New(km, 80, 24),
		pushCh: make(chan string, 32),
	}
	return m
}

// Init resumes a stored session or shows the login form.
func (m Model) Init() tea.Cmd {
	if m.deps.Token != "" {
		token := m.deps.Token
		return func() tea.Msg { return bootMsg{token: token} }
	}
	return m.login.Init()
}

// Update routes messages to the active view and handles global concerns:
// session lifecycle, reconciliation results, realtime pushes, and the
// global keybindings.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case bootMsg:
		return m.beginSession(msg.token)

	case login.ResultMsg:
		if msg.Err == nil {
			return m.completeLogin(msg.Result)
		}
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd

	case appsync.Result:
		return m.handleSyncResult(msg)

	case pushMsg:
		// Store state already changed; re-rendering is all that is left.
		return m, m.waitForPush()

	case board.OpDoneMsg:
		if msg.Err != nil {
			m.toast = fmt.Sprintf("%s failed: %v", msg.Op, msg.Err)
		} else {
			m.toast = ""
		}
		return m, nil

	case inbox.MarkedMsg:
		if msg.Err != nil {
			m.toast = fmt.Sprintf("mark notification read failed: %v", msg.Err)
		}
		return m, nil

	case chat.MarkedMsg:
		if msg.Err != nil {
			m.toast = fmt.Sprintf("mark message read failed: %v", msg.Err)
		}
		return m, nil

	case chat.SentMsg:
		m.toast = fmt.Sprintf("sent to %s", msg.Message.ReceiverID)
		return m, nil

	case soundToggledMsg:
		if msg.err != nil {
			m.toast = fmt.Sprintf("toggling sound: %v", msg.err)
		} else if msg.enabled {
			m.toast = "sound on"
		} else {
			m.toast = "sound off"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Text entry surfaces own the keyboard apart from the interrupt key.
	if m.view == viewLogin || (m.view == viewChat && m.chat.Composing()) {
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		if m.view == viewHelp {
			m.view = m.prevView
		} else {
			m.prevView = m.view
			m.view = viewHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.Back) && m.view == viewHelp:
		m.view = m.prevView
		return m, nil

	case key.Matches(msg, m.keys.ViewBoard):
		m.view = viewBoard
		return m, nil

	case key.Matches(msg, m.keys.ViewInbox):
		m.view = viewInbox
		return m, nil

	case key.Matches(msg, m.keys.ViewMessages):
		m.view = viewChat
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.session {
			m.deps.Reconciler.TriggerAll()
			m.toast = "refreshing…"
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleSound):
		return m, m.toggleSound()

	case key.Matches(msg, m.keys.Logout):
		return m.logout()
	}

	return m.updateActiveView(msg)
}

func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case viewLogin:
		m.login, cmd = m.login.Update(msg)
	case viewBoard:
		m.board, cmd = m.board.Update(msg)
	case viewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case viewChat:
		m.chat, cmd = m.chat.Update(msg)
	case viewHelp:
		m.help, cmd = m.help.Update(msg)
	}
	return m, cmd
}

// completeLogin persists the fresh credential and starts the session.
func (m Model) completeLogin(result *api.LoginResult) (tea.Model, tea.Cmd) {
	if err := credential.Set(credential.TokenKey, result.Token); err != nil {
		m.log.Warnw("storing session token", "error", err)
		m.toast = "session will not survive restart: " + err.Error()
	}
	if err := m.deps.Prefs.SetSessionStart(time.Now()); err != nil {
		m.log.Warnw("recording session start", "error", err)
	}

	m.user = result.User
	m.deps.Messages.SetUser(result.User.ID)
	return m.beginSession(result.Token)
}

// beginSession connects the realtime channel, binds the stores to it, and
// starts background reconciliation.
func (m Model) beginSession(token string) (tea.Model, tea.Cmd) {
	deps := m.deps

	deps.Client.SetToken(token)
	deps.Conn.SetToken(token)

	deps.Notifications.Bind(deps.Conn)
	deps.Messages.Bind(deps.Conn)
	deps.Board.Bind(deps.Conn)
	m.bindRenderNudges()

	deps.Conn.Connect(context.Background())

	deps.Reconciler.Register("notifications", refreshFunc(deps.Notifications.FetchSnapshot))
	deps.Reconciler.Register("messages", refreshFunc(deps.Messages.FetchUnread))
	deps.Reconciler.Register("board", deps.Board)
	deps.Board.SetRefreshTrigger(func() { deps.Reconciler.Trigger("board") })

	m.session = true
	m.view = viewBoard

	return m, tea.Batch(deps.Reconciler.Start(), m.waitForPush())
}

// bindRenderNudges registers a handler per consumed realtime event that
// wakes the render loop after the stores have applied the push.
func (m Model) bindRenderNudges() {
	events := []string{
		realtime.EventNewNotification,
		realtime.EventNotificationRead,
		realtime.EventPrivateMessage,
		realtime.EventMessageRead,
		realtime.EventNewTask,
		realtime.EventTaskUpdated,
		realtime.EventTaskActivity,
	}
	for _, event := range events {
		event := event
		m.deps.Conn.On(event, func(_ json.RawMessage) {
			select {
			case m.pushCh <- event:
			default:
			}
		})
	}
}

func (m Model) waitForPush() tea.Cmd {
	ch := m.pushCh
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return pushMsg{event: event}
	}
}

func (m Model) handleSyncResult(res appsync.Result) (tea.Model, tea.Cmd) {
	switch {
	case res.OutOfSync:
		m.toast = fmt.Sprintf("%s out of sync: %v", res.Name, res.Err)
	case res.Err != nil:
		m.toast = fmt.Sprintf("%s refresh failed: %v", res.Name, res.Err)
	}

	// The first notification snapshot carries the authenticated user.
	if res.Name == "notifications" && res.Err == nil && m.user.ID == "" {
		m.user = m.deps.Notifications.User()
		m.deps.Messages.SetUser(m.user.ID)
	}

	if api.IsAuthError(res.Err) {
		return m.logout()
	}

	return m, m.deps.Reconciler.WaitForNextResult()
}

func (m Model) toggleSound() tea.Cmd {
	p := m.deps.Prefs
	return func() tea.Msg {
		enabled, err := p.SoundEnabled()
		if err != nil {
			return soundToggledMsg{err: err}
		}
		if err := p.SetSoundEnabled(!enabled); err != nil {
			return soundToggledMsg{err: err}
		}
		return soundToggledMsg{enabled: !enabled}
	}
}

// logout tears the session down, forgets the stored credential, and exits.
// The connection and reconciler are one-shot, so a fresh login happens in
// a fresh process.
func (m Model) logout() (tea.Model, tea.Cmd) {
	if m.session {
		m.deps.Conn.Close()
		m.deps.Reconciler.Stop()
		m.deps.Board.Close()
	}
	if err := credential.Delete(credential.TokenKey); err != nil {
		m.log.Warnw("deleting session token", "error", err)
	}
	if err := m.deps.Prefs.ClearSession(); err != nil {
		m.log.Warnw("clearing session", "error", err)
	}
	m.deps.Client.SetToken("")
	return m, tea.Quit
}

func (m *Model) resize(width, height int) {
	m.layout = ui.NewLayout(width, height)
	content := m.layout.ContentHeight()
	m.login.SetSize(width, height)
	m.board.SetSize(width, content)
	m.inbox.SetSize(width, content)
	m.chat.SetSize(width, content)
	m.help.SetSize(width, content)
}

// View renders the active view inside the shared frame.
func (m Model) View() string {
	if m.view == viewLogin {
		return lipgloss.Place(
			m.layout.Width, m.layout.Height,
			lipgloss.Center, lipgloss.Center,
			m.login.View(),
		)
	}

	title := "EduSync"
	if m.user.Name != "" {
		title = "EduSync · " + m.user.Name
	}

	connStatus := "○ offline"
	if m.deps.Conn.Connected() {
		connStatus = "● live"
	}

	var content string
	switch m.view {
	case viewBoard:
		content = m.board.View()
	case viewInbox:
		content = m.inbox.View()
	case viewChat:
		content = m.chat.View()
	case viewHelp:
		content = m.help.View()
	}

	return m.layout.RenderWithFrame(
		m.layout.RenderHeader(title, connStatus),
		lipgloss.NewStyle().Height(m.layout.ContentHeight()).Render(content),
		m.layout.RenderStatusBar(m.statusLine(), m.deps.Board.OutOfSync()),
	)
}

func (m Model) statusLine() string {
	line := fmt.Sprintf("1 board (%d) · 2 inbox (%d) · 3 messages (%d) · ? help",
		m.deps.Board.Len(),
		m.deps.Notifications.UnreadCount(),
		m.deps.Messages.UnreadCount(),
	)
	if m.deps.Board.OutOfSync() {
		line = "OUT OF SYNC · " + line
	}
	if m.toast != "" {
		line += " · " + m.toast
	}
	return line
}

// refreshFunc adapts a fetch method to the reconciler's Refreshable.
type refreshFunc func(context.Context) error

// Refresh implements appsync.Refreshable.
func (f refreshFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}
