package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edusuite/edusync/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxBackoff caps the reconnect delay.
	maxBackoff = 30 * time.Second
)

// Manager owns the single realtime connection shared by all stores.
// Stores register event handlers with On; the manager dials, authenticates,
// dispatches inbound frames, and reconnects with capped exponential backoff.
// Handlers survive reconnects because they are registered on the manager,
// not on the underlying socket.
type Manager struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    *logger.Logger

	mu       sync.Mutex
	handlers map[string][]Handler
	conn     *websocket.Conn
	started  bool
	closed   bool

	outbox chan envelope
	done   chan struct{}
}

// NewManager creates a connection manager for the given websocket URL and
// bearer credential. No connection is attempted until Connect.
func NewManager(url, token string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		url:      url,
		token:    token,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      log,
		handlers: make(map[string][]Handler),
		outbox:   make(chan envelope, 256),
		done:     make(chan struct{}),
	}
}

// On registers a handler for a named event. Multiple handlers may be
// registered for the same event; execution order across handlers is
// unspecified and must not be relied upon.
func (m *Manager) On(event string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], h)
}

// SetToken replaces the bearer credential used on the next dial. It has
// no effect on an already-established socket.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// Connect starts the connection loop. An empty credential is a silent
// no-op matching the logged-out state: no transport is opened and no
// error is returned. Connect is safe to call once; subsequent calls
// while running are no-ops.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()
	if token == "" {
		m.log.Debugw("no credential, skipping realtime connection")
		return
	}

	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.run(ctx)
}

// Connected reports whether a live socket is currently established.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Emit queues an event for delivery to the backend. Frames queued while
// disconnected are delivered after the next successful reconnect; if the
// queue is full the frame is dropped and logged.
func (m *Manager) Emit(event string, payload interface{}) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			m.log.Warnw("dropping unmarshalable outbound event",
				"event", event, "error", err)
			return
		}
		data = b
	}

	select {
	case m.outbox <- envelope{Event: event, Data: data}:
	default:
		m.log.Warnw("outbox full, dropping outbound event", "event", event)
	}
}

// Close tears down the connection. It is idempotent: calling it twice
// does not panic and does not attempt a second teardown.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	close(m.done)
	if conn != nil {
		conn.Close()
	}
}

// run dials, pumps, and reconnects until Close or context cancellation.
func (m *Manager) run(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		m.mu.Lock()
		token := m.token
		m.mu.Unlock()

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)

		conn, _, err := m.dialer.DialContext(ctx, m.url, header)
		if err != nil {
			m.log.Warnw("realtime dial failed",
				"url", m.url, "error", err, "retry_in", backoff)
			select {
			case <-m.done:
				return
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conn = conn
		m.mu.Unlock()

		m.log.Infow("realtime connected", "url", m.url)

		writerDone := make(chan struct{})
		go m.writePump(conn, writerDone)
		m.readPump(conn)

		close(writerDone)

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		conn.Close()
	}
}

// readPump reads frames until the connection fails, dispatching each
// well-formed envelope to its registered handlers. Malformed frames are
// logged and dropped, never fatal.
func (m *Manager) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if !closed {
				m.log.Warnw("realtime read failed", "error", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			m.log.Warnw("dropping malformed realtime frame", "error", err)
			continue
		}

		m.dispatch(env)
	}
}

// writePump drains the outbox and keeps the connection alive with pings.
func (m *Manager) writePump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-m.done:
			return
		case env := <-m.outbox:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				m.log.Warnw("realtime write failed",
					"event", env.Event, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch invokes every handler registered for the envelope's event.
func (m *Manager) dispatch(env envelope) {
	m.mu.Lock()
	handlers := make([]Handler, len(m.handlers[env.Event]))
	copy(handlers, m.handlers[env.Event])
	m.mu.Unlock()

	for _, h := range handlers {
		h(env.Data)
	}
}
