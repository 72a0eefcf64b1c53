package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsURL converts an httptest server URL to a websocket URL.
func wsURL(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectWithoutCredentialIsNoop(t *testing.T) {
	dialed := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dialed <- struct{}{}
	}))
	defer srv.Close()

	m := NewManager(wsURL(t, srv), "", nil)
	defer m.Close()

	m.Connect(context.Background())

	select {
	case <-dialed:
		t.Fatal("transport opened despite empty credential")
	case <-time.After(100 * time.Millisecond):
	}
	if m.Connected() {
		t.Fatal("Connected() = true without credential")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager("ws://localhost:0", "token", nil)
	m.Close()
	m.Close() // must not panic or tear down twice
}

func TestCloseAfterConnectIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	m := NewManager(wsURL(t, srv), "token", nil)
	m.Connect(context.Background())

	waitConnected(t, m)
	m.Close()
	m.Close()
}

func TestDispatchAndEmit(t *testing.T) {
	received := make(chan envelope, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Read the client's emitted frame.
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		received <- env

		// Push an event back.
		data, _ := json.Marshal(map[string]string{"id": "n1", "title": "hello"})
		conn.WriteJSON(envelope{Event: EventNewNotification, Data: data})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	m := NewManager(wsURL(t, srv), "secret", nil)
	defer m.Close()

	pushed := make(chan json.RawMessage, 1)
	m.On(EventNewNotification, func(data json.RawMessage) {
		pushed <- data
	})

	m.Connect(context.Background())
	m.Emit(EventTyping, map[string]string{"receiverId": "u2"})

	select {
	case env := <-received:
		if env.Event != EventTyping {
			t.Fatalf("server received event %q, want %q", env.Event, EventTyping)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received emitted frame")
	}

	select {
	case data := <-pushed:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil || payload.ID != "n1" {
			t.Fatalf("handler payload = %s, err %v", data, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked for pushed event")
	}
}

func TestMalformedFramesDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"x":1}}`)) // missing event
		data, _ := json.Marshal(map[string]string{"id": "n2"})
		conn.WriteJSON(envelope{Event: EventNewNotification, Data: data})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	m := NewManager(wsURL(t, srv), "token", nil)
	defer m.Close()

	pushed := make(chan json.RawMessage, 4)
	m.On(EventNewNotification, func(data json.RawMessage) {
		pushed <- data
	})
	m.Connect(context.Background())

	select {
	case data := <-pushed:
		if !strings.Contains(string(data), "n2") {
			t.Fatalf("unexpected payload %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame after malformed frames was not dispatched")
	}

	select {
	case data := <-pushed:
		t.Fatalf("malformed frame dispatched: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitConnected(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Connected() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("manager never connected")
}
