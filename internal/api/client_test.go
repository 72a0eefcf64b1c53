package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edusuite/edusync/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, 5*time.Second, nil)
	c.SetToken("test-token")
	return c, srv
}

func TestRetryOn429(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode([]model.Task{})
	}))

	if _, err := c.ListTasks(context.Background()); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2 (one retry)", got)
	}
}

func TestUnauthorizedYieldsAuthError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.GetRole(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestBearerTokenSent(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.MarkNotificationRead(context.Background(), "n1"); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("Authorization = %q, want Bearer test-token", gotAuth)
	}
}

func TestMarkNotificationReadPath(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.MarkNotificationRead(context.Background(), "n1"); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/notification/mark-as-read/n1" {
		t.Fatalf("request = %s %s, want PATCH /notification/mark-as-read/n1",
			gotMethod, gotPath)
	}
}

func TestGetRoleSkipsMalformedNotifications(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RoleSnapshot{
			User: model.User{ID: "u1", Role: "admin"},
			Notifications: []model.Notification{
				{ID: "n1", Title: "ok"},
				{Title: "missing id"},
				{ID: "n2", Title: "ok too"},
			},
		})
	}))

	snapshot, err := c.GetRole(context.Background())
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if got := len(snapshot.Notifications); got != 2 {
		t.Fatalf("notifications = %d, want 2 (malformed skipped)", got)
	}
	for _, n := range snapshot.Notifications {
		if n.ID == "" {
			t.Fatal("notification with empty id survived validation")
		}
	}
}

func TestListTasksSkipsUnknownStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Task{
			{ID: "t1", Status: model.StatusPending},
			{ID: "t2", Status: "Bogus"},
			{Status: model.StatusPending}, // missing id
		})
	}))

	tasks, err := c.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("tasks = %+v, want only t1", tasks)
	}
}

func TestLoginReturnsToken(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s, want POST /auth/login", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" {
			t.Errorf("email = %q", body["email"])
		}
		json.NewEncoder(w).Encode(LoginResult{
			Token: "fresh-token",
			User:  model.User{ID: "u1"},
		})
	}))

	result, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token != "fresh-token" {
		t.Fatalf("token = %q", result.Token)
	}
}

func TestEmptyIDRejectedLocally(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent for empty id")
	}))

	if err := c.MarkNotificationRead(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty notification id")
	}
	if err := c.DeleteTask(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty task id")
	}
}
