package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edusuite/edusync/internal/api"
	"github.com/edusuite/edusync/internal/model"
)

type fakeNotificationAPI struct {
	mu          sync.Mutex
	snapshot    api.RoleSnapshot
	snapshotErr error
	markErr     error
	markCalls   []string
}

func (f *fakeNotificationAPI) GetRole(ctx context.Context) (*api.RoleSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	snapshot := f.snapshot
	snapshot.Notifications = append([]model.Notification(nil), f.snapshot.Notifications...)
	return &snapshot, nil
}

func (f *fakeNotificationAPI) MarkNotificationRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, id)
	return f.markErr
}

type fakeSound struct {
	mu    sync.Mutex
	plays []model.Category
}

func (f *fakeSound) Play(category model.Category, severity model.Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, category)
}

func (f *fakeSound) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

func notif(id string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Title:     "title " + id,
		Message:   "message " + id,
		IsRead:    read,
		CreatedAt: time.Now().UTC(),
	}
}

// checkUnreadInvariant asserts the stored count equals a recount of the
// IsRead flags.
func checkUnreadInvariant(t *testing.T, s *NotificationStore) {
	t.Helper()
	want := 0
	for _, n := range s.Notifications() {
		if !n.IsRead {
			want++
		}
	}
	if got := s.UnreadCount(); got != want {
		t.Fatalf("unread count drifted: got %d, recount %d", got, want)
	}
}

func TestNotificationUnreadInvariant(t *testing.T) {
	fake := &fakeNotificationAPI{
		snapshot: api.RoleSnapshot{
			Notifications: []model.Notification{
				notif("n1", false), notif("n2", true), notif("n3", false),
			},
		},
	}
	s := NewNotificationStore(fake, nil, nil)
	ctx := context.Background()

	if err := s.FetchSnapshot(ctx); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	checkUnreadInvariant(t, s)
	if got := s.UnreadCount(); got != 2 {
		t.Fatalf("UnreadCount = %d, want 2", got)
	}

	s.ApplyPush(notif("n4", false))
	checkUnreadInvariant(t, s)

	if err := s.MarkAsRead(ctx, "n1"); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	checkUnreadInvariant(t, s)

	s.ApplyPush(notif("n5", false))
	s.ApplyPush(notif("n5", false)) // redelivery
	checkUnreadInvariant(t, s)

	if err := s.FetchSnapshot(ctx); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	checkUnreadInvariant(t, s)
}

func TestPushThenMarkAsRead(t *testing.T) {
	fake := &fakeNotificationAPI{}
	s := NewNotificationStore(fake, nil, nil)

	s.ApplyPush(model.Notification{ID: "n1", Title: "A"})
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("after push: UnreadCount = %d, want 1", got)
	}

	if err := s.MarkAsRead(context.Background(), "n1"); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("after mark: UnreadCount = %d, want 0", got)
	}
	notifications := s.Notifications()
	if len(notifications) != 1 || !notifications[0].IsRead {
		t.Fatalf("notification n1 not marked read: %+v", notifications)
	}
	if len(fake.markCalls) != 1 || fake.markCalls[0] != "n1" {
		t.Fatalf("markCalls = %v, want [n1]", fake.markCalls)
	}
}

func TestApplyPushDedupByID(t *testing.T) {
	sound := &fakeSound{}
	s := NewNotificationStore(&fakeNotificationAPI{}, sound, nil)

	n := notif("n1", false)
	s.ApplyPush(n)
	s.ApplyPush(n)

	if got := len(s.Notifications()); got != 1 {
		t.Fatalf("list length = %d, want 1 after duplicate push", got)
	}
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("UnreadCount = %d, want 1 after duplicate push", got)
	}
	if got := sound.count(); got != 1 {
		t.Fatalf("sound played %d times, want 1", got)
	}
}

func TestApplyPushMissingIDDropped(t *testing.T) {
	s := NewNotificationStore(&fakeNotificationAPI{}, nil, nil)
	s.ApplyPush(model.Notification{Title: "no id"})
	if got := len(s.Notifications()); got != 0 {
		t.Fatalf("list length = %d, want 0", got)
	}
}

func TestReadStateMonotonic(t *testing.T) {
	fake := &fakeNotificationAPI{}
	s := NewNotificationStore(fake, nil, nil)
	ctx := context.Background()

	s.ApplyPush(notif("n1", false))
	if err := s.MarkAsRead(ctx, "n1"); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}

	// Redelivery of the unread copy must not resurrect the unread state.
	s.ApplyPush(notif("n1", false))
	// Marking again is a no-op, not an error and not a flip.
	if err := s.MarkAsRead(ctx, "n1"); err != nil {
		t.Fatalf("second MarkAsRead: %v", err)
	}
	s.applyServerRead("n1")

	for _, n := range s.Notifications() {
		if n.ID == "n1" && !n.IsRead {
			t.Fatal("n1 reverted to unread")
		}
	}
	if len(fake.markCalls) != 1 {
		t.Fatalf("server asked to mark %d times, want 1", len(fake.markCalls))
	}
}

func TestFetchSnapshotFailureLeavesState(t *testing.T) {
	fake := &fakeNotificationAPI{
		snapshot: api.RoleSnapshot{
			Notifications: []model.Notification{notif("n1", false)},
		},
	}
	s := NewNotificationStore(fake, nil, nil)
	ctx := context.Background()

	if err := s.FetchSnapshot(ctx); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}

	fake.mu.Lock()
	fake.snapshotErr = errors.New("backend down")
	fake.mu.Unlock()

	if err := s.FetchSnapshot(ctx); err == nil {
		t.Fatal("expected error from failed snapshot")
	}
	if got := len(s.Notifications()); got != 1 {
		t.Fatalf("state changed on failed snapshot: %d notifications", got)
	}
	checkUnreadInvariant(t, s)
}

func TestMarkAsReadFailureRevertsByRefetch(t *testing.T) {
	fake := &fakeNotificationAPI{
		snapshot: api.RoleSnapshot{
			Notifications: []model.Notification{notif("n1", false)},
		},
		markErr: errors.New("server rejected"),
	}
	s := NewNotificationStore(fake, nil, nil)
	ctx := context.Background()

	if err := s.FetchSnapshot(ctx); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if err := s.MarkAsRead(ctx, "n1"); err == nil {
		t.Fatal("expected error from failed mark-as-read")
	}

	// The failed optimistic flip is reverted by the authoritative
	// snapshot, which still reports n1 unread.
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("UnreadCount = %d, want 1 after revert", got)
	}
	checkUnreadInvariant(t, s)
}

func TestMarkAsReadUnknownID(t *testing.T) {
	s := NewNotificationStore(&fakeNotificationAPI{}, nil, nil)
	if err := s.MarkAsRead(context.Background(), "nope"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("err = %v, want ErrNotificationNotFound", err)
	}
}
