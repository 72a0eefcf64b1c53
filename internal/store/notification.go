package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/edusuite/edusync/internal/logger"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/realtime"
)

// NotificationStore holds the ordered notification list and its unread
// count. The list is newest-first. The unread count is always recomputed
// from the IsRead flags so it cannot drift from the list.
type NotificationStore struct {
	api   notificationAPI
	sound SoundPlayer
	log   *logger.Logger

	mu            sync.Mutex
	user          model.User
	notifications []model.Notification
	unread        int
}

// NewNotificationStore creates a notification store. The sound player may
// be nil, in which case pushes are silent.
func NewNotificationStore(api notificationAPI, sound SoundPlayer, log *logger.Logger) *NotificationStore {
	if log == nil {
		log = logger.Nop()
	}
	return &NotificationStore{api: api, sound: sound, log: log}
}

// Bind subscribes the store to its push events on the shared connection.
func (s *NotificationStore) Bind(conn Subscriber) {
	conn.On(realtime.EventNewNotification, func(data json.RawMessage) {
		var n model.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			s.log.Warnw("dropping malformed notification push", "error", err)
			return
		}
		s.ApplyPush(n)
	})

	conn.On(realtime.EventNotificationRead, func(data json.RawMessage) {
		var payload struct {
			NotificationID string `json:"notificationId"`
		}
		if err := json.Unmarshal(data, &payload); err != nil || payload.NotificationID == "" {
			s.log.Warnw("dropping malformed notification-read push", "error", err)
			return
		}
		s.applyServerRead(payload.NotificationID)
	})
}

// FetchSnapshot replaces the full notification list with the server's
// authoritative snapshot and recomputes the unread count. On failure the
// local state is left unchanged and the error is returned.
func (s *NotificationStore) FetchSnapshot(ctx context.Context) error {
	snapshot, err := s.api.GetRole(ctx)
	if err != nil {
		return fmt.Errorf("fetching notification snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = snapshot.User
	s.notifications = snapshot.Notifications
	s.unread = recountUnread(s.notifications)
	return nil
}

// ApplyPush merges an incoming push into the list. Pushes are deduplicated
// by id: redelivery of a known notification leaves the list and count
// unchanged. Pushes missing an id are dropped. A successfully merged push
// triggers the sound side effect.
func (s *NotificationStore) ApplyPush(n model.Notification) {
	if n.ID == "" {
		s.log.Warnw("dropping notification push with missing id", "title", n.Title)
		return
	}

	s.mu.Lock()
	for _, existing := range s.notifications {
		if existing.ID == n.ID {
			s.mu.Unlock()
			return
		}
	}
	s.notifications = append([]model.Notification{n}, s.notifications...)
	s.unread = recountUnread(s.notifications)
	s.mu.Unlock()

	if s.sound != nil {
		s.sound.Play(n.Category, n.Severity)
	}
}

// MarkAsRead optimistically marks the notification read and issues the
// confirming server request. If the request fails the store reverts to
// the server's authoritative state by refetching the snapshot, so local
// state never diverges permanently.
func (s *NotificationStore) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotificationNotFound
	}
	if s.notifications[idx].IsRead {
		// Already read; IsRead never reverts, nothing to confirm.
		s.mu.Unlock()
		return nil
	}
	s.notifications[idx].IsRead = true
	s.unread = recountUnread(s.notifications)
	s.mu.Unlock()

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		s.log.Warnw("mark-as-read failed, reverting by refetch",
			"id", id, "error", err)
		if fetchErr := s.FetchSnapshot(ctx); fetchErr != nil {
			s.log.Errorw("revert refetch failed, state may be stale",
				"error", fetchErr)
		}
		return fmt.Errorf("confirming mark-as-read for %s: %w", id, err)
	}
	return nil
}

// applyServerRead marks a notification read in response to a server push
// (e.g. the same account read it in another session). No server request
// is issued.
func (s *NotificationStore) applyServerRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
			s.unread = recountUnread(s.notifications)
			return
		}
	}
}

// Notifications returns a copy of the notification list, newest first.
func (s *NotificationStore) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// User returns the current user as reported by the last snapshot.
func (s *NotificationStore) User() model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// recountUnread derives the unread count from the IsRead flags.
func recountUnread(notifications []model.Notification) int {
	count := 0
	for _, n := range notifications {
		if !n.IsRead {
			count++
		}
	}
	return count
}
