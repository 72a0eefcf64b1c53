package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edusuite/edusync/internal/logger"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/realtime"
)

// MessageStore holds the inbox message list. The unread count is always
// derived by recounting the read flags, never incrementally tracked, so
// it cannot drift under interleaved pushes and reads.
type MessageStore struct {
	api messageAPI
	bus Emitter
	log *logger.Logger

	mu       sync.Mutex
	userID   string
	messages []model.Message
}

// NewMessageStore creates a message store. The emitter carries the
// transport-level delivery acks and outbound chat messages; it may be nil
// in tests.
func NewMessageStore(api messageAPI, bus Emitter, log *logger.Logger) *MessageStore {
	if log == nil {
		log = logger.Nop()
	}
	return &MessageStore{api: api, bus: bus, log: log}
}

// SetUser installs the current user's id, used to tell inbound messages
// from echoes of our own.
func (s *MessageStore) SetUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// Bind subscribes the store to its push events on the shared connection.
func (s *MessageStore) Bind(conn Subscriber) {
	conn.On(realtime.EventPrivateMessage, func(data json.RawMessage) {
		var m model.Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.log.Warnw("dropping malformed message push", "error", err)
			return
		}
		s.ApplyPush(m)
	})

	conn.On(realtime.EventMessageRead, func(data json.RawMessage) {
		var payload struct {
			MessageID string `json:"messageId"`
		}
		if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == "" {
			s.log.Warnw("dropping malformed message-read push", "error", err)
			return
		}
		s.applyServerRead(payload.MessageID)
	})
}

// FetchUnread replaces the message list with the server-reported unread
// set. On failure the local state is left unchanged.
func (s *MessageStore) FetchUnread(ctx context.Context) error {
	messages, err := s.api.UnreadMessages(ctx)
	if err != nil {
		return fmt.Errorf("fetching unread messages: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = messages
	return nil
}

// ApplyPush prepends an inbound message. Messages from another user are
// immediately acknowledged over the same connection (a transport-level
// delivery ack; the application-level read flag still requires MarkRead).
// Redelivery of a known id leaves the list unchanged.
func (s *MessageStore) ApplyPush(m model.Message) {
	if m.ID == "" {
		s.log.Warnw("dropping message push with missing id", "sender", m.SenderID)
		return
	}

	s.mu.Lock()
	for _, existing := range s.messages {
		if existing.ID == m.ID {
			s.mu.Unlock()
			return
		}
	}
	s.messages = append([]model.Message{m}, s.messages...)
	fromOther := s.userID != "" && m.SenderID != s.userID
	s.mu.Unlock()

	if fromOther && s.bus != nil {
		s.bus.Emit(realtime.EventMessageRead, map[string]string{
			"messageId": m.ID,
		})
	}
}

// MarkRead optimistically flips the message's read flag, removing it from
// the unread view, and issues the confirming server request. On failure
// the store reverts by refetching the authoritative unread set.
func (s *MessageStore) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.messages {
		if s.messages[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	if s.messages[idx].Read {
		s.mu.Unlock()
		return nil
	}
	s.messages[idx].Read = true
	s.mu.Unlock()

	if err := s.api.MarkMessageRead(ctx, id); err != nil {
		s.log.Warnw("mark-read failed, reverting by refetch",
			"id", id, "error", err)
		if fetchErr := s.FetchUnread(ctx); fetchErr != nil {
			s.log.Errorw("revert refetch failed, state may be stale",
				"error", fetchErr)
		}
		return fmt.Errorf("confirming mark-read for %s: %w", id, err)
	}
	return nil
}

// Send emits a chat message to the given receiver over the realtime
// connection and records it locally as already read (our own messages are
// never unread).
func (s *MessageStore) Send(receiverID, body string) model.Message {
	s.mu.Lock()
	m := model.Message{
		ID:         uuid.New().String(),
		SenderID:   s.userID,
		ReceiverID: receiverID,
		Body:       body,
		Read:       true,
		Timestamp:  time.Now().UTC(),
	}
	s.messages = append([]model.Message{m}, s.messages...)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Emit(realtime.EventPrivateMessage, m)
	}
	return m
}

// Typing emits a typing indicator for the given receiver. stop selects
// the stop-typing event.
func (s *MessageStore) Typing(receiverID string, stop bool) {
	if s.bus == nil {
		return
	}
	event := realtime.EventTyping
	if stop {
		event = realtime.EventStopTyping
	}
	s.bus.Emit(event, map[string]string{"receiverId": receiverID})
}

// applyServerRead marks a message read in response to a read-receipt push.
func (s *MessageStore) applyServerRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Read = true
			return
		}
	}
}

// Messages returns a copy of the full message list, newest first.
func (s *MessageStore) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Unread returns the messages whose read flag is still false.
func (s *MessageStore) Unread() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.messages {
		if !m.Read {
			out = append(out, m)
		}
	}
	return out
}

// UnreadCount derives the unread count by recounting the read flags.
func (s *MessageStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.messages {
		if !m.Read {
			count++
		}
	}
	return count
}
