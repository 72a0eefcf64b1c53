// Package store holds the client-side state for notifications, chat
// messages, and the task board. Each store exclusively owns its in-memory
// collection; the backend is the sole source of truth and every store can
// be reconciled by a full refetch at any time.
package store

import (
	"context"
	"errors"

	"github.com/edusuite/edusync/internal/api"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/realtime"
)

// Sentinel errors returned by store operations.
var (
	// ErrTaskNotFound is returned when a task id is absent from every
	// board bucket.
	ErrTaskNotFound = errors.New("task not found on board")

	// ErrUpdateInFlight is returned when a mutation is requested for a
	// task that already has a pending server request. Duplicate rapid
	// actions are rejected instead of issuing duplicate requests.
	ErrUpdateInFlight = errors.New("task update already in flight")

	// ErrNotificationNotFound is returned by MarkAsRead for an unknown id.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrMessageNotFound is returned by MarkRead for an unknown id.
	ErrMessageNotFound = errors.New("message not found")
)

// notificationAPI is the slice of the backend client the notification
// store needs.
type notificationAPI interface {
	GetRole(ctx context.Context) (*api.RoleSnapshot, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// messageAPI is the slice of the backend client the message store needs.
type messageAPI interface {
	UnreadMessages(ctx context.Context) ([]model.Message, error)
	MarkMessageRead(ctx context.Context, id string) error
}

// boardAPI is the slice of the backend client the board store needs.
type boardAPI interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error
	DeleteTask(ctx context.Context, id string) error
	AddTaskActivity(ctx context.Context, taskID string, activity model.Activity) error
}

// Emitter sends named events over the shared realtime connection.
// Satisfied by *realtime.Manager.
type Emitter interface {
	Emit(event string, payload interface{})
}

// Subscriber registers handlers for named events on the shared realtime
// connection. Satisfied by *realtime.Manager.
type Subscriber interface {
	On(event string, h realtime.Handler)
}

// SoundPlayer is invoked as a side effect of inbound pushes.
// Satisfied by *sound.Controller.
type SoundPlayer interface {
	Play(category model.Category, severity model.Severity)
}
