package realtime

import "encoding/json"

// Named events consumed from the backend.
const (
	EventNewNotification  = "new-notification"
	EventNotificationRead = "notification-read"
	EventPrivateMessage   = "private message"
	EventMessageRead      = "message read"
	EventNewTask          = "new-task"
	EventTaskUpdated      = "task-updated"
	EventTaskActivity     = "task-activity"
)

// Named events emitted to the backend.
const (
	EventTaskStatusUpdate = "task-status-update"
	EventTyping           = "typing"
	EventStopTyping       = "stop typing"
)

// envelope is the wire format for every frame on the realtime channel.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw payload of a dispatched event.
type Handler func(data json.RawMessage)
