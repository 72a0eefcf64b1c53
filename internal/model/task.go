package model

import "time"

// Status is the authoritative task state machine. Every task is in exactly
// one status at any instant; all transitions are allowed.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusOnHold     Status = "On Hold"
	StatusCancelled  Status = "Cancelled"
)

// Statuses lists all board statuses in display order.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusOnHold,
	StatusCancelled,
}

// Valid reports whether s is a known task status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted,
		StatusOnHold, StatusCancelled:
		return true
	}
	return false
}

// Priority is the task priority level.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Activity is a single append-only log entry on a task.
type Activity struct {
	// Type classifies the activity (e.g. "comment", "status", "assigned").
	Type string `json:"type"`

	// Message is the human-readable activity text.
	Message string `json:"message"`

	// Author is the user who produced the activity.
	Author string `json:"author"`

	// CreatedAt is when the activity was recorded.
	CreatedAt time.Time `json:"createdAt"`
}

// SubTask is a single checklist entry under a task.
type SubTask struct {
	Title     string `json:"title"`
	Tag       string `json:"tag,omitempty"`
	Completed bool   `json:"completed"`
}

// Task is a work item on the institute task board.
type Task struct {
	// ID is the server-assigned unique identifier.
	ID string `json:"id"`

	// Title is the human-readable summary.
	Title string `json:"title"`

	// Description is the full body text.
	Description string `json:"description,omitempty"`

	// Status determines which board bucket the task belongs to.
	Status Status `json:"status"`

	// Priority is the task's priority level.
	Priority Priority `json:"priority"`

	// AssignedTo references the user responsible for the task.
	AssignedTo string `json:"assignedTo,omitempty"`

	// CreatedBy references the user who created the task.
	CreatedBy string `json:"createdBy,omitempty"`

	// Activities is the ordered append-only activity log.
	Activities []Activity `json:"activities,omitempty"`

	// SubTasks is the ordered checklist under this task.
	SubTasks []SubTask `json:"subTasks,omitempty"`

	// CreatedAt is when the task was created on the server.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the task was last modified on the server.
	UpdatedAt time.Time `json:"updatedAt"`
}
