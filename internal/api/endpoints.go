package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/edusuite/edusync/internal/model"
)

// LoginResult is the response of a successful login.
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// RoleSnapshot is the response of GET /user/get-role: the current user
// plus the full notification list embedded by the backend.
type RoleSnapshot struct {
	User          model.User           `json:"user"`
	Notifications []model.Notification `json:"notifications"`
}

// Login authenticates with email and password and returns the bearer
// token. The token is NOT installed on the client; call SetToken.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result LoginResult
	if err := c.post(ctx, "/auth/login", body, &result); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if result.Token == "" {
		return nil, fmt.Errorf("login response missing token")
	}
	return &result, nil
}

// GetRole fetches the current user and the embedded notification snapshot.
// Notifications missing an id are dropped and logged rather than returned.
func (c *Client) GetRole(ctx context.Context) (*RoleSnapshot, error) {
	var result RoleSnapshot
	if err := c.get(ctx, "/user/get-role", &result); err != nil {
		return nil, fmt.Errorf("fetching role snapshot: %w", err)
	}
	result.Notifications = c.validNotifications(result.Notifications)
	return &result, nil
}

// MarkNotificationRead marks a notification as read server-side.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("notification id must not be empty")
	}
	path := "/notification/mark-as-read/" + url.PathEscape(id)
	if err := c.patch(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// UnreadMessages fetches the server-reported unread message set.
// Messages missing an id are dropped and logged.
func (c *Client) UnreadMessages(ctx context.Context) ([]model.Message, error) {
	var result []model.Message
	if err := c.get(ctx, "/chat/unread-messages", &result); err != nil {
		return nil, fmt.Errorf("fetching unread messages: %w", err)
	}

	valid := result[:0]
	for _, m := range result {
		if m.ID == "" {
			c.log.Warnw("dropping message with missing id", "sender", m.SenderID)
			continue
		}
		valid = append(valid, m)
	}
	return valid, nil
}

// MarkMessageRead marks a chat message as read server-side.
func (c *Client) MarkMessageRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("message id must not be empty")
	}
	path := "/chat/mark-read/" + url.PathEscape(id)
	if err := c.patch(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking message %s read: %w", id, err)
	}
	return nil
}

// ListTasks fetches the full authoritative task list.
// Tasks missing an id or carrying an unknown status are dropped and logged.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var result []model.Task
	if err := c.get(ctx, "/tasks", &result); err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	valid := result[:0]
	for _, t := range result {
		if t.ID == "" {
			c.log.Warnw("dropping task with missing id", "title", t.Title)
			continue
		}
		if !t.Status.Valid() {
			c.log.Warnw("dropping task with unknown status",
				"id", t.ID, "status", t.Status)
			continue
		}
		valid = append(valid, t)
	}
	return valid, nil
}

// CreateTask creates a new task and returns the server's copy.
func (c *Client) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	var result model.Task
	if err := c.post(ctx, "/tasks", task, &result); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &result, nil
}

// UpdateTask replaces a task server-side (status, priority, assignment).
func (c *Client) UpdateTask(ctx context.Context, task model.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id must not be empty")
	}
	path := "/tasks/" + url.PathEscape(task.ID)
	if err := c.put(ctx, path, task, nil); err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes a task server-side.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("task id must not be empty")
	}
	if err := c.delete(ctx, "/tasks/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// AddTaskActivity appends an activity entry to a task's log.
func (c *Client) AddTaskActivity(ctx context.Context, taskID string, activity model.Activity) error {
	if taskID == "" {
		return fmt.Errorf("task id must not be empty")
	}
	path := "/tasks/" + url.PathEscape(taskID) + "/activity"
	if err := c.post(ctx, path, activity, nil); err != nil {
		return fmt.Errorf("adding activity to task %s: %w", taskID, err)
	}
	return nil
}

// validNotifications filters out notifications missing required fields.
func (c *Client) validNotifications(in []model.Notification) []model.Notification {
	valid := in[:0]
	for _, n := range in {
		if n.ID == "" {
			c.log.Warnw("dropping notification with missing id", "title", n.Title)
			continue
		}
		valid = append(valid, n)
	}
	return valid
}
